/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package mcp

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server identity reported to MCP clients.
const (
	ServerName    = "jen-os-mcp"
	ServerVersion = "2.0.0"
)

// NewServer creates an MCP server exposing every operation of d.
func NewServer(d *Dispatcher, version string, logger *slog.Logger) *mcpsdk.Server {
	if version == "" {
		version = ServerVersion
	}
	impl := &mcpsdk.Implementation{
		Name:    ServerName,
		Version: version,
	}
	opts := &mcpsdk.ServerOptions{
		InitializedHandler: func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.InitializedParams) {
			if logger != nil {
				logger.InfoContext(ctx, "MCP connection established", "session", session.ID())
			}
		},
	}
	server := mcpsdk.NewServer(impl, opts)
	RegisterTools(server, d)
	server.AddReceivingMiddleware(dispatchUnregistered(d))
	return server
}

// methodCallTool is the MCP method name of a tool invocation.
const methodCallTool = "tools/call"

// dispatchUnregistered routes tools/call requests for names the SDK does not
// know, such as unknown tools or jenos_-prefixed names, through the
// dispatcher instead of letting the SDK fail them as a protocol error.
func dispatchUnregistered(d *Dispatcher) mcpsdk.Middleware[*mcpsdk.ServerSession] {
	return func(next mcpsdk.MethodHandler[*mcpsdk.ServerSession]) mcpsdk.MethodHandler[*mcpsdk.ServerSession] {
		return func(ctx context.Context, session *mcpsdk.ServerSession, method string, params mcpsdk.Params) (mcpsdk.Result, error) {
			if method != methodCallTool {
				return next(ctx, session, method, params)
			}
			call, ok := params.(*mcpsdk.CallToolParamsFor[json.RawMessage])
			if !ok || call == nil {
				return next(ctx, session, method, params)
			}
			if _, registered := d.ops[OperationID(call.Name)]; registered {
				return next(ctx, session, method, params)
			}
			res := d.Dispatch(ctx, Invocation{
				Tool:      call.Name,
				Arguments: call.Arguments,
				Caller:    sessionCaller(session),
			})
			return toolResult(res), nil
		}
	}
}

// RegisterTools adds every operation to server. Each call is routed back
// through the dispatcher so MCP clients get the same gateway pipeline as
// every other transport.
func RegisterTools(server *mcpsdk.Server, d *Dispatcher) {
	for _, id := range Operations() {
		d.ops[id].register(server, d)
	}
}

func toolHandler[In any](d *Dispatcher, id OperationID) mcpsdk.ToolHandlerFor[In, any] {
	return func(ctx context.Context, session *mcpsdk.ServerSession, params *mcpsdk.CallToolParamsFor[In]) (*mcpsdk.CallToolResultFor[any], error) {
		raw, err := json.Marshal(params.Arguments)
		if err != nil {
			return toolResult(errorResult(err)), nil
		}
		res := d.Dispatch(ctx, Invocation{
			Tool:      string(id),
			Arguments: raw,
			Caller:    sessionCaller(session),
		})
		return toolResult(res), nil
	}
}

// toolResult wraps an envelope in an MCP tool result. Errors are reported in
// the result with IsError set, not as protocol errors, so the client can see
// them.
func toolResult(res Result) *mcpsdk.CallToolResultFor[any] {
	return &mcpsdk.CallToolResultFor[any]{
		Content: []mcpsdk.Content{&mcpsdk.TextContent{Text: res.Text}},
		IsError: res.IsError,
	}
}

func sessionCaller(session *mcpsdk.ServerSession) string {
	if session == nil {
		return ""
	}
	return strings.TrimSpace(session.ID())
}
