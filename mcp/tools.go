package mcp

import (
	"bytes"
	"context"
	"encoding/json"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/josephgoksu/jenos-mcp/internal/app"
	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/types"
)

// Services are the application services the operations call into.
type Services struct {
	Tasks    *app.TaskApp
	Records  *app.RecordApp
	Validate *app.ValidateApp
	Health   *app.HealthApp
}

// NewServices builds every application service over ctx.
func NewServices(ctx *app.Context) Services {
	return Services{
		Tasks:    app.NewTaskApp(ctx),
		Records:  app.NewRecordApp(ctx),
		Validate: app.NewValidateApp(ctx),
		Health:   app.NewHealthApp(ctx),
	}
}

// operation is one entry of the dispatch table. decode and run are typed
// through define; register adds the tool to an MCP server with the same
// input type.
type operation struct {
	id          OperationID
	description string
	readOnly    bool
	decode      func(raw json.RawMessage) (any, error)
	run         func(ctx context.Context, args any) (any, error)
	register    func(server *mcpsdk.Server, d *Dispatcher)
}

func define[In, Out any](id OperationID, description string, readOnly bool, fn func(context.Context, In) (Out, error)) operation {
	return operation{
		id:          id,
		description: description,
		readOnly:    readOnly,
		decode: func(raw json.RawMessage) (any, error) {
			var in In
			trimmed := bytes.TrimSpace(raw)
			if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
				if err := json.Unmarshal(trimmed, &in); err != nil {
					return nil, types.NewValidationError("arguments", err.Error())
				}
			}
			if err := models.ValidateStruct(in); err != nil {
				return nil, types.NewMCPError(types.CodeValidation, err.Error(), nil)
			}
			return in, nil
		},
		run: func(ctx context.Context, args any) (any, error) {
			return fn(ctx, args.(In))
		},
		register: func(server *mcpsdk.Server, d *Dispatcher) {
			mcpsdk.AddTool(server, &mcpsdk.Tool{
				Name:        string(id),
				Description: description,
				Annotations: &mcpsdk.ToolAnnotations{ReadOnlyHint: readOnly},
			}, toolHandler[In](d, id))
		},
	}
}

// pure adapts an operation that cannot fail.
func pure[In, Out any](fn func(In) Out) func(context.Context, In) (Out, error) {
	return func(_ context.Context, in In) (Out, error) { return fn(in), nil }
}

func operationTable(svc Services) map[OperationID]operation {
	ops := []operation{
		define(OpQueryPendingTasks, "Query PENDING router tasks, oldest first. Args: limit (default 10, max 100), type_filter. Returns count, has_more, tasks[].",
			true, svc.Tasks.QueryPending),
		define(OpClaimTask, "Claim a pending task. Args: task_id (required), claimed_by (default mcp-server). Sets status CLAIMED.",
			false, svc.Tasks.Claim),
		define(OpCompleteTask, "Mark a task DONE. Args: task_id, result (required), notes. Result and notes are cut to 2000 characters.",
			false, svc.Tasks.Complete),
		define(OpRejectTask, "Reject a task. Args: task_id, reason (required). Sets status REJECTED.",
			false, svc.Tasks.Reject),
		define(OpCreateTask, "Create a PENDING router task. Args: title, type, payload (required), priority [LOW|NORMAL|HIGH|URGENT], target.",
			false, svc.Tasks.Create),
		define(OpCreateArtifact, "Create an artifact after content validation. Args: name, type, content (required), department (default Jen_OS), tags[].",
			false, svc.Records.CreateArtifact),
		define(OpLogPattern, "Log a pattern to the library. Args: name, type, description, source (required), application.",
			false, svc.Records.LogPattern),
		define(OpLogSession, "Log a work session. Args: title, mode, summary (required), artifacts[], outcome_tag (default LEARN).",
			false, svc.Records.LogSession),
		define(OpValidateContent, "Validate text against the content safety rules. Returns isValid, violations[], message.",
			true, pure(svc.Validate.Content)),
		define(OpValidateURL, "Validate a URL against the private-address blocklist and destination allowlist.",
			true, pure(svc.Validate.URL)),
		define(OpQueryKnowledge, "Query system knowledge notes. Args: domain, limit (default 10, max 100).",
			true, svc.Records.QueryKnowledge),
		define(OpQueueContentDraft, "Queue a content draft for review. Args: title, content, source (required), channel (default Substack), tags[].",
			false, svc.Records.QueueContentDraft),
		define(OpDispatchToAgent, "Dispatch a goal to an agent as an EXECUTE_ACTION task. Args: agent, goal, output_needed (required), constraints{priority}.",
			false, svc.Tasks.Dispatch),
		define(OpLogDelta, "Log a learning delta as a Delta pattern. Args: description, domain (required), source (default MCP Server).",
			false, svc.Records.LogDelta),
		define(OpHealthCheck, "Check gateway and store health, probing every configured collection.",
			true, func(ctx context.Context, _ types.HealthCheckParams) (*types.HealthCheckResponse, error) {
				return svc.Health.Check(ctx), nil
			}),
	}

	table := make(map[OperationID]operation, len(ops))
	for _, op := range ops {
		table[op.id] = op
	}
	return table
}
