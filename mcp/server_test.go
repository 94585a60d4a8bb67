package mcp

import (
	"context"
	"strings"
	"testing"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/josephgoksu/jenos-mcp/internal/ratelimit"
)

func connectClient(t *testing.T, d *Dispatcher) *mcpsdk.ClientSession {
	t.Helper()
	ctx := context.Background()
	clientTransport, serverTransport := mcpsdk.NewInMemoryTransports()

	if _, err := NewServer(d, "test", nil).Connect(ctx, serverTransport); err != nil {
		t.Fatalf("server Connect() error = %v", err)
	}
	client := mcpsdk.NewClient(&mcpsdk.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport)
	if err != nil {
		t.Fatalf("client Connect() error = %v", err)
	}
	t.Cleanup(func() { _ = cs.Close() })
	return cs
}

func callTool(t *testing.T, cs *mcpsdk.ClientSession, name string, args map[string]any) *mcpsdk.CallToolResult {
	t.Helper()
	res, err := cs.CallTool(context.Background(), &mcpsdk.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s) error = %v", name, err)
	}
	return res
}

func resultText(t *testing.T, res *mcpsdk.CallToolResult) string {
	t.Helper()
	if len(res.Content) != 1 {
		t.Fatalf("content = %d items, want 1", len(res.Content))
	}
	text, ok := res.Content[0].(*mcpsdk.TextContent)
	if !ok {
		t.Fatalf("content is %T, want *TextContent", res.Content[0])
	}
	return text.Text
}

func TestServer_ListTools(t *testing.T) {
	svc, _ := newTestServices(t)
	cs := connectClient(t, NewDispatcher(svc))

	res, err := cs.ListTools(context.Background(), &mcpsdk.ListToolsParams{})
	if err != nil {
		t.Fatalf("ListTools() error = %v", err)
	}
	if len(res.Tools) != 15 {
		t.Errorf("tools = %d, want 15", len(res.Tools))
	}
}

func TestServer_CallTool(t *testing.T) {
	tests := []struct {
		name        string
		tool        string
		args        map[string]any
		wantIsError bool
		wantText    string
		exact       bool
	}{
		{
			name:        "unknown tool",
			tool:        "nope",
			wantIsError: true,
			wantText:    `{"error":"Unknown tool: nope","code":"UNKNOWN_TOOL"}`,
			exact:       true,
		},
		{
			name:     "legacy prefix",
			tool:     "jenos_validate_url",
			args:     map[string]any{"url": "https://api.github.com"},
			wantText: `"isValid": true`,
		},
		{
			name:     "empty content",
			tool:     "validate_content",
			args:     map[string]any{"text": ""},
			wantText: `"isValid": true`,
		},
		{
			name:     "missing content",
			tool:     "validate_content",
			args:     map[string]any{},
			wantText: `"violations": []`,
		},
		{
			name:        "legacy prefix validation",
			tool:        "jenos_claim_task",
			args:        map[string]any{},
			wantIsError: true,
			wantText:    `"code":"VALIDATION_FAILED"`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestServices(t)
			cs := connectClient(t, NewDispatcher(svc))

			res := callTool(t, cs, tt.tool, tt.args)
			if res.IsError != tt.wantIsError {
				t.Errorf("IsError = %v, want %v", res.IsError, tt.wantIsError)
			}
			text := resultText(t, res)
			if tt.exact && text != tt.wantText {
				t.Errorf("text = %s, want %s", text, tt.wantText)
			}
			if !tt.exact && !strings.Contains(text, tt.wantText) {
				t.Errorf("text = %s, want it to contain %s", text, tt.wantText)
			}
		})
	}
}

func TestServer_UnknownToolConsumesBudget(t *testing.T) {
	svc, _ := newTestServices(t)
	limiter := ratelimit.NewSlidingWindow(1, ratelimit.DefaultMaxCallers, time.Minute)
	cs := connectClient(t, NewDispatcher(svc, WithLimiter(limiter)))

	if text := resultText(t, callTool(t, cs, "nope", nil)); !strings.Contains(text, "UNKNOWN_TOOL") {
		t.Fatalf("first call = %s", text)
	}
	res := callTool(t, cs, "validate_url", map[string]any{"url": "https://api.github.com"})
	if !res.IsError {
		t.Fatal("second call succeeded, want rate limited")
	}
	if text := resultText(t, res); text != `{"error":"Rate limit exceeded. Max 1 requests per minute.","code":"RATE_LIMITED"}` {
		t.Errorf("text = %s", text)
	}
}
