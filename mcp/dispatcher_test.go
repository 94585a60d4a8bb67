package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/jenos-mcp/internal/app"
	"github.com/josephgoksu/jenos-mcp/internal/policy"
	"github.com/josephgoksu/jenos-mcp/internal/ratelimit"
	"github.com/josephgoksu/jenos-mcp/internal/safety"
	"github.com/josephgoksu/jenos-mcp/internal/task"
	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/store"
	"github.com/josephgoksu/jenos-mcp/types"
)

func newTestServices(t *testing.T) (Services, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	pol := policy.Default()
	private, err := pol.CompilePrivatePatterns()
	if err != nil {
		t.Fatalf("CompilePrivatePatterns() error = %v", err)
	}
	appCtx := app.NewContext(st,
		task.NewService(st),
		safety.NewContentValidator(pol.ForbiddenTerms),
		safety.NewDestinationValidator(private, pol.AllowedHosts),
	)
	appCtx.Transport, appCtx.Port, appCtx.Backend = "http", 3847, "sqlite"
	return NewServices(appCtx), st
}

func call(t *testing.T, d *Dispatcher, tool, caller string, args any) Result {
	t.Helper()
	var raw json.RawMessage
	if args != nil {
		if s, ok := args.(string); ok {
			raw = json.RawMessage(s)
		} else {
			b, err := json.Marshal(args)
			if err != nil {
				t.Fatalf("marshal args: %v", err)
			}
			raw = b
		}
	}
	return d.Dispatch(context.Background(), Invocation{Tool: tool, Arguments: raw, Caller: caller})
}

func decodeEnvelope(t *testing.T, res Result) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		t.Fatalf("envelope %q is not JSON: %v", res.Text, err)
	}
	return out
}

func TestDispatch_UnknownTool(t *testing.T) {
	svc, _ := newTestServices(t)
	limiter := ratelimit.NewSlidingWindow(1, ratelimit.DefaultMaxCallers, time.Minute)
	d := NewDispatcher(svc, WithLimiter(limiter))

	res := call(t, d, "nope", "s1", nil)
	if !res.IsError || res.Outcome != OutcomeUnknownTool {
		t.Fatalf("result = %+v", res)
	}
	if res.Text != `{"error":"Unknown tool: nope","code":"UNKNOWN_TOOL"}` {
		t.Errorf("Text = %s", res.Text)
	}

	// Unknown tools still consume the caller's budget.
	res = call(t, d, string(OpValidateContent), "s1", map[string]string{"text": "hi"})
	if res.Outcome != OutcomeRateLimited {
		t.Errorf("second call outcome = %s, want rate_limited", res.Outcome)
	}
}

func TestDispatch_RateLimit(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	args := map[string]string{"text": "all good"}
	for i := 0; i < 60; i++ {
		if res := call(t, d, string(OpValidateContent), "s1", args); res.IsError {
			t.Fatalf("call %d rejected: %s", i+1, res.Text)
		}
	}
	res := call(t, d, string(OpValidateContent), "s1", args)
	if !res.IsError || res.Code != types.CodeRateLimited {
		t.Fatalf("61st call = %+v", res)
	}
	body := decodeEnvelope(t, res)
	if body["error"] != "Rate limit exceeded. Max 60 requests per minute." {
		t.Errorf("error = %v", body["error"])
	}

	// Another session has its own window.
	if res := call(t, d, string(OpValidateContent), "s2", args); res.IsError {
		t.Errorf("other session rejected: %s", res.Text)
	}
}

func TestDispatch_KeyBy(t *testing.T) {
	tests := []struct {
		name       string
		keyBy      KeyBy
		second     Invocation
		wantSecond Outcome
	}{
		{"session shares across tools", KeySession, Invocation{Tool: string(OpHealthCheck), Caller: "a"}, OutcomeRateLimited},
		{"session isolates sessions", KeySession, Invocation{Tool: string(OpValidateContent), Caller: "b"}, OutcomeOK},
		{"tool shares across sessions", KeyTool, Invocation{Tool: string(OpValidateContent), Caller: "b"}, OutcomeRateLimited},
		{"tool isolates tools", KeyTool, Invocation{Tool: string(OpHealthCheck), Caller: "a"}, OutcomeOK},
		{"session_tool isolates tools", KeySessionTool, Invocation{Tool: string(OpHealthCheck), Caller: "a"}, OutcomeOK},
		{"session_tool same pair", KeySessionTool, Invocation{Tool: string(OpValidateContent), Caller: "a"}, OutcomeRateLimited},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestServices(t)
			d := NewDispatcher(svc,
				WithLimiter(ratelimit.NewSlidingWindow(1, ratelimit.DefaultMaxCallers, time.Minute)),
				WithKeyBy(tt.keyBy),
			)
			first := d.Dispatch(context.Background(), Invocation{
				Tool: string(OpValidateContent), Caller: "a", Arguments: json.RawMessage(`{"text":"ok"}`),
			})
			if first.Outcome != OutcomeOK {
				t.Fatalf("first call = %+v", first)
			}
			if tt.second.Tool == string(OpValidateContent) {
				tt.second.Arguments = json.RawMessage(`{"text":"ok"}`)
			}
			got := d.Dispatch(context.Background(), tt.second)
			if got.Outcome != tt.wantSecond {
				t.Errorf("second outcome = %s, want %s (%s)", got.Outcome, tt.wantSecond, got.Text)
			}
		})
	}
}

func TestDispatch_CreateTaskEnvelope(t *testing.T) {
	svc, st := newTestServices(t)
	d := NewDispatcher(svc)

	res := call(t, d, string(OpCreateTask), "s1", map[string]any{
		"title":   "Write <brief>",
		"type":    "RESEARCH",
		"payload": map[string]string{"topic": "a&b"},
	})
	if res.IsError {
		t.Fatalf("create_task failed: %s", res.Text)
	}
	if !strings.HasPrefix(res.Text, "{\n  \"success\": true,") {
		t.Errorf("envelope not pretty-printed: %q", res.Text)
	}
	if !strings.Contains(res.Text, "Write <brief>") {
		t.Errorf("envelope escaped HTML: %s", res.Text)
	}

	page, err := st.QueryTasks(context.Background(), models.TaskQuery{Status: models.StatusPending, Limit: 10})
	if err != nil {
		t.Fatalf("QueryTasks() error = %v", err)
	}
	if len(page.Tasks) != 1 || page.Tasks[0].Payload != `{"topic":"a&b"}` {
		t.Errorf("stored tasks = %+v", page.Tasks)
	}
}

func TestDispatch_ModerationIsInBand(t *testing.T) {
	svc, st := newTestServices(t)
	d := NewDispatcher(svc)

	res := call(t, d, string(OpCreateArtifact), "s1", map[string]any{
		"name": "Rant", "type": "Essay", "content": "a pathetic failure",
	})
	if res.IsError {
		t.Fatalf("moderation failure reported as tool error: %s", res.Text)
	}
	body := decodeEnvelope(t, res)
	if body["success"] != false || !strings.HasPrefix(body["error"].(string), "Content violates Jen OS safety rules") {
		t.Errorf("envelope = %v", body)
	}
	counts, _ := st.CountRecords(context.Background())
	if counts[store.CollectionArtifacts] != 0 {
		t.Errorf("artifacts = %d, want 0", counts[store.CollectionArtifacts])
	}
}

func TestDispatch_EmptyContentIsValid(t *testing.T) {
	tests := []struct {
		name string
		args any
	}{
		{"empty text", map[string]string{"text": ""}},
		{"missing text", map[string]string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := newTestServices(t)
			res := call(t, NewDispatcher(svc), string(OpValidateContent), "s1", tt.args)
			if res.IsError || res.Outcome != OutcomeOK {
				t.Fatalf("result = %+v", res)
			}
			var body types.ValidateContentResponse
			if err := json.Unmarshal([]byte(res.Text), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !body.IsValid || body.Violations == nil || len(body.Violations) != 0 {
				t.Errorf("body = %+v", body)
			}
			if !strings.Contains(res.Text, `"violations": []`) {
				t.Errorf("violations not rendered as empty array: %s", res.Text)
			}
		})
	}
}

func TestDispatch_InvalidArguments(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	tests := []struct {
		name string
		tool OperationID
		args any
	}{
		{"missing task id", OpClaimTask, map[string]string{"claimed_by": "me"}},
		{"not json", OpClaimTask, `{"task_id":`},
		{"wrong type", OpQueryPendingTasks, `{"limit":"ten"}`},
		{"negative limit type", OpQueryKnowledge, `{"limit":-1.5}`},
		{"missing payload", OpCreateTask, map[string]string{"title": "x", "type": "y"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := call(t, d, string(tt.tool), "s1", tt.args)
			if !res.IsError || res.Code != types.CodeValidation || res.Outcome != OutcomeInvalid {
				t.Errorf("result = %+v", res)
			}
			decodeEnvelope(t, res)
		})
	}
}

func TestDispatch_LimitIsClamped(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	for _, limit := range []int{500, -3} {
		res := call(t, d, string(OpQueryPendingTasks), "s1", map[string]int{"limit": limit})
		if res.IsError {
			t.Errorf("limit %d rejected: %s", limit, res.Text)
		}
	}
}

func TestDispatch_NotFoundIsReported(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	res := call(t, d, string(OpClaimTask), "s1", map[string]string{"task_id": "missing"})
	if !res.IsError || res.Outcome != OutcomeError {
		t.Fatalf("result = %+v", res)
	}
	if res.Code != types.CodeNotFound {
		t.Errorf("Code = %q, want %q", res.Code, types.CodeNotFound)
	}
}

const denyRejects = `package jenos.policy

import rego.v1

deny contains msg if {
    input.tool == "reject_task"
    msg := sprintf("%s may not reject", [input.caller])
}

deny contains "validation is closed" if {
    input.tool == "validate_content"
}
`

func TestDispatch_PolicyRules(t *testing.T) {
	svc, _ := newTestServices(t)
	engine, err := policy.NewEngineWithRules(context.Background(), []*policy.RuleFile{
		{Path: "deny.rego", Name: "deny", Content: denyRejects},
	})
	if err != nil {
		t.Fatalf("NewEngineWithRules() error = %v", err)
	}

	var events []Event
	d := NewDispatcher(svc, WithPolicyEngine(engine), WithObservers(ObserverFunc(func(_ context.Context, e Event) {
		events = append(events, e)
	})))

	res := call(t, d, string(OpRejectTask), "", map[string]string{"task_id": "t1", "reason": "no"})
	if !res.IsError || res.Code != types.CodePolicyViolation || res.Outcome != OutcomeDenied {
		t.Fatalf("result = %+v", res)
	}
	if body := decodeEnvelope(t, res); body["error"] != "Denied by policy: anonymous may not reject" {
		t.Errorf("error = %v", body["error"])
	}
	if len(events) != 1 || events[0].Decision == nil || events[0].Decision.Allowed() {
		t.Errorf("events = %+v", events)
	}

	// Read-only operations never reach the rules.
	if res := call(t, d, string(OpValidateContent), "", map[string]string{"text": "fine"}); res.IsError {
		t.Errorf("read-only op denied: %s", res.Text)
	}
}

func TestDispatch_PanicRecovered(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	op := d.ops[OpValidateURL]
	op.run = func(context.Context, any) (any, error) { panic("boom") }
	d.ops[OpValidateURL] = op

	res := call(t, d, string(OpValidateURL), "s1", map[string]string{"url": "https://github.com"})
	if !res.IsError || res.Outcome != OutcomePanic {
		t.Fatalf("result = %+v", res)
	}
	if res.Text != `{"error":"internal error in validate_url: boom"}` {
		t.Errorf("Text = %s", res.Text)
	}
}

func TestDispatch_UpstreamErrorVerbatim(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	op := d.ops[OpHealthCheck]
	op.run = func(context.Context, any) (any, error) {
		return nil, types.WrapUpstream("health_check", errors.New("Could not find database with ID: abc"))
	}
	d.ops[OpHealthCheck] = op

	res := call(t, d, string(OpHealthCheck), "s1", nil)
	if res.Text != `{"error":"Could not find database with ID: abc","code":"UPSTREAM_FAILURE"}` {
		t.Errorf("Text = %s", res.Text)
	}
}

func TestDispatch_LegacyPrefixAndObservers(t *testing.T) {
	svc, _ := newTestServices(t)

	var mu sync.Mutex
	var events []Event
	obs := ObserverFunc(func(_ context.Context, e Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, e)
	})
	d := NewDispatcher(svc, WithObservers(obs))

	res := call(t, d, "jenos_validate_url", "", map[string]string{"url": "http://localhost:8080"})
	if res.IsError {
		t.Fatalf("prefixed call failed: %s", res.Text)
	}
	body := decodeEnvelope(t, res)
	if body["isValid"] != false || body["message"] != "Blocked: Private IP address (localhost)" {
		t.Errorf("envelope = %v", body)
	}

	if len(events) != 1 {
		t.Fatalf("events = %d, want 1", len(events))
	}
	e := events[0]
	if e.Tool != "jenos_validate_url" || e.Operation != OpValidateURL || e.Caller != AnonymousCaller || e.Outcome != OutcomeOK || e.ID == "" {
		t.Errorf("event = %+v", e)
	}
}

func TestCatalog(t *testing.T) {
	svc, _ := newTestServices(t)
	d := NewDispatcher(svc)

	cat := d.Catalog()
	if len(cat) != 15 {
		t.Fatalf("Catalog() = %d entries, want 15", len(cat))
	}
	readOnly := map[string]bool{}
	for _, info := range cat {
		if info.Description == "" {
			t.Errorf("%s has no description", info.Name)
		}
		if info.ReadOnly {
			readOnly[info.Name] = true
		}
	}
	for _, name := range []string{"query_pending_tasks", "validate_content", "validate_url", "query_knowledge", "health_check"} {
		if !readOnly[name] {
			t.Errorf("%s should be read-only", name)
		}
	}
	if len(readOnly) != 5 {
		t.Errorf("read-only tools = %v", readOnly)
	}
}

func TestResolveOperation(t *testing.T) {
	tests := []struct {
		name   string
		want   OperationID
		wantOK bool
	}{
		{"claim_task", OpClaimTask, true},
		{"jenos_claim_task", OpClaimTask, true},
		{"jenos_", "", false},
		{"Claim_Task", "", false},
		{"jenos_jenos_claim_task", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ResolveOperation(tt.name)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ResolveOperation(%q) = %q, %v", tt.name, got, ok)
			}
		})
	}
}
