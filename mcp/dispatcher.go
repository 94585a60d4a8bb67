// Package mcp is the gateway in front of every tool: it rate limits, resolves
// and guards each invocation, runs it and wraps the outcome in a uniform
// envelope. It also registers the tools with an MCP server.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/josephgoksu/jenos-mcp/internal/policy"
	"github.com/josephgoksu/jenos-mcp/internal/ratelimit"
	"github.com/josephgoksu/jenos-mcp/types"
)

// KeyBy selects what the rate limiter buckets on.
type KeyBy string

const (
	KeySession     KeyBy = "session"
	KeyTool        KeyBy = "tool"
	KeySessionTool KeyBy = "session_tool"
)

// AnonymousCaller is the caller key used when the transport supplies none.
const AnonymousCaller = "anonymous"

// Outcome classifies how a dispatch ended.
type Outcome string

const (
	OutcomeOK          Outcome = "ok"
	OutcomeError       Outcome = "error"
	OutcomeRateLimited Outcome = "rate_limited"
	OutcomeUnknownTool Outcome = "unknown_tool"
	OutcomeDenied      Outcome = "denied"
	OutcomeInvalid     Outcome = "invalid"
	OutcomePanic       Outcome = "panic"
)

// Invocation is one inbound tool call.
type Invocation struct {
	Tool      string
	Arguments json.RawMessage
	Caller    string
}

// Result is the envelope returned for every invocation. Text is always
// well-formed JSON.
type Result struct {
	Text    string
	IsError bool
	Code    string
	Outcome Outcome
}

// Event describes a finished dispatch for observers.
type Event struct {
	ID        string
	Tool      string
	Caller    string
	Outcome   Outcome
	Code      string
	Error     string
	Duration  time.Duration
	At        time.Time
	Decision  *policy.Decision
	Operation OperationID
}

// Observer is notified after every dispatch. Observers must not block.
type Observer interface {
	ObserveDispatch(ctx context.Context, e Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, e Event)

func (f ObserverFunc) ObserveDispatch(ctx context.Context, e Event) { f(ctx, e) }

// Dispatcher routes invocations through the gateway pipeline:
// rate limit, resolve, policy rules, argument validation, invoke, envelope.
// It holds no state of its own beyond its collaborators.
type Dispatcher struct {
	ops       map[OperationID]operation
	limiter   ratelimit.Limiter
	rules     *policy.Engine
	keyBy     KeyBy
	logger    *slog.Logger
	observers []Observer
	now       func() time.Time
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithLimiter sets the rate limiter. Without one, a 60/minute in-process
// sliding window is used.
func WithLimiter(l ratelimit.Limiter) Option {
	return func(d *Dispatcher) { d.limiter = l }
}

// WithPolicyEngine enables Rego deny rules for mutating operations.
func WithPolicyEngine(e *policy.Engine) Option {
	return func(d *Dispatcher) { d.rules = e }
}

// WithKeyBy selects the rate limiter bucket key.
func WithKeyBy(k KeyBy) Option {
	return func(d *Dispatcher) {
		if k != "" {
			d.keyBy = k
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = l }
}

// WithObservers adds dispatch observers.
func WithObservers(obs ...Observer) Option {
	return func(d *Dispatcher) { d.observers = append(d.observers, obs...) }
}

// WithClock overrides the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// NewDispatcher creates a dispatcher over the given services.
func NewDispatcher(svc Services, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		ops:    operationTable(svc),
		keyBy:  KeySession,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.limiter == nil {
		d.limiter = ratelimit.NewSlidingWindow(60, ratelimit.DefaultMaxCallers, ratelimit.DefaultWindow)
	}
	return d
}

// Dispatch runs one invocation. It never panics and never returns a
// malformed envelope.
func (d *Dispatcher) Dispatch(ctx context.Context, inv Invocation) Result {
	start := d.now()
	ev := Event{ID: uuid.New().String(), Tool: inv.Tool, Caller: inv.Caller, At: start.UTC()}
	if ev.Caller == "" {
		ev.Caller = AnonymousCaller
	}

	res, err := d.dispatch(ctx, inv, ev.Caller, &ev)
	if err != nil {
		res = errorResult(err)
		if ev.Outcome == "" {
			ev.Outcome = OutcomeError
		}
		res.Outcome = ev.Outcome
		ev.Code = res.Code
		ev.Error = err.Error()
	} else {
		ev.Outcome = OutcomeOK
		res.Outcome = OutcomeOK
	}
	ev.Duration = d.now().Sub(start)

	d.log(ctx, ev)
	for _, o := range d.observers {
		o.ObserveDispatch(ctx, ev)
	}
	return res
}

func (d *Dispatcher) dispatch(ctx context.Context, inv Invocation, caller string, ev *Event) (Result, error) {
	decision := d.limiter.Allow(ctx, d.callerKey(caller, inv.Tool))
	if !decision.Allowed {
		ev.Outcome = OutcomeRateLimited
		return Result{}, types.NewMCPError(types.CodeRateLimited,
			fmt.Sprintf("Rate limit exceeded. Max %d requests per minute.", decision.Limit),
			map[string]interface{}{"reset_at": decision.ResetAt})
	}

	id, ok := ResolveOperation(inv.Tool)
	if !ok {
		ev.Outcome = OutcomeUnknownTool
		return Result{}, types.NewMCPError(types.CodeUnknownTool, fmt.Sprintf("Unknown tool: %s", inv.Tool), nil)
	}
	ev.Operation = id
	op := d.ops[id]

	if !op.readOnly && d.rules != nil && d.rules.RuleCount() > 0 {
		if err := d.guard(ctx, id, caller, inv.Arguments, ev); err != nil {
			return Result{}, err
		}
	}

	args, err := op.decode(inv.Arguments)
	if err != nil {
		ev.Outcome = OutcomeInvalid
		return Result{}, err
	}

	out, err := d.invoke(ctx, op, args, ev)
	if err != nil {
		return Result{}, err
	}

	text, err := encodeEnvelope(out, true)
	if err != nil {
		return Result{}, fmt.Errorf("encode result: %w", err)
	}
	return Result{Text: text}, nil
}

// guard evaluates the Rego deny rules. Evaluation failures deny.
func (d *Dispatcher) guard(ctx context.Context, id OperationID, caller string, raw json.RawMessage, ev *Event) error {
	arguments := map[string]any{}
	if len(bytes.TrimSpace(raw)) > 0 && !bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		if err := json.Unmarshal(raw, &arguments); err != nil {
			ev.Outcome = OutcomeInvalid
			return types.NewValidationError("arguments", err.Error())
		}
	}

	decision, err := d.rules.Evaluate(ctx, policy.Input{Tool: string(id), Caller: caller, Arguments: arguments})
	if err != nil {
		ev.Outcome = OutcomeDenied
		return types.NewMCPError(types.CodePolicyViolation, err.Error(), nil)
	}
	ev.Decision = decision
	if !decision.Allowed() {
		ev.Outcome = OutcomeDenied
		return types.NewMCPError(types.CodePolicyViolation,
			"Denied by policy: "+strings.Join(decision.Violations, "; "),
			map[string]interface{}{"decision_id": decision.DecisionID})
	}
	return nil
}

// invoke runs the operation, turning a panic into an error.
func (d *Dispatcher) invoke(ctx context.Context, op operation, args any, ev *Event) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			ev.Outcome = OutcomePanic
			d.logger.ErrorContext(ctx, "operation panicked", "tool", op.id, "panic", r)
			out, err = nil, fmt.Errorf("internal error in %s: %v", op.id, r)
		}
	}()
	return op.run(ctx, args)
}

func (d *Dispatcher) callerKey(caller, tool string) string {
	switch d.keyBy {
	case KeyTool:
		return tool
	case KeySessionTool:
		return caller + ":" + tool
	default:
		return caller
	}
}

func (d *Dispatcher) log(ctx context.Context, ev Event) {
	attrs := []any{
		"tool", ev.Tool,
		"caller", ev.Caller,
		"outcome", string(ev.Outcome),
		"duration", ev.Duration,
	}
	if ev.Outcome == OutcomeOK {
		d.logger.DebugContext(ctx, "tool call", attrs...)
		return
	}
	attrs = append(attrs, "code", ev.Code, "error", ev.Error)
	d.logger.WarnContext(ctx, "tool call failed", attrs...)
}

// Catalog describes every registered tool.
func (d *Dispatcher) Catalog() []ToolInfo {
	out := make([]ToolInfo, 0, len(d.ops))
	for _, id := range Operations() {
		op := d.ops[id]
		out = append(out, ToolInfo{Name: string(id), Description: op.description, ReadOnly: op.readOnly})
	}
	return out
}

// ToolInfo is one catalog entry.
type ToolInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	ReadOnly    bool   `json:"readOnly"`
}

func errorResult(err error) Result {
	body := types.ErrorResponse{Error: err.Error()}
	var mcpErr *types.MCPError
	if errors.As(err, &mcpErr) {
		body.Code = mcpErr.Code
	}
	text, encErr := encodeEnvelope(body, false)
	if encErr != nil {
		text = `{"error":"internal error"}`
	}
	return Result{Text: text, IsError: true, Code: body.Code}
}

// encodeEnvelope renders v as JSON without HTML escaping, indented when
// pretty is set.
func encodeEnvelope(v any, pretty bool) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
