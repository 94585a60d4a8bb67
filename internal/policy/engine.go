package policy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/spf13/afero"
)

// RulePackage is the Rego package queried for deny rules.
const RulePackage = "jenos.policy"

const (
	ResultAllow = "allow"
	ResultDeny  = "deny"
)

// Input is the document exposed to rules as `input`.
type Input struct {
	Tool      string         `json:"tool"`
	Caller    string         `json:"caller"`
	Arguments map[string]any `json:"arguments"`
}

// Decision is the outcome of evaluating the rules for one invocation.
type Decision struct {
	DecisionID  string    `json:"decision_id"`
	Result      string    `json:"result"`
	Violations  []string  `json:"violations,omitempty"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Allowed reports whether no rule denied the invocation.
func (d *Decision) Allowed() bool {
	return d.Result != ResultDeny
}

// Engine evaluates optional Rego deny rules. Evaluation is local; rules never
// reach the network. The zero-rule engine allows everything.
type Engine struct {
	rules    []*RuleFile
	prepared *rego.PreparedEvalQuery
}

// NewEngine loads rules from dir and compiles them. An empty or missing
// directory produces an engine with no rules.
func NewEngine(ctx context.Context, fs afero.Fs, dir string) (*Engine, error) {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	rules, err := NewLoader(fs, dir).LoadAll()
	if err != nil {
		return nil, fmt.Errorf("load rules: %w", err)
	}
	return NewEngineWithRules(ctx, rules)
}

// NewEngineWithRules compiles the given rules.
func NewEngineWithRules(ctx context.Context, rules []*RuleFile) (*Engine, error) {
	e := &Engine{rules: rules}
	if len(rules) == 0 {
		return e, nil
	}

	opts := []func(*rego.Rego){
		rego.Query(fmt.Sprintf("data.%s.deny", RulePackage)),
	}
	for _, r := range rules {
		opts = append(opts, rego.Module(r.Path, r.Content))
	}
	pq, err := rego.New(opts...).PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile rules: %w", err)
	}
	e.prepared = &pq
	return e, nil
}

// RuleCount returns the number of loaded rule files.
func (e *Engine) RuleCount() int {
	return len(e.rules)
}

// Evaluate runs the deny rules against input. Violations are sorted so the
// decision is stable across runs.
func (e *Engine) Evaluate(ctx context.Context, input Input) (*Decision, error) {
	decision := &Decision{
		DecisionID:  uuid.New().String(),
		Result:      ResultAllow,
		EvaluatedAt: time.Now().UTC(),
	}
	if e == nil || e.prepared == nil {
		return decision, nil
	}

	rs, err := e.prepared.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return nil, fmt.Errorf("evaluate rules: %w", err)
	}

	var violations []string
	for _, result := range rs {
		for _, expr := range result.Expressions {
			set, ok := expr.Value.([]any)
			if !ok {
				continue
			}
			for _, item := range set {
				if s, ok := item.(string); ok {
					violations = append(violations, s)
				}
			}
		}
	}
	if len(violations) > 0 {
		sort.Strings(violations)
		decision.Result = ResultDeny
		decision.Violations = violations
	}
	return decision, nil
}

// ValidateRule checks that content is valid Rego.
func ValidateRule(ctx context.Context, content string) error {
	_, err := rego.New(
		rego.Query("data"),
		rego.Module("validation.rego", content),
	).PrepareForEval(ctx)
	if err != nil {
		return fmt.Errorf("invalid rule: %w", err)
	}
	return nil
}
