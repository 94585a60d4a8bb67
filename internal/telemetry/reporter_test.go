package telemetry

import (
	"context"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/posthog/posthog-go"

	"github.com/josephgoksu/jenos-mcp/mcp"
)

type recordingSink struct {
	mu     sync.Mutex
	events []posthog.Capture
	closed int
}

func (s *recordingSink) Enqueue(msg posthog.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := msg.(posthog.Capture); ok {
		s.events = append(s.events, c)
	}
	return nil
}

func (s *recordingSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *recordingSink) captured() []posthog.Capture {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]posthog.Capture(nil), s.events...)
}

func newTestReporter(every int) (*Reporter, *recordingSink) {
	s := &recordingSink{}
	return newReporter(s, "anon-123", Options{
		Version: "2.0.0", Transport: "stdio", Backend: "notion", SampleEvery: every,
	}), s
}

func TestReporter_BaseProperties(t *testing.T) {
	r, s := newTestReporter(1)
	r.ServerStarted()
	r.ObserveDispatch(context.Background(), mcp.Event{Operation: mcp.OpHealthCheck, Outcome: mcp.OutcomeOK})

	events := s.captured()
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Event != EventServerStarted || events[1].Event != EventToolInvoked {
		t.Errorf("events = %q, %q", events[0].Event, events[1].Event)
	}
	for _, e := range events {
		p := e.Properties
		if e.DistinctId != "anon-123" {
			t.Errorf("distinct id = %q", e.DistinctId)
		}
		if p["server_version"] != "2.0.0" || p["transport"] != "stdio" || p["backend"] != "notion" {
			t.Errorf("%s base properties = %v", e.Event, p)
		}
		if p["os"] != runtime.GOOS || p["arch"] != runtime.GOARCH {
			t.Errorf("%s platform properties = %v", e.Event, p)
		}
		if p["$process_person_profile"] != false {
			t.Errorf("%s person profiles enabled", e.Event)
		}
	}
}

func TestReporter_DispatchProperties(t *testing.T) {
	tests := []struct {
		name     string
		event    mcp.Event
		wantTool string
		wantCode any
	}{
		{
			"success",
			mcp.Event{Tool: "jenos_claim_task", Operation: mcp.OpClaimTask, Caller: "secret-session", Outcome: mcp.OutcomeOK, Duration: 30 * time.Millisecond},
			"claim_task", nil,
		},
		{
			"unknown tool name is not sent",
			mcp.Event{Tool: "drop_tables", Caller: "secret-session", Outcome: mcp.OutcomeUnknownTool, Code: "UNKNOWN_TOOL"},
			"unknown", "UNKNOWN_TOOL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, s := newTestReporter(1)
			r.ObserveDispatch(context.Background(), tt.event)

			events := s.captured()
			if len(events) != 1 {
				t.Fatalf("events = %d", len(events))
			}
			props := events[0].Properties
			if props["tool"] != tt.wantTool || props["outcome"] != string(tt.event.Outcome) {
				t.Errorf("props = %v", props)
			}
			if props["code"] != tt.wantCode {
				t.Errorf("code = %v, want %v", props["code"], tt.wantCode)
			}
			if props["duration_ms"] != tt.event.Duration.Milliseconds() {
				t.Errorf("duration_ms = %v", props["duration_ms"])
			}
			for _, key := range []string{"caller", "arguments"} {
				if _, ok := props[key]; ok {
					t.Errorf("%s must not be sent", key)
				}
			}
		})
	}
}

func TestReporter_SamplesSuccessPerOperation(t *testing.T) {
	r, s := newTestReporter(3)
	ctx := context.Background()

	for i := 0; i < 7; i++ {
		r.ObserveDispatch(ctx, mcp.Event{Operation: mcp.OpHealthCheck, Outcome: mcp.OutcomeOK})
	}
	r.ObserveDispatch(ctx, mcp.Event{Operation: mcp.OpClaimTask, Outcome: mcp.OutcomeOK})
	for i := 0; i < 2; i++ {
		r.ObserveDispatch(ctx, mcp.Event{Operation: mcp.OpHealthCheck, Outcome: mcp.OutcomeRateLimited, Code: "RATE_LIMITED"})
	}

	counts := map[string]int{}
	for _, e := range s.captured() {
		key := e.Properties["tool"].(string) + "/" + e.Properties["outcome"].(string)
		counts[key]++
		if e.Properties["outcome"] == string(mcp.OutcomeOK) && e.Properties["sample_every"] != 3 {
			t.Errorf("sample_every = %v", e.Properties["sample_every"])
		}
	}
	want := map[string]int{
		"health_check/ok":           3, // calls 1, 4 and 7
		"claim_task/ok":             1,
		"health_check/rate_limited": 2,
	}
	for k, n := range want {
		if counts[k] != n {
			t.Errorf("%s = %d, want %d (all: %v)", k, counts[k], n, counts)
		}
	}
}

func TestReporter_Close(t *testing.T) {
	r, s := newTestReporter(1)
	if err := r.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := r.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
	if s.closed != 1 {
		t.Errorf("sink closed %d times, want 1", s.closed)
	}

	r.ServerStarted()
	r.ObserveDispatch(context.Background(), mcp.Event{Operation: mcp.OpHealthCheck, Outcome: mcp.OutcomeOK})
	if n := len(s.captured()); n != 0 {
		t.Errorf("events after Close = %d", n)
	}
}

func TestNewReporter_Disabled(t *testing.T) {
	tests := []struct {
		name  string
		state *Config
		key   string
	}{
		{"no key", &Config{Enabled: true, AnonymousID: "a"}, ""},
		{"turned off", &Config{Enabled: false, AnonymousID: "a"}, "phc_key"},
		{"no state", nil, "phc_key"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := NewReporter(tt.state, Options{APIKey: tt.key})
			if err != nil || r != nil {
				t.Fatalf("NewReporter() = %v, %v; want nil, nil", r, err)
			}
			// A nil reporter is usable.
			r.ServerStarted()
			r.ObserveDispatch(context.Background(), mcp.Event{})
			if err := r.Close(); err != nil {
				t.Errorf("Close() error = %v", err)
			}
		})
	}
}
