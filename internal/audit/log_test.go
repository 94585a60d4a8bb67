package audit

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/josephgoksu/jenos-mcp/internal/policy"
	"github.com/josephgoksu/jenos-mcp/mcp"
)

func TestLog_ObserveAndReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit", "audit.db")
	l, err := Open(path, nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.ObserveDispatch(context.Background(), mcp.Event{
		ID: "e1", Tool: "claim_task", Operation: mcp.OpClaimTask, Caller: "s1",
		Outcome: mcp.OutcomeOK, Duration: 15 * time.Millisecond, At: base,
	})
	l.ObserveDispatch(context.Background(), mcp.Event{
		ID: "e2", Tool: "jenos_reject_task", Operation: mcp.OpRejectTask, Caller: "anonymous",
		Outcome: mcp.OutcomeDenied, Code: "POLICY_VIOLATION", Error: "Denied by policy: no",
		At: base.Add(time.Second),
		Decision: &policy.Decision{DecisionID: "d-1", Result: policy.ResultDeny, Violations: []string{"no"}},
	})
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	reopened, err := Open(path, nil)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	entries, err := reopened.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}

	denied, ok := entries[0], entries[1]
	if denied.ID != "e2" || denied.DecisionID != "d-1" || len(denied.Violations) != 1 || denied.Code != "POLICY_VIOLATION" {
		t.Errorf("newest entry = %+v", denied)
	}
	if ok.ID != "e1" || ok.DurationMS != 15 || !ok.At.Equal(base) || ok.Violations != nil || ok.Operation != "claim_task" {
		t.Errorf("oldest entry = %+v", ok)
	}
}

func TestLog_RecentLimit(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c"} {
		if err := l.Record(context.Background(), Entry{
			ID: id, Tool: "health_check", Caller: "c", Outcome: "ok", At: base.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("Record(%s) error = %v", id, err)
		}
	}

	entries, err := l.Recent(context.Background(), 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != "c" || entries[1].ID != "b" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestLog_DuplicateIDRejected(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = l.Close() })

	e := Entry{ID: "same", Tool: "t", Caller: "c", Outcome: "ok", At: time.Now()}
	if err := l.Record(context.Background(), e); err != nil {
		t.Fatalf("first Record() error = %v", err)
	}
	if err := l.Record(context.Background(), e); err == nil {
		t.Error("duplicate id accepted")
	}
}

func TestLog_ObserveAfterClose(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	for i := 0; i < 3; i++ {
		l.ObserveDispatch(context.Background(), mcp.Event{ID: "late", Tool: "health_check", At: time.Now()})
	}
	if got := l.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}
}

func TestLog_ConcurrentObserveAndClose(t *testing.T) {
	l, err := Open(":memory:", nil)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				l.ObserveDispatch(context.Background(), mcp.Event{
					ID: fmt.Sprintf("e-%d-%d", i, j), Tool: "health_check", At: time.Now(),
				})
			}
		}()
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	wg.Wait()
}
