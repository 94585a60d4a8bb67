package app

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/josephgoksu/jenos-mcp/internal/policy"
	"github.com/josephgoksu/jenos-mcp/internal/safety"
	"github.com/josephgoksu/jenos-mcp/internal/task"
	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/store"
	"github.com/josephgoksu/jenos-mcp/types"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestContext(t *testing.T) (*Context, *store.SQLiteStore) {
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
	clock := func() time.Time { return testNow }
	ctx := NewContext(st,
		task.NewService(st, task.WithClock(clock)),
		safety.NewContentValidator(pol.ForbiddenTerms),
		safety.NewDestinationValidator(private, pol.AllowedHosts),
	).WithClock(clock)
	ctx.Transport, ctx.Port, ctx.Backend = "http", 3847, "sqlite"
	return ctx, st
}

func TestRecordApp_CreateArtifact(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	res, err := records.CreateArtifact(ctx, types.CreateArtifactParams{
		Name: "Weekly letter", Type: "Essay", Content: "Focus on leverage.", Tags: []string{"letters"},
	})
	if err != nil {
		t.Fatalf("CreateArtifact() error = %v", err)
	}
	if !res.Success || res.ArtifactID == "" || res.URL == "" || res.Name != "Weekly letter" {
		t.Errorf("CreateArtifact() = %+v", res)
	}

	arts, _ := st.ListArtifacts(ctx)
	if len(arts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(arts))
	}
	a := arts[0]
	if a.Department != models.DefaultDepartment || a.Status != models.DefaultArtifactStatus || a.CreatedBy != models.DefaultCreatedBy {
		t.Errorf("defaults not applied: %+v", a)
	}
}

func TestRecordApp_CreateArtifactModerationBlocksWrite(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	res, err := records.CreateArtifact(ctx, types.CreateArtifactParams{
		Name: "Rant", Type: "Essay", Content: "What a Pathetic failure",
	})
	if err != nil {
		t.Fatalf("CreateArtifact() error = %v", err)
	}
	if res.Success {
		t.Fatal("moderated content must not succeed")
	}
	if res.Error != "Content violates Jen OS safety rules. Forbidden words found: failure, pathetic" {
		t.Errorf("Error = %q", res.Error)
	}

	counts, _ := st.CountRecords(ctx)
	if counts[store.CollectionArtifacts] != 0 {
		t.Errorf("moderation failure wrote %d artifacts", counts[store.CollectionArtifacts])
	}
}

func TestRecordApp_CreateArtifactValidation(t *testing.T) {
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	_, err := records.CreateArtifact(context.Background(), types.CreateArtifactParams{Name: "x", Type: "y"})
	if !errors.Is(err, types.ErrValidation) {
		t.Fatalf("error = %v, want validation failure", err)
	}
	counts, _ := st.CountRecords(context.Background())
	if counts[store.CollectionArtifacts] != 0 {
		t.Error("validation failure must not write")
	}
}

func TestRecordApp_CreateArtifactTruncatesContent(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	if _, err := records.CreateArtifact(ctx, types.CreateArtifactParams{
		Name: "Long", Type: "Essay", Content: strings.Repeat("a", 2500),
	}); err != nil {
		t.Fatalf("CreateArtifact() error = %v", err)
	}
	arts, _ := st.ListArtifacts(ctx)
	if n := len(arts[0].Content); n != models.MaxFieldLength {
		t.Errorf("content length = %d, want %d", n, models.MaxFieldLength)
	}
}

func TestRecordApp_QueueContentDraft(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	res, err := records.QueueContentDraft(ctx, types.QueueContentDraftParams{
		Title: "Hooks that work", Content: "Open with tension.", Source: "notes", Channel: "LinkedIn", Tags: []string{"hooks"},
	})
	if err != nil {
		t.Fatalf("QueueContentDraft() error = %v", err)
	}
	if !res.Success || res.Channel != "LinkedIn" || res.Status != DraftStatus {
		t.Errorf("QueueContentDraft() = %+v", res)
	}

	arts, _ := st.ListArtifacts(ctx)
	if len(arts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(arts))
	}
	a := arts[0]
	if a.Type != DraftType || a.Department != DraftDepartment {
		t.Errorf("draft attributes = %s / %s", a.Type, a.Department)
	}
	if a.Content != "Source: notes\nChannel: LinkedIn\n\nOpen with tension." {
		t.Errorf("Content = %q", a.Content)
	}
	if strings.Join(a.Tags, ",") != "content-queue,linkedin,hooks" {
		t.Errorf("Tags = %v", a.Tags)
	}
}

func TestRecordApp_QueueContentDraftDefaultsAndModeration(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	res, _ := records.QueueContentDraft(ctx, types.QueueContentDraftParams{Title: "t", Content: "fine", Source: "s"})
	if res.Channel != DefaultChannel {
		t.Errorf("Channel = %q, want %s", res.Channel, DefaultChannel)
	}

	blocked, err := records.QueueContentDraft(ctx, types.QueueContentDraftParams{Title: "t", Content: "you loser", Source: "s"})
	if err != nil {
		t.Fatalf("QueueContentDraft() error = %v", err)
	}
	if blocked.Success || blocked.Error == "" || blocked.Status != "" {
		t.Errorf("blocked draft = %+v", blocked)
	}
	counts, _ := st.CountRecords(ctx)
	if counts[store.CollectionArtifacts] != 1 {
		t.Errorf("artifacts = %d, want 1", counts[store.CollectionArtifacts])
	}
}

func TestRecordApp_LogPatternAndSession(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	pat, err := records.LogPattern(ctx, types.LogPatternParams{Name: "Batching", Type: "Workflow", Description: "Batch similar work", Source: "retro"})
	if err != nil || !pat.Success || pat.PatternID == "" {
		t.Fatalf("LogPattern() = %+v, %v", pat, err)
	}

	blocked, err := records.LogPattern(ctx, types.LogPatternParams{Name: "n", Type: "t", Description: "stupid idea", Source: "s"})
	if err != nil || blocked.Success {
		t.Errorf("moderated pattern = %+v, %v", blocked, err)
	}

	sess, err := records.LogSession(ctx, types.LogSessionParams{Title: "Morning", Mode: "DEEP", Summary: "Wrote two drafts"})
	if err != nil || !sess.Success || sess.OutcomeTag != models.DefaultOutcomeTag {
		t.Fatalf("LogSession() = %+v, %v", sess, err)
	}

	counts, _ := st.CountRecords(ctx)
	if counts[store.CollectionPatterns] != 1 || counts[store.CollectionSessions] != 1 {
		t.Errorf("CountRecords() = %v", counts)
	}
}

func TestDeltaName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"short", "Delta: short..."},
		{strings.Repeat("x", 50), "Delta: " + strings.Repeat("x", 50) + "..."},
		{strings.Repeat("y", 80), "Delta: " + strings.Repeat("y", 50) + "..."},
		{strings.Repeat("ü", 60), "Delta: " + strings.Repeat("ü", 50) + "..."},
	}
	for _, tt := range tests {
		if got := DeltaName(tt.in); got != tt.want {
			t.Errorf("DeltaName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRecordApp_LogDelta(t *testing.T) {
	appCtx, _ := newTestContext(t)
	records := NewRecordApp(appCtx)

	res, err := records.LogDelta(context.Background(), types.LogDeltaParams{Description: "Shorter hooks convert better", Domain: "Writing"})
	if err != nil {
		t.Fatalf("LogDelta() error = %v", err)
	}
	if !res.Success || res.Name != "Delta: Shorter hooks convert better..." {
		t.Errorf("LogDelta() = %+v", res)
	}
}

func TestRecordApp_QueryKnowledge(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	records := NewRecordApp(appCtx)

	_, _ = st.AddKnowledge(ctx, models.Knowledge{Name: "Focus", Domain: "Productivity", Summary: "Blocks"})
	_, _ = st.AddKnowledge(ctx, models.Knowledge{Domain: "Writing", Summary: "Hooks", SourceURL: "https://notion.so/x"})

	res, err := records.QueryKnowledge(ctx, types.QueryKnowledgeParams{})
	if err != nil {
		t.Fatalf("QueryKnowledge() error = %v", err)
	}
	if res.Count != 2 || res.Knowledge[1].Name != "Untitled" || res.Knowledge[1].Source != "https://notion.so/x" {
		t.Errorf("QueryKnowledge() = %+v", res)
	}

	writing, _ := records.QueryKnowledge(ctx, types.QueryKnowledgeParams{Domain: "Writing"})
	if writing.Count != 1 {
		t.Errorf("domain filter count = %d", writing.Count)
	}
}

func TestTaskApp_Lifecycle(t *testing.T) {
	ctx := context.Background()
	appCtx, _ := newTestContext(t)
	tasks := NewTaskApp(appCtx)

	created, err := tasks.Create(ctx, types.CreateTaskParams{Title: "Research", Type: "RESEARCH", Payload: map[string]any{"q": "x"}})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if created.Status != "PENDING" {
		t.Errorf("Status = %s", created.Status)
	}

	pending, _ := tasks.QueryPending(ctx, types.QueryPendingTasksParams{})
	if pending.Count != 1 || pending.Tasks[0].ID != created.TaskID || pending.Tasks[0].Priority != "NORMAL" {
		t.Fatalf("QueryPending() = %+v", pending)
	}

	claim, err := tasks.Claim(ctx, types.ClaimTaskParams{TaskID: created.TaskID})
	if err != nil {
		t.Fatalf("Claim() error = %v", err)
	}
	if claim.ClaimedBy != models.DefaultClaimant || claim.ClaimedAt != "2025-06-01T12:00:00Z" {
		t.Errorf("Claim() = %+v", claim)
	}

	done, err := tasks.Complete(ctx, types.CompleteTaskParams{TaskID: created.TaskID, Result: "ok"})
	if err != nil || done.Status != "DONE" {
		t.Fatalf("Complete() = %+v, %v", done, err)
	}

	pending, _ = tasks.QueryPending(ctx, types.QueryPendingTasksParams{})
	if pending.Count != 0 || pending.Tasks == nil {
		t.Errorf("after completion pending = %+v", pending)
	}
}

func TestTaskApp_Dispatch(t *testing.T) {
	ctx := context.Background()
	appCtx, st := newTestContext(t)
	tasks := NewTaskApp(appCtx)

	res, err := tasks.Dispatch(ctx, types.DispatchToAgentParams{
		Agent: "writer", Goal: "Draft launch post", OutputNeeded: "markdown",
		Constraints: map[string]any{"priority": "high", "words": 400},
	})
	if err != nil {
		t.Fatalf("Dispatch() error = %v", err)
	}
	if res.Message != "Task dispatched to writer. Monitor Router Tasks for completion." {
		t.Errorf("Message = %q", res.Message)
	}

	got, err := st.GetTask(ctx, res.TaskID)
	if err != nil {
		t.Fatalf("GetTask() error = %v", err)
	}
	if got.Type != DispatchTaskType || got.Priority != models.PriorityHigh || got.Target != "writer" || got.Title != "Draft launch post" {
		t.Errorf("dispatched task = %+v", got)
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(got.Payload), &payload); err != nil {
		t.Fatalf("payload is not JSON: %v", err)
	}
	if payload["target_agent"] != "writer" || payload["output_needed"] != "markdown" || payload["dispatched_at"] != "2025-06-01T12:00:00Z" {
		t.Errorf("payload = %v", payload)
	}

	_, err = tasks.Dispatch(ctx, types.DispatchToAgentParams{
		Agent: "writer", Goal: "g", OutputNeeded: "o", Constraints: map[string]any{"priority": 3},
	})
	if !errors.Is(err, types.ErrValidation) {
		t.Errorf("non-string priority error = %v", err)
	}
}

func TestValidateApp(t *testing.T) {
	appCtx, _ := newTestContext(t)
	v := NewValidateApp(appCtx)

	tests := []struct {
		url     string
		valid   bool
		message string
	}{
		{"https://api.notion.com/v1/pages", true, URLAllowedMessage},
		{"http://127.0.0.1/admin", false, "Blocked: Private IP address (127.0.0.1)"},
		{"https://example.com", false, "Blocked: Host not in allowlist (example.com)"},
		{"ftp://api.github.com/x", false, "Blocked: Invalid protocol (ftp:)"},
	}
	for _, tt := range tests {
		res := v.URL(types.ValidateURLParams{URL: tt.url})
		if res.IsValid != tt.valid || res.Message != tt.message || res.URL != tt.url {
			t.Errorf("URL(%q) = %+v", tt.url, res)
		}
	}

	content := v.Content(types.ValidateContentParams{Text: "all good"})
	if !content.IsValid || content.Violations == nil {
		t.Errorf("Content() = %+v", content)
	}
}

func TestHealthApp_Check(t *testing.T) {
	appCtx, st := newTestContext(t)
	health := NewHealthApp(appCtx)

	res := health.Check(context.Background())
	if res.Status != StatusHealthy || !res.Checks.Server || !res.Checks.Store {
		t.Fatalf("Check() = %+v", res)
	}
	if res.Transport != "http" || res.Port != 3847 || res.Backend != "sqlite" {
		t.Errorf("Check() metadata = %+v", res)
	}
	if !res.Checks.Databases[store.CollectionRouterTasks] {
		t.Errorf("Databases = %v", res.Checks.Databases)
	}

	_ = st.Close()
	res = health.Check(context.Background())
	if res.Status != StatusDegraded || res.Checks.Store || res.Checks.Error == "" {
		t.Errorf("closed store Check() = %+v", res)
	}
}
