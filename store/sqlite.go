package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/josephgoksu/jenos-mcp/models"
)

// SQLiteStore implements DocumentStore on a local SQLite database. Unlike the
// Notion backend it supports atomic conditional status writes.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

var _ DocumentStore = (*SQLiteStore)(nil)
var _ ConditionalTaskStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path. Use ":memory:" for
// a throwaway store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		// Applied to every pooled connection, not just the first.
		dsn = path + "?_pragma=busy_timeout(5000)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	s := &SQLiteStore{db: db, path: path, now: func() time.Time { return time.Now().UTC() }}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS tasks (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		title TEXT NOT NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		priority TEXT NOT NULL,
		payload TEXT NOT NULL DEFAULT '',
		target TEXT NOT NULL DEFAULT '',
		claimed_by TEXT NOT NULL DEFAULT '',
		claimed_at TEXT,
		result TEXT NOT NULL DEFAULT '',
		execution_notes TEXT NOT NULL DEFAULT '',
		completed_at TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		content TEXT NOT NULL,
		department TEXT NOT NULL,
		status TEXT NOT NULL,
		tags TEXT NOT NULL DEFAULT '[]',
		created_by TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS patterns (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		description TEXT NOT NULL,
		source TEXT NOT NULL,
		application TEXT NOT NULL DEFAULT '',
		date_captured TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		mode TEXT NOT NULL,
		summary TEXT NOT NULL,
		artifacts TEXT NOT NULL DEFAULT '[]',
		outcome_tag TEXT NOT NULL,
		date TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS knowledge (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		domain TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		source_url TEXT NOT NULL DEFAULT ''
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_status_type ON tasks(status, type);
	CREATE INDEX IF NOT EXISTS idx_knowledge_domain ON knowledge(domain);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// nullTimeString returns nil for a nil time, a timeLayout string otherwise.
func nullTimeString(t *time.Time) interface{} {
	if t == nil || t.IsZero() {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func parseNullTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := time.Parse(timeLayout, ns.String)
	if err != nil {
		return nil
	}
	return &t
}

// === Tasks ===

const taskColumns = `id, title, type, status, priority, payload, target, claimed_by, claimed_at,
	result, execution_notes, completed_at, created_at`

func (s *SQLiteStore) CreateTask(ctx context.Context, t models.Task) (models.Task, error) {
	t.ID = uuid.New().String()
	t.CreatedAt = s.now()
	if t.Status == "" {
		t.Status = models.StatusPending
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.Title, t.Type, t.Status, t.Priority, t.Payload, t.Target, t.ClaimedBy, nullTimeString(t.ClaimedAt),
		t.Result, t.ExecutionNotes, nullTimeString(t.CompletedAt), t.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task %s: %w", t.Title, err)
	}
	return t, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id string) (models.Task, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("get task: %w", err)
	}
	return t, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (models.Task, error) {
	var t models.Task
	var claimedAt, completedAt sql.NullString
	var createdAt string
	err := row.Scan(&t.ID, &t.Title, &t.Type, &t.Status, &t.Priority, &t.Payload, &t.Target, &t.ClaimedBy,
		&claimedAt, &t.Result, &t.ExecutionNotes, &completedAt, &createdAt)
	if err != nil {
		return models.Task{}, err
	}
	t.ClaimedAt = parseNullTime(claimedAt)
	t.CompletedAt = parseNullTime(completedAt)
	t.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	return t, nil
}

// buildTaskUpdate turns the non-nil fields of u into a SET clause.
func buildTaskUpdate(u models.TaskUpdate) (string, []any) {
	var sets []string
	var args []any
	if u.Status != "" {
		sets = append(sets, "status = ?")
		args = append(args, u.Status)
	}
	if u.ClaimedBy != nil {
		sets = append(sets, "claimed_by = ?")
		args = append(args, *u.ClaimedBy)
	}
	if u.ClaimedAt != nil {
		sets = append(sets, "claimed_at = ?")
		args = append(args, nullTimeString(u.ClaimedAt))
	}
	if u.Result != nil {
		sets = append(sets, "result = ?")
		args = append(args, *u.Result)
	}
	if u.ExecutionNotes != nil {
		sets = append(sets, "execution_notes = ?")
		args = append(args, *u.ExecutionNotes)
	}
	if u.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, nullTimeString(u.CompletedAt))
	}
	return strings.Join(sets, ", "), args
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id string, u models.TaskUpdate) error {
	set, args := buildTaskUpdate(u)
	if set == "" {
		return nil
	}
	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+set+` WHERE id = ?`, append(args, id)...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("task %s: %w", id, ErrNotFound)
	}
	return nil
}

// UpdateTaskIf applies u in a single statement guarded by the current status,
// so two concurrent claims cannot both succeed.
func (s *SQLiteStore) UpdateTaskIf(ctx context.Context, id string, from []models.TaskStatus, u models.TaskUpdate) error {
	if len(from) == 0 {
		return fmt.Errorf("task %s: %w", id, ErrStatusConflict)
	}
	set, args := buildTaskUpdate(u)
	if set == "" {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(from)), ", ")
	args = append(args, id)
	for _, st := range from {
		args = append(args, st)
	}

	res, err := s.db.ExecContext(ctx, `UPDATE tasks SET `+set+` WHERE id = ? AND status IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task rows affected: %w", err)
	}
	if affected == 0 {
		var status models.TaskStatus
		err := s.db.QueryRowContext(ctx, `SELECT status FROM tasks WHERE id = ?`, id).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("task %s: %w", id, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("read task status: %w", err)
		}
		return fmt.Errorf("task %s is %s: %w", id, status, ErrStatusConflict)
	}
	return nil
}

func (s *SQLiteStore) QueryTasks(ctx context.Context, q models.TaskQuery) (models.TaskPage, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE 1=1`
	var args []any
	if q.Status != "" {
		query += " AND status = ?"
		args = append(args, q.Status)
	}
	if q.Type != "" {
		query += " AND type = ?"
		args = append(args, q.Type)
	}
	query += " ORDER BY created_at ASC, seq ASC"
	if q.Limit > 0 {
		// One extra row tells us whether another page exists.
		query += fmt.Sprintf(" LIMIT %d", q.Limit+1)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return models.TaskPage{}, fmt.Errorf("query tasks: %w", err)
	}
	defer func() { _ = rows.Close() }()

	page := models.TaskPage{Tasks: []models.Task{}}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return models.TaskPage{}, fmt.Errorf("scan task: %w", err)
		}
		page.Tasks = append(page.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return models.TaskPage{}, err
	}
	if q.Limit > 0 && len(page.Tasks) > q.Limit {
		page.Tasks = page.Tasks[:q.Limit]
		page.HasMore = true
	}
	return page, nil
}

// === Records ===

func (s *SQLiteStore) recordURL(collection, id string) string {
	return fmt.Sprintf("sqlite:%s#%s/%s", s.path, collection, id)
}

func (s *SQLiteStore) CreateArtifact(ctx context.Context, a models.Artifact) (models.CreatedRecord, error) {
	id := uuid.New().String()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	tags, err := json.Marshal(nonNil(a.Tags))
	if err != nil {
		return models.CreatedRecord{}, fmt.Errorf("marshal tags: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO artifacts (id, name, type, content, department, status, tags, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, a.Name, a.Type, a.Content, a.Department, a.Status, string(tags), a.CreatedBy, a.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return models.CreatedRecord{}, fmt.Errorf("insert artifact %s: %w", a.Name, err)
	}
	return models.CreatedRecord{ID: id, URL: s.recordURL(CollectionArtifacts, id)}, nil
}

func (s *SQLiteStore) CreatePattern(ctx context.Context, p models.Pattern) (models.CreatedRecord, error) {
	id := uuid.New().String()
	if p.DateCaptured.IsZero() {
		p.DateCaptured = s.now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO patterns (id, name, type, description, source, application, date_captured)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, p.Name, p.Type, p.Description, p.Source, p.Application, p.DateCaptured.Format(time.DateOnly))
	if err != nil {
		return models.CreatedRecord{}, fmt.Errorf("insert pattern %s: %w", p.Name, err)
	}
	return models.CreatedRecord{ID: id, URL: s.recordURL(CollectionPatterns, id)}, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, ss models.Session) (models.CreatedRecord, error) {
	id := uuid.New().String()
	if ss.Date.IsZero() {
		ss.Date = s.now()
	}
	artifacts, err := json.Marshal(nonNil(ss.Artifacts))
	if err != nil {
		return models.CreatedRecord{}, fmt.Errorf("marshal artifacts: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, title, mode, summary, artifacts, outcome_tag, date)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, ss.Title, ss.Mode, ss.Summary, string(artifacts), ss.OutcomeTag, ss.Date.Format(time.DateOnly))
	if err != nil {
		return models.CreatedRecord{}, fmt.Errorf("insert session %s: %w", ss.Title, err)
	}
	return models.CreatedRecord{ID: id, URL: s.recordURL(CollectionSessions, id)}, nil
}

func (s *SQLiteStore) QueryKnowledge(ctx context.Context, q models.KnowledgeQuery) ([]models.Knowledge, error) {
	query := `SELECT id, name, domain, summary, source_url FROM knowledge`
	var args []any
	if q.Domain != "" {
		query += " WHERE domain = ?"
		args = append(args, q.Domain)
	}
	query += " ORDER BY seq ASC"
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query knowledge: %w", err)
	}
	defer func() { _ = rows.Close() }()

	out := []models.Knowledge{}
	for rows.Next() {
		var k models.Knowledge
		if err := rows.Scan(&k.ID, &k.Name, &k.Domain, &k.Summary, &k.SourceURL); err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

// AddKnowledge inserts a knowledge note. Knowledge is curated outside the
// gateway, so this is used for seeding local stores.
func (s *SQLiteStore) AddKnowledge(ctx context.Context, k models.Knowledge) (string, error) {
	if k.ID == "" {
		k.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO knowledge (id, name, domain, summary, source_url) VALUES (?, ?, ?, ?, ?)
	`, k.ID, k.Name, k.Domain, k.Summary, k.SourceURL)
	if err != nil {
		return "", fmt.Errorf("insert knowledge %s: %w", k.Name, err)
	}
	return k.ID, nil
}

// ListArtifacts returns all artifacts, oldest first.
func (s *SQLiteStore) ListArtifacts(ctx context.Context) ([]models.Artifact, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, type, content, department, status, tags, created_by, created_at
		FROM artifacts ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query artifacts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []models.Artifact
	for rows.Next() {
		var a models.Artifact
		var tags, createdAt string
		if err := rows.Scan(&a.Name, &a.Type, &a.Content, &a.Department, &a.Status, &tags, &a.CreatedBy, &createdAt); err != nil {
			return nil, fmt.Errorf("scan artifact: %w", err)
		}
		_ = json.Unmarshal([]byte(tags), &a.Tags)
		a.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountRecords returns the number of rows in each collection.
func (s *SQLiteStore) CountRecords(ctx context.Context) (map[string]int, error) {
	tables := map[string]string{
		CollectionRouterTasks:     "tasks",
		CollectionArtifacts:       "artifacts",
		CollectionPatterns:        "patterns",
		CollectionSessions:        "sessions",
		CollectionSystemKnowledge: "knowledge",
	}
	out := make(map[string]int, len(tables))
	for name, table := range tables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
			return nil, fmt.Errorf("count %s: %w", table, err)
		}
		out[name] = n
	}
	return out, nil
}

// Health pings the database and checks every table is readable.
func (s *SQLiteStore) Health(ctx context.Context) HealthReport {
	report := HealthReport{Collections: map[string]bool{}}
	if err := s.db.PingContext(ctx); err != nil {
		report.Error = err.Error()
		return report
	}
	report.Reachable = true

	counts, err := s.CountRecords(ctx)
	if err != nil {
		report.Error = err.Error()
	}
	for _, name := range []string{CollectionRouterTasks, CollectionArtifacts, CollectionPatterns, CollectionSessions, CollectionSystemKnowledge} {
		_, ok := counts[name]
		report.Collections[name] = ok
	}
	return report
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
