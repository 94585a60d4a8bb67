// Package audit keeps an append-only SQLite record of every tool invocation
// and the policy decision that applied to it.
package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/josephgoksu/jenos-mcp/mcp"
)

// queueSize bounds entries waiting to be written.
const queueSize = 256

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// Entry is one audited invocation.
type Entry struct {
	ID         string    `json:"id"`
	Tool       string    `json:"tool"`
	Operation  string    `json:"operation,omitempty"`
	Caller     string    `json:"caller"`
	Outcome    string    `json:"outcome"`
	Code       string    `json:"code,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	At         time.Time `json:"at"`
	DecisionID string    `json:"decision_id,omitempty"`
	Violations []string  `json:"violations,omitempty"`
}

// EntryFromEvent converts a dispatch event to an audit entry.
func EntryFromEvent(e mcp.Event) Entry {
	entry := Entry{
		ID:         e.ID,
		Tool:       e.Tool,
		Operation:  string(e.Operation),
		Caller:     e.Caller,
		Outcome:    string(e.Outcome),
		Code:       e.Code,
		Error:      e.Error,
		DurationMS: e.Duration.Milliseconds(),
		At:         e.At,
	}
	if e.Decision != nil {
		entry.DecisionID = e.Decision.DecisionID
		entry.Violations = e.Decision.Violations
	}
	return entry
}

// Log writes entries in the background. It implements mcp.Observer; when the
// queue is full or the log is closed, entries are dropped and counted rather
// than blocking the dispatcher.
type Log struct {
	db      *sql.DB
	logger  *slog.Logger
	queue   chan Entry
	dropped atomic.Int64
	wg      sync.WaitGroup
	once    sync.Once

	mu     sync.RWMutex // guards closed and sends on queue
	closed bool
}

// Open opens (or creates) the audit database at path and starts the writer.
func Open(path string, logger *slog.Logger) (*Log, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create audit directory: %w", err)
		}
	}

	dsn := path
	if path != ":memory:" {
		dsn = path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id          TEXT PRIMARY KEY,
			tool        TEXT NOT NULL,
			operation   TEXT NOT NULL DEFAULT '',
			caller      TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			code        TEXT NOT NULL DEFAULT '',
			error       TEXT NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL,
			at          TEXT NOT NULL,
			decision_id TEXT NOT NULL DEFAULT '',
			violations  TEXT NOT NULL DEFAULT '[]'
		);
		CREATE INDEX IF NOT EXISTS idx_audit_at ON audit_log(at);
	`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init audit schema: %w", err)
	}

	l := &Log{db: db, logger: logger, queue: make(chan Entry, queueSize)}
	l.wg.Add(1)
	go l.run()
	return l, nil
}

func (l *Log) run() {
	defer l.wg.Done()
	for entry := range l.queue {
		if err := l.Record(context.Background(), entry); err != nil {
			l.logger.Warn("audit write failed", "id", entry.ID, "error", err)
		}
	}
}

// ObserveDispatch implements mcp.Observer.
func (l *Log) ObserveDispatch(_ context.Context, e mcp.Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.dropped.Add(1)
		return
	}
	select {
	case l.queue <- EntryFromEvent(e):
	default:
		l.dropped.Add(1)
	}
}

// Dropped returns how many entries were discarded because the queue was full
// or the log was already closed.
func (l *Log) Dropped() int64 {
	return l.dropped.Load()
}

// Record writes one entry synchronously.
func (l *Log) Record(ctx context.Context, e Entry) error {
	violations, err := json.Marshal(nonNil(e.Violations))
	if err != nil {
		return fmt.Errorf("marshal violations: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO audit_log (id, tool, operation, caller, outcome, code, error, duration_ms, at, decision_id, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Tool, e.Operation, e.Caller, e.Outcome, e.Code, e.Error, e.DurationMS,
		e.At.UTC().Format(timeLayout), e.DecisionID, string(violations))
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, tool, operation, caller, outcome, code, error, duration_ms, at, decision_id, violations
		FROM audit_log ORDER BY at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Entry
	for rows.Next() {
		var (
			e          Entry
			at         string
			violations string
		)
		if err := rows.Scan(&e.ID, &e.Tool, &e.Operation, &e.Caller, &e.Outcome, &e.Code, &e.Error,
			&e.DurationMS, &at, &e.DecisionID, &violations); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.At, err = time.Parse(timeLayout, at); err != nil {
			return nil, fmt.Errorf("parse audit time %q: %w", at, err)
		}
		if err := json.Unmarshal([]byte(violations), &e.Violations); err != nil {
			return nil, fmt.Errorf("parse violations: %w", err)
		}
		if len(e.Violations) == 0 {
			e.Violations = nil
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close drains queued entries and closes the database.
func (l *Log) Close() error {
	var err error
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		close(l.queue)
		l.mu.Unlock()
		l.wg.Wait()
		err = l.db.Close()
	})
	return err
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
