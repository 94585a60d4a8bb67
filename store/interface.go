// Package store defines the contract of the external document store and a
// SQLite implementation of it.
package store

import (
	"context"
	"errors"

	"github.com/josephgoksu/jenos-mcp/models"
)

var (
	// ErrNotFound is returned when a record id does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStatusConflict is returned by conditional writes whose status
	// precondition did not hold at write time.
	ErrStatusConflict = errors.New("status precondition failed")
)

// Collection names, as reported by health checks.
const (
	CollectionRouterTasks     = "routerTasks"
	CollectionArtifacts       = "artifacts"
	CollectionPatterns        = "patterns"
	CollectionSessions        = "sessions"
	CollectionSystemKnowledge = "systemKnowledge"
	CollectionContentQueue    = "contentQueue"
)

// TaskStore persists router tasks. The store is the only system of record:
// callers never cache what it returns.
type TaskStore interface {
	// CreateTask stores a new task and returns it with the store-assigned
	// id and creation time.
	CreateTask(ctx context.Context, task models.Task) (models.Task, error)

	// GetTask fetches a task by id. Unknown ids wrap ErrNotFound.
	GetTask(ctx context.Context, id string) (models.Task, error)

	// UpdateTask applies update unconditionally. Concurrent writers race and
	// the last write wins.
	UpdateTask(ctx context.Context, id string, update models.TaskUpdate) error

	// QueryTasks returns tasks matching q, oldest first, at most q.Limit of
	// them, and whether more exist.
	QueryTasks(ctx context.Context, q models.TaskQuery) (models.TaskPage, error)
}

// ConditionalTaskStore is implemented by stores that can apply an update only
// while the task is in one of the given statuses.
type ConditionalTaskStore interface {
	// UpdateTaskIf fails with ErrStatusConflict when the current status is not
	// in from, and with ErrNotFound when the task does not exist.
	UpdateTaskIf(ctx context.Context, id string, from []models.TaskStatus, update models.TaskUpdate) error
}

// RecordStore persists the create-only records.
type RecordStore interface {
	CreateArtifact(ctx context.Context, a models.Artifact) (models.CreatedRecord, error)
	CreatePattern(ctx context.Context, p models.Pattern) (models.CreatedRecord, error)
	CreateSession(ctx context.Context, s models.Session) (models.CreatedRecord, error)
	QueryKnowledge(ctx context.Context, q models.KnowledgeQuery) ([]models.Knowledge, error)
}

// HealthReport describes store reachability.
type HealthReport struct {
	Reachable   bool
	Collections map[string]bool
	Error       string
}

// DocumentStore is everything the gateway needs from the external store.
type DocumentStore interface {
	TaskStore
	RecordStore

	// Health probes the store and each configured collection.
	Health(ctx context.Context) HealthReport

	// Close releases the store's resources.
	Close() error
}
