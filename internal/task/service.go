// Package task implements the router task lifecycle:
// PENDING -> CLAIMED -> DONE | REJECTED.
package task

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/store"
	"github.com/josephgoksu/jenos-mcp/types"
)

// Service drives task state transitions against the external store. It keeps
// no task state of its own and never retries a failed store call.
//
// By default claim, complete and reject write unconditionally and the store's
// last write wins. With strict transitions enabled each write is guarded by
// the allowed source statuses; stores implementing
// store.ConditionalTaskStore do this atomically, others read then write.
type Service struct {
	store  store.TaskStore
	strict bool
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithStrictTransitions enables status preconditions on every transition.
func WithStrictTransitions(strict bool) Option {
	return func(s *Service) { s.strict = strict }
}

// WithClock overrides the time source used for claim and completion stamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a task service over st.
func NewService(st store.TaskStore, opts ...Option) *Service {
	s := &Service{store: st, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Strict reports whether transitions are guarded.
func (s *Service) Strict() bool { return s.strict }

// CreateInput is the caller-supplied part of a new task.
type CreateInput struct {
	Title    string
	Type     string
	Payload  any
	Priority string
	Target   string
}

// Create stores a new PENDING task. The payload is JSON-encoded and silently
// cut to models.MaxFieldLength code points.
func (s *Service) Create(ctx context.Context, in CreateInput) (models.Task, error) {
	if strings.TrimSpace(in.Title) == "" {
		return models.Task{}, types.NewValidationError("title", "title is required")
	}
	if strings.TrimSpace(in.Type) == "" {
		return models.Task{}, types.NewValidationError("type", "type is required")
	}
	if in.Payload == nil {
		return models.Task{}, types.NewValidationError("payload", "payload is required")
	}
	priority, err := models.ParsePriority(in.Priority)
	if err != nil {
		return models.Task{}, types.NewValidationError("priority", err.Error())
	}
	encoded, err := encodePayload(in.Payload)
	if err != nil {
		return models.Task{}, types.NewValidationError("payload", err.Error())
	}

	t := models.Task{
		Title:    in.Title,
		Type:     in.Type,
		Status:   models.StatusPending,
		Priority: priority,
		Payload:  models.Truncate(encoded, models.MaxFieldLength),
		Target:   in.Target,
	}
	if err := models.ValidateStruct(t); err != nil {
		return models.Task{}, types.NewMCPError(types.CodeValidation, err.Error(), nil)
	}

	created, err := s.store.CreateTask(ctx, t)
	if err != nil {
		return models.Task{}, upstream("create_task", err)
	}
	return created, nil
}

// ClaimResult reports a successful claim.
type ClaimResult struct {
	TaskID    string
	ClaimedBy string
	ClaimedAt time.Time
}

// Claim marks a task CLAIMED by claimedBy (default models.DefaultClaimant).
func (s *Service) Claim(ctx context.Context, id, claimedBy string) (ClaimResult, error) {
	if err := requireID(id); err != nil {
		return ClaimResult{}, err
	}
	if strings.TrimSpace(claimedBy) == "" {
		claimedBy = models.DefaultClaimant
	}
	now := s.now().UTC()
	err := s.transition(ctx, "claim_task", id, models.TaskUpdate{
		Status:    models.StatusClaimed,
		ClaimedBy: &claimedBy,
		ClaimedAt: &now,
	})
	if err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{TaskID: id, ClaimedBy: claimedBy, ClaimedAt: now}, nil
}

// Complete marks a task DONE, storing result and notes truncated to
// models.MaxFieldLength code points each.
func (s *Service) Complete(ctx context.Context, id, result, notes string) error {
	if err := requireID(id); err != nil {
		return err
	}
	if result == "" {
		return types.NewValidationError("result", "result is required")
	}
	result = models.Truncate(result, models.MaxFieldLength)
	notes = models.Truncate(notes, models.MaxFieldLength)
	now := s.now().UTC()
	return s.transition(ctx, "complete_task", id, models.TaskUpdate{
		Status:         models.StatusDone,
		Result:         &result,
		ExecutionNotes: &notes,
		CompletedAt:    &now,
	})
}

// Reject marks a task REJECTED, keeping the reason as execution notes.
func (s *Service) Reject(ctx context.Context, id, reason string) error {
	if err := requireID(id); err != nil {
		return err
	}
	if reason == "" {
		return types.NewValidationError("reason", "reason is required")
	}
	notes := models.Truncate(reason, models.MaxFieldLength)
	now := s.now().UTC()
	return s.transition(ctx, "reject_task", id, models.TaskUpdate{
		Status:         models.StatusRejected,
		ExecutionNotes: &notes,
		CompletedAt:    &now,
	})
}

// QueryPending lists PENDING tasks, oldest first, optionally of one type.
func (s *Service) QueryPending(ctx context.Context, limit int, typeFilter string) (models.TaskPage, error) {
	page, err := s.store.QueryTasks(ctx, models.TaskQuery{
		Status: models.StatusPending,
		Type:   typeFilter,
		Limit:  models.ClampLimit(limit),
	})
	if err != nil {
		return models.TaskPage{}, upstream("query_pending_tasks", err)
	}
	return page, nil
}

func (s *Service) transition(ctx context.Context, op, id string, u models.TaskUpdate) error {
	if !s.strict {
		if err := s.store.UpdateTask(ctx, id, u); err != nil {
			return upstream(op, err)
		}
		return nil
	}

	from := models.Sources(u.Status)
	if cs, ok := s.store.(store.ConditionalTaskStore); ok {
		if err := cs.UpdateTaskIf(ctx, id, from, u); err != nil {
			return upstream(op, err)
		}
		return nil
	}

	// Read-then-write: a concurrent writer can still slip in between.
	current, err := s.store.GetTask(ctx, id)
	if err != nil {
		return upstream(op, err)
	}
	if !models.CanTransition(current.Status, u.Status) {
		return upstream(op, fmt.Errorf("task %s is %s: %w", id, current.Status, store.ErrStatusConflict))
	}
	if err := s.store.UpdateTask(ctx, id, u); err != nil {
		return upstream(op, err)
	}
	return nil
}

// encodePayload renders payload as compact JSON without HTML escaping.
func encodePayload(payload any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func requireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return types.NewValidationError("task_id", "task_id is required")
	}
	return nil
}

// upstream classifies a store error, keeping its message verbatim.
func upstream(op string, err error) error {
	mcpErr := types.WrapUpstream(op, err)
	switch {
	case errors.Is(err, store.ErrStatusConflict):
		mcpErr.Code = types.CodeStaleTransition
	case errors.Is(err, store.ErrNotFound):
		mcpErr.Code = types.CodeNotFound
	}
	return mcpErr
}
