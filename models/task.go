package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// TaskStatus represents the lifecycle state of a router task.
type TaskStatus string

const (
	StatusPending  TaskStatus = "PENDING"
	StatusClaimed  TaskStatus = "CLAIMED"
	StatusDone     TaskStatus = "DONE"
	StatusRejected TaskStatus = "REJECTED"
)

// TaskPriority represents the priority levels of a task.
type TaskPriority string

const (
	PriorityLow    TaskPriority = "LOW"
	PriorityNormal TaskPriority = "NORMAL"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

// MaxFieldLength caps payload, result, notes and other long text fields, in
// Unicode code points.
const MaxFieldLength = 2000

// Task is a router task as held by the external store.
type Task struct {
	ID             string       `json:"id"`
	Title          string       `json:"title" validate:"required"`
	Type           string       `json:"type" validate:"required"`
	Status         TaskStatus   `json:"status" validate:"required,oneof=PENDING CLAIMED DONE REJECTED"`
	Priority       TaskPriority `json:"priority" validate:"required,oneof=LOW NORMAL HIGH URGENT"`
	Payload        string       `json:"payload"`
	Target         string       `json:"target,omitempty"`
	ClaimedBy      string       `json:"claimedBy,omitempty"`
	ClaimedAt      *time.Time   `json:"claimedAt,omitempty"`
	Result         string       `json:"result,omitempty"`
	ExecutionNotes string       `json:"executionNotes,omitempty"`
	CompletedAt    *time.Time   `json:"completedAt,omitempty"`
	CreatedAt      time.Time    `json:"createdAt"`
}

// TaskUpdate is a partial write against a task. Nil fields are left untouched.
type TaskUpdate struct {
	Status         TaskStatus
	ClaimedBy      *string
	ClaimedAt      *time.Time
	Result         *string
	ExecutionNotes *string
	CompletedAt    *time.Time
}

// TaskQuery selects tasks by status and optional type, oldest first.
type TaskQuery struct {
	Status TaskStatus
	Type   string
	Limit  int
}

// TaskPage is one page of a task query.
type TaskPage struct {
	Tasks   []Task
	HasMore bool
}

// transitions lists the allowed moves of the lifecycle. Nothing returns to PENDING.
var transitions = map[TaskStatus][]TaskStatus{
	StatusPending: {StatusClaimed, StatusRejected},
	StatusClaimed: {StatusDone, StatusRejected},
}

// CanTransition reports whether a task may move from one status to another.
func CanTransition(from, to TaskStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Sources returns the statuses from which a task may move to target.
func Sources(target TaskStatus) []TaskStatus {
	var out []TaskStatus
	for _, from := range []TaskStatus{StatusPending, StatusClaimed, StatusDone, StatusRejected} {
		if CanTransition(from, target) {
			out = append(out, from)
		}
	}
	return out
}

// IsTerminal reports whether no further transitions are possible.
func (s TaskStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// ParsePriority normalizes a caller-supplied priority. Empty means NORMAL.
func ParsePriority(s string) (TaskPriority, error) {
	p := TaskPriority(strings.ToUpper(strings.TrimSpace(s)))
	switch p {
	case "":
		return PriorityNormal, nil
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return p, nil
	}
	return "", fmt.Errorf("unknown priority %q (want LOW, NORMAL, HIGH or URGENT)", s)
}

// Truncate cuts s to at most max code points.
func Truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i]
		}
		n++
	}
	return s
}

var validate = validator.New()

// ValidateStruct performs validation on any struct that has validation tags.
func ValidateStruct(s interface{}) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}
	var errorMessages []string
	for _, e := range validationErrors {
		errorMessages = append(errorMessages, fmt.Sprintf("field '%s' failed rule '%s'", e.Field(), e.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(errorMessages, "; "))
}
