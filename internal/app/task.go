package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/josephgoksu/jenos-mcp/internal/task"
	"github.com/josephgoksu/jenos-mcp/models"
	"github.com/josephgoksu/jenos-mcp/types"
)

// DispatchTaskType is the task type created by dispatch_to_agent.
const DispatchTaskType = "EXECUTE_ACTION"

// TaskApp exposes the task lifecycle as tool results.
type TaskApp struct {
	ctx *Context
}

// NewTaskApp creates a task application service.
func NewTaskApp(ctx *Context) *TaskApp {
	return &TaskApp{ctx: ctx}
}

// QueryPending lists PENDING tasks, oldest first.
func (a *TaskApp) QueryPending(ctx context.Context, p types.QueryPendingTasksParams) (*types.QueryPendingTasksResponse, error) {
	page, err := a.ctx.Tasks.QueryPending(ctx, p.Limit, p.TypeFilter)
	if err != nil {
		return nil, err
	}
	tasks := make([]types.PendingTask, 0, len(page.Tasks))
	for _, t := range page.Tasks {
		pt := types.PendingTask{
			ID:       t.ID,
			Title:    t.Title,
			Type:     t.Type,
			Priority: string(t.Priority),
			Payload:  t.Payload,
		}
		if !t.CreatedAt.IsZero() {
			pt.Created = t.CreatedAt.UTC().Format(time.RFC3339)
		}
		tasks = append(tasks, pt)
	}
	return &types.QueryPendingTasksResponse{Count: len(tasks), HasMore: page.HasMore, Tasks: tasks}, nil
}

// Claim marks a task CLAIMED.
func (a *TaskApp) Claim(ctx context.Context, p types.ClaimTaskParams) (*types.ClaimTaskResponse, error) {
	res, err := a.ctx.Tasks.Claim(ctx, p.TaskID, p.ClaimedBy)
	if err != nil {
		return nil, err
	}
	return &types.ClaimTaskResponse{
		Success:   true,
		TaskID:    res.TaskID,
		ClaimedBy: res.ClaimedBy,
		ClaimedAt: res.ClaimedAt.Format(time.RFC3339Nano),
	}, nil
}

// Complete marks a task DONE.
func (a *TaskApp) Complete(ctx context.Context, p types.CompleteTaskParams) (*types.TaskStatusResponse, error) {
	if err := a.ctx.Tasks.Complete(ctx, p.TaskID, p.Result, p.Notes); err != nil {
		return nil, err
	}
	return &types.TaskStatusResponse{Success: true, TaskID: p.TaskID, Status: string(models.StatusDone)}, nil
}

// Reject marks a task REJECTED.
func (a *TaskApp) Reject(ctx context.Context, p types.RejectTaskParams) (*types.RejectTaskResponse, error) {
	if err := a.ctx.Tasks.Reject(ctx, p.TaskID, p.Reason); err != nil {
		return nil, err
	}
	return &types.RejectTaskResponse{
		Success: true,
		TaskID:  p.TaskID,
		Status:  string(models.StatusRejected),
		Reason:  p.Reason,
	}, nil
}

// Create stores a new PENDING task.
func (a *TaskApp) Create(ctx context.Context, p types.CreateTaskParams) (*types.CreateTaskResponse, error) {
	t, err := a.ctx.Tasks.Create(ctx, task.CreateInput{
		Title:    p.Title,
		Type:     p.Type,
		Payload:  p.Payload,
		Priority: p.Priority,
		Target:   p.Target,
	})
	if err != nil {
		return nil, err
	}
	return &types.CreateTaskResponse{
		Success: true,
		TaskID:  t.ID,
		Title:   t.Title,
		Type:    t.Type,
		Status:  string(t.Status),
	}, nil
}

// Dispatch hands a goal to an agent by creating an EXECUTE_ACTION task
// targeted at it. constraints.priority, when a string, sets the priority.
func (a *TaskApp) Dispatch(ctx context.Context, p types.DispatchToAgentParams) (*types.DispatchToAgentResponse, error) {
	if err := requireFields(field{"agent", p.Agent}, field{"goal", p.Goal}, field{"output_needed", p.OutputNeeded}); err != nil {
		return nil, err
	}
	constraints := p.Constraints
	if constraints == nil {
		constraints = map[string]any{}
	}

	priority := ""
	if raw, ok := constraints["priority"]; ok && raw != nil {
		s, ok := raw.(string)
		if !ok {
			return nil, types.NewValidationError("constraints.priority", fmt.Sprintf("expected a string, got %T", raw))
		}
		priority = strings.TrimSpace(s)
	}

	t, err := a.ctx.Tasks.Create(ctx, task.CreateInput{
		Title:    p.Goal,
		Type:     DispatchTaskType,
		Priority: priority,
		Target:   p.Agent,
		Payload: dispatchPayload{
			TargetAgent:  p.Agent,
			Goal:         p.Goal,
			Constraints:  constraints,
			OutputNeeded: p.OutputNeeded,
			DispatchedAt: a.ctx.now().UTC().Format(time.RFC3339Nano),
		},
	})
	if err != nil {
		return nil, err
	}
	return &types.DispatchToAgentResponse{
		Success: true,
		TaskID:  t.ID,
		Agent:   p.Agent,
		Goal:    p.Goal,
		Message: fmt.Sprintf("Task dispatched to %s. Monitor Router Tasks for completion.", p.Agent),
	}, nil
}

type dispatchPayload struct {
	TargetAgent  string         `json:"target_agent"`
	Goal         string         `json:"goal"`
	Constraints  map[string]any `json:"constraints"`
	OutputNeeded string         `json:"output_needed"`
	DispatchedAt string         `json:"dispatched_at"`
}
