/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

// MCP Tool Parameter Types
//
// Fields without omitempty are required in the generated input schema, and the
// validate tags are enforced again by the dispatcher for callers that bypass MCP.

// QueryPendingTasksParams for listing PENDING tasks
type QueryPendingTasksParams struct {
	Limit      int    `json:"limit,omitempty" jsonschema:"Maximum tasks to return (default 10, max 100)"`
	TypeFilter string `json:"type_filter,omitempty" jsonschema:"Only return tasks of this type"`
}

// ClaimTaskParams for claiming a task
type ClaimTaskParams struct {
	TaskID    string `json:"task_id" jsonschema:"Task ID to claim (required)" validate:"required"`
	ClaimedBy string `json:"claimed_by,omitempty" jsonschema:"Identity of the claiming agent (default mcp-server)"`
}

// CompleteTaskParams for marking a task DONE
type CompleteTaskParams struct {
	TaskID string `json:"task_id" jsonschema:"Task ID to complete (required)" validate:"required"`
	Result string `json:"result" jsonschema:"Result text, truncated to 2000 characters (required)" validate:"required"`
	Notes  string `json:"notes,omitempty" jsonschema:"Execution notes, truncated to 2000 characters"`
}

// RejectTaskParams for marking a task REJECTED
type RejectTaskParams struct {
	TaskID string `json:"task_id" jsonschema:"Task ID to reject (required)" validate:"required"`
	Reason string `json:"reason" jsonschema:"Why the task was rejected (required)" validate:"required"`
}

// CreateTaskParams for creating a router task
type CreateTaskParams struct {
	Title    string `json:"title" jsonschema:"Task title (required)" validate:"required"`
	Type     string `json:"type" jsonschema:"Task type, e.g. EXECUTE_ACTION (required)" validate:"required"`
	Payload  any    `json:"payload" jsonschema:"Structured payload; stored as JSON truncated to 2000 characters (required)" validate:"required"`
	Priority string `json:"priority,omitempty" jsonschema:"LOW, NORMAL, HIGH or URGENT (default NORMAL)"`
	Target   string `json:"target,omitempty" jsonschema:"Agent the task is addressed to"`
}

// CreateArtifactParams for creating a moderated artifact
type CreateArtifactParams struct {
	Name       string   `json:"name" jsonschema:"Artifact name (required)" validate:"required"`
	Type       string   `json:"type" jsonschema:"Artifact type (required)" validate:"required"`
	Content    string   `json:"content" jsonschema:"Artifact body; checked against the content policy (required)" validate:"required"`
	Department string   `json:"department,omitempty" jsonschema:"Owning department (default Jen_OS)"`
	Tags       []string `json:"tags,omitempty" jsonschema:"Tags"`
}

// LogPatternParams for recording a pattern
type LogPatternParams struct {
	Name        string `json:"name" jsonschema:"Pattern name (required)" validate:"required"`
	Type        string `json:"type" jsonschema:"Pattern type (required)" validate:"required"`
	Description string `json:"description" jsonschema:"What was observed (required)" validate:"required"`
	Source      string `json:"source" jsonschema:"Where it was observed (required)" validate:"required"`
	Application string `json:"application,omitempty" jsonschema:"Where it applies"`
}

// LogSessionParams for recording a work session
type LogSessionParams struct {
	Title      string   `json:"title" jsonschema:"Session title (required)" validate:"required"`
	Mode       string   `json:"mode" jsonschema:"Working mode (required)" validate:"required"`
	Summary    string   `json:"summary" jsonschema:"Session summary (required)" validate:"required"`
	Artifacts  []string `json:"artifacts,omitempty" jsonschema:"Artifacts produced in the session"`
	OutcomeTag string   `json:"outcome_tag,omitempty" jsonschema:"Outcome tag (default LEARN)"`
}

// ValidateContentParams for checking text against the content policy
type ValidateContentParams struct {
	Text string `json:"text,omitempty" jsonschema:"Text to check; empty text passes"`
}

// ValidateURLParams for checking a URL against the destination policy
type ValidateURLParams struct {
	URL string `json:"url" jsonschema:"URL to check (required)" validate:"required"`
}

// QueryKnowledgeParams for reading knowledge notes
type QueryKnowledgeParams struct {
	Domain string `json:"domain,omitempty" jsonschema:"Only return notes in this domain"`
	Limit  int    `json:"limit,omitempty" jsonschema:"Maximum notes to return (default 10, max 100)"`
}

// QueueContentDraftParams for queueing a content draft for review
type QueueContentDraftParams struct {
	Title   string   `json:"title" jsonschema:"Draft title (required)" validate:"required"`
	Content string   `json:"content" jsonschema:"Draft body; checked against the content policy (required)" validate:"required"`
	Source  string   `json:"source" jsonschema:"Where the draft came from (required)" validate:"required"`
	Channel string   `json:"channel,omitempty" jsonschema:"Publishing channel (default Substack)"`
	Tags    []string `json:"tags,omitempty" jsonschema:"Extra tags"`
}

// DispatchToAgentParams for handing a goal to an agent via a router task
type DispatchToAgentParams struct {
	Agent        string         `json:"agent" jsonschema:"Target agent (required)" validate:"required"`
	Goal         string         `json:"goal" jsonschema:"What the agent should achieve (required)" validate:"required"`
	Constraints  map[string]any `json:"constraints,omitempty" jsonschema:"Constraints; priority is honoured"`
	OutputNeeded string         `json:"output_needed" jsonschema:"Expected output (required)" validate:"required"`
}

// LogDeltaParams for recording a learning delta
type LogDeltaParams struct {
	Description string `json:"description" jsonschema:"What changed (required)" validate:"required"`
	Domain      string `json:"domain" jsonschema:"Domain the delta applies to (required)" validate:"required"`
	Source      string `json:"source,omitempty" jsonschema:"Origin (default MCP Server)"`
}

// HealthCheckParams takes no arguments.
type HealthCheckParams struct{}

// MCP Response Types

// PendingTask is the public view of a PENDING task.
type PendingTask struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Type     string `json:"type"`
	Priority string `json:"priority"`
	Payload  string `json:"payload"`
	Created  string `json:"created,omitempty"`
}

// QueryPendingTasksResponse lists a page of PENDING tasks
type QueryPendingTasksResponse struct {
	Count   int           `json:"count"`
	HasMore bool          `json:"has_more"`
	Tasks   []PendingTask `json:"tasks"`
}

// ClaimTaskResponse for claim_task
type ClaimTaskResponse struct {
	Success   bool   `json:"success"`
	TaskID    string `json:"task_id"`
	ClaimedBy string `json:"claimed_by"`
	ClaimedAt string `json:"claimed_at"`
}

// TaskStatusResponse for complete_task
type TaskStatusResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
}

// RejectTaskResponse for reject_task
type RejectTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Status  string `json:"status"`
	Reason  string `json:"reason"`
}

// CreateTaskResponse for create_task
type CreateTaskResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Title   string `json:"title"`
	Type    string `json:"type"`
	Status  string `json:"status"`
}

// CreateArtifactResponse for create_artifact. A moderation failure is
// reported in-band with Success=false rather than as a tool error.
type CreateArtifactResponse struct {
	Success    bool   `json:"success"`
	ArtifactID string `json:"artifact_id,omitempty"`
	Name       string `json:"name,omitempty"`
	URL        string `json:"url,omitempty"`
	Error      string `json:"error,omitempty"`
}

// LogPatternResponse for log_pattern and log_delta
type LogPatternResponse struct {
	Success   bool   `json:"success"`
	PatternID string `json:"pattern_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Error     string `json:"error,omitempty"`
}

// LogSessionResponse for log_session
type LogSessionResponse struct {
	Success    bool   `json:"success"`
	SessionID  string `json:"session_id,omitempty"`
	Title      string `json:"title,omitempty"`
	OutcomeTag string `json:"outcome_tag,omitempty"`
	Error      string `json:"error,omitempty"`
}

// ValidateContentResponse for validate_content
type ValidateContentResponse struct {
	IsValid    bool     `json:"isValid"`
	Violations []string `json:"violations"`
	Message    string   `json:"message"`
}

// ValidateURLResponse for validate_url
type ValidateURLResponse struct {
	IsValid bool   `json:"isValid"`
	URL     string `json:"url"`
	Message string `json:"message"`
}

// KnowledgeEntry is the public view of a knowledge note.
type KnowledgeEntry struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Domain  string `json:"domain,omitempty"`
	Summary string `json:"summary"`
	Source  string `json:"source,omitempty"`
}

// QueryKnowledgeResponse for query_knowledge
type QueryKnowledgeResponse struct {
	Count     int              `json:"count"`
	Knowledge []KnowledgeEntry `json:"knowledge"`
}

// QueueContentDraftResponse for queue_content_draft
type QueueContentDraftResponse struct {
	CreateArtifactResponse
	Channel string `json:"channel,omitempty"`
	Status  string `json:"status,omitempty"`
}

// DispatchToAgentResponse for dispatch_to_agent
type DispatchToAgentResponse struct {
	Success bool   `json:"success"`
	TaskID  string `json:"task_id"`
	Agent   string `json:"agent"`
	Goal    string `json:"goal"`
	Message string `json:"message"`
}

// HealthChecks details each probe run by health_check.
type HealthChecks struct {
	Server    bool            `json:"server"`
	Store     bool            `json:"store"`
	Databases map[string]bool `json:"databases"`
	Error     string          `json:"error,omitempty"`
}

// HealthCheckResponse for health_check
type HealthCheckResponse struct {
	Status    string       `json:"status"`
	Transport string       `json:"transport"`
	Port      int          `json:"port"`
	Backend   string       `json:"backend"`
	Checks    HealthChecks `json:"checks"`
}

// ErrorResponse is the body of every error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
