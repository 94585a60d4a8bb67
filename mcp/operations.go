package mcp

import "strings"

// OperationID names one tool of the gateway. The set is closed: every value
// has exactly one entry in the dispatcher's operation table.
type OperationID string

const (
	OpQueryPendingTasks OperationID = "query_pending_tasks"
	OpClaimTask         OperationID = "claim_task"
	OpCompleteTask      OperationID = "complete_task"
	OpRejectTask        OperationID = "reject_task"
	OpCreateTask        OperationID = "create_task"
	OpCreateArtifact    OperationID = "create_artifact"
	OpLogPattern        OperationID = "log_pattern"
	OpLogSession        OperationID = "log_session"
	OpValidateContent   OperationID = "validate_content"
	OpValidateURL       OperationID = "validate_url"
	OpQueryKnowledge    OperationID = "query_knowledge"
	OpQueueContentDraft OperationID = "queue_content_draft"
	OpDispatchToAgent   OperationID = "dispatch_to_agent"
	OpLogDelta          OperationID = "log_delta"
	OpHealthCheck       OperationID = "health_check"
)

// LegacyPrefix is accepted in front of any operation name.
const LegacyPrefix = "jenos_"

// Operations returns every operation in catalog order.
func Operations() []OperationID {
	return []OperationID{
		OpQueryPendingTasks, OpClaimTask, OpCompleteTask, OpRejectTask, OpCreateTask,
		OpCreateArtifact, OpLogPattern, OpLogSession, OpValidateContent, OpValidateURL,
		OpQueryKnowledge, OpQueueContentDraft, OpDispatchToAgent, OpLogDelta, OpHealthCheck,
	}
}

// IsValid checks if id is a known operation.
func (id OperationID) IsValid() bool {
	switch id {
	case OpQueryPendingTasks, OpClaimTask, OpCompleteTask, OpRejectTask, OpCreateTask,
		OpCreateArtifact, OpLogPattern, OpLogSession, OpValidateContent, OpValidateURL,
		OpQueryKnowledge, OpQueueContentDraft, OpDispatchToAgent, OpLogDelta, OpHealthCheck:
		return true
	}
	return false
}

// ResolveOperation maps an external tool name to its operation. Names are
// matched exactly, with or without LegacyPrefix.
func ResolveOperation(name string) (OperationID, bool) {
	id := OperationID(strings.TrimPrefix(name, LegacyPrefix))
	if !id.IsValid() {
		return "", false
	}
	return id, true
}
