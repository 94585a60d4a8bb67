/*
Copyright © 2025 Joseph Goksu josephgoksu@gmail.com
*/
package types

import "fmt"

// Error codes carried by MCPError. They are part of the tool contract:
// clients branch on them, so treat renames as breaking changes.
const (
	CodePolicyViolation = "POLICY_VIOLATION"
	CodeRateLimited     = "RATE_LIMITED"
	CodeUnknownTool     = "UNKNOWN_TOOL"
	CodeUpstream        = "UPSTREAM_FAILURE"
	CodeValidation      = "VALIDATION_FAILED"
	CodeStaleTransition = "STALE_TRANSITION"
	CodeNotFound        = "NOT_FOUND"
)

// Sentinels for errors.Is. Only the Code is compared.
var (
	ErrPolicyViolation = &MCPError{Code: CodePolicyViolation}
	ErrRateLimited     = &MCPError{Code: CodeRateLimited}
	ErrUnknownTool     = &MCPError{Code: CodeUnknownTool}
	ErrUpstream        = &MCPError{Code: CodeUpstream}
	ErrValidation      = &MCPError{Code: CodeValidation}
	ErrStaleTransition = &MCPError{Code: CodeStaleTransition}
	ErrNotFound        = &MCPError{Code: CodeNotFound}
)

// MCPError provides structured error information for MCP responses
type MCPError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	cause   error
}

func (e *MCPError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return e.Message
}

// Is reports whether target is an MCPError with the same code.
func (e *MCPError) Is(target error) bool {
	t, ok := target.(*MCPError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Unwrap exposes the underlying cause, if any.
func (e *MCPError) Unwrap() error {
	return e.cause
}

// NewMCPError creates a new structured MCP error
func NewMCPError(code string, message string, details map[string]interface{}) *MCPError {
	return &MCPError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// WrapUpstream marks err as a failure of the external store. The message is
// kept verbatim so callers see exactly what the store reported.
func WrapUpstream(op string, err error) *MCPError {
	return &MCPError{
		Code:    CodeUpstream,
		Message: err.Error(),
		Details: map[string]interface{}{"operation": op},
		cause:   err,
	}
}

// NewValidationError reports a malformed argument.
func NewValidationError(field, message string) *MCPError {
	return NewMCPError(CodeValidation, fmt.Sprintf("invalid %s: %s", field, message), map[string]interface{}{
		"field": field,
	})
}
