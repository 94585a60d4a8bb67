package app

import (
	"github.com/josephgoksu/jenos-mcp/types"
)

// URLAllowedMessage is reported for a destination that passes every check.
const URLAllowedMessage = "URL is safe and allowed"

// ValidateApp exposes the safety validators as read-only tools.
type ValidateApp struct {
	ctx *Context
}

// NewValidateApp creates a validation application service.
func NewValidateApp(ctx *Context) *ValidateApp {
	return &ValidateApp{ctx: ctx}
}

// Content reports every forbidden term in text.
func (a *ValidateApp) Content(p types.ValidateContentParams) *types.ValidateContentResponse {
	res := a.ctx.Content.Validate(p.Text)
	return &types.ValidateContentResponse{
		IsValid:    res.IsValid,
		Violations: res.Violations,
		Message:    res.Message,
	}
}

// URL checks a destination. A refused URL is a normal result, not an error.
func (a *ValidateApp) URL(p types.ValidateURLParams) *types.ValidateURLResponse {
	if err := a.ctx.Destinations.Validate(p.URL); err != nil {
		return &types.ValidateURLResponse{IsValid: false, URL: p.URL, Message: err.Error()}
	}
	return &types.ValidateURLResponse{IsValid: true, URL: p.URL, Message: URLAllowedMessage}
}
