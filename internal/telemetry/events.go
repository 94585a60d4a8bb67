package telemetry

import "github.com/josephgoksu/jenos-mcp/mcp"

// Event names
const (
	EventServerStarted = "server_started"
	EventToolInvoked   = "tool_invoked"
)

// Properties is an event's own property set, merged over the base ones.
type Properties = map[string]any

// dispatchProperties keeps only what may leave the process: the resolved
// operation, outcome, error code and timing. Unknown tool names are not sent.
func dispatchProperties(e mcp.Event) Properties {
	tool := string(e.Operation)
	if tool == "" {
		tool = "unknown"
	}
	props := Properties{
		"tool":        tool,
		"outcome":     string(e.Outcome),
		"duration_ms": e.Duration.Milliseconds(),
	}
	if e.Code != "" {
		props["code"] = e.Code
	}
	return props
}
