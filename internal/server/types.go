package server

import "github.com/josephgoksu/jenos-mcp/mcp"

// CallerHeader carries the caller identity for the JSON tool endpoint.
const CallerHeader = "X-Caller-ID"

// ToolListResponse is the response for GET /api/tools
type ToolListResponse struct {
	Count int            `json:"count"`
	Tools []mcp.ToolInfo `json:"tools"`
}
