package server

import (
	"net/http"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// registerRoutes sets up all endpoints
func (s *Server) registerRoutes() http.Handler {
	mux := http.NewServeMux()

	if s.mcpServer != nil {
		streamable := mcpsdk.NewStreamableHTTPHandler(func(*http.Request) *mcpsdk.Server {
			return s.mcpServer
		}, nil)
		mux.Handle("/mcp", streamable)
	}

	mux.HandleFunc("GET /api/tools", s.handleListTools)
	mux.HandleFunc("POST /api/tools/{name}", s.handleCallTool)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics)
	}

	return s.logMiddleware(s.corsMiddleware(mux))
}
