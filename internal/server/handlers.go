package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/josephgoksu/jenos-mcp/internal/app"
	"github.com/josephgoksu/jenos-mcp/mcp"
	"github.com/josephgoksu/jenos-mcp/types"
)

// handleListTools
func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	tools := s.dispatcher.Catalog()
	writeAPIJSON(w, http.StatusOK, ToolListResponse{Count: len(tools), Tools: tools})
}

// handleCallTool runs one invocation. The body is the argument object; the
// response body is the dispatcher envelope unchanged.
func (s *Server) handleCallTool(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAPIJSON(w, http.StatusRequestEntityTooLarge, types.ErrorResponse{Error: "request body too large", Code: types.CodeValidation})
			return
		}
		writeAPIJSON(w, http.StatusBadRequest, types.ErrorResponse{Error: "invalid request body", Code: types.CodeValidation})
		return
	}

	res := s.dispatcher.Dispatch(r.Context(), mcp.Invocation{
		Tool:      r.PathValue("name"),
		Arguments: body,
		Caller:    callerFromRequest(r),
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusFor(res))
	_, _ = io.WriteString(w, res.Text)
}

// handleHealth
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())
	status := http.StatusOK
	if report.Status != app.StatusHealthy {
		status = http.StatusServiceUnavailable
	}
	writeAPIJSON(w, status, report)
}

// callerFromRequest prefers the explicit caller header and falls back to the
// remote host.
func callerFromRequest(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get(CallerHeader)); id != "" {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func statusFor(res mcp.Result) int {
	if !res.IsError {
		return http.StatusOK
	}
	switch res.Code {
	case types.CodeRateLimited:
		return http.StatusTooManyRequests
	case types.CodeUnknownTool, types.CodeNotFound:
		return http.StatusNotFound
	case types.CodeValidation:
		return http.StatusBadRequest
	case types.CodePolicyViolation:
		return http.StatusForbidden
	case types.CodeStaleTransition:
		return http.StatusConflict
	case types.CodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeAPIJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
