package app

import (
	"context"

	"github.com/josephgoksu/jenos-mcp/types"
)

// Health statuses.
const (
	StatusHealthy  = "healthy"
	StatusDegraded = "degraded"
)

// HealthApp probes the external store.
type HealthApp struct {
	ctx *Context
}

// NewHealthApp creates a health application service.
func NewHealthApp(ctx *Context) *HealthApp {
	return &HealthApp{ctx: ctx}
}

// Check reports healthy when the store is reachable and degraded otherwise.
// Unreachable collections are listed but do not degrade the status.
func (a *HealthApp) Check(ctx context.Context) *types.HealthCheckResponse {
	report := a.ctx.Store.Health(ctx)

	checks := types.HealthChecks{
		Server:    true,
		Store:     report.Reachable,
		Databases: report.Collections,
		Error:     report.Error,
	}
	if checks.Databases == nil {
		checks.Databases = map[string]bool{}
	}

	status := StatusDegraded
	if report.Reachable {
		status = StatusHealthy
	}
	return &types.HealthCheckResponse{
		Status:    status,
		Transport: a.ctx.Transport,
		Port:      a.ctx.Port,
		Backend:   a.ctx.Backend,
		Checks:    checks,
	}
}
