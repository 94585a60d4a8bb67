// Package app provides the application layer behind every tool.
// MCP handlers, the HTTP JSON surface and the CLI are thin adapters over it.
package app

import (
	"time"

	"github.com/josephgoksu/jenos-mcp/internal/safety"
	"github.com/josephgoksu/jenos-mcp/internal/task"
	"github.com/josephgoksu/jenos-mcp/store"
)

// Context holds shared dependencies for all app services. It is built once at
// startup and passed down explicitly.
type Context struct {
	Store        store.DocumentStore
	Tasks        *task.Service
	Content      *safety.ContentValidator
	Destinations *safety.DestinationValidator

	// Reported by health_check.
	Transport string
	Port      int
	Backend   string

	now func() time.Time
}

// NewContext creates an app context over st. When tasks is nil a default
// task service over st is used.
func NewContext(st store.DocumentStore, tasks *task.Service, content *safety.ContentValidator, dest *safety.DestinationValidator) *Context {
	if tasks == nil {
		tasks = task.NewService(st)
	}
	return &Context{
		Store:        st,
		Tasks:        tasks,
		Content:      content,
		Destinations: dest,
		now:          time.Now,
	}
}

// WithClock overrides the time source used for record timestamps.
func (c *Context) WithClock(now func() time.Time) *Context {
	c.now = now
	return c
}
