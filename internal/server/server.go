// Package server is the HTTP transport: the streamable MCP endpoint plus a
// small JSON surface over the same dispatcher.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/josephgoksu/jenos-mcp/internal/app"
	"github.com/josephgoksu/jenos-mcp/mcp"
)

// maxBodyBytes bounds a tool call request body.
const maxBodyBytes = 1 << 20

type Server struct {
	dispatcher *mcp.Dispatcher
	health     *app.HealthApp
	mcpServer  *mcpsdk.Server
	metrics    http.Handler
	logger     *slog.Logger
	origins    map[string]struct{}
	host       string
	port       int
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithMetricsHandler serves h on GET /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithHost binds the listener to host instead of every interface.
func WithHost(host string) Option {
	return func(s *Server) { s.host = host }
}

// WithAllowedOrigins enables CORS for the given browser origins.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) {
		for _, o := range origins {
			if o != "" {
				s.origins[o] = struct{}{}
			}
		}
	}
}

// New creates an HTTP server on port. mcpServer may be nil, in which case
// /mcp is not served.
func New(port int, d *mcp.Dispatcher, mcpServer *mcpsdk.Server, health *app.HealthApp, opts ...Option) *Server {
	s := &Server{
		dispatcher: d,
		health:     health,
		mcpServer:  mcpServer,
		logger:     slog.New(slog.DiscardHandler),
		origins:    map[string]struct{}{},
		port:       port,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.server = &http.Server{
		Addr:              net.JoinHostPort(s.host, strconv.Itoa(port)),
		Handler:           s.registerRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the root handler, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves in the background. Listener failures are sent on errChan.
func (s *Server) Start(wg *sync.WaitGroup, errChan chan<- error) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.logger.Info("HTTP server listening", "addr", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- fmt.Errorf("http server: %w", err)
		}
	}()
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
