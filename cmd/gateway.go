package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"

	"github.com/josephgoksu/jenos-mcp/internal/app"
	"github.com/josephgoksu/jenos-mcp/internal/audit"
	"github.com/josephgoksu/jenos-mcp/internal/config"
	"github.com/josephgoksu/jenos-mcp/internal/metrics"
	"github.com/josephgoksu/jenos-mcp/internal/notion"
	"github.com/josephgoksu/jenos-mcp/internal/policy"
	"github.com/josephgoksu/jenos-mcp/internal/ratelimit"
	"github.com/josephgoksu/jenos-mcp/internal/safety"
	"github.com/josephgoksu/jenos-mcp/internal/task"
	"github.com/josephgoksu/jenos-mcp/internal/telemetry"
	"github.com/josephgoksu/jenos-mcp/mcp"
	"github.com/josephgoksu/jenos-mcp/store"
	"github.com/josephgoksu/jenos-mcp/types"
)

// gateway is everything serve wires together from one configuration.
type gateway struct {
	dispatcher *mcp.Dispatcher
	services   mcp.Services
	mcpServer  *mcpsdk.Server
	metrics    *metrics.Collector
	telemetry  *telemetry.Reporter
	rules      int

	closers []func() error
}

// Close releases resources in reverse order of acquisition.
func (g *gateway) Close() error {
	var errs []error
	for _, c := range slices.Backward(g.closers) {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// buildGateway constructs the store, validators, limiter, policy rules and
// observers, and the dispatcher over them. On error everything opened so far
// is closed.
func buildGateway(ctx context.Context, cfg *types.AppConfig, fs afero.Fs, log *slog.Logger) (*gateway, error) {
	g := &gateway{}
	built := false
	defer func() {
		if !built {
			_ = g.Close()
		}
	}()

	pol, err := policy.Load(fs, cfg.Policy.File)
	if err != nil {
		return nil, err
	}
	private, err := pol.CompilePrivatePatterns()
	if err != nil {
		return nil, err
	}

	st, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	g.closers = append(g.closers, st.Close)

	tasks := task.NewService(st, task.WithStrictTransitions(cfg.Lifecycle.StrictTransitions))
	appCtx := app.NewContext(st, tasks,
		safety.NewContentValidator(pol.ForbiddenTerms),
		safety.NewDestinationValidator(private, pol.AllowedHosts),
	)
	appCtx.Transport = cfg.Server.Transport
	appCtx.Port = cfg.Server.Port
	appCtx.Backend = cfg.Store.Backend

	limiter := newLimiter(cfg, pol.MaxRequestsPerMinute, g)

	opts := []mcp.Option{
		mcp.WithLimiter(limiter),
		mcp.WithKeyBy(mcp.KeyBy(cfg.RateLimit.KeyBy)),
		mcp.WithLogger(log),
	}

	if cfg.Policy.RulesDir != "" {
		engine, err := policy.NewEngine(ctx, fs, cfg.Policy.RulesDir)
		if err != nil {
			return nil, err
		}
		g.rules = engine.RuleCount()
		opts = append(opts, mcp.WithPolicyEngine(engine))
	}

	g.metrics = metrics.New()
	opts = append(opts, mcp.WithObservers(g.metrics))

	if cfg.Audit.Path != "" {
		auditLog, err := audit.Open(cfg.Audit.Path, log)
		if err != nil {
			return nil, err
		}
		g.closers = append(g.closers, auditLog.Close)
		opts = append(opts, mcp.WithObservers(auditLog))
	}

	if cfg.Telemetry.PostHogKey != "" {
		if reporter := newTelemetry(cfg, fs, log); reporter != nil {
			g.telemetry = reporter
			g.closers = append(g.closers, reporter.Close)
			opts = append(opts, mcp.WithObservers(reporter))
		}
	}

	g.services = mcp.NewServices(appCtx)
	g.dispatcher = mcp.NewDispatcher(g.services, opts...)
	g.mcpServer = mcp.NewServer(g.dispatcher, version, log)
	built = true
	return g, nil
}

// openStore opens the configured document store backend.
func openStore(cfg *types.AppConfig) (store.DocumentStore, error) {
	switch cfg.Store.Backend {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
				return nil, fmt.Errorf("create data directory: %w", err)
			}
		}
		return store.NewSQLiteStore(path)
	default:
		return notion.New(cfg.Notion.Token, cfg.Notion.Databases)
	}
}

// newLimiter picks the Redis window when an address is configured and the
// in-process window otherwise. A non-zero config ceiling overrides the
// policy's.
func newLimiter(cfg *types.AppConfig, policyLimit int, g *gateway) ratelimit.Limiter {
	limit := cfg.RateLimit.MaxPerMinute
	if limit == 0 {
		limit = policyLimit
	}
	if cfg.RateLimit.RedisAddr == "" {
		return ratelimit.NewSlidingWindow(limit, cfg.RateLimit.MaxCallers, ratelimit.DefaultWindow)
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RateLimit.RedisAddr})
	g.closers = append(g.closers, client.Close)
	return ratelimit.NewRedis(client, limit, cfg.RateLimit.MaxCallers, ratelimit.DefaultWindow)
}

// newTelemetry returns nil when the state cannot be loaded, the operator
// disabled it, or the client fails to start. Telemetry never blocks startup.
func newTelemetry(cfg *types.AppConfig, fs afero.Fs, log *slog.Logger) *telemetry.Reporter {
	state, err := telemetry.Load(fs, config.DataDir(cfg))
	if err != nil {
		log.Warn("telemetry disabled", "error", err)
		return nil
	}
	reporter, err := telemetry.NewReporter(state, telemetry.Options{
		APIKey:      cfg.Telemetry.PostHogKey,
		Endpoint:    cfg.Telemetry.Endpoint,
		Version:     version,
		Transport:   cfg.Server.Transport,
		Backend:     cfg.Store.Backend,
		SampleEvery: cfg.Telemetry.SampleEvery,
	})
	if err != nil {
		log.Warn("telemetry disabled", "error", err)
		return nil
	}
	return reporter
}
