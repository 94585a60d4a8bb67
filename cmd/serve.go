package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/josephgoksu/jenos-mcp/internal/logger"
	"github.com/josephgoksu/jenos-mcp/internal/server"
	"github.com/josephgoksu/jenos-mcp/types"
)

const shutdownTimeout = 10 * time.Second

var serveFlags = map[string]string{
	"server.port":                 "port",
	"server.host":                 "host",
	"server.transport":            "transport",
	"store.backend":               "backend",
	"lifecycle.strictTransitions": "strict",
	"log.level":                   "log-level",
	"log.format":                  "log-format",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway over HTTP or stdio",
	Long: `Start the MCP gateway.

The http transport serves the streamable MCP endpoint on /mcp, a JSON tool
surface on /api/tools, /healthz and /metrics. The stdio transport speaks
JSON-RPC on stdin/stdout for a single client; logs go to stderr.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, serveFlags)
		if err != nil {
			return err
		}
		return runServe(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 3847, "HTTP port")
	serveCmd.Flags().String("host", "", "HTTP bind host (default all interfaces)")
	serveCmd.Flags().StringP("transport", "t", "http", "transport: http or stdio")
	serveCmd.Flags().String("backend", "notion", "document store: notion or sqlite")
	serveCmd.Flags().Bool("strict", false, "reject claim/complete/reject from the wrong status")
	serveCmd.Flags().String("log-level", "info", "log level: debug, info, warn, error")
	serveCmd.Flags().String("log-format", "text", "log format: text or json")
}

func runServe(ctx context.Context, cfg *types.AppConfig) error {
	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, os.Stderr)
	if err != nil {
		return err
	}
	logger.SetTransport(cfg.Server.Transport)

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	gw, err := buildGateway(ctx, cfg, afero.NewOsFs(), log)
	if err != nil {
		return err
	}
	defer func() {
		if err := gw.Close(); err != nil {
			log.Warn("shutdown", "error", err)
		}
	}()

	log.Info("Jen OS MCP server starting",
		"version", version,
		"transport", cfg.Server.Transport,
		"backend", cfg.Store.Backend,
		"strict", cfg.Lifecycle.StrictTransitions,
		"policy_rules", gw.rules,
	)
	gw.telemetry.ServerStarted()

	if cfg.Server.Transport == "stdio" {
		return serveStdio(ctx, gw, log)
	}
	return serveHTTP(ctx, cfg, gw, log)
}

func serveStdio(ctx context.Context, gw *gateway, log *slog.Logger) error {
	log.Info("MCP server running on stdio")
	if err := gw.mcpServer.Run(ctx, mcpsdk.NewStdioTransport()); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("stdio transport: %w", err)
	}
	return nil
}

func serveHTTP(ctx context.Context, cfg *types.AppConfig, gw *gateway, log *slog.Logger) error {
	srv := server.New(cfg.Server.Port, gw.dispatcher, gw.mcpServer, gw.services.Health,
		server.WithHost(cfg.Server.Host),
		server.WithLogger(log),
		server.WithMetricsHandler(gw.metrics.Handler()),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins...),
	)

	var wg sync.WaitGroup
	errChan := make(chan error, 1)
	srv.Start(&wg, errChan)

	select {
	case err := <-errChan:
		wg.Wait()
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	wg.Wait()
	return nil
}
