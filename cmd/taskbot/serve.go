package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskbot/internal/agent"
	"taskbot/internal/config"
	"taskbot/internal/httpapi"
	"taskbot/internal/logging"
	"taskbot/internal/metrics"
)

const (
	mcpStreamPath   = "/mcp/stream"
	shutdownTimeout = 10 * time.Second
)

func newServeCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the REST API and the MCP HTTP endpoints",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	api := httpapi.NewServer(httpapi.Deps{
		Store:             a.store,
		Accounts:          a.accounts,
		Tasks:             a.tasks,
		Authn:             a.authn,
		Agent:             a.facade,
		Logger:            a.log,
		Metrics:           a.metrics,
		MCPStream:         agent.NewStreamableHandler(a.mcpServer(), mcpStreamPath),
		SerializeRequests: cfg.SerializeRequests,
	})

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 2)
	go func() {
		a.log.Info("taskbot listening",
			"addr", cfg.ListenAddr(),
			"environment", cfg.Environment,
			"serialize_requests", cfg.SerializeRequests,
		)
		errCh <- httpServer.ListenAndServe()
	}()

	var metricsServer *metrics.Server
	if cfg.MetricsAddr != "" {
		metricsServer = metrics.NewServer(cfg.MetricsAddr, a.metrics)
		go func() { errCh <- metricsServer.Start() }()
	}

	select {
	case <-ctx.Done():
		a.log.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server error", logging.Err(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	return httpServer.Shutdown(shutdownCtx)
}
