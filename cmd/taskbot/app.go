package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"taskbot/internal/agent"
	"taskbot/internal/auth"
	"taskbot/internal/config"
	"taskbot/internal/logging"
	"taskbot/internal/metrics"
	"taskbot/internal/service"
	"taskbot/internal/store"
	"taskbot/internal/store/memory"
	"taskbot/internal/store/postgres"
	"taskbot/internal/store/retrying"
	"taskbot/internal/store/sqlite"

	mcpserver "github.com/mark3labs/mcp-go/server"
)

// app holds the collaborators shared by the serve and mcp commands.
type app struct {
	cfg      config.Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	store    store.Store
	accounts *service.AccountService
	tasks    *service.TaskService
	authn    *auth.Authenticator
	facade   *agent.Facade
}

func newApp(cfg config.Config) (*app, error) {
	// stdout belongs to the MCP stdio transport, so logs always go to stderr.
	log := logging.New(os.Stderr, cfg.Environment, cfg.LogLevel)
	slog.SetDefault(log)

	a := &app{cfg: cfg, log: log, metrics: metrics.New()}

	backend, err := openStore(cfg, log)
	if err != nil {
		return nil, err
	}
	a.store = retrying.New(backend, cfg.RetryAttempts, cfg.RetryDelay,
		retrying.WithLogger(log),
		retrying.WithMetrics(a.metrics),
	)

	key, err := auth.SigningKey(cfg.JWTSecret)
	if err != nil {
		a.store.Close()
		return nil, err
	}
	if cfg.JWTSecret == "" {
		log.Warn("JWT_SECRET not set, using a random signing key; tokens will not survive a restart")
	}
	issuer := auth.NewIssuer(key, cfg.TokenTTL)

	a.accounts = service.NewAccountService(a.store, auth.NewHasher(cfg.BcryptCost), issuer)
	a.tasks = service.NewTaskService(a.store, service.TaskOptions{
		DefaultStatus: cfg.DefaultTaskStatus,
		Policy:        cfg.UpdatePolicy,
	})
	a.authn = auth.NewAuthenticator(issuer, a.store)
	a.facade = agent.New(a.tasks, a.authn,
		agent.WithLogger(log),
		agent.WithMetrics(a.metrics),
	)
	return a, nil
}

func openStore(cfg config.Config, log *slog.Logger) (store.Store, error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		pg, err := postgres.NewStore(cfg.PostgresURL(), int32(cfg.DBMaxConns))
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
		log.Info("using postgres store", slog.Int("max_conns", cfg.DBMaxConns))
		return pg, nil
	case config.BackendSQLite:
		lite, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init sqlite store: %w", err)
		}
		log.Info("using sqlite store", slog.String("path", cfg.SQLitePath))
		return lite, nil
	default:
		log.Info("using memory store")
		return memory.NewStore(), nil
	}
}

func (a *app) mcpServer() *mcpserver.MCPServer {
	return agent.NewMCPServer(a.facade, version)
}

func (a *app) close(ctx context.Context) {
	a.store.Close()
	a.log.InfoContext(ctx, "store closed")
}
