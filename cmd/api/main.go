package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/juju/clock"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/token-gate/internal/api/http"
	"github.com/spec-kit/token-gate/internal/api/http/handlers"
	"github.com/spec-kit/token-gate/internal/auth"
	"github.com/spec-kit/token-gate/internal/config"
	"github.com/spec-kit/token-gate/internal/events"
	"github.com/spec-kit/token-gate/internal/observability"
	"github.com/spec-kit/token-gate/internal/persistence"
	"github.com/spec-kit/token-gate/internal/repository"
	"github.com/spec-kit/token-gate/internal/service"
	"github.com/spec-kit/token-gate/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, dependencies, closeStore := openCredentialStore(ctx, cfg, logger)
	defer closeStore()

	if len(cfg.Auth.SeedCredentials) > 0 {
		specs, err := service.ParseSeedSpecs(cfg.Auth.SeedCredentials)
		if err != nil {
			logger.Fatal("invalid AUTH_SEED_CREDENTIALS", zap.Error(err))
		}
		if err := service.SeedCredentials(ctx, store, specs, cfg.Auth.BcryptCost); err != nil {
			logger.Fatal("failed to seed credentials", zap.Error(err))
		}
		logger.Info("seeded credentials", zap.Int("count", len(specs)))
	}

	policy, err := loadPolicy(cfg.Auth)
	if err != nil {
		logger.Fatal("failed to build gate policy", zap.Error(err))
	}
	for _, rule := range policy.Rules() {
		logger.Info("gate rule", zap.Stringer("rule", rule))
	}

	codec, err := auth.NewTokenCodec(auth.CodecConfig{
		SigningKey: cfg.Auth.SigningKey,
		TTL:        cfg.Auth.TokenTTL,
		ClockSkew:  cfg.Auth.ClockSkew,
		Issuer:     cfg.Auth.Issuer,
		Clock:      clock.WallClock,
	})
	if err != nil {
		logger.Fatal("failed to init token codec", zap.Error(err))
	}

	metrics := observability.NewMetrics("token_gate")
	dispatcher := events.NewInMemoryDispatcher(func(event events.Event, err error) {
		logger.Warn("audit handler failed", zap.String("event", string(event.Type)), zap.Error(err))
	})
	auditWorker := worker.NewAuditWorker(service.NewAuditService(logger), logger, metrics, cfg.App.AuditQueueSize)
	auditWorker.Subscribe(dispatcher)
	auditWorker.Start(ctx)

	authService, err := service.NewAuthService(service.AuthDependencies{
		Credentials: store,
		Verifier:    auth.BcryptVerifier{},
		Tokens:      codec,
		Clock:       clock.WallClock,
		Logger:      logger,
		Metrics:     metrics,
		Dispatcher:  dispatcher,
		BcryptCost:  cfg.Auth.BcryptCost,
	})
	if err != nil {
		logger.Fatal("failed to init auth service", zap.Error(err))
	}

	gate := auth.NewGate(policy, codec, store)
	authMiddleware := auth.NewAuthMiddleware(gate, logger, metrics, dispatcher)

	app := httptransport.NewApp(cfg.App.Name, logger)
	httptransport.RegisterMiddlewares(app, httptransport.Middlewares(httptransport.MiddlewareConfig{
		Logger:  logger,
		Metrics: metrics,
		Timeout: cfg.App.RequestTimeout(),
		Gate:    authMiddleware,
	}))
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:    handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, dependencies),
		Auth:      handlers.NewAuthHandler(authService, logger),
		Protected: handlers.NewProtectedHandler(),
		Metrics:   metrics.Registry(),
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()), zap.String("store", cfg.Store.Backend))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	auditWorker.Stop()
	if dropped := auditWorker.Dropped(); dropped > 0 {
		logger.Warn("audit events dropped", zap.Int64("count", dropped))
	}
}

// openCredentialStore connects the configured backend and returns it with the
// dependencies readiness should probe.
func openCredentialStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.CredentialRepository, map[string]handlers.Pinger, func()) {
	switch cfg.Store.Backend {
	case config.StorePostgres:
		pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
		if err != nil {
			logger.Fatal("failed to connect postgres", zap.Error(err))
		}
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		return repository.NewCredentialRepository(pg.PoolHandle()),
			map[string]handlers.Pinger{"postgres": pg},
			pg.Close
	case config.StoreRedis:
		rdb := persistence.NewRedis(ctx, cfg.Redis, logger)
		return rdb.Credentials(),
			map[string]handlers.Pinger{"redis": rdb},
			rdb.Close
	default:
		logger.Warn("using in-memory credential store; credentials are lost on restart")
		return repository.NewMemoryCredentialRepository(), nil, func() {}
	}
}

func loadPolicy(cfg config.AuthConfig) (*auth.Policy, error) {
	if cfg.PolicyFile != "" {
		return auth.LoadPolicyFile(cfg.PolicyFile)
	}
	rules, err := auth.ParseRules(cfg.ExemptPaths)
	if err != nil {
		return nil, err
	}
	return auth.NewPolicy(rules)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
