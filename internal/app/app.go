package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/rankforge/rankforge/internal/config"
	"github.com/rankforge/rankforge/internal/httpserver"
	"github.com/rankforge/rankforge/internal/platform"
	"github.com/rankforge/rankforge/internal/telemetry"
	"github.com/rankforge/rankforge/internal/version"
	"github.com/rankforge/rankforge/pkg/billing"
	"github.com/rankforge/rankforge/pkg/events"
	"github.com/rankforge/rankforge/pkg/gateway"
	"github.com/rankforge/rankforge/pkg/identity"
	"github.com/rankforge/rankforge/pkg/leaderboard"
	"github.com/rankforge/rankforge/pkg/scoring"
)

// Run is the main application entry point. It reads config, connects to
// infrastructure, and starts the appropriate mode (api or worker).
func Run(ctx context.Context, cfg *config.Config) error {
	logger := telemetry.NewLogger(cfg.LogFormat, cfg.LogLevel)
	slog.SetDefault(logger)

	logger.Info("starting rankforge",
		"mode", cfg.Mode,
		"listen", cfg.ListenAddr(),
	)

	shutdownTracer, err := telemetry.InitTracer(ctx, cfg.OTLPEndpoint, "rankforge", version.Version)
	if err != nil {
		return fmt.Errorf("initializing tracer: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracer(shutdownCtx); err != nil {
			logger.Error("shutting down tracer", "error", err)
		}
	}()

	db, err := platform.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	rdb, err := platform.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			logger.Error("closing redis", "error", err)
		}
	}()

	streamRDB := rdb
	if cfg.StreamURL != cfg.RedisURL {
		streamRDB, err = platform.NewRedisClient(ctx, cfg.StreamURL)
		if err != nil {
			return fmt.Errorf("connecting to event stream redis: %w", err)
		}
		defer func() {
			if err := streamRDB.Close(); err != nil {
				logger.Error("closing event stream redis", "error", err)
			}
		}()
	}

	if err := platform.RunMigrations(cfg.DatabaseURL, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("migrations applied")

	metricsReg := telemetry.NewMetricsRegistry(telemetry.All()...)

	publisher := events.NewPublisher(streamRDB, logger)

	switch cfg.Mode {
	case "api":
		return runAPI(ctx, cfg, logger, db, rdb, publisher, metricsReg)
	case "worker":
		return runWorker(ctx, cfg, logger, db, streamRDB)
	default:
		return fmt.Errorf("unknown mode: %s", cfg.Mode)
	}
}

func runAPI(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client, publisher *events.Publisher, metricsReg *prometheus.Registry) error {
	identitySvc := identity.NewService(db, logger)
	billingSvc := billing.NewService(db, logger)
	leaderboardStore := leaderboard.NewStore(db)
	leaderboardSvc := leaderboard.NewService(leaderboardStore, publisher, billingSvc, logger)
	scoringSvc := scoring.NewService(rdb, publisher, billingSvc, logger)

	srv := httpserver.NewServer(cfg, logger, db, rdb, metricsReg)

	// Internal plane: identity/billing CRUD, gated by a shared secret rather
	// than a tenant API key.
	internalAuth := gateway.InternalSecretAuth(cfg.InternalAPISecret, logger)
	srv.Router.Route("/internal", func(r chi.Router) {
		r.Use(internalAuth)
		r.Mount("/identity", identity.NewHandler(logger, identitySvc).Routes())
		r.Mount("/billing", billing.NewHandler(logger, billingSvc).Routes())
	})

	// Tenant plane: API-key authenticated, rate-limited, usage-tracked.
	authenticator := gateway.NewAuthenticator(identitySvc, rdb, cfg.AuthCacheTTL(), logger)
	rateLimiter := gateway.NewRateLimiter(rdb, cfg.RLKeyTTL())
	usageTracker := gateway.NewUsageTracker(rdb, logger)

	srv.APIRouter.Group(func(r chi.Router) {
		r.Use(authenticator.Middleware)
		if cfg.RateLimitEnabled {
			r.Use(rateLimiter.Middleware(logger))
		}
		r.Use(usageTracker.Middleware)

		scoring.NewHandler(logger, scoringSvc).Mount(r)
		leaderboard.NewHandler(logger, leaderboardSvc).Mount(r)
	})

	httpSrv := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      srv,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.ListenAddr())
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("shutting down http server")
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}
}

func runWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *pgxpool.Pool, rdb *redis.Client) error {
	worker := events.NewWorker(rdb, logger, cfg.StreamConsumerGroup)
	projection := events.NewProjection(db, rdb, logger)
	projection.Register(worker)

	if err := events.EnsureGroups(ctx, rdb, cfg.StreamConsumerGroup,
		events.SubjectScoreUpdated, events.SubjectLeaderboardCreated, events.SubjectLeaderboardDeleted); err != nil {
		return fmt.Errorf("ensuring consumer groups: %w", err)
	}

	logger.Info("worker started", "consumer_group", cfg.StreamConsumerGroup)
	return worker.Run(ctx)
}
