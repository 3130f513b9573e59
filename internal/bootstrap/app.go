package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/cassiomorais/payauth/internal/infrastructure/config"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/payauth/internal/infrastructure/redis"
	"github.com/cassiomorais/payauth/internal/repository/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// App holds the process-wide infrastructure. Pool and Redis are nil when the
// configuration does not need them.
type App struct {
	Config  *config.Config
	Logger  zerolog.Logger
	Pool    *pgxpool.Pool
	Redis   *redis.Client
	Metrics *observability.Metrics
}

func New(ctx context.Context, serviceName string, metricsNamespace string) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	logger := observability.InitLogger(cfg.Observability.LogLevel, os.Stdout)
	logger.Info().Str("service", serviceName).Msg("Starting")

	if cfg.Observability.EnableTracing {
		tp, err := observability.InitTracer(serviceName, cfg.Observability.JaegerEndpoint)
		if err != nil {
			logger.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		} else {
			go func() {
				<-ctx.Done()
				_ = observability.Shutdown(context.Background(), tp)
			}()
			logger.Info().Msg("Tracing enabled")
		}
	}

	metrics := observability.NewMetrics(metricsNamespace, nil)

	app := &App{
		Config:  cfg,
		Logger:  logger,
		Metrics: metrics,
	}

	if cfg.Handoff.PendingStore == config.StorePostgres {
		pool, err := postgres.NewPool(ctx, &cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		app.Pool = pool
		logger.Info().Msg("Connected to PostgreSQL")
	}

	if cfg.Handoff.PendingStore == config.StoreRedis || cfg.Telemetry.StreamEnabled {
		client, err := infraRedis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			app.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		app.Redis = client
		logger.Info().Msg("Connected to Redis")
	}

	return app, nil
}

func (a *App) Close() {
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
