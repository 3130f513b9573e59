package bootstrap

import (
	"context"
	"net/http"
	"time"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/cassiomorais/payauth/internal/controller"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/domain/pending"
	"github.com/cassiomorais/payauth/internal/gateway"
	"github.com/cassiomorais/payauth/internal/handoff"
	"github.com/cassiomorais/payauth/internal/infrastructure/config"
	"github.com/cassiomorais/payauth/internal/infrastructure/memory"
	infraRedis "github.com/cassiomorais/payauth/internal/infrastructure/redis"
	"github.com/cassiomorais/payauth/internal/method/paypal"
	"github.com/cassiomorais/payauth/internal/method/venmo"
	customMW "github.com/cassiomorais/payauth/internal/middleware"
	"github.com/cassiomorais/payauth/internal/repository/postgres"
	"github.com/cassiomorais/payauth/internal/riskdata"
	"github.com/cassiomorais/payauth/internal/service"
	"github.com/cassiomorais/payauth/internal/telemetry"
	"github.com/cassiomorais/payauth/pkg/retry"
)

const (
	idempotencyTTL       = 24 * time.Hour
	pendingSweepInterval = time.Minute
)

// Bridge is the fully wired HTTP bridge plus the background loops it needs.
type Bridge struct {
	Handler    http.Handler
	Background []func(ctx context.Context)
}

// NewBridge wires gateway, pipelines, stores and controllers from app.
func NewBridge(app *App) *Bridge {
	cfg := app.Config
	logger := app.Logger
	b := &Bridge{}

	factory := gateway.NewFactory(
		gateway.WithTimeout(cfg.Gateway.Timeout),
		gateway.WithBreaker(cfg.Gateway.CircuitBreakerThreshold, cfg.Gateway.CircuitBreakerTimeout),
		gateway.WithAPIVersion(cfg.Gateway.APIVersion),
		gateway.WithMetrics(app.Metrics),
		gateway.WithLogger(logger),
	)

	var cache configuration.Cache = configuration.NewMemoryCache()
	if app.Redis != nil {
		cache = infraRedis.NewConfigCache(app.Redis)
	}
	retryCfg := retry.DefaultConfig()
	if cfg.Gateway.ConfigRetries > 0 {
		retryCfg.MaxAttempts = cfg.Gateway.ConfigRetries
	}
	if cfg.Gateway.ConfigRetryDelay > 0 {
		retryCfg.InitialDelay = cfg.Gateway.ConfigRetryDelay
	}
	loader := configuration.NewLoader(factory, cache, cfg.Gateway.ConfigCacheTTL, retryCfg, logger)

	sink := telemetry.Multi{
		telemetry.LogSink{Logger: logger},
		telemetry.MetricsSink{Metrics: app.Metrics},
	}
	if cfg.Telemetry.StreamEnabled && app.Redis != nil {
		stream := infraRedis.NewStreamSink(app.Redis, cfg.Telemetry.Stream, cfg.Telemetry.MaxLen, 0, app.Metrics, logger)
		sink = append(sink, stream)
		b.Background = append(b.Background, stream.Run)
	}

	launcher := handoff.NewLauncher(newPlatform(cfg.Handoff), sink, app.Metrics, logger)

	deps := service.Deps{
		Authorization: service.ContextAuthorization{Fallback: service.StaticAuthorization(cfg.Gateway.Authorization)},
		Config:        loader,
		Transport:     service.FactoryTransport(factory),
		Launcher:      launcher,
		RiskData:      riskdata.UUIDCollector{},
		Sink:          sink,
		Metrics:       app.Metrics,
		Logger:        logger,
		ReturnScheme:  cfg.Handoff.ReturnScheme,
		ReturnURLBase: cfg.Handoff.ReturnURLBase,
	}
	flows := controller.NewFlows(
		controller.NewFlow(service.NewPipeline[paypal.Request](paypal.New(), deps)),
		controller.NewFlow(service.NewPipeline[venmo.Request](venmo.New(), deps)),
	)

	store := b.pendingStore(app)

	var signer paymentauth.Signer
	if cfg.Handoff.SigningKey != "" {
		signer = paymentauth.HMACSigner{Key: []byte(cfg.Handoff.SigningKey)}
	}

	var idempotency customMW.IdempotencyStore
	if app.Redis != nil {
		idempotency = infraRedis.NewIdempotencyStore(app.Redis)
	}

	var metricsHandler http.Handler
	if !cfg.Observability.EnableMetrics {
		metricsHandler = http.NotFoundHandler()
	}

	returnPath := controller.ReturnPath(cfg.Handoff.ReturnURLBase)
	b.Handler = controller.NewRouter(controller.RouterDeps{
		AuthRequests:     controller.NewAuthRequestController(flows, store, cfg.Handoff.PendingTTL, signer, logger),
		Returns:          controller.NewReturnController(flows, store, cfg.Handoff.PendingTTL, signer, cfg.Handoff.ReturnURLBase, logger),
		Health:           controller.NewHealthController(healthChecks(app)...),
		Metrics:          app.Metrics,
		MetricsHandler:   metricsHandler,
		IdempotencyStore: idempotency,
		IdempotencyTTL:   idempotencyTTL,
		Server:           cfg.Server,
		JWTSecret:        cfg.Auth.JWTSecret,
		ReturnPath:       returnPath,
		Logger:           logger,
	})
	return b
}

func (b *Bridge) pendingStore(app *App) pending.Store {
	switch app.Config.Handoff.PendingStore {
	case config.StorePostgres:
		repo := postgres.NewPendingRepository(app.Pool, app.Metrics)
		b.Background = append(b.Background, func(ctx context.Context) {
			ticker := time.NewTicker(pendingSweepInterval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if n, err := repo.Cleanup(ctx); err != nil {
						app.Logger.Warn().Err(err).Msg("Pending request cleanup failed")
					} else if n > 0 {
						app.Logger.Debug().Int64("removed", n).Msg("Expired pending requests removed")
					}
				}
			}
		})
		return repo
	case config.StoreRedis:
		return infraRedis.NewPendingStore(app.Redis, app.Metrics)
	default:
		store := memory.NewPendingStore(app.Metrics)
		b.Background = append(b.Background, func(ctx context.Context) {
			store.RunSweeper(ctx, pendingSweepInterval)
		})
		return store
	}
}

func newPlatform(cfg config.HandoffConfig) *handoff.DeepLinkPlatform {
	opts := []handoff.PlatformOption{
		handoff.WithScheme(cfg.ReturnScheme, cfg.AppID),
		handoff.WithInstalledApp(handoff.App{
			ID:              venmo.TargetApp,
			SigningCertHash: cfg.VenmoCertHash,
			AppSwitch:       true,
		}),
		handoff.WithOpener(handoff.RedirectOpener{}),
	}
	if cfg.VenmoCertHash != "" {
		opts = append(opts, handoff.WithTrustedApp(venmo.TargetApp, cfg.VenmoCertHash))
	}
	return handoff.NewDeepLinkPlatform(cfg.AppID, opts...)
}

func healthChecks(app *App) []controller.HealthCheck {
	var checks []controller.HealthCheck
	if app.Pool != nil {
		checks = append(checks, controller.HealthCheck{Name: "database", Check: app.Pool.Ping})
	}
	if app.Redis != nil {
		checks = append(checks, controller.HealthCheck{Name: "redis", Check: func(ctx context.Context) error {
			return app.Redis.Ping(ctx).Err()
		}})
	}
	return checks
}
