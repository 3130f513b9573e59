package controller

import (
	"net/http"
	"time"

	"github.com/cassiomorais/payauth/internal/infrastructure/config"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	customMW "github.com/cassiomorais/payauth/internal/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

type RouterDeps struct {
	AuthRequests     *AuthRequestController
	Returns          *ReturnController
	Health           *HealthController
	Metrics          *observability.Metrics
	MetricsHandler   http.Handler
	IdempotencyStore customMW.IdempotencyStore
	IdempotencyTTL   time.Duration
	Server           config.ServerConfig
	JWTSecret        string
	ReturnPath       string
	Logger           zerolog.Logger
}

func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(customMW.Tracing())
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.Server.CORS.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key", customMW.ClientAuthorizationHeader},
		ExposedHeaders:   []string{"X-Idempotency-Replayed"},
		AllowCredentials: deps.Server.CORS.AllowCredentials,
		MaxAge:           300,
	}))
	r.Use(customMW.SecurityHeaders())
	r.Use(customMW.Metrics(deps.Metrics))
	if deps.Server.RateLimit.Requests > 0 {
		r.Use(customMW.RateLimit(deps.Server.RateLimit.Requests, deps.Server.RateLimit.Window))
	}

	health := deps.Health
	if health == nil {
		health = NewHealthController()
	}
	r.Get("/health", health.Health)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	metricsHandler := deps.MetricsHandler
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Handle("/metrics", metricsHandler)

	returnPath := deps.ReturnPath
	if returnPath == "" {
		returnPath = "/return"
	}
	r.With(customMW.ClientAuthorization()).Get(returnPath+"/{method}/*", deps.Returns.Browser)

	r.Route("/api/v1", func(r chi.Router) {
		if deps.JWTSecret != "" {
			r.Use(customMW.RequireAuth(deps.JWTSecret))
		}
		r.Use(customMW.ClientAuthorization())

		idempotencyMW := customMW.Idempotency(deps.IdempotencyStore, deps.IdempotencyTTL, deps.Logger)

		r.With(idempotencyMW).Post("/{method}/auth-requests", deps.AuthRequests.Create)
		r.Post("/returns", deps.Returns.Complete)
	})

	return r
}
