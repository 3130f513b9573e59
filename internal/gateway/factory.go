package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// EndpointKind groups gateway calls that share a circuit breaker.
type EndpointKind string

const (
	EndpointConfiguration EndpointKind = "configuration"
	EndpointREST          EndpointKind = "rest"
	EndpointGraphQL       EndpointKind = "graphql"
)

const (
	defaultAPIVersion = "2018-05-10"
	defaultUserAgent  = "payauth-go/1.0"
)

// Factory builds per-authorization clients that share one HTTP client and one
// set of circuit breakers.
type Factory struct {
	httpClient       *http.Client
	breakers         map[EndpointKind]*gobreaker.CircuitBreaker[[]byte]
	breakerThreshold uint32
	breakerTimeout   time.Duration
	apiVersion       string
	metrics          *observability.Metrics
	logger           zerolog.Logger
}

type Option func(*Factory)

// WithHTTPClient replaces the default otelhttp-instrumented client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Factory) { f.httpClient = c }
}

// WithTimeout sets the per-request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(f *Factory) {
		if d > 0 {
			f.httpClient.Timeout = d
		}
	}
}

func WithBreaker(threshold uint32, timeout time.Duration) Option {
	return func(f *Factory) {
		if threshold > 0 {
			f.breakerThreshold = threshold
		}
		if timeout > 0 {
			f.breakerTimeout = timeout
		}
	}
}

func WithMetrics(m *observability.Metrics) Option {
	return func(f *Factory) { f.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(f *Factory) { f.logger = l }
}

func WithAPIVersion(v string) Option {
	return func(f *Factory) { f.apiVersion = v }
}

func NewFactory(opts ...Option) *Factory {
	f := &Factory{
		httpClient: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breakers:         make(map[EndpointKind]*gobreaker.CircuitBreaker[[]byte]),
		breakerThreshold: 10,
		breakerTimeout:   30 * time.Second,
		apiVersion:       defaultAPIVersion,
		logger:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	for _, kind := range []EndpointKind{EndpointConfiguration, EndpointREST, EndpointGraphQL} {
		f.register(kind)
	}
	return f
}

func (f *Factory) register(kind EndpointKind) {
	threshold := f.breakerThreshold
	f.breakers[kind] = gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "gateway-" + string(kind),
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     f.breakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= threshold && failureRatio >= 0.6
		},
		// A rejected payload is the caller's fault, not the gateway's.
		IsSuccessful: func(err error) bool {
			return err == nil || IsRejection(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			f.logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state changed")
			if f.metrics != nil {
				f.metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
}

// Breaker returns the circuit breaker guarding kind.
func (f *Factory) Breaker(kind EndpointKind) *gobreaker.CircuitBreaker[[]byte] {
	return f.breakers[kind]
}

// Transport returns a client bound to auth and the merchant's gateway URLs.
func (f *Factory) Transport(auth authorization.Authorization, cfg *configuration.Configuration) *Client {
	return &Client{
		factory:      f,
		auth:         auth,
		clientAPIURL: cfg.ClientAPIURL,
		graphQLURL:   cfg.GraphQLURL,
	}
}

// FetchConfiguration performs GET <configUrl>?configVersion=3.
func (f *Factory) FetchConfiguration(ctx context.Context, auth authorization.Authorization) ([]byte, error) {
	c := &Client{factory: f, auth: auth}
	return c.Get(ctx, withQuery(auth.ConfigURL(), "configVersion", "3"))
}
