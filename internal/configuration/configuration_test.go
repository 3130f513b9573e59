package configuration

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/cassiomorais/payauth/internal/domain/authorization"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/pkg/retry"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const fullConfig = `{
	"environment": "sandbox",
	"merchantId": "m1",
	"clientApiUrl": "https://api.sandbox.braintreegateway.com/merchants/m1/client_api",
	"graphQL": {"url": "https://payments.sandbox.braintree-api.com/graphql"},
	"paypalEnabled": true,
	"paypal": {"displayName": "Shop", "clientId": "cid", "currencyIsoCode": "USD"},
	"payWithVenmo": {"accessToken": "venmo-token", "merchantId": "venmo-m", "environment": "sandbox"}
}`

type fetcherFunc func(ctx context.Context, auth authorization.Authorization) ([]byte, error)

func (f fetcherFunc) FetchConfiguration(ctx context.Context, auth authorization.Authorization) ([]byte, error) {
	return f(ctx, auth)
}

type permanentError struct{}

func (permanentError) Error() string   { return "http 401" }
func (permanentError) Retryable() bool { return false }

func testAuth(t *testing.T) authorization.Authorization {
	t.Helper()
	auth, err := authorization.Parse("sandbox_abc123_m1")
	require.NoError(t, err)
	return auth
}

func fastRetry() retry.Config {
	return retry.Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}
}

func TestParse(t *testing.T) {
	cfg, err := Parse([]byte(fullConfig))
	require.NoError(t, err)

	assert.Equal(t, "sandbox", cfg.Environment)
	assert.Equal(t, "https://payments.sandbox.braintree-api.com/graphql", cfg.GraphQLURL)
	assert.True(t, cfg.Enabled(paymentauth.MethodPayPal))
	assert.True(t, cfg.Enabled(paymentauth.MethodVenmo))
	assert.Equal(t, "Shop", cfg.PayPal.DisplayName)
	assert.Equal(t, "venmo-m", cfg.Venmo.MerchantID)
}

func TestParse_Disabled(t *testing.T) {
	cfg, err := Parse([]byte(`{"clientApiUrl":"https://x","paypalEnabled":false,"payWithVenmo":{"accessToken":""}}`))
	require.NoError(t, err)

	assert.False(t, cfg.Enabled(paymentauth.MethodPayPal))
	assert.False(t, cfg.Enabled(paymentauth.MethodVenmo))
	assert.False(t, cfg.Enabled(paymentauth.Method("card")))
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse([]byte(`{not json`))
	assert.ErrorIs(t, err, domainErrors.ErrTransport)

	_, err = Parse([]byte(`{}`))
	assert.ErrorIs(t, err, domainErrors.ErrConfiguration)
}

func TestLoader_CachesByConfigURL(t *testing.T) {
	calls := 0
	fetcher := fetcherFunc(func(_ context.Context, _ authorization.Authorization) ([]byte, error) {
		calls++
		return []byte(fullConfig), nil
	})
	loader := NewLoader(fetcher, NewMemoryCache(), time.Minute, fastRetry(), zerolog.New(io.Discard))

	first, err := loader.Fetch(context.Background(), testAuth(t))
	require.NoError(t, err)
	second, err := loader.Fetch(context.Background(), testAuth(t))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestLoader_RetriesTransientFailures(t *testing.T) {
	calls := 0
	fetcher := fetcherFunc(func(_ context.Context, _ authorization.Authorization) ([]byte, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("connection reset")
		}
		return []byte(fullConfig), nil
	})
	loader := NewLoader(fetcher, nil, 0, fastRetry(), zerolog.New(io.Discard))

	cfg, err := loader.Fetch(context.Background(), testAuth(t))
	require.NoError(t, err)
	assert.Equal(t, "m1", cfg.MerchantID)
	assert.Equal(t, 3, calls)
}

func TestLoader_DoesNotRetryPermanentFailures(t *testing.T) {
	calls := 0
	fetcher := fetcherFunc(func(_ context.Context, _ authorization.Authorization) ([]byte, error) {
		calls++
		return nil, permanentError{}
	})
	loader := NewLoader(fetcher, nil, 0, fastRetry(), zerolog.New(io.Discard))

	_, err := loader.Fetch(context.Background(), testAuth(t))
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestMemoryCache_Expiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache := NewMemoryCache()
	cache.now = func() time.Time { return now }

	require.NoError(t, cache.Set(context.Background(), "k", &Configuration{MerchantID: "m1"}, time.Minute))

	got, err := cache.Get(context.Background(), "k")
	require.NoError(t, err)
	require.NotNil(t, got)

	now = now.Add(2 * time.Minute)
	got, err = cache.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Nil(t, got)
}
