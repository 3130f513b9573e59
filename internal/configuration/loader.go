package configuration

import (
	"context"
	stderrors "errors"
	"sync"
	"time"

	"github.com/cassiomorais/payauth/internal/domain/authorization"
	"github.com/cassiomorais/payauth/pkg/retry"
	"github.com/rs/zerolog"
)

// Fetcher retrieves the raw configuration document for an authorization.
type Fetcher interface {
	FetchConfiguration(ctx context.Context, auth authorization.Authorization) ([]byte, error)
}

// Cache stores parsed configurations keyed by configuration URL.
// Get returns (nil, nil) on a miss.
type Cache interface {
	Get(ctx context.Context, key string) (*Configuration, error)
	Set(ctx context.Context, key string, cfg *Configuration, ttl time.Duration) error
}

// Loader fetches configurations through a cache.
type Loader struct {
	fetcher Fetcher
	cache   Cache
	ttl     time.Duration
	retry   retry.Config
	logger  zerolog.Logger
}

// NewLoader creates a loader. A nil cache disables caching.
func NewLoader(fetcher Fetcher, cache Cache, ttl time.Duration, retryCfg retry.Config, logger zerolog.Logger) *Loader {
	if retryCfg.RetryIf == nil {
		retryCfg.RetryIf = retryable
	}
	return &Loader{
		fetcher: fetcher,
		cache:   cache,
		ttl:     ttl,
		retry:   retryCfg,
		logger:  logger,
	}
}

// Fetch returns the configuration for auth, serving from cache when possible.
// The remote GET is idempotent and is retried with backoff.
func (l *Loader) Fetch(ctx context.Context, auth authorization.Authorization) (*Configuration, error) {
	key := auth.ConfigURL()

	if l.cache != nil {
		cached, err := l.cache.Get(ctx, key)
		if err != nil {
			l.logger.Warn().Err(err).Msg("configuration cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	cfg := l.retry
	cfg.OnRetry = func(n uint, err error) {
		l.logger.Debug().Err(err).Uint("attempt", n+1).Msg("retrying configuration fetch")
	}
	body, err := retry.DoWithResult(ctx, cfg, func() ([]byte, error) {
		return l.fetcher.FetchConfiguration(ctx, auth)
	})
	if err != nil {
		return nil, err
	}

	parsed, err := Parse(body)
	if err != nil {
		return nil, err
	}

	if l.cache != nil && l.ttl > 0 {
		if err := l.cache.Set(ctx, key, parsed, l.ttl); err != nil {
			l.logger.Warn().Err(err).Msg("configuration cache write failed")
		}
	}
	return parsed, nil
}

// Errors that know whether they are transient (gateway.HTTPError) decide for
// themselves; anything else is assumed to be a network failure.
func retryable(err error) bool {
	var r interface{ Retryable() bool }
	if stderrors.As(err, &r) {
		return r.Retryable()
	}
	return true
}

// MemoryCache is an in-process TTL cache.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

type memoryEntry struct {
	cfg       *Configuration
	expiresAt time.Time
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (c *MemoryCache) Get(_ context.Context, key string) (*Configuration, error) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok || c.now().After(entry.expiresAt) {
		return nil, nil
	}
	return entry.cfg, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, cfg *Configuration, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryEntry{cfg: cfg, expiresAt: c.now().Add(ttl)}
	return nil
}
