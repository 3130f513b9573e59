// Package memory holds single-process implementations of the storage ports,
// used when the bridge runs without Redis or Postgres.
package memory

import (
	"context"
	"sync"
	"time"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
)

type pendingEntry struct {
	request   *paymentauth.PendingRequest
	expiresAt time.Time
}

// PendingStore keeps pending requests in a map. Expired entries are removed
// lazily on Take and by Sweep.
type PendingStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
	metrics *observability.Metrics
	now     func() time.Time
}

func NewPendingStore(metrics *observability.Metrics) *PendingStore {
	return &PendingStore{
		entries: make(map[string]pendingEntry),
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *PendingStore) Save(_ context.Context, key string, p *paymentauth.PendingRequest, ttl time.Duration) error {
	cp := *p
	s.mu.Lock()
	s.entries[key] = pendingEntry{request: &cp, expiresAt: s.now().Add(ttl)}
	s.mu.Unlock()
	s.record("save", "ok")
	return nil
}

func (s *PendingStore) Take(_ context.Context, key string) (*paymentauth.PendingRequest, error) {
	s.mu.Lock()
	entry, ok := s.entries[key]
	delete(s.entries, key)
	s.mu.Unlock()

	if !ok || !s.now().Before(entry.expiresAt) {
		s.record("take", "miss")
		return nil, domainErrors.ErrPendingNotFound
	}
	s.record("take", "ok")
	return entry.request, nil
}

// Sweep drops expired entries and returns how many were removed.
func (s *PendingStore) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *PendingStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.record("sweep", "expired")
			}
		}
	}
}

func (s *PendingStore) record(operation, result string) {
	if s.metrics != nil {
		s.metrics.PendingOperations.WithLabelValues("memory", operation, result).Inc()
	}
}
