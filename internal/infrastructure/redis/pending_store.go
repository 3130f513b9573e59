package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/redis/go-redis/v9"
)

const pendingKeyPrefix = "payauth:pending:"

// PendingStore keeps pending requests in Redis until they are taken or expire.
type PendingStore struct {
	client  *redis.Client
	metrics *observability.Metrics
}

func NewPendingStore(client *redis.Client, metrics *observability.Metrics) *PendingStore {
	return &PendingStore{client: client, metrics: metrics}
}

func (s *PendingStore) Save(ctx context.Context, key string, p *paymentauth.PendingRequest, ttl time.Duration) error {
	encoded, err := p.Encode(nil)
	if err != nil {
		s.record("save", "error")
		return err
	}
	if err := s.client.Set(ctx, pendingKeyPrefix+key, encoded, ttl).Err(); err != nil {
		s.record("save", "error")
		return fmt.Errorf("failed to save pending request: %w", err)
	}
	s.record("save", "ok")
	return nil
}

// Take atomically reads and deletes the request, so only one caller wins.
func (s *PendingStore) Take(ctx context.Context, key string) (*paymentauth.PendingRequest, error) {
	encoded, err := s.client.GetDel(ctx, pendingKeyPrefix+key).Result()
	if errors.Is(err, redis.Nil) {
		s.record("take", "miss")
		return nil, domainErrors.ErrPendingNotFound
	}
	if err != nil {
		s.record("take", "error")
		return nil, fmt.Errorf("failed to take pending request: %w", err)
	}

	p, err := paymentauth.DecodePendingRequest(encoded, nil)
	if err != nil {
		s.record("take", "error")
		return nil, err
	}
	s.record("take", "ok")
	return p, nil
}

func (s *PendingStore) record(operation, result string) {
	if s.metrics != nil {
		s.metrics.PendingOperations.WithLabelValues("redis", operation, result).Inc()
	}
}
