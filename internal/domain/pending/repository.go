package pending

import (
	"context"
	"time"

	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

// Store defines the interface for pending request persistence
type Store interface {
	// Save stores p under key until ttl elapses
	Save(ctx context.Context, key string, p *paymentauth.PendingRequest, ttl time.Duration) error

	// Take removes and returns the request stored under key. A second Take for
	// the same key returns errors.ErrPendingNotFound.
	Take(ctx context.Context, key string) (*paymentauth.PendingRequest, error)
}
