package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/jackc/pgx/v5"
)

// PendingRepository stores pending requests in the pending_requests table.
type PendingRepository struct {
	db      DBTX
	metrics *observability.Metrics
}

func NewPendingRepository(db DBTX, metrics *observability.Metrics) *PendingRepository {
	return &PendingRepository{db: db, metrics: metrics}
}

func (r *PendingRepository) Save(ctx context.Context, key string, p *paymentauth.PendingRequest, ttl time.Duration) error {
	payload, err := p.Encode(nil)
	if err != nil {
		r.record("save", "error")
		return err
	}

	_, err = r.db.Exec(ctx,
		`INSERT INTO pending_requests (correlation_key, id, method, request_code, payload, created_at, expires_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (correlation_key) DO UPDATE SET
		   id = EXCLUDED.id, method = EXCLUDED.method, request_code = EXCLUDED.request_code,
		   payload = EXCLUDED.payload, created_at = EXCLUDED.created_at, expires_at = EXCLUDED.expires_at`,
		key, p.ID, string(p.Method), p.RequestCode, payload, p.CreatedAt, time.Now().UTC().Add(ttl),
	)
	if err != nil {
		r.record("save", "error")
		return fmt.Errorf("save pending request: %w", err)
	}
	r.record("save", "ok")
	return nil
}

// Take deletes the row and returns it. Concurrent callers race on the DELETE,
// so at most one receives the request.
func (r *PendingRepository) Take(ctx context.Context, key string) (*paymentauth.PendingRequest, error) {
	var (
		payload   string
		expiresAt time.Time
	)
	err := r.db.QueryRow(ctx,
		`DELETE FROM pending_requests WHERE correlation_key = $1
		 RETURNING payload, expires_at`, key,
	).Scan(&payload, &expiresAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.record("take", "miss")
			return nil, domainErrors.ErrPendingNotFound
		}
		r.record("take", "error")
		return nil, fmt.Errorf("take pending request: %w", err)
	}
	if !time.Now().Before(expiresAt) {
		r.record("take", "miss")
		return nil, domainErrors.ErrPendingNotFound
	}

	p, err := paymentauth.DecodePendingRequest(payload, nil)
	if err != nil {
		r.record("take", "error")
		return nil, err
	}
	r.record("take", "ok")
	return p, nil
}

// Cleanup removes expired rows.
func (r *PendingRepository) Cleanup(ctx context.Context) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM pending_requests WHERE expires_at < NOW()`)
	if err != nil {
		return 0, fmt.Errorf("cleanup pending requests: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (r *PendingRepository) record(operation, result string) {
	if r.metrics != nil {
		r.metrics.PendingOperations.WithLabelValues("postgres", operation, result).Inc()
	}
}
