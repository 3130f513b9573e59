package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const (
	maxIdempotencyBodySize = 1 << 20
	// reservationTTL bounds how long a crashed request can hold its key.
	reservationTTL = time.Minute
)

// IdempotentResponse is a recorded response replayed for a repeated key. A
// zero Status marks a key whose first request is still running.
type IdempotentResponse struct {
	Status int    `json:"status"`
	Body   []byte `json:"body"`
}

// IdempotencyStore persists encoded responses. Get returns nil on a miss.
type IdempotencyStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	// Reserve stores value only if key is absent and reports whether it did.
	Reserve(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Set overwrites key unconditionally.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// Idempotency replays the first response recorded for an Idempotency-Key so a
// retried create does not open a second payment context. Keys are scoped to
// the request path. The key is reserved before the handler runs, so a
// concurrent duplicate gets 409 instead of a second execution.
func Idempotency(store IdempotencyStore, ttl time.Duration, logger zerolog.Logger) func(http.Handler) http.Handler {
	inFlight, _ := json.Marshal(IdempotentResponse{})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("Idempotency-Key")
			if key == "" || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			key = r.URL.Path + ":" + key

			reserved, err := store.Reserve(r.Context(), key, inFlight, reservationTTL)
			if err != nil {
				logger.Warn().Err(err).Msg("idempotency reservation failed")
				next.ServeHTTP(w, r)
				return
			}
			if !reserved {
				replay(r.Context(), w, store, key, logger)
				return
			}

			rec := &responseRecorder{ResponseWriter: w, body: &bytes.Buffer{}, statusCode: http.StatusOK}
			next.ServeHTTP(rec, r)

			ctx := context.WithoutCancel(r.Context())
			if rec.statusCode >= 200 && rec.statusCode < 500 && !rec.bodyTruncated {
				raw, _ := json.Marshal(IdempotentResponse{Status: rec.statusCode, Body: rec.body.Bytes()})
				if err := store.Set(ctx, key, raw, ttl); err != nil {
					logger.Warn().Err(err).Msg("failed to record idempotent response")
				}
				return
			}
			if err := store.Delete(ctx, key); err != nil {
				logger.Warn().Err(err).Msg("failed to release idempotency key")
			}
		})
	}
}

func replay(ctx context.Context, w http.ResponseWriter, store IdempotencyStore, key string, logger zerolog.Logger) {
	entry, err := lookup(ctx, store, key)
	if err != nil {
		logger.Warn().Err(err).Msg("idempotency lookup failed")
	}
	w.Header().Set("Content-Type", "application/json")
	if entry == nil || entry.Status == 0 {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]string{
			"error": "a request with this idempotency key is still in progress",
			"code":  "idempotency_in_progress",
		})
		return
	}
	w.Header().Set("X-Idempotency-Replayed", "true")
	w.WriteHeader(entry.Status)
	w.Write(entry.Body)
}

func lookup(ctx context.Context, store IdempotencyStore, key string) (*IdempotentResponse, error) {
	raw, err := store.Get(ctx, key)
	if err != nil || raw == nil {
		return nil, err
	}
	var resp IdempotentResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type responseRecorder struct {
	http.ResponseWriter
	statusCode    int
	body          *bytes.Buffer
	bodyTruncated bool
}

func (r *responseRecorder) WriteHeader(code int) {
	r.statusCode = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(b []byte) (int, error) {
	if !r.bodyTruncated {
		if r.body.Len()+len(b) > maxIdempotencyBodySize {
			r.bodyTruncated = true
		} else {
			r.body.Write(b)
		}
	}
	return r.ResponseWriter.Write(b)
}
