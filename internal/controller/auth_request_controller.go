package controller

import (
	"io"
	"net/http"
	"time"

	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/domain/pending"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// AuthRequestController creates and launches payment auth requests.
type AuthRequestController struct {
	flows  Flows
	store  pending.Store
	ttl    time.Duration
	signer paymentauth.Signer
	logger zerolog.Logger
}

func NewAuthRequestController(flows Flows, store pending.Store, ttl time.Duration, signer paymentauth.Signer, logger zerolog.Logger) *AuthRequestController {
	return &AuthRequestController{
		flows:  flows,
		store:  store,
		ttl:    ttl,
		signer: signer,
		logger: logger,
	}
}

// Create handles POST /api/v1/{method}/auth-requests.
func (c *AuthRequestController) Create(w http.ResponseWriter, r *http.Request) {
	flow, err := c.flows.lookup(chi.URLParam(r, "method"))
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		writeError(w, err)
		return
	}

	ar, p, err := flow.Start(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}

	key := correlationKey(p)
	if err := c.store.Save(r.Context(), key, p, c.ttl); err != nil {
		writeError(w, err)
		return
	}

	encoded, err := p.Encode(c.signer)
	if err != nil {
		writeError(w, err)
		return
	}

	flowLogger := observability.WithFlow(c.logger, string(p.Method), key)
	flowLogger.Info().
		Str("pending_id", p.ID.String()).
		Msg("pending request stored")

	writeJSON(w, http.StatusCreated, toAuthRequestResponse(ar, p, key, encoded, time.Now().UTC().Add(c.ttl)))
}

// correlationKey is the value a browser return carries back. Requests without
// a pairing id can still be completed through the stateless return endpoint.
func correlationKey(p *paymentauth.PendingRequest) string {
	if key := p.CorrelationKey(); key != "" {
		return key
	}
	return p.ID.String()
}
