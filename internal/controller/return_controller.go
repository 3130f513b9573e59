package controller

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/cassiomorais/payauth/internal/correlator"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/domain/pending"
	"github.com/cassiomorais/payauth/pkg/saga"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// returnKeyParams are the query parameters a return may carry its pairing id
// in, in lookup order.
var returnKeyParams = []string{"ba_token", "token", "resource_id"}

// ReturnController completes hand-offs when control comes back.
type ReturnController struct {
	flows         Flows
	store         pending.Store
	ttl           time.Duration
	signer        paymentauth.Signer
	returnURLBase string
	logger        zerolog.Logger
}

func NewReturnController(flows Flows, store pending.Store, ttl time.Duration, signer paymentauth.Signer, returnURLBase string, logger zerolog.Logger) *ReturnController {
	return &ReturnController{
		flows:         flows,
		store:         store,
		ttl:           ttl,
		signer:        signer,
		returnURLBase: strings.TrimRight(returnURLBase, "/"),
		logger:        logger,
	}
}

// Browser handles GET {return path}/{method}/*, the landing page the external
// surface redirects to.
func (c *ReturnController) Browser(w http.ResponseWriter, r *http.Request) {
	flow, err := c.flows.lookup(chi.URLParam(r, "method"))
	if err != nil {
		writeError(w, err)
		return
	}

	keys := returnKeys(r.URL.Query())
	if len(keys) == 0 {
		writeError(w, domainErrors.NewValidationError("token", "return carries no correlation token"))
		return
	}

	var (
		key    string
		p      *paymentauth.PendingRequest
		result *correlator.Result
	)
	signal := paymentauth.ReturnSignal{Status: paymentauth.StatusOK, URI: c.returnURI(r)}

	// A return that is not the pending request's own puts it back, so the
	// genuine return can still complete it.
	err = saga.New("browser-return", c.logger).
		AddStep(saga.Step{
			Name: "take",
			Execute: func(ctx context.Context) (err error) {
				key, p, err = c.take(ctx, keys)
				return err
			},
			Compensate: func(ctx context.Context) error {
				return c.restore(ctx, key, p)
			},
		}).
		Then("correlate", func(ctx context.Context) (err error) {
			result, err = flow.Correlate(ctx, p, signal)
			return err
		}).
		Execute(r.Context())
	if err != nil {
		writeError(w, saga.Cause(err))
		return
	}

	nonce, err := flow.Tokenize(r.Context(), result)
	c.writeOutcome(w, flow.Method(), result, nonce, err)
}

// Complete handles POST /api/v1/returns for hosts that keep the pending
// request themselves.
func (c *ReturnController) Complete(w http.ResponseWriter, r *http.Request) {
	var req CompleteReturnRequest
	if err := decodeAndValidate(r, &req); err != nil {
		writeError(w, err)
		return
	}

	p, err := paymentauth.DecodePendingRequest(req.PendingRequest, c.signer)
	if err != nil {
		writeError(w, err)
		return
	}
	flow, err := c.flows.lookup(string(p.Method))
	if err != nil {
		writeError(w, err)
		return
	}

	status := paymentauth.PlatformStatus(req.Status)
	if status == "" {
		status = paymentauth.StatusOK
	}
	signal := paymentauth.ReturnSignal{RequestCode: req.RequestCode, Status: status, URI: req.URI}

	result, err := flow.Correlate(r.Context(), p, signal)
	if err != nil {
		writeError(w, err)
		return
	}
	nonce, err := flow.Tokenize(r.Context(), result)
	c.writeOutcome(w, flow.Method(), result, nonce, err)
}

func (c *ReturnController) writeOutcome(w http.ResponseWriter, method paymentauth.Method, result *correlator.Result, nonce *paymentauth.Nonce, err error) {
	resp := ReturnResponse{Method: string(method)}
	if result != nil {
		resp.ClientMetadataID = result.Metadata().ClientMetadataID
	}

	if err != nil {
		if errors.Is(err, domainErrors.ErrUserCanceled) {
			resp.Status = string(correlator.StatusCancel)
			writeJSON(w, http.StatusOK, resp)
			return
		}
		writeError(w, err)
		return
	}

	resp.Status = string(correlator.StatusSuccess)
	resp.Nonce = toNonceResponse(nonce)
	writeJSON(w, http.StatusOK, resp)
}

// restore saves p again for whatever is left of its TTL.
func (c *ReturnController) restore(ctx context.Context, key string, p *paymentauth.PendingRequest) error {
	remaining := c.ttl - time.Since(p.CreatedAt)
	if remaining <= 0 {
		return nil
	}
	return c.store.Save(ctx, key, p, remaining)
}

// returnURI rebuilds the absolute URL the browser landed on.
func (c *ReturnController) returnURI(r *http.Request) string {
	if c.returnURLBase != "" {
		u := c.returnURLBase + "/" + chi.URLParam(r, "method") + "/" + chi.URLParam(r, "*")
		if r.URL.RawQuery != "" {
			u += "?" + r.URL.RawQuery
		}
		return u
	}

	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	u := url.URL{Scheme: scheme, Host: r.Host, Path: r.URL.Path, RawQuery: r.URL.RawQuery}
	return u.String()
}

// take claims the first candidate key the store holds a request for.
func (c *ReturnController) take(ctx context.Context, keys []string) (string, *paymentauth.PendingRequest, error) {
	for _, key := range keys {
		p, err := c.store.Take(ctx, key)
		if err == nil {
			return key, p, nil
		}
		if !errors.Is(err, domainErrors.ErrPendingNotFound) {
			return "", nil, err
		}
	}
	return "", nil, domainErrors.ErrPendingNotFound
}

// returnKeys lists the distinct non-empty correlation tokens in q.
func returnKeys(q url.Values) []string {
	var keys []string
	for _, param := range returnKeyParams {
		v := q.Get(param)
		if v == "" || slices.Contains(keys, v) {
			continue
		}
		keys = append(keys, v)
	}
	return keys
}

// ReturnPath is the router mount point for browser returns under base.
func ReturnPath(base string) string {
	if base == "" {
		return "/return"
	}
	u, err := url.Parse(base)
	if err != nil || strings.Trim(u.Path, "/") == "" {
		return "/return"
	}
	return "/" + strings.Trim(u.Path, "/")
}
