package controller

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/cassiomorais/payauth/internal/correlator"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/service"
)

// Flow is one payment method's pipeline as the HTTP layer drives it.
type Flow interface {
	Method() paymentauth.Method

	// Start decodes the method's request body, creates the payment context and
	// launches the hand-off.
	Start(ctx context.Context, body []byte) (*paymentauth.AuthRequest, *paymentauth.PendingRequest, error)

	// Correlate matches a return against pending. A return that does not
	// belong to pending yields ErrCorrelationMismatch.
	Correlate(ctx context.Context, pending *paymentauth.PendingRequest, signal paymentauth.ReturnSignal) (*correlator.Result, error)

	// Tokenize exchanges a correlated result for a nonce.
	Tokenize(ctx context.Context, result *correlator.Result) (*paymentauth.Nonce, error)
}

type pipelineFlow[R any] struct {
	pipeline *service.Pipeline[R]
}

// NewFlow exposes a typed pipeline through the untyped Flow interface.
func NewFlow[R any](p *service.Pipeline[R]) Flow {
	return pipelineFlow[R]{pipeline: p}
}

func (f pipelineFlow[R]) Method() paymentauth.Method {
	return f.pipeline.Method()
}

func (f pipelineFlow[R]) Start(ctx context.Context, body []byte) (*paymentauth.AuthRequest, *paymentauth.PendingRequest, error) {
	var req R
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return nil, nil, domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}

	ar, err := f.pipeline.CreatePaymentAuthRequest(ctx, req)
	if err != nil {
		return nil, nil, err
	}
	pending, err := f.pipeline.Launch(ctx, ar)
	if err != nil {
		return nil, nil, err
	}
	return ar, pending, nil
}

func (f pipelineFlow[R]) Correlate(ctx context.Context, pending *paymentauth.PendingRequest, signal paymentauth.ReturnSignal) (*correlator.Result, error) {
	result := f.pipeline.HandleReturn(ctx, pending, signal)
	if result == nil {
		return nil, domainErrors.ErrCorrelationMismatch
	}
	return result, nil
}

func (f pipelineFlow[R]) Tokenize(ctx context.Context, result *correlator.Result) (*paymentauth.Nonce, error) {
	return f.pipeline.Tokenize(ctx, result)
}

// Flows indexes flows by payment method.
type Flows map[paymentauth.Method]Flow

func NewFlows(flows ...Flow) Flows {
	m := make(Flows, len(flows))
	for _, f := range flows {
		m[f.Method()] = f
	}
	return m
}

func (fs Flows) lookup(raw string) (Flow, error) {
	method, err := paymentauth.ParseMethod(raw)
	if err != nil {
		return nil, err
	}
	f, ok := fs[method]
	if !ok {
		return nil, domainErrors.NewDomainError("method_not_served", string(method)+" is not served by this bridge", domainErrors.ErrInvalidInput)
	}
	return f, nil
}
