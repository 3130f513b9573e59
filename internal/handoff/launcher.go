// Package handoff starts the external surface (browser or another app) that
// completes a payment authorization.
package handoff

import (
	"context"
	"errors"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/cassiomorais/payauth/internal/telemetry"
	"github.com/rs/zerolog"
)

// Descriptor is what the platform needs to leave the app and come back.
type Descriptor struct {
	Kind         paymentauth.HandoffKind
	URL          string
	TargetApp    string
	ReturnScheme string
	RequestCode  int
}

// Handle identifies a started hand-off.
type Handle struct {
	URL string
}

// Platform is the browser/app-switch primitive.
type Platform interface {
	AssertAvailable(ctx context.Context, d Descriptor) error
	Start(ctx context.Context, d Descriptor) (Handle, error)
}

// Launcher turns ready requests into pending requests.
type Launcher struct {
	platform Platform
	sink     telemetry.Sink
	metrics  *observability.Metrics
	logger   zerolog.Logger
}

func NewLauncher(platform Platform, sink telemetry.Sink, metrics *observability.Metrics, logger zerolog.Logger) *Launcher {
	if sink == nil {
		sink = telemetry.Nop{}
	}
	return &Launcher{
		platform: platform,
		sink:     sink,
		metrics:  metrics,
		logger:   logger,
	}
}

// Launch starts the hand-off and returns as soon as the platform accepted it.
func (l *Launcher) Launch(ctx context.Context, req *paymentauth.AuthRequest) (*paymentauth.PendingRequest, error) {
	if req == nil {
		return nil, domainErrors.NewDomainError("nil_request", "auth request is nil", domainErrors.ErrInvalidInput)
	}

	method := string(req.Method)
	correlationID := req.Metadata.ClientMetadataID

	d := NewDescriptor(req)

	if err := l.platform.AssertAvailable(ctx, d); err != nil {
		if !errors.Is(err, domainErrors.ErrAppSwitchNotAvailable) && !errors.Is(err, domainErrors.ErrManifestMisconfigured) {
			err = domainErrors.NewKindError(domainErrors.ErrManifestMisconfigured, "manifest_misconfigured", "return path is not usable", err)
		}
		return nil, l.fail(ctx, req, err)
	}

	handle, err := l.platform.Start(ctx, d)
	if err != nil {
		if !errors.Is(err, domainErrors.ErrAppSwitchNotAvailable) && !errors.Is(err, domainErrors.ErrLaunch) {
			err = domainErrors.NewKindError(domainErrors.ErrLaunch, "launch_failed", "platform could not start the hand-off", err)
		}
		return nil, l.fail(ctx, req, err)
	}

	pending := paymentauth.NewPendingRequest(req)
	l.sink.Emit(ctx, telemetry.Name(method, telemetry.HandoffStarted), correlationID)
	if l.metrics != nil {
		l.metrics.HandoffsTotal.WithLabelValues(method, string(d.Kind), "started").Inc()
	}
	l.logger.Info().
		Str("method", method).
		Str("pending_id", pending.ID.String()).
		Str("kind", string(d.Kind)).
		Str("url", handle.URL).
		Msg("hand-off started")
	return pending, nil
}

func (l *Launcher) fail(ctx context.Context, req *paymentauth.AuthRequest, err error) error {
	method := string(req.Method)
	l.sink.Emit(ctx, telemetry.Name(method, telemetry.HandoffFailed), req.Metadata.ClientMetadataID)
	if l.metrics != nil {
		l.metrics.HandoffsTotal.WithLabelValues(method, string(req.Handoff.Kind), "failed").Inc()
	}
	l.logger.Warn().Err(err).Str("method", method).Msg("hand-off failed")
	return err
}

// NewDescriptor builds the platform descriptor for req. The request metadata
// stays with the pending request and never leaves with the hand-off.
func NewDescriptor(req *paymentauth.AuthRequest) Descriptor {
	return Descriptor{
		Kind:         req.Handoff.Kind,
		URL:          req.Handoff.URL,
		TargetApp:    req.Handoff.TargetApp,
		ReturnScheme: req.Metadata.ReturnScheme,
		RequestCode:  req.RequestCode,
	}
}
