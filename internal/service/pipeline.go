package service

import (
	"context"
	"errors"
	"time"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/gateway"
	"github.com/cassiomorais/payauth/internal/handoff"
	"github.com/cassiomorais/payauth/internal/infrastructure/observability"
	"github.com/cassiomorais/payauth/internal/method"
	"github.com/cassiomorais/payauth/internal/riskdata"
	"github.com/cassiomorais/payauth/internal/telemetry"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ConfigProvider returns the merchant configuration for an authorization.
type ConfigProvider interface {
	Fetch(ctx context.Context, auth authorization.Authorization) (*configuration.Configuration, error)
}

// TransportFactory builds the gateway transport for one flow.
type TransportFactory func(auth authorization.Authorization, cfg *configuration.Configuration) gateway.Transport

// FactoryTransport adapts a gateway.Factory to a TransportFactory.
func FactoryTransport(f *gateway.Factory) TransportFactory {
	return func(auth authorization.Authorization, cfg *configuration.Configuration) gateway.Transport {
		return f.Transport(auth, cfg)
	}
}

// Deps are the collaborators shared by every pipeline instantiation.
type Deps struct {
	Authorization AuthorizationProvider
	Config        ConfigProvider
	Transport     TransportFactory
	Launcher      *handoff.Launcher
	RiskData      riskdata.Collector
	Sink          telemetry.Sink
	Metrics       *observability.Metrics
	Logger        zerolog.Logger

	ReturnScheme  string
	ReturnURLBase string
}

// Pipeline is the create → launch → return → tokenize flow for one payment
// method. It holds no per-flow state; every call is independent.
type Pipeline[R any] struct {
	method method.Method[R]
	deps   Deps
	tracer trace.Tracer
}

func NewPipeline[R any](m method.Method[R], deps Deps) *Pipeline[R] {
	if deps.Sink == nil {
		deps.Sink = telemetry.Nop{}
	}
	if deps.RiskData == nil {
		deps.RiskData = riskdata.UUIDCollector{}
	}
	return &Pipeline[R]{
		method: m,
		deps:   deps,
		tracer: observability.Tracer("payauth/service"),
	}
}

// Method is the payment method this pipeline serves.
func (p *Pipeline[R]) Method() paymentauth.Method {
	return p.method.Name()
}

func (p *Pipeline[R]) emit(ctx context.Context, event, correlationID string) {
	p.deps.Sink.Emit(ctx, telemetry.Name(string(p.method.Name()), event), correlationID)
}

func (p *Pipeline[R]) resolveAuthorization(ctx context.Context) (authorization.Authorization, error) {
	if p.deps.Authorization == nil {
		return authorization.Authorization{}, domainErrors.NewKindError(domainErrors.ErrInvalidAuthorization, "missing_authorization", "no authorization provider", nil)
	}
	raw, err := p.deps.Authorization.Authorization(ctx)
	if err != nil {
		return authorization.Authorization{}, err
	}
	return authorization.Parse(raw)
}

// environment completes env with the merchant configuration and a transport.
// A disabled method fails here, before any transport exists.
func (p *Pipeline[R]) environment(ctx context.Context, env method.Env) (method.Env, error) {
	cfg, err := p.deps.Config.Fetch(ctx, env.Auth)
	if err != nil {
		return env, err
	}
	if !cfg.Enabled(p.method.Name()) {
		return env, domainErrors.NewKindError(domainErrors.ErrMethodDisabled, "method_disabled",
			string(p.method.Name())+" is not enabled for this merchant", nil)
	}
	env.Config = cfg
	env.Gateway = p.deps.Transport(env.Auth, cfg)
	return env, nil
}

func (p *Pipeline[R]) baseEnv(auth authorization.Authorization) method.Env {
	return method.Env{
		Auth:          auth,
		RiskData:      p.deps.RiskData,
		ReturnScheme:  p.deps.ReturnScheme,
		ReturnURLBase: p.deps.ReturnURLBase,
	}
}

// CreatePaymentAuthRequest validates req, opens the gateway payment context and
// returns a request ready to launch. Failures are never retried here.
func (p *Pipeline[R]) CreatePaymentAuthRequest(ctx context.Context, req R) (*paymentauth.AuthRequest, error) {
	name := string(p.method.Name())
	ctx, span := p.tracer.Start(ctx, name+".create_payment_auth_request")
	defer span.End()

	p.emit(ctx, telemetry.TokenizeSelected, "")
	p.emit(ctx, telemetry.TokenizeStarted, "")

	ar, err := p.create(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		p.emit(ctx, telemetry.TokenizeFailed, "")
		p.countRequest("failed")
		p.deps.Logger.Warn().Err(err).Str("method", name).Str("code", domainErrors.Code(err)).Msg("payment auth request failed")
		return nil, err
	}

	span.SetAttributes(attribute.String("payauth.pairing_id", ar.Metadata.PairingID))
	p.countRequest("ready")
	flowLogger := observability.WithFlow(p.deps.Logger, name, ar.Metadata.PairingID)
	flowLogger.Info().
		Str("handoff", string(ar.Handoff.Kind)).
		Msg("payment auth request ready")
	return ar, nil
}

func (p *Pipeline[R]) create(ctx context.Context, req R) (*paymentauth.AuthRequest, error) {
	auth, err := p.resolveAuthorization(ctx)
	if err != nil {
		return nil, err
	}
	env := p.baseEnv(auth)
	if err := p.method.Validate(env, req); err != nil {
		return nil, err
	}
	env, err = p.environment(ctx, env)
	if err != nil {
		return nil, err
	}
	return p.method.CreateContext(ctx, env, req)
}

func (p *Pipeline[R]) countRequest(status string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.AuthRequestsTotal.WithLabelValues(string(p.method.Name()), status).Inc()
	}
}

// Launch starts the hand-off for req and returns the pending request to keep.
func (p *Pipeline[R]) Launch(ctx context.Context, req *paymentauth.AuthRequest) (*paymentauth.PendingRequest, error) {
	if req != nil && req.Method != p.method.Name() {
		return nil, domainErrors.NewDomainError("method_mismatch", "auth request belongs to "+string(req.Method), domainErrors.ErrInvalidInput)
	}
	return p.deps.Launcher.Launch(ctx, req)
}

// HandleReturn correlates signal with pending. A nil result means the signal
// is not for pending and must be ignored.
func (p *Pipeline[R]) HandleReturn(ctx context.Context, pending *paymentauth.PendingRequest, signal paymentauth.ReturnSignal) *correlator.Result {
	name := string(p.method.Name())
	if pending != nil && pending.Method != p.method.Name() {
		pending = nil
	}

	result := correlator.Parse(pending, signal, p.method.Classifier())
	if result == nil {
		p.countReturn("ignored")
		p.emit(ctx, telemetry.ReturnIgnored, "")
		p.deps.Logger.Debug().
			Err(domainErrors.ErrCorrelationMismatch).
			Str("method", name).
			Int("request_code", signal.RequestCode).
			Str("status", string(signal.Status)).
			Msg("return signal ignored")
		return nil
	}

	p.countReturn(string(result.Status()))
	flowLogger := observability.WithFlow(p.deps.Logger, name, pending.CorrelationKey())
	flowLogger.Debug().
		Str("outcome", string(result.Status())).
		Msg("return correlated")
	return result
}

func (p *Pipeline[R]) countReturn(outcome string) {
	if p.deps.Metrics != nil {
		p.deps.Metrics.ReturnsTotal.WithLabelValues(string(p.method.Name()), outcome).Inc()
	}
}

// Tokenize exchanges a successful result for a nonce, vaulting it first when
// the request asked for it. Cancel and error results are returned unchanged as
// errors without touching the gateway.
func (p *Pipeline[R]) Tokenize(ctx context.Context, result *correlator.Result) (*paymentauth.Nonce, error) {
	if result == nil {
		return nil, domainErrors.NewDomainError("nil_result", "payment auth result is nil", domainErrors.ErrInvalidInput)
	}
	if result.Method() != p.method.Name() {
		return nil, domainErrors.NewDomainError("method_mismatch", "result belongs to "+string(result.Method()), domainErrors.ErrInvalidInput)
	}

	name := string(p.method.Name())
	md := result.Metadata()
	correlationID := md.ClientMetadataID
	logger := observability.WithFlow(p.deps.Logger, name, md.PairingID)

	switch result.Status() {
	case correlator.StatusCancel:
		p.emit(ctx, telemetry.TokenizeCanceled, correlationID)
		logger.Info().Msg("payment auth canceled by user")
		return nil, result.Err()
	case correlator.StatusError:
		p.emit(ctx, telemetry.TokenizeFailed, correlationID)
		logger.Warn().Err(result.Err()).Msg("payment auth returned an error")
		return nil, result.Err()
	}

	ctx, span := p.tracer.Start(ctx, name+".tokenize")
	defer span.End()
	start := time.Now()

	nonce, err := p.tokenize(ctx, result)
	status := "succeeded"
	if err != nil {
		status = "failed"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if p.deps.Metrics != nil {
		p.deps.Metrics.TokenizeDuration.WithLabelValues(name, status).Observe(time.Since(start).Seconds())
	}

	if err != nil {
		if errors.Is(err, domainErrors.ErrVault) {
			p.emit(ctx, telemetry.VaultFailed, correlationID)
		}
		p.emit(ctx, telemetry.TokenizeFailed, correlationID)
		logger.Error().Err(err).Str("code", domainErrors.Code(err)).Msg("tokenize failed")
		return nil, err
	}

	p.emit(ctx, telemetry.TokenizeSucceeded, correlationID)
	logger.Info().Str("type", nonce.Type).Msg("tokenize succeeded")
	return nonce, nil
}

func (p *Pipeline[R]) tokenize(ctx context.Context, result *correlator.Result) (*paymentauth.Nonce, error) {
	auth, err := p.resolveAuthorization(ctx)
	if err != nil {
		return nil, err
	}
	env, err := p.environment(ctx, p.baseEnv(auth))
	if err != nil {
		return nil, err
	}

	nonce, err := p.method.Tokenize(ctx, env, result)
	if err != nil {
		return nil, err
	}

	md := result.Metadata()
	if !md.ShouldVault {
		return nonce, nil
	}
	vaulted, err := p.method.Vault(ctx, env, result, nonce)
	if err != nil {
		return nil, domainErrors.NewKindError(domainErrors.ErrVault, "vault_failed", "payment method was tokenized but could not be vaulted", err)
	}
	p.emit(ctx, telemetry.VaultSucceeded, md.ClientMetadataID)
	return vaulted, nil
}
