// Package method defines what a redirect-based payment method plugs into the
// generic hand-off pipeline.
package method

import (
	"context"
	"net/url"
	"strings"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/gateway"
	"github.com/cassiomorais/payauth/internal/riskdata"
)

// Env is everything a method needs for one gateway interaction.
type Env struct {
	Auth     authorization.Authorization
	Config   *configuration.Configuration
	Gateway  gateway.Transport
	RiskData riskdata.Collector

	// ReturnScheme is the host's custom deep-link scheme.
	ReturnScheme string
	// ReturnURLBase, when set, replaces the deep-link return base with an
	// absolute URL (for example an HTTPS universal link served by the bridge).
	ReturnURLBase string
}

// ReturnBase returns the URL prefix the external surface sends the user back
// to, and the scheme of that URL.
func (e Env) ReturnBase(m paymentauth.Method, deepLinkPath string) (base, scheme string) {
	if e.ReturnURLBase != "" {
		base = strings.TrimRight(e.ReturnURLBase, "/") + "/" + string(m)
		if u, err := url.Parse(base); err == nil {
			scheme = u.Scheme
		}
		return base, scheme
	}
	return e.ReturnScheme + "://" + deepLinkPath, e.ReturnScheme
}

// Method is one instantiation of the pipeline, parameterised by its request type.
type Method[R any] interface {
	Name() paymentauth.Method
	RequestCode() int

	// Validate runs local checks before any network call.
	Validate(env Env, req R) error

	// CreateContext opens the gateway payment context and describes the hand-off.
	CreateContext(ctx context.Context, env Env, req R) (*paymentauth.AuthRequest, error)

	Classifier() correlator.Classifier

	// Tokenize exchanges a successful result for a nonce.
	Tokenize(ctx context.Context, env Env, result *correlator.Result) (*paymentauth.Nonce, error)

	// Vault stores the tokenized method for reuse and returns the nonce the
	// caller should keep.
	Vault(ctx context.Context, env Env, result *correlator.Result, nonce *paymentauth.Nonce) (*paymentauth.Nonce, error)
}

// ResolveClientMetadataID applies the fixed precedence: the explicit risk
// correlation id, then ba_token on the approval URL, then token on the approval
// URL, then the collector.
func ResolveClientMetadataID(ctx context.Context, explicit, approvalURL, pairingID string, collector riskdata.Collector) string {
	if explicit != "" {
		return explicit
	}
	if u, err := url.Parse(approvalURL); err == nil && approvalURL != "" {
		if tok := correlator.TokenFromURI(u); tok != "" {
			return tok
		}
	}
	if collector == nil {
		return ""
	}
	return collector.ClientMetadataID(ctx, pairingID)
}
