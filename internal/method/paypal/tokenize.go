package paypal

import (
	"context"
	"encoding/json"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/gateway"
	"github.com/cassiomorais/payauth/internal/method"
)

type tokenizeOptions struct {
	Validate bool `json:"validate"`
}

type tokenizeResponseBody struct {
	WebURL string `json:"webURL"`
}

type paypalAccount struct {
	CorrelationID string               `json:"correlation_id,omitempty"`
	Client        map[string]any       `json:"client"`
	Response      tokenizeResponseBody `json:"response"`
	ResponseType  string               `json:"response_type"`
	Intent        paymentauth.Intent   `json:"intent,omitempty"`
	Options       *tokenizeOptions     `json:"options,omitempty"`
}

type tokenizeBody struct {
	PayPalAccount     paypalAccount `json:"paypal_account"`
	MerchantAccountID string        `json:"merchant_account_id,omitempty"`
}

type tokenizeResult struct {
	PayPalAccounts []struct {
		Nonce       string         `json:"nonce"`
		Description string         `json:"description"`
		Default     bool           `json:"default"`
		Type        string         `json:"type"`
		Details     map[string]any `json:"details"`
	} `json:"paypalAccounts"`
}

// validateOption decides options.validate. A nil result omits the options
// object entirely.
func validateOption(md paymentauth.Metadata) *tokenizeOptions {
	if md.PaymentType != paymentauth.PaymentTypeBillingAgreement {
		return &tokenizeOptions{Validate: false}
	}
	if md.Validate != nil {
		return &tokenizeOptions{Validate: *md.Validate}
	}
	switch authorization.Kind(md.AuthorizationKind) {
	case authorization.KindClientToken:
		return &tokenizeOptions{Validate: true}
	case authorization.KindTokenizationKey:
		return &tokenizeOptions{Validate: false}
	default:
		return nil
	}
}

func buildTokenizeBody(result *correlator.Result) tokenizeBody {
	md := result.Metadata()
	acct := paypalAccount{
		CorrelationID: md.ClientMetadataID,
		Client:        map[string]any{},
		Response:      tokenizeResponseBody{WebURL: result.ReturnURI()},
		ResponseType:  "web",
		Options:       validateOption(md),
	}
	if md.PaymentType == paymentauth.PaymentTypeSinglePayment {
		acct.Intent = md.Intent
	}
	return tokenizeBody{PayPalAccount: acct, MerchantAccountID: md.MerchantAccountID}
}

// Tokenize exchanges the browser return URL for a PayPal account nonce.
func (PayPal) Tokenize(ctx context.Context, env method.Env, result *correlator.Result) (*paymentauth.Nonce, error) {
	out, err := env.Gateway.Post(ctx, tokenizePath, buildTokenizeBody(result))
	if err != nil {
		if gateway.IsRejection(err) {
			return nil, errors.NewKindError(errors.ErrTokenize, "tokenize_rejected", "gateway rejected the paypal account", err)
		}
		return nil, err
	}

	var resp tokenizeResult
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, errors.NewKindError(errors.ErrTokenize, "malformed_response", "paypal tokenize response is not valid JSON", err)
	}
	if len(resp.PayPalAccounts) == 0 || resp.PayPalAccounts[0].Nonce == "" {
		return nil, errors.NewKindError(errors.ErrTokenize, "malformed_response", "paypal tokenize response has no account", nil)
	}
	acct := resp.PayPalAccounts[0]
	typ := acct.Type
	if typ == "" {
		typ = "PayPalAccount"
	}
	return &paymentauth.Nonce{
		Nonce:       acct.Nonce,
		Description: acct.Description,
		IsDefault:   acct.Default,
		Type:        typ,
		Details:     acct.Details,
	}, nil
}

// Vault returns nonce unchanged. The billing agreement is the vaulted form.
func (PayPal) Vault(_ context.Context, _ method.Env, _ *correlator.Result, nonce *paymentauth.Nonce) (*paymentauth.Nonce, error) {
	return nonce, nil
}
