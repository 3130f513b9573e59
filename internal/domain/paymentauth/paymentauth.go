package paymentauth

import (
	"fmt"
	"strings"

	"github.com/cassiomorais/payauth/internal/domain/errors"
)

// Method identifies a redirect-based payment method.
type Method string

const (
	MethodPayPal Method = "paypal"
	MethodVenmo  Method = "venmo"
)

// ParseMethod maps a path or config value onto a known Method.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodPayPal, MethodVenmo:
		return m, nil
	default:
		return "", errors.NewDomainError("unknown_method", fmt.Sprintf("unknown payment method %q", s), errors.ErrInvalidInput)
	}
}

// PaymentType literals are sent to the gateway as-is.
type PaymentType string

const (
	PaymentTypeBillingAgreement PaymentType = "billing-agreement"
	PaymentTypeSinglePayment    PaymentType = "single-payment"
	PaymentTypePaymentContext   PaymentType = "payment-context-id"
)

// Intent represents the payment intent
type Intent string

const (
	IntentAuthorize Intent = "authorize"
	IntentSale      Intent = "sale"
	IntentOrder     Intent = "order"
	IntentContinue  Intent = "continue"
)

// HandoffKind is the surface control is handed to.
type HandoffKind string

const (
	HandoffBrowser   HandoffKind = "browser"
	HandoffAppSwitch HandoffKind = "app_switch"
)

// Metadata is packed into the hand-off and persisted with the pending request so a
// return can be interpreted without another gateway round trip.
type Metadata struct {
	// ClientMetadataID is the correlation id shared with the gateway's risk service.
	ClientMetadataID  string            `json:"client_metadata_id,omitempty"`
	PairingID         string            `json:"pairing_id,omitempty"`
	ApprovalURL       string            `json:"approval_url,omitempty"`
	SuccessURL        string            `json:"success_url,omitempty"`
	CancelURL         string            `json:"cancel_url,omitempty"`
	ErrorURL          string            `json:"error_url,omitempty"`
	PaymentType       PaymentType       `json:"payment_type"`
	Intent            Intent            `json:"intent,omitempty"`
	MerchantAccountID string            `json:"merchant_account_id,omitempty"`
	ReturnScheme      string            `json:"return_scheme"`
	ShouldVault       bool              `json:"should_vault,omitempty"`
	Validate          *bool             `json:"validate,omitempty"`
	AuthorizationKind string            `json:"authorization_kind"`
	Extras            map[string]string `json:"extras,omitempty"`
}

// Handoff describes where control goes when the request is launched.
type Handoff struct {
	Kind      HandoffKind
	URL       string
	TargetApp string
}

// AuthRequest is a payment context that is ready to launch. A failed creation
// returns a nil *AuthRequest together with the error.
type AuthRequest struct {
	RequestCode int
	Method      Method
	Metadata    Metadata
	Handoff     Handoff
}

// PlatformStatus is the coarse result code reported by the platform on return.
type PlatformStatus string

const (
	StatusOK       PlatformStatus = "ok"
	StatusCanceled PlatformStatus = "canceled"
	StatusUnknown  PlatformStatus = "unknown"
)

// ReturnSignal is the raw signal received when control comes back.
// RequestCode is zero when the platform does not report one (deep links).
type ReturnSignal struct {
	RequestCode int            `json:"request_code,omitempty"`
	Status      PlatformStatus `json:"status"`
	URI         string         `json:"uri,omitempty"`
}

// Nonce is a single-use reference to a tokenized payment method.
type Nonce struct {
	Nonce       string         `json:"nonce"`
	Description string         `json:"description"`
	IsDefault   bool           `json:"is_default"`
	Type        string         `json:"type"`
	Details     map[string]any `json:"details,omitempty"`
}
