package paypal

import (
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/method"
)

// Flow selects between a one-time checkout and a billing agreement (vault).
type Flow string

const (
	FlowCheckout Flow = "checkout"
	FlowVault    Flow = "vault"
)

type LandingPage string

const (
	LandingPageLogin   LandingPage = "login"
	LandingPageBilling LandingPage = "billing"
)

// LineItem is a single line of the PayPal order summary.
type LineItem struct {
	Name          string `json:"name" validate:"required,max=127"`
	Quantity      string `json:"quantity" validate:"required,numeric"`
	UnitAmount    string `json:"unit_amount" validate:"required,amount"`
	Kind          string `json:"kind" validate:"required,oneof=debit credit"`
	Description   string `json:"description,omitempty" validate:"max=127"`
	ProductCode   string `json:"product_code,omitempty"`
	UnitTaxAmount string `json:"unit_tax_amount,omitempty" validate:"omitempty,amount"`
	URL           string `json:"url,omitempty" validate:"omitempty,url"`
}

// PostalAddress overrides the shipping address shown on the PayPal sheet.
type PostalAddress struct {
	RecipientName     string `json:"recipient_name,omitempty"`
	StreetAddress     string `json:"line1" validate:"required"`
	ExtendedAddress   string `json:"line2,omitempty"`
	Locality          string `json:"city" validate:"required"`
	Region            string `json:"state,omitempty"`
	PostalCode        string `json:"postal_code,omitempty"`
	CountryCodeAlpha2 string `json:"country_code" validate:"required,len=2"`
}

// Request is what the host supplies to start a PayPal flow.
type Request struct {
	Flow                        Flow               `json:"flow" validate:"required,oneof=checkout vault"`
	Amount                      string             `json:"amount,omitempty" validate:"omitempty,amount"`
	CurrencyCode                string             `json:"currency_iso_code,omitempty" validate:"omitempty,len=3"`
	Intent                      paymentauth.Intent `json:"intent,omitempty" validate:"omitempty,oneof=authorize sale order"`
	BillingAgreementDescription string             `json:"description,omitempty"`
	DisplayName                 string             `json:"display_name,omitempty"`
	LocaleCode                  string             `json:"locale_code,omitempty"`
	LandingPage                 LandingPage        `json:"landing_page_type,omitempty" validate:"omitempty,oneof=login billing"`
	UserActionCommit            bool               `json:"user_action_commit,omitempty"`
	MerchantAccountID           string             `json:"merchant_account_id,omitempty"`
	RiskCorrelationID           string             `json:"risk_correlation_id,omitempty"`
	LineItems                   []LineItem         `json:"line_items,omitempty" validate:"dive"`
	ShippingAddressRequired     bool               `json:"shipping_address_required,omitempty"`
	ShippingAddressEditable     bool               `json:"shipping_address_editable,omitempty"`
	ShippingAddressOverride     *PostalAddress     `json:"shipping_address_override,omitempty"`
	RequestBillingAgreement     bool               `json:"request_billing_agreement,omitempty"`
	OfferPayLater               bool               `json:"offer_pay_later,omitempty"`
	EnableInsights              bool               `json:"enable_insights,omitempty"`
	// ShouldValidate overrides options.validate for billing agreements.
	ShouldValidate *bool `json:"should_validate,omitempty"`
}

func (r Request) paymentType() paymentauth.PaymentType {
	if r.Flow == FlowVault {
		return paymentauth.PaymentTypeBillingAgreement
	}
	return paymentauth.PaymentTypeSinglePayment
}

func (r Request) intent() paymentauth.Intent {
	if r.Intent == "" {
		return paymentauth.IntentAuthorize
	}
	return r.Intent
}

// Validate checks struct rules and the cross-field rules of each flow.
func (PayPal) Validate(_ method.Env, req Request) error {
	if err := method.ValidateStruct(req); err != nil {
		return err
	}
	switch req.Flow {
	case FlowCheckout:
		if req.Amount == "" {
			return errors.NewValidationError("amount", "is required for one-time payments")
		}
	case FlowVault:
		if req.Amount != "" {
			return errors.NewValidationError("amount", "is not allowed for billing agreements")
		}
		if req.Intent != "" {
			return errors.NewValidationError("intent", "is not allowed for billing agreements")
		}
	}
	if req.EnableInsights && req.MerchantAccountID == "" {
		return errors.NewValidationError("merchant_account_id", "is required when insights are enabled")
	}
	return nil
}
