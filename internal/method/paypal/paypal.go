// Package paypal implements the PayPal browser hand-off: REST payment
// resource or billing agreement creation, return classification and
// tokenization into a PayPal account nonce.
package paypal

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/method"
)

// RequestCode tags PayPal browser switches.
const RequestCode = 13591

const (
	createPaymentResourcePath = "/v1/paypal_hermes/create_payment_resource"
	setupBillingAgreementPath = "/v1/paypal_hermes/setup_billing_agreement"
	tokenizePath              = "/v1/payment_methods/paypal_accounts"
	deepLinkPath              = "onetouch/v1"
)

// PayPal is the PayPal instantiation of the hand-off pipeline.
type PayPal struct{}

func New() PayPal { return PayPal{} }

func (PayPal) Name() paymentauth.Method { return paymentauth.MethodPayPal }

func (PayPal) RequestCode() int { return RequestCode }

func (PayPal) Classifier() correlator.Classifier { return classifier{} }

type experienceProfile struct {
	NoShipping      bool   `json:"no_shipping"`
	AddressOverride bool   `json:"address_override"`
	BrandName       string `json:"brand_name,omitempty"`
	LocaleCode      string `json:"locale_code,omitempty"`
	LandingPageType string `json:"landing_page_type,omitempty"`
	UserAction      string `json:"user_action,omitempty"`
}

type billingAgreementDetails struct {
	Description string `json:"description,omitempty"`
}

// createBody covers both create_payment_resource and setup_billing_agreement.
// Empty optional fields are omitted rather than sent as "".
type createBody struct {
	ReturnURL               string                   `json:"return_url"`
	CancelURL               string                   `json:"cancel_url"`
	ExperienceProfile       experienceProfile        `json:"experience_profile"`
	Amount                  string                   `json:"amount,omitempty"`
	CurrencyISOCode         string                   `json:"currency_iso_code,omitempty"`
	Intent                  paymentauth.Intent       `json:"intent,omitempty"`
	Description             string                   `json:"description,omitempty"`
	OfferPayLater           bool                     `json:"offer_pay_later,omitempty"`
	RequestBillingAgreement bool                     `json:"request_billing_agreement,omitempty"`
	BillingAgreementDetails *billingAgreementDetails `json:"billing_agreement_details,omitempty"`
	LineItems               []LineItem               `json:"line_items,omitempty"`
	ShippingAddress         *PostalAddress           `json:"shipping_address,omitempty"`
	MerchantAccountID       string                   `json:"merchant_account_id,omitempty"`
	CorrelationID           string                   `json:"correlation_id,omitempty"`
}

type createResponse struct {
	PaymentResource *struct {
		RedirectURL string `json:"redirectUrl"`
	} `json:"paymentResource"`
	AgreementSetup *struct {
		ApprovalURL string `json:"approvalUrl"`
	} `json:"agreementSetup"`
}

func buildCreateBody(env method.Env, req Request, successURL, cancelURL string) createBody {
	displayName := req.DisplayName
	if displayName == "" && env.Config != nil {
		displayName = env.Config.PayPal.DisplayName
	}
	currency := req.CurrencyCode
	if currency == "" && env.Config != nil && req.Flow == FlowCheckout {
		currency = env.Config.PayPal.CurrencyCode
	}

	body := createBody{
		ReturnURL: successURL,
		CancelURL: cancelURL,
		ExperienceProfile: experienceProfile{
			NoShipping:      !req.ShippingAddressRequired,
			AddressOverride: req.ShippingAddressOverride != nil && !req.ShippingAddressEditable,
			BrandName:       displayName,
			LocaleCode:      req.LocaleCode,
			LandingPageType: string(req.LandingPage),
		},
		LineItems:         req.LineItems,
		ShippingAddress:   req.ShippingAddressOverride,
		MerchantAccountID: req.MerchantAccountID,
		CorrelationID:     req.RiskCorrelationID,
	}
	if req.UserActionCommit {
		body.ExperienceProfile.UserAction = "commit"
	}

	switch req.Flow {
	case FlowVault:
		body.Description = req.BillingAgreementDescription
	default:
		body.Amount = req.Amount
		body.CurrencyISOCode = currency
		body.Intent = req.intent()
		body.OfferPayLater = req.OfferPayLater
		if req.RequestBillingAgreement {
			body.RequestBillingAgreement = true
			if req.BillingAgreementDescription != "" {
				body.BillingAgreementDetails = &billingAgreementDetails{Description: req.BillingAgreementDescription}
			}
		}
	}
	return body
}

// CreateContext creates the PayPal payment resource or billing agreement and
// describes a browser hand-off to its approval URL.
func (p PayPal) CreateContext(ctx context.Context, env method.Env, req Request) (*paymentauth.AuthRequest, error) {
	base, scheme := env.ReturnBase(p.Name(), deepLinkPath)
	successURL, cancelURL := base+"/success", base+"/cancel"

	path := createPaymentResourcePath
	if req.Flow == FlowVault {
		path = setupBillingAgreementPath
	}

	out, err := env.Gateway.Post(ctx, path, buildCreateBody(env, req, successURL, cancelURL))
	if err != nil {
		return nil, err
	}

	var resp createResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, errors.NewKindError(errors.ErrTransport, "malformed_response", "paypal create response is not valid JSON", err)
	}
	var approvalURL string
	switch {
	case req.Flow == FlowVault && resp.AgreementSetup != nil:
		approvalURL = resp.AgreementSetup.ApprovalURL
	case req.Flow == FlowCheckout && resp.PaymentResource != nil:
		approvalURL = resp.PaymentResource.RedirectURL
	}
	if approvalURL == "" {
		return nil, errors.NewKindError(errors.ErrTransport, "malformed_response", "paypal create response has no approval URL", nil)
	}
	if req.UserActionCommit {
		approvalURL = withParam(approvalURL, "useraction", "commit")
	}

	pairingID := pairingIDFromApproval(approvalURL, req.Flow)
	md := paymentauth.Metadata{
		ClientMetadataID:  method.ResolveClientMetadataID(ctx, req.RiskCorrelationID, approvalURL, pairingID, env.RiskData),
		PairingID:         pairingID,
		ApprovalURL:       approvalURL,
		SuccessURL:        successURL,
		CancelURL:         cancelURL,
		PaymentType:       req.paymentType(),
		MerchantAccountID: req.MerchantAccountID,
		ReturnScheme:      scheme,
		Validate:          req.ShouldValidate,
		AuthorizationKind: string(env.Auth.Kind()),
	}
	if req.Flow == FlowCheckout {
		md.Intent = req.intent()
		md.Extras = map[string]string{"amount": req.Amount}
		if req.RequestBillingAgreement {
			md.Extras["request_billing_agreement"] = strconv.FormatBool(true)
		}
	}

	return &paymentauth.AuthRequest{
		RequestCode: RequestCode,
		Method:      p.Name(),
		Metadata:    md,
		Handoff: paymentauth.Handoff{
			Kind: paymentauth.HandoffBrowser,
			URL:  approvalURL,
		},
	}, nil
}

// The return echoes ba_token for billing agreements and token for checkout.
func pairingIDFromApproval(approvalURL string, flow Flow) string {
	u, err := url.Parse(approvalURL)
	if err != nil {
		return ""
	}
	q := u.Query()
	if flow == FlowVault {
		if v := q.Get("ba_token"); v != "" {
			return v
		}
	}
	return q.Get("token")
}

func withParam(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}
