// Package venmo implements the Venmo app switch: GraphQL payment context
// creation, the venmo.com checkout URL, return classification and
// tokenization with optional vaulting.
package venmo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"
	"strings"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/method"
)

const (
	// RequestCode tags Venmo app switches.
	RequestCode = 13488

	// TargetApp is the package id of the Venmo app.
	TargetApp = "com.venmo"

	checkoutURL  = "https://venmo.com/go/checkout"
	deepLinkPath = "x-callback-url/vzero/auth/venmo"
	sdkVersion   = "1.0.0"
)

const createContextMutation = `mutation CreateVenmoPaymentContext($input: CreateVenmoPaymentContextInput!) {
  createVenmoPaymentContext(input: $input) {
    venmoPaymentContext {
      id
    }
  }
}`

// Venmo is the Venmo instantiation of the hand-off pipeline.
type Venmo struct {
	// Version is reported in braintree_sdk_data.
	Version string
}

func New() Venmo { return Venmo{Version: sdkVersion} }

func (Venmo) Name() paymentauth.Method { return paymentauth.MethodVenmo }

func (Venmo) RequestCode() int { return RequestCode }

func (Venmo) Classifier() correlator.Classifier { return classifier{} }

type createContextResponse struct {
	CreateVenmoPaymentContext struct {
		VenmoPaymentContext struct {
			ID string `json:"id"`
		} `json:"venmoPaymentContext"`
	} `json:"createVenmoPaymentContext"`
}

func lineItemInput(li LineItem) map[string]any {
	item := map[string]any{
		"name":       li.Name,
		"quantity":   li.Quantity,
		"unitAmount": li.UnitAmount,
		"type":       li.Type,
	}
	optional := map[string]string{
		"description":   li.Description,
		"productCode":   li.ProductCode,
		"unitTaxAmount": li.UnitTaxAmount,
		"url":           li.URL,
	}
	for k, v := range optional {
		if v != "" {
			item[k] = v
		}
	}
	return item
}

func transactionDetails(req Request) map[string]any {
	details := map[string]any{}
	amounts := map[string]string{
		"amount":         req.TotalAmount,
		"subTotalAmount": req.SubTotalAmount,
		"discountAmount": req.DiscountAmount,
		"taxAmount":      req.TaxAmount,
		"shippingAmount": req.ShippingAmount,
	}
	for k, v := range amounts {
		if v != "" {
			details[k] = v
		}
	}
	if len(req.LineItems) > 0 {
		items := make([]map[string]any, 0, len(req.LineItems))
		for _, li := range req.LineItems {
			items = append(items, lineItemInput(li))
		}
		details["lineItems"] = items
	}
	return details
}

func buildContextInput(env method.Env, req Request) map[string]any {
	input := map[string]any{
		"paymentMethodUsage": strings.ToUpper(string(req.Usage)),
		"customerClient":     "MOBILE_APP",
		"intent":             strings.ToUpper(string(paymentauth.IntentContinue)),
		"isFinalAmount":      req.TotalAmount != "",
	}
	if profile := profileID(env, req); profile != "" {
		input["merchantProfileId"] = profile
	}
	if req.DisplayName != "" {
		input["displayName"] = req.DisplayName
	}

	paysheet := map[string]any{
		"collectCustomerBillingAddress":  req.CollectBillingAddress,
		"collectCustomerShippingAddress": req.CollectShippingAddress,
	}
	if details := transactionDetails(req); len(details) > 0 {
		paysheet["transactionDetails"] = details
	}
	input["paysheetDetails"] = paysheet
	return input
}

func profileID(env method.Env, req Request) string {
	if req.ProfileID != "" {
		return req.ProfileID
	}
	if env.Config != nil {
		return env.Config.Venmo.MerchantID
	}
	return ""
}

// CreateContext opens a Venmo payment context and describes the app switch
// into the Venmo app.
func (v Venmo) CreateContext(ctx context.Context, env method.Env, req Request) (*paymentauth.AuthRequest, error) {
	out, err := env.Gateway.GraphQL(ctx, createContextMutation, map[string]any{
		"input": buildContextInput(env, req),
	})
	if err != nil {
		return nil, err
	}

	var resp createContextResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, errors.NewKindError(errors.ErrTransport, "malformed_response", "venmo payment context response is not valid JSON", err)
	}
	contextID := resp.CreateVenmoPaymentContext.VenmoPaymentContext.ID
	if contextID == "" {
		return nil, errors.NewKindError(errors.ErrTransport, "malformed_response", "venmo payment context response has no id", nil)
	}

	base, scheme := env.ReturnBase(v.Name(), deepLinkPath)
	md := paymentauth.Metadata{
		ClientMetadataID:  method.ResolveClientMetadataID(ctx, "", "", contextID, env.RiskData),
		PairingID:         contextID,
		SuccessURL:        base + "/success",
		CancelURL:         base + "/cancel",
		ErrorURL:          base + "/error",
		PaymentType:       paymentauth.PaymentTypePaymentContext,
		Intent:            paymentauth.IntentContinue,
		MerchantAccountID: profileID(env, req),
		ReturnScheme:      scheme,
		ShouldVault:       req.ShouldVault,
		AuthorizationKind: string(env.Auth.Kind()),
		Extras:            map[string]string{"payment_method_usage": string(req.Usage)},
	}

	switchURL, err := v.appSwitchURL(env, md)
	if err != nil {
		return nil, errors.NewKindError(errors.ErrLaunch, "launch_failed", "build venmo app switch URL", err)
	}
	md.ApprovalURL = switchURL

	return &paymentauth.AuthRequest{
		RequestCode: RequestCode,
		Method:      v.Name(),
		Metadata:    md,
		Handoff: paymentauth.Handoff{
			Kind:      paymentauth.HandoffAppSwitch,
			URL:       switchURL,
			TargetApp: TargetApp,
		},
	}, nil
}

type sdkMeta struct {
	Platform    string `json:"platform"`
	SessionID   string `json:"sessionId"`
	Integration string `json:"integration"`
	Version     string `json:"version"`
}

func (v Venmo) appSwitchURL(env method.Env, md paymentauth.Metadata) (string, error) {
	if env.Config == nil {
		return "", errors.ErrConfiguration
	}
	meta, err := json.Marshal(map[string]sdkMeta{"_meta": {
		Platform:    "go",
		SessionID:   md.ClientMetadataID,
		Integration: "custom",
		Version:     v.Version,
	}})
	if err != nil {
		return "", err
	}

	q := url.Values{}
	q.Set("x-success", md.SuccessURL)
	q.Set("x-error", md.ErrorURL)
	q.Set("x-cancel", md.CancelURL)
	q.Set("x-source", env.ReturnScheme)
	q.Set("braintree_merchant_id", md.MerchantAccountID)
	q.Set("braintree_access_token", env.Config.Venmo.AccessToken)
	q.Set("braintree_environment", env.Config.Venmo.Environment)
	q.Set("resource_id", md.PairingID)
	q.Set("braintree_sdk_data", base64.StdEncoding.EncodeToString(meta))
	q.Set("customerClient", "MOBILE_APP")
	return checkoutURL + "?" + q.Encode(), nil
}
