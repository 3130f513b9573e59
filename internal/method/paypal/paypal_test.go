package paypal_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/gateway"
	"github.com/cassiomorais/payauth/internal/method"
	"github.com/cassiomorais/payauth/internal/method/paypal"
	"github.com/cassiomorais/payauth/internal/riskdata"
	"github.com/cassiomorais/payauth/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEnv(t *testing.T, transport *testutil.MockTransport) method.Env {
	t.Helper()
	return method.Env{
		Auth:         testutil.NewClientTokenAuth(t),
		Config:       testutil.NewTestConfiguration(true, false),
		Gateway:      transport,
		RiskData:     riskdata.Static{ID: "risk-collector"},
		ReturnScheme: testutil.TestReturnScheme,
	}
}

func asJSONMap(t *testing.T, v any) map[string]any {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func TestPayPal_Validate(t *testing.T) {
	p := paypal.New()
	env := method.Env{}

	tests := []struct {
		name    string
		req     paypal.Request
		field   string
		wantErr bool
	}{
		{"checkout ok", paypal.Request{Flow: paypal.FlowCheckout, Amount: "10.00"}, "", false},
		{"vault ok", paypal.Request{Flow: paypal.FlowVault}, "", false},
		{"missing flow", paypal.Request{}, "flow", true},
		{"checkout without amount", paypal.Request{Flow: paypal.FlowCheckout}, "amount", true},
		{"vault with amount", paypal.Request{Flow: paypal.FlowVault, Amount: "1.00"}, "amount", true},
		{"bad amount", paypal.Request{Flow: paypal.FlowCheckout, Amount: "1.005"}, "amount", true},
		{"insights without merchant account", paypal.Request{Flow: paypal.FlowVault, EnableInsights: true}, "merchant_account_id", true},
		{
			"line item missing name",
			paypal.Request{Flow: paypal.FlowCheckout, Amount: "5", LineItems: []paypal.LineItem{{Quantity: "1", UnitAmount: "5", Kind: "debit"}}},
			"line_items[0].name",
			true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Validate(env, tt.req)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var vErr *domainErrors.ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
}

func TestPayPal_CreateContext_Checkout(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(_ context.Context, path string, _ any) ([]byte, error) {
		assert.Equal(t, "/v1/paypal_hermes/create_payment_resource", path)
		return []byte(`{"paymentResource":{"redirectUrl":"https://www.sandbox.paypal.com/checkoutnow?token=EC-42"}}`), nil
	}

	req, err := paypal.New().CreateContext(context.Background(), newEnv(t, transport), paypal.Request{
		Flow:   paypal.FlowCheckout,
		Amount: "12.34",
	})
	require.NoError(t, err)

	assert.Equal(t, paypal.RequestCode, req.RequestCode)
	assert.Equal(t, paymentauth.MethodPayPal, req.Method)
	assert.Equal(t, paymentauth.HandoffBrowser, req.Handoff.Kind)
	assert.Equal(t, "https://www.sandbox.paypal.com/checkoutnow?token=EC-42", req.Handoff.URL)
	assert.Equal(t, "EC-42", req.Metadata.PairingID)
	assert.Equal(t, "EC-42", req.Metadata.ClientMetadataID)
	assert.Equal(t, paymentauth.PaymentTypeSinglePayment, req.Metadata.PaymentType)
	assert.Equal(t, paymentauth.IntentAuthorize, req.Metadata.Intent)
	assert.Equal(t, testutil.TestReturnScheme+"://onetouch/v1/success", req.Metadata.SuccessURL)
	assert.Equal(t, testutil.TestReturnScheme+"://onetouch/v1/cancel", req.Metadata.CancelURL)

	calls := transport.Calls()
	require.Len(t, calls, 1)
	body := asJSONMap(t, calls[0].Body)
	assert.NotContains(t, body, "line_items")
	assert.NotContains(t, body, "description")
	assert.Equal(t, "12.34", body["amount"])
	assert.Equal(t, "USD", body["currency_iso_code"])
	assert.Equal(t, "authorize", body["intent"])
	profile := body["experience_profile"].(map[string]any)
	assert.Equal(t, "Example Shop", profile["brand_name"])
	assert.Equal(t, true, profile["no_shipping"])
}

func TestPayPal_CreateContext_LineItemsSentWhenPresent(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
		return []byte(`{"paymentResource":{"redirectUrl":"https://www.sandbox.paypal.com/checkoutnow?token=EC-1"}}`), nil
	}

	_, err := paypal.New().CreateContext(context.Background(), newEnv(t, transport), paypal.Request{
		Flow:      paypal.FlowCheckout,
		Amount:    "2.00",
		LineItems: []paypal.LineItem{{Name: "Tea", Quantity: "2", UnitAmount: "1.00", Kind: "debit"}},
	})
	require.NoError(t, err)

	body := asJSONMap(t, transport.Calls()[0].Body)
	items, ok := body["line_items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestPayPal_CreateContext_BillingAgreementPrefersBAToken(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(_ context.Context, path string, _ any) ([]byte, error) {
		assert.Equal(t, "/v1/paypal_hermes/setup_billing_agreement", path)
		return []byte(`{"agreementSetup":{"approvalUrl":"https://www.sandbox.paypal.com/agreements/approve?token=EC-9&ba_token=BA-9"}}`), nil
	}

	req, err := paypal.New().CreateContext(context.Background(), newEnv(t, transport), paypal.Request{
		Flow:                        paypal.FlowVault,
		BillingAgreementDescription: "Monthly tea",
	})
	require.NoError(t, err)

	assert.Equal(t, "BA-9", req.Metadata.PairingID)
	assert.Equal(t, "BA-9", req.Metadata.ClientMetadataID)
	assert.Equal(t, paymentauth.PaymentTypeBillingAgreement, req.Metadata.PaymentType)
	assert.Empty(t, req.Metadata.Intent)

	body := asJSONMap(t, transport.Calls()[0].Body)
	assert.Equal(t, "Monthly tea", body["description"])
	assert.NotContains(t, body, "amount")
	assert.NotContains(t, body, "intent")
}

func TestPayPal_CreateContext_ExplicitRiskCorrelationID(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
		return []byte(`{"agreementSetup":{"approvalUrl":"https://www.sandbox.paypal.com/agreements/approve?ba_token=BA-3"}}`), nil
	}

	req, err := paypal.New().CreateContext(context.Background(), newEnv(t, transport), paypal.Request{
		Flow:              paypal.FlowVault,
		RiskCorrelationID: "merchant-risk-id",
	})
	require.NoError(t, err)
	assert.Equal(t, "merchant-risk-id", req.Metadata.ClientMetadataID)
	assert.Equal(t, "BA-3", req.Metadata.PairingID)
}

func TestPayPal_CreateContext_MissingApprovalURL(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
		return []byte(`{"paymentResource":{}}`), nil
	}

	req, err := paypal.New().CreateContext(context.Background(), newEnv(t, transport), paypal.Request{Flow: paypal.FlowCheckout, Amount: "1"})
	assert.Nil(t, req)
	assert.ErrorIs(t, err, domainErrors.ErrTransport)
}

func TestPayPal_CreateContext_TransportError(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
		return nil, &gateway.HTTPError{StatusCode: 503, Body: []byte("unavailable")}
	}

	req, err := paypal.New().CreateContext(context.Background(), newEnv(t, transport), paypal.Request{Flow: paypal.FlowVault})
	assert.Nil(t, req)
	assert.ErrorIs(t, err, domainErrors.ErrTransport)
}

func pendingFor(kind authorization.Kind, paymentType paymentauth.PaymentType, validate *bool) *paymentauth.PendingRequest {
	p := testutil.NewTestPending()
	p.Metadata.AuthorizationKind = string(kind)
	p.Metadata.PaymentType = paymentType
	p.Metadata.Validate = validate
	if paymentType == paymentauth.PaymentTypeSinglePayment {
		p.Metadata.Intent = paymentauth.IntentSale
	}
	return p
}

func successResult(t *testing.T, p *paymentauth.PendingRequest) *correlator.Result {
	t.Helper()
	result := correlator.Parse(p, paymentauth.ReturnSignal{
		RequestCode: paypal.RequestCode,
		Status:      paymentauth.StatusOK,
		URI:         testutil.TestReturnScheme + "://onetouch/v1/success?ba_token=BA-1&token=EC-1",
	}, paypal.New().Classifier())
	require.NotNil(t, result)
	require.Equal(t, correlator.StatusSuccess, result.Status())
	return result
}

func TestPayPal_Tokenize_ValidateOption(t *testing.T) {
	yes, no := true, false

	tests := []struct {
		name        string
		kind        authorization.Kind
		paymentType paymentauth.PaymentType
		validate    *bool
		want        any
	}{
		{"client token billing agreement", authorization.KindClientToken, paymentauth.PaymentTypeBillingAgreement, nil, true},
		{"tokenization key billing agreement", authorization.KindTokenizationKey, paymentauth.PaymentTypeBillingAgreement, nil, false},
		{"scoped token omits options", authorization.KindScopedAccessToken, paymentauth.PaymentTypeBillingAgreement, nil, nil},
		{"explicit override", authorization.KindClientToken, paymentauth.PaymentTypeBillingAgreement, &no, false},
		{"explicit override with key", authorization.KindTokenizationKey, paymentauth.PaymentTypeBillingAgreement, &yes, true},
		{"single payment never validates", authorization.KindClientToken, paymentauth.PaymentTypeSinglePayment, &yes, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			transport := testutil.NewMockTransport()
			transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
				return []byte(`{"paypalAccounts":[{"nonce":"fake-paypal-nonce","description":"PayPal","type":"PayPalAccount","details":{"email":"buyer@example.com"}}]}`), nil
			}

			pending := pendingFor(tt.kind, tt.paymentType, tt.validate)
			pending.Metadata.MerchantAccountID = "m1"
			_, err := paypal.New().Tokenize(context.Background(), newEnv(t, transport), successResult(t, pending))
			require.NoError(t, err)

			body := asJSONMap(t, transport.Calls()[0].Body)
			assert.Equal(t, "m1", body["merchant_account_id"])
			acct := body["paypal_account"].(map[string]any)
			if tt.want == nil {
				assert.NotContains(t, acct, "options")
				return
			}
			options := acct["options"].(map[string]any)
			assert.Equal(t, tt.want, options["validate"])
		})
	}
}

func TestPayPal_Tokenize(t *testing.T) {
	transport := testutil.NewMockTransport()
	transport.PostFunc = func(_ context.Context, path string, _ any) ([]byte, error) {
		assert.Equal(t, "/v1/payment_methods/paypal_accounts", path)
		return []byte(`{"paypalAccounts":[{"nonce":"fake-paypal-nonce","description":"PayPal","default":true,"type":"PayPalAccount","details":{"email":"buyer@example.com"}}]}`), nil
	}

	p := pendingFor(authorization.KindClientToken, paymentauth.PaymentTypeSinglePayment, nil)
	p.Metadata.MerchantAccountID = "usd-account"
	result := successResult(t, p)

	nonce, err := paypal.New().Tokenize(context.Background(), newEnv(t, transport), result)
	require.NoError(t, err)
	assert.Equal(t, "fake-paypal-nonce", nonce.Nonce)
	assert.True(t, nonce.IsDefault)
	assert.Equal(t, "buyer@example.com", nonce.Details["email"])

	body := asJSONMap(t, transport.Calls()[0].Body)
	assert.Equal(t, "usd-account", body["merchant_account_id"])
	acct := body["paypal_account"].(map[string]any)
	assert.Equal(t, "BA-1", acct["correlation_id"])
	assert.Equal(t, map[string]any{}, acct["client"])
	assert.Equal(t, "web", acct["response_type"])
	assert.Equal(t, "sale", acct["intent"])
	assert.Equal(t, result.ReturnURI(), acct["response"].(map[string]any)["webURL"])
}

func TestPayPal_Tokenize_Errors(t *testing.T) {
	result := successResult(t, testutil.NewTestPending())

	t.Run("rejection is a tokenize error", func(t *testing.T) {
		transport := testutil.NewMockTransport()
		transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
			return nil, &gateway.HTTPError{StatusCode: 422, Body: []byte(`{"error":{"message":"bad"}}`)}
		}
		_, err := paypal.New().Tokenize(context.Background(), newEnv(t, transport), result)
		assert.ErrorIs(t, err, domainErrors.ErrTokenize)
	})

	t.Run("outage stays a transport error", func(t *testing.T) {
		transport := testutil.NewMockTransport()
		transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
			return nil, &gateway.HTTPError{StatusCode: 502}
		}
		_, err := paypal.New().Tokenize(context.Background(), newEnv(t, transport), result)
		assert.ErrorIs(t, err, domainErrors.ErrTransport)
		assert.NotErrorIs(t, err, domainErrors.ErrTokenize)
	})

	t.Run("empty account list", func(t *testing.T) {
		transport := testutil.NewMockTransport()
		transport.PostFunc = func(context.Context, string, any) ([]byte, error) {
			return []byte(`{"paypalAccounts":[]}`), nil
		}
		_, err := paypal.New().Tokenize(context.Background(), newEnv(t, transport), result)
		assert.ErrorIs(t, err, domainErrors.ErrTokenize)
	})
}

func TestPayPal_Classifier(t *testing.T) {
	c := paypal.New().Classifier()
	p := testutil.NewTestPending()

	parse := func(uri string) *correlator.Result {
		return correlator.Parse(p, paymentauth.ReturnSignal{Status: paymentauth.StatusOK, URI: uri}, c)
	}

	t.Run("foreign token is ignored", func(t *testing.T) {
		assert.Nil(t, parse(testutil.TestReturnScheme+"://onetouch/v1/success?ba_token=BA-other"))
	})

	t.Run("cancel", func(t *testing.T) {
		r := parse(testutil.TestReturnScheme + "://onetouch/v1/cancel?ba_token=BA-1")
		require.NotNil(t, r)
		assert.Equal(t, correlator.StatusCancel, r.Status())
		assert.ErrorIs(t, r.Err(), domainErrors.ErrUserCanceled)
	})

	t.Run("error segment carries message", func(t *testing.T) {
		r := parse(testutil.TestReturnScheme + "://onetouch/v1/error?ba_token=BA-1&errorMessage=declined")
		require.NotNil(t, r)
		assert.Equal(t, correlator.StatusError, r.Status())
		assert.ErrorIs(t, r.Err(), domainErrors.ErrUnknownPlatform)
		assert.Contains(t, r.Err().Error(), "declined")
	})

	t.Run("unrecognized return without token", func(t *testing.T) {
		r := parse(testutil.TestReturnScheme + "://onetouch/v1/whatever")
		require.NotNil(t, r)
		assert.Equal(t, correlator.StatusError, r.Status())
		assert.ErrorIs(t, r.Err(), domainErrors.ErrUnknownPlatform)
	})
}

func TestPayPal_VaultReturnsNonce(t *testing.T) {
	nonce := &paymentauth.Nonce{Nonce: "n"}
	got, err := paypal.New().Vault(context.Background(), method.Env{}, nil, nonce)
	require.NoError(t, err)
	assert.Same(t, nonce, got)
}
