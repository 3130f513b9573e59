package testutil

import (
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/cassiomorais/payauth/internal/configuration"
	"github.com/cassiomorais/payauth/internal/domain/authorization"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/google/uuid"
)

const (
	TestMerchantID      = "merchant123"
	TestReturnScheme    = "com.example.shop.payments"
	TestTokenizationKey = "sandbox_tk7x9q2w_" + TestMerchantID
)

// ClientToken builds a base64 client token pointing at configURL.
func ClientToken(configURL string) string {
	body, _ := json.Marshal(map[string]string{
		"authorizationFingerprint": "fingerprint-" + uuid.NewString(),
		"configUrl":                configURL,
		"merchantId":               TestMerchantID,
	})
	return base64.StdEncoding.EncodeToString(body)
}

func NewClientTokenAuth(t *testing.T) authorization.Authorization {
	t.Helper()
	auth, err := authorization.Parse(ClientToken("https://api.sandbox.braintreegateway.com/merchants/" + TestMerchantID + "/client_api/v1/configuration"))
	if err != nil {
		t.Fatalf("parse client token: %v", err)
	}
	return auth
}

func NewTokenizationKeyAuth(t *testing.T) authorization.Authorization {
	t.Helper()
	auth, err := authorization.Parse(TestTokenizationKey)
	if err != nil {
		t.Fatalf("parse tokenization key: %v", err)
	}
	return auth
}

// NewTestConfiguration returns a sandbox configuration with the given methods
// switched on.
func NewTestConfiguration(paypal, venmo bool) *configuration.Configuration {
	cfg := &configuration.Configuration{
		Environment:   "sandbox",
		MerchantID:    TestMerchantID,
		ClientAPIURL:  "https://api.sandbox.braintreegateway.com/merchants/" + TestMerchantID + "/client_api",
		GraphQLURL:    "https://payments.sandbox.braintree-api.com/graphql",
		PayPalEnabled: paypal,
		PayPal: configuration.PayPal{
			DisplayName:  "Example Shop",
			ClientID:     "paypal-client-id",
			CurrencyCode: "USD",
			Environment:  "offline",
		},
		VenmoEnabled: venmo,
	}
	if venmo {
		cfg.Venmo = configuration.Venmo{
			AccessToken: "access_token$sandbox$venmo",
			MerchantID:  "venmo-profile-1",
			Environment: "sandbox",
		}
	}
	return cfg
}

// NewTestPending returns a pending PayPal billing agreement request.
func NewTestPending() *paymentauth.PendingRequest {
	return &paymentauth.PendingRequest{
		ID:          uuid.New(),
		RequestCode: 13591,
		Method:      paymentauth.MethodPayPal,
		Metadata: paymentauth.Metadata{
			ClientMetadataID:  "BA-1",
			PairingID:         "BA-1",
			ApprovalURL:       "https://www.sandbox.paypal.com/agreements/approve?ba_token=BA-1",
			SuccessURL:        TestReturnScheme + "://onetouch/v1/success",
			CancelURL:         TestReturnScheme + "://onetouch/v1/cancel",
			PaymentType:       paymentauth.PaymentTypeBillingAgreement,
			ReturnScheme:      TestReturnScheme,
			AuthorizationKind: string(authorization.KindClientToken),
		},
		CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}
