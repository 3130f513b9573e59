package method_test

import (
	"context"
	"testing"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/method"
	"github.com/cassiomorais/payauth/internal/riskdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveClientMetadataID_Precedence(t *testing.T) {
	collector := riskdata.Static{ID: "collector-id"}
	both := "https://www.paypal.com/agreements/approve?token=EC-7&ba_token=BA-7"

	tests := []struct {
		name        string
		explicit    string
		approvalURL string
		want        string
	}{
		{"explicit risk correlation id wins", "risk-id", both, "risk-id"},
		{"ba_token before token", "", both, "BA-7"},
		{"token when no ba_token", "", "https://www.paypal.com/checkoutnow?token=EC-7", "EC-7"},
		{"collector as last resort", "", "https://www.paypal.com/checkoutnow", "collector-id"},
		{"collector when approval url empty", "", "", "collector-id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := method.ResolveClientMetadataID(context.Background(), tt.explicit, tt.approvalURL, "", collector)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveClientMetadataID_NilCollector(t *testing.T) {
	assert.Equal(t, "", method.ResolveClientMetadataID(context.Background(), "", "", "", nil))
}

func TestEnv_ReturnBase(t *testing.T) {
	env := method.Env{ReturnScheme: "com.example.app.payments"}
	base, scheme := env.ReturnBase(paymentauth.MethodPayPal, "onetouch/v1")
	assert.Equal(t, "com.example.app.payments://onetouch/v1", base)
	assert.Equal(t, "com.example.app.payments", scheme)

	env.ReturnURLBase = "https://bridge.example.com/return/"
	base, scheme = env.ReturnBase(paymentauth.MethodVenmo, "x-callback-url/vzero/auth/venmo")
	assert.Equal(t, "https://bridge.example.com/return/venmo", base)
	assert.Equal(t, "https", scheme)
}

type sample struct {
	Amount string `json:"amount" validate:"required,amount"`
	Items  []struct {
		Name string `json:"name" validate:"required"`
	} `json:"line_items" validate:"dive"`
}

func TestValidateStruct(t *testing.T) {
	require.NoError(t, method.ValidateStruct(sample{Amount: "10.50"}))

	err := method.ValidateStruct(sample{Amount: "10.505"})
	var vErr *domainErrors.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "amount", vErr.Field)
	assert.ErrorIs(t, err, domainErrors.ErrValidationFailed)

	s := sample{Amount: "1"}
	s.Items = append(s.Items, struct {
		Name string `json:"name" validate:"required"`
	}{})
	err = method.ValidateStruct(s)
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "line_items[0].name", vErr.Field)
	assert.Equal(t, "is required", vErr.Message)
}
