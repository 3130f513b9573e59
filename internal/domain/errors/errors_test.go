package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *DomainError
		expected string
	}{
		{
			name: "with wrapped error",
			err: &DomainError{
				Code:    "context_failed",
				Message: "create payment context failed",
				Err:     errors.New("gateway timeout"),
			},
			expected: "create payment context failed: gateway timeout",
		},
		{
			name: "without wrapped error",
			err: &DomainError{
				Code:    "feature_disabled",
				Message: "PayPal is not enabled for this merchant",
				Kind:    ErrMethodDisabled,
			},
			expected: "PayPal is not enabled for this merchant",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	cause := errors.New("original error")
	domainErr := NewKindError(ErrTokenize, "tokenize_rejected", "gateway rejected payload", cause)

	assert.Equal(t, []error{ErrTokenize, cause}, domainErr.Unwrap())
	assert.ErrorIs(t, domainErr, ErrTokenize)
	assert.ErrorIs(t, domainErr, cause)
}

func TestNewDomainError(t *testing.T) {
	originalErr := errors.New("underlying error")
	err := NewDomainError("test_code", "test message", originalErr)

	assert.NotNil(t, err)
	assert.Equal(t, "test_code", err.Code)
	assert.Equal(t, "test message", err.Message)
	assert.Equal(t, originalErr, err.Err)
	assert.Nil(t, err.Kind)
}

func TestNewDomainError_NilWrappedError(t *testing.T) {
	err := NewDomainError("test_code", "test message", nil)

	assert.NotNil(t, err)
	assert.Nil(t, err.Err)
	assert.Empty(t, err.Unwrap())
}

func TestValidationError_Error(t *testing.T) {
	err := &ValidationError{
		Field:   "amount",
		Message: "is required for one-time payments",
	}

	expected := "validation failed for field amount: is required for one-time payments"
	assert.Equal(t, expected, err.Error())
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestNewValidationError(t *testing.T) {
	err := NewValidationError("merchant_account_id", "cannot be empty")

	assert.NotNil(t, err)
	assert.Equal(t, "merchant_account_id", err.Field)
	assert.Equal(t, "cannot be empty", err.Message)
}

func TestConfigurationErrorFamily(t *testing.T) {
	for _, err := range []error{ErrMethodDisabled, ErrManifestMisconfigured, ErrInvalidAuthorization} {
		assert.ErrorIs(t, err, ErrConfiguration)
	}
	assert.NotErrorIs(t, ErrAppSwitchNotAvailable, ErrConfiguration)
	assert.NotErrorIs(t, ErrLaunch, ErrConfiguration)
}

func TestErrorUnwrapping(t *testing.T) {
	wrappedErr := NewKindError(ErrVault, "vault_failed", "vault call failed", ErrTransport)

	assert.True(t, errors.Is(wrappedErr, ErrVault))
	assert.ErrorIs(t, wrappedErr, ErrTransport)
	assert.NotErrorIs(t, wrappedErr, ErrTokenize)
}

func TestCode(t *testing.T) {
	err := NewKindError(ErrLaunch, "launch_failed", "could not open browser", nil)

	assert.Equal(t, "launch_failed", Code(err))
	assert.Equal(t, "", Code(errors.New("plain")))
}
