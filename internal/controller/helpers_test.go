package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "bad request", Code: "invalid_input"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"error":"bad request","code":"invalid_input"}`, w.Body.String())
}

func TestWriteError_ValidationError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewValidationError("amount", "is required"))

	assert.Equal(t, http.StatusBadRequest, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "validation_error", response.Code)
	assert.Contains(t, response.Error, "amount")
}

func TestWriteError_Kinds(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
		expectedCode   string
		expectedReason string
	}{
		{"pending not found", domainErrors.ErrPendingNotFound, http.StatusNotFound, "not_found", ""},
		{"correlation mismatch", domainErrors.ErrCorrelationMismatch, http.StatusConflict, "correlation_mismatch", ""},
		{"method disabled before configuration", domainErrors.NewKindError(domainErrors.ErrMethodDisabled, "method_disabled", "off", nil), http.StatusUnprocessableEntity, "method_disabled", "method_disabled"},
		{"invalid authorization", domainErrors.NewKindError(domainErrors.ErrInvalidAuthorization, "missing_authorization", "none", nil), http.StatusUnauthorized, "invalid_authorization", "missing_authorization"},
		{"manifest", domainErrors.NewKindError(domainErrors.ErrManifestMisconfigured, "manifest_misconfigured", "bad scheme", nil), http.StatusInternalServerError, "return_path_misconfigured", "manifest_misconfigured"},
		{"app switch", domainErrors.NewKindError(domainErrors.ErrAppSwitchNotAvailable, "app_not_installed", "no venmo", nil), http.StatusUnprocessableEntity, "app_switch_not_available", "app_not_installed"},
		{"launch", domainErrors.ErrLaunch, http.StatusBadGateway, "launch_failed", ""},
		{"vault wins over tokenize", domainErrors.NewKindError(domainErrors.ErrVault, "vault_failed", "x", domainErrors.ErrTokenize), http.StatusUnprocessableEntity, "vault_failed", "vault_failed"},
		{"tokenize", domainErrors.NewKindError(domainErrors.ErrTokenize, "tokenize_rejected", "declined", nil), http.StatusUnprocessableEntity, "tokenize_rejected", "tokenize_rejected"},
		{"transport", domainErrors.NewKindError(domainErrors.ErrTransport, "gateway_unavailable", "timeout", nil), http.StatusBadGateway, "gateway_unavailable", "gateway_unavailable"},
		{"invalid pending", domainErrors.NewKindError(domainErrors.ErrInvalidPendingRequest, "invalid_pending_request", "bad", nil), http.StatusBadRequest, "invalid_pending_request", "invalid_pending_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeError(w, tt.err)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response ErrorResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
			assert.Equal(t, tt.expectedCode, response.Code)
			assert.Equal(t, tt.expectedReason, response.Reason)
		})
	}
}

func TestWriteError_GenericDomainError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, domainErrors.NewDomainError("venmo_error", "Account locked", nil))

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "venmo_error", response.Code)
	assert.Equal(t, "Account locked", response.Error)
}

func TestWriteError_UnknownError(t *testing.T) {
	w := httptest.NewRecorder()
	writeError(w, errors.New("dial tcp: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var response ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "internal_error", response.Code)
	assert.Equal(t, "internal server error", response.Error)
}

func TestDecodeAndValidate(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		wantField string
	}{
		{"valid", `{"pending_request":"abc","status":"ok"}`, ""},
		{"malformed", `{"pending_request":`, "body"},
		{"missing pending", `{"status":"ok"}`, "PendingRequest"},
		{"negative request code", `{"pending_request":"abc","request_code":-1}`, "RequestCode"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/returns", strings.NewReader(tt.body))

			var dst CompleteReturnRequest
			err := decodeAndValidate(req, &dst)
			if tt.wantField == "" {
				require.NoError(t, err)
				assert.Equal(t, "abc", dst.PendingRequest)
				return
			}
			var ve *domainErrors.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tt.wantField, ve.Field)
		})
	}
}
