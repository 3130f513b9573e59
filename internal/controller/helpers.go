package controller

import (
	"encoding/json"
	"errors"
	"net/http"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

const maxBodySize = 1 << 20

type errorMapping struct {
	err    error
	status int
	code   string
}

// Order matters: more specific kinds come before the kinds they wrap.
var errorMappings = []errorMapping{
	{domainErrors.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domainErrors.ErrInvalidPendingRequest, http.StatusBadRequest, "invalid_pending_request"},
	{domainErrors.ErrPendingNotFound, http.StatusNotFound, "not_found"},
	{domainErrors.ErrCorrelationMismatch, http.StatusConflict, "correlation_mismatch"},
	{domainErrors.ErrInvalidAuthorization, http.StatusUnauthorized, "invalid_authorization"},
	{domainErrors.ErrMethodDisabled, http.StatusUnprocessableEntity, "method_disabled"},
	{domainErrors.ErrManifestMisconfigured, http.StatusInternalServerError, "return_path_misconfigured"},
	{domainErrors.ErrConfiguration, http.StatusUnprocessableEntity, "configuration_error"},
	{domainErrors.ErrAppSwitchNotAvailable, http.StatusUnprocessableEntity, "app_switch_not_available"},
	{domainErrors.ErrLaunch, http.StatusBadGateway, "launch_failed"},
	{domainErrors.ErrVault, http.StatusUnprocessableEntity, "vault_failed"},
	{domainErrors.ErrTokenize, http.StatusUnprocessableEntity, "tokenize_rejected"},
	{domainErrors.ErrTransport, http.StatusBadGateway, "gateway_unavailable"},
	{domainErrors.ErrUnknownPlatform, http.StatusUnprocessableEntity, "unknown_platform_result"},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	resp := ErrorResponse{Error: err.Error(), Reason: domainErrors.Code(err)}

	var validationErr *domainErrors.ValidationError
	if errors.As(err, &validationErr) {
		resp.Code = "validation_error"
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			resp.Code = m.code
			if m.status >= http.StatusInternalServerError {
				log.Error().Err(err).Str("code", m.code).Msg("request failed")
			}
			writeJSON(w, m.status, resp)
			return
		}
	}

	var domainErr *domainErrors.DomainError
	if errors.As(err, &domainErr) {
		resp.Code = domainErr.Code
		resp.Reason = ""
		writeJSON(w, http.StatusUnprocessableEntity, resp)
		return
	}

	log.Error().Err(err).Msg("unhandled error in handler")
	resp.Code = "internal_error"
	resp.Error = "internal server error"
	resp.Reason = ""
	writeJSON(w, http.StatusInternalServerError, resp)
}

func decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize)).Decode(dst); err != nil {
		return domainErrors.NewValidationError("body", "invalid JSON: "+err.Error())
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return domainErrors.NewValidationError(ve[0].Field(), ve[0].Tag()+" validation failed")
		}
		return domainErrors.NewValidationError("body", err.Error())
	}
	return nil
}
