package controller

import (
	"time"

	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

// --- Request DTOs ---

// CompleteReturnRequest carries a return signal together with the encoded
// pending request it belongs to.
type CompleteReturnRequest struct {
	PendingRequest string `json:"pending_request" validate:"required"`
	RequestCode    int    `json:"request_code,omitempty" validate:"gte=0"`
	Status         string `json:"status,omitempty" validate:"omitempty,oneof=ok canceled unknown"`
	URI            string `json:"uri,omitempty"`
}

// --- Response DTOs ---

// AuthRequestResponse describes a launched hand-off.
type AuthRequestResponse struct {
	PendingID        string    `json:"pending_id"`
	Method           string    `json:"method"`
	RequestCode      int       `json:"request_code"`
	HandoffKind      string    `json:"handoff_kind"`
	URL              string    `json:"url"`
	TargetApp        string    `json:"target_app,omitempty"`
	CorrelationKey   string    `json:"correlation_key"`
	ClientMetadataID string    `json:"client_metadata_id,omitempty"`
	PendingRequest   string    `json:"pending_request"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// NonceResponse is a tokenized payment method.
type NonceResponse struct {
	Nonce       string         `json:"nonce"`
	Description string         `json:"description"`
	Type        string         `json:"type"`
	IsDefault   bool           `json:"is_default"`
	Details     map[string]any `json:"details,omitempty"`
}

// ReturnResponse is the outcome of a completed hand-off.
type ReturnResponse struct {
	Status           string         `json:"status"`
	Method           string         `json:"method"`
	ClientMetadataID string         `json:"client_metadata_id,omitempty"`
	Nonce            *NonceResponse `json:"nonce,omitempty"`
}

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// --- Conversion helpers ---

func toAuthRequestResponse(ar *paymentauth.AuthRequest, p *paymentauth.PendingRequest, key, encoded string, expiresAt time.Time) AuthRequestResponse {
	return AuthRequestResponse{
		PendingID:        p.ID.String(),
		Method:           string(p.Method),
		RequestCode:      p.RequestCode,
		HandoffKind:      string(ar.Handoff.Kind),
		URL:              ar.Handoff.URL,
		TargetApp:        ar.Handoff.TargetApp,
		CorrelationKey:   key,
		ClientMetadataID: p.Metadata.ClientMetadataID,
		PendingRequest:   encoded,
		ExpiresAt:        expiresAt,
	}
}

func toNonceResponse(n *paymentauth.Nonce) *NonceResponse {
	if n == nil {
		return nil
	}
	return &NonceResponse{
		Nonce:       n.Nonce,
		Description: n.Description,
		Type:        n.Type,
		IsDefault:   n.IsDefault,
		Details:     n.Details,
	}
}
