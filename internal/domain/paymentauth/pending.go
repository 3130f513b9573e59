package paymentauth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cassiomorais/payauth/internal/domain/errors"
	canonicaljson "github.com/gibson042/canonicaljson-go"
	"github.com/google/uuid"
)

// PendingRequest is the durable handle for a launched hand-off. It is created at
// launch, consumed once by the correlator, then discarded.
type PendingRequest struct {
	ID          uuid.UUID `json:"id"`
	RequestCode int       `json:"request_code"`
	Method      Method    `json:"method"`
	Metadata    Metadata  `json:"metadata"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewPendingRequest wraps a launched request.
func NewPendingRequest(req *AuthRequest) *PendingRequest {
	return &PendingRequest{
		ID:          uuid.New(),
		RequestCode: req.RequestCode,
		Method:      req.Method,
		Metadata:    req.Metadata,
		CreatedAt:   time.Now().UTC(),
	}
}

// CorrelationKey is the value the external surface echoes back on return.
func (p *PendingRequest) CorrelationKey() string {
	return p.Metadata.PairingID
}

// Validate checks that the request can be correlated.
func (p *PendingRequest) Validate() error {
	switch {
	case p.ID == uuid.Nil:
		return invalidPending("missing id", nil)
	case p.RequestCode <= 0:
		return invalidPending("missing request code", nil)
	case p.Method != MethodPayPal && p.Method != MethodVenmo:
		return invalidPending(fmt.Sprintf("unknown method %q", p.Method), nil)
	case p.Metadata.ReturnScheme == "":
		return invalidPending("missing return scheme", nil)
	}
	return nil
}

// Encode renders the request as a flat URL-safe string. When signer is non-nil
// the string carries a signature suffix that DecodePendingRequest verifies.
func (p *PendingRequest) Encode(signer Signer) (string, error) {
	body, err := canonicaljson.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encode pending request: %w", err)
	}
	encoded := base64.RawURLEncoding.EncodeToString(body)
	if signer == nil {
		return encoded, nil
	}
	return encoded + "." + signer.Sign([]byte(encoded)), nil
}

// DecodePendingRequest reconstructs a request produced by Encode.
func DecodePendingRequest(s string, signer Signer) (*PendingRequest, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, invalidPending("empty", nil)
	}

	payload, sig, signed := strings.Cut(s, ".")
	if signer != nil {
		if !signed {
			return nil, invalidPending("missing signature", nil)
		}
		if err := signer.Verify([]byte(payload), sig); err != nil {
			return nil, invalidPending("signature mismatch", err)
		}
	}

	body, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return nil, invalidPending("not base64url", err)
	}
	var p PendingRequest
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, invalidPending("malformed payload", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Signer authenticates encoded pending requests handed to untrusted storage.
type Signer interface {
	Sign(payload []byte) string
	Verify(payload []byte, signature string) error
}

// HMACSigner signs with base64url(HMAC-SHA256(key, payload)).
type HMACSigner struct {
	Key []byte
}

func (s HMACSigner) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.Key)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func (s HMACSigner) Verify(payload []byte, signature string) error {
	if len(s.Key) == 0 {
		return fmt.Errorf("hmac signer requires a non-empty key")
	}
	decoded, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return fmt.Errorf("decode signature: %w", err)
	}
	mac := hmac.New(sha256.New, s.Key)
	mac.Write(payload)
	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return fmt.Errorf("invalid signature")
	}
	return nil
}

func invalidPending(message string, cause error) error {
	return errors.NewKindError(errors.ErrInvalidPendingRequest, "invalid_pending_request", "pending request "+message, cause)
}
