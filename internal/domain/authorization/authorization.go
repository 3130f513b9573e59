// Package authorization classifies the raw credential a host hands to the SDK
// and derives the bearer value and configuration URL used for gateway calls.
package authorization

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/golang-jwt/jwt/v5"
)

// Kind identifies the credential family.
type Kind string

const (
	KindClientToken       Kind = "client_token"
	KindTokenizationKey   Kind = "tokenization_key"
	KindScopedAccessToken Kind = "scoped_access_token"
)

var tokenizationKeyPattern = regexp.MustCompile(`^[a-zA-Z0-9]+_[a-zA-Z0-9]+_[a-zA-Z0-9_]+$`)

var environmentBaseURLs = map[string]string{
	"development": "http://localhost:3000/",
	"sandbox":     "https://api.sandbox.braintreegateway.com/",
	"production":  "https://api.braintreegateway.com/",
}

// Authorization is a resolved credential. It is immutable once parsed.
type Authorization struct {
	kind       Kind
	raw        string
	bearer     string
	configURL  string
	merchantID string
}

func (a Authorization) Kind() Kind         { return a.kind }
func (a Authorization) Bearer() string     { return a.bearer }
func (a Authorization) ConfigURL() string  { return a.configURL }
func (a Authorization) MerchantID() string { return a.merchantID }

// String never prints the credential itself.
func (a Authorization) String() string {
	return string(a.kind)
}

// CanVault reports whether payment methods tokenized with this credential can
// be stored against a customer.
func (a Authorization) CanVault() bool {
	return a.kind == KindClientToken || a.kind == KindScopedAccessToken
}

// Parse classifies raw as a scoped access token, tokenization key or client token.
func Parse(raw string) (Authorization, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Authorization{}, invalid("authorization is empty", nil)
	}

	var (
		auth Authorization
		err  error
	)
	switch {
	case strings.Count(raw, ".") == 2:
		auth, err = parseScopedAccessToken(raw)
	case tokenizationKeyPattern.MatchString(raw):
		auth, err = parseTokenizationKey(raw)
	default:
		auth, err = parseClientToken(raw)
	}
	if err != nil {
		return Authorization{}, err
	}
	if err := auth.validate(); err != nil {
		return Authorization{}, err
	}
	return auth, nil
}

func (a Authorization) validate() error {
	if a.bearer == "" {
		return invalid(fmt.Sprintf("%s has no bearer value", a.kind), nil)
	}
	if a.configURL == "" {
		return invalid(fmt.Sprintf("%s has no configuration URL", a.kind), nil)
	}
	return nil
}

func parseTokenizationKey(raw string) (Authorization, error) {
	parts := strings.SplitN(raw, "_", 3)
	base, ok := environmentBaseURLs[parts[0]]
	if !ok {
		return Authorization{}, invalid(fmt.Sprintf("tokenization key has unknown environment %q", parts[0]), nil)
	}
	merchantID := parts[2]
	return Authorization{
		kind:       KindTokenizationKey,
		raw:        raw,
		bearer:     raw,
		configURL:  configURL(base, merchantID),
		merchantID: merchantID,
	}, nil
}

type clientTokenPayload struct {
	AuthorizationFingerprint string `json:"authorizationFingerprint"`
	ConfigURL                string `json:"configUrl"`
	MerchantID               string `json:"merchantId"`
}

func parseClientToken(raw string) (Authorization, error) {
	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return Authorization{}, invalid("client token is not valid base64", err)
	}
	var payload clientTokenPayload
	if err := json.Unmarshal(decoded, &payload); err != nil {
		return Authorization{}, invalid("client token is not valid JSON", err)
	}
	return Authorization{
		kind:       KindClientToken,
		raw:        raw,
		bearer:     payload.AuthorizationFingerprint,
		configURL:  payload.ConfigURL,
		merchantID: payload.MerchantID,
	}, nil
}

type scopedClaims struct {
	ExternalIDs []string `json:"external_id"`
	jwt.RegisteredClaims
}

// The token is only decoded here; the gateway verifies its signature.
func parseScopedAccessToken(raw string) (Authorization, error) {
	var claims scopedClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return Authorization{}, invalid("scoped access token is malformed", err)
	}

	var merchantID string
	for _, id := range claims.ExternalIDs {
		if v, ok := strings.CutPrefix(id, "Braintree:"); ok {
			merchantID = v
			break
		}
	}
	if merchantID == "" {
		return Authorization{}, invalid("scoped access token has no Braintree merchant id", nil)
	}

	var base string
	switch issuer := claims.Issuer; {
	case strings.Contains(issuer, "localhost"):
		base = environmentBaseURLs["development"]
	case strings.Contains(issuer, "sandbox"):
		base = environmentBaseURLs["sandbox"]
	case issuer != "":
		base = environmentBaseURLs["production"]
	default:
		return Authorization{}, invalid("scoped access token has no issuer", nil)
	}

	return Authorization{
		kind:       KindScopedAccessToken,
		raw:        raw,
		bearer:     raw,
		configURL:  configURL(base, merchantID),
		merchantID: merchantID,
	}, nil
}

func configURL(base, merchantID string) string {
	return base + "merchants/" + merchantID + "/client_api/v1/configuration"
}

func invalid(message string, cause error) error {
	return domainErrors.NewKindError(domainErrors.ErrInvalidAuthorization, "invalid_authorization", message, cause)
}
