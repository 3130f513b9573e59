// Package configuration loads the merchant's remote feature flags.
package configuration

import (
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

// Configuration is the subset of the gateway's client configuration the
// hand-off pipeline depends on.
type Configuration struct {
	Environment   string `json:"environment"`
	MerchantID    string `json:"merchantId"`
	ClientAPIURL  string `json:"clientApiUrl"`
	GraphQLURL    string `json:"graphQLUrl"`
	PayPalEnabled bool   `json:"paypalEnabled"`
	PayPal        PayPal `json:"paypal"`
	VenmoEnabled  bool   `json:"venmoEnabled"`
	Venmo         Venmo  `json:"venmo"`
}

type PayPal struct {
	DisplayName  string `json:"displayName"`
	ClientID     string `json:"clientId"`
	CurrencyCode string `json:"currencyIsoCode"`
	Environment  string `json:"environment"`
}

type Venmo struct {
	AccessToken string `json:"accessToken"`
	MerchantID  string `json:"merchantId"`
	Environment string `json:"environment"`
}

// wire shape of GET <configUrl>?configVersion=3
type remoteConfiguration struct {
	Environment   string `json:"environment"`
	MerchantID    string `json:"merchantId"`
	ClientAPIURL  string `json:"clientApiUrl"`
	PayPalEnabled bool   `json:"paypalEnabled"`
	GraphQL       struct {
		URL string `json:"url"`
	} `json:"graphQL"`
	PayPal       *PayPal `json:"paypal"`
	PayWithVenmo *Venmo  `json:"payWithVenmo"`
}

// Parse decodes a raw configuration document.
func Parse(body []byte) (*Configuration, error) {
	var raw remoteConfiguration
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, errors.NewKindError(errors.ErrTransport, "malformed_configuration", "configuration response is not valid JSON", err)
	}
	if raw.ClientAPIURL == "" {
		return nil, errors.NewKindError(errors.ErrConfiguration, "incomplete_configuration", "configuration has no clientApiUrl", nil)
	}

	cfg := &Configuration{
		Environment:   raw.Environment,
		MerchantID:    raw.MerchantID,
		ClientAPIURL:  raw.ClientAPIURL,
		GraphQLURL:    raw.GraphQL.URL,
		PayPalEnabled: raw.PayPalEnabled && raw.PayPal != nil,
	}
	if raw.PayPal != nil {
		cfg.PayPal = *raw.PayPal
	}
	if raw.PayWithVenmo != nil {
		cfg.Venmo = *raw.PayWithVenmo
		cfg.VenmoEnabled = raw.PayWithVenmo.AccessToken != ""
	}
	return cfg, nil
}

// Enabled reports whether method is switched on for the merchant.
func (c *Configuration) Enabled(method paymentauth.Method) bool {
	switch method {
	case paymentauth.MethodPayPal:
		return c.PayPalEnabled
	case paymentauth.MethodVenmo:
		return c.VenmoEnabled && c.GraphQLURL != ""
	default:
		return false
	}
}

func (c *Configuration) String() string {
	return fmt.Sprintf("configuration{merchant=%s env=%s paypal=%t venmo=%t}", c.MerchantID, c.Environment, c.PayPalEnabled, c.VenmoEnabled)
}
