package venmo

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
	"github.com/cassiomorais/payauth/internal/gateway"
	"github.com/cassiomorais/payauth/internal/method"
)

const nonceType = "VenmoAccount"

const vaultPath = "/v1/payment_methods/venmo_accounts"

const paymentContextQuery = `query PaymentContext($id: ID!) {
  node(id: $id) {
    ... on VenmoPaymentContext {
      status
      paymentMethodId
      userName
      payerInfo {
        firstName
        lastName
        phoneNumber
        email
        externalId
        userName
      }
    }
  }
}`

type payerInfo struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	PhoneNumber string `json:"phoneNumber"`
	Email       string `json:"email"`
	ExternalID  string `json:"externalId"`
	UserName    string `json:"userName"`
}

type paymentContextResponse struct {
	Node *struct {
		Status          string     `json:"status"`
		PaymentMethodID string     `json:"paymentMethodId"`
		UserName        string     `json:"userName"`
		PayerInfo       *payerInfo `json:"payerInfo"`
	} `json:"node"`
}

// Tokenize resolves the nonce of the approved payment context through the
// gateway. A nonce on the return URI is only trusted when the request carries
// no context id to look up.
func (Venmo) Tokenize(ctx context.Context, env method.Env, result *correlator.Result) (*paymentauth.Nonce, error) {
	md := result.Metadata()
	contextID := md.PairingID

	if u, err := url.Parse(result.ReturnURI()); err == nil {
		q := u.Query()
		if contextID == "" {
			contextID = q.Get("resource_id")
		}
		if nonce := q.Get("payment_method_nonce"); nonce != "" && contextID == "" {
			username := q.Get("username")
			return &paymentauth.Nonce{
				Nonce:       nonce,
				Description: username,
				Type:        nonceType,
				Details:     map[string]any{"username": username},
			}, nil
		}
	}
	if contextID == "" {
		return nil, errors.NewKindError(errors.ErrTokenize, "missing_payment_context", "venmo return carries neither a nonce nor a payment context", nil)
	}

	out, err := env.Gateway.GraphQL(ctx, paymentContextQuery, map[string]any{"id": contextID})
	if err != nil {
		return nil, classifyGatewayError(err, "venmo payment context lookup was rejected")
	}

	var resp paymentContextResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, errors.NewKindError(errors.ErrTokenize, "malformed_response", "venmo payment context is not valid JSON", err)
	}
	if resp.Node == nil || resp.Node.PaymentMethodID == "" {
		return nil, errors.NewKindError(errors.ErrTokenize, "context_not_approved", "venmo payment context has no payment method", nil)
	}

	details := map[string]any{"username": resp.Node.UserName}
	if p := resp.Node.PayerInfo; p != nil {
		details["payer_info"] = map[string]any{
			"first_name":   p.FirstName,
			"last_name":    p.LastName,
			"phone_number": p.PhoneNumber,
			"email":        p.Email,
			"external_id":  p.ExternalID,
		}
	}
	return &paymentauth.Nonce{
		Nonce:       resp.Node.PaymentMethodID,
		Description: resp.Node.UserName,
		Type:        nonceType,
		Details:     details,
	}, nil
}

type vaultBody struct {
	VenmoAccount struct {
		Nonce string `json:"nonce"`
	} `json:"venmoAccount"`
}

type vaultResponse struct {
	VenmoAccounts []struct {
		Nonce       string         `json:"nonce"`
		Description string         `json:"description"`
		Default     bool           `json:"default"`
		Type        string         `json:"type"`
		Details     map[string]any `json:"details"`
	} `json:"venmoAccounts"`
}

// Vault stores nonce with the customer and returns the vaulted nonce.
func (Venmo) Vault(ctx context.Context, env method.Env, _ *correlator.Result, nonce *paymentauth.Nonce) (*paymentauth.Nonce, error) {
	var body vaultBody
	body.VenmoAccount.Nonce = nonce.Nonce

	out, err := env.Gateway.Post(ctx, vaultPath, body)
	if err != nil {
		return nil, err
	}

	var resp vaultResponse
	if err := json.Unmarshal(out, &resp); err != nil {
		return nil, errors.NewDomainError("malformed_response", "venmo vault response is not valid JSON", err)
	}
	if len(resp.VenmoAccounts) == 0 || resp.VenmoAccounts[0].Nonce == "" {
		return nil, errors.NewDomainError("malformed_response", "venmo vault response has no account", nil)
	}
	acct := resp.VenmoAccounts[0]
	typ := acct.Type
	if typ == "" {
		typ = nonceType
	}
	description := acct.Description
	if description == "" {
		description = nonce.Description
	}
	return &paymentauth.Nonce{
		Nonce:       acct.Nonce,
		Description: description,
		IsDefault:   acct.Default,
		Type:        typ,
		Details:     acct.Details,
	}, nil
}

func classifyGatewayError(err error, message string) error {
	if gateway.IsRejection(err) {
		return errors.NewKindError(errors.ErrTokenize, "tokenize_rejected", message, err)
	}
	return err
}
