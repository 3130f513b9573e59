package venmo

import (
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/method"
)

// Usage decides whether the resulting nonce can be vaulted.
type Usage string

const (
	UsageSingleUse Usage = "single_use"
	UsageMultiUse  Usage = "multi_use"
)

// LineItem is a single line of the Venmo paysheet.
type LineItem struct {
	Name          string `json:"name" validate:"required,max=127"`
	Quantity      int    `json:"quantity" validate:"required,min=1"`
	UnitAmount    string `json:"unit_amount" validate:"required,amount"`
	Type          string `json:"type" validate:"required,oneof=DEBIT CREDIT"`
	Description   string `json:"description,omitempty" validate:"max=127"`
	ProductCode   string `json:"product_code,omitempty"`
	UnitTaxAmount string `json:"unit_tax_amount,omitempty" validate:"omitempty,amount"`
	URL           string `json:"url,omitempty" validate:"omitempty,url"`
}

// Request is what the host supplies to start a Venmo flow.
type Request struct {
	Usage                  Usage      `json:"payment_method_usage" validate:"required,oneof=single_use multi_use"`
	ProfileID              string     `json:"profile_id,omitempty"`
	DisplayName            string     `json:"display_name,omitempty"`
	CollectBillingAddress  bool       `json:"collect_billing_address,omitempty"`
	CollectShippingAddress bool       `json:"collect_shipping_address,omitempty"`
	TotalAmount            string     `json:"total_amount,omitempty" validate:"omitempty,amount"`
	SubTotalAmount         string     `json:"sub_total_amount,omitempty" validate:"omitempty,amount"`
	DiscountAmount         string     `json:"discount_amount,omitempty" validate:"omitempty,amount"`
	TaxAmount              string     `json:"tax_amount,omitempty" validate:"omitempty,amount"`
	ShippingAmount         string     `json:"shipping_amount,omitempty" validate:"omitempty,amount"`
	LineItems              []LineItem `json:"line_items,omitempty" validate:"dive"`
	ShouldVault            bool       `json:"should_vault,omitempty"`
}

// Validate checks struct rules, that line items come with a total, and that
// vaulting is only requested with a credential that can vault.
func (Venmo) Validate(env method.Env, req Request) error {
	if err := method.ValidateStruct(req); err != nil {
		return err
	}
	if len(req.LineItems) > 0 && req.TotalAmount == "" {
		return errors.NewValidationError("total_amount", "is required when line items are present")
	}
	if req.ShouldVault && !env.Auth.CanVault() {
		return errors.NewKindError(errors.ErrConfiguration, "vault_not_allowed",
			"vaulting requires a client token or scoped access token", nil)
	}
	return nil
}
