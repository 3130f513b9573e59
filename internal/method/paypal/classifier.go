package paypal

import (
	"net/url"
	"strings"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

type classifier struct{}

// Matches accepts a return whose token (or ba_token) is the pairing id of the
// pending request. Returns without any token are left to the base check.
func (classifier) Matches(pending *paymentauth.PendingRequest, u *url.URL) bool {
	tok := correlator.TokenFromURI(u)
	if tok == "" || pending.Metadata.PairingID == "" {
		return true
	}
	q := u.Query()
	return q.Get("ba_token") == pending.Metadata.PairingID || q.Get("token") == pending.Metadata.PairingID
}

func (classifier) Classify(_ *paymentauth.PendingRequest, u *url.URL) (correlator.Status, error) {
	switch strings.ToLower(correlator.LastSegment(u)) {
	case "success":
		return correlator.StatusSuccess, nil
	case "error", "failure":
		msg := u.Query().Get("errorMessage")
		if msg == "" {
			msg = "paypal reported an error"
		}
		return correlator.StatusError, errors.NewKindError(errors.ErrUnknownPlatform, "paypal_error", msg, nil)
	}
	if correlator.TokenFromURI(u) != "" {
		return correlator.StatusSuccess, nil
	}
	return correlator.StatusError, nil
}
