package venmo

import (
	"net/url"
	"strings"

	"github.com/cassiomorais/payauth/internal/correlator"
	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

type classifier struct{}

// Matches rejects returns that name a different payment context.
func (classifier) Matches(pending *paymentauth.PendingRequest, u *url.URL) bool {
	id := u.Query().Get("resource_id")
	return id == "" || pending.Metadata.PairingID == "" || id == pending.Metadata.PairingID
}

func (classifier) Classify(_ *paymentauth.PendingRequest, u *url.URL) (correlator.Status, error) {
	switch strings.ToLower(correlator.LastSegment(u)) {
	case "success":
		return correlator.StatusSuccess, nil
	case "error":
		msg := u.Query().Get("errorMessage")
		if msg == "" {
			msg = "venmo app reported an error"
		}
		return correlator.StatusError, errors.NewDomainError("venmo_error", msg, nil)
	}
	return correlator.StatusError, nil
}
