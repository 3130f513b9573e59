// Package riskdata supplies the client metadata id used by the gateway's
// fraud service when the host did not provide one.
package riskdata

import (
	"context"
	"strings"

	"github.com/google/uuid"
)

// Collector produces a client metadata id for a pairing.
type Collector interface {
	ClientMetadataID(ctx context.Context, pairingID string) string
}

// UUIDCollector reuses the pairing id when one exists, otherwise it returns a
// random 32 character hex id.
type UUIDCollector struct{}

func (UUIDCollector) ClientMetadataID(_ context.Context, pairingID string) string {
	if pairingID != "" {
		return pairingID
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Static always returns ID. Hosts that run their own device-data SDK use it to
// pass that SDK's session id through.
type Static struct {
	ID string
}

func (s Static) ClientMetadataID(context.Context, string) string {
	return s.ID
}
