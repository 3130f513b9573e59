// Package correlator turns a raw platform return signal into a payment auth
// result for the pending request that produced the hand-off.
//
// Parse performs no I/O and reads no clock: equal inputs always produce equal
// results. A nil result means the signal does not belong to the pending request
// and must be ignored.
package correlator

import (
	"maps"
	"net/url"
	"strings"

	"github.com/cassiomorais/payauth/internal/domain/errors"
	"github.com/cassiomorais/payauth/internal/domain/paymentauth"
)

// Status is the three-way outcome of a hand-off.
type Status string

const (
	StatusSuccess Status = "success"
	StatusCancel  Status = "cancel"
	StatusError   Status = "error"
)

// Result is a correlated return. It can only be obtained from Parse.
type Result struct {
	status    Status
	method    paymentauth.Method
	returnURI string
	metadata  paymentauth.Metadata
	err       error
}

func (r *Result) Status() Status             { return r.status }
func (r *Result) Method() paymentauth.Method { return r.method }
func (r *Result) ReturnURI() string          { return r.returnURI }
func (r *Result) Err() error                 { return r.err }

// Metadata returns a copy of the request metadata carried by the result.
func (r *Result) Metadata() paymentauth.Metadata {
	md := r.metadata
	md.Extras = maps.Clone(r.metadata.Extras)
	return md
}

// Classifier holds the method-specific return rules.
type Classifier interface {
	// Matches reports whether u was produced for pending. False marks a
	// foreign return.
	Matches(pending *paymentauth.PendingRequest, u *url.URL) bool

	// Classify decides between success and error for a matching, non-cancel
	// return URI. A non-success status must come with a cause.
	Classify(pending *paymentauth.PendingRequest, u *url.URL) (Status, error)
}

// Parse correlates signal with pending.
func Parse(pending *paymentauth.PendingRequest, signal paymentauth.ReturnSignal, classifier Classifier) *Result {
	if pending == nil {
		return nil
	}
	if signal.RequestCode != 0 && signal.RequestCode != pending.RequestCode {
		return nil
	}
	canceled := signal.Status == paymentauth.StatusCanceled

	// A matching request code already ties the signal to pending, so a platform
	// cancel needs no URI at all.
	if canceled && signal.RequestCode != 0 {
		return cancel(pending, signal.URI)
	}

	u, ok := parseURI(signal.URI)
	if !ok {
		if canceled {
			return cancel(pending, signal.URI)
		}
		return failure(pending, signal.URI, errors.NewKindError(
			errors.ErrUnknownPlatform, "unknown_platform_result", "return signal has no usable URI", nil))
	}

	if !withinReturnBase(pending, u) || !classifier.Matches(pending, u) {
		return nil
	}

	if canceled || IsCancelURI(u) {
		return cancel(pending, signal.URI)
	}

	status, cause := classifier.Classify(pending, u)
	if status != StatusSuccess {
		if cause == nil {
			cause = errors.NewKindError(errors.ErrUnknownPlatform, "unknown_platform_result", "unrecognized return URI", nil)
		}
		return failure(pending, signal.URI, cause)
	}

	md := pending.Metadata
	md.Extras = maps.Clone(pending.Metadata.Extras)
	if md.ClientMetadataID == "" {
		md.ClientMetadataID = TokenFromURI(u)
	}
	return &Result{
		status:    StatusSuccess,
		method:    pending.Method,
		returnURI: signal.URI,
		metadata:  md,
	}
}

// IsCancelURI reports whether u is a cancel return: a final path segment of
// "cancel" or an opType=cancel query parameter.
func IsCancelURI(u *url.URL) bool {
	if strings.EqualFold(LastSegment(u), "cancel") {
		return true
	}
	return strings.EqualFold(u.Query().Get("opType"), "cancel")
}

// TokenFromURI returns the ba_token parameter, else token, else "".
func TokenFromURI(u *url.URL) string {
	q := u.Query()
	if v := q.Get("ba_token"); v != "" {
		return v
	}
	return q.Get("token")
}

// LastSegment returns the final non-empty path segment of u.
func LastSegment(u *url.URL) string {
	path := strings.TrimRight(u.Path, "/")
	if i := strings.LastIndex(path, "/"); i >= 0 {
		return path[i+1:]
	}
	return path
}

func parseURI(raw string) (*url.URL, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return nil, false
	}
	return u, true
}

// The return must use the pending scheme and live under the same parent as
// the success URL.
func withinReturnBase(pending *paymentauth.PendingRequest, u *url.URL) bool {
	if !strings.EqualFold(u.Scheme, pending.Metadata.ReturnScheme) {
		return false
	}
	success, err := url.Parse(pending.Metadata.SuccessURL)
	if err != nil || pending.Metadata.SuccessURL == "" {
		return true
	}
	if !strings.EqualFold(u.Host, success.Host) {
		return false
	}
	base := success.Path[:strings.LastIndex(success.Path, "/")+1]
	return strings.HasPrefix(u.Path, base)
}

func cancel(pending *paymentauth.PendingRequest, uri string) *Result {
	return &Result{
		status:    StatusCancel,
		method:    pending.Method,
		returnURI: uri,
		metadata:  pending.Metadata,
		err:       errors.ErrUserCanceled,
	}
}

func failure(pending *paymentauth.PendingRequest, uri string, cause error) *Result {
	return &Result{
		status:    StatusError,
		method:    pending.Method,
		returnURI: uri,
		metadata:  pending.Metadata,
		err:       cause,
	}
}
