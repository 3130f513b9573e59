package errors

import (
	"errors"
	"fmt"
)

var (
	// Configuration errors
	ErrConfiguration         = errors.New("configuration error")
	ErrMethodDisabled        = fmt.Errorf("payment method disabled: %w", ErrConfiguration)
	ErrManifestMisconfigured = fmt.Errorf("return path misconfigured: %w", ErrConfiguration)
	ErrInvalidAuthorization  = fmt.Errorf("invalid authorization: %w", ErrConfiguration)

	// Gateway errors
	ErrTransport = errors.New("gateway transport error")
	ErrTokenize  = errors.New("gateway rejected tokenization")
	ErrVault     = errors.New("vaulting failed")

	// Hand-off errors
	ErrAppSwitchNotAvailable = errors.New("app switch not available")
	ErrLaunch                = errors.New("failed to start hand-off")

	// Return errors
	ErrUserCanceled          = errors.New("user canceled")
	ErrCorrelationMismatch   = errors.New("return signal does not match pending request")
	ErrUnknownPlatform       = errors.New("unrecognized platform return")
	ErrInvalidPendingRequest = errors.New("invalid pending request")
	ErrPendingNotFound       = errors.New("pending request not found")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context. Kind, when set, is one of the
// sentinels above and is matched by errors.Is alongside Err.
type DomainError struct {
	Code    string
	Message string
	Kind    error
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// NewKindError creates a domain error classified under kind while keeping the
// original cause reachable.
func NewKindError(kind error, code, message string, cause error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Kind:    kind,
		Err:     cause,
	}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Code returns the DomainError code found in err's chain, or "" when there is none.
func Code(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}
