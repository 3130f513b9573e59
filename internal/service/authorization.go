package service

import (
	"context"
	"strings"

	domainErrors "github.com/cassiomorais/payauth/internal/domain/errors"
)

// AuthorizationProvider yields the raw client authorization for a flow.
type AuthorizationProvider interface {
	Authorization(ctx context.Context) (string, error)
}

// StaticAuthorization always returns the same raw authorization.
type StaticAuthorization string

func (s StaticAuthorization) Authorization(context.Context) (string, error) {
	if strings.TrimSpace(string(s)) == "" {
		return "", domainErrors.NewKindError(domainErrors.ErrInvalidAuthorization, "missing_authorization", "no authorization configured", nil)
	}
	return string(s), nil
}

type authorizationKey struct{}

// WithAuthorization attaches a request-scoped raw authorization to ctx.
func WithAuthorization(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, authorizationKey{}, raw)
}

// ContextAuthorization prefers the authorization carried by the context and
// falls back to Fallback.
type ContextAuthorization struct {
	Fallback AuthorizationProvider
}

func (c ContextAuthorization) Authorization(ctx context.Context) (string, error) {
	if raw, ok := ctx.Value(authorizationKey{}).(string); ok && raw != "" {
		return raw, nil
	}
	if c.Fallback == nil {
		return "", domainErrors.NewKindError(domainErrors.ErrInvalidAuthorization, "missing_authorization", "request carries no authorization", nil)
	}
	return c.Fallback.Authorization(ctx)
}
