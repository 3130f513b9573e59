package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/cassiomorais/payauth/internal/service"
	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const MerchantKey contextKey = "merchant"

// ClientAuthorizationHeader carries the client token or tokenization key a
// request is made with.
const ClientAuthorizationHeader = "X-Client-Authorization"

// Claims identify the merchant backend calling the bridge.
type Claims struct {
	Merchant string `json:"merchant"`
	jwt.RegisteredClaims
}

// RequireAuth rejects requests without a valid HS256 bearer token.
func RequireAuth(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeAuthError(w, "missing authorization header", "auth_required")
				return
			}

			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, "invalid authorization scheme", "auth_invalid_scheme")
				return
			}

			tokenString := strings.TrimPrefix(authHeader, "Bearer ")

			claims := &Claims{}
			token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, fmt.Errorf("unexpected signing method")
				}
				return []byte(jwtSecret), nil
			})

			if err != nil || !token.Valid {
				writeAuthError(w, "invalid token", "auth_invalid")
				return
			}

			ctx := context.WithValue(r.Context(), MerchantKey, claims.Merchant)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func GetMerchant(ctx context.Context) (string, bool) {
	merchant, ok := ctx.Value(MerchantKey).(string)
	return merchant, ok
}

// ClientAuthorization moves the X-Client-Authorization header into the request
// context, where the pipelines resolve it.
func ClientAuthorization() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if raw := strings.TrimSpace(r.Header.Get(ClientAuthorizationHeader)); raw != "" {
				r = r.WithContext(service.WithAuthorization(r.Context(), raw))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeAuthError(w http.ResponseWriter, msg, code string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{
		"error": msg,
		"code":  code,
	})
}
