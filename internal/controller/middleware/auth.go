// Package middleware contains HTTP middleware for the controller.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"leadrunner/internal/auth"
	"leadrunner/pkg/api"
)

// operatorKey is the context key for the authenticated operator.
type operatorKey struct{}

// Auth validates the operator bearer token against the configured hash.
// The controller serves a single operator credential; there is no user
// database behind this.
func Auth(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || token == "" {
				unauthorized(w)
				return
			}

			if !auth.VerifyKey(token, tokenHash) {
				unauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), operatorKey{}, "operator")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(api.ErrorResponse{
		Error: "Unauthorized",
		Code:  "401",
	})
}

// OperatorFromContext returns the authenticated operator identity, or
// an empty string for unauthenticated (internal) requests.
func OperatorFromContext(ctx context.Context) string {
	if v := ctx.Value(operatorKey{}); v != nil {
		return v.(string)
	}
	return ""
}
