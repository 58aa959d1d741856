// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/diresa-ti/legajos/internal/auth"
)

// SessionValidator validates a raw bearer token and returns its claims.
// *auth.TokenService satisfies this interface.
type SessionValidator interface {
	ValidateToken(tokenString string) (*auth.Claims, error)
}

// Authenticate validates the Authorization bearer token and stores the
// caller's user ID and role in the request context. Only session tokens are
// accepted; pending tokens from an unfinished login are rejected so they
// grant no access to protected routes.
func Authenticate(tokens SessionValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := bearerToken(r)
			if raw == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "autenticación requerida")
				return
			}

			claims, err := tokens.ValidateToken(raw)
			if err != nil {
				if errors.Is(err, auth.ErrExpiredToken) {
					writeAuthError(w, r, http.StatusUnauthorized, "session_expired", "la sesión ha expirado")
					return
				}
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "token inválido")
				return
			}

			if claims.Type != auth.TokenTypeSession {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "token inválido")
				return
			}

			ctx := SetUserID(r.Context(), claims.Subject)
			ctx = SetUserRole(ctx, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole allows the request through only when the authenticated role is
// in the allow-list. Place after Authenticate in the chain; an absent role is
// treated as unauthenticated.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]bool, len(roles))
	for _, role := range roles {
		allowed[role] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := GetUserRole(r.Context())
			if role == "" {
				writeAuthError(w, r, http.StatusUnauthorized, "unauthorized", "autenticación requerida")
				return
			}
			if !allowed[role] {
				writeAuthError(w, r, http.StatusForbidden, "forbidden", "permisos insuficientes")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken extracts the token from the Authorization header.
// Returns empty string when the header is missing or not a Bearer scheme.
func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// writeAuthError writes the standard error envelope without importing the
// api package, which depends on this one.
func writeAuthError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	SetErrorCode(r.Context(), code)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}
