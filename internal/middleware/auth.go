package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/posi-ecosystem/fati-backend/internal/services"
)

type contextKey string

const (
	accountIDKey contextKey = "accountID"
	tokenKey     contextKey = "token"
)

// TokenValidator resolves a bearer token to an account id.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (string, error)
}

// Auth rejects requests without a valid bearer token and stores the caller's
// account id in the request context.
func Auth(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Get token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				services.SendErrorResponse(w, "Authorization header required", http.StatusUnauthorized, nil)
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				services.SendErrorResponse(w, "Invalid authorization header format", http.StatusUnauthorized, nil)
				return
			}

			token := parts[1]
			accountID, err := tokens.Validate(r.Context(), token)
			if err != nil {
				log.Printf("[AUTH] Rejected token: %v", err)
				services.SendErrorResponse(w, "Invalid token", http.StatusUnauthorized, nil)
				return
			}

			ctx := context.WithValue(r.Context(), accountIDKey, accountID)
			ctx = context.WithValue(ctx, tokenKey, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AccountIDFromContext returns the authenticated account id, if any.
func AccountIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(accountIDKey).(string)
	return id, ok && id != ""
}

// TokenFromContext returns the raw bearer token of the request.
func TokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey).(string)
	return token
}

// WithAccountID returns a context carrying accountID, as Auth would set it.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	return context.WithValue(ctx, accountIDKey, accountID)
}
