package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-auth-sessions/internal/domain"
	jwtinfra "github.com/go-auth-sessions/internal/infrastructure/jwt"
)

type contextKey string

const ClaimsKey contextKey = "claims"

type tokenVerifier interface {
	Verify(token string) (*jwtinfra.Claims, error)
}

// Auth returns middleware that validates the access token and injects its claims
// into the context. The token is taken from the Authorization Bearer header when
// present, otherwise from cookieToken.
func Auth(verifier tokenVerifier, cookieToken func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := accessToken(r, cookieToken)
			if tokenStr == "" {
				writeUnauthorized(w, r)
				return
			}
			claims, err := verifier.Verify(tokenStr)
			if err != nil {
				writeUnauthorized(w, r)
				return
			}
			ctx := context.WithValue(r.Context(), ClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func accessToken(r *http.Request, cookieToken func(*http.Request) string) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return cookieToken(r)
}

func writeUnauthorized(w http.ResponseWriter, r *http.Request) {
	e := domain.ErrUnauthenticated
	writeJSONError(w, r, http.StatusUnauthorized, e.Code, e.Message)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(ClaimsKey).(*jwtinfra.Claims)
	return c, ok
}
