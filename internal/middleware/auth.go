package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/tphummel/sitewatch/internal/auth"
)

// Verifier validates a bearer token and returns its claims.
type Verifier interface {
	Verify(token string) (*auth.Claims, error)
}

type claimsKey struct{}

// WithClaims returns a copy of ctx carrying claims.
func WithClaims(ctx context.Context, c *auth.Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFrom returns the claims stored by Auth, or nil.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	c, _ := ctx.Value(claimsKey{}).(*auth.Claims)
	return c
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg}) //nolint:errcheck
}

// bearerToken returns the token from the Authorization header or, when the
// header is absent and cookie is set, from that cookie.
func bearerToken(r *http.Request, cookie string) (string, bool) {
	if h := r.Header.Get("Authorization"); h != "" {
		if !strings.HasPrefix(h, "Bearer ") {
			return "", false
		}
		return strings.TrimPrefix(h, "Bearer "), true
	}
	if cookie != "" {
		if c, err := r.Cookie(cookie); err == nil && c.Value != "" {
			return c.Value, true
		}
	}
	return "", false
}

// Auth returns a handler that requires a valid Bearer token of the given
// kind before delegating to next. Responds with 401 if the header is missing
// or the token does not verify, 403 if the token is of another kind and 500
// if verification itself fails.
func Auth(v Verifier, kind string, next http.Handler) http.Handler {
	return authenticate(v, kind, "", next)
}

// AuthWithCookie is Auth that also accepts the token from the named cookie
// when no Authorization header is sent, as browser EventSource requests do.
func AuthWithCookie(v Verifier, kind, cookie string, next http.Handler) http.Handler {
	return authenticate(v, kind, cookie, next)
}

func authenticate(v Verifier, kind, cookie string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r, cookie)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		claims, err := v.Verify(token)
		if errors.Is(err, auth.ErrInvalidToken) {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		if err != nil {
			slog.ErrorContext(r.Context(), "token verification failed", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		if claims.Kind != kind {
			writeError(w, http.StatusForbidden, "forbidden")
			return
		}
		next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
	})
}
