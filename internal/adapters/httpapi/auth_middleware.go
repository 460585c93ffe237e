package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/carhop-rentals/booking-verify-api/internal/domain"
)

// TokenVerifier turns a bearer token into the identity it was issued for.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (domain.Identity, error)
}

// NewAuthMiddleware enforces Authorization: Bearer <JWT>.
//
// On success, it stores the authenticated identity (sub, email, name) in request context.
func NewAuthMiddleware(v TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authz := r.Header.Get("Authorization")
			if authz == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing Authorization header", nil)
				return
			}
			const prefix = "Bearer "
			if !strings.HasPrefix(authz, prefix) {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "malformed Authorization header", nil)
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, prefix))
			if raw == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing bearer token", nil)
				return
			}

			id, err := v.Verify(r.Context(), raw)
			if err != nil {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "invalid token", nil)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

// NewDevAuthMiddleware is a local/dev-only auth shim.
//
// It takes the caller's email from X-Debug-Email (falling back to defaultEmail)
// and an optional display name from X-Debug-Name. Do NOT use this in production
// deployments.
func NewDevAuthMiddleware(defaultEmail string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			email := domain.NormalizeEmail(r.Header.Get("X-Debug-Email"))
			if email == "" {
				email = domain.NormalizeEmail(defaultEmail)
			}
			if email == "" {
				writeError(w, r, http.StatusUnauthorized, "UNAUTHORIZED", "missing identity (set X-Debug-Email)", nil)
				return
			}

			id := domain.Identity{
				Subject:     domain.SubjectID("dev|" + email),
				Email:       email,
				DisplayName: domain.NormalizeHumanName(r.Header.Get("X-Debug-Name")),
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}
