package auth

import (
	"net/http"
	"strings"

	"github.com/detalia/storefront-api/internal/platform/httpx"
)

// Trusted headers populated by the API gateway after it has verified the
// caller. The service itself never sees raw credentials.
const (
	HeaderUserID     = "X-User-Id"
	HeaderUserEmail  = "X-User-Email"
	HeaderUserRoles  = "X-User-Roles"
	HeaderGuestEmail = "X-Guest-Email"
)

// Middleware extracts the gateway-forwarded identity and stores it in the
// request context. Requests without any identity headers pass through
// unauthenticated; RequireIdentity and RequireRole gate the protected routes.
func Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := identityFromHeaders(r)
			if identity != nil {
				r = r.WithContext(WithIdentity(r.Context(), identity))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireIdentity rejects requests that carry neither a user nor a guest
// identity.
func RequireIdentity() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok || (identity.UserID == "" && identity.GuestEmail == "") {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "identity is required", http.StatusUnauthorized))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireRole rejects requests whose identity lacks all of the given roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, ok := IdentityFromContext(r.Context())
			if !ok {
				httpx.WriteError(r.Context(), w, httpx.NewError("unauthenticated", "identity is required", http.StatusUnauthorized))
				return
			}
			if !identity.HasAnyRole(roles...) {
				httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "insufficient role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func identityFromHeaders(r *http.Request) *Identity {
	userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
	// Guest emails are the coupon per-user identity key, so casing must not
	// split one shopper into two.
	guestEmail := strings.ToLower(strings.TrimSpace(r.Header.Get(HeaderGuestEmail)))
	if userID == "" && guestEmail == "" {
		return nil
	}

	identity := &Identity{
		UserID:     userID,
		GuestEmail: guestEmail,
		Email:      strings.TrimSpace(r.Header.Get(HeaderUserEmail)),
	}
	if raw := strings.TrimSpace(r.Header.Get(HeaderUserRoles)); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			role := strings.ToLower(strings.TrimSpace(part))
			if role != "" {
				identity.Roles = append(identity.Roles, role)
			}
		}
	}
	if userID != "" && len(identity.Roles) == 0 {
		identity.Roles = []string{RoleUser}
	}
	return identity
}
