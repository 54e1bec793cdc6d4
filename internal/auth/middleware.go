package auth

import (
	"net/http"
	"strings"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "session"

// Middleware validates JWTs and enforces RBAC.
type Middleware struct {
	Secret  []byte
	Policy  Policy
	Revoked RevocationList
}

// NewMiddleware constructs an auth middleware. revoked may be nil.
func NewMiddleware(secret []byte, policy Policy, revoked RevocationList) *Middleware {
	return &Middleware{Secret: secret, Policy: policy, Revoked: revoked}
}

// Wrap applies auth and RBAC to the handler.
func (m *Middleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.Policy.IsExempt(r) {
			next.ServeHTTP(w, r)
			return
		}

		required, ok := m.Policy.RequiredRole(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		claims, err := ParseJWT(TokenFromRequest(r), m.Secret)
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if m.Revoked != nil {
			revoked, err := m.Revoked.IsRevoked(r.Context(), claims.ID)
			if err != nil {
				http.Error(w, "auth unavailable", http.StatusServiceUnavailable)
				return
			}
			if revoked {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		id := claims.Identity()
		if !RoleAtLeast(id.Role, required) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
	})
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if token := extractBearer(r); token != "" {
		return token
	}
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func extractBearer(r *http.Request) string {
	if r == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return parts[1]
}
