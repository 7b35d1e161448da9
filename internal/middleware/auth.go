package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/whobuiltmyroad/backend/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// IdentityFrom returns the authenticated identity stored by the auth
// middleware, if any.
func IdentityFrom(r *http.Request) (services.Identity, bool) {
	id, ok := r.Context().Value(identityKey).(services.Identity)
	return id, ok
}

func withIdentity(r *http.Request, id services.Identity) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), identityKey, id))
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return ""
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return ""
	}
	return strings.TrimSpace(auth[len(prefix):])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	w.Write([]byte(`{"status":"error","message":"` + message + `"}`))
}

// RequireAuth rejects requests without a valid session token.
func RequireAuth(sessions *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			if token == "" {
				writeUnauthorized(w, "Authentication required")
				return
			}
			id, ok, err := sessions.Validate(r.Context(), token)
			if err != nil || !ok {
				writeUnauthorized(w, "Invalid or expired session")
				return
			}
			next.ServeHTTP(w, withIdentity(r, id))
		})
	}
}

// OptionalAuth resolves a session token when one is present but lets
// anonymous requests through. Used on read routes where the submitter
// of a pending road sees more than the public.
func OptionalAuth(sessions *services.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token := bearerToken(r); token != "" {
				if id, ok, err := sessions.Validate(r.Context(), token); err == nil && ok {
					r = withIdentity(r, id)
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin gates the moderation surface behind the static admin
// token. The comparison is constant time.
func RequireAdmin(adminToken string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if adminToken == "" {
				writeUnauthorized(w, "Admin access is not configured")
				return
			}
			token := bearerToken(r)
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(adminToken)) != 1 {
				writeUnauthorized(w, "Invalid admin token")
				return
			}
			next.ServeHTTP(w, withIdentity(r, services.Identity{Admin: true}))
		})
	}
}
