package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/models"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type contextKey string

const identityKey contextKey = "identity"

// SignInRequiredURL is where anonymous page requests to protected routes go
const SignInRequiredURL = "/?signin=required"

// IdentityResolver resolves the signed-in user from the request cookies
type IdentityResolver interface {
	CurrentIdentity(ctx context.Context, cookies authclient.CookieStore) (*models.Identity, error)
}

// Session resolves the identity once per request and stores it in the
// context. Resolution failures are logged and the request continues
// anonymously.
func Session(resolver IdentityResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := resolver.CurrentIdentity(r.Context(), authclient.ResponseCookies(w, r))
			if err != nil {
				log.Warn().
					Err(err).
					Str("request_id", middleware.GetReqID(r.Context())).
					Str("path", r.URL.Path).
					Msg("Failed to resolve session")
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

// RequireSession rejects anonymous requests: API routes get a 401, pages are
// redirected to the sign-in prompt.
func RequireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetIdentity(r.Context()) == nil {
			if strings.HasPrefix(r.URL.Path, "/api/") {
				respondError(w, "Authentication required", http.StatusUnauthorized)
				return
			}
			http.Redirect(w, r, SignInRequiredURL, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithIdentity returns ctx carrying identity
func WithIdentity(ctx context.Context, identity *models.Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// GetIdentity extracts the signed-in user from context, nil when anonymous
func GetIdentity(ctx context.Context) *models.Identity {
	identity, _ := ctx.Value(identityKey).(*models.Identity)
	return identity
}

// GetUserID extracts user ID from context
func GetUserID(ctx context.Context) string {
	if identity := GetIdentity(ctx); identity != nil {
		return identity.ID
	}
	return ""
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
