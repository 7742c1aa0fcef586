package handlers

import (
	"net/http"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/authclient"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

const callbackCacheControl = "no-store, no-cache, must-revalidate"

// AuthHandler handles the OAuth sign-in, callback and sign-out routes
type AuthHandler struct {
	auth AuthFlow
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth AuthFlow) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// SignIn handles GET /auth/signin
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	target, err := h.auth.SignIn(r.Context(), authclient.ResponseCookies(w, r))
	if err != nil {
		if followRedirect(w, r, err) {
			return
		}
		http.Redirect(w, r, withError("/", apperr.Message(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// Callback handles GET /auth/callback, the return leg of the OAuth flow
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", callbackCacheControl)
	q := r.URL.Query()

	if providerErr := q.Get("error"); providerErr != "" {
		message := q.Get("error_description")
		if message == "" {
			message = providerErr
		}
		log.Warn().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("error", providerErr).
			Msg("OAuth provider returned an error")
		http.Redirect(w, r, withError("/", message), http.StatusTemporaryRedirect)
		return
	}

	code := q.Get("code")
	if code == "" {
		http.Redirect(w, r, withError("/", "No authorization code received"), http.StatusTemporaryRedirect)
		return
	}

	err := h.auth.ExchangeCode(r.Context(), code, authclient.ResponseCookies(w, r))
	switch {
	case err == nil:
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	case followRedirect(w, r, err):
	case apperr.Is(err, apperr.KindTransport):
		// the exchange may still have landed; the home page re-checks the session
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	default:
		http.Redirect(w, r, withError("/", apperr.Message(err)), http.StatusTemporaryRedirect)
	}
}

// SignOut handles GET and POST /auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.auth.SignOut(r.Context(), authclient.ResponseCookies(w, r)); err != nil {
		if followRedirect(w, r, err) {
			return
		}
		http.Redirect(w, r, withError("/", apperr.Message(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/?signout=success", http.StatusSeeOther)
}
