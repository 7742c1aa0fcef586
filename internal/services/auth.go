package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"syscall"
	"time"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/config"
	"sport-events-backend/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// RateLimitMessage is shown when the auth service keeps rejecting the
// callback exchange.
const RateLimitMessage = "Too many authentication attempts. Please wait a moment and try again."

const exchangeRetries = 2

const exchangeInterruptedMessage = "Sign-in was interrupted before it completed. Please try again."

// AuthService handles the session and the OAuth flow
type AuthService struct {
	provider   AuthProvider
	cfg        config.AuthConfig
	newBackOff func() backoff.BackOff
}

// NewAuthService creates a new auth service
func NewAuthService(provider AuthProvider, cfg config.AuthConfig) *AuthService {
	return &AuthService{
		provider:   provider,
		cfg:        cfg,
		newBackOff: exchangeBackOff,
	}
}

func exchangeBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.Multiplier = 2
	b.MaxInterval = 5 * time.Second
	b.RandomizationFactor = 0
	b.MaxElapsedTime = 0
	return b
}

// CurrentIdentity resolves the signed-in user. A missing session is not an
// error: it returns nil, nil.
func (s *AuthService) CurrentIdentity(ctx context.Context, cookies authclient.CookieStore) (*models.Identity, error) {
	session, err := s.provider.GetUser(ctx, cookies)
	if err != nil {
		if isSessionMissing(err) {
			return nil, nil
		}
		log.Error().Err(err).Msg("Failed to resolve session")
		return nil, providerError(err)
	}
	if session == nil || session.User == nil || session.User.ID == "" {
		return nil, nil
	}
	return &models.Identity{
		ID:        session.User.ID,
		Email:     session.User.Email,
		ExpiresAt: session.Expiry(),
	}, nil
}

// SignIn returns the provider URL that starts the OAuth flow.
func (s *AuthService) SignIn(ctx context.Context, cookies authclient.CookieStore) (string, error) {
	if err := s.cfg.Validate(); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, err.Error(), err)
	}

	url, err := s.provider.SignInWithOAuth(s.cfg.OAuthProvider, s.cfg.CallbackURL(), cookies)
	if err != nil {
		log.Error().Err(err).Str("provider", s.cfg.OAuthProvider).Msg("OAuth sign-in failed")
		return "", apperr.Wrap(apperr.KindInternal, "Failed to generate OAuth URL", err)
	}
	if url == "" {
		return "", apperr.New(apperr.KindInternal, "Failed to generate OAuth URL")
	}
	return url, nil
}

// ExchangeCode trades the callback code for a session. Rate-limited attempts
// are retried with exponential backoff; every other failure is final.
func (s *AuthService) ExchangeCode(ctx context.Context, code string, cookies authclient.CookieStore) error {
	if strings.TrimSpace(code) == "" {
		return apperr.New(apperr.KindValidation, "No authorization code received")
	}

	op := func() error {
		_, err := s.provider.ExchangeCodeForSession(ctx, code, cookies)
		if err == nil {
			return nil
		}
		classified := providerError(err)
		if apperr.Is(classified, apperr.KindRateLimit) {
			return classified
		}
		return backoff.Permanent(classified)
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Dur("retry_in", wait).Msg("Auth service rate limited the code exchange")
	}

	b := backoff.WithContext(backoff.WithMaxRetries(s.newBackOff(), exchangeRetries), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		if _, ok := apperr.AsRedirect(err); ok {
			return err
		}
		log.Error().Err(err).Msg("Code exchange failed")
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return apperr.Wrap(apperr.KindInternal, exchangeInterruptedMessage, err)
		}
		return err
	}
	return nil
}

// SignOut revokes the session and clears the session cookies.
func (s *AuthService) SignOut(ctx context.Context, cookies authclient.CookieStore) error {
	if err := s.provider.SignOut(ctx, cookies); err != nil {
		log.Warn().Err(err).Msg("Sign-out at auth service failed")
		return providerError(err)
	}
	return nil
}

func isSessionMissing(err error) bool {
	if errors.Is(err, authclient.ErrSessionMissing) {
		return true
	}
	var authErr *authclient.AuthError
	if errors.As(err, &authErr) {
		return authErr.Status == http.StatusBadRequest ||
			strings.Contains(strings.ToLower(authErr.Message), "session missing")
	}
	return strings.Contains(strings.ToLower(err.Error()), "session missing")
}

func isRateLimit(e *authclient.AuthError) bool {
	if e.Status == http.StatusTooManyRequests {
		return true
	}
	switch e.Code {
	case "over_request_rate_limit", "over_email_send_rate_limit":
		return true
	}
	msg := strings.ToLower(e.Message)
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many")
}

func isTransport(err error) bool {
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EPIPE) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "econnreset") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "stream")
}

// providerError maps an auth service failure onto an error kind. Control
// redirects and already tagged errors pass through.
func providerError(err error) error {
	if err == nil {
		return nil
	}
	if r, ok := apperr.AsRedirect(err); ok {
		return r
	}
	var tagged *apperr.Error
	if errors.As(err, &tagged) {
		return tagged
	}

	var authErr *authclient.AuthError
	if errors.As(err, &authErr) {
		switch {
		case isRateLimit(authErr):
			return apperr.Wrap(apperr.KindRateLimit, RateLimitMessage, err)
		case authErr.Status == http.StatusUnauthorized:
			return apperr.Wrap(apperr.KindAuthentication, authErr.Message, err)
		case authErr.Status == http.StatusForbidden:
			return apperr.Wrap(apperr.KindAuthorization, authErr.Message, err)
		default:
			return apperr.Wrap(apperr.KindInternal, authErr.Message, err)
		}
	}

	if isTransport(err) {
		return apperr.Wrap(apperr.KindTransport, "Connection to the auth service was interrupted", err)
	}
	return apperr.Wrap(apperr.KindInternal, "Authentication failed. Please try again.", err)
}
