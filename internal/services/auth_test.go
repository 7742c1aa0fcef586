package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"syscall"
	"testing"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/config"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testAuthConfig = config.AuthConfig{
	AppURL:        "http://localhost:8080",
	URL:           "https://abcd.supabase.co",
	AnonKey:       "anon",
	OAuthProvider: "google",
}

func newTestAuthService(p *mockProvider) *AuthService {
	s := NewAuthService(p, testAuthConfig)
	s.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return s
}

func noCookies() authclient.CookieStore {
	return authclient.ReadOnlyCookies(httptest.NewRequest(http.MethodGet, "/", nil))
}

func TestCurrentIdentity_NoSessionIsNotAnError(t *testing.T) {
	p := &mockProvider{
		getUserFn: func(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error) {
			return nil, authclient.ErrSessionMissing
		},
	}
	svc := newTestAuthService(p)

	for i := 0; i < 2; i++ {
		identity, err := svc.CurrentIdentity(context.Background(), noCookies())
		assert.NoError(t, err)
		assert.Nil(t, identity)
	}
}

func TestCurrentIdentity_Status400IsSessionMissing(t *testing.T) {
	p := &mockProvider{
		getUserFn: func(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error) {
			return nil, &authclient.AuthError{Status: http.StatusBadRequest, Message: "bad_jwt"}
		},
	}

	identity, err := newTestAuthService(p).CurrentIdentity(context.Background(), noCookies())

	assert.NoError(t, err)
	assert.Nil(t, identity)
}

func TestCurrentIdentity_ProviderFailure(t *testing.T) {
	p := &mockProvider{
		getUserFn: func(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error) {
			return nil, &authclient.AuthError{Status: http.StatusUnauthorized, Message: "invalid JWT"}
		},
	}

	identity, err := newTestAuthService(p).CurrentIdentity(context.Background(), noCookies())

	assert.Nil(t, identity)
	assert.Equal(t, apperr.KindAuthentication, apperr.KindOf(err))
	assert.Equal(t, "invalid JWT", apperr.Message(err))
}

func TestCurrentIdentity_SignedIn(t *testing.T) {
	p := &mockProvider{
		getUserFn: func(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error) {
			return &authclient.Session{
				AccessToken: "opaque",
				ExpiresAt:   2000000000,
				User:        &authclient.User{ID: "6f1c0d2e-8a4b-4c1d-9e2f-3a4b5c6d7e8f", Email: "ana@example.com"},
			}, nil
		},
	}

	identity, err := newTestAuthService(p).CurrentIdentity(context.Background(), noCookies())

	require.NoError(t, err)
	require.NotNil(t, identity)
	assert.Equal(t, "6f1c0d2e-8a4b-4c1d-9e2f-3a4b5c6d7e8f", identity.ID)
	assert.Equal(t, "ana@example.com", identity.Email)
	assert.Equal(t, int64(2000000000), identity.ExpiresAt.Unix())
}

func TestSignIn_MissingConfigFailsFast(t *testing.T) {
	p := &mockProvider{
		signInFn: func(provider, redirectTo string, cookies authclient.CookieStore) (string, error) {
			t.Fatal("provider must not be called")
			return "", nil
		},
	}
	svc := NewAuthService(p, config.AuthConfig{URL: "https://abcd.supabase.co", OAuthProvider: "google"})

	_, err := svc.SignIn(context.Background(), noCookies())

	require.Error(t, err)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "APP_URL")
	assert.Contains(t, err.Error(), "SUPABASE_ANON_KEY")
}

func TestSignIn_ReturnsProviderURL(t *testing.T) {
	var gotProvider, gotRedirect string
	p := &mockProvider{
		signInFn: func(provider, redirectTo string, cookies authclient.CookieStore) (string, error) {
			gotProvider, gotRedirect = provider, redirectTo
			return "https://abcd.supabase.co/auth/v1/authorize?provider=google", nil
		},
	}

	url, err := newTestAuthService(p).SignIn(context.Background(), noCookies())

	require.NoError(t, err)
	assert.Equal(t, "https://abcd.supabase.co/auth/v1/authorize?provider=google", url)
	assert.Equal(t, "google", gotProvider)
	assert.Equal(t, "http://localhost:8080/auth/callback", gotRedirect)
}

func TestExchangeCode_RateLimitedEveryAttempt(t *testing.T) {
	p := &mockProvider{
		exchangeFn: func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
			return nil, &authclient.AuthError{Status: http.StatusTooManyRequests, Code: "over_request_rate_limit", Message: "Request rate limit reached"}
		},
	}

	err := newTestAuthService(p).ExchangeCode(context.Background(), "code-1", noCookies())

	assert.Equal(t, 3, p.exchangeCalls)
	assert.Equal(t, apperr.KindRateLimit, apperr.KindOf(err))
	assert.Equal(t, RateLimitMessage, apperr.Message(err))
}

func TestExchangeCode_RecoversAfterRateLimit(t *testing.T) {
	p := &mockProvider{}
	p.exchangeFn = func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
		if p.exchangeCalls == 1 {
			return nil, &authclient.AuthError{Status: http.StatusBadRequest, Message: "Too many requests"}
		}
		return &authclient.Session{AccessToken: "tok"}, nil
	}

	err := newTestAuthService(p).ExchangeCode(context.Background(), "code-1", noCookies())

	assert.NoError(t, err)
	assert.Equal(t, 2, p.exchangeCalls)
}

func TestExchangeCode_CancelledWhileWaiting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &mockProvider{
		exchangeFn: func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
			cancel()
			return nil, &authclient.AuthError{Status: http.StatusTooManyRequests, Message: "Request rate limit reached"}
		},
	}

	err := newTestAuthService(p).ExchangeCode(ctx, "code-1", noCookies())

	assert.Equal(t, 1, p.exchangeCalls)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
	assert.Equal(t, exchangeInterruptedMessage, apperr.Message(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExchangeCode_NonRetryableFailures(t *testing.T) {
	redirect := apperr.RedirectTo("/events")
	tests := []struct {
		name string
		err  error
		kind apperr.Kind
	}{
		{"reused code", &authclient.AuthError{Status: http.StatusBadRequest, Code: "flow_state_not_found", Message: "invalid flow state"}, apperr.KindInternal},
		{"connection reset", fmt.Errorf("auth request: %w", syscall.ECONNRESET), apperr.KindTransport},
		{"unexpected eof", fmt.Errorf("auth request: %w", io.ErrUnexpectedEOF), apperr.KindTransport},
		{"stream closed", errors.New("http2: stream closed"), apperr.KindTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &mockProvider{
				exchangeFn: func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
					return nil, tt.err
				},
			}
			err := newTestAuthService(p).ExchangeCode(context.Background(), "code-1", noCookies())
			assert.Equal(t, 1, p.exchangeCalls)
			assert.Equal(t, tt.kind, apperr.KindOf(err))
		})
	}

	t.Run("control redirect passes through", func(t *testing.T) {
		p := &mockProvider{
			exchangeFn: func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
				return nil, redirect
			},
		}
		err := newTestAuthService(p).ExchangeCode(context.Background(), "code-1", noCookies())
		assert.Equal(t, 1, p.exchangeCalls)
		got, ok := apperr.AsRedirect(err)
		require.True(t, ok)
		assert.Same(t, redirect, got)
	})
}

func TestExchangeCode_InvalidFlowMessage(t *testing.T) {
	p := &mockProvider{
		exchangeFn: func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
			return nil, &authclient.AuthError{Status: http.StatusBadRequest, Message: "invalid flow state"}
		},
	}

	err := newTestAuthService(p).ExchangeCode(context.Background(), "code-1", noCookies())

	assert.Equal(t, "invalid flow state", apperr.Message(err))
}

func TestSignOut(t *testing.T) {
	calls := 0
	p := &mockProvider{
		signOutFn: func(ctx context.Context, cookies authclient.CookieStore) error {
			calls++
			return nil
		},
	}

	assert.NoError(t, newTestAuthService(p).SignOut(context.Background(), noCookies()))
	assert.Equal(t, 1, calls)

	p.signOutFn = func(ctx context.Context, cookies authclient.CookieStore) error {
		return &authclient.AuthError{Status: http.StatusInternalServerError, Message: "database error"}
	}
	err := newTestAuthService(p).SignOut(context.Background(), noCookies())
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
}
