// Package authclient talks to the hosted auth service (GoTrue REST API) and
// keeps its session in provider-format cookies.
package authclient

import (
	"bytes"
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AuthError is an error answered by the auth service
type AuthError struct {
	Status  int
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth error %d (%s): %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("auth error %d: %s", e.Status, e.Message)
}

// ErrSessionMissing is returned when the request carries no usable session.
var ErrSessionMissing = &AuthError{Status: http.StatusBadRequest, Code: "session_missing", Message: "Auth session missing!"}

// Client is a GoTrue client bound to one project
type Client struct {
	baseURL    string
	anonKey    string
	storageKey string
	secure     bool
	http       *http.Client
	now        func() time.Time
}

// New creates a client for the project at baseURL. Cookies carry the
// Secure flag when secure is set.
func New(baseURL, anonKey string, secure bool) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		anonKey:    anonKey,
		storageKey: storageKey(baseURL),
		secure:     secure,
		http:       &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
	}
}

// storageKey derives the cookie name from the project reference, the first
// label of the project host.
func storageKey(baseURL string) string {
	ref := "local"
	if u, err := url.Parse(baseURL); err == nil && u.Hostname() != "" {
		ref = strings.Split(u.Hostname(), ".")[0]
	}
	return "sb-" + ref + "-auth-token"
}

// StorageKey returns the name of the session cookie.
func (c *Client) StorageKey() string {
	return c.storageKey
}

// GetUser returns the session in cookies with its user verified by the auth
// service. A session close to expiry is refreshed and written back through
// cookies first.
func (c *Client) GetUser(ctx context.Context, cookies CookieStore) (*Session, error) {
	session, ok := c.loadSession(cookies)
	if !ok {
		return nil, ErrSessionMissing
	}

	if session.expiresSoon(c.now()) {
		refreshed, err := c.refresh(ctx, session.RefreshToken)
		if err != nil {
			var authErr *AuthError
			if errors.As(err, &authErr) && authErr.Status >= 400 && authErr.Status < 500 && authErr.Status != http.StatusTooManyRequests {
				c.clearSession(cookies)
				return nil, ErrSessionMissing
			}
			return nil, err
		}
		if err := c.saveSession(cookies, refreshed); err != nil {
			return nil, err
		}
		session = refreshed
	}

	var user User
	if err := c.do(ctx, http.MethodGet, "/auth/v1/user", nil, session.AccessToken, nil, &user); err != nil {
		return nil, err
	}
	session.User = &user
	return session, nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*Session, error) {
	if refreshToken == "" {
		return nil, ErrSessionMissing
	}
	var s Session
	query := url.Values{"grant_type": {"refresh_token"}}
	body := map[string]string{"refresh_token": refreshToken}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, "", body, &s); err != nil {
		return nil, err
	}
	c.stampExpiry(&s)
	return &s, nil
}

// SignInWithOAuth starts a PKCE flow and returns the provider authorize URL.
// The code verifier is stored in cookies for the callback.
func (c *Client) SignInWithOAuth(provider, redirectTo string, cookies CookieStore) (string, error) {
	verifier, err := newCodeVerifier()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(verifier))
	challenge := base64.RawURLEncoding.EncodeToString(sum[:])

	cookies.Set(c.cookie(c.storageKey+verifierSuffix, verifier, cookieMaxAge))

	q := url.Values{
		"provider":              {provider},
		"redirect_to":           {redirectTo},
		"code_challenge":        {challenge},
		"code_challenge_method": {"s256"},
	}
	return c.baseURL + "/auth/v1/authorize?" + q.Encode(), nil
}

// ExchangeCodeForSession trades an authorization code for a session and
// stores it in cookies.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code string, cookies CookieStore) (*Session, error) {
	verifier, ok := cookies.Get(c.storageKey + verifierSuffix)
	if !ok || verifier == "" {
		return nil, &AuthError{Status: http.StatusBadRequest, Code: "pkce_verifier_missing", Message: "PKCE code verifier not found in storage"}
	}

	var s Session
	query := url.Values{"grant_type": {"pkce"}}
	body := map[string]string{"auth_code": code, "code_verifier": verifier}
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, "", body, &s); err != nil {
		return nil, err
	}
	c.stampExpiry(&s)

	if err := c.saveSession(cookies, &s); err != nil {
		return nil, err
	}
	cookies.Set(c.cookie(c.storageKey+verifierSuffix, "", -1))
	return &s, nil
}

// SignOut revokes the session at the auth service and clears the session
// cookies. The cookies are cleared even when revocation fails.
func (c *Client) SignOut(ctx context.Context, cookies CookieStore) error {
	session, ok := c.loadSession(cookies)
	c.clearSession(cookies)
	if !ok {
		return nil
	}

	query := url.Values{"scope": {"local"}}
	err := c.do(ctx, http.MethodPost, "/auth/v1/logout", query, session.AccessToken, nil, nil)
	var authErr *AuthError
	if errors.As(err, &authErr) && (authErr.Status == http.StatusUnauthorized || authErr.Status == http.StatusNotFound || authErr.Status == http.StatusForbidden) {
		return nil
	}
	return err
}

func (c *Client) stampExpiry(s *Session) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = c.now().Unix() + s.ExpiresIn
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("apikey", c.anonKey)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	} else {
		req.Header.Set("Authorization", "Bearer "+c.anonKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("auth request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read auth response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAuthError(resp.StatusCode, data)
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode auth response: %w", err)
	}
	return nil
}

func parseAuthError(status int, body []byte) *AuthError {
	var payload struct {
		ErrorCode        string `json:"error_code"`
		Msg              string `json:"msg"`
		Message          string `json:"message"`
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &payload)

	e := &AuthError{Status: status, Code: payload.ErrorCode}
	if e.Code == "" {
		e.Code = payload.Error
	}
	for _, m := range []string{payload.Msg, payload.Message, payload.ErrorDescription, payload.Error} {
		if m != "" {
			e.Message = m
			break
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}

func newCodeVerifier() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate code verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
