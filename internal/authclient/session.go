package authclient

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	base64Prefix   = "base64-"
	maxChunkSize   = 3180
	cookieMaxAge   = 400 * 24 * 60 * 60
	verifierSuffix = "-code-verifier"
	refreshMargin  = 60 * time.Second
)

// User is the provider's view of an account
type User struct {
	ID           string         `json:"id"`
	Email        string         `json:"email"`
	Role         string         `json:"role,omitempty"`
	AppMetadata  map[string]any `json:"app_metadata,omitempty"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// Session is the token set persisted in the auth cookies
type Session struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         *User  `json:"user"`
}

// Expiry returns when the access token stops being valid. The token's own
// exp claim wins over the stored expires_at.
func (s *Session) Expiry() time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(s.AccessToken, claims); err == nil {
		if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
			return exp.Time
		}
	}
	if s.ExpiresAt > 0 {
		return time.Unix(s.ExpiresAt, 0)
	}
	return time.Time{}
}

func (s *Session) expiresSoon(now time.Time) bool {
	exp := s.Expiry()
	if exp.IsZero() {
		return false
	}
	return exp.Sub(now) < refreshMargin
}

func encodeSession(s *Session) (string, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("failed to encode session: %w", err)
	}
	return base64Prefix + base64.RawURLEncoding.EncodeToString(data), nil
}

func decodeSession(value string) (*Session, error) {
	var data []byte
	if strings.HasPrefix(value, base64Prefix) {
		raw := strings.TrimPrefix(value, base64Prefix)
		decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
		if err != nil {
			return nil, fmt.Errorf("failed to decode session cookie: %w", err)
		}
		data = decoded
	} else {
		data = []byte(value)
	}

	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session cookie: %w", err)
	}
	if s.AccessToken == "" {
		return nil, fmt.Errorf("session cookie has no access token")
	}
	return &s, nil
}

// chunk splits value into pieces no longer than size.
func chunk(value string, size int) []string {
	if len(value) <= size {
		return []string{value}
	}
	var parts []string
	for len(value) > size {
		parts = append(parts, value[:size])
		value = value[size:]
	}
	if value != "" {
		parts = append(parts, value)
	}
	return parts
}

// readCookieValue joins the session cookie, whether stored whole or in
// numbered chunks.
func readCookieValue(cookies CookieStore, key string) (string, bool) {
	if v, ok := cookies.Get(key); ok && v != "" {
		return v, true
	}
	var b strings.Builder
	for i := 0; ; i++ {
		v, ok := cookies.Get(key + "." + strconv.Itoa(i))
		if !ok {
			break
		}
		b.WriteString(v)
	}
	if b.Len() == 0 {
		return "", false
	}
	return b.String(), true
}

func (c *Client) loadSession(cookies CookieStore) (*Session, bool) {
	value, ok := readCookieValue(cookies, c.storageKey)
	if !ok {
		return nil, false
	}
	s, err := decodeSession(value)
	if err != nil {
		return nil, false
	}
	return s, true
}

func (c *Client) saveSession(cookies CookieStore, s *Session) error {
	value, err := encodeSession(s)
	if err != nil {
		return err
	}
	parts := chunk(value, maxChunkSize)

	keep := make(map[string]bool, len(parts))
	if len(parts) == 1 {
		keep[c.storageKey] = true
		cookies.Set(c.cookie(c.storageKey, parts[0], cookieMaxAge))
	} else {
		for i, p := range parts {
			name := c.storageKey + "." + strconv.Itoa(i)
			keep[name] = true
			cookies.Set(c.cookie(name, p, cookieMaxAge))
		}
	}

	for _, name := range c.sessionCookieNames(cookies) {
		if !keep[name] {
			cookies.Set(c.cookie(name, "", -1))
		}
	}
	return nil
}

func (c *Client) clearSession(cookies CookieStore) {
	for _, name := range c.sessionCookieNames(cookies) {
		cookies.Set(c.cookie(name, "", -1))
	}
}

// sessionCookieNames lists the whole and chunked session cookies present.
func (c *Client) sessionCookieNames(cookies CookieStore) []string {
	var names []string
	for _, name := range cookies.Names() {
		if name == c.storageKey {
			names = append(names, name)
			continue
		}
		if rest, ok := strings.CutPrefix(name, c.storageKey+"."); ok {
			if _, err := strconv.Atoi(rest); err == nil {
				names = append(names, name)
			}
		}
	}
	return names
}

func (c *Client) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
