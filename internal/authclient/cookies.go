package authclient

import (
	"net/http"
	"sort"
	"strings"
)

// CookieStore is the cookie bridge the client reads and writes sessions
// through.
type CookieStore interface {
	Get(name string) (string, bool)
	Names() []string
	Set(c *http.Cookie)
}

type readOnlyCookies struct {
	r *http.Request
}

// ReadOnlyCookies exposes the request cookies and drops writes. The server
// always resolves sessions through ResponseCookies, since a refresh rotates
// the refresh token and must reach the browser; this store is used by tests
// that only read a session.
func ReadOnlyCookies(r *http.Request) CookieStore {
	return readOnlyCookies{r: r}
}

func (c readOnlyCookies) Get(name string) (string, bool) {
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c readOnlyCookies) Names() []string {
	var names []string
	for _, ck := range c.r.Cookies() {
		names = append(names, ck.Name)
	}
	return names
}

func (readOnlyCookies) Set(*http.Cookie) {}

type responseCookies struct {
	w       http.ResponseWriter
	r       *http.Request
	written map[string]*http.Cookie
}

// ResponseCookies writes cookies to w. Values written are visible to later
// reads through the same store.
func ResponseCookies(w http.ResponseWriter, r *http.Request) CookieStore {
	return &responseCookies{w: w, r: r, written: make(map[string]*http.Cookie)}
}

func (c *responseCookies) Get(name string) (string, bool) {
	if ck, ok := c.written[name]; ok {
		if ck.MaxAge < 0 {
			return "", false
		}
		return ck.Value, true
	}
	ck, err := c.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return ck.Value, true
}

func (c *responseCookies) Names() []string {
	seen := make(map[string]bool)
	for _, ck := range c.r.Cookies() {
		seen[ck.Name] = true
	}
	for name, ck := range c.written {
		seen[name] = ck.MaxAge >= 0
	}
	names := make([]string, 0, len(seen))
	for name, live := range seen {
		if live {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

func (c *responseCookies) Set(ck *http.Cookie) {
	c.written[ck.Name] = ck
	http.SetCookie(c.w, ck)
}

// IsAuthCookie reports whether name belongs to the auth provider.
func IsAuthCookie(name string) bool {
	return strings.HasPrefix(name, "sb-") && strings.Contains(name, "auth")
}
