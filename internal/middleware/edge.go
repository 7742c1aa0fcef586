package middleware

import (
	"net/http"
	"regexp"
	"strings"

	"sport-events-backend/internal/authclient"
)

const (
	noStoreCache = "no-store, no-cache, must-revalidate"
	noCache      = "no-store, no-cache, must-revalidate, max-age=0"
	publicCache  = "public, s-maxage=60, stale-while-revalidate=120"
	privateCache = "private, no-cache, must-revalidate"
)

var (
	staticAsset = regexp.MustCompile(`\.(ico|png|jpg|jpeg|svg|gif|webp|css|js|woff|woff2|ttf|eot)$`)
	editPage    = regexp.MustCompile(`^/events/[^/]+/edit/?$`)
)

func bypassEdge(path string) bool {
	return strings.HasPrefix(path, "/static/") ||
		strings.HasPrefix(path, "/auth/") ||
		strings.HasPrefix(path, "/api/") ||
		staticAsset.MatchString(path)
}

func setCacheHeaders(h http.Header, path string) {
	switch {
	case strings.HasPrefix(path, "/events/new") || editPage.MatchString(path):
		h.Set("Cache-Control", noCache)
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
	case path == "/" || strings.HasPrefix(path, "/events"):
		h.Set("Cache-Control", publicCache)
	default:
		h.Set("Cache-Control", privateCache)
	}
}

func setSecurityHeaders(h http.Header) {
	h.Set("X-Content-Type-Options", "nosniff")
	h.Set("X-Frame-Options", "DENY")
	h.Set("X-XSS-Protection", "1; mode=block")
	h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
}

func expireCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{Name: name, Value: "", Path: "/", MaxAge: -1})
}

// Edge sets cache and security headers on page responses, drops empty auth
// cookies and finishes a sign-out. It never looks at the session itself.
func Edge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if bypassEdge(path) {
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		setCacheHeaders(h, path)
		setSecurityHeaders(h)

		for _, c := range r.Cookies() {
			if authclient.IsAuthCookie(c.Name) && c.Value == "" {
				expireCookie(w, c.Name)
			}
		}

		q := r.URL.Query()
		if q.Get("signout") == "success" {
			for _, c := range r.Cookies() {
				if authclient.IsAuthCookie(c.Name) && c.Value != "" {
					expireCookie(w, c.Name)
				}
			}
			q.Del("signout")
			target := *r.URL
			target.RawQuery = q.Encode()

			h.Set("Cache-Control", noStoreCache)
			h.Del("Pragma")
			h.Del("Expires")
			http.Redirect(w, r, target.RequestURI(), http.StatusTemporaryRedirect)
			return
		}

		next.ServeHTTP(w, r)
	})
}
