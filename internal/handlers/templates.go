package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"sport-events-backend/internal/models"

	"github.com/rs/zerolog/log"
)

//go:embed templates/*.html
var templateFS embed.FS

// Template helper functions
var funcMap = template.FuncMap{
	"FormatDateTime": FormatDateTime,
	"Nl2br":          Nl2br,
	"Plural":         Plural,
	"deref":          deref,
}

// FormatDateTime formats a time for display, e.g. "January 2, 2006 at 3:04 PM".
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return "N/A"
	}
	return t.Format("January 2, 2006 at 3:04 PM")
}

// Nl2br escapes s and turns newlines into <br> tags.
func Nl2br(s string) template.HTML {
	return template.HTML(strings.ReplaceAll(template.HTMLEscapeString(s), "\n", "<br>"))
}

// Plural renders a count with the matching noun.
func Plural(n int, one, many string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, one)
	}
	return fmt.Sprintf("%d %s", n, many)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Page is the data every page template receives
type Page struct {
	Title  string
	User   *models.Identity
	Error  string
	Notice string
	Data   any
}

// Templates holds one parsed set per page, each including the layout and
// the partials.
type Templates struct {
	pages map[string]*template.Template
}

// LoadTemplates parses the embedded page templates.
func LoadTemplates() (*Templates, error) {
	return loadTemplates(templateFS)
}

func loadTemplates(fsys fs.FS) (*Templates, error) {
	files, err := fs.Glob(fsys, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("error globbing templates: %w", err)
	}

	var partials, pages []string
	for _, f := range files {
		base := strings.TrimPrefix(f, "templates/")
		switch {
		case base == "layout.html":
		case strings.HasPrefix(base, "_"):
			partials = append(partials, f)
		default:
			pages = append(pages, f)
		}
	}

	t := &Templates{pages: make(map[string]*template.Template, len(pages))}
	for _, page := range pages {
		name := strings.TrimPrefix(page, "templates/")
		patterns := append([]string{page, "templates/layout.html"}, partials...)
		tmpl, err := template.New(name).Funcs(funcMap).ParseFS(fsys, patterns...)
		if err != nil {
			return nil, fmt.Errorf("error parsing page template %s: %w", name, err)
		}
		t.pages[name] = tmpl
	}
	return t, nil
}

// Render executes the named page into a buffer first so a template failure
// never leaves a half-written response.
func (t *Templates) Render(w http.ResponseWriter, status int, name string, page Page) {
	tmpl, ok := t.pages[name]
	if !ok {
		log.Error().Str("template", name).Msg("Template not found")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, page); err != nil {
		log.Error().Err(err).Str("template", name).Msg("Failed to execute template")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

type errorPage struct {
	StatusCode int
	StatusText string
	Message    string
}

// RenderError renders the error page with the given status.
func (t *Templates) RenderError(w http.ResponseWriter, r *http.Request, user *models.Identity, status int, message string) {
	t.Render(w, status, "error.html", Page{
		Title: http.StatusText(status),
		User:  user,
		Data: errorPage{
			StatusCode: status,
			StatusText: http.StatusText(status),
			Message:    message,
		},
	})
}
