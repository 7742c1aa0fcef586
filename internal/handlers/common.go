package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/models"
)

// AuthFlow is the OAuth side of the auth service
type AuthFlow interface {
	SignIn(ctx context.Context, cookies authclient.CookieStore) (string, error)
	ExchangeCode(ctx context.Context, code string, cookies authclient.CookieStore) error
	SignOut(ctx context.Context, cookies authclient.CookieStore) error
}

// EventManager reads and changes events
type EventManager interface {
	CreateEvent(ctx context.Context, identity *models.Identity, input models.EventInput) (*models.Event, error)
	GetEvents(ctx context.Context, filters models.EventFilters) ([]models.Event, error)
	GetTrendingEvents(ctx context.Context, limit int) ([]models.TrendingEvent, error)
	GetEventByID(ctx context.Context, id string) (*models.Event, error)
	UpdateEvent(ctx context.Context, identity *models.Identity, id string, input models.EventInput) (*models.Event, error)
	DeleteEvent(ctx context.Context, identity *models.Identity, id string) error
}

// RSVPManager reads and toggles RSVPs
type RSVPManager interface {
	AddRSVP(ctx context.Context, identity *models.Identity, eventID string) error
	RemoveRSVP(ctx context.Context, identity *models.Identity, eventID string) error
	GetRSVPCount(ctx context.Context, eventID string) (int, error)
	GetUserRSVP(ctx context.Context, identity *models.Identity, eventID string) (bool, error)
	GetRSVPsForEvents(ctx context.Context, eventIDs []string, userID string) (map[string]models.RSVPSummary, error)
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponse{Error: message})
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

// respondAppError writes err as JSON, or follows it when it is a control
// redirect.
func respondAppError(w http.ResponseWriter, r *http.Request, err error) {
	if followRedirect(w, r, err) {
		return
	}
	respondError(w, apperr.Message(err), apperr.KindOf(err).HTTPStatus())
}

// followRedirect issues the redirect carried by err, if any.
func followRedirect(w http.ResponseWriter, r *http.Request, err error) bool {
	rd, ok := apperr.AsRedirect(err)
	if !ok {
		return false
	}
	status := rd.Status
	if status == 0 {
		status = http.StatusSeeOther
	}
	http.Redirect(w, r, rd.URL, status)
	return true
}

// withError appends a one-shot error message to target.
func withError(target, message string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	q.Set("error", message)
	u.RawQuery = q.Encode()
	return u.String()
}

func eventURL(id string) string {
	return "/events/" + url.PathEscape(id)
}
