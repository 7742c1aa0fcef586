package handlers

import (
	"net/http"
	"strconv"

	"sport-events-backend/internal/middleware"
	"sport-events-backend/internal/models"

	"github.com/go-chi/chi/v5"
)

const maxTrendingLimit = 50

// APIHandler serves the read-only JSON API
type APIHandler struct {
	events EventManager
	rsvps  RSVPManager
}

// NewAPIHandler creates a new API handler
func NewAPIHandler(events EventManager, rsvps RSVPManager) *APIHandler {
	return &APIHandler{events: events, rsvps: rsvps}
}

// ListEvents handles GET /api/v1/events
func (h *APIHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	events, err := h.events.GetEvents(r.Context(), models.EventFilters{
		SportType: q.Get("sport"),
		Title:     q.Get("title"),
	})
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if events == nil {
		events = []models.Event{}
	}
	respondJSON(w, http.StatusOK, events)
}

// TrendingEvents handles GET /api/v1/events/trending
func (h *APIHandler) TrendingEvents(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxTrendingLimit {
			respondError(w, "limit must be between 1 and 50", http.StatusBadRequest)
			return
		}
		limit = n
	}

	trending, err := h.events.GetTrendingEvents(r.Context(), limit)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	if trending == nil {
		trending = []models.TrendingEvent{}
	}
	respondJSON(w, http.StatusOK, trending)
}

// GetEvent handles GET /api/v1/events/{id}
func (h *APIHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	event, err := h.events.GetEventByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// GetRSVPs handles GET /api/v1/events/{id}/rsvps
func (h *APIHandler) GetRSVPs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	count, err := h.rsvps.GetRSVPCount(ctx, id)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	has, err := h.rsvps.GetUserRSVP(ctx, middleware.GetIdentity(ctx), id)
	if err != nil {
		respondAppError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, models.RSVPSummary{Count: count, HasRSVP: has})
}

// Me handles GET /api/v1/me
func (h *APIHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, middleware.GetIdentity(r.Context()))
}

// Health handles GET /healthz
func Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
