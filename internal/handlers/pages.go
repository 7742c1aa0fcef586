package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/middleware"
	"sport-events-backend/internal/models"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// dateTimeLocal is the layout of an <input type="datetime-local"> value
const dateTimeLocal = "2006-01-02T15:04"

const signInRequiredNotice = "Please sign in to continue."

type eventCard struct {
	Event   models.Event
	Summary models.RSVPSummary
}

type homeData struct {
	Trending  []models.TrendingEvent
	Cards     []eventCard
	LoadError string
}

type listData struct {
	Filters    models.EventFilters
	SportTypes []string
	Cards      []eventCard
	LoadError  string
}

type detailData struct {
	Event   *models.Event
	Summary models.RSVPSummary
	IsOwner bool
}

type formData struct {
	EventID    string
	Action     string
	Input      models.EventInput
	EventDate  string
	SportTypes []string
}

// PageHandler serves the HTML pages
type PageHandler struct {
	events    EventManager
	rsvps     RSVPManager
	templates *Templates
}

// NewPageHandler creates a new page handler
func NewPageHandler(events EventManager, rsvps RSVPManager, templates *Templates) *PageHandler {
	return &PageHandler{
		events:    events,
		rsvps:     rsvps,
		templates: templates,
	}
}

func (h *PageHandler) page(r *http.Request, title string, data any) Page {
	p := Page{
		Title: title,
		User:  middleware.GetIdentity(r.Context()),
		Error: r.URL.Query().Get("error"),
		Data:  data,
	}
	if r.URL.Query().Get("signin") == "required" && p.User == nil {
		p.Notice = signInRequiredNotice
	}
	return p
}

// Home handles GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	data := homeData{}

	trending, err := h.events.GetTrendingEvents(ctx, 0)
	if err != nil {
		data.LoadError = apperr.Message(err)
	}
	data.Trending = trending

	events, err := h.events.GetEvents(ctx, models.EventFilters{})
	if err != nil {
		data.LoadError = apperr.Message(err)
	}
	data.Cards = h.cards(ctx, events)

	h.templates.Render(w, http.StatusOK, "home.html", h.page(r, "Home", data))
}

// ListEvents handles GET /events
func (h *PageHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	data := listData{
		Filters: models.EventFilters{
			SportType: q.Get("sport"),
			Title:     strings.TrimSpace(q.Get("title")),
		},
		SportTypes: models.SportTypes,
	}

	events, err := h.events.GetEvents(r.Context(), data.Filters)
	if err != nil {
		data.LoadError = apperr.Message(err)
	}
	data.Cards = h.cards(r.Context(), events)

	h.templates.Render(w, http.StatusOK, "events.html", h.page(r, "Events", data))
}

// cards attaches RSVP summaries. A failed summary lookup shows zero counts.
func (h *PageHandler) cards(ctx context.Context, events []models.Event) []eventCard {
	if len(events) == 0 {
		return nil
	}
	ids := make([]string, len(events))
	for i, e := range events {
		ids[i] = e.ID
	}
	summaries, err := h.rsvps.GetRSVPsForEvents(ctx, ids, middleware.GetUserID(ctx))
	if err != nil {
		log.Warn().Err(err).Int("events", len(ids)).Msg("Failed to load RSVP summaries")
	}

	cards := make([]eventCard, len(events))
	for i, e := range events {
		cards[i] = eventCard{Event: e, Summary: summaries[e.ID]}
	}
	return cards
}

// ShowEvent handles GET /events/{id}
func (h *PageHandler) ShowEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := middleware.GetIdentity(ctx)
	id := chi.URLParam(r, "id")

	event, err := h.events.GetEventByID(ctx, id)
	if err != nil {
		if followRedirect(w, r, err) {
			return
		}
		status := http.StatusNotFound
		if apperr.Is(err, apperr.KindInternal) {
			status = http.StatusInternalServerError
		}
		h.templates.RenderError(w, r, identity, status, apperr.Message(err))
		return
	}

	data := detailData{
		Event:   event,
		IsOwner: identity != nil && identity.ID == event.CreatedBy,
	}
	if data.Summary.Count, err = h.rsvps.GetRSVPCount(ctx, id); err != nil {
		log.Warn().Err(err).Str("event_id", id).Msg("Failed to load RSVP count")
	}
	if data.Summary.HasRSVP, err = h.rsvps.GetUserRSVP(ctx, identity, id); err != nil {
		log.Warn().Err(err).Str("event_id", id).Msg("Failed to load user RSVP")
	}

	h.templates.Render(w, http.StatusOK, "event.html", h.page(r, event.Title, data))
}

// NewEvent handles GET /events/new
func (h *PageHandler) NewEvent(w http.ResponseWriter, r *http.Request) {
	h.renderForm(w, r, http.StatusOK, "", models.EventInput{}, "")
}

// CreateEvent handles POST /events/new
func (h *PageHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	input, err := parseEventForm(r)
	if err != nil {
		h.renderForm(w, r, http.StatusUnprocessableEntity, "", input, apperr.Message(err))
		return
	}

	event, err := h.events.CreateEvent(r.Context(), middleware.GetIdentity(r.Context()), input)
	if err != nil {
		if followRedirect(w, r, err) {
			return
		}
		h.renderForm(w, r, formStatus(err), "", input, apperr.Message(err))
		return
	}

	http.Redirect(w, r, eventURL(event.ID), http.StatusSeeOther)
}

// EditEvent handles GET /events/{id}/edit
func (h *PageHandler) EditEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	event, err := h.events.GetEventByID(ctx, id)
	if err != nil {
		http.Redirect(w, r, "/events", http.StatusSeeOther)
		return
	}
	if middleware.GetUserID(ctx) != event.CreatedBy {
		http.Redirect(w, r, eventURL(event.ID), http.StatusSeeOther)
		return
	}

	input := models.EventInput{
		Title:       event.Title,
		SportType:   event.SportType,
		EventDate:   event.EventDate,
		Venues:      event.Venues,
		Description: event.Description,
	}
	h.renderForm(w, r, http.StatusOK, event.ID, input, "")
}

// UpdateEvent handles POST /events/{id}/edit
func (h *PageHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	input, err := parseEventForm(r)
	if err != nil {
		h.renderForm(w, r, http.StatusUnprocessableEntity, id, input, apperr.Message(err))
		return
	}

	event, err := h.events.UpdateEvent(ctx, middleware.GetIdentity(ctx), id, input)
	if err != nil {
		switch {
		case followRedirect(w, r, err):
		case apperr.Is(err, apperr.KindAuthorization):
			http.Redirect(w, r, withError(eventURL(id), apperr.Message(err)), http.StatusSeeOther)
		case apperr.Is(err, apperr.KindNotFound):
			http.Redirect(w, r, withError("/events", apperr.Message(err)), http.StatusSeeOther)
		default:
			h.renderForm(w, r, formStatus(err), id, input, apperr.Message(err))
		}
		return
	}

	http.Redirect(w, r, eventURL(event.ID), http.StatusSeeOther)
}

// DeleteEvent handles POST /events/{id}/delete
func (h *PageHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := h.events.DeleteEvent(ctx, middleware.GetIdentity(ctx), id); err != nil {
		if followRedirect(w, r, err) {
			return
		}
		http.Redirect(w, r, withError(eventURL(id), apperr.Message(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/events", http.StatusSeeOther)
}

// AddRSVP handles POST /events/{id}/rsvp
func (h *PageHandler) AddRSVP(w http.ResponseWriter, r *http.Request) {
	h.toggleRSVP(w, r, h.rsvps.AddRSVP)
}

// RemoveRSVP handles POST /events/{id}/rsvp/delete
func (h *PageHandler) RemoveRSVP(w http.ResponseWriter, r *http.Request) {
	h.toggleRSVP(w, r, h.rsvps.RemoveRSVP)
}

func (h *PageHandler) toggleRSVP(w http.ResponseWriter, r *http.Request, op func(context.Context, *models.Identity, string) error) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if err := op(ctx, middleware.GetIdentity(ctx), id); err != nil {
		if followRedirect(w, r, err) {
			return
		}
		http.Redirect(w, r, withError(eventURL(id), apperr.Message(err)), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, eventURL(id), http.StatusSeeOther)
}

func (h *PageHandler) renderForm(w http.ResponseWriter, r *http.Request, status int, eventID string, input models.EventInput, message string) {
	data := formData{
		EventID:    eventID,
		Action:     "/events/new",
		Input:      input,
		SportTypes: models.SportTypes,
	}
	if eventID != "" {
		data.Action = eventURL(eventID) + "/edit"
	}
	if !input.EventDate.IsZero() {
		data.EventDate = input.EventDate.Format(dateTimeLocal)
	}

	title := "Create event"
	if eventID != "" {
		title = "Edit event"
	}
	page := h.page(r, title, data)
	if message != "" {
		page.Error = message
	}
	h.templates.Render(w, status, "event_form.html", page)
}

// formStatus is the status a re-rendered form is served with.
func formStatus(err error) int {
	if kind := apperr.KindOf(err); kind != apperr.KindValidation && kind != apperr.KindInternal {
		return kind.HTTPStatus()
	}
	return http.StatusUnprocessableEntity
}

// parseEventForm reads the event form. An empty date is left zero for the
// validator; a malformed one is a validation error.
func parseEventForm(r *http.Request) (models.EventInput, error) {
	if err := r.ParseForm(); err != nil {
		return models.EventInput{}, apperr.Wrap(apperr.KindValidation, "Invalid form submission", err)
	}

	input := models.EventInput{
		Title:     r.PostFormValue("title"),
		SportType: r.PostFormValue("sport_type"),
		Venues:    r.PostFormValue("venues"),
	}
	if d := r.PostFormValue("description"); d != "" {
		input.Description = &d
	}

	if raw := strings.TrimSpace(r.PostFormValue("event_date")); raw != "" {
		t, err := time.ParseInLocation(dateTimeLocal, raw, time.Local)
		if err != nil {
			return input, apperr.Wrap(apperr.KindValidation, "Event date is invalid", err)
		}
		input.EventDate = t
	}
	return input, nil
}
