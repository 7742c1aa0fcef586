package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"

	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/middleware"
	"sport-events-backend/internal/models"

	"github.com/go-chi/chi/v5"
)

type mockAuthFlow struct {
	signIn        func(ctx context.Context) (string, error)
	exchange      func(ctx context.Context, code string) error
	signOut       func(ctx context.Context) error
	exchangeCalls int
}

func (m *mockAuthFlow) SignIn(ctx context.Context, cookies authclient.CookieStore) (string, error) {
	return m.signIn(ctx)
}

func (m *mockAuthFlow) ExchangeCode(ctx context.Context, code string, cookies authclient.CookieStore) error {
	m.exchangeCalls++
	if m.exchange == nil {
		return nil
	}
	return m.exchange(ctx, code)
}

func (m *mockAuthFlow) SignOut(ctx context.Context, cookies authclient.CookieStore) error {
	if m.signOut == nil {
		return nil
	}
	return m.signOut(ctx)
}

type mockEvents struct {
	create   func(identity *models.Identity, input models.EventInput) (*models.Event, error)
	list     func(filters models.EventFilters) ([]models.Event, error)
	trending func(limit int) ([]models.TrendingEvent, error)
	get      func(id string) (*models.Event, error)
	update   func(identity *models.Identity, id string, input models.EventInput) (*models.Event, error)
	remove   func(identity *models.Identity, id string) error
}

func (m *mockEvents) CreateEvent(ctx context.Context, identity *models.Identity, input models.EventInput) (*models.Event, error) {
	return m.create(identity, input)
}

func (m *mockEvents) GetEvents(ctx context.Context, filters models.EventFilters) ([]models.Event, error) {
	if m.list == nil {
		return nil, nil
	}
	return m.list(filters)
}

func (m *mockEvents) GetTrendingEvents(ctx context.Context, limit int) ([]models.TrendingEvent, error) {
	if m.trending == nil {
		return nil, nil
	}
	return m.trending(limit)
}

func (m *mockEvents) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	return m.get(id)
}

func (m *mockEvents) UpdateEvent(ctx context.Context, identity *models.Identity, id string, input models.EventInput) (*models.Event, error) {
	return m.update(identity, id, input)
}

func (m *mockEvents) DeleteEvent(ctx context.Context, identity *models.Identity, id string) error {
	return m.remove(identity, id)
}

type mockRSVPs struct {
	add       func(identity *models.Identity, eventID string) error
	remove    func(identity *models.Identity, eventID string) error
	count     int
	has       bool
	summaries map[string]models.RSVPSummary
	err       error
}

func (m *mockRSVPs) AddRSVP(ctx context.Context, identity *models.Identity, eventID string) error {
	return m.add(identity, eventID)
}

func (m *mockRSVPs) RemoveRSVP(ctx context.Context, identity *models.Identity, eventID string) error {
	return m.remove(identity, eventID)
}

func (m *mockRSVPs) GetRSVPCount(ctx context.Context, eventID string) (int, error) {
	return m.count, m.err
}

func (m *mockRSVPs) GetUserRSVP(ctx context.Context, identity *models.Identity, eventID string) (bool, error) {
	if identity == nil {
		return false, nil
	}
	return m.has, m.err
}

func (m *mockRSVPs) GetRSVPsForEvents(ctx context.Context, eventIDs []string, userID string) (map[string]models.RSVPSummary, error) {
	return m.summaries, m.err
}

const (
	ownerID  = "aaaaaaaa-aaaa-4aaa-8aaa-aaaaaaaaaaaa"
	eventID1 = "11111111-1111-4111-8111-111111111111"
)

var owner = &models.Identity{ID: ownerID, Email: "owner@example.com"}

// newRequest builds a request carrying identity and the chi id param.
func newRequest(method, target string, form url.Values, identity *models.Identity, id string) *http.Request {
	var r *http.Request
	if form != nil {
		r = httptest.NewRequest(method, target, strings.NewReader(form.Encode()))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}

	ctx := middleware.WithIdentity(r.Context(), identity)
	if id != "" {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("id", id)
		ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)
	}
	return r.WithContext(ctx)
}

// errorParam returns the one-shot error carried by a redirect location.
func errorParam(location string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get("error")
}
