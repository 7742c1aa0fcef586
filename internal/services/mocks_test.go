package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/broker"
	"sport-events-backend/internal/models"
	"sport-events-backend/internal/repository"
)

// --- Mock EventStore ---

type mockEventStore struct {
	createFn       func(ctx context.Context, event *models.Event) error
	listFn         func(ctx context.Context, filters models.EventFilters) ([]models.Event, error)
	listUpcomingFn func(ctx context.Context, from time.Time) ([]models.Event, error)
	getByIDFn      func(ctx context.Context, id string) (*models.Event, error)
	getOwnerFn     func(ctx context.Context, id string) (string, error)
	updateFn       func(ctx context.Context, event *models.Event) error
	deleteFn       func(ctx context.Context, id, ownerID string) error

	calls int
}

func (m *mockEventStore) Create(ctx context.Context, event *models.Event) error {
	m.calls++
	return m.createFn(ctx, event)
}
func (m *mockEventStore) List(ctx context.Context, filters models.EventFilters) ([]models.Event, error) {
	m.calls++
	return m.listFn(ctx, filters)
}
func (m *mockEventStore) ListUpcoming(ctx context.Context, from time.Time) ([]models.Event, error) {
	m.calls++
	return m.listUpcomingFn(ctx, from)
}
func (m *mockEventStore) GetByID(ctx context.Context, id string) (*models.Event, error) {
	m.calls++
	return m.getByIDFn(ctx, id)
}
func (m *mockEventStore) GetOwner(ctx context.Context, id string) (string, error) {
	m.calls++
	return m.getOwnerFn(ctx, id)
}
func (m *mockEventStore) Update(ctx context.Context, event *models.Event) error {
	m.calls++
	return m.updateFn(ctx, event)
}
func (m *mockEventStore) Delete(ctx context.Context, id, ownerID string) error {
	m.calls++
	return m.deleteFn(ctx, id, ownerID)
}

// --- In-memory RSVPStore ---

type memRSVPStore struct {
	mu       sync.Mutex
	byEvent  map[string]map[string]bool
	countErr error
}

func newMemRSVPStore() *memRSVPStore {
	return &memRSVPStore{byEvent: make(map[string]map[string]bool)}
}

func (m *memRSVPStore) Create(_ context.Context, rsvp *models.RSVP) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	users := m.byEvent[rsvp.EventID]
	if users == nil {
		users = make(map[string]bool)
		m.byEvent[rsvp.EventID] = users
	}
	if users[rsvp.UserID] {
		return fmt.Errorf("rsvp for event %s: %w", rsvp.EventID, repository.ErrConflict)
	}
	users[rsvp.UserID] = true
	return nil
}

func (m *memRSVPStore) Delete(_ context.Context, eventID, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.byEvent[eventID], userID)
	return nil
}

func (m *memRSVPStore) Count(_ context.Context, eventID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byEvent[eventID]), nil
}

func (m *memRSVPStore) Exists(_ context.Context, eventID, userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byEvent[eventID][userID], nil
}

func (m *memRSVPStore) CountByEvents(_ context.Context, eventIDs []string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.countErr != nil {
		return nil, m.countErr
	}
	counts := make(map[string]int)
	for _, id := range eventIDs {
		if n := len(m.byEvent[id]); n > 0 {
			counts[id] = n
		}
	}
	return counts, nil
}

func (m *memRSVPStore) EventsWithUserRSVP(_ context.Context, eventIDs []string, userID string) (map[string]bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	flags := make(map[string]bool)
	for _, id := range eventIDs {
		if m.byEvent[id][userID] {
			flags[id] = true
		}
	}
	return flags, nil
}

func (m *memRSVPStore) seed(eventID string, n int) {
	for i := 0; i < n; i++ {
		m.Create(context.Background(), &models.RSVP{EventID: eventID, UserID: fmt.Sprintf("seed-%d", i)})
	}
}

// --- Recording ViewCache ---

type memCache struct {
	entries     map[string][]byte
	revalidated []string
}

func newMemCache() *memCache {
	return &memCache{entries: make(map[string][]byte)}
}

func (c *memCache) Get(_ context.Context, path, variant string, dst any) bool {
	data, ok := c.entries[path+"|"+variant]
	if !ok {
		return false
	}
	return json.Unmarshal(data, dst) == nil
}

func (c *memCache) Set(_ context.Context, path, variant string, v any) {
	data, _ := json.Marshal(v)
	c.entries[path+"|"+variant] = data
}

func (c *memCache) Revalidate(_ context.Context, paths ...string) {
	c.revalidated = append(c.revalidated, paths...)
	for _, p := range paths {
		for k := range c.entries {
			if len(k) > len(p) && k[:len(p)+1] == p+"|" {
				delete(c.entries, k)
			}
		}
	}
}

// --- Recording Publisher ---

type memPublisher struct {
	mu       sync.Mutex
	messages []broker.Message
}

func (p *memPublisher) Publish(_ context.Context, msg broker.Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return nil
}

func (p *memPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range p.messages {
		out = append(out, m.Type)
	}
	return out
}

// --- Mock AuthProvider ---

type mockProvider struct {
	getUserFn  func(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error)
	signInFn   func(provider, redirectTo string, cookies authclient.CookieStore) (string, error)
	exchangeFn func(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error)
	signOutFn  func(ctx context.Context, cookies authclient.CookieStore) error

	exchangeCalls int
}

func (m *mockProvider) GetUser(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error) {
	return m.getUserFn(ctx, cookies)
}
func (m *mockProvider) SignInWithOAuth(provider, redirectTo string, cookies authclient.CookieStore) (string, error) {
	return m.signInFn(provider, redirectTo, cookies)
}
func (m *mockProvider) ExchangeCodeForSession(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error) {
	m.exchangeCalls++
	return m.exchangeFn(ctx, code, cookies)
}
func (m *mockProvider) SignOut(ctx context.Context, cookies authclient.CookieStore) error {
	return m.signOutFn(ctx, cookies)
}
