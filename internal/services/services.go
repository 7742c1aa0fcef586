package services

import (
	"context"
	"time"

	"sport-events-backend/internal/authclient"
	"sport-events-backend/internal/broker"
	"sport-events-backend/internal/models"

	"github.com/google/uuid"
)

// EventStore is the persistence the event service needs
type EventStore interface {
	Create(ctx context.Context, event *models.Event) error
	List(ctx context.Context, filters models.EventFilters) ([]models.Event, error)
	ListUpcoming(ctx context.Context, from time.Time) ([]models.Event, error)
	GetByID(ctx context.Context, id string) (*models.Event, error)
	GetOwner(ctx context.Context, id string) (string, error)
	Update(ctx context.Context, event *models.Event) error
	Delete(ctx context.Context, id, ownerID string) error
}

// RSVPStore is the persistence the RSVP service needs
type RSVPStore interface {
	Create(ctx context.Context, rsvp *models.RSVP) error
	Delete(ctx context.Context, eventID, userID string) error
	Count(ctx context.Context, eventID string) (int, error)
	Exists(ctx context.Context, eventID, userID string) (bool, error)
	CountByEvents(ctx context.Context, eventIDs []string) (map[string]int, error)
	EventsWithUserRSVP(ctx context.Context, eventIDs []string, userID string) (map[string]bool, error)
}

// ViewCache caches view data per path and drops it on revalidation
type ViewCache interface {
	Get(ctx context.Context, path, variant string, dst any) bool
	Set(ctx context.Context, path, variant string, v any)
	Revalidate(ctx context.Context, paths ...string)
}

// Publisher emits domain events
type Publisher interface {
	Publish(ctx context.Context, msg broker.Message) error
}

// AuthProvider is the hosted auth service
type AuthProvider interface {
	GetUser(ctx context.Context, cookies authclient.CookieStore) (*authclient.Session, error)
	SignInWithOAuth(provider, redirectTo string, cookies authclient.CookieStore) (string, error)
	ExchangeCodeForSession(ctx context.Context, code string, cookies authclient.CookieStore) (*authclient.Session, error)
	SignOut(ctx context.Context, cookies authclient.CookieStore) error
}

type noCache struct{}

func (noCache) Get(context.Context, string, string, any) bool { return false }
func (noCache) Set(context.Context, string, string, any)      {}
func (noCache) Revalidate(context.Context, ...string)         {}

type noPublisher struct{}

func (noPublisher) Publish(context.Context, broker.Message) error { return nil }

// remember returns the cached value for path and variant, loading and
// storing it on a miss.
func remember[T any](ctx context.Context, c ViewCache, path, variant string, load func() (T, error)) (T, error) {
	var v T
	if c.Get(ctx, path, variant, &v) {
		return v, nil
	}
	v, err := load()
	if err != nil {
		return v, err
	}
	c.Set(ctx, path, variant, v)
	return v, nil
}

// validID reports whether id is a canonical hyphenated UUID.
func validID(id string) bool {
	if len(id) != 36 {
		return false
	}
	_, err := uuid.Parse(id)
	return err == nil
}

func eventPath(id string) string {
	return "/events/" + id
}
