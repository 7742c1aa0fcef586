package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/broker"
	"sport-events-backend/internal/models"
	"sport-events-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// DefaultTrendingLimit is the number of trending events shown on the home page
const DefaultTrendingLimit = 6

var errUnauthorized = apperr.New(apperr.KindAuthorization, "Unauthorized")

// EventService handles event-related business logic
type EventService struct {
	events    EventStore
	rsvps     RSVPStore
	cache     ViewCache
	publisher Publisher
	now       func() time.Time
}

// NewEventService creates a new event service. cache and publisher may be nil.
func NewEventService(events EventStore, rsvps RSVPStore, cache ViewCache, publisher Publisher) *EventService {
	if cache == nil {
		cache = noCache{}
	}
	if publisher == nil {
		publisher = noPublisher{}
	}
	return &EventService{
		events:    events,
		rsvps:     rsvps,
		cache:     cache,
		publisher: publisher,
		now:       time.Now,
	}
}

// CreateEvent creates an event owned by the signed-in user
func (s *EventService) CreateEvent(ctx context.Context, identity *models.Identity, input models.EventInput) (*models.Event, error) {
	if identity == nil {
		return nil, apperr.New(apperr.KindAuthentication, "You must be signed in to create an event")
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	event := &models.Event{
		ID:          uuid.NewString(),
		Title:       input.Title,
		Description: input.Description,
		SportType:   input.SportType,
		EventDate:   input.EventDate,
		Venues:      input.Venues,
		CreatedBy:   identity.ID,
	}
	if err := s.events.Create(ctx, event); err != nil {
		log.Error().Err(err).Str("user_id", identity.ID).Msg("Failed to create event")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to create event", err)
	}

	s.cache.Revalidate(ctx, "/events", "/")
	s.publish(ctx, broker.EventCreated, event.ID, identity.ID, event)

	log.Info().Str("event_id", event.ID).Str("user_id", identity.ID).Msg("Event created")
	return event, nil
}

// GetEvents lists events matching filters, soonest first
func (s *EventService) GetEvents(ctx context.Context, filters models.EventFilters) ([]models.Event, error) {
	filters = normalizeFilters(filters)
	variant := url.Values{
		"sport": {filters.SportType},
		"title": {strings.ToLower(filters.Title)},
	}.Encode()

	events, err := remember(ctx, s.cache, "/events", variant, func() ([]models.Event, error) {
		return s.events.List(ctx, filters)
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch events")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to fetch events", err)
	}
	return events, nil
}

func normalizeFilters(f models.EventFilters) models.EventFilters {
	f.SportType = strings.TrimSpace(f.SportType)
	if strings.EqualFold(f.SportType, "all") {
		f.SportType = ""
	}
	f.Title = strings.TrimSpace(f.Title)
	return f
}

// GetTrendingEvents returns upcoming events ranked by RSVP count, ties broken
// by the earlier date.
func (s *EventService) GetTrendingEvents(ctx context.Context, limit int) ([]models.TrendingEvent, error) {
	if limit <= 0 {
		limit = DefaultTrendingLimit
	}

	trending, err := remember(ctx, s.cache, "/", fmt.Sprintf("trending:%d", limit), func() ([]models.TrendingEvent, error) {
		return s.rankTrending(ctx, limit)
	})
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch trending events")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to fetch trending events", err)
	}
	return trending, nil
}

func (s *EventService) rankTrending(ctx context.Context, limit int) ([]models.TrendingEvent, error) {
	upcoming, err := s.events.ListUpcoming(ctx, s.now())
	if err != nil {
		return nil, err
	}
	if len(upcoming) == 0 {
		return []models.TrendingEvent{}, nil
	}

	ids := make([]string, len(upcoming))
	for i, e := range upcoming {
		ids[i] = e.ID
	}
	counts, err := s.rsvps.CountByEvents(ctx, ids)
	if err != nil {
		log.Warn().Err(err).Msg("RSVP counts unavailable, ranking trending events without them")
		counts = map[string]int{}
	}

	trending := make([]models.TrendingEvent, len(upcoming))
	for i, e := range upcoming {
		trending[i] = models.TrendingEvent{Event: e, RSVPCount: counts[e.ID]}
	}
	sort.SliceStable(trending, func(i, j int) bool {
		if trending[i].RSVPCount != trending[j].RSVPCount {
			return trending[i].RSVPCount > trending[j].RSVPCount
		}
		return trending[i].EventDate.Before(trending[j].EventDate)
	})

	if len(trending) > limit {
		trending = trending[:limit]
	}
	return trending, nil
}

// GetEventByID retrieves an event by ID
func (s *EventService) GetEventByID(ctx context.Context, id string) (*models.Event, error) {
	if !validID(id) {
		return nil, apperr.New(apperr.KindValidation, "Invalid event ID")
	}

	event, err := remember(ctx, s.cache, eventPath(id), "event", func() (*models.Event, error) {
		return s.events.GetByID(ctx, id)
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.Wrap(apperr.KindNotFound, "Event not found", err)
		}
		log.Error().Err(err).Str("event_id", id).Msg("Failed to fetch event")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to fetch event", err)
	}
	return event, nil
}

// authorizeOwner checks that identity created the event. A missing event and
// someone else's event look the same to the caller.
func (s *EventService) authorizeOwner(ctx context.Context, identity *models.Identity, id string) error {
	owner, err := s.events.GetOwner(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errUnauthorized
		}
		log.Error().Err(err).Str("event_id", id).Msg("Failed to fetch event owner")
		return apperr.Wrap(apperr.KindInternal, "Failed to fetch event", err)
	}
	if owner != identity.ID {
		log.Warn().Str("event_id", id).Str("user_id", identity.ID).Msg("Rejected change to event owned by another user")
		return errUnauthorized
	}
	return nil
}

// UpdateEvent rewrites an event owned by the signed-in user
func (s *EventService) UpdateEvent(ctx context.Context, identity *models.Identity, id string, input models.EventInput) (*models.Event, error) {
	if identity == nil {
		return nil, apperr.New(apperr.KindAuthentication, "You must be signed in to update an event")
	}
	if !validID(id) {
		return nil, apperr.New(apperr.KindValidation, "Invalid event ID")
	}
	if err := s.authorizeOwner(ctx, identity, id); err != nil {
		return nil, err
	}
	input.Normalize()
	if err := input.Validate(); err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, err.Error(), err)
	}

	event := &models.Event{
		ID:          id,
		Title:       input.Title,
		Description: input.Description,
		SportType:   input.SportType,
		EventDate:   input.EventDate,
		Venues:      input.Venues,
		CreatedBy:   identity.ID,
	}
	if err := s.events.Update(ctx, event); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, errUnauthorized
		}
		log.Error().Err(err).Str("event_id", id).Msg("Failed to update event")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to update event", err)
	}

	s.cache.Revalidate(ctx, "/events", eventPath(id), "/")
	s.publish(ctx, broker.EventUpdated, id, identity.ID, event)
	return event, nil
}

// DeleteEvent removes an event owned by the signed-in user
func (s *EventService) DeleteEvent(ctx context.Context, identity *models.Identity, id string) error {
	if identity == nil {
		return apperr.New(apperr.KindAuthentication, "You must be signed in to delete an event")
	}
	if !validID(id) {
		return apperr.New(apperr.KindValidation, "Invalid event ID")
	}
	if err := s.authorizeOwner(ctx, identity, id); err != nil {
		return err
	}

	if err := s.events.Delete(ctx, id, identity.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return errUnauthorized
		}
		log.Error().Err(err).Str("event_id", id).Msg("Failed to delete event")
		return apperr.Wrap(apperr.KindInternal, "Failed to delete event", err)
	}

	s.cache.Revalidate(ctx, "/events", eventPath(id), "/")
	s.publish(ctx, broker.EventDeleted, id, identity.ID, nil)
	return nil
}

func (s *EventService) publish(ctx context.Context, kind, eventID, userID string, data any) {
	_ = s.publisher.Publish(ctx, broker.Message{
		Type:       kind,
		EventID:    eventID,
		UserID:     userID,
		OccurredAt: s.now().UTC(),
		Data:       data,
	})
}
