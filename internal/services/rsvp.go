package services

import (
	"context"
	"errors"
	"time"

	"sport-events-backend/internal/apperr"
	"sport-events-backend/internal/broker"
	"sport-events-backend/internal/models"
	"sport-events-backend/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// RSVPService handles RSVP-related business logic
type RSVPService struct {
	rsvps     RSVPStore
	cache     ViewCache
	publisher Publisher
	now       func() time.Time
}

// NewRSVPService creates a new RSVP service. cache and publisher may be nil.
func NewRSVPService(rsvps RSVPStore, cache ViewCache, publisher Publisher) *RSVPService {
	if cache == nil {
		cache = noCache{}
	}
	if publisher == nil {
		publisher = noPublisher{}
	}
	return &RSVPService{rsvps: rsvps, cache: cache, publisher: publisher, now: time.Now}
}

// AddRSVP records that the signed-in user attends an event. The store's
// uniqueness constraint rejects a second RSVP.
func (s *RSVPService) AddRSVP(ctx context.Context, identity *models.Identity, eventID string) error {
	if identity == nil {
		return apperr.New(apperr.KindAuthentication, "You must be signed in to RSVP")
	}
	if !validID(eventID) {
		return apperr.New(apperr.KindValidation, "Invalid event ID")
	}

	rsvp := &models.RSVP{ID: uuid.NewString(), EventID: eventID, UserID: identity.ID}
	if err := s.rsvps.Create(ctx, rsvp); err != nil {
		switch {
		case errors.Is(err, repository.ErrConflict):
			return apperr.Wrap(apperr.KindConflict, "You have already RSVP'd for this event", err)
		case errors.Is(err, repository.ErrNotFound):
			return apperr.Wrap(apperr.KindNotFound, "Event not found", err)
		}
		log.Error().Err(err).Str("event_id", eventID).Str("user_id", identity.ID).Msg("Failed to add RSVP")
		return apperr.Wrap(apperr.KindInternal, "Failed to RSVP", err)
	}

	s.revalidate(ctx, eventID)
	s.publish(ctx, broker.RSVPAdded, eventID, identity.ID)
	return nil
}

// RemoveRSVP withdraws the signed-in user's RSVP. Removing a missing RSVP
// succeeds.
func (s *RSVPService) RemoveRSVP(ctx context.Context, identity *models.Identity, eventID string) error {
	if identity == nil {
		return apperr.New(apperr.KindAuthentication, "You must be signed in")
	}
	if !validID(eventID) {
		return apperr.New(apperr.KindValidation, "Invalid event ID")
	}

	if err := s.rsvps.Delete(ctx, eventID, identity.ID); err != nil {
		log.Error().Err(err).Str("event_id", eventID).Str("user_id", identity.ID).Msg("Failed to remove RSVP")
		return apperr.Wrap(apperr.KindInternal, "Failed to cancel RSVP", err)
	}

	s.revalidate(ctx, eventID)
	s.publish(ctx, broker.RSVPRemoved, eventID, identity.ID)
	return nil
}

// GetRSVPCount returns the public RSVP count of an event
func (s *RSVPService) GetRSVPCount(ctx context.Context, eventID string) (int, error) {
	if !validID(eventID) {
		return 0, apperr.New(apperr.KindValidation, "Invalid event ID")
	}
	count, err := remember(ctx, s.cache, eventPath(eventID), "rsvp-count", func() (int, error) {
		return s.rsvps.Count(ctx, eventID)
	})
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("Failed to count RSVPs")
		return 0, apperr.Wrap(apperr.KindInternal, "Failed to fetch RSVP count", err)
	}
	return count, nil
}

// GetUserRSVP reports whether the signed-in user has RSVP'd. Anonymous
// callers get false.
func (s *RSVPService) GetUserRSVP(ctx context.Context, identity *models.Identity, eventID string) (bool, error) {
	if identity == nil {
		return false, nil
	}
	if !validID(eventID) {
		return false, apperr.New(apperr.KindValidation, "Invalid event ID")
	}
	ok, err := s.rsvps.Exists(ctx, eventID, identity.ID)
	if err != nil {
		log.Error().Err(err).Str("event_id", eventID).Msg("Failed to check RSVP")
		return false, apperr.Wrap(apperr.KindInternal, "Failed to fetch RSVP status", err)
	}
	return ok, nil
}

// GetRSVPsForEvents returns the RSVP summary of every event in eventIDs.
// Counts and the user's flags are fetched concurrently; the flags are
// skipped when userID is empty.
func (s *RSVPService) GetRSVPsForEvents(ctx context.Context, eventIDs []string, userID string) (map[string]models.RSVPSummary, error) {
	ids := make([]string, 0, len(eventIDs))
	for _, id := range eventIDs {
		if validID(id) {
			ids = append(ids, id)
		}
	}
	result := make(map[string]models.RSVPSummary, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	var (
		counts map[string]int
		flags  map[string]bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.rsvps.CountByEvents(gctx, ids)
		return err
	})
	if userID != "" {
		g.Go(func() error {
			var err error
			flags, err = s.rsvps.EventsWithUserRSVP(gctx, ids, userID)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Int("events", len(ids)).Msg("Failed to fetch RSVPs")
		return nil, apperr.Wrap(apperr.KindInternal, "Failed to fetch RSVPs", err)
	}

	for _, id := range ids {
		result[id] = models.RSVPSummary{Count: counts[id], HasRSVP: flags[id]}
	}
	return result, nil
}

func (s *RSVPService) revalidate(ctx context.Context, eventID string) {
	s.cache.Revalidate(ctx, eventPath(eventID), "/events", "/")
}

func (s *RSVPService) publish(ctx context.Context, kind, eventID, userID string) {
	_ = s.publisher.Publish(ctx, broker.Message{
		Type:       kind,
		EventID:    eventID,
		UserID:     userID,
		OccurredAt: s.now().UTC(),
	})
}
