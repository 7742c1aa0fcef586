package repository

import (
	"context"
	"fmt"

	"sport-events-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// RSVPRepository handles database operations for RSVPs
type RSVPRepository struct {
	db *pgxpool.Pool
}

// NewRSVPRepository creates a new RSVP repository
func NewRSVPRepository(db *pgxpool.Pool) *RSVPRepository {
	return &RSVPRepository{db: db}
}

// Create inserts an RSVP. A second RSVP by the same user for the same event
// returns ErrConflict; an unknown event returns ErrNotFound.
func (r *RSVPRepository) Create(ctx context.Context, rsvp *models.RSVP) error {
	query := `
		INSERT INTO rsvps (id, event_id, user_id)
		VALUES ($1, $2, $3)
		RETURNING created_at
	`
	err := r.db.QueryRow(ctx, query, rsvp.ID, rsvp.EventID, rsvp.UserID).Scan(&rsvp.CreatedAt)
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("rsvp for event %s: %w", rsvp.EventID, ErrConflict)
		case isForeignKeyViolation(err):
			return fmt.Errorf("event %s: %w", rsvp.EventID, ErrNotFound)
		}
		return fmt.Errorf("failed to create rsvp: %w", err)
	}
	return nil
}

// Delete removes the user's RSVP for an event, if any
func (r *RSVPRepository) Delete(ctx context.Context, eventID, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM rsvps WHERE event_id = $1 AND user_id = $2`, eventID, userID)
	if err != nil {
		return fmt.Errorf("failed to delete rsvp: %w", err)
	}
	return nil
}

// Count returns the number of RSVPs for an event
func (r *RSVPRepository) Count(ctx context.Context, eventID string) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM rsvps WHERE event_id = $1`, eventID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count rsvps: %w", err)
	}
	return count, nil
}

// Exists checks whether the user has RSVP'd for an event
func (r *RSVPRepository) Exists(ctx context.Context, eventID, userID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM rsvps WHERE event_id = $1 AND user_id = $2)`
	var exists bool
	if err := r.db.QueryRow(ctx, query, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check rsvp: %w", err)
	}
	return exists, nil
}

// CountByEvents returns RSVP counts for many events in one query. Events
// without RSVPs are absent from the map.
func (r *RSVPRepository) CountByEvents(ctx context.Context, eventIDs []string) (map[string]int, error) {
	counts := make(map[string]int, len(eventIDs))
	if len(eventIDs) == 0 {
		return counts, nil
	}

	query := `
		SELECT event_id, COUNT(*)
		FROM rsvps
		WHERE event_id = ANY($1)
		GROUP BY event_id
	`
	rows, err := r.db.Query(ctx, query, eventIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to count rsvps by event: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id    string
			count int
		)
		if err := rows.Scan(&id, &count); err != nil {
			return nil, fmt.Errorf("failed to scan rsvp count: %w", err)
		}
		counts[id] = count
	}
	return counts, rows.Err()
}

// EventsWithUserRSVP returns which of eventIDs the user has RSVP'd for
func (r *RSVPRepository) EventsWithUserRSVP(ctx context.Context, eventIDs []string, userID string) (map[string]bool, error) {
	flags := make(map[string]bool, len(eventIDs))
	if len(eventIDs) == 0 || userID == "" {
		return flags, nil
	}

	query := `SELECT event_id FROM rsvps WHERE event_id = ANY($1) AND user_id = $2`
	rows, err := r.db.Query(ctx, query, eventIDs, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user rsvps: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user rsvp: %w", err)
		}
		flags[id] = true
	}
	return flags, rows.Err()
}
