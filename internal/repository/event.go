package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sport-events-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const eventColumns = `id, title, description, sport_type, event_date, venues, created_by, created_at, updated_at`

// EventRepository handles database operations for events
type EventRepository struct {
	db *pgxpool.Pool
}

// NewEventRepository creates a new event repository
func NewEventRepository(db *pgxpool.Pool) *EventRepository {
	return &EventRepository{db: db}
}

func scanEvent(row pgx.Row) (*models.Event, error) {
	var e models.Event
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.SportType, &e.EventDate,
		&e.Venues, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func collectEvents(rows pgx.Rows) ([]models.Event, error) {
	defer rows.Close()
	events := []models.Event{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, *e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}

// Create inserts a new event. ID and CreatedBy must be set by the caller.
func (r *EventRepository) Create(ctx context.Context, event *models.Event) error {
	query := `
		INSERT INTO events (id, title, description, sport_type, event_date, venues, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		event.ID, event.Title, event.Description, event.SportType,
		event.EventDate, event.Venues, event.CreatedBy,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create event: %w", err)
	}
	return nil
}

// List returns events matching filters, soonest first
func (r *EventRepository) List(ctx context.Context, filters models.EventFilters) ([]models.Event, error) {
	var (
		conds []string
		args  []any
	)
	if filters.SportType != "" {
		args = append(args, filters.SportType)
		conds = append(conds, fmt.Sprintf("sport_type = $%d", len(args)))
	}
	if filters.Title != "" {
		args = append(args, "%"+escapeLike(filters.Title)+"%")
		conds = append(conds, fmt.Sprintf(`title ILIKE $%d ESCAPE '\'`, len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY event_date ASC`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return collectEvents(rows)
}

// ListUpcoming returns events dated at or after from, soonest first
func (r *EventRepository) ListUpcoming(ctx context.Context, from time.Time) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE event_date >= $1 ORDER BY event_date ASC`
	rows, err := r.db.Query(ctx, query, from)
	if err != nil {
		return nil, fmt.Errorf("failed to list upcoming events: %w", err)
	}
	return collectEvents(rows)
}

// GetByID retrieves an event by ID
func (r *EventRepository) GetByID(ctx context.Context, id string) (*models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`
	e, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// GetOwner returns the creator of an event
func (r *EventRepository) GetOwner(ctx context.Context, id string) (string, error) {
	var owner string
	err := r.db.QueryRow(ctx, `SELECT created_by FROM events WHERE id = $1`, id).Scan(&owner)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", fmt.Errorf("event %s: %w", id, ErrNotFound)
		}
		return "", fmt.Errorf("failed to get event owner: %w", err)
	}
	return owner, nil
}

// Update rewrites the editable fields of an event owned by event.CreatedBy
func (r *EventRepository) Update(ctx context.Context, event *models.Event) error {
	query := `
		UPDATE events
		SET title = $3, description = $4, sport_type = $5, event_date = $6, venues = $7, updated_at = NOW()
		WHERE id = $1 AND created_by = $2
		RETURNING created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		event.ID, event.CreatedBy, event.Title, event.Description,
		event.SportType, event.EventDate, event.Venues,
	).Scan(&event.CreatedAt, &event.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("event %s: %w", event.ID, ErrNotFound)
		}
		return fmt.Errorf("failed to update event: %w", err)
	}
	return nil
}

// Delete removes an event owned by ownerID
func (r *EventRepository) Delete(ctx context.Context, id, ownerID string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM events WHERE id = $1 AND created_by = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("failed to delete event: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return nil
}

// escapeLike escapes the ILIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
