package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/listafacil/apiserver/types"
)

// EventRepository handles persistence for events.
type EventRepository struct {
	db *sql.DB
}

func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `
	e.id, e.name, e.description, e.location, e.event_date, e.event_time,
	e.capacity, e.status, e.created_by, u.full_name, e.created_at, e.updated_at`

// List returns all events, newest date first, with the creator's name.
func (r *EventRepository) List(ctx context.Context) ([]types.Event, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM events e
		JOIN users u ON u.id = e.created_by
		ORDER BY e.event_date DESC, e.created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListActive returns active events dated today or later, soonest first.
// This feeds the public registration page.
func (r *EventRepository) ListActive(ctx context.Context) ([]types.Event, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM events e
		JOIN users u ON u.id = e.created_by
		WHERE e.status = 'active' AND e.event_date >= CURRENT_DATE
		ORDER BY e.event_date ASC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func (r *EventRepository) GetByID(ctx context.Context, id int) (types.Event, error) {
	const query = `
		SELECT ` + eventColumns + `
		FROM events e
		JOIN users u ON u.id = e.created_by
		WHERE e.id = $1`
	var event types.Event
	if err := scanEvent(r.db.QueryRowContext(ctx, query, id), &event); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Event{}, ErrNotFound
		}
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Create(ctx context.Context, event types.Event) (types.Event, error) {
	now := time.Now()
	event.CreatedAt = now
	event.UpdatedAt = now

	const query = `
		INSERT INTO events (name, description, location, event_date, event_time, capacity, status, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		event.Name,
		event.Description,
		event.Location,
		event.EventDate,
		event.EventTime,
		event.Capacity,
		event.Status,
		event.CreatedBy,
		event.CreatedAt,
		event.UpdatedAt,
	).Scan(&event.ID); err != nil {
		return types.Event{}, err
	}
	return event, nil
}

func (r *EventRepository) Update(ctx context.Context, event types.Event) (types.Event, error) {
	event.UpdatedAt = time.Now()

	const query = `
		UPDATE events
		SET name = $1,
			description = $2,
			location = $3,
			event_date = $4,
			event_time = $5,
			capacity = $6,
			status = $7,
			updated_at = $8
		WHERE id = $9`
	result, err := r.db.ExecContext(
		ctx,
		query,
		event.Name,
		event.Description,
		event.Location,
		event.EventDate,
		event.EventTime,
		event.Capacity,
		event.Status,
		event.UpdatedAt,
		event.ID,
	)
	if err != nil {
		return types.Event{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Event{}, err
	}
	if affected == 0 {
		return types.Event{}, ErrNotFound
	}
	return event, nil
}

func (r *EventRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM events WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats aggregates check-in counts for one event.
func (r *EventRepository) Stats(ctx context.Context, id int) (types.EventStats, error) {
	event, err := r.GetByID(ctx, id)
	if err != nil {
		return types.EventStats{}, err
	}

	const query = `
		SELECT
			COUNT(1),
			COUNT(1) FILTER (WHERE checkin_status = 'present'),
			COUNT(1) FILTER (WHERE checkin_status = 'absent'),
			COUNT(1) FILTER (WHERE checkin_status = 'pending')
		FROM registrants
		WHERE event_id = $1`
	stats := types.EventStats{Name: event.Name, Capacity: event.Capacity}
	if err := r.db.QueryRowContext(ctx, query, id).Scan(
		&stats.TotalRegistrations,
		&stats.PresentCount,
		&stats.AbsentCount,
		&stats.PendingCount,
	); err != nil {
		return types.EventStats{}, err
	}
	return stats, nil
}

func scanEvents(rows *sql.Rows) ([]types.Event, error) {
	events := make([]types.Event, 0)
	for rows.Next() {
		var event types.Event
		if err := scanEvent(rows, &event); err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner, event *types.Event) error {
	return row.Scan(
		&event.ID,
		&event.Name,
		&event.Description,
		&event.Location,
		&event.EventDate,
		&event.EventTime,
		&event.Capacity,
		&event.Status,
		&event.CreatedBy,
		&event.CreatedByName,
		&event.CreatedAt,
		&event.UpdatedAt,
	)
}
