package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/listafacil/apiserver/types"
)

// RegistrantRepository handles persistence for name-list entries.
type RegistrantRepository struct {
	db *sql.DB
}

func NewRegistrantRepository(db *sql.DB) *RegistrantRepository {
	return &RegistrantRepository{db: db}
}

const registrantColumns = `
	r.id, r.event_id, r.name, r.email, r.phone, r.checkin_status,
	r.checkin_time, r.checked_by, COALESCE(u.full_name, ''), r.notes,
	r.created_at, r.updated_at`

func (r *RegistrantRepository) GetByID(ctx context.Context, id int) (types.Registrant, error) {
	const query = `
		SELECT ` + registrantColumns + `
		FROM registrants r
		LEFT JOIN users u ON u.id = r.checked_by
		WHERE r.id = $1`
	var reg types.Registrant
	if err := scanRegistrant(r.db.QueryRowContext(ctx, query, id), &reg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Registrant{}, ErrNotFound
		}
		return types.Registrant{}, err
	}
	return reg, nil
}

// ListByEvent returns an event's registrants ordered by name, optionally
// filtered by check-in status and a name/email substring.
func (r *RegistrantRepository) ListByEvent(ctx context.Context, eventID int, status types.CheckinStatus, search string) ([]types.Registrant, error) {
	query := `
		SELECT ` + registrantColumns + `
		FROM registrants r
		LEFT JOIN users u ON u.id = r.checked_by
		WHERE r.event_id = $1`
	args := []any{eventID}

	if status != "" {
		args = append(args, status)
		query += ` AND r.checkin_status = $2`
	}
	if search != "" {
		args = append(args, "%"+search+"%")
		if status != "" {
			query += ` AND (r.name ILIKE $3 OR r.email ILIKE $3)`
		} else {
			query += ` AND (r.name ILIKE $2 OR r.email ILIKE $2)`
		}
	}
	query += ` ORDER BY r.name ASC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrants(rows)
}

// Search finds up to limit registrants whose name contains the given
// fragment, for the quick check-in lookup.
func (r *RegistrantRepository) Search(ctx context.Context, eventID int, name string, limit int) ([]types.Registrant, error) {
	const query = `
		SELECT ` + registrantColumns + `
		FROM registrants r
		LEFT JOIN users u ON u.id = r.checked_by
		WHERE r.event_id = $1 AND r.name ILIKE $2
		ORDER BY r.name ASC
		LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, eventID, "%"+name+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanRegistrants(rows)
}

// CountByEvent reports how many registrants an event has.
func (r *RegistrantRepository) CountByEvent(ctx context.Context, eventID int) (int, error) {
	const query = `SELECT COUNT(1) FROM registrants WHERE event_id = $1`
	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ExistsByName reports whether the event already has a registrant with the
// given name under case-insensitive comparison.
func (r *RegistrantRepository) ExistsByName(ctx context.Context, eventID int, name string) (bool, error) {
	const query = `
		SELECT COUNT(1)
		FROM registrants
		WHERE event_id = $1 AND lower(name) = lower($2)`
	var count int
	if err := r.db.QueryRowContext(ctx, query, eventID, name).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *RegistrantRepository) Create(ctx context.Context, reg types.Registrant) (types.Registrant, error) {
	now := time.Now()
	reg.CreatedAt = now
	reg.UpdatedAt = now
	if reg.CheckinStatus == "" {
		reg.CheckinStatus = types.CheckinPending
	}

	const query = `
		INSERT INTO registrants (event_id, name, email, phone, checkin_status, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		reg.EventID,
		reg.Name,
		reg.Email,
		reg.Phone,
		reg.CheckinStatus,
		reg.Notes,
		reg.CreatedAt,
		reg.UpdatedAt,
	).Scan(&reg.ID); err != nil {
		return types.Registrant{}, mapUniqueViolation(err)
	}
	return reg, nil
}

// UpdateCheckin changes a registrant's attendance state. CheckinTime and
// CheckedBy are set when the status leaves pending and cleared on revert.
func (r *RegistrantRepository) UpdateCheckin(ctx context.Context, id int, status types.CheckinStatus, notes *string, checkedBy int) (types.Registrant, error) {
	now := time.Now()

	var checkinTime *time.Time
	var checkedByID *int
	if status != types.CheckinPending {
		checkinTime = &now
		checkedByID = &checkedBy
	}

	const query = `
		UPDATE registrants
		SET checkin_status = $1,
			checkin_time = $2,
			checked_by = $3,
			notes = COALESCE($4, notes),
			updated_at = $5
		WHERE id = $6`
	result, err := r.db.ExecContext(ctx, query, status, checkinTime, checkedByID, notes, now, id)
	if err != nil {
		return types.Registrant{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Registrant{}, err
	}
	if affected == 0 {
		return types.Registrant{}, ErrNotFound
	}

	return r.GetByID(ctx, id)
}

func scanRegistrants(rows *sql.Rows) ([]types.Registrant, error) {
	registrants := make([]types.Registrant, 0)
	for rows.Next() {
		var reg types.Registrant
		if err := scanRegistrant(rows, &reg); err != nil {
			return nil, err
		}
		registrants = append(registrants, reg)
	}
	return registrants, rows.Err()
}

func scanRegistrant(row rowScanner, reg *types.Registrant) error {
	return row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.Name,
		&reg.Email,
		&reg.Phone,
		&reg.CheckinStatus,
		&reg.CheckinTime,
		&reg.CheckedBy,
		&reg.CheckedByName,
		&reg.Notes,
		&reg.CreatedAt,
		&reg.UpdatedAt,
	)
}
