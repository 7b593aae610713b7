package types

import "time"

// CheckinStatus is the attendance state of a registrant.
type CheckinStatus string

const (
	CheckinPending CheckinStatus = "pending"
	CheckinPresent CheckinStatus = "present"
	CheckinAbsent  CheckinStatus = "absent"
)

// Valid reports whether the status is one of the known values.
func (s CheckinStatus) Valid() bool {
	return s == CheckinPending || s == CheckinPresent || s == CheckinAbsent
}

// Registrant is one participant's entry on an event's name list.
// Names are unique per event under case-insensitive comparison.
type Registrant struct {
	ID      int    `json:"id" db:"id"`
	EventID int    `json:"event_id" db:"event_id"`
	Name    string `json:"name" db:"name"`
	Email   string `json:"email,omitempty" db:"email"`
	Phone   string `json:"phone,omitempty" db:"phone"`

	CheckinStatus CheckinStatus `json:"checkin_status" db:"checkin_status"`

	// CheckinTime and CheckedBy are set when the status leaves pending.
	CheckinTime *time.Time `json:"checkin_time,omitempty" db:"checkin_time"`
	CheckedBy   *int       `json:"checked_by,omitempty" db:"checked_by"`

	// CheckedByName is the checking staff member's name, joined in on reads.
	CheckedByName string `json:"checked_by_name,omitempty" db:"-"`

	Notes string `json:"notes,omitempty" db:"notes"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
