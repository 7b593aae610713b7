package types

import "time"

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventActive    EventStatus = "active"
	EventCancelled EventStatus = "cancelled"
	EventFinished  EventStatus = "finished"
)

// Valid reports whether the status is one of the known values.
func (s EventStatus) Valid() bool {
	return s == EventActive || s == EventCancelled || s == EventFinished
}

// Event is a single occasion people register against. Only active events
// accept public submissions.
type Event struct {
	ID          int         `json:"id" db:"id"`
	Name        string      `json:"name" db:"name"`
	Description string      `json:"description,omitempty" db:"description"`
	Location    string      `json:"location,omitempty" db:"location"`

	// EventDate is the calendar date of the event; EventTime is the
	// optional "HH:MM" start time shown on the public page.
	EventDate time.Time `json:"event_date" db:"event_date"`
	EventTime string    `json:"event_time,omitempty" db:"event_time"`

	// Capacity, when positive, is an upper bound on registrants.
	// Zero means unlimited.
	Capacity int `json:"capacity,omitempty" db:"capacity"`

	Status EventStatus `json:"status" db:"status"`

	// CreatedBy references the staff account that created the event.
	CreatedBy int `json:"created_by" db:"created_by"`

	// CreatedByName is the creator's full name, joined in on reads.
	CreatedByName string `json:"created_by_name,omitempty" db:"-"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// EventStats summarizes check-in progress for one event.
type EventStats struct {
	Name               string `json:"name"`
	Capacity           int    `json:"capacity,omitempty"`
	TotalRegistrations int    `json:"total_registrations"`
	PresentCount       int    `json:"present_count"`
	AbsentCount        int    `json:"absent_count"`
	PendingCount       int    `json:"pending_count"`
}
