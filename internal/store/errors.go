package store

import "errors"

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert or update collides with a
// uniqueness constraint (username, email, or registrant name per event).
var ErrDuplicate = errors.New("duplicate record")
