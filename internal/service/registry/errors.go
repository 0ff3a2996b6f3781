package registry

import "errors"

var (
	// ErrNotFound indicates a missing critical label or notification.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate indicates a uniqueness violation (label name, or the
	// notification (label, change type, week, year) key).
	ErrDuplicate = errors.New("already exists")
)
