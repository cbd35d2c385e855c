package repo

import "errors"

var (
	// ErrNotFound indicates missing entities in the explore repositories.
	ErrNotFound = errors.New("explore: not found")
	// ErrConflict indicates a concurrent update won the race.
	ErrConflict = errors.New("explore: conflict")
)
