package repository

import (
	"errors"

	"github.com/lib/pq"
)

var (
	// ErrStaleVersion is returned when an optimistic update lost a race.
	ErrStaleVersion = errors.New("stale record version")
	// ErrDuplicate is returned when a unique constraint rejects a write.
	ErrDuplicate = errors.New("duplicate record")
)

// DuplicateError names the unique constraint that rejected a write.
type DuplicateError struct {
	Constraint string
	Err        error
}

func (e *DuplicateError) Error() string {
	return "duplicate record (" + e.Constraint + ")"
}

func (e *DuplicateError) Unwrap() error { return e.Err }

// Is lets callers test errors.Is(err, ErrDuplicate).
func (e *DuplicateError) Is(target error) bool { return target == ErrDuplicate }

const pqUniqueViolation = "23505"

// mapUniqueViolation converts a Postgres unique violation into a DuplicateError.
func mapUniqueViolation(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == pqUniqueViolation {
		return &DuplicateError{Constraint: pqErr.Constraint, Err: err}
	}
	return err
}
