package coding

import "errors"

var (
	// ErrNotFound is returned when a code, codebook or selection id is absent.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateID is returned when an insert collides with an existing id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrInvalidOperation is returned when a mutation would break an invariant,
	// e.g. a reparent that creates a cycle.
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrConstraintViolation is returned when the persistence layer rejects a write.
	ErrConstraintViolation = errors.New("constraint violation")
)
