package manager

import (
	"errors"
	"fmt"
)

var (
	// ErrNilEntity is returned when an operation receives a nil entity
	ErrNilEntity = errors.New("entity is nil")

	// ErrInvalidIdentifier is returned when an entity needs an assigned
	// identifier and does not have one
	ErrInvalidIdentifier = errors.New("entity has no valid identifier")

	// ErrOptimisticLockFailed is returned when a versioned update matched no row
	ErrOptimisticLockFailed = errors.New("optimistic lock failed: row was changed or removed")

	// ErrNotSingleResult is returned by the typed single-row helpers when a
	// query returns more than one entity
	ErrNotSingleResult = errors.New("query returned more than one result")
)

// Error is a contract violation detected by the manager before or after
// talking to the database
type Error struct {
	Op     string
	Entity string
	Err    error
}

func (e *Error) Error() string {
	if e.Entity == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Entity, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
