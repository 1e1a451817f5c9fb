package metadata

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidEntity is returned when a type does not embed the Entity marker
	ErrInvalidEntity = errors.New("type is not an entity")

	// ErrMissingTable is returned when the Entity marker carries no table name
	ErrMissingTable = errors.New("entity has no table name")

	// ErrMissingIdentifier is returned when no field is marked as identifier
	ErrMissingIdentifier = errors.New("entity has no identifier column")

	// ErrDuplicateIdentifier is returned when more than one field is marked as identifier
	ErrDuplicateIdentifier = errors.New("entity declares more than one identifier column")

	// ErrInvalidColumn is returned when a field's column metadata is contradictory
	ErrInvalidColumn = errors.New("invalid column metadata")

	// ErrInvalidVersion is returned when a version field is not an integer
	ErrInvalidVersion = errors.New("version column must be an integer field")

	// ErrUnknownColumn is returned when a column or field lookup fails
	ErrUnknownColumn = errors.New("unknown column")

	// ErrUnknownCustomColumn is returned when a custom field id has no mapped column
	ErrUnknownCustomColumn = errors.New("unknown custom column")
)

// Error wraps a metadata failure with the entity it concerns.
// Metadata errors are never retried.
type Error struct {
	Entity string
	Field  string
	Err    error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("metadata %s.%s: %v", e.Entity, e.Field, e.Err)
	}
	return fmt.Sprintf("metadata %s: %v", e.Entity, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(entity, field string, err error) *Error {
	return &Error{Entity: entity, Field: field, Err: err}
}

// IsMetadataError reports whether err originated from metadata resolution
func IsMetadataError(err error) bool {
	var mErr *Error
	return errors.As(err, &mErr)
}
