package transaction

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// Constraint errors mapped from driver errors. They are never retried.
var (
	// ErrUniqueViolation is returned when a unique constraint is violated
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrForeignKeyViolation is returned when a foreign key constraint is violated
	ErrForeignKeyViolation = errors.New("foreign key constraint violation")

	// ErrCheckViolation is returned when a check constraint is violated
	ErrCheckViolation = errors.New("check constraint violation")

	// ErrNotNullViolation is returned when a NOT NULL constraint is violated
	ErrNotNullViolation = errors.New("not null constraint violation")
)

// ConvertDBError converts PostgreSQL constraint errors into the sentinel
// errors above. Other errors are returned unchanged.
func ConvertDBError(err error) error {
	if err == nil {
		return nil
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%w: %s: %w", ErrUniqueViolation, pgErr.Detail, err)
		case "23503": // foreign_key_violation
			return fmt.Errorf("%w: %s: %w", ErrForeignKeyViolation, pgErr.Detail, err)
		case "23514": // check_violation
			return fmt.Errorf("%w: %s: %w", ErrCheckViolation, pgErr.Detail, err)
		case "23502": // not_null_violation
			return fmt.Errorf("%w: column %s: %w", ErrNotNullViolation, pgErr.ColumnName, err)
		}
	}

	return err
}

// IsConstraintViolation reports whether err is a mapped constraint violation
func IsConstraintViolation(err error) bool {
	err = ConvertDBError(err)
	return errors.Is(err, ErrUniqueViolation) ||
		errors.Is(err, ErrForeignKeyViolation) ||
		errors.Is(err, ErrCheckViolation) ||
		errors.Is(err, ErrNotNullViolation)
}

// permanentError marks an error that must not be retried
type permanentError struct {
	err error
}

func (p *permanentError) Error() string { return p.err.Error() }
func (p *permanentError) Unwrap() error { return p.err }

// Permanent wraps err so retry loops give up immediately
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}
