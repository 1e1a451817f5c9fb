package transaction

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/statement"
)

const (
	// DefaultMaxRetries is the default number of retries after the first attempt
	DefaultMaxRetries = 3
	// DefaultMaxBackoff caps exponential backoff
	DefaultMaxBackoff = 5 * time.Second
)

// RetryConfig configures the bounded retry loop. An operation runs at most
// MaxRetries+1 times.
type RetryConfig struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Jitter      bool

	// Retryable classifies failures; nil means IsRetryable
	Retryable func(error) bool
	// OnRetry is called before each retry with the failed attempt number
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig retries any database failure three times without delay
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries: DefaultMaxRetries,
		MaxBackoff: DefaultMaxBackoff,
		Retryable:  IsRetryable,
	}
}

// RetryError is returned once every attempt has failed
type RetryError struct {
	Attempts int
	Err      error
}

func (e *RetryError) Error() string {
	return fmt.Sprintf("failed after %d attempts: %v", e.Attempts, e.Err)
}

func (e *RetryError) Unwrap() error {
	return e.Err
}

// Retry runs fn until it succeeds, fails with a non-retryable error, the
// context ends or MaxRetries retries have been spent.
func Retry(ctx context.Context, config *RetryConfig, fn func(ctx context.Context, attempt int) error) error {
	if config == nil {
		config = DefaultRetryConfig()
	}
	retryable := config.Retryable
	if retryable == nil {
		retryable = IsRetryable
	}

	var lastErr error
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			if lastErr != nil {
				return fmt.Errorf("retry cancelled after %d attempts: %w", attempt, lastErr)
			}
			return ctx.Err()
		}

		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		if !retryable(err) {
			return err
		}
		lastErr = err

		if attempt == config.MaxRetries {
			break
		}
		if config.OnRetry != nil {
			config.OnRetry(attempt+1, err)
		}

		backoff := config.backoff(attempt)
		if backoff <= 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled after %d attempts: %w", attempt+1, lastErr)
		case <-time.After(backoff):
		}
	}

	return &RetryError{Attempts: config.MaxRetries + 1, Err: lastErr}
}

// backoff computes BaseBackoff * 2^attempt, capped and optionally jittered
func (c *RetryConfig) backoff(attempt int) time.Duration {
	if c.BaseBackoff <= 0 {
		return 0
	}
	d := c.BaseBackoff * time.Duration(1<<uint(min(attempt, 20)))
	if c.MaxBackoff > 0 && d > c.MaxBackoff {
		d = c.MaxBackoff
	}
	if c.Jitter {
		d = d/2 + time.Duration(rand.Int64N(int64(d/2)+1))
	}
	return d
}

// IsRetryable is the default classifier. Every database failure is retried
// except cancellation, metadata and programming errors, constraint
// violations and errors marked Permanent.
func IsRetryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case IsPermanent(err):
		return false
	case metadata.IsMetadataError(err):
		return false
	case errors.Is(err, statement.ErrDirtyStatement):
		return false
	case IsConstraintViolation(err):
		return false
	case isStatementError(err):
		return false
	}
	return true
}

// isStatementError reports failures no retry can fix: named parameters the
// driver refuses and SQL the server rejects as malformed
func isStatementError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && strings.HasPrefix(pgErr.Code, "42") {
		return true
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1064 {
		return true
	}
	return strings.Contains(err.Error(), "does not support the use of Named Parameters")
}

// TransientOnly retries deadlocks and serialization failures only
func TransientOnly(err error) bool {
	return IsRetryable(err) && IsRetryableError(err)
}

// isDeadlockError checks if an error is a deadlock error
// Detects PostgreSQL deadlock error codes and messages
func isDeadlockError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// PostgreSQL deadlock detection error code: 40P01
	if strings.Contains(errStr, "40P01") {
		return true
	}

	// Common deadlock error messages
	deadlockMessages := []string{
		"deadlock detected",
		"deadlock found",
		"deadlock victim",
		"lock wait timeout exceeded",
		"could not serialize access",
		"database is locked",
	}

	for _, msg := range deadlockMessages {
		if strings.Contains(strings.ToLower(errStr), msg) {
			return true
		}
	}

	return false
}

// isSerializationError checks if an error is a serialization failure
func isSerializationError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()

	// PostgreSQL serialization failure code: 40001
	if strings.Contains(errStr, "40001") {
		return true
	}

	return strings.Contains(strings.ToLower(errStr), "could not serialize access")
}

// IsRetryableError checks if an error is a deadlock or serialization failure
func IsRetryableError(err error) bool {
	return isDeadlockError(err) || isSerializationError(err)
}
