package transaction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/statement"
)

func TestIsDeadlockError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"PostgreSQL deadlock code", errors.New("pq: deadlock detected (SQLSTATE 40P01)"), true},
		{"deadlock found message", errors.New("ERROR: deadlock found when trying to get lock"), true},
		{"sql server victim", errors.New("Transaction (Process ID 52) was deadlocked and chosen as the deadlock victim"), true},
		{"lock wait timeout", errors.New("lock wait timeout exceeded; try restarting transaction"), true},
		{"sqlite busy", errors.New("database is locked"), true},
		{"non-deadlock error", errors.New("some other database error"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isDeadlockError(tt.err))
		})
	}
}

func TestIsRetryableError(t *testing.T) {
	assert.True(t, IsRetryableError(errors.New("ERROR: could not serialize access (SQLSTATE 40001)")))
	assert.True(t, IsRetryableError(errors.New("deadlock detected")))
	assert.False(t, IsRetryableError(errors.New("syntax error")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"generic failure", errors.New("connection reset by peer"), true},
		{"statement failure", &statement.Error{SQL: "SELECT 1", Err: errors.New("timeout")}, true},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), false},
		{"deadline", context.DeadlineExceeded, false},
		{"permanent", Permanent(errors.New("bad input")), false},
		{"metadata", &metadata.Error{Entity: "Product", Err: metadata.ErrMissingTable}, false},
		{"dirty", &statement.Error{SQL: "X", Err: statement.ErrDirtyStatement}, false},
		{"unique violation", &pgconn.PgError{Code: "23505", Detail: "Key (id)=(1) already exists."}, false},
		{"other pg error", &pgconn.PgError{Code: "08006"}, true},
		{"pg syntax error", &statement.Error{SQL: "SELECT @Id", Err: &pgconn.PgError{Code: "42601"}}, false},
		{"mysql syntax error", &mysql.MySQLError{Number: 1064, Message: "You have an error in your SQL syntax"}, false},
		{"named parameters refused", &statement.Error{SQL: "SELECT @Id", Err: errors.New("mysql: driver does not support the use of Named Parameters")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestTransientOnly(t *testing.T) {
	assert.True(t, TransientOnly(errors.New("deadlock detected")))
	assert.False(t, TransientOnly(errors.New("connection reset by peer")))
	assert.False(t, TransientOnly(Permanent(errors.New("deadlock detected"))))
}

// failing returns a function that fails k times before succeeding
func failing(k int, calls *int) func(context.Context, int) error {
	return func(context.Context, int) error {
		*calls++
		if *calls <= k {
			return fmt.Errorf("attempt %d failed", *calls)
		}
		return nil
	}
}

func TestRetry_Bound(t *testing.T) {
	const maxRetries = 3

	for k := 0; k <= maxRetries+1; k++ {
		t.Run(fmt.Sprintf("fails %d times", k), func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), &RetryConfig{MaxRetries: maxRetries}, failing(k, &calls))

			if k <= maxRetries {
				require.NoError(t, err)
				assert.Equal(t, k+1, calls)
				return
			}
			var retryErr *RetryError
			require.True(t, errors.As(err, &retryErr))
			assert.Equal(t, maxRetries+1, retryErr.Attempts)
			assert.Equal(t, maxRetries+1, calls)
		})
	}
}

func TestRetry_StopsOnPermanentError(t *testing.T) {
	calls := 0
	want := Permanent(errors.New("invalid identifier"))
	err := Retry(context.Background(), DefaultRetryConfig(), func(context.Context, int) error {
		calls++
		return want
	})

	assert.Equal(t, want, err)
	assert.Equal(t, 1, calls)
}

func TestRetry_OnRetryAndBackoff(t *testing.T) {
	var retried []int
	config := &RetryConfig{
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  2 * time.Millisecond,
		OnRetry: func(attempt int, err error) {
			retried = append(retried, attempt)
		},
	}

	calls := 0
	err := Retry(context.Background(), config, failing(2, &calls))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, retried)

	assert.Equal(t, time.Millisecond, config.backoff(0))
	assert.Equal(t, 2*time.Millisecond, config.backoff(1))
	assert.Equal(t, 2*time.Millisecond, config.backoff(5))

	config.Jitter = true
	d := config.backoff(1)
	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.LessOrEqual(t, d, 2*time.Millisecond)
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	config := &RetryConfig{MaxRetries: 5, BaseBackoff: time.Hour}

	errCh := make(chan error, 1)
	go func() {
		errCh <- Retry(ctx, config, failing(10, &calls))
	}()
	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		require.Error(t, err)
		assert.Contains(t, err.Error(), "retry cancelled")
	case <-time.After(time.Second):
		t.Fatal("retry did not observe cancellation")
	}
	assert.Equal(t, 1, calls)
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))

	err := ConvertDBError(&pgconn.PgError{Code: "23503", Detail: "missing parent"})
	assert.ErrorIs(t, err, ErrForeignKeyViolation)

	err = ConvertDBError(&pgconn.PgError{Code: "23502", ColumnName: "Name"})
	assert.ErrorIs(t, err, ErrNotNullViolation)
	assert.Contains(t, err.Error(), "Name")

	plain := errors.New("boom")
	assert.Equal(t, plain, ConvertDBError(plain))
	assert.True(t, IsConstraintViolation(&pgconn.PgError{Code: "23514"}))
}
