package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// WithTimeout executes a transaction that is rolled back if it does not
// complete within timeout.
func (m *Manager) WithTimeout(ctx context.Context, timeout time.Duration, fn func(tx *sql.Tx) error) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := m.WithTransaction(timeoutCtx, fn)
	if err != nil && errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%w: transaction exceeded %v: %w", ErrTransactionTimeout, timeout, err)
	}
	return err
}

// WithRetry executes fn in a fresh transaction per attempt, retrying
// according to config.
func (m *Manager) WithRetry(ctx context.Context, config *RetryConfig, fn func(tx *sql.Tx) error) error {
	return Retry(ctx, config, func(ctx context.Context, _ int) error {
		return m.WithTransaction(ctx, fn)
	})
}
