package transaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// ErrTransactionTimeout is returned when a transaction times out
var ErrTransactionTimeout = errors.New("transaction timeout")

// IsolationLevel represents the transaction isolation level
type IsolationLevel int

const (
	// DefaultIsolation leaves the choice to the driver
	DefaultIsolation IsolationLevel = iota
	// ReadUncommitted allows dirty reads
	ReadUncommitted
	// ReadCommitted prevents dirty reads
	ReadCommitted
	// RepeatableRead prevents non-repeatable reads
	RepeatableRead
	// Serializable provides full isolation
	Serializable
)

// String returns the string representation of the isolation level
func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "READ UNCOMMITTED"
	case ReadCommitted:
		return "READ COMMITTED"
	case RepeatableRead:
		return "REPEATABLE READ"
	case Serializable:
		return "SERIALIZABLE"
	default:
		return "DEFAULT"
	}
}

// ParseIsolationLevel maps a configuration value onto an isolation level
func ParseIsolationLevel(s string) (IsolationLevel, error) {
	switch s {
	case "", "default", "DEFAULT":
		return DefaultIsolation, nil
	case "read_uncommitted", "READ UNCOMMITTED":
		return ReadUncommitted, nil
	case "read_committed", "READ COMMITTED":
		return ReadCommitted, nil
	case "repeatable_read", "REPEATABLE READ":
		return RepeatableRead, nil
	case "serializable", "SERIALIZABLE":
		return Serializable, nil
	}
	return DefaultIsolation, fmt.Errorf("unknown isolation level %q", s)
}

// ToSQLOptions converts IsolationLevel to sql.TxOptions. The default level
// yields nil so drivers that only accept their default still work.
func (l IsolationLevel) ToSQLOptions() *sql.TxOptions {
	var level sql.IsolationLevel
	switch l {
	case ReadUncommitted:
		level = sql.LevelReadUncommitted
	case ReadCommitted:
		level = sql.LevelReadCommitted
	case RepeatableRead:
		level = sql.LevelRepeatableRead
	case Serializable:
		level = sql.LevelSerializable
	default:
		return nil
	}
	return &sql.TxOptions{Isolation: level}
}

// Manager scopes connections and transactions. Every call takes its own
// connection from the pool and returns it before the call ends.
type Manager struct {
	db        *sql.DB
	isolation IsolationLevel
}

// NewManager creates a new transaction manager
func NewManager(db *sql.DB) *Manager {
	return &Manager{db: db}
}

// WithIsolation returns a copy of the manager using level for new transactions
func (m *Manager) WithIsolation(level IsolationLevel) *Manager {
	c := *m
	c.isolation = level
	return &c
}

// DB returns the underlying pool
func (m *Manager) DB() *sql.DB {
	return m.db
}

// WithConn runs fn on a dedicated connection and closes it afterwards
func (m *Manager) WithConn(ctx context.Context, fn func(conn *sql.Conn) error) error {
	conn, err := m.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to open connection: %w", err)
	}
	defer conn.Close()

	return fn(conn)
}

// WithTransaction executes a function within a transaction
// Automatically commits on success or rolls back on error
func (m *Manager) WithTransaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return m.WithTransactionIsolation(ctx, m.isolation, fn)
}

// WithTransactionIsolation executes a function within a transaction with specified isolation level
func (m *Manager) WithTransactionIsolation(ctx context.Context, level IsolationLevel, fn func(tx *sql.Tx) error) error {
	return m.WithConn(ctx, func(conn *sql.Conn) error {
		tx, err := conn.BeginTx(ctx, level.ToSQLOptions())
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}

		defer func() {
			if p := recover(); p != nil {
				_ = tx.Rollback()
				panic(p) // Re-throw panic after rollback
			}
		}()

		if err := fn(tx); err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				return fmt.Errorf("transaction failed: %w, rollback failed: %v", err, rbErr)
			}
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit transaction: %w", err)
		}
		return nil
	})
}
