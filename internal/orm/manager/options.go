package manager

import (
	"go.uber.org/zap"

	"github.com/omegaorm/omega/internal/orm/cache"
	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/transaction"
)

// DefaultLastInsertIDQuery reads the identity generated by the last INSERT on
// SQL Server style databases
const DefaultLastInsertIDQuery = "SELECT CONVERT(int, @@IDENTITY)"

// Option configures an EntityManager
type Option func(*EntityManager)

// WithLogger sets the logger; the default discards everything
func WithLogger(logger *zap.Logger) Option {
	return func(m *EntityManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithObserver adds an observer. It may be given more than once.
func WithObserver(o events.Observer) Option {
	return func(m *EntityManager) {
		if o != nil {
			m.observers = append(m.observers, o)
		}
	}
}

// WithCache replaces the default in-memory object cache
func WithCache(c *cache.ObjectCache) Option {
	return func(m *EntityManager) {
		if c != nil {
			m.cache = c
		}
	}
}

// WithRegistry resolves descriptors from r instead of the process-wide registry
func WithRegistry(r *metadata.Registry) Option {
	return func(m *EntityManager) {
		if r != nil {
			m.registry = r
		}
	}
}

// WithRetryPolicy sets the retry policy applied to every database round trip
func WithRetryPolicy(config *transaction.RetryConfig) Option {
	return func(m *EntityManager) {
		if config != nil {
			m.retry = config
		}
	}
}

// WithLastInsertIDQuery sets the query reading a new identity after INSERT.
// An empty query uses the driver's LastInsertId instead.
func WithLastInsertIDQuery(q string) Option {
	return func(m *EntityManager) {
		m.lastInsertIDQuery = q
	}
}

// WithRehydration makes Persist return a freshly loaded instance
func WithRehydration(enabled bool) Option {
	return func(m *EntityManager) {
		m.rehydrate = enabled
	}
}

// WithIsolation sets the isolation level of write transactions
func WithIsolation(level transaction.IsolationLevel) Option {
	return func(m *EntityManager) {
		m.isolation = level
	}
}
