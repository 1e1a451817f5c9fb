// Package manager maps entities onto database rows: it persists and updates
// entities, loads them back with their relationships and custom columns, and
// keeps loaded instances in the object cache.
package manager

import (
	"context"
	"database/sql"
	"reflect"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/omegaorm/omega/internal/orm/cache"
	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/statement"
	"github.com/omegaorm/omega/internal/orm/transaction"
)

// EntityManager is safe for concurrent use. Each operation takes its own
// connection from the pool and releases it before returning.
type EntityManager struct {
	db        *sql.DB
	tx        *transaction.Manager
	registry  *metadata.Registry
	cache     *cache.ObjectCache
	logger    *zap.Logger
	observers events.Observers
	retry     *transaction.RetryConfig
	isolation transaction.IsolationLevel

	lastInsertIDQuery string
	rehydrate         bool

	hits   atomic.Int64
	misses atomic.Int64
}

// Stats reports object cache effectiveness
type Stats struct {
	CacheHits   int64 `json:"cache_hits"`
	CacheMisses int64 `json:"cache_misses"`
}

// New creates an entity manager on db
func New(db *sql.DB, opts ...Option) *EntityManager {
	m := &EntityManager{
		db:                db,
		registry:          metadata.Default(),
		logger:            zap.NewNop(),
		retry:             transaction.DefaultRetryConfig(),
		lastInsertIDQuery: DefaultLastInsertIDQuery,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.cache == nil {
		m.cache = cache.NewObjectCache(cache.NewMemoryStore())
	}
	m.tx = transaction.NewManager(db).WithIsolation(m.isolation)

	retry := *m.retry
	onRetry := retry.OnRetry
	retry.OnRetry = func(attempt int, err error) {
		m.logger.Warn("retrying database operation", zap.Int("attempt", attempt), zap.Error(err))
		if onRetry != nil {
			onRetry(attempt, err)
		}
	}
	m.retry = &retry
	return m
}

// DB returns the connection pool
func (m *EntityManager) DB() *sql.DB {
	return m.db
}

// Registry returns the metadata registry in use
func (m *EntityManager) Registry() *metadata.Registry {
	return m.registry
}

// Cache returns the object cache
func (m *EntityManager) Cache() *cache.ObjectCache {
	return m.cache
}

// Stats returns the cache hit and miss counters
func (m *EntityManager) Stats() Stats {
	return Stats{CacheHits: m.hits.Load(), CacheMisses: m.misses.Load()}
}

// Close releases the object cache. The database pool is owned by the caller.
func (m *EntityManager) Close() error {
	return m.cache.Close()
}

func (m *EntityManager) descriptor(typ reflect.Type) (*metadata.EntityDescriptor, error) {
	return m.registry.Resolve(typ)
}

// fetch runs a read query on its own connection, retrying per policy. The
// connection is released before the rows are hydrated.
func (m *EntityManager) fetch(ctx context.Context, sqlText string, params map[string]any) (*statement.RowSet, error) {
	var set *statement.RowSet
	err := transaction.Retry(ctx, m.retry, func(ctx context.Context, _ int) error {
		return m.tx.WithConn(ctx, func(conn *sql.Conn) error {
			m.logger.Debug("query", zap.String("sql", sqlText))
			var err error
			set, err = statement.New(sqlText, conn).BindParameters(params).Fetch(ctx)
			return err
		})
	})
	return set, err
}

// write runs fn in a fresh transaction per attempt
func (m *EntityManager) write(ctx context.Context, fn func(tx *sql.Tx) error) error {
	return m.tx.WithRetry(ctx, m.retry, fn)
}

func (m *EntityManager) exec(ctx context.Context, tx *sql.Tx, sqlText string, params map[string]any) (*statement.Statement, int64, error) {
	m.logger.Debug("exec", zap.String("sql", sqlText))
	st := statement.New(sqlText, tx).BindParameters(params)
	affected, err := st.Execute(ctx)
	return st, affected, err
}

// cached looks identifier up in the object cache and counts the outcome.
// Backend failures read as misses.
func (m *EntityManager) cached(ctx context.Context, d *metadata.EntityDescriptor, identifier any) (any, bool) {
	if d.NoCache {
		return nil, false
	}
	obj, ok, err := m.cache.Get(ctx, d, identifier)
	if err != nil {
		m.logger.Warn("object cache read failed", zap.String("entity", d.Name), zap.Error(err))
	}
	if ok {
		m.hits.Add(1)
		m.logger.Debug("cache hit", zap.String("entity", d.Name), zap.Any("id", identifier))
		return obj, true
	}
	m.misses.Add(1)
	return nil, false
}

func (m *EntityManager) remember(ctx context.Context, d *metadata.EntityDescriptor, identifier, obj any) {
	if _, err := m.cache.Add(ctx, d, identifier, obj); err != nil {
		m.logger.Warn("object cache write failed", zap.String("entity", d.Name), zap.Error(err))
	}
}

func (m *EntityManager) forget(ctx context.Context, d *metadata.EntityDescriptor, identifier any) {
	if err := m.cache.Remove(ctx, d, identifier); err != nil {
		m.logger.Warn("object cache remove failed", zap.String("entity", d.Name), zap.Error(err))
	}
}

// track reports a completed public operation to the observers
func (m *EntityManager) track(name string, start time.Time, err *error) {
	m.observers.OnOperation(events.OperationEvent{
		Name:    name,
		Success: *err == nil,
		Elapsed: time.Since(start),
		Err:     *err,
	})
}

// assigned reports whether identifier holds a database-assigned value. nil,
// zero values and non-positive numbers (the -1 sentinel included) do not.
func assigned(identifier any) bool {
	if identifier == nil {
		return false
	}
	rv := reflect.ValueOf(identifier)
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return false
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() > 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() > 0
	case reflect.Float32, reflect.Float64:
		return rv.Float() > 0
	}
	return !rv.IsZero()
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		return rv.IsNil()
	}
	return false
}
