package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/omegaorm/omega/internal/cli/config"
	"github.com/omegaorm/omega/internal/orm/cache"
	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/manager"
	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/transaction"
)

// Session bundles a connection pool with the entity manager built on it
type Session struct {
	DB      *sql.DB
	Manager *manager.EntityManager
	Logger  *zap.Logger
	// Metrics holds the ORM collectors; serve it with promhttp.HandlerFor
	Metrics *prometheus.Registry
}

// ErrNamedParamsUnsupported is returned when an entity session is requested
// on a driver that cannot bind @name placeholders
var ErrNamedParamsUnsupported = errors.New("driver does not bind @name parameters")

// Connect opens the configured database and builds a session on it. The
// driver must support named parameters.
func Connect(ctx context.Context, cfg *config.Config, opts ...manager.Option) (*Session, error) {
	return connect(ctx, cfg, false, opts...)
}

// ConnectRaw is Connect for raw SQL use. It accepts every supported driver;
// entity operations on a driver without named parameters fail.
func ConnectRaw(ctx context.Context, cfg *config.Config, opts ...manager.Option) (*Session, error) {
	return connect(ctx, cfg, true, opts...)
}

func connect(ctx context.Context, cfg *config.Config, raw bool, opts ...manager.Option) (*Session, error) {
	dialect, err := Lookup(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if !raw && !dialect.NamedParams {
		return nil, namedParamsError(cfg.Database.Driver)
	}

	logger, err := cfg.Log.Logger()
	if err != nil {
		return nil, err
	}

	db, err := Open(ctx, cfg.Database)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	s, err := newSession(db, cfg, dialect, logger, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewSession builds an entity manager on an open pool. Options given here
// are applied after the ones derived from cfg. Drivers without named
// parameters are refused with ErrNamedParamsUnsupported.
func NewSession(db *sql.DB, cfg *config.Config, logger *zap.Logger, opts ...manager.Option) (*Session, error) {
	dialect, err := Lookup(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	if !dialect.NamedParams {
		return nil, namedParamsError(cfg.Database.Driver)
	}
	return newSession(db, cfg, dialect, logger, opts...)
}

// NewRawSession builds a session for raw SQL on any supported driver
func NewRawSession(db *sql.DB, cfg *config.Config, logger *zap.Logger, opts ...manager.Option) (*Session, error) {
	dialect, err := Lookup(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	return newSession(db, cfg, dialect, logger, opts...)
}

func newSession(db *sql.DB, cfg *config.Config, dialect Dialect, logger *zap.Logger, opts ...manager.Option) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	isolation, err := transaction.ParseIsolationLevel(cfg.Database.Isolation)
	if err != nil {
		return nil, err
	}

	objects, err := NewCache(cfg.Cache, metadata.Default())
	if err != nil {
		return nil, err
	}

	lastInsertID := cfg.ORM.LastInsertIDQuery
	if lastInsertID == "" {
		lastInsertID = dialect.LastInsertIDQuery
	}

	metrics := prometheus.NewRegistry()
	options := []manager.Option{
		manager.WithLogger(logger),
		manager.WithCache(objects),
		manager.WithRetryPolicy(cfg.ORM.RetryConfig()),
		manager.WithLastInsertIDQuery(lastInsertID),
		manager.WithRehydration(cfg.ORM.Rehydrate),
		manager.WithIsolation(isolation),
		manager.WithObserver(events.NewLogObserver(logger)),
		manager.WithObserver(events.NewMetricsObserver(metrics)),
	}

	logger.Debug("session opened",
		zap.String("driver", dialect.Name),
		zap.String("cache", cfg.Cache.Backend),
		zap.Int("max_retries", cfg.ORM.MaxRetries),
		zap.Bool("named_params", dialect.NamedParams),
	)

	return &Session{
		DB:      db,
		Manager: manager.New(db, append(options, opts...)...),
		Logger:  logger,
		Metrics: metrics,
	}, nil
}

func namedParamsError(driver string) error {
	return fmt.Errorf("%w: database.driver %q cannot run entity operations, use sqlite or sqlite3",
		ErrNamedParamsUnsupported, driver)
}

// NewCache builds the object cache selected by cfg. Redis values are encoded
// with descriptors from registry.
func NewCache(cfg config.CacheConfig, registry *metadata.Registry) (*cache.ObjectCache, error) {
	common := cache.Config{DefaultTTL: cfg.DefaultTTL, Prefix: cfg.Prefix}

	switch cfg.Backend {
	case "", "memory":
		return cache.NewObjectCache(cache.NewMemoryStoreWithConfig(common)), nil
	case "redis":
		store, err := cache.NewRedisStoreWithConfig(cache.RedisConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Config:   common,
		}, cache.NewEntityCodec(registry))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Redis.Addr, err)
		}
		return cache.NewObjectCache(store), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// Close releases the cache and the pool and flushes the logger
func (s *Session) Close() error {
	err := errors.Join(s.Manager.Close(), s.DB.Close())
	_ = s.Logger.Sync()
	return err
}
