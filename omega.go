// Package omega maps attribute-annotated structs onto relational tables.
//
// An entity embeds Entity and describes its table and columns with orm
// struct tags:
//
//	type Product struct {
//		omega.Entity `orm:"table=Products;cache=300"`
//
//		ID       int       `orm:"column=ProductId;identity"`
//		Name     string    `orm:"column=Name;notnull"`
//		Category *Category `orm:"column=CategoryId;manytoone;ref=CategoryId"`
//	}
//
// An EntityManager persists, updates and loads entities, resolving their
// relationships and keeping loaded instances in an identity cache.
package omega

import (
	"context"
	"database/sql"

	"github.com/omegaorm/omega/internal/cli/config"
	"github.com/omegaorm/omega/internal/database"
	"github.com/omegaorm/omega/internal/orm/cache"
	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/manager"
	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/query"
	"github.com/omegaorm/omega/internal/orm/transaction"
)

type (
	// Entity marks a struct as mapped; its orm tag names the table
	Entity = metadata.Entity

	EntityManager = manager.EntityManager
	Option        = manager.Option
	Filter        = manager.Filter
	Stats         = manager.Stats
	Error         = manager.Error

	Registry         = metadata.Registry
	EntityDescriptor = metadata.EntityDescriptor
	ColumnDescriptor = metadata.ColumnDescriptor

	QueryBuilder = query.Builder
	ObjectCache  = cache.ObjectCache
	RetryConfig  = transaction.RetryConfig
	Observer     = events.Observer
	Config       = config.Config
	Session      = database.Session
)

var (
	ErrNilEntity            = manager.ErrNilEntity
	ErrInvalidIdentifier    = manager.ErrInvalidIdentifier
	ErrOptimisticLockFailed = manager.ErrOptimisticLockFailed
	ErrNotSingleResult      = manager.ErrNotSingleResult
	ErrInvalidEntity        = metadata.ErrInvalidEntity

	ErrNamedParamsUnsupported = database.ErrNamedParamsUnsupported
)

var (
	WithLogger            = manager.WithLogger
	WithObserver          = manager.WithObserver
	WithCache             = manager.WithCache
	WithRegistry          = manager.WithRegistry
	WithRetryPolicy       = manager.WithRetryPolicy
	WithLastInsertIDQuery = manager.WithLastInsertIDQuery
	WithRehydration       = manager.WithRehydration
	WithIsolation         = manager.WithIsolation
)

// New creates an entity manager on db
func New(db *sql.DB, opts ...Option) *EntityManager {
	return manager.New(db, opts...)
}

// Connect loads omega.yml and .env from dir, opens the configured database
// and builds an entity manager on it. Only drivers that bind @name
// parameters are accepted.
func Connect(ctx context.Context, dir string, opts ...Option) (*Session, error) {
	cfg, err := config.LoadFrom(dir)
	if err != nil {
		return nil, err
	}
	return database.Connect(ctx, cfg, opts...)
}

// By starts a filter matching column = value
func By(column string, value any) *Filter {
	return manager.By(column, value)
}

// Query starts a SQL builder
func Query() *QueryBuilder {
	return query.New()
}

// NewRepository returns a typed view of em for entity type T
func NewRepository[T any](em *EntityManager) (*manager.Repository[T], error) {
	return manager.NewRepository[T](em)
}
