package manager

import (
	"context"
	"reflect"
	"time"

	"github.com/spf13/cast"

	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/query"
)

// FindByID loads the entity of type typ with the given identifier. A nil or
// non-positive identifier returns nil without a query. Cached instances are
// returned as is.
func (m *EntityManager) FindByID(ctx context.Context, typ reflect.Type, identifier any) (obj any, err error) {
	defer m.track("FindById", time.Now(), &err)

	d, err := m.descriptor(typ)
	if err != nil {
		return nil, err
	}
	return m.findByID(ctx, newLoadContext(), d, identifier)
}

func (m *EntityManager) findByID(ctx context.Context, lc *loadContext, d *metadata.EntityDescriptor, identifier any) (any, error) {
	if !assigned(identifier) {
		return nil, nil
	}
	if obj, ok := m.cached(ctx, d, identifier); ok {
		m.observers.OnEntityLoaded(events.EntityLoadedEvent{Entity: d.Name, Identifier: identifier, FromCache: true})
		return obj, nil
	}

	b := query.New().SelectFromMetadata(d).FromMetadata(d).ByIdentifier(d)
	set, err := m.fetch(ctx, b.String(), map[string]any{d.Identifier: identifier})
	if err != nil {
		return nil, err
	}
	return m.hydrate(ctx, lc, d, set.Row(0), false)
}

// FindBy loads every entity of type typ matching filter, in database order.
// It returns nil when nothing matches.
func (m *EntityManager) FindBy(ctx context.Context, typ reflect.Type, filter *Filter) (list []any, err error) {
	defer m.track("FindBy", time.Now(), &err)

	d, err := m.descriptor(typ)
	if err != nil {
		return nil, err
	}
	return m.findBy(ctx, newLoadContext(), d, filter)
}

// FindOneBy returns the first entity matching filter, or nil. Every
// matching row is hydrated, so filters should be selective.
func (m *EntityManager) FindOneBy(ctx context.Context, typ reflect.Type, filter *Filter) (obj any, err error) {
	defer m.track("FindOneBy", time.Now(), &err)

	d, err := m.descriptor(typ)
	if err != nil {
		return nil, err
	}
	return m.findOneBy(ctx, newLoadContext(), d, filter)
}

// FindAll loads every entity of type typ
func (m *EntityManager) FindAll(ctx context.Context, typ reflect.Type) (list []any, err error) {
	defer m.track("FindAll", time.Now(), &err)

	d, err := m.descriptor(typ)
	if err != nil {
		return nil, err
	}
	return m.findBy(ctx, newLoadContext(), d, nil)
}

func (m *EntityManager) findOneBy(ctx context.Context, lc *loadContext, d *metadata.EntityDescriptor, filter *Filter) (any, error) {
	list, err := m.findBy(ctx, lc, d, filter)
	if err != nil || len(list) == 0 {
		return nil, err
	}
	return list[0], nil
}

func (m *EntityManager) findBy(ctx context.Context, lc *loadContext, d *metadata.EntityDescriptor, filter *Filter) ([]any, error) {
	b := query.New().SelectFromMetadata(d).FromMetadata(d)
	params := filter.apply(b)

	set, err := m.fetch(ctx, b.String(), params)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 {
		return nil, nil
	}

	m.observers.OnListing(events.ListingEvent{Phase: events.ListingBegin, Entity: d.Name, Count: set.Len()})
	list := make([]any, 0, set.Len())
	for _, row := range set.Rows {
		obj, err := m.hydrate(ctx, lc, d, row, true)
		if err != nil {
			return nil, err
		}
		if obj != nil {
			list = append(list, obj)
		}
	}
	m.observers.OnListing(events.ListingEvent{Phase: events.ListingEnd, Entity: d.Name, Count: len(list)})
	return list, nil
}

// Count returns the number of rows of typ matching filter
func (m *EntityManager) Count(ctx context.Context, typ reflect.Type, filter *Filter) (n int64, err error) {
	defer m.track("Count", time.Now(), &err)

	d, err := m.descriptor(typ)
	if err != nil {
		return 0, err
	}
	b := query.New().Select("COUNT(*)").FromMetadata(d)
	params := filter.apply(b)
	return m.count(ctx, b.String(), params)
}

// Exists reports whether any row of typ matches filter
func (m *EntityManager) Exists(ctx context.Context, typ reflect.Type, filter *Filter) (bool, error) {
	n, err := m.Count(ctx, typ, filter)
	return n > 0, err
}

func (m *EntityManager) count(ctx context.Context, sqlText string, params map[string]any) (int64, error) {
	set, err := m.fetch(ctx, sqlText, params)
	if err != nil {
		return 0, err
	}
	if set.Len() == 0 {
		return 0, nil
	}
	return cast.ToInt64E(set.Rows[0][set.Columns[0]])
}
