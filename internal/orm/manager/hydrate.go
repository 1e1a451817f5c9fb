package manager

import (
	"context"
	"reflect"

	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/omegaorm/omega/internal/orm/cache"
	"github.com/omegaorm/omega/internal/orm/events"
	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/query"
	"github.com/omegaorm/omega/internal/orm/statement"
)

// maxLoadDepth bounds relationship resolution. Relations deeper than this
// are left unset.
const maxLoadDepth = 10

// loadContext tracks the entities built during one public call, so a cycle
// such as Category -> Products -> Category resolves to the instance already
// under construction.
type loadContext struct {
	depth   int
	loading map[string]any
}

func newLoadContext() *loadContext {
	return &loadContext{loading: make(map[string]any)}
}

func (lc *loadContext) nested() *loadContext {
	return &loadContext{depth: lc.depth + 1, loading: lc.loading}
}

// hydrate builds an entity from row. lookup controls whether the object cache
// is consulted first; callers that already missed pass false.
func (m *EntityManager) hydrate(ctx context.Context, lc *loadContext, d *metadata.EntityDescriptor, row statement.Row, lookup bool) (any, error) {
	if row == nil {
		return nil, nil
	}

	var key string
	if id := row[d.Identifier]; id != nil {
		key = cache.Key(d, id)
		if obj, ok := lc.loading[key]; ok {
			return obj, nil
		}
		if lookup {
			if obj, ok := m.cached(ctx, d, id); ok {
				m.observers.OnEntityLoaded(events.EntityLoadedEvent{Entity: d.Name, Identifier: id, FromCache: true})
				return obj, nil
			}
		}
	}

	obj := d.New()
	if key != "" {
		lc.loading[key] = obj
	}

	var children []*metadata.ColumnDescriptor
	for _, col := range d.Columns() {
		if col.Custom {
			continue
		}
		if col.Relation == metadata.OneToMany {
			children = append(children, col)
			continue
		}

		raw, ok := row[col.Name]
		if !ok || raw == nil {
			continue
		}
		if col.Relation == metadata.ManyToOne {
			if err := m.resolveParent(ctx, lc, obj, col, raw); err != nil {
				return nil, err
			}
			continue
		}
		if err := col.Set(obj, raw); err != nil {
			return nil, &Error{Op: "hydrate", Entity: d.Name, Err: err}
		}
	}

	// children are resolved once the identifier is known
	for _, col := range children {
		if err := m.resolveChildren(ctx, lc, d, obj, col); err != nil {
			return nil, err
		}
	}

	if d.HasCustomColumns() {
		if err := m.hydrateCustom(ctx, d, obj); err != nil {
			return nil, err
		}
	}

	identifier := d.IdentifierValue(obj)
	if assigned(identifier) {
		m.remember(ctx, d, identifier, obj)
	}
	m.observers.OnEntityLoaded(events.EntityLoadedEvent{Entity: d.Name, Identifier: identifier})
	return obj, nil
}

// resolveParent loads a ManyToOne target by its reference column, which need
// not be the target's identifier
func (m *EntityManager) resolveParent(ctx context.Context, lc *loadContext, obj any, col *metadata.ColumnDescriptor, raw any) error {
	if lc.depth >= maxLoadDepth {
		m.logger.Debug("relation depth exceeded", zap.String("field", col.FieldName))
		return nil
	}
	target, err := m.descriptor(col.Target)
	if err != nil {
		return err
	}
	related, err := m.findOneBy(ctx, lc.nested(), target, By(col.Reference, raw))
	if err != nil || related == nil {
		return err
	}
	return col.Set(obj, related)
}

// resolveChildren loads a OneToMany collection keyed on the parent's identifier
func (m *EntityManager) resolveChildren(ctx context.Context, lc *loadContext, d *metadata.EntityDescriptor, obj any, col *metadata.ColumnDescriptor) error {
	parentID := d.IdentifierValue(obj)
	if !assigned(parentID) || lc.depth >= maxLoadDepth {
		return nil
	}
	target, err := m.descriptor(col.Target)
	if err != nil {
		return err
	}
	list, err := m.findBy(ctx, lc.nested(), target, By(col.Reference, parentID))
	if err != nil || len(list) == 0 {
		return err
	}

	slice := reflect.MakeSlice(col.GoType, 0, len(list))
	byValue := col.GoType.Elem().Kind() == reflect.Struct
	for _, item := range list {
		v := reflect.ValueOf(item)
		if byValue {
			v = v.Elem()
		}
		slice = reflect.Append(slice, v)
	}
	return col.Set(obj, slice.Interface())
}

type customSource struct {
	table     string
	reference string
}

func customSources(d *metadata.EntityDescriptor) []customSource {
	var out []customSource
	seen := make(map[customSource]bool)
	for _, col := range d.CustomColumns() {
		src := customSource{table: col.CustomTable, reference: col.CustomReference}
		if !seen[src] {
			seen[src] = true
			out = append(out, src)
		}
	}
	return out
}

// hydrateCustom reads the custom-field rows of obj. Unknown field ids and
// values that do not convert are logged and skipped.
func (m *EntityManager) hydrateCustom(ctx context.Context, d *metadata.EntityDescriptor, obj any) error {
	identifier := d.IdentifierValue(obj)
	if !assigned(identifier) {
		return nil
	}

	for _, src := range customSources(d) {
		b := query.New().
			Select(src.reference, metadata.CustomFieldIDColumn, metadata.CustomValueColumn).
			From(src.table).
			Where(query.Eq(src.reference, "@identifier"))

		set, err := m.fetch(ctx, b.String(), map[string]any{"identifier": identifier})
		if err != nil {
			return err
		}

		for _, row := range set.Rows {
			fieldID, err := cast.ToIntE(textValue(row[metadata.CustomFieldIDColumn]))
			if err != nil {
				m.logger.Warn("invalid custom field id", zap.String("entity", d.Name), zap.Error(err))
				continue
			}
			col, err := d.CustomColumn(fieldID)
			if err != nil || col.CustomTable != src.table {
				continue
			}
			value, err := convertCustom(col, row[metadata.CustomValueColumn])
			if err != nil {
				m.logger.Warn("custom column conversion failed",
					zap.String("entity", d.Name), zap.String("field", col.FieldName), zap.Error(err))
				continue
			}
			if err := col.Set(obj, value); err != nil {
				m.logger.Warn("custom column assignment failed",
					zap.String("entity", d.Name), zap.String("field", col.FieldName), zap.Error(err))
			}
		}
	}
	return nil
}
