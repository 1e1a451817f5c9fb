package manager

import (
	"context"
	"database/sql"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"

	"github.com/omegaorm/omega/internal/orm/metadata"
	"github.com/omegaorm/omega/internal/orm/query"
	"github.com/omegaorm/omega/internal/orm/statement"
	"github.com/omegaorm/omega/internal/orm/transaction"
)

// versionParam binds the expected version of an optimistic-lock update
const versionParam = "__version"

// Persist inserts obj, or updates it when its identifier is assigned and a row
// with that identifier exists. The generated identifier is written back onto
// obj; a failed insert leaves obj's identifier as it was. Custom columns are
// written in the same transaction.
func (m *EntityManager) Persist(ctx context.Context, obj any) (out any, err error) {
	defer m.track("Persist", time.Now(), &err)

	d, err := m.entity("Persist", obj)
	if err != nil {
		return nil, err
	}

	if id := d.IdentifierValue(obj); assigned(id) {
		b := query.New().Select("COUNT(*)").FromMetadata(d).ByIdentifier(d)
		n, err := m.count(ctx, b.String(), map[string]any{d.Identifier: id})
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return m.update(ctx, d, obj)
		}
	}

	if err := m.prepareInsert(d, obj); err != nil {
		return nil, err
	}
	params, err := m.registry.Parameters(d, obj)
	if err != nil {
		return nil, err
	}
	insert := query.New().InsertFromMetadata(d).String()

	// the object keeps its old identifier unless the insert commits
	original := d.IdentifierValue(obj)
	var identifier any
	err = m.write(ctx, func(tx *sql.Tx) error {
		st, _, err := m.exec(ctx, tx, insert, params)
		if err != nil {
			return err
		}
		identifier, err = m.generatedID(ctx, tx, d, st, params)
		if err != nil {
			return err
		}
		if err := d.IdentifierColumn().Set(obj, identifier); err != nil {
			return transaction.Permanent(&Error{Op: "Persist", Entity: d.Name, Err: err})
		}
		return m.writeCustomColumns(ctx, tx, d, obj, identifier)
	})
	if err != nil {
		_ = d.IdentifierColumn().Set(obj, original)
		return nil, err
	}

	if m.rehydrate {
		id := d.IdentifierValue(obj)
		m.forget(ctx, d, id)
		return m.findByID(ctx, newLoadContext(), d, id)
	}
	return obj, nil
}

// Update writes every mapped column of obj by identifier. Versioned entities
// only update when the stored version still matches, and get the new version
// written back.
func (m *EntityManager) Update(ctx context.Context, obj any) (out any, err error) {
	defer m.track("Update", time.Now(), &err)

	d, err := m.entity("Update", obj)
	if err != nil {
		return nil, err
	}
	return m.update(ctx, d, obj)
}

func (m *EntityManager) update(ctx context.Context, d *metadata.EntityDescriptor, obj any) (any, error) {
	identifier := d.IdentifierValue(obj)
	if !assigned(identifier) {
		return nil, &Error{Op: "Update", Entity: d.Name, Err: ErrInvalidIdentifier}
	}

	params, err := m.registry.Parameters(d, obj)
	if err != nil {
		return nil, err
	}
	params[d.Identifier] = identifier

	b := query.New().UpdateFromMetadata(d).ByIdentifier(d)

	versionCol := d.VersionColumnDescriptor()
	var next int64
	if versionCol != nil {
		current, err := cast.ToInt64E(versionCol.Get(obj))
		if err != nil {
			return nil, &Error{Op: "Update", Entity: d.Name, Err: err}
		}
		next = current + 1
		params[versionParam] = current
		params[versionCol.Name] = next
		b.AndWhere(query.Eq(versionCol.Name, query.Param(versionParam)))
	}
	update := b.String()

	err = m.write(ctx, func(tx *sql.Tx) error {
		_, affected, err := m.exec(ctx, tx, update, params)
		if err != nil {
			return err
		}
		if versionCol != nil && affected == 0 {
			return transaction.Permanent(&Error{Op: "Update", Entity: d.Name, Err: ErrOptimisticLockFailed})
		}
		return m.writeCustomColumns(ctx, tx, d, obj, identifier)
	})
	if err != nil {
		return nil, err
	}

	if versionCol != nil {
		if err := versionCol.Set(obj, next); err != nil {
			return nil, &Error{Op: "Update", Entity: d.Name, Err: err}
		}
	}

	m.forget(ctx, d, identifier)
	m.remember(ctx, d, identifier, obj)
	return obj, nil
}

// Delete removes obj's row by identifier. Custom-field rows go first;
// OneToMany children are left alone.
func (m *EntityManager) Delete(ctx context.Context, obj any) (err error) {
	defer m.track("Delete", time.Now(), &err)

	d, err := m.entity("Delete", obj)
	if err != nil {
		return err
	}
	identifier := d.IdentifierValue(obj)
	if !assigned(identifier) {
		return &Error{Op: "Delete", Entity: d.Name, Err: ErrInvalidIdentifier}
	}

	del := query.New().DeleteFromMetadata(d).ByIdentifier(d).String()
	err = m.write(ctx, func(tx *sql.Tx) error {
		for _, src := range customSources(d) {
			sqlText := query.New().DeleteFrom(src.table).Where(query.Eq(src.reference, "@identifier")).String()
			if _, _, err := m.exec(ctx, tx, sqlText, map[string]any{"identifier": identifier}); err != nil {
				return err
			}
		}
		_, _, err := m.exec(ctx, tx, del, map[string]any{d.Identifier: identifier})
		return err
	})
	if err != nil {
		return err
	}

	m.forget(ctx, d, identifier)
	return nil
}

// entity validates obj and resolves its descriptor
func (m *EntityManager) entity(op string, obj any) (*metadata.EntityDescriptor, error) {
	if isNil(obj) {
		return nil, &Error{Op: op, Err: ErrNilEntity}
	}
	d, err := m.registry.ResolveValue(obj)
	if err != nil {
		return nil, err
	}
	if reflect.ValueOf(obj).Kind() != reflect.Ptr {
		return nil, &Error{Op: op, Entity: d.Name, Err: fmt.Errorf("expected *%s, got %T", d.Type().Name(), obj)}
	}
	return d, nil
}

// prepareInsert fills a missing row GUID and starts the version at 1
func (m *EntityManager) prepareInsert(d *metadata.EntityDescriptor, obj any) error {
	if col := d.GUIDColumnDescriptor(); col != nil {
		if current := col.Get(obj); isNil(current) || reflect.ValueOf(current).IsZero() {
			if err := col.Set(obj, uuid.New()); err != nil {
				return &Error{Op: "Persist", Entity: d.Name, Err: err}
			}
		}
	}
	if col := d.VersionColumnDescriptor(); col != nil {
		if reflect.ValueOf(col.Get(obj)).IsZero() {
			if err := col.Set(obj, 1); err != nil {
				return &Error{Op: "Persist", Entity: d.Name, Err: err}
			}
		}
	}
	return nil
}

// generatedID reads the identifier of the row just inserted. GUID-keyed
// entities look it up by GUID; the rest use the configured last-insert-id
// query, or the driver's LastInsertId when none is set.
func (m *EntityManager) generatedID(ctx context.Context, tx *sql.Tx, d *metadata.EntityDescriptor, insert *statement.Statement, params map[string]any) (any, error) {
	if d.HasGUIDColumn() {
		sqlText := query.New().
			Select(d.Identifier).
			FromMetadata(d).
			Where(query.Eq(d.GUIDColumn, query.Param(d.GUIDColumn))).
			String()
		return m.scalar(ctx, tx, sqlText, map[string]any{d.GUIDColumn: params[d.GUIDColumn]})
	}
	if m.lastInsertIDQuery != "" {
		return m.scalar(ctx, tx, m.lastInsertIDQuery, nil)
	}
	if id, ok := insert.LastInsertID(); ok {
		return id, nil
	}
	return nil, transaction.Permanent(&Error{Op: "Persist", Entity: d.Name, Err: ErrInvalidIdentifier})
}

func (m *EntityManager) scalar(ctx context.Context, tx *sql.Tx, sqlText string, params map[string]any) (any, error) {
	v, err := statement.New(sqlText, tx).BindParameters(params).FetchScalar(ctx)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, &statement.Error{SQL: sqlText, Err: sql.ErrNoRows}
	}
	return textValue(v), nil
}

// writeCustomColumns stores each custom column as text: UPDATE the row for
// (reference, field) when one exists, INSERT otherwise
func (m *EntityManager) writeCustomColumns(ctx context.Context, tx *sql.Tx, d *metadata.EntityDescriptor, obj any, identifier any) error {
	for _, col := range d.CustomColumns() {
		value, err := customText(col.Get(obj))
		if err != nil {
			return transaction.Permanent(&Error{Op: "custom column " + col.FieldName, Entity: d.Name, Err: err})
		}
		key := map[string]any{
			col.CustomReference:          identifier,
			metadata.CustomFieldIDColumn: col.CustomFieldID,
		}

		exists := query.New().
			Select("COUNT(*)").
			From(col.CustomTable).
			Where(query.Eq(col.CustomReference, query.Param(col.CustomReference))).
			AndWhere(query.Eq(metadata.CustomFieldIDColumn, query.Param(metadata.CustomFieldIDColumn))).
			String()
		v, err := m.scalar(ctx, tx, exists, key)
		if err != nil {
			return err
		}
		n, err := cast.ToInt64E(v)
		if err != nil {
			return transaction.Permanent(&Error{Op: "custom column " + col.FieldName, Entity: d.Name, Err: err})
		}

		params := map[string]any{
			col.CustomReference:          identifier,
			metadata.CustomFieldIDColumn: col.CustomFieldID,
			metadata.CustomValueColumn:   value,
		}
		var sqlText string
		if n > 0 {
			sqlText = query.New().
				Update(col.CustomTable, metadata.CustomValueColumn).
				Where(query.Eq(col.CustomReference, query.Param(col.CustomReference))).
				AndWhere(query.Eq(metadata.CustomFieldIDColumn, query.Param(metadata.CustomFieldIDColumn))).
				String()
		} else {
			sqlText = query.New().
				InsertInto(col.CustomTable, col.CustomReference, metadata.CustomFieldIDColumn, metadata.CustomValueColumn).
				String()
		}
		if _, _, err := m.exec(ctx, tx, sqlText, params); err != nil {
			return err
		}
	}
	return nil
}
