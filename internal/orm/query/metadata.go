package query

import (
	"github.com/omegaorm/omega/internal/orm/metadata"
)

func columnNames(cols []*metadata.ColumnDescriptor) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// SelectFromMetadata selects every column stored on the entity's table.
// Custom and OneToMany columns are excluded.
func (b *Builder) SelectFromMetadata(d *metadata.EntityDescriptor) *Builder {
	return b.Select(columnNames(d.StoredColumns())...)
}

// FromMetadata adds FROM <entity table> alias
func (b *Builder) FromMetadata(d *metadata.EntityDescriptor, alias ...string) *Builder {
	return b.From(d.Table, alias...)
}

// InsertFromMetadata inserts every writable column: the identifier, custom
// and OneToMany columns are left out while ManyToOne foreign keys are kept.
func (b *Builder) InsertFromMetadata(d *metadata.EntityDescriptor) *Builder {
	return b.InsertInto(d.Table, columnNames(d.WritableColumns())...)
}

// UpdateFromMetadata updates every writable column of the entity
func (b *Builder) UpdateFromMetadata(d *metadata.EntityDescriptor) *Builder {
	return b.Update(d.Table, columnNames(d.WritableColumns())...)
}

// DeleteFromMetadata deletes from the entity's table
func (b *Builder) DeleteFromMetadata(d *metadata.EntityDescriptor) *Builder {
	return b.DeleteFrom(d.Table)
}

// ByIdentifier filters on the entity's identifier bound as @<identifier>
func (b *Builder) ByIdentifier(d *metadata.EntityDescriptor) *Builder {
	return b.Filter(Eq(d.Identifier, Param(d.Identifier)))
}
