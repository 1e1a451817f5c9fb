package metadata

import (
	"fmt"
	"reflect"
	"time"
)

// CustomValueColumn is the column holding values in a custom-field table
const CustomValueColumn = "CustomFieldValue"

// CustomFieldIDColumn is the column holding the field id in a custom-field table
const CustomFieldIDColumn = "CustomFieldId"

// DefaultCacheDuration applies when an entity does not declare `cache=<seconds>`
const DefaultCacheDuration = time.Hour

// Entity is embedded in a struct to mark it as a mapped entity. Its tag
// carries the entity-level metadata:
//
//	type Product struct {
//		metadata.Entity `orm:"table=Products;cache=600"`
//		ProductID int    `orm:"column=ProductId;type=Int32;identity"`
//	}
type Entity struct{}

var entityMarkerType = reflect.TypeOf(Entity{})

// ColumnDescriptor describes one mapped field. Descriptors are immutable
// once resolution completes.
type ColumnDescriptor struct {
	FieldName  string
	Name       string
	Type       ColumnType
	Nullable   bool
	Unique     bool
	Identifier bool
	RowGUID    bool
	Version    bool

	Custom          bool
	CustomTable     string
	CustomFieldID   int
	CustomReference string

	Relation  RelationKind
	Target    reflect.Type
	Reference string

	GoType reflect.Type
	access fieldAccessor
}

// IsRelationship reports whether the column is resolved through another entity
func (c *ColumnDescriptor) IsRelationship() bool {
	return c.Relation != NoRelation
}

// Stored reports whether the column lives on the entity's own table
func (c *ColumnDescriptor) Stored() bool {
	return !c.Custom && c.Relation != OneToMany
}

// Get returns the field's current value on obj, which must be a pointer to
// the entity struct.
func (c *ColumnDescriptor) Get(obj any) any {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return nil
	}
	return c.access(rv.Elem()).Interface()
}

// Set stores value on obj, coercing driver types onto the field type
func (c *ColumnDescriptor) Set(obj any, value any) error {
	rv := reflect.ValueOf(obj)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("set %s: expected non-nil pointer, got %T", c.FieldName, obj)
	}
	if err := assign(c.access(rv.Elem()), value); err != nil {
		return fmt.Errorf("set %s: %w", c.FieldName, err)
	}
	return nil
}

// EntityDescriptor holds the structural metadata of one entity type
type EntityDescriptor struct {
	Name            string
	Namespace       string
	Table           string
	Identifier      string
	GUIDColumn      string
	VersionColumn   string
	CustomTable     string
	CustomReference string
	CacheDuration   time.Duration
	NoCache         bool

	columns  []*ColumnDescriptor
	byField  map[string]*ColumnDescriptor
	byColumn map[string]*ColumnDescriptor
	byCustom map[int]*ColumnDescriptor
	typ      reflect.Type
}

// Type returns the struct type described
func (d *EntityDescriptor) Type() reflect.Type {
	return d.typ
}

// Key returns the stable process-wide key of the entity, namespace included
func (d *EntityDescriptor) Key() string {
	if d.Namespace == "" {
		return d.Name
	}
	return d.Namespace + "." + d.Name
}

// New allocates a zero-valued entity and returns a pointer to it
func (d *EntityDescriptor) New() any {
	return reflect.New(d.typ).Interface()
}

// NewSlice allocates an empty []*T for the entity type
func (d *EntityDescriptor) NewSlice(n int) reflect.Value {
	return reflect.MakeSlice(reflect.SliceOf(reflect.PointerTo(d.typ)), 0, n)
}

// Columns returns every mapped column in declaration order
func (d *EntityDescriptor) Columns() []*ColumnDescriptor {
	return d.columns
}

// StoredColumns returns the columns selected from the entity's own table
func (d *EntityDescriptor) StoredColumns() []*ColumnDescriptor {
	var out []*ColumnDescriptor
	for _, c := range d.columns {
		if c.Stored() {
			out = append(out, c)
		}
	}
	return out
}

// WritableColumns returns the columns bound by INSERT and UPDATE: stored
// columns minus the identifier.
func (d *EntityDescriptor) WritableColumns() []*ColumnDescriptor {
	var out []*ColumnDescriptor
	for _, c := range d.columns {
		if c.Stored() && !c.Identifier {
			out = append(out, c)
		}
	}
	return out
}

// CustomColumns returns the columns stored in the custom-field table
func (d *EntityDescriptor) CustomColumns() []*ColumnDescriptor {
	var out []*ColumnDescriptor
	for _, c := range d.columns {
		if c.Custom {
			out = append(out, c)
		}
	}
	return out
}

// Field looks a column up by Go field name
func (d *EntityDescriptor) Field(name string) (*ColumnDescriptor, error) {
	if c, ok := d.byField[name]; ok {
		return c, nil
	}
	return nil, newError(d.Name, name, ErrUnknownColumn)
}

// Column looks a stored column up by column name
func (d *EntityDescriptor) Column(name string) (*ColumnDescriptor, error) {
	if c, ok := d.byColumn[name]; ok {
		return c, nil
	}
	return nil, newError(d.Name, name, ErrUnknownColumn)
}

// CustomColumn looks a custom column up by its custom field id
func (d *EntityDescriptor) CustomColumn(fieldID int) (*ColumnDescriptor, error) {
	if c, ok := d.byCustom[fieldID]; ok {
		return c, nil
	}
	return nil, newError(d.Name, fmt.Sprintf("#%d", fieldID), ErrUnknownCustomColumn)
}

// IdentifierColumn returns the identifier's descriptor
func (d *EntityDescriptor) IdentifierColumn() *ColumnDescriptor {
	return d.byColumn[d.Identifier]
}

// IdentifierValue reads the identifier from obj
func (d *EntityDescriptor) IdentifierValue(obj any) any {
	return d.IdentifierColumn().Get(obj)
}

// GUIDColumnDescriptor returns the row-guid column, or nil
func (d *EntityDescriptor) GUIDColumnDescriptor() *ColumnDescriptor {
	if d.GUIDColumn == "" {
		return nil
	}
	return d.byColumn[d.GUIDColumn]
}

// VersionColumnDescriptor returns the optimistic-lock column, or nil
func (d *EntityDescriptor) VersionColumnDescriptor() *ColumnDescriptor {
	if d.VersionColumn == "" {
		return nil
	}
	return d.byColumn[d.VersionColumn]
}

// DatabaseFields returns the column names selected from the entity's table
func (d *EntityDescriptor) DatabaseFields() []string {
	cols := d.StoredColumns()
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name
	}
	return out
}

func (d *EntityDescriptor) HasRelationships() bool {
	for _, c := range d.columns {
		if c.IsRelationship() {
			return true
		}
	}
	return false
}

func (d *EntityDescriptor) HasCustomColumns() bool {
	return len(d.byCustom) > 0
}

func (d *EntityDescriptor) HasGUIDColumn() bool {
	return d.GUIDColumn != ""
}

func (d *EntityDescriptor) SupportsOptimisticLocking() bool {
	return d.VersionColumn != ""
}

// Owns reports whether obj is a pointer to this descriptor's type
func (d *EntityDescriptor) Owns(obj any) bool {
	_, err := entityValue(obj, d.typ)
	return err == nil
}
