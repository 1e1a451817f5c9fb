package metadata

import (
	"fmt"
	"reflect"
	"strconv"
	"sync"
	"sync/atomic"
)

// Registry memoizes entity descriptors per Go type. Descriptors are never
// evicted; Clear exists for tests and shutdown.
type Registry struct {
	descriptors sync.Map // reflect.Type -> *EntityDescriptor
	resolutions atomic.Int64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

var defaultRegistry = NewRegistry()

// Default returns the process-wide registry
func Default() *Registry {
	return defaultRegistry
}

// Resolve returns the descriptor for an entity type, building it on first use.
// Pointer types are dereferenced.
func (r *Registry) Resolve(t reflect.Type) (*EntityDescriptor, error) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t == nil {
		return nil, newError("<nil>", "", ErrInvalidEntity)
	}
	if d, ok := r.descriptors.Load(t); ok {
		return d.(*EntityDescriptor), nil
	}

	r.resolutions.Add(1)
	d, err := build(t)
	if err != nil {
		return nil, err
	}
	actual, _ := r.descriptors.LoadOrStore(t, d)
	return actual.(*EntityDescriptor), nil
}

// ResolveValue resolves the descriptor for the dynamic type of v
func (r *Registry) ResolveValue(v any) (*EntityDescriptor, error) {
	return r.Resolve(reflect.TypeOf(v))
}

// Contains reports whether t has already been resolved
func (r *Registry) Contains(t reflect.Type) bool {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	_, ok := r.descriptors.Load(t)
	return ok
}

// Remove forgets a resolved type
func (r *Registry) Remove(t reflect.Type) {
	for t != nil && t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	r.descriptors.Delete(t)
}

// Clear forgets every resolved type
func (r *Registry) Clear() {
	r.descriptors.Range(func(key, _ any) bool {
		r.descriptors.Delete(key)
		return true
	})
}

// Resolutions counts how many times reflection-based resolution has run
func (r *Registry) Resolutions() int64 {
	return r.resolutions.Load()
}

// Resolve resolves t against the process-wide registry
func Resolve(t reflect.Type) (*EntityDescriptor, error) {
	return defaultRegistry.Resolve(t)
}

// ResolveFor resolves the descriptor of T against the process-wide registry
func ResolveFor[T any]() (*EntityDescriptor, error) {
	return defaultRegistry.Resolve(reflect.TypeOf((*T)(nil)).Elem())
}

func build(t reflect.Type) (*EntityDescriptor, error) {
	if t.Kind() != reflect.Struct {
		return nil, newError(t.String(), "", ErrInvalidEntity)
	}

	d := &EntityDescriptor{
		Name:          t.Name(),
		Namespace:     t.PkgPath(),
		CacheDuration: DefaultCacheDuration,
		byField:       make(map[string]*ColumnDescriptor),
		byColumn:      make(map[string]*ColumnDescriptor),
		byCustom:      make(map[int]*ColumnDescriptor),
		typ:           t,
	}

	marker, ok := findMarker(t)
	if !ok {
		return nil, newError(d.Name, "", ErrInvalidEntity)
	}
	entityTags, _ := parseTag(marker)
	if name := entityTags.get("name"); name != "" {
		d.Name = name
	}
	d.Table = entityTags.get("table")
	if d.Table == "" {
		return nil, newError(d.Name, "", ErrMissingTable)
	}
	if ttl, ok := entityTags.cacheDuration(); ok {
		d.CacheDuration = ttl
	}
	d.NoCache = entityTags.flag("nocache")

	if err := d.collect(t, nil, true); err != nil {
		return nil, err
	}
	if d.Identifier == "" {
		return nil, newError(d.Name, "", ErrMissingIdentifier)
	}
	return d, nil
}

func findMarker(t reflect.Type) (reflect.StructField, bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.Anonymous {
			continue
		}
		if f.Type == entityMarkerType {
			return f, true
		}
		if f.Type.Kind() == reflect.Struct {
			if m, ok := findMarker(f.Type); ok {
				return m, true
			}
		}
	}
	return reflect.StructField{}, false
}

// collect walks every field, including unexported ones and those promoted
// from embedded structs, and registers the mapped ones.
func (d *EntityDescriptor) collect(t reflect.Type, parent []int, exported bool) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		index := append(append([]int(nil), parent...), i)

		if f.Type == entityMarkerType {
			continue
		}
		tags, tagged := parseTag(f)
		if f.Anonymous && f.Type.Kind() == reflect.Struct && !tagged {
			if err := d.collect(f.Type, index, exported && f.IsExported()); err != nil {
				return err
			}
			continue
		}
		if !tagged {
			continue
		}

		col, err := d.column(f, index, exported && f.IsExported(), tags)
		if err != nil {
			return err
		}
		if col == nil {
			continue
		}
		if err := d.register(col); err != nil {
			return err
		}
	}
	return nil
}

func (d *EntityDescriptor) column(f reflect.StructField, index []int, exported bool, tags tagSet) (*ColumnDescriptor, error) {
	col := &ColumnDescriptor{
		FieldName:  f.Name,
		Nullable:   !tags.flag("notnull"),
		Unique:     tags.flag("unique"),
		Identifier: tags.flag("identity"),
		RowGUID:    tags.flag("guid"),
		Version:    tags.flag("version"),
		GoType:     f.Type,
		access:     newFieldAccessor(index, exported),
	}
	typ, err := ParseColumnType(tags.get("type"))
	if err != nil {
		return nil, newError(d.Name, f.Name, fmt.Errorf("%w: %v", ErrInvalidColumn, err))
	}
	col.Type = typ

	switch {
	case tags.has("column") && !tags.has("manytoone"):
		col.Name = tags.get("column")

	case tags.has("custom"):
		col.Custom = true
		col.Name = CustomValueColumn
		col.CustomTable = tags.get("custom")
		col.CustomReference = tags.get("ref")
		id, err := strconv.Atoi(tags.get("fieldid"))
		if err != nil || col.CustomTable == "" || col.CustomReference == "" {
			return nil, newError(d.Name, f.Name, fmt.Errorf("%w: custom column needs table, ref and numeric fieldid", ErrInvalidColumn))
		}
		col.CustomFieldID = id

	case tags.has("manytoone"):
		if tags.has("onetomany") {
			return nil, newError(d.Name, f.Name, fmt.Errorf("%w: field cannot be both ManyToOne and OneToMany", ErrInvalidColumn))
		}
		col.Name = tags.get("column")
		col.Relation = ManyToOne
		col.Reference = tags.get("ref")
		col.Target = structType(f.Type)
		if col.Name == "" || col.Reference == "" || col.Target == nil {
			return nil, newError(d.Name, f.Name, fmt.Errorf("%w: ManyToOne needs column, ref and a struct pointer field", ErrInvalidColumn))
		}

	case tags.has("onetomany"):
		col.Relation = OneToMany
		col.Reference = tags.get("ref")
		col.Name = f.Name
		if f.Type.Kind() == reflect.Slice {
			col.Target = structType(f.Type.Elem())
		}
		if col.Reference == "" || col.Target == nil {
			return nil, newError(d.Name, f.Name, fmt.Errorf("%w: OneToMany needs ref and a slice of struct pointers", ErrInvalidColumn))
		}

	default:
		return nil, nil
	}

	if col.Custom && (col.Identifier || col.Version || col.RowGUID) {
		return nil, newError(d.Name, f.Name, fmt.Errorf("%w: custom columns cannot be identifier, guid or version", ErrInvalidColumn))
	}
	if col.Version && !isInteger(f.Type) {
		return nil, newError(d.Name, f.Name, ErrInvalidVersion)
	}
	return col, nil
}

func (d *EntityDescriptor) register(col *ColumnDescriptor) error {
	if _, dup := d.byField[col.FieldName]; dup {
		return newError(d.Name, col.FieldName, fmt.Errorf("%w: field mapped twice", ErrInvalidColumn))
	}

	switch {
	case col.Custom:
		if _, dup := d.byCustom[col.CustomFieldID]; dup {
			return newError(d.Name, col.FieldName, fmt.Errorf("%w: custom field id %d mapped twice", ErrInvalidColumn, col.CustomFieldID))
		}
		d.byCustom[col.CustomFieldID] = col
		if d.CustomTable == "" {
			d.CustomTable = col.CustomTable
			d.CustomReference = col.CustomReference
		}
	case col.Relation != OneToMany:
		if _, dup := d.byColumn[col.Name]; dup {
			return newError(d.Name, col.FieldName, fmt.Errorf("%w: column %s mapped twice", ErrInvalidColumn, col.Name))
		}
		d.byColumn[col.Name] = col
	}

	if col.Identifier {
		if d.Identifier != "" {
			return newError(d.Name, col.FieldName, ErrDuplicateIdentifier)
		}
		d.Identifier = col.Name
	}
	if col.RowGUID {
		d.GUIDColumn = col.Name
	}
	if col.Version {
		d.VersionColumn = col.Name
	}

	d.byField[col.FieldName] = col
	d.columns = append(d.columns, col)
	return nil
}

func structType(t reflect.Type) reflect.Type {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	return t
}

func isInteger(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	}
	return false
}

// Parameters returns the values bound by INSERT and UPDATE for obj, keyed by
// column name. A ManyToOne column binds the related entity's reference
// value, or nil when the relation is unset.
func (r *Registry) Parameters(d *EntityDescriptor, obj any) (map[string]any, error) {
	if !d.Owns(obj) {
		return nil, newError(d.Name, "", fmt.Errorf("%w: expected *%s, got %T", ErrInvalidEntity, d.typ.Name(), obj))
	}
	params := make(map[string]any)
	for _, col := range d.WritableColumns() {
		if col.Relation != ManyToOne {
			params[col.Name] = col.Get(obj)
			continue
		}
		related := col.Get(obj)
		rv := reflect.ValueOf(related)
		if !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
			params[col.Name] = nil
			continue
		}
		target, err := r.Resolve(col.Target)
		if err != nil {
			return nil, err
		}
		ref, err := target.Column(col.Reference)
		if err != nil {
			return nil, err
		}
		params[col.Name] = ref.Get(related)
	}
	return params, nil
}
