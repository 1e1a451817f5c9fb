package cache

import (
	"database/sql/driver"
	"fmt"
	"reflect"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/omegaorm/omega/internal/orm/metadata"
)

// Codec turns entities into bytes for stores that cannot hold references
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, typ reflect.Type) (any, error)
}

// EntityCodec encodes the mapped state of an entity with msgpack. Plain and
// custom columns are kept; a ManyToOne relation is reduced to the related
// entity's reference value and decodes as a stub carrying only that value.
// OneToMany collections are not encoded.
type EntityCodec struct {
	registry *metadata.Registry
}

// NewEntityCodec creates a codec resolving descriptors from registry
func NewEntityCodec(registry *metadata.Registry) *EntityCodec {
	if registry == nil {
		registry = metadata.Default()
	}
	return &EntityCodec{registry: registry}
}

type snapshot struct {
	Fields map[string]any `msgpack:"f"`
	Refs   map[string]any `msgpack:"r,omitempty"`
}

// Marshal encodes a pointer to an entity
func (c *EntityCodec) Marshal(v any) ([]byte, error) {
	d, err := c.registry.ResolveValue(v)
	if err != nil {
		return nil, err
	}
	if !d.Owns(v) {
		return nil, fmt.Errorf("encode %s: expected pointer, got %T", d.Name, v)
	}

	snap := snapshot{Fields: make(map[string]any)}
	for _, col := range d.Columns() {
		switch col.Relation {
		case metadata.OneToMany:
			continue
		case metadata.ManyToOne:
			ref, err := c.reference(col, col.Get(v))
			if err != nil {
				return nil, err
			}
			if ref != nil {
				if snap.Refs == nil {
					snap.Refs = make(map[string]any)
				}
				snap.Refs[col.FieldName] = ref
			}
		default:
			value, err := wireValue(col.Get(v))
			if err != nil {
				return nil, fmt.Errorf("encode %s.%s: %w", d.Name, col.FieldName, err)
			}
			snap.Fields[col.FieldName] = value
		}
	}
	return msgpack.Marshal(&snap)
}

// Unmarshal decodes data into a new *typ
func (c *EntityCodec) Unmarshal(data []byte, typ reflect.Type) (any, error) {
	d, err := c.registry.Resolve(typ)
	if err != nil {
		return nil, err
	}

	var snap snapshot
	if err := msgpack.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", d.Name, err)
	}

	obj := d.New()
	for name, value := range snap.Fields {
		col, err := d.Field(name)
		if err != nil {
			continue
		}
		if err := col.Set(obj, value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Name, err)
		}
	}
	for name, value := range snap.Refs {
		col, err := d.Field(name)
		if err != nil || col.Relation != metadata.ManyToOne {
			continue
		}
		target, err := c.registry.Resolve(col.Target)
		if err != nil {
			return nil, err
		}
		refCol, err := target.Column(col.Reference)
		if err != nil {
			return nil, err
		}
		stub := target.New()
		if err := refCol.Set(stub, value); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Name, err)
		}
		if err := col.Set(obj, stub); err != nil {
			return nil, fmt.Errorf("decode %s: %w", d.Name, err)
		}
	}
	return obj, nil
}

func (c *EntityCodec) reference(col *metadata.ColumnDescriptor, related any) (any, error) {
	rv := reflect.ValueOf(related)
	if !rv.IsValid() || (rv.Kind() == reflect.Ptr && rv.IsNil()) {
		return nil, nil
	}
	target, err := c.registry.Resolve(col.Target)
	if err != nil {
		return nil, err
	}
	refCol, err := target.Column(col.Reference)
	if err != nil {
		return nil, err
	}
	return wireValue(refCol.Get(related))
}

func wireValue(v any) (any, error) {
	if valuer, ok := v.(driver.Valuer); ok {
		return valuer.Value()
	}
	return v, nil
}
