package metadata

import (
	"fmt"
	"strings"
)

// ColumnType is the semantic type of a mapped column. It drives value
// conversion for custom columns, where every value is stored as text.
type ColumnType int

const (
	String ColumnType = iota
	Binary
	Boolean
	Byte
	Bytes
	Chars
	DateTime
	Decimal
	Double
	Guid
	Int16
	Int32
	Int64
	Money
	Single
	Xml
)

var columnTypeNames = map[ColumnType]string{
	String:   "String",
	Binary:   "Binary",
	Boolean:  "Boolean",
	Byte:     "Byte",
	Bytes:    "Bytes",
	Chars:    "Chars",
	DateTime: "DateTime",
	Decimal:  "Decimal",
	Double:   "Double",
	Guid:     "Guid",
	Int16:    "Int16",
	Int32:    "Int32",
	Int64:    "Int64",
	Money:    "Money",
	Single:   "Single",
	Xml:      "Xml",
}

// deprecated names still accepted in tags
var legacyColumnTypes = map[string]ColumnType{
	"STRING":   String,
	"INTEGER":  Int32,
	"DOUBLE":   Double,
	"BOOLEAN":  Boolean,
	"DATETIME": DateTime,
	"DATE":     DateTime,
	"TIME":     DateTime,
}

// String returns the canonical name of the column type
func (t ColumnType) String() string {
	if name, ok := columnTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("ColumnType(%d)", int(t))
}

// IsNumeric reports whether values of this type are integers or floats
func (t ColumnType) IsNumeric() bool {
	switch t {
	case Byte, Int16, Int32, Int64, Double, Single, Decimal, Money:
		return true
	}
	return false
}

// ParseColumnType resolves a type name from a struct tag. Deprecated
// upper-case aliases are mapped onto their modern equivalents.
func ParseColumnType(name string) (ColumnType, error) {
	if name == "" {
		return String, nil
	}
	if t, ok := legacyColumnTypes[name]; ok {
		return t, nil
	}
	for t, n := range columnTypeNames {
		if strings.EqualFold(n, name) {
			return t, nil
		}
	}
	return String, fmt.Errorf("unknown column type %q", name)
}

// RelationKind identifies how a relationship field is resolved
type RelationKind int

const (
	NoRelation RelationKind = iota
	ManyToOne
	OneToMany
)

func (k RelationKind) String() string {
	switch k {
	case ManyToOne:
		return "ManyToOne"
	case OneToMany:
		return "OneToMany"
	default:
		return "None"
	}
}
