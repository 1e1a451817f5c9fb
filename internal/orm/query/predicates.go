package query

import (
	"fmt"
	"strings"
	"time"
)

// DateTimeLayout is the canonical form of time operands
const DateTimeLayout = "2006-01-02 15:04:05"

// Condition is anything that renders as a boolean SQL expression
type Condition interface {
	String() string
}

// Text is a literal condition
type Text string

func (t Text) String() string { return string(t) }

// Operator represents a comparison operator
type Operator int

const (
	OpEqual Operator = iota
	OpNotEqual
	OpGreaterThan
	OpGreaterThanOrEqual
	OpLessThan
	OpLessThanOrEqual
	OpNotGreaterThan
	OpNotLessThan
	OpLike
	OpIsNull
	OpIsNotNull
)

// String returns the string representation of the operator
func (o Operator) String() string {
	switch o {
	case OpEqual:
		return "="
	case OpNotEqual:
		return "!="
	case OpGreaterThan:
		return ">"
	case OpGreaterThanOrEqual:
		return ">="
	case OpLessThan:
		return "<"
	case OpLessThanOrEqual:
		return "<="
	case OpNotGreaterThan:
		return "!>"
	case OpNotLessThan:
		return "!<"
	case OpLike:
		return "LIKE"
	case OpIsNull:
		return "IS NULL"
	case OpIsNotNull:
		return "IS NOT NULL"
	default:
		return "UNKNOWN"
	}
}

// unary reports whether the operator takes no right operand
func (o Operator) unary() bool {
	return o == OpIsNull || o == OpIsNotNull
}

// Operation compares a left and right operand
type Operation struct {
	Left  any
	Op    Operator
	Right any
}

func (o *Operation) String() string {
	if o.Op.unary() {
		return Operand(o.Left) + " " + o.Op.String()
	}
	return Operand(o.Left) + " " + o.Op.String() + " " + Operand(o.Right)
}

func Eq(left, right any) *Operation  { return &Operation{Left: left, Op: OpEqual, Right: right} }
func Neq(left, right any) *Operation { return &Operation{Left: left, Op: OpNotEqual, Right: right} }
func Gt(left, right any) *Operation  { return &Operation{Left: left, Op: OpGreaterThan, Right: right} }
func Gte(left, right any) *Operation {
	return &Operation{Left: left, Op: OpGreaterThanOrEqual, Right: right}
}
func Lt(left, right any) *Operation { return &Operation{Left: left, Op: OpLessThan, Right: right} }
func Lte(left, right any) *Operation {
	return &Operation{Left: left, Op: OpLessThanOrEqual, Right: right}
}
func Ngt(left, right any) *Operation {
	return &Operation{Left: left, Op: OpNotGreaterThan, Right: right}
}
func Nlt(left, right any) *Operation { return &Operation{Left: left, Op: OpNotLessThan, Right: right} }
func Like(left, pattern any) *Operation {
	return &Operation{Left: left, Op: OpLike, Right: pattern}
}
func IsNull(left any) *Operation    { return &Operation{Left: left, Op: OpIsNull} }
func IsNotNull(left any) *Operation { return &Operation{Left: left, Op: OpIsNotNull} }

// Between renders field BETWEEN low AND high
type Between struct {
	Field any
	Low   any
	High  any
}

func (b *Between) String() string {
	return fmt.Sprintf("%s BETWEEN %s AND %s", Operand(b.Field), Operand(b.Low), Operand(b.High))
}

// In renders field IN (a, b, c)
type In struct {
	Field  any
	Values []any
}

func (in *In) String() string {
	parts := make([]string, len(in.Values))
	for i, v := range in.Values {
		parts[i] = Operand(v)
	}
	return fmt.Sprintf("%s IN (%s)", Operand(in.Field), strings.Join(parts, ", "))
}

// Group joins conditions with a separator, optionally wrapped in parentheses
type Group struct {
	Separator string
	Parts     []Condition
	Wrap      bool
}

func (g *Group) String() string {
	parts := make([]string, 0, len(g.Parts))
	for _, p := range g.Parts {
		if p == nil {
			continue
		}
		parts = append(parts, p.String())
	}
	s := strings.Join(parts, g.Separator)
	if g.Wrap {
		return "(" + s + ")"
	}
	return s
}

// Wrapped returns a copy of the group rendered inside parentheses
func (g *Group) Wrapped() *Group {
	c := *g
	c.Wrap = true
	return &c
}

// AndX joins conditions with AND
func AndX(parts ...Condition) *Group {
	return &Group{Separator: " AND ", Parts: parts}
}

// OrX joins conditions with OR
func OrX(parts ...Condition) *Group {
	return &Group{Separator: " OR ", Parts: parts}
}

// Operand renders a value in its natural SQL form. Times use the canonical
// layout in single quotes and nil renders as NULL.
func Operand(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return "'" + x.Format(DateTimeLayout) + "'"
	case *time.Time:
		if x == nil {
			return "NULL"
		}
		return "'" + x.Format(DateTimeLayout) + "'"
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}
