// Package query provides the SQL expression tree and the fluent builder
// that linearizes it into a single statement.
package query

import (
	"fmt"
	"strings"
)

// Render priorities. Higher priorities render first; equal priorities keep
// the order in which they were added.
const (
	PriorityBeginTransaction = 200
	PriorityCreateDatabase   = 200
	PriorityStatement        = 90
	PriorityFrom             = 80
	PriorityJoin             = 70
	PriorityWhere            = 50
	PriorityCondition        = 45
	PriorityGroupBy          = 30
	PriorityHaving           = 20
	PriorityOrderBy          = 10
	PriorityEndTransaction   = -100
)

// Expression is one clause of a statement
type Expression interface {
	Priority() int
	String() string
}

// DefaultAlias is used by From when no alias is given
const DefaultAlias = "t"

// Select renders SELECT [TOP (n)] fields. An empty field list selects *.
type Select struct {
	Fields   []string
	Top      int
	Distinct bool
}

func (s *Select) Priority() int { return PriorityStatement }

func (s *Select) String() string {
	var sb strings.Builder
	sb.WriteString("SELECT ")
	if s.Distinct {
		sb.WriteString("DISTINCT ")
	}
	if s.Top > 0 {
		fmt.Fprintf(&sb, "TOP (%d) ", s.Top)
	}
	if len(s.Fields) == 0 {
		sb.WriteString("*")
	} else {
		sb.WriteString(strings.Join(s.Fields, ", "))
	}
	return sb.String()
}

// From renders FROM table alias, or FROM (subquery) alias
type From struct {
	Table    string
	Alias    string
	Subquery *Builder
}

func (f *From) Priority() int { return PriorityFrom }

func (f *From) String() string {
	alias := f.Alias
	if alias == "" {
		alias = DefaultAlias
	}
	if f.Subquery != nil {
		return fmt.Sprintf("FROM (%s) %s", f.Subquery.String(), alias)
	}
	return fmt.Sprintf("FROM %s %s", f.Table, alias)
}

// Where renders the leading WHERE clause
type Where struct {
	Condition Condition
}

func (w *Where) Priority() int { return PriorityWhere }

func (w *Where) String() string {
	return "WHERE " + w.Condition.String()
}

// AndWhere renders AND (condition) after a Where
type AndWhere struct {
	Condition Condition
}

func (w *AndWhere) Priority() int { return PriorityCondition }

func (w *AndWhere) String() string {
	return "AND (" + w.Condition.String() + ")"
}

// OrWhere renders OR (condition) after a Where
type OrWhere struct {
	Condition Condition
}

func (w *OrWhere) Priority() int { return PriorityCondition }

func (w *OrWhere) String() string {
	return "OR (" + w.Condition.String() + ")"
}

// JoinKind selects the join keyword
type JoinKind int

const (
	PlainJoin JoinKind = iota
	InnerJoin
	LeftJoin
	RightJoin
	FullJoin
)

// String returns the SQL keyword for the join kind
func (k JoinKind) String() string {
	switch k {
	case InnerJoin:
		return "INNER JOIN"
	case LeftJoin:
		return "LEFT JOIN"
	case RightJoin:
		return "RIGHT JOIN"
	case FullJoin:
		return "FULL JOIN"
	default:
		return "JOIN"
	}
}

// Join renders <kind> table alias ON condition
type Join struct {
	Kind  JoinKind
	Table string
	Alias string
	On    Condition
}

func (j *Join) Priority() int { return PriorityJoin }

func (j *Join) String() string {
	var sb strings.Builder
	sb.WriteString(j.Kind.String())
	sb.WriteString(" ")
	sb.WriteString(j.Table)
	if j.Alias != "" {
		sb.WriteString(" ")
		sb.WriteString(j.Alias)
	}
	if j.On != nil {
		sb.WriteString(" ON ")
		sb.WriteString(j.On.String())
	}
	return sb.String()
}

// Direction is an ORDER BY direction
type Direction string

const (
	Asc  Direction = "ASC"
	Desc Direction = "DESC"
)

// OrderItem is one ORDER BY term
type OrderItem struct {
	Field     string
	Direction Direction
}

// OrderBy renders ORDER BY a ASC, b DESC
type OrderBy struct {
	Items []OrderItem
}

func (o *OrderBy) Priority() int { return PriorityOrderBy }

func (o *OrderBy) String() string {
	parts := make([]string, len(o.Items))
	for i, item := range o.Items {
		if item.Direction == "" {
			parts[i] = item.Field
			continue
		}
		parts[i] = item.Field + " " + string(item.Direction)
	}
	return "ORDER BY " + strings.Join(parts, ", ")
}

// GroupBy renders GROUP BY fields
type GroupBy struct {
	Fields []string
}

func (g *GroupBy) Priority() int { return PriorityGroupBy }

func (g *GroupBy) String() string {
	return "GROUP BY " + strings.Join(g.Fields, ", ")
}

// Having renders HAVING condition
type Having struct {
	Condition Condition
}

func (h *Having) Priority() int { return PriorityHaving }

func (h *Having) String() string {
	return "HAVING " + h.Condition.String()
}

// Insert renders INSERT INTO table (a, b) [OUTPUT INSERTED.x] VALUES (@a, @b)
type Insert struct {
	Table  string
	Fields []string
	Output string
}

func (i *Insert) Priority() int { return PriorityStatement }

func (i *Insert) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s)", i.Table, strings.Join(i.Fields, ", "))
	if i.Output != "" {
		fmt.Fprintf(&sb, " OUTPUT INSERTED.%s", i.Output)
	}
	fmt.Fprintf(&sb, " VALUES (%s)", strings.Join(Params(i.Fields...), ", "))
	return sb.String()
}

// Update renders UPDATE table SET a = @a, b = @b
type Update struct {
	Table  string
	Fields []string
}

func (u *Update) Priority() int { return PriorityStatement }

func (u *Update) String() string {
	sets := make([]string, len(u.Fields))
	for i, f := range u.Fields {
		sets[i] = f + " = " + Param(f)
	}
	return fmt.Sprintf("UPDATE %s SET %s", u.Table, strings.Join(sets, ", "))
}

// Delete renders DELETE FROM table
type Delete struct {
	Table string
}

func (d *Delete) Priority() int { return PriorityStatement }

func (d *Delete) String() string {
	return "DELETE FROM " + d.Table
}

// TruncateTable renders TRUNCATE TABLE table
type TruncateTable struct {
	Table string
}

func (t *TruncateTable) Priority() int { return PriorityStatement }

func (t *TruncateTable) String() string {
	return "TRUNCATE TABLE " + t.Table
}

// CreateDatabase renders CREATE DATABASE name
type CreateDatabase struct {
	Name string
}

func (c *CreateDatabase) Priority() int { return PriorityCreateDatabase }

func (c *CreateDatabase) String() string {
	return "CREATE DATABASE " + c.Name
}

// TransactionControl renders BEGIN, COMMIT or ROLLBACK TRANSACTION name
type TransactionControl struct {
	Verb string
	Name string
}

func (t *TransactionControl) Priority() int {
	if t.Verb == "BEGIN" {
		return PriorityBeginTransaction
	}
	return PriorityEndTransaction
}

func (t *TransactionControl) String() string {
	if t.Name == "" {
		return t.Verb + " TRANSACTION"
	}
	return t.Verb + " TRANSACTION " + t.Name
}

// Raw is an arbitrary SQL fragment rendered at an explicit priority
type Raw struct {
	SQL   string
	Level int
}

func (r *Raw) Priority() int { return r.Level }

func (r *Raw) String() string { return r.SQL }

// Param returns the bind parameter name for a column
func Param(field string) string {
	return "@" + field
}

// Params returns the bind parameter names for several columns
func Params(fields ...string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = Param(f)
	}
	return out
}
