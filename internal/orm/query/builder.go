package query

import (
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Builder accumulates expressions and renders them as one statement.
// A Builder is not safe for concurrent use.
type Builder struct {
	nodes []Expression
	top   int
}

// New creates an empty builder
func New() *Builder {
	return &Builder{}
}

// Add appends an arbitrary expression
func (b *Builder) Add(e Expression) *Builder {
	if e != nil {
		b.nodes = append(b.nodes, e)
	}
	return b
}

// Select adds a SELECT of the given fields; no fields selects *
func (b *Builder) Select(fields ...string) *Builder {
	return b.Add(&Select{Fields: fields})
}

// SelectDistinct adds a SELECT DISTINCT of the given fields
func (b *Builder) SelectDistinct(fields ...string) *Builder {
	return b.Add(&Select{Fields: fields, Distinct: true})
}

// Top limits every SELECT in the statement to n rows. It may be called
// before or after Select.
func (b *Builder) Top(n int) *Builder {
	b.top = n
	return b
}

// Limit is an alias for Top
func (b *Builder) Limit(n int) *Builder {
	return b.Top(n)
}

// From adds FROM table with an optional alias (default "t")
func (b *Builder) From(table string, alias ...string) *Builder {
	f := &From{Table: table}
	if len(alias) > 0 {
		f.Alias = alias[0]
	}
	return b.Add(f)
}

// FromSubquery adds FROM (sub) alias
func (b *Builder) FromSubquery(sub *Builder, alias string) *Builder {
	return b.Add(&From{Subquery: sub, Alias: alias})
}

// Where adds the leading WHERE condition
func (b *Builder) Where(c Condition) *Builder {
	return b.Add(&Where{Condition: c})
}

// AndWhere adds AND (c)
func (b *Builder) AndWhere(c Condition) *Builder {
	return b.Add(&AndWhere{Condition: c})
}

// OrWhere adds OR (c)
func (b *Builder) OrWhere(c Condition) *Builder {
	return b.Add(&OrWhere{Condition: c})
}

// Filter adds c as WHERE when the statement has no WHERE yet, otherwise as
// AND (c).
func (b *Builder) Filter(c Condition) *Builder {
	if b.hasWhere() {
		return b.AndWhere(c)
	}
	return b.Where(c)
}

// Like filters field LIKE pattern
func (b *Builder) Like(field string, pattern any) *Builder {
	return b.Filter(Like(field, pattern))
}

func (b *Builder) hasWhere() bool {
	for _, n := range b.nodes {
		if _, ok := n.(*Where); ok {
			return true
		}
	}
	return false
}

// Join adds a join of the given kind
func (b *Builder) Join(kind JoinKind, table, alias string, on Condition) *Builder {
	return b.Add(&Join{Kind: kind, Table: table, Alias: alias, On: on})
}

func (b *Builder) InnerJoin(table, alias string, on Condition) *Builder {
	return b.Join(InnerJoin, table, alias, on)
}

func (b *Builder) LeftJoin(table, alias string, on Condition) *Builder {
	return b.Join(LeftJoin, table, alias, on)
}

func (b *Builder) RightJoin(table, alias string, on Condition) *Builder {
	return b.Join(RightJoin, table, alias, on)
}

func (b *Builder) FullJoin(table, alias string, on Condition) *Builder {
	return b.Join(FullJoin, table, alias, on)
}

// OrderBy appends an ordering term; repeated calls extend one ORDER BY clause
func (b *Builder) OrderBy(field string, dir Direction) *Builder {
	for _, n := range b.nodes {
		if o, ok := n.(*OrderBy); ok {
			o.Items = append(o.Items, OrderItem{Field: field, Direction: dir})
			return b
		}
	}
	return b.Add(&OrderBy{Items: []OrderItem{{Field: field, Direction: dir}}})
}

// GroupBy appends grouping fields; repeated calls extend one GROUP BY clause
func (b *Builder) GroupBy(fields ...string) *Builder {
	for _, n := range b.nodes {
		if g, ok := n.(*GroupBy); ok {
			g.Fields = append(g.Fields, fields...)
			return b
		}
	}
	return b.Add(&GroupBy{Fields: fields})
}

// Having adds HAVING c
func (b *Builder) Having(c Condition) *Builder {
	return b.Add(&Having{Condition: c})
}

// InsertInto adds INSERT INTO table (fields) VALUES (@fields)
func (b *Builder) InsertInto(table string, fields ...string) *Builder {
	return b.Add(&Insert{Table: table, Fields: fields})
}

// InsertIntoOutput adds an INSERT that returns the generated output column
func (b *Builder) InsertIntoOutput(table, output string, fields ...string) *Builder {
	return b.Add(&Insert{Table: table, Fields: fields, Output: output})
}

// Update adds UPDATE table SET field = @field, ...
func (b *Builder) Update(table string, fields ...string) *Builder {
	return b.Add(&Update{Table: table, Fields: fields})
}

// DeleteFrom adds DELETE FROM table
func (b *Builder) DeleteFrom(table string) *Builder {
	return b.Add(&Delete{Table: table})
}

// TruncateTable adds TRUNCATE TABLE table
func (b *Builder) TruncateTable(table string) *Builder {
	return b.Add(&TruncateTable{Table: table})
}

// CreateDatabase adds CREATE DATABASE name
func (b *Builder) CreateDatabase(name string) *Builder {
	return b.Add(&CreateDatabase{Name: name})
}

// BeginTransaction adds BEGIN TRANSACTION name. An empty name generates one.
func (b *Builder) BeginTransaction(name string) *Builder {
	if name == "" {
		name = TransactionName()
	}
	return b.Add(&TransactionControl{Verb: "BEGIN", Name: name})
}

// CommitTransaction adds COMMIT TRANSACTION name
func (b *Builder) CommitTransaction(name string) *Builder {
	return b.Add(&TransactionControl{Verb: "COMMIT", Name: name})
}

// RollbackTransaction adds ROLLBACK TRANSACTION name
func (b *Builder) RollbackTransaction(name string) *Builder {
	return b.Add(&TransactionControl{Verb: "ROLLBACK", Name: name})
}

// Raw adds a literal fragment at the given priority
func (b *Builder) Raw(sql string, priority int) *Builder {
	return b.Add(&Raw{SQL: sql, Level: priority})
}

// Expressions returns the accumulated expressions in render order
func (b *Builder) Expressions() []Expression {
	ordered := make([]Expression, len(b.nodes))
	copy(ordered, b.nodes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() > ordered[j].Priority()
	})
	return ordered
}

// String renders the statement
func (b *Builder) String() string {
	parts := make([]string, 0, len(b.nodes))
	for _, n := range b.Expressions() {
		if s, ok := n.(*Select); ok && b.top > 0 {
			limited := *s
			limited.Top = b.top
			n = &limited
		}
		if text := n.String(); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " ")
}

// TransactionName returns a short upper-case name for a named transaction
func TransactionName() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
}
