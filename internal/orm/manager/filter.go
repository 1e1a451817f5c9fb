package manager

import (
	"fmt"

	"github.com/omegaorm/omega/internal/orm/query"
)

// Filter is an ordered list of column equality conditions. The first
// condition renders as WHERE and the rest as AND clauses, in order.
type Filter struct {
	terms []term
}

type term struct {
	column string
	value  any
}

// By starts a filter on column = value
func By(column string, value any) *Filter {
	return (&Filter{}).And(column, value)
}

// And appends column = value
func (f *Filter) And(column string, value any) *Filter {
	f.terms = append(f.terms, term{column: column, value: value})
	return f
}

// Len returns the number of conditions; a nil filter has none
func (f *Filter) Len() int {
	if f == nil {
		return 0
	}
	return len(f.terms)
}

// apply adds the conditions to b and returns the parameters they bind.
// A column filtered twice gets a numbered parameter.
func (f *Filter) apply(b *query.Builder) map[string]any {
	params := make(map[string]any, f.Len())
	if f == nil {
		return params
	}
	for i, t := range f.terms {
		name := t.column
		if _, taken := params[name]; taken {
			name = fmt.Sprintf("%s_%d", t.column, i)
		}
		params[name] = t.value
		b.Filter(query.Eq(t.column, query.Param(name)))
	}
	return params
}
