package query

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestOperator_String(t *testing.T) {
	tests := []struct {
		op   Operator
		want string
	}{
		{OpEqual, "="},
		{OpNotEqual, "!="},
		{OpGreaterThan, ">"},
		{OpGreaterThanOrEqual, ">="},
		{OpLessThan, "<"},
		{OpLessThanOrEqual, "<="},
		{OpNotGreaterThan, "!>"},
		{OpNotLessThan, "!<"},
		{OpLike, "LIKE"},
		{OpIsNull, "IS NULL"},
		{OpIsNotNull, "IS NOT NULL"},
		{Operator(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.op.String())
	}
}

func TestOperation_String(t *testing.T) {
	when := time.Date(2024, 3, 9, 7, 5, 1, 0, time.UTC)
	id := uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name string
		cond Condition
		want string
	}{
		{"eq param", Eq("t.Id", "@id"), "t.Id = @id"},
		{"neq int", Neq("Qty", 3), "Qty != 3"},
		{"gte float", Gte("Price", 9.5), "Price >= 9.5"},
		{"lt", Lt("a", "b"), "a < b"},
		{"lte", Lte("a", "b"), "a <= b"},
		{"gt", Gt("a", "b"), "a > b"},
		{"ngt", Ngt("a", 1), "a !> 1"},
		{"nlt", Nlt("a", 1), "a !< 1"},
		{"date", Gt("CreatedAt", when), "CreatedAt > '2024-03-09 07:05:01'"},
		{"date pointer", Lt("CreatedAt", &when), "CreatedAt < '2024-03-09 07:05:01'"},
		{"nil time pointer", Eq("CreatedAt", (*time.Time)(nil)), "CreatedAt = NULL"},
		{"stringer", Eq("RowGuid", id), "RowGuid = 6ba7b810-9dad-11d1-80b4-00c04fd430c8"},
		{"is null", IsNull("DeletedAt"), "DeletedAt IS NULL"},
		{"is not null", IsNotNull("DeletedAt"), "DeletedAt IS NOT NULL"},
		{"like", Like("Name", "'a%'"), "Name LIKE 'a%'"},
		{"between", &Between{Field: "Price", Low: 1, High: 10}, "Price BETWEEN 1 AND 10"},
		{"in", &In{Field: "Id", Values: []any{1, 2, 3}}, "Id IN (1, 2, 3)"},
		{"text", Text("1 = 1"), "1 = 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.String())
		})
	}
}

func TestGroups(t *testing.T) {
	and := AndX(Eq("a", 1), Eq("b", 2))
	assert.Equal(t, "a = 1 AND b = 2", and.String())
	assert.Equal(t, "(a = 1 AND b = 2)", and.Wrapped().String())
	assert.False(t, and.Wrap)

	or := OrX(Eq("a", 1), and.Wrapped(), nil)
	assert.Equal(t, "a = 1 OR (a = 1 AND b = 2)", or.String())

	sql := New().Select().From("T").Where(OrX(Eq("x", 1), Eq("y", 2))).String()
	assert.Equal(t, "SELECT * FROM T t WHERE x = 1 OR y = 2", sql)
}
