package statement

import (
	"database/sql"
)

// Row maps column names to raw driver values
type Row map[string]any

// Has reports whether the row carries column, even when its value is NULL
func (r Row) Has(column string) bool {
	_, ok := r[column]
	return ok
}

// RowSet is a fully read result
type RowSet struct {
	Columns []string
	Rows    []Row
}

// Len returns the number of rows
func (rs *RowSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Rows)
}

// Row returns row n, or nil when out of range
func (rs *RowSet) Row(n int) Row {
	if rs == nil || n < 0 || n >= len(rs.Rows) {
		return nil
	}
	return rs.Rows[n]
}

// Value returns column of row n, or nil
func (rs *RowSet) Value(column string, n int) any {
	row := rs.Row(n)
	if row == nil {
		return nil
	}
	return row[column]
}

// scanRows reads every row into a map keyed by column name
func scanRows(rows *sql.Rows) (*RowSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	set := &RowSet{Columns: columns}
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		record := make(Row, len(columns))
		for i, col := range columns {
			record[col] = values[i]
		}
		set.Rows = append(set.Rows, record)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
