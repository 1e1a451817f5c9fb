package manager

import (
	"context"
	"database/sql"
	"time"

	"github.com/omegaorm/omega/internal/orm/statement"
)

// GetResult runs raw SQL and returns every row. Results are neither hydrated
// nor cached.
func (m *EntityManager) GetResult(ctx context.Context, sqlText string, params map[string]any) (set *statement.RowSet, err error) {
	defer m.track("GetResult", time.Now(), &err)
	return m.fetch(ctx, sqlText, params)
}

// GetSingleResult runs raw SQL and returns the first row, or nil
func (m *EntityManager) GetSingleResult(ctx context.Context, sqlText string, params map[string]any) (row statement.Row, err error) {
	defer m.track("GetSingleResult", time.Now(), &err)

	set, err := m.fetch(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	return set.Row(0), nil
}

// GetSingleScalarResult runs raw SQL and returns the first column of the
// first row, or nil
func (m *EntityManager) GetSingleScalarResult(ctx context.Context, sqlText string, params map[string]any) (value any, err error) {
	defer m.track("GetSingleScalarResult", time.Now(), &err)

	set, err := m.fetch(ctx, sqlText, params)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 || len(set.Columns) == 0 {
		return nil, nil
	}
	return textValue(set.Rows[0][set.Columns[0]]), nil
}

// Execute runs a raw statement in a transaction and returns the affected
// row count
func (m *EntityManager) Execute(ctx context.Context, sqlText string, params map[string]any) (affected int64, err error) {
	defer m.track("Execute", time.Now(), &err)

	err = m.write(ctx, func(tx *sql.Tx) error {
		var err error
		_, affected, err = m.exec(ctx, tx, sqlText, params)
		return err
	})
	return affected, err
}
