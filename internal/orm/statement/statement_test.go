package statement

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatement_Execute(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	query := "UPDATE Products SET Name = @Name WHERE ProductId = @ProductId"
	mock.ExpectExec(regexp.QuoteMeta(query)).
		WithArgs("widget", 7).
		WillReturnResult(sqlmock.NewResult(0, 1))

	stmt := New(query, db).
		BindParameter("@Name", "widget").
		BindParameter("ProductId", 7)
	defer stmt.Close()

	affected, err := stmt.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.True(t, stmt.Dirty())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_SingleUse(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("DELETE FROM Logs").WillReturnResult(sqlmock.NewResult(0, 3))

	stmt := New("DELETE FROM Logs", db)
	_, err = stmt.Execute(context.Background())
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = stmt.Execute(context.Background())
		assert.ErrorIs(t, err, ErrDirtyStatement)
	}
	_, err = stmt.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrDirtyStatement)
	_, err = stmt.FetchScalar(context.Background())
	assert.ErrorIs(t, err, ErrDirtyStatement)

	var stmtErr *Error
	require.True(t, errors.As(err, &stmtErr))
	assert.Equal(t, "DELETE FROM Logs", stmtErr.SQL)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_ClosedIsDirty(t *testing.T) {
	stmt := New("SELECT 1", nil)
	require.NoError(t, stmt.Close())
	_, err := stmt.Execute(context.Background())
	assert.ErrorIs(t, err, ErrDirtyStatement)
}

func TestStatement_BindNormalizesNull(t *testing.T) {
	var missing *string
	stmt := New("X", nil).
		BindParameter("a", nil).
		BindParameter("b", time.Time{}).
		BindParameter("c", missing).
		BindParameter("d", "kept").
		BindParameter("a", 5)

	params := stmt.Parameters()
	require.Len(t, params, 4)
	assert.Equal(t, sql.Named("a", 5), params[0])
	assert.Nil(t, params[1].Value)
	assert.Nil(t, params[2].Value)
	assert.Equal(t, "kept", params[3].Value)
}

func TestStatement_BindParametersSorted(t *testing.T) {
	stmt := New("X", nil).BindParameters(map[string]any{"b": 2, "@a": 1, "c": 3})
	params := stmt.Parameters()
	require.Len(t, params, 3)
	assert.Equal(t, "a", params[0].Name)
	assert.Equal(t, "b", params[1].Name)
	assert.Equal(t, "c", params[2].Name)
}

func TestStatement_Fetch(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	rows := sqlmock.NewRows([]string{"CategoryId", "Title"}).
		AddRow(int64(1), "Tools").
		AddRow(int64(2), nil)
	mock.ExpectQuery("SELECT CategoryId, Title FROM Categories").WillReturnRows(rows)

	set, err := New("SELECT CategoryId, Title FROM Categories t", db).Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"CategoryId", "Title"}, set.Columns)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, int64(1), set.Value("CategoryId", 0))
	assert.Equal(t, "Tools", set.Value("Title", 0))
	assert.True(t, set.Row(1).Has("Title"))
	assert.Nil(t, set.Value("Title", 1))
	assert.Nil(t, set.Row(2))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_FetchRowAndScalar(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT Title").
		WillReturnRows(sqlmock.NewRows([]string{"Title"}).AddRow("a").AddRow("b"))
	mock.ExpectQuery("SELECT COUNT").
		WithArgs(4).
		WillReturnRows(sqlmock.NewRows([]string{"n"}).AddRow(int64(12)))
	mock.ExpectQuery("SELECT Missing").
		WillReturnRows(sqlmock.NewRows([]string{"x"}))

	ctx := context.Background()
	row, err := New("SELECT Title FROM T", db).FetchRow(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "b", row["Title"])

	n, err := New("SELECT COUNT(*) FROM T WHERE Id = @id", db).BindParameter("id", 4).FetchScalar(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)

	missing, err := New("SELECT Missing FROM T", db).FetchScalar(ctx)
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_ExecutionError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("connection reset")
	mock.ExpectExec("INSERT INTO Products").WillReturnError(boom)

	_, err = New("INSERT INTO Products (Name) VALUES (@Name)", db).
		BindParameter("Name", "x").
		Execute(context.Background())

	var stmtErr *Error
	require.True(t, errors.As(err, &stmtErr))
	assert.Contains(t, stmtErr.SQL, "INSERT INTO Products")
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_RowsAffectedError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	unknown := errors.New("rows affected unavailable")
	mock.ExpectExec("UPDATE Products").
		WillReturnResult(sqlmock.NewErrorResult(unknown))

	affected, err := New("UPDATE Products SET Name = @Name", db).
		BindParameter("Name", "x").
		Execute(context.Background())

	assert.ErrorIs(t, err, unknown)
	assert.Equal(t, int64(0), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_Transaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO Products").WillReturnResult(sqlmock.NewResult(42, 1))
	mock.ExpectCommit()

	ctx := context.Background()
	tx, err := db.BeginTx(ctx, nil)
	require.NoError(t, err)

	stmt := New("INSERT INTO Products (Name) VALUES ('x')", db).SetTransaction(tx)
	_, err = stmt.Execute(ctx)
	require.NoError(t, err)
	require.NoError(t, tx.Commit())

	id, ok := stmt.LastInsertID()
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStatement_Timeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("SELECT 1").
		WillDelayFor(200 * time.Millisecond).
		WillReturnRows(sqlmock.NewRows([]string{"x"}).AddRow(1))

	_, err = New("SELECT 1", db).WithTimeout(20 * time.Millisecond).Fetch(context.Background())
	assert.Error(t, err)
}
