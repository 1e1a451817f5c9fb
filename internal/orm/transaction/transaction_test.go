package transaction

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsolationLevel(t *testing.T) {
	assert.Nil(t, DefaultIsolation.ToSQLOptions())
	assert.Equal(t, sql.LevelSerializable, Serializable.ToSQLOptions().Isolation)
	assert.Equal(t, "READ COMMITTED", ReadCommitted.String())

	level, err := ParseIsolationLevel("repeatable_read")
	require.NoError(t, err)
	assert.Equal(t, RepeatableRead, level)

	_, err = ParseIsolationLevel("chaos")
	assert.Error(t, err)
}

func TestManager_WithTransaction_Commit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO Products").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	err = NewManager(db).WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO Products (Name) VALUES ('x')")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_WithTransaction_RollbackOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("insert failed")
	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO Products").WillReturnError(boom)
	mock.ExpectRollback()

	err = NewManager(db).WithTransaction(context.Background(), func(tx *sql.Tx) error {
		_, err := tx.Exec("INSERT INTO Products (Name) VALUES ('x')")
		return err
	})

	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_WithTransaction_RollbackOnPanic(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.Panics(t, func() {
		_ = NewManager(db).WithTransaction(context.Background(), func(tx *sql.Tx) error {
			panic("boom")
		})
	})
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_WithRetry(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE Products").WillReturnError(errors.New("deadlock detected"))
	mock.ExpectRollback()
	mock.ExpectBegin()
	mock.ExpectExec("UPDATE Products").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	config := &RetryConfig{MaxRetries: 1, Retryable: TransientOnly}
	err = NewManager(db).WithRetry(context.Background(), config, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE Products SET Name = 'y'")
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManager_WithTimeout(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE Products").
		WillDelayFor(200 * time.Millisecond).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err = NewManager(db).WithTimeout(context.Background(), 20*time.Millisecond, func(tx *sql.Tx) error {
		_, err := tx.Exec("UPDATE Products SET Name = 'y'")
		return err
	})

	assert.ErrorIs(t, err, ErrTransactionTimeout)
}

func TestManager_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	ctx := context.Background()
	m := NewManager(db)

	require.NoError(t, m.WithConn(ctx, func(conn *sql.Conn) error {
		_, err := conn.ExecContext(ctx, "CREATE TABLE Products (Id INTEGER PRIMARY KEY, Name TEXT)")
		return err
	}))

	err = m.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO Products (Name) VALUES ('kept')"); err != nil {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	err = m.WithTransaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, "INSERT INTO Products (Name) VALUES ('discarded')"); err != nil {
			return err
		}
		return errors.New("abort")
	})
	require.Error(t, err)

	var count int
	require.NoError(t, db.QueryRowContext(ctx, "SELECT COUNT(*) FROM Products").Scan(&count))
	assert.Equal(t, 1, count)
}
