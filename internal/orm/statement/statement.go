// Package statement executes one rendered SQL statement with bound
// parameters. A Statement runs at most once.
package statement

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// ErrDirtyStatement is returned when a statement is run a second time
var ErrDirtyStatement = errors.New("statement has already been executed")

// Error carries the SQL text of a failed statement
type Error struct {
	SQL string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("statement failed: %v [%s]", e.Err, e.SQL)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ExecQuerier wraps the standard Exec and Query methods. *sql.DB, *sql.Conn
// and *sql.Tx all satisfy it.
type ExecQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Statement is a single-use SQL command
type Statement struct {
	query   string
	conn    ExecQuerier
	tx      *sql.Tx
	params  []sql.NamedArg
	timeout time.Duration

	dirty        bool
	lastInsertID int64
	hasInsertID  bool
}

// New creates a statement for query on conn
func New(query string, conn ExecQuerier) *Statement {
	return &Statement{query: query, conn: conn}
}

// SQL returns the statement text
func (s *Statement) SQL() string {
	return s.query
}

// BindParameter binds value to name. A leading "@" on name is optional.
// nil, nil pointers and the zero time bind as NULL. Rebinding a name
// replaces the earlier value.
func (s *Statement) BindParameter(name string, value any) *Statement {
	arg := sql.Named(strings.TrimPrefix(name, "@"), normalize(value))
	for i := range s.params {
		if s.params[i].Name == arg.Name {
			s.params[i] = arg
			return s
		}
	}
	s.params = append(s.params, arg)
	return s
}

// BindParameters binds every entry of params in key order
func (s *Statement) BindParameters(params map[string]any) *Statement {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		s.BindParameter(k, params[k])
	}
	return s
}

// SetTransaction runs the statement inside tx instead of on the connection
func (s *Statement) SetTransaction(tx *sql.Tx) *Statement {
	s.tx = tx
	return s
}

// WithTimeout bounds the statement's execution time
func (s *Statement) WithTimeout(d time.Duration) *Statement {
	s.timeout = d
	return s
}

// Parameters returns the bound parameters in bind order
func (s *Statement) Parameters() []sql.NamedArg {
	out := make([]sql.NamedArg, len(s.params))
	copy(out, s.params)
	return out
}

// Dirty reports whether the statement has run
func (s *Statement) Dirty() bool {
	return s.dirty
}

// LastInsertID returns the id reported by the driver for the last Execute
func (s *Statement) LastInsertID() (int64, bool) {
	return s.lastInsertID, s.hasInsertID
}

// Close releases the statement. A closed statement cannot run.
func (s *Statement) Close() error {
	s.dirty = true
	s.params = nil
	return nil
}

// Execute runs a statement that returns no rows and reports the number of
// affected rows.
func (s *Statement) Execute(ctx context.Context) (int64, error) {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return 0, err
	}
	defer cancel()

	res, err := s.executor().ExecContext(ctx, s.query, s.args()...)
	if err != nil {
		return 0, &Error{SQL: s.query, Err: err}
	}
	if id, err := res.LastInsertId(); err == nil {
		s.lastInsertID, s.hasInsertID = id, true
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, &Error{SQL: s.query, Err: err}
	}
	return affected, nil
}

// Fetch runs a query and reads every row
func (s *Statement) Fetch(ctx context.Context) (*RowSet, error) {
	ctx, cancel, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	rows, err := s.executor().QueryContext(ctx, s.query, s.args()...)
	if err != nil {
		return nil, &Error{SQL: s.query, Err: err}
	}
	defer rows.Close()

	set, err := scanRows(rows)
	if err != nil {
		return nil, &Error{SQL: s.query, Err: err}
	}
	return set, nil
}

// FetchRow runs a query and returns row n, or nil when there is no such row
func (s *Statement) FetchRow(ctx context.Context, n int) (Row, error) {
	set, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return set.Row(n), nil
}

// FetchValue runs a query and returns column of row n, or nil
func (s *Statement) FetchValue(ctx context.Context, column string, n int) (any, error) {
	set, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return set.Value(column, n), nil
}

// FetchScalar runs a query and returns the first column of the first row,
// or nil when the query returns no rows.
func (s *Statement) FetchScalar(ctx context.Context) (any, error) {
	set, err := s.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if set.Len() == 0 || len(set.Columns) == 0 {
		return nil, nil
	}
	return set.Rows[0][set.Columns[0]], nil
}

func (s *Statement) begin(ctx context.Context) (context.Context, context.CancelFunc, error) {
	if s.dirty {
		return nil, nil, &Error{SQL: s.query, Err: ErrDirtyStatement}
	}
	s.dirty = true
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, s.timeout)
		return ctx, cancel, nil
	}
	return ctx, func() {}, nil
}

func (s *Statement) executor() ExecQuerier {
	if s.tx != nil {
		return s.tx
	}
	return s.conn
}

func (s *Statement) args() []any {
	if len(s.params) == 0 {
		return nil
	}
	args := make([]any, len(s.params))
	for i, p := range s.params {
		args[i] = p
	}
	return args
}

func normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		if v.IsZero() {
			return nil
		}
		return v
	case *time.Time:
		if v == nil || v.IsZero() {
			return nil
		}
		return *v
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice, reflect.Interface:
		if rv.IsNil() {
			return nil
		}
	}
	return value
}
