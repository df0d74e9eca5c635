package main

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type fakeAPIDB struct {
	execFn     func(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	queryFn    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRowFn func(ctx context.Context, sql string, args ...any) pgx.Row

	mu      sync.Mutex
	execSQL []string
}

func (f *fakeAPIDB) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	f.mu.Lock()
	f.execSQL = append(f.execSQL, sql)
	f.mu.Unlock()
	if f.execFn != nil {
		return f.execFn(ctx, sql, arguments...)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (f *fakeAPIDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if f.queryFn != nil {
		return f.queryFn(ctx, sql, args...)
	}
	return &fakeAPIRows{}, nil
}

func (f *fakeAPIDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if f.queryRowFn != nil {
		return f.queryRowFn(ctx, sql, args...)
	}
	return fakeAPIRow{err: pgx.ErrNoRows}
}

type fakeAPIRow struct {
	values []any
	err    error
}

func (r fakeAPIRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.values) {
		return errors.New("scan arity mismatch")
	}
	for i := range dest {
		if err := assignAPIScan(dest[i], r.values[i]); err != nil {
			return err
		}
	}
	return nil
}

type fakeAPIRows struct {
	rows [][]any
	idx  int
}

func (r *fakeAPIRows) Close()                                       {}
func (r *fakeAPIRows) Err() error                                   { return nil }
func (r *fakeAPIRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT 1") }
func (r *fakeAPIRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeAPIRows) RawValues() [][]byte                          { return nil }
func (r *fakeAPIRows) Conn() *pgx.Conn                              { return nil }
func (r *fakeAPIRows) Values() ([]any, error)                       { return nil, nil }

func (r *fakeAPIRows) Next() bool {
	if r.idx >= len(r.rows) {
		return false
	}
	r.idx++
	return true
}

func (r *fakeAPIRows) Scan(dest ...any) error {
	if r.idx == 0 || r.idx > len(r.rows) {
		return errors.New("no current row")
	}
	return fakeAPIRow{values: r.rows[r.idx-1]}.Scan(dest...)
}

func assignAPIScan(dest any, value any) error {
	switch d := dest.(type) {
	case *string:
		v, ok := value.(string)
		if !ok {
			return errors.New("value is not string")
		}
		*d = v
	case *int64:
		switch v := value.(type) {
		case int64:
			*d = v
		case int:
			*d = int64(v)
		default:
			return errors.New("value is not int64")
		}
	case *time.Time:
		v, ok := value.(time.Time)
		if !ok {
			return errors.New("value is not time")
		}
		*d = v
	case *bool:
		v, ok := value.(bool)
		if !ok {
			return errors.New("value is not bool")
		}
		*d = v
	default:
		return errors.New("unsupported scan dest")
	}
	return nil
}

// todoRow lays out a todos row in column order.
func todoRow(id int64, owner, text, description, status string, startAt, endAt time.Time) []any {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	return []any{id, owner, text, description, status, startAt, endAt, now, now}
}
