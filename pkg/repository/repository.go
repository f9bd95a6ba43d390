// Package repository holds the transaction and row-scanning helpers the
// Postgres stores share.
package repository

import (
	"context"
	"database/sql"
)

// Querier is satisfied by *sql.DB and *sql.Tx.
type Querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Executor is satisfied by *sql.DB and *sql.Tx.
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Scanner is a *sql.Row or *sql.Rows.
type Scanner interface {
	Scan(dest ...any) error
}

// ScanFunc reads one T from the current row.
type ScanFunc[T any] func(Scanner) (T, error)

// WithTx runs fn in a read-write transaction and commits when fn succeeds.
func WithTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	return inTx(ctx, db, nil, fn)
}

// WithReadTx runs fn in a read-only repeatable-read transaction, giving all of
// fn's queries one snapshot.
func WithReadTx[T any](ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) (T, error)) (T, error) {
	return inTx(ctx, db, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}, fn)
}

func inTx[T any](ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(tx *sql.Tx) (T, error)) (result T, err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return result, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if result, err = fn(tx); err != nil {
		var zero T
		return zero, err
	}
	return result, tx.Commit()
}

// QueryOne scans the single row query returns. A missing row surfaces as sql.ErrNoRows.
func QueryOne[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) (T, error) {
	return scan(q.QueryRowContext(ctx, query, args...))
}

// QueryMany scans every row. The result is empty, not nil, when nothing matches.
func QueryMany[T any](ctx context.Context, q Querier, query string, args []any, scan ScanFunc[T]) ([]T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []T{}
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ExecExpectOne runs a statement that must touch exactly one row and
// returns sql.ErrNoRows when it touches none.
func ExecExpectOne(ctx context.Context, e Executor, query string, args ...any) error {
	res, err := e.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
