// Package db provides shared postgres helpers: the pool abstraction the
// store is written against and bulk-copy support for record backfills.
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies it,
// so store tests run without a live database.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
	Ping(ctx context.Context) error
	Close()
}

// CopyRecords bulk-inserts source-record rows using the COPY protocol. Used
// by backfills that replay an export into a fresh database.
func CopyRecords(ctx context.Context, pool Pool, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	n, err := pool.CopyFrom(ctx, pgx.Identifier{"source_records"}, columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, eris.Wrap(err, "db: COPY INTO source_records")
	}
	return n, nil
}
