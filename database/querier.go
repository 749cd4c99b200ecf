package database

import (
	"context"
	"database/sql"
)

// Querier is the query surface shared by *sql.DB and *sql.Tx. Handlers run
// against the plain connection by default; WithTx rebinds them to a
// transaction so one chunk's resolution and writes stay atomic.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ Querier = (*sql.DB)(nil)
	_ Querier = (*sql.Tx)(nil)
)
