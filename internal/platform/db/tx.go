package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// DBTxKey carries an open transaction through a request context. Repositories
// prefer the transaction over the clinic connection when both are present.
const DBTxKey contextKey = "db_tx"

// ErrNoConn reports that the context carries no clinic-scoped connection.
// Callers may treat it differently from a Begin failure on a live connection.
var ErrNoConn = errors.New("no database connection in context")

// WithTx begins a transaction on the clinic-scoped connection and returns a
// derived context carrying it. The caller owns the transaction and must
// Commit or Rollback.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, ErrNoConn
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, err
	}

	return context.WithValue(ctx, DBTxKey, tx), tx, nil
}

// TxFromContext retrieves the active transaction, or nil when none is open.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(DBTxKey).(pgx.Tx)
	return tx
}
