// Package tx threads a SQL transaction through context so stores can join an
// atomic unit opened by a service-level Runner without changing signatures.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

var txKey = ctxKey{}

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// Runner is the atomic-unit boundary used by services. The postgres
// implementation opens a transaction and places it in ctx; the in-memory
// implementation serializes callers with a process lock.
type Runner interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}
