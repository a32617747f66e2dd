// Package postgres owns the database handle, the schema bootstrap, and the
// transactional Runner that services use as their atomic-unit boundary.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"daftar/internal/platform/config"
	"daftar/pkg/platform/sentinel"
	txcontext "daftar/pkg/platform/tx"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, cfg config.Postgres) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// TxRunner runs functions inside a SQL transaction. The transaction is placed
// in context so every store touched by fn joins the same atomic unit.
type TxRunner struct {
	db *sql.DB
}

func NewTxRunner(db *sql.DB) *TxRunner {
	return &TxRunner{db: db}
}

func (r *TxRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := txcontext.From(ctx); ok {
		// Already inside a transaction; join it.
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(txcontext.WithTx(ctx, tx)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsUniqueViolation reports whether err is a unique-constraint rejection.
// Stores use it to translate 23505 into sentinel.ErrConflict.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}

// ConflictOr maps unique violations to sentinel.ErrConflict and wraps
// everything else with the given operation name.
func ConflictOr(err error, op string) error {
	if err == nil {
		return nil
	}
	if IsUniqueViolation(err) {
		return sentinel.ErrConflict
	}
	return fmt.Errorf("%s: %w", op, err)
}
