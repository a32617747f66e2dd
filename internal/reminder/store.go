// Package reminder sends debt reminders to debtors, gated by verification,
// subscription, quota, balance, and a per-debtor cooldown that consults the
// gateway's live delivery status.
package reminder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
	txcontext "daftar/pkg/platform/tx"
)

// Dispatch is one recorded reminder send.
type Dispatch struct {
	ID        domain.DispatchID
	StoreID   domain.StoreID
	DebtorID  domain.DebtorID
	MessageID string
	CreatedAt time.Time
}

// Dispatches is the reminder-history boundary.
type Dispatches interface {
	Record(ctx context.Context, d Dispatch) error
	// Latest returns the most recent dispatch for the debtor, or
	// sentinel.ErrNotFound if none was ever sent.
	Latest(ctx context.Context, storeID domain.StoreID, debtorID domain.DebtorID) (Dispatch, error)
}

// PostgresDispatches persists reminder dispatches.
type PostgresDispatches struct {
	db *sql.DB
}

func NewPostgresDispatches(db *sql.DB) *PostgresDispatches {
	return &PostgresDispatches{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresDispatches) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresDispatches) Record(ctx context.Context, d Dispatch) error {
	const q = `
		INSERT INTO reminder_dispatches (id, store_id, debtor_id, message_id, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.execer(ctx).ExecContext(ctx, q,
		d.ID, d.StoreID, d.DebtorID, d.MessageID, d.CreatedAt); err != nil {
		return fmt.Errorf("record reminder dispatch: %w", err)
	}
	return nil
}

func (s *PostgresDispatches) Latest(ctx context.Context, storeID domain.StoreID, debtorID domain.DebtorID) (Dispatch, error) {
	const q = `
		SELECT id, store_id, debtor_id, message_id, created_at
		FROM reminder_dispatches
		WHERE store_id = $1 AND debtor_id = $2
		ORDER BY created_at DESC
		LIMIT 1`
	var d Dispatch
	err := s.execer(ctx).QueryRowContext(ctx, q, storeID, debtorID).Scan(
		&d.ID, &d.StoreID, &d.DebtorID, &d.MessageID, &d.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Dispatch{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Dispatch{}, fmt.Errorf("load latest reminder dispatch: %w", err)
	}
	return d, nil
}

// MemoryDispatches is the in-memory Dispatches for unit tests.
type MemoryDispatches struct {
	mu         sync.Mutex
	dispatches []Dispatch
}

func NewMemoryDispatches() *MemoryDispatches {
	return &MemoryDispatches{}
}

func (s *MemoryDispatches) Record(_ context.Context, d Dispatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dispatches = append(s.dispatches, d)
	return nil
}

func (s *MemoryDispatches) Latest(_ context.Context, storeID domain.StoreID, debtorID domain.DebtorID) (Dispatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.dispatches) - 1; i >= 0; i-- {
		d := s.dispatches[i]
		if d.StoreID == storeID && d.DebtorID == debtorID {
			return d, nil
		}
	}
	return Dispatch{}, sentinel.ErrNotFound
}
