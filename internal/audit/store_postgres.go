package audit

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	txcontext "daftar/pkg/platform/tx"
)

// PostgresStore persists outbox rows. Insert joins the transaction in ctx
// when present so events commit atomically with the change they describe.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Insert(ctx context.Context, ev Event) error {
	const q = `
		INSERT INTO audit_outbox (id, action, payload, created_at)
		VALUES ($1, $2, $3, $4)`
	if _, err := s.execer(ctx).ExecContext(ctx, q, ev.ID, ev.Action, []byte(ev.Payload), ev.CreatedAt); err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListUnpublished(ctx context.Context, limit int) ([]Event, error) {
	const q = `
		SELECT id, action, payload, created_at
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`
	rows, err := s.execer(ctx).QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list unpublished audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.Payload, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

func (s *PostgresStore) MarkPublished(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	const q = `UPDATE audit_outbox SET published_at = now() WHERE id = ANY($1)`
	if _, err := s.execer(ctx).ExecContext(ctx, q, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark audit events published: %w", err)
	}
	return nil
}
