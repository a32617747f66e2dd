package identity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"daftar/internal/platform/postgres"
	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
	txcontext "daftar/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const identityColumns = `id, kind, COALESCE(phone, ''), display_name, language,
	COALESCE(last_active_store, '00000000-0000-0000-0000-000000000000'), last_seen_at, created_at`

func scanIdentity(row *sql.Row) (Identity, error) {
	var (
		ident Identity
		kind  string
	)
	err := row.Scan(&ident.ID, &kind, &ident.Phone, &ident.DisplayName,
		&ident.Language, &ident.LastActiveStore, &ident.LastSeenAt, &ident.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Identity{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Identity{}, fmt.Errorf("scan identity: %w", err)
	}
	ident.Kind = Kind(kind)
	return ident, nil
}

func (s *PostgresStore) Create(ctx context.Context, ident Identity) error {
	const q = `
		INSERT INTO identities (id, kind, phone, display_name, language, last_seen_at, created_at)
		VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6, $7)`
	_, err := s.execer(ctx).ExecContext(ctx, q,
		ident.ID, string(ident.Kind), ident.Phone, ident.DisplayName,
		ident.Language, ident.LastSeenAt, ident.CreatedAt)
	return postgres.ConflictOr(err, "create identity")
}

func (s *PostgresStore) GetByID(ctx context.Context, id domain.IdentityID) (Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE id = $1`
	return scanIdentity(s.execer(ctx).QueryRowContext(ctx, q, id))
}

func (s *PostgresStore) GetByPhone(ctx context.Context, phone string) (Identity, error) {
	q := `SELECT ` + identityColumns + ` FROM identities WHERE phone = $1`
	return scanIdentity(s.execer(ctx).QueryRowContext(ctx, q, phone))
}

func (s *PostgresStore) UpdateProfile(ctx context.Context, id domain.IdentityID, displayName, language string) error {
	const q = `UPDATE identities SET display_name = $2, language = $3 WHERE id = $1`
	return s.mustAffect(ctx, q, "update identity profile", id, displayName, language)
}

func (s *PostgresStore) SetLastActiveStore(ctx context.Context, id domain.IdentityID, storeID domain.StoreID) error {
	const q = `UPDATE identities SET last_active_store = $2, last_seen_at = now() WHERE id = $1`
	return s.mustAffect(ctx, q, "set last active store", id, storeID)
}

func (s *PostgresStore) Promote(ctx context.Context, id domain.IdentityID, phone string) error {
	const q = `UPDATE identities SET kind = $2, phone = $3 WHERE id = $1`
	return s.mustAffect(ctx, q, "promote identity", id, string(KindVerified), phone)
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.IdentityID) error {
	const q = `DELETE FROM identities WHERE id = $1`
	return s.mustAffect(ctx, q, "delete identity", id)
}

func (s *PostgresStore) mustAffect(ctx context.Context, q, op string, args ...any) error {
	res, err := s.execer(ctx).ExecContext(ctx, q, args...)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: rows affected: %w", op, err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
