package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"daftar/internal/platform/postgres"
	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
	txcontext "daftar/pkg/platform/tx"
)

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(ctx context.Context, db *sql.DB) execer {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}

// PostgresDebtors persists debtors.
type PostgresDebtors struct {
	db *sql.DB
}

func NewPostgresDebtors(db *sql.DB) *PostgresDebtors {
	return &PostgresDebtors{db: db}
}

func (s *PostgresDebtors) Create(ctx context.Context, d Debtor) error {
	const q = `
		INSERT INTO debtors (id, store_id, name, phone, balance, created_by, last_activity)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := pick(ctx, s.db).ExecContext(ctx, q,
		d.ID, d.StoreID, d.Name, d.Phone, d.Balance, d.CreatedBy, d.LastActivity)
	return postgres.ConflictOr(err, "create debtor")
}

func (s *PostgresDebtors) GetByID(ctx context.Context, id domain.DebtorID) (Debtor, error) {
	const q = `
		SELECT id, store_id, name, phone, balance, created_by, last_activity
		FROM debtors WHERE id = $1`
	var d Debtor
	err := pick(ctx, s.db).QueryRowContext(ctx, q, id).Scan(
		&d.ID, &d.StoreID, &d.Name, &d.Phone, &d.Balance, &d.CreatedBy, &d.LastActivity)
	if errors.Is(err, sql.ErrNoRows) {
		return Debtor{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Debtor{}, fmt.Errorf("get debtor: %w", err)
	}
	return d, nil
}

func (s *PostgresDebtors) ListByStore(ctx context.Context, storeID domain.StoreID) ([]Debtor, error) {
	const q = `
		SELECT id, store_id, name, phone, balance, created_by, last_activity
		FROM debtors
		WHERE store_id = $1
		ORDER BY last_activity DESC`
	rows, err := pick(ctx, s.db).QueryContext(ctx, q, storeID)
	if err != nil {
		return nil, fmt.Errorf("list debtors: %w", err)
	}
	defer rows.Close()

	var out []Debtor
	for rows.Next() {
		var d Debtor
		if err := rows.Scan(&d.ID, &d.StoreID, &d.Name, &d.Phone, &d.Balance,
			&d.CreatedBy, &d.LastActivity); err != nil {
			return nil, fmt.Errorf("scan debtor: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// AdjustBalance is the only balance write. Delta-style SQL keeps concurrent
// entries correct without read-modify-write races.
func (s *PostgresDebtors) AdjustBalance(ctx context.Context, id domain.DebtorID, delta decimal.Decimal) (decimal.Decimal, error) {
	const q = `
		UPDATE debtors
		SET balance = balance + $2, last_activity = now()
		WHERE id = $1
		RETURNING balance`
	var balance decimal.Decimal
	err := pick(ctx, s.db).QueryRowContext(ctx, q, id, delta).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Decimal{}, sentinel.ErrNotFound
	}
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

func (s *PostgresDebtors) Delete(ctx context.Context, id domain.DebtorID) error {
	const q = `DELETE FROM debtors WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete debtor: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete debtor: rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresDebtors) ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error {
	const q = `UPDATE debtors SET created_by = $2 WHERE created_by = $1`
	if _, err := pick(ctx, s.db).ExecContext(ctx, q, from, to); err != nil {
		return fmt.Errorf("reassign debtor creators: %w", err)
	}
	return nil
}

// PostgresTransactions persists ledger entries.
type PostgresTransactions struct {
	db *sql.DB
}

func NewPostgresTransactions(db *sql.DB) *PostgresTransactions {
	return &PostgresTransactions{db: db}
}

func (s *PostgresTransactions) Insert(ctx context.Context, t Transaction) error {
	const q = `
		INSERT INTO transactions (id, debtor_id, type, amount, description, actor_label, balance_after, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := pick(ctx, s.db).ExecContext(ctx, q,
		t.ID, t.DebtorID, string(t.Type), t.Amount, t.Description,
		t.ActorLabel, t.BalanceAfter, t.CreatedAt)
	return postgres.ConflictOr(err, "insert transaction")
}

func (s *PostgresTransactions) GetByID(ctx context.Context, id domain.TransactionID) (Transaction, error) {
	const q = `
		SELECT id, debtor_id, type, amount, description, actor_label, balance_after, created_at
		FROM transactions WHERE id = $1`
	var (
		t   Transaction
		typ string
	)
	err := pick(ctx, s.db).QueryRowContext(ctx, q, id).Scan(
		&t.ID, &t.DebtorID, &typ, &t.Amount, &t.Description,
		&t.ActorLabel, &t.BalanceAfter, &t.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Transaction{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	t.Type = TransactionType(typ)
	return t, nil
}

func (s *PostgresTransactions) ListByDebtor(ctx context.Context, debtorID domain.DebtorID) ([]Transaction, error) {
	const q = `
		SELECT id, debtor_id, type, amount, description, actor_label, balance_after, created_at
		FROM transactions
		WHERE debtor_id = $1
		ORDER BY created_at DESC`
	rows, err := pick(ctx, s.db).QueryContext(ctx, q, debtorID)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var out []Transaction
	for rows.Next() {
		var (
			t   Transaction
			typ string
		)
		if err := rows.Scan(&t.ID, &t.DebtorID, &typ, &t.Amount, &t.Description,
			&t.ActorLabel, &t.BalanceAfter, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		t.Type = TransactionType(typ)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *PostgresTransactions) Delete(ctx context.Context, id domain.TransactionID) error {
	const q = `DELETE FROM transactions WHERE id = $1`
	res, err := pick(ctx, s.db).ExecContext(ctx, q, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete transaction: rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
