package billing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"daftar/internal/platform/postgres"
	"daftar/internal/tenant"
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

// PostgresInvoices persists invoices.
type PostgresInvoices struct {
	db *sql.DB
}

func NewPostgresInvoices(db *sql.DB) *PostgresInvoices {
	return &PostgresInvoices{db: db}
}

const invoiceColumns = `id, order_id, store_id, amount, plan, status, external_ref, created_at`

func scanInvoice(row *sql.Row) (Invoice, error) {
	var (
		inv    Invoice
		plan   string
		status string
	)
	err := row.Scan(&inv.ID, &inv.OrderID, &inv.StoreID, &inv.Amount,
		&plan, &status, &inv.ExternalRef, &inv.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Invoice{}, sentinel.ErrNotFound
	}
	if err != nil {
		return Invoice{}, fmt.Errorf("scan invoice: %w", err)
	}
	inv.Plan = tenant.Plan(plan)
	inv.Status = InvoiceStatus(status)
	return inv, nil
}

func (s *PostgresInvoices) Create(ctx context.Context, inv Invoice) error {
	const q = `
		INSERT INTO invoices (id, order_id, store_id, amount, plan, status, external_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := pick(ctx, s.db).ExecContext(ctx, q,
		inv.ID, inv.OrderID, inv.StoreID, inv.Amount, string(inv.Plan),
		string(inv.Status), inv.ExternalRef, inv.CreatedAt)
	return postgres.ConflictOr(err, "create invoice")
}

func (s *PostgresInvoices) GetByOrderID(ctx context.Context, orderID string) (Invoice, error) {
	q := `SELECT ` + invoiceColumns + ` FROM invoices WHERE order_id = $1`
	return scanInvoice(pick(ctx, s.db).QueryRowContext(ctx, q, orderID))
}

func (s *PostgresInvoices) MarkPaidIfPending(ctx context.Context, orderID, paymentID string) (Invoice, bool, error) {
	q := `
		UPDATE invoices SET status = 'PAID',
			external_ref = COALESCE(NULLIF($2, ''), external_ref)
		WHERE order_id = $1 AND status = 'PENDING'
		RETURNING ` + invoiceColumns
	inv, err := scanInvoice(pick(ctx, s.db).QueryRowContext(ctx, q, orderID, paymentID))
	if err == nil {
		return inv, true, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return Invoice{}, false, err
	}
	// No pending row; either already paid or unknown order.
	inv, err = s.GetByOrderID(ctx, orderID)
	if err != nil {
		return Invoice{}, false, err
	}
	return inv, false, nil
}

// PostgresNotifications persists the owner-notification outbox.
type PostgresNotifications struct {
	db *sql.DB
}

func NewPostgresNotifications(db *sql.DB) *PostgresNotifications {
	return &PostgresNotifications{db: db}
}

func (s *PostgresNotifications) Enqueue(ctx context.Context, n Notification) error {
	const q = `
		INSERT INTO billing_notifications (id, store_id, plan, subscription_end, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := pick(ctx, s.db).ExecContext(ctx, q,
		n.ID, n.StoreID, string(n.Plan), n.SubscriptionEnd, n.CreatedAt); err != nil {
		return fmt.Errorf("enqueue billing notification: %w", err)
	}
	return nil
}

func (s *PostgresNotifications) ListPending(ctx context.Context, limit int) ([]Notification, error) {
	const q = `
		SELECT id, store_id, plan, subscription_end, created_at
		FROM billing_notifications
		WHERE sent_at IS NULL
		ORDER BY created_at
		LIMIT $1`
	rows, err := pick(ctx, s.db).QueryContext(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending billing notifications: %w", err)
	}
	defer rows.Close()

	var out []Notification
	for rows.Next() {
		var (
			n    Notification
			plan string
		)
		if err := rows.Scan(&n.ID, &n.StoreID, &plan, &n.SubscriptionEnd, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan billing notification: %w", err)
		}
		n.Plan = tenant.Plan(plan)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *PostgresNotifications) MarkSent(ctx context.Context, id domain.DispatchID) error {
	const q = `UPDATE billing_notifications SET sent_at = now() WHERE id = $1`
	if _, err := pick(ctx, s.db).ExecContext(ctx, q, id); err != nil {
		return fmt.Errorf("mark billing notification sent: %w", err)
	}
	return nil
}
