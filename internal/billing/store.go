package billing

import (
	"context"

	"daftar/pkg/domain"
)

// Invoices is the invoice persistence boundary.
type Invoices interface {
	Create(ctx context.Context, inv Invoice) error
	GetByOrderID(ctx context.Context, orderID string) (Invoice, error)
	// MarkPaidIfPending claims the invoice: it flips PENDING to PAID,
	// records the provider's payment reference when one is given, and
	// reports whether this call did the flip. A second claim on the same
	// order returns the invoice with claimed=false.
	MarkPaidIfPending(ctx context.Context, orderID, paymentID string) (Invoice, bool, error)
}

// Notifications is the owner-notification outbox boundary.
type Notifications interface {
	Enqueue(ctx context.Context, n Notification) error
	ListPending(ctx context.Context, limit int) ([]Notification, error)
	MarkSent(ctx context.Context, id domain.DispatchID) error
}
