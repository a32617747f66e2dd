// Package billing sells subscriptions: invoice creation against the payment
// provider and the webhook reconciler that activates plans. The reconciler is
// idempotent; replayed webhooks are acknowledged and skipped.
package billing

import (
	"time"

	"github.com/shopspring/decimal"

	"daftar/internal/tenant"
	"daftar/pkg/domain"
)

type InvoiceStatus string

const (
	InvoicePending InvoiceStatus = "PENDING"
	InvoicePaid    InvoiceStatus = "PAID"
)

// Invoice is one subscription purchase attempt. OrderID is the provider-facing
// key (`SUB_<storeID>_<unixms>`); ExternalRef is the provider's own id.
type Invoice struct {
	ID          domain.InvoiceID
	OrderID     string
	StoreID     domain.StoreID
	Amount      decimal.Decimal
	Plan        tenant.Plan
	Status      InvoiceStatus
	ExternalRef string
	CreatedAt   time.Time
}

// Notification is a queued post-payment owner message, written inside the
// reconcile transaction and dispatched by the notifier afterwards.
type Notification struct {
	ID              domain.DispatchID
	StoreID         domain.StoreID
	Plan            tenant.Plan
	SubscriptionEnd time.Time
	CreatedAt       time.Time
	SentAt          *time.Time
}
