package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"daftar/pkg/domain"
)

// Debtors is the debtor persistence boundary.
type Debtors interface {
	Create(ctx context.Context, d Debtor) error
	GetByID(ctx context.Context, id domain.DebtorID) (Debtor, error)
	ListByStore(ctx context.Context, storeID domain.StoreID) ([]Debtor, error)
	// AdjustBalance moves the balance by delta and returns the new value.
	// The debtor's last-activity timestamp advances with it.
	AdjustBalance(ctx context.Context, id domain.DebtorID, delta decimal.Decimal) (decimal.Decimal, error)
	// Delete removes the debtor and, through the schema, its transactions.
	Delete(ctx context.Context, id domain.DebtorID) error
	ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error
}

// Transactions is the ledger-entry persistence boundary.
type Transactions interface {
	Insert(ctx context.Context, t Transaction) error
	GetByID(ctx context.Context, id domain.TransactionID) (Transaction, error)
	ListByDebtor(ctx context.Context, debtorID domain.DebtorID) ([]Transaction, error)
	Delete(ctx context.Context, id domain.TransactionID) error
}
