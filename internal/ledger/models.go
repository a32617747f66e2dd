// Package ledger owns debtors and their transaction history. Balances are
// denormalized onto the debtor row and moved only by deltas inside the
// engine's atomic units; every transaction row carries the balance snapshot
// taken at apply time.
package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

// TransactionType says which way a ledger entry moves the debt.
type TransactionType string

const (
	TypeDebt    TransactionType = "DEBT"
	TypePayment TransactionType = "PAYMENT"
)

// ParseTransactionType validates a type from external input.
func ParseTransactionType(s string) (TransactionType, error) {
	switch TransactionType(s) {
	case TypeDebt:
		return TypeDebt, nil
	case TypePayment:
		return TypePayment, nil
	default:
		return "", dErrors.Newf(dErrors.CodeValidation, "unknown transaction type %q", s)
	}
}

// Delta is the signed balance movement for an entry of this type: debts grow
// what the debtor owes, payments shrink it.
func (t TransactionType) Delta(amount decimal.Decimal) decimal.Decimal {
	if t == TypePayment {
		return amount.Neg()
	}
	return amount
}

// Debtor is one customer owing money to a store. Balance is the current debt;
// a negative balance means the debtor is in credit.
type Debtor struct {
	ID           domain.DebtorID
	StoreID      domain.StoreID
	Name         string
	Phone        string
	Balance      decimal.Decimal
	CreatedBy    domain.IdentityID
	LastActivity time.Time
}

// Transaction is one immutable ledger entry. BalanceAfter is the debtor's
// balance right after this entry applied; it is recorded once and never
// recomputed.
type Transaction struct {
	ID           domain.TransactionID
	DebtorID     domain.DebtorID
	Type         TransactionType
	Amount       decimal.Decimal
	Description  string
	ActorLabel   string
	BalanceAfter decimal.Decimal
	CreatedAt    time.Time
}
