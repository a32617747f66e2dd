package domain

import (
	"github.com/shopspring/decimal"

	dErrors "daftar/pkg/domain-errors"
)

// Ledger amounts are fixed two-decimal values. ValidateAmount is the single
// gate every balance-changing operation passes its amount through.
//
// Errors: CodeValidation when the amount is non-positive or carries more than
// two decimal places.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}
	if amount.Exponent() < -2 {
		return dErrors.New(dErrors.CodeValidation, "amount must have at most two decimal places")
	}
	return nil
}

// ParseAmount parses external input into a validated amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, dErrors.New(dErrors.CodeValidation, "amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, dErrors.Wrap(err, dErrors.CodeValidation, "invalid amount")
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}
