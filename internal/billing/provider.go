package billing

import (
	"context"

	"github.com/shopspring/decimal"
)

// ProviderInvoice is what we ask the payment provider to collect.
type ProviderInvoice struct {
	OrderID     string
	Amount      decimal.Decimal
	Phone       string
	Description string
}

// ProviderReceipt is the provider's answer: its own reference and the
// checkout URL the customer is sent to.
type ProviderReceipt struct {
	ExternalRef string
	CheckoutURL string
}

// Provider creates invoices with the payment provider. The concrete HTTP
// client lives in the smartpay subpackage.
type Provider interface {
	CreateInvoice(ctx context.Context, inv ProviderInvoice) (ProviderReceipt, error)
}
