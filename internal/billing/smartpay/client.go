// Package smartpay implements billing.Provider against the SmartPay merchant
// invoice API.
package smartpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"daftar/internal/billing"
	"daftar/internal/platform/config"
)

type Client struct {
	invoiceURL string
	token      string
	returnURL  string
	http       *http.Client
}

func New(cfg config.Billing) *Client {
	return &Client{
		invoiceURL: cfg.InvoiceURL,
		token:      cfg.Token,
		returnURL:  cfg.ReturnURL,
		http:       &http.Client{Timeout: cfg.Timeout},
	}
}

type invoiceRequest struct {
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Phone       string `json:"phone"`
	Description string `json:"description"`
	ReturnURL   string `json:"return_url,omitempty"`
}

type invoiceResponse struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
	Message     string `json:"message"`
}

func (c *Client) CreateInvoice(ctx context.Context, inv billing.ProviderInvoice) (billing.ProviderReceipt, error) {
	body, err := json.Marshal(invoiceRequest{
		OrderID:     inv.OrderID,
		Amount:      inv.Amount.StringFixed(2),
		Phone:       inv.Phone,
		Description: inv.Description,
		ReturnURL:   c.returnURL,
	})
	if err != nil {
		return billing.ProviderReceipt{}, fmt.Errorf("marshal invoice request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.invoiceURL, bytes.NewReader(body))
	if err != nil {
		return billing.ProviderReceipt{}, fmt.Errorf("build invoice request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	res, err := c.http.Do(req)
	if err != nil {
		return billing.ProviderReceipt{}, fmt.Errorf("call payment provider: %w", err)
	}
	defer res.Body.Close()

	var parsed invoiceResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return billing.ProviderReceipt{}, fmt.Errorf("decode provider response: %w", err)
	}
	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusCreated {
		return billing.ProviderReceipt{}, fmt.Errorf("provider returned %d: %s", res.StatusCode, parsed.Message)
	}
	if parsed.CheckoutURL == "" {
		return billing.ProviderReceipt{}, fmt.Errorf("provider returned no checkout url")
	}
	return billing.ProviderReceipt{ExternalRef: parsed.ID, CheckoutURL: parsed.CheckoutURL}, nil
}
