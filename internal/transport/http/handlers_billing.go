package http

import (
	"encoding/json"
	"net/http"

	"daftar/internal/billing"
)

// BillingHandler owns subscription purchases and the provider webhook.
type BillingHandler struct {
	billing *billing.Service
}

func NewBillingHandler(svc *billing.Service) *BillingHandler {
	return &BillingHandler{billing: svc}
}

type createInvoiceRequest struct {
	Plan string `json:"plan"`
}

func (h *BillingHandler) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createInvoiceRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	checkout, err := h.billing.CreateInvoice(r.Context(), identityFrom(r.Context()), storeID, req.Plan)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderInvoice(checkout))
}

// webhookRequest mirrors the provider's callback body: order_id, payment_id,
// amount, and payment_date, optionally with a status and the shared secret.
type webhookRequest struct {
	Secret      string      `json:"secret,omitempty"`
	OrderID     string      `json:"order_id"`
	PaymentID   string      `json:"payment_id,omitempty"`
	Amount      json.Number `json:"amount,omitempty"`
	PaymentDate string      `json:"payment_date,omitempty"`
	Status      string      `json:"status,omitempty"`
}

// handleWebhook takes the provider's payment callback. The shared secret may
// arrive in the X-Webhook-Secret header or the body; the header wins. Every
// authenticated delivery is answered 200 so the provider stops retrying, with
// the reconciler's outcome in the body.
func (h *BillingHandler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req webhookRequest
	if err := decodeExternalBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	secret := r.Header.Get("X-Webhook-Secret")
	if secret == "" {
		secret = req.Secret
	}
	outcome, err := h.billing.HandleWebhook(r.Context(), billing.WebhookInput{
		Secret:    secret,
		OrderID:   req.OrderID,
		PaymentID: req.PaymentID,
		Status:    req.Status,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"outcome": string(outcome)})
}
