package http

import (
	"time"

	"daftar/internal/billing"
	"daftar/internal/identity"
	"daftar/internal/ledger"
	"daftar/internal/reminder"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
)

type identityResponse struct {
	ID              string `json:"id"`
	Kind            string `json:"kind"`
	Phone           string `json:"phone,omitempty"`
	DisplayName     string `json:"display_name,omitempty"`
	Language        string `json:"language"`
	LastActiveStore string `json:"last_active_store,omitempty"`
}

func renderIdentity(i identity.Identity) identityResponse {
	out := identityResponse{
		ID:          i.ID.String(),
		Kind:        string(i.Kind),
		Phone:       i.Phone,
		DisplayName: i.DisplayName,
		Language:    i.Language,
	}
	if !i.LastActiveStore.IsNil() {
		out.LastActiveStore = i.LastActiveStore.String()
	}
	return out
}

type sessionResponse struct {
	Token    string           `json:"token"`
	Identity identityResponse `json:"identity"`
}

type storeResponse struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	OwnerID            string     `json:"owner_id"`
	Verified           bool       `json:"verified"`
	VerificationStatus string     `json:"verification_status"`
	Plan               string     `json:"plan"`
	SubscriptionEnd    *time.Time `json:"subscription_end,omitempty"`
	MessageQuota       int        `json:"message_quota"`
	MessageUsed        int        `json:"message_used"`
	CreatedAt          time.Time  `json:"created_at"`
}

func renderStore(s tenant.Store) storeResponse {
	return storeResponse{
		ID:                 s.ID.String(),
		Name:               s.Name,
		OwnerID:            s.OwnerID.String(),
		Verified:           s.Verified,
		VerificationStatus: string(s.VerificationStatus),
		Plan:               string(s.Plan),
		SubscriptionEnd:    s.SubscriptionEnd,
		MessageQuota:       s.MessageQuota,
		MessageUsed:        s.MessageUsed,
		CreatedAt:          s.CreatedAt,
	}
}

type grantResponse struct {
	ID          string             `json:"id"`
	StoreID     string             `json:"store_id"`
	IdentityID  string             `json:"identity_id"`
	Permissions domain.Permissions `json:"permissions"`
	CreatedAt   time.Time          `json:"created_at"`
}

func renderGrant(g tenant.CollaboratorGrant) grantResponse {
	return grantResponse{
		ID:          g.ID.String(),
		StoreID:     g.StoreID.String(),
		IdentityID:  g.IdentityID.String(),
		Permissions: g.Permissions,
		CreatedAt:   g.CreatedAt,
	}
}

type verificationResponse struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	SubmitterID  string    `json:"submitter_id"`
	DocumentType string    `json:"document_type"`
	ProposedName string    `json:"proposed_name"`
	Status       string    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

func renderVerification(v tenant.VerificationRequest) verificationResponse {
	return verificationResponse{
		ID:           v.ID.String(),
		StoreID:      v.StoreID.String(),
		SubmitterID:  v.SubmitterID.String(),
		DocumentType: v.DocumentType,
		ProposedName: v.ProposedName,
		Status:       string(v.Status),
		CreatedAt:    v.CreatedAt,
	}
}

type debtorResponse struct {
	ID           string    `json:"id"`
	StoreID      string    `json:"store_id"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone,omitempty"`
	Balance      string    `json:"balance"`
	LastActivity time.Time `json:"last_activity"`
}

func renderDebtor(d ledger.Debtor) debtorResponse {
	return debtorResponse{
		ID:           d.ID.String(),
		StoreID:      d.StoreID.String(),
		Name:         d.Name,
		Phone:        d.Phone,
		Balance:      d.Balance.String(),
		LastActivity: d.LastActivity,
	}
}

type transactionResponse struct {
	ID           string    `json:"id"`
	DebtorID     string    `json:"debtor_id"`
	Type         string    `json:"type"`
	Amount       string    `json:"amount"`
	Description  string    `json:"description,omitempty"`
	Actor        string    `json:"actor,omitempty"`
	BalanceAfter string    `json:"balance_after"`
	CreatedAt    time.Time `json:"created_at"`
}

func renderTransaction(t ledger.Transaction) transactionResponse {
	return transactionResponse{
		ID:           t.ID.String(),
		DebtorID:     t.DebtorID.String(),
		Type:         string(t.Type),
		Amount:       t.Amount.String(),
		Description:  t.Description,
		Actor:        t.ActorLabel,
		BalanceAfter: t.BalanceAfter.String(),
		CreatedAt:    t.CreatedAt,
	}
}

type decisionResponse struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

type dispatchResponse struct {
	ID        string    `json:"id"`
	MessageID string    `json:"message_id"`
	CreatedAt time.Time `json:"created_at"`
}

func renderDispatch(d reminder.Dispatch) dispatchResponse {
	return dispatchResponse{
		ID:        d.ID.String(),
		MessageID: d.MessageID,
		CreatedAt: d.CreatedAt,
	}
}

type invoiceResponse struct {
	OrderID     string `json:"order_id"`
	Amount      string `json:"amount"`
	Plan        string `json:"plan"`
	Status      string `json:"status"`
	CheckoutURL string `json:"checkout_url"`
}

func renderInvoice(c billing.CheckoutInvoice) invoiceResponse {
	return invoiceResponse{
		OrderID:     c.Invoice.OrderID,
		Amount:      c.Invoice.Amount.String(),
		Plan:        string(c.Invoice.Plan),
		Status:      string(c.Invoice.Status),
		CheckoutURL: c.CheckoutURL,
	}
}
