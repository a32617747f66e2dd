package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"daftar/internal/identity"
	"daftar/internal/ledger"
	"daftar/internal/reminder"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

// LedgerHandler owns debtors, their transaction history, and reminders.
type LedgerHandler struct {
	ledger     *ledger.Engine
	reminders  *reminder.Gate
	identities identity.Store
}

func NewLedgerHandler(engine *ledger.Engine, gate *reminder.Gate, identities identity.Store) *LedgerHandler {
	return &LedgerHandler{ledger: engine, reminders: gate, identities: identities}
}

func debtorIDParam(r *http.Request) (domain.DebtorID, error) {
	return domain.ParseDebtorID(chi.URLParam(r, "debtorID"))
}

type createDebtorRequest struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

func (h *LedgerHandler) handleCreateDebtor(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req createDebtorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.ledger.CreateDebtor(r.Context(), identityFrom(r.Context()), storeID, req.Name, req.Phone)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderDebtor(d))
}

func (h *LedgerHandler) handleListDebtors(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtors, err := h.ledger.ListDebtors(r.Context(), identityFrom(r.Context()), storeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]debtorResponse, 0, len(debtors))
	for _, d := range debtors {
		out = append(out, renderDebtor(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"debtors": out})
}

func (h *LedgerHandler) handleGetDebtor(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtorID, err := debtorIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.ledger.GetDebtor(r.Context(), identityFrom(r.Context()), storeID, debtorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderDebtor(d))
}

func (h *LedgerHandler) handleDeleteDebtor(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtorID, err := debtorIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.ledger.DeleteDebtor(r.Context(), identityFrom(r.Context()), storeID, debtorID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type applyTransactionRequest struct {
	Type        string `json:"type"`
	Amount      string `json:"amount"`
	Description string `json:"description,omitempty"`
}

func (h *LedgerHandler) handleApplyTransaction(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtorID, err := debtorIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req applyTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	txType, err := ledger.ParseTransactionType(req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, r, dErrors.New(dErrors.CodeValidation, "amount must be a decimal number"))
		return
	}

	ctx := r.Context()
	actorID := identityFrom(ctx)
	entry, err := h.ledger.Apply(ctx, ledger.ApplyInput{
		ActorID:     actorID,
		ActorLabel:  h.actorLabel(r),
		StoreID:     storeID,
		DebtorID:    debtorID,
		Type:        txType,
		Amount:      amount,
		Description: req.Description,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderTransaction(entry))
}

func (h *LedgerHandler) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtorID, err := debtorIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.ledger.ListTransactions(r.Context(), identityFrom(r.Context()), storeID, debtorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]transactionResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, renderTransaction(e))
	}
	writeJSON(w, http.StatusOK, map[string]any{"transactions": out})
}

func (h *LedgerHandler) handleReverseTransaction(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	transactionID, err := domain.ParseTransactionID(chi.URLParam(r, "transactionID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.ledger.Reverse(r.Context(), identityFrom(r.Context()), storeID, transactionID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *LedgerHandler) handleCheckReminder(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtorID, err := debtorIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	decision, err := h.reminders.Check(r.Context(), identityFrom(r.Context()), storeID, debtorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decisionResponse{Allowed: decision.Allowed, Reason: decision.Reason})
}

func (h *LedgerHandler) handleSendReminder(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	debtorID, err := debtorIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	dispatch, err := h.reminders.Send(r.Context(), identityFrom(r.Context()), storeID, debtorID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderDispatch(dispatch))
}

// actorLabel names the caller on the transaction row so history stays
// readable after collaborators come and go.
func (h *LedgerHandler) actorLabel(r *http.Request) string {
	ident, err := h.identities.GetByID(r.Context(), identityFrom(r.Context()))
	if err != nil {
		return ""
	}
	if ident.DisplayName != "" {
		return ident.DisplayName
	}
	return ident.Phone
}
