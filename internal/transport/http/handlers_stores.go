package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"daftar/internal/tenant"
	"daftar/pkg/domain"
)

// StoreHandler owns store lifecycle, collaborators, and verification
// submission.
type StoreHandler struct {
	tenants *tenant.Service
}

func NewStoreHandler(tenants *tenant.Service) *StoreHandler {
	return &StoreHandler{tenants: tenants}
}

func storeIDParam(r *http.Request) (domain.StoreID, error) {
	return domain.ParseStoreID(chi.URLParam(r, "storeID"))
}

type createStoreRequest struct {
	Name string `json:"name"`
}

func (h *StoreHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.tenants.CreateStore(r.Context(), identityFrom(r.Context()), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderStore(st))
}

func (h *StoreHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	access, err := h.tenants.Access(r.Context(), identityFrom(r.Context()), storeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"store":       renderStore(access.Store),
		"permissions": access.Permissions,
		"owner":       access.Owner,
	})
}

type addCollaboratorRequest struct {
	IdentityID  string              `json:"identity_id"`
	Permissions *domain.Permissions `json:"permissions,omitempty"`
}

func (h *StoreHandler) handleAddCollaborator(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req addCollaboratorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	collaboratorID, err := domain.ParseIdentityID(req.IdentityID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	grant, err := h.tenants.AddCollaborator(r.Context(), identityFrom(r.Context()),
		storeID, collaboratorID, req.Permissions)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderGrant(grant))
}

func (h *StoreHandler) handleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	collaboratorID, err := domain.ParseIdentityID(chi.URLParam(r, "identityID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.tenants.RemoveCollaborator(r.Context(), identityFrom(r.Context()), storeID, collaboratorID); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *StoreHandler) handleListCollaborators(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	grants, err := h.tenants.ListCollaborators(r.Context(), identityFrom(r.Context()), storeID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]grantResponse, 0, len(grants))
	for _, g := range grants {
		out = append(out, renderGrant(g))
	}
	writeJSON(w, http.StatusOK, map[string]any{"collaborators": out})
}

type submitVerificationRequest struct {
	DocumentType string `json:"document_type"`
	ProposedName string `json:"proposed_name"`
}

func (h *StoreHandler) handleSubmitVerification(w http.ResponseWriter, r *http.Request) {
	storeID, err := storeIDParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req submitVerificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vr, err := h.tenants.SubmitVerification(r.Context(), identityFrom(r.Context()),
		storeID, req.DocumentType, req.ProposedName)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, renderVerification(vr))
}
