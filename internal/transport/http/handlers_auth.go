package http

import (
	"net/http"

	"daftar/internal/identity"
	"daftar/internal/otp"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

// AuthHandler owns login: guest sessions, code issuance, and verification.
type AuthHandler struct {
	otp        *otp.Service
	identities identity.Store
}

func NewAuthHandler(svc *otp.Service, identities identity.Store) *AuthHandler {
	return &AuthHandler{otp: svc, identities: identities}
}

type guestRequest struct {
	Language string `json:"language,omitempty"`
}

func (h *AuthHandler) handleGuest(w http.ResponseWriter, r *http.Request) {
	var req guestRequest
	if r.ContentLength > 0 {
		if err := decodeBody(r, &req); err != nil {
			writeError(w, r, err)
			return
		}
	}
	session, err := h.otp.StartGuest(r.Context(), req.Language)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{
		Token:    session.Token,
		Identity: renderIdentity(session.Identity),
	})
}

type requestCodeRequest struct {
	Phone string `json:"phone"`
}

func (h *AuthHandler) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	var req requestCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.otp.RequestCode(r.Context(), otp.RequestInput{
		Phone:     req.Phone,
		Source:    clientSource(r),
		UserAgent: r.UserAgent(),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"phone": res.Phone})
}

type verifyCodeRequest struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

func (h *AuthHandler) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	var req verifyCodeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	session, err := h.otp.VerifyCode(r.Context(), otp.VerifyInput{
		Phone:    req.Phone,
		Code:     req.Code,
		ActingID: identityFrom(r.Context()),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{
		Token:    session.Token,
		Identity: renderIdentity(session.Identity),
	})
}

func (h *AuthHandler) handleMe(w http.ResponseWriter, r *http.Request) {
	ident, err := h.identities.GetByID(r.Context(), identityFrom(r.Context()))
	if err != nil {
		writeError(w, r, dErrors.Wrap(err, dErrors.CodeUnauthorized, "session identity not found"))
		return
	}
	writeJSON(w, http.StatusOK, renderIdentity(ident))
}

type updateProfileRequest struct {
	DisplayName     string `json:"display_name"`
	Language        string `json:"language"`
	LastActiveStore string `json:"last_active_store,omitempty"`
}

func (h *AuthHandler) handleUpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	ctx := r.Context()
	id := identityFrom(ctx)
	if err := h.identities.UpdateProfile(ctx, id, req.DisplayName, req.Language); err != nil {
		writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "update profile"))
		return
	}
	if req.LastActiveStore != "" {
		storeID, err := domain.ParseStoreID(req.LastActiveStore)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.identities.SetLastActiveStore(ctx, id, storeID); err != nil {
			writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "set last active store"))
			return
		}
	}
	ident, err := h.identities.GetByID(ctx, id)
	if err != nil {
		writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "reload identity"))
		return
	}
	writeJSON(w, http.StatusOK, renderIdentity(ident))
}
