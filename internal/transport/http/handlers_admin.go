package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"daftar/internal/admin"
	"daftar/internal/otp"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

// AdminHandler owns the operations surface: login, verification review, and
// OTP window inspection.
type AdminHandler struct {
	admin   *admin.Service
	tenants *tenant.Service
	otpLog  otp.RequestLog
}

func NewAdminHandler(svc *admin.Service, tenants *tenant.Service, otpLog otp.RequestLog) *AdminHandler {
	return &AdminHandler{admin: svc, tenants: tenants, otpLog: otpLog}
}

type adminLoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (h *AdminHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req adminLoginRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	token, err := h.admin.Login(r.Context(), clientSource(r), req.Username, req.Password)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token})
}

func (h *AdminHandler) handleListVerifications(w http.ResponseWriter, r *http.Request) {
	pending, err := h.tenants.ListPendingVerifications(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]verificationResponse, 0, len(pending))
	for _, v := range pending {
		out = append(out, renderVerification(v))
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out})
}

type reviewVerificationRequest struct {
	Approve bool `json:"approve"`
}

func (h *AdminHandler) handleReviewVerification(w http.ResponseWriter, r *http.Request) {
	requestID, err := domain.ParseRequestID(chi.URLParam(r, "requestID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req reviewVerificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	vr, err := h.tenants.ReviewVerification(r.Context(), requestID, req.Approve)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, renderVerification(vr))
}

type otpLogEntryResponse struct {
	Phone     string    `json:"phone"`
	Source    string    `json:"source"`
	Device    string    `json:"device,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (h *AdminHandler) handleListOTPRequests(w http.ResponseWriter, r *http.Request) {
	phone, err := domain.NormalizePhone(r.URL.Query().Get("phone"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries, err := h.otpLog.ListByPhone(r.Context(), phone, 50)
	if err != nil {
		writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "list otp requests"))
		return
	}
	out := make([]otpLogEntryResponse, 0, len(entries))
	for _, e := range entries {
		out = append(out, otpLogEntryResponse{
			Phone:     e.Phone,
			Source:    e.Source,
			Device:    e.Device,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": out})
}

type resetOTPRequest struct {
	Phone  string `json:"phone,omitempty"`
	Source string `json:"source,omitempty"`
}

// handleResetOTP lifts a rate-limit window early by deleting its log rows.
func (h *AdminHandler) handleResetOTP(w http.ResponseWriter, r *http.Request) {
	var req resetOTPRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Phone == "" && req.Source == "" {
		writeError(w, r, dErrors.New(dErrors.CodeValidation, "phone or source is required"))
		return
	}
	ctx := r.Context()
	if req.Phone != "" {
		phone, err := domain.NormalizePhone(req.Phone)
		if err != nil {
			writeError(w, r, err)
			return
		}
		if err := h.otpLog.ResetPhone(ctx, phone); err != nil {
			writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "reset phone window"))
			return
		}
	}
	if req.Source != "" {
		if err := h.otpLog.ResetSource(ctx, req.Source); err != nil {
			writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "reset source window"))
			return
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
