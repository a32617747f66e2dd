package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"daftar/internal/admin"
	"daftar/internal/billing"
	"daftar/internal/identity"
	"daftar/internal/ledger"
	"daftar/internal/otp"
	"daftar/internal/platform/metrics"
	"daftar/internal/reminder"
	"daftar/internal/tenant"
)

// Deps carries everything the router wires together.
type Deps struct {
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
	Issuer     *otp.TokenIssuer
	OTP        *otp.Service
	OTPLog     otp.RequestLog
	Identities identity.Store
	Tenants    *tenant.Service
	Ledger     *ledger.Engine
	Reminders  *reminder.Gate
	Billing    *billing.Service
	Admin      *admin.Service
}

// NewRouter builds the full route tree. Auth endpoints are open, the webhook
// authenticates itself with the shared secret, everything else sits behind a
// session or an admin token.
func NewRouter(d Deps) http.Handler {
	auth := NewAuthHandler(d.OTP, d.Identities)
	stores := NewStoreHandler(d.Tenants)
	books := NewLedgerHandler(d.Ledger, d.Reminders, d.Identities)
	bills := NewBillingHandler(d.Billing)
	ops := NewAdminHandler(d.Admin, d.Tenants, d.OTPLog)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(d.Logger, d.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/guest", auth.handleGuest)
		r.Post("/auth/otp/request", auth.handleRequestCode)
		r.With(optionalSession(d.Issuer)).Post("/auth/otp/verify", auth.handleVerifyCode)

		r.Post("/billing/webhook", bills.handleWebhook)

		r.Group(func(r chi.Router) {
			r.Use(sessionAuth(d.Issuer))

			r.Get("/me", auth.handleMe)
			r.Put("/me", auth.handleUpdateMe)

			r.Post("/stores", stores.handleCreate)
			r.Route("/stores/{storeID}", func(r chi.Router) {
				r.Get("/", stores.handleGet)
				r.Post("/verification", stores.handleSubmitVerification)
				r.Get("/collaborators", stores.handleListCollaborators)
				r.Post("/collaborators", stores.handleAddCollaborator)
				r.Delete("/collaborators/{identityID}", stores.handleRemoveCollaborator)

				r.Post("/subscription", bills.handleCreateInvoice)

				r.Post("/debtors", books.handleCreateDebtor)
				r.Get("/debtors", books.handleListDebtors)
				r.Route("/debtors/{debtorID}", func(r chi.Router) {
					r.Get("/", books.handleGetDebtor)
					r.Delete("/", books.handleDeleteDebtor)
					r.Post("/transactions", books.handleApplyTransaction)
					r.Get("/transactions", books.handleListTransactions)
					r.Delete("/transactions/{transactionID}", books.handleReverseTransaction)
					r.Get("/reminder", books.handleCheckReminder)
					r.Post("/reminder", books.handleSendReminder)
				})
			})
		})

		r.Post("/admin/login", ops.handleLogin)
		r.Group(func(r chi.Router) {
			r.Use(adminAuth(d.Admin))
			r.Get("/admin/verifications", ops.handleListVerifications)
			r.Post("/admin/verifications/{requestID}", ops.handleReviewVerification)
			r.Get("/admin/otp/requests", ops.handleListOTPRequests)
			r.Post("/admin/otp/reset", ops.handleResetOTP)
		})
	})

	return r
}
