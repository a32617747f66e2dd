package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the service. Counters are
// registered once at startup; services receive the struct via options and
// treat a nil receiver as "metrics disabled".
type Metrics struct {
	TransactionsApplied  *prometheus.CounterVec
	TransactionsReversed prometheus.Counter
	DebtorsDeleted       prometheus.Counter
	IdentityMerges       prometheus.Counter
	OTPIssued            prometheus.Counter
	OTPRejected          *prometheus.CounterVec
	WebhooksProcessed    *prometheus.CounterVec
	RemindersSent        prometheus.Counter
	RemindersDenied      *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
}

// New creates and registers all collectors on the default registry.
func New() *Metrics {
	return &Metrics{
		TransactionsApplied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "daftar_ledger_transactions_applied_total",
			Help: "Ledger transactions applied, by type.",
		}, []string{"type"}),
		TransactionsReversed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "daftar_ledger_transactions_reversed_total",
			Help: "Ledger transactions reversed.",
		}),
		DebtorsDeleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "daftar_ledger_debtors_deleted_total",
			Help: "Debtors deleted with their transaction history.",
		}),
		IdentityMerges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "daftar_identity_merges_total",
			Help: "Guest identities merged into canonical verified identities.",
		}),
		OTPIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "daftar_otp_issued_total",
			Help: "Login codes generated and dispatched.",
		}),
		OTPRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "daftar_otp_rejected_total",
			Help: "Login code requests rejected, by reason.",
		}, []string{"reason"}),
		WebhooksProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "daftar_billing_webhooks_total",
			Help: "Billing webhook deliveries, by outcome.",
		}, []string{"outcome"}),
		RemindersSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "daftar_reminders_sent_total",
			Help: "Debtor reminder messages dispatched.",
		}),
		RemindersDenied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "daftar_reminders_denied_total",
			Help: "Reminder dispatches denied by the gate, by reason.",
		}, []string{"reason"}),
		HTTPDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "daftar_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
}
