package reminder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"daftar/internal/audit"
	"daftar/internal/ledger"
	"daftar/internal/messaging"
	"daftar/internal/platform/metrics"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
	"daftar/pkg/platform/tx"
)

// Denial reasons reported by the gate.
const (
	ReasonUnverified     = "unverified"
	ReasonNoSubscription = "no_subscription"
	ReasonQuotaExhausted = "quota_exhausted"
	ReasonNoDebt         = "no_debt"
	ReasonNoPhone        = "no_phone"
	ReasonCooldown       = "cooldown"
)

// Decision is the gate's verdict for one debtor.
type Decision struct {
	Allowed bool
	Reason  string
}

// Gate decides whether a reminder may go out and sends it when it may.
// The cooldown check asks the SMS gateway for the previous message's live
// status rather than trusting anything cached: a reminder that failed to
// deliver does not block the next one.
type Gate struct {
	runner     tx.Runner
	dispatches Dispatches
	stores     tenant.Stores
	debtors    ledger.Debtors
	resolver   *tenant.AccessResolver
	sender     messaging.Sender
	cooldown   time.Duration
	audit      audit.Publisher
	logger     *slog.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

type Option func(*Gate)

func WithLogger(l *slog.Logger) Option {
	return func(g *Gate) { g.logger = l }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(g *Gate) { g.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func NewGate(runner tx.Runner, dispatches Dispatches, stores tenant.Stores,
	debtors ledger.Debtors, resolver *tenant.AccessResolver, sender messaging.Sender,
	cooldown time.Duration, opts ...Option) *Gate {
	g := &Gate{
		runner:     runner,
		dispatches: dispatches,
		stores:     stores,
		debtors:    debtors,
		resolver:   resolver,
		sender:     sender,
		cooldown:   cooldown,
		audit:      audit.Nop{},
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Check runs every gate condition for the debtor and reports the first one
// that fails. Access errors (no membership, missing store or debtor) come
// back as errors, not denials.
func (g *Gate) Check(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, debtorID domain.DebtorID) (Decision, error) {
	access, err := g.resolver.Resolve(ctx, actorID, storeID)
	if err != nil {
		return Decision{}, err
	}
	debtor, err := g.loadStoreDebtor(ctx, storeID, debtorID)
	if err != nil {
		return Decision{}, err
	}
	return g.decide(ctx, access.Store, debtor)
}

func (g *Gate) decide(ctx context.Context, st tenant.Store, debtor ledger.Debtor) (Decision, error) {
	now := g.now().UTC()
	switch {
	case !st.Verified:
		return Decision{Reason: ReasonUnverified}, nil
	case !st.SubscriptionActive(now):
		return Decision{Reason: ReasonNoSubscription}, nil
	case st.QuotaRemaining() == 0:
		return Decision{Reason: ReasonQuotaExhausted}, nil
	case !debtor.Balance.IsPositive():
		return Decision{Reason: ReasonNoDebt}, nil
	case debtor.Phone == "":
		return Decision{Reason: ReasonNoPhone}, nil
	}

	last, err := g.dispatches.Latest(ctx, st.ID, debtor.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Decision{Allowed: true}, nil
	}
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeInternal, "load last dispatch")
	}
	if now.Sub(last.CreatedAt) >= g.cooldown {
		return Decision{Allowed: true}, nil
	}

	// Inside the cooldown window the live gateway status decides: only a
	// failed previous delivery unblocks an early resend.
	status, err := g.sender.QueryStatus(ctx, last.MessageID)
	if err != nil {
		return Decision{}, dErrors.Wrap(err, dErrors.CodeProvider, "query delivery status")
	}
	if status == messaging.StatusFailed {
		return Decision{Allowed: true}, nil
	}
	return Decision{Reason: ReasonCooldown}, nil
}

// Send runs the gate and, when allowed, dispatches the reminder. History row
// and quota burn land in one atomic unit after the gateway accepts the
// message.
func (g *Gate) Send(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, debtorID domain.DebtorID) (Dispatch, error) {
	access, err := g.resolver.Resolve(ctx, actorID, storeID)
	if err != nil {
		return Dispatch{}, err
	}
	debtor, err := g.loadStoreDebtor(ctx, storeID, debtorID)
	if err != nil {
		return Dispatch{}, err
	}
	decision, err := g.decide(ctx, access.Store, debtor)
	if err != nil {
		return Dispatch{}, err
	}
	if !decision.Allowed {
		if g.metrics != nil {
			g.metrics.RemindersDenied.WithLabelValues(decision.Reason).Inc()
		}
		g.logger.InfoContext(ctx, "reminder denied",
			"store_id", storeID, "debtor_id", debtorID, "reason", decision.Reason)
		return Dispatch{}, denialError(decision.Reason)
	}

	text := fmt.Sprintf("%s: your debt is %s TJS. Please settle it.",
		access.Store.Name, debtor.Balance.StringFixed(2))
	messageID, err := g.sender.Send(ctx, debtor.Phone, text)
	if err != nil {
		return Dispatch{}, dErrors.Wrap(err, dErrors.CodeProvider, "dispatch reminder")
	}

	dispatch := Dispatch{
		ID:        domain.NewDispatchID(),
		StoreID:   storeID,
		DebtorID:  debtorID,
		MessageID: messageID,
		CreatedAt: g.now().UTC(),
	}
	err = g.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := g.dispatches.Record(ctx, dispatch); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "record dispatch")
		}
		if err := g.stores.IncrementUsage(ctx, storeID); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "burn message quota")
		}
		return g.audit.Emit(ctx, audit.ActionReminderSent, map[string]any{
			"store_id":  storeID.String(),
			"debtor_id": debtorID.String(),
		})
	})
	if err != nil {
		return Dispatch{}, err
	}
	if g.metrics != nil {
		g.metrics.RemindersSent.Inc()
	}
	g.logger.InfoContext(ctx, "reminder sent",
		"store_id", storeID, "debtor_id", debtorID, "message_id", messageID)
	return dispatch, nil
}

func (g *Gate) loadStoreDebtor(ctx context.Context, storeID domain.StoreID, debtorID domain.DebtorID) (ledger.Debtor, error) {
	debtor, err := g.debtors.GetByID(ctx, debtorID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return ledger.Debtor{}, dErrors.New(dErrors.CodeNotFound, "debtor not found")
	}
	if err != nil {
		return ledger.Debtor{}, dErrors.Wrap(err, dErrors.CodeInternal, "load debtor")
	}
	if debtor.StoreID != storeID {
		return ledger.Debtor{}, dErrors.New(dErrors.CodeNotFound, "debtor not found")
	}
	return debtor, nil
}

func denialError(reason string) error {
	switch reason {
	case ReasonQuotaExhausted, ReasonCooldown:
		return dErrors.Newf(dErrors.CodeRateLimited, "reminder denied: %s", reason)
	case ReasonNoDebt, ReasonNoPhone:
		return dErrors.Newf(dErrors.CodeValidation, "reminder denied: %s", reason)
	default:
		return dErrors.Newf(dErrors.CodeForbidden, "reminder denied: %s", reason)
	}
}
