package billing

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"daftar/internal/audit"
	"daftar/internal/identity"
	"daftar/internal/platform/metrics"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
	"daftar/pkg/platform/tx"
)

// Service creates subscription invoices and reconciles payment webhooks.
type Service struct {
	runner        tx.Runner
	invoices      Invoices
	notifications Notifications
	stores        tenant.Stores
	identities    identity.Store
	resolver      *tenant.AccessResolver
	provider      Provider
	webhookSecret string
	audit         audit.Publisher
	logger        *slog.Logger
	metrics       *metrics.Metrics
	tracer        trace.Tracer
	now           func() time.Time
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithAuditPublisher(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(runner tx.Runner, invoices Invoices, notifications Notifications,
	stores tenant.Stores, identities identity.Store, resolver *tenant.AccessResolver,
	provider Provider, webhookSecret string, opts ...Option) *Service {
	s := &Service{
		runner:        runner,
		invoices:      invoices,
		notifications: notifications,
		stores:        stores,
		identities:    identities,
		resolver:      resolver,
		provider:      provider,
		webhookSecret: webhookSecret,
		audit:         audit.Nop{},
		logger:        slog.Default(),
		tracer:        otel.Tracer("daftar/billing"),
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckoutInvoice is a created invoice plus where to send the customer.
type CheckoutInvoice struct {
	Invoice     Invoice
	CheckoutURL string
}

// CreateInvoice starts a subscription purchase. Owner only; the owner must
// have a proven phone because the provider bills against it.
func (s *Service) CreateInvoice(ctx context.Context, actorID domain.IdentityID, storeID domain.StoreID, planName string) (CheckoutInvoice, error) {
	plan, err := tenant.ParsePaidPlan(planName)
	if err != nil {
		return CheckoutInvoice{}, err
	}
	price, err := plan.Price()
	if err != nil {
		return CheckoutInvoice{}, err
	}
	if _, err := s.resolver.ResolveOwner(ctx, actorID, storeID); err != nil {
		return CheckoutInvoice{}, err
	}
	owner, err := s.identities.GetByID(ctx, actorID)
	if err != nil {
		return CheckoutInvoice{}, dErrors.Wrap(err, dErrors.CodeInternal, "load owner identity")
	}
	if !owner.Verified() {
		return CheckoutInvoice{}, dErrors.New(dErrors.CodeForbidden, "a verified phone is required to subscribe")
	}

	now := s.now().UTC()
	orderID := fmt.Sprintf("SUB_%s_%d", storeID, now.UnixMilli())
	receipt, err := s.provider.CreateInvoice(ctx, ProviderInvoice{
		OrderID:     orderID,
		Amount:      price,
		Phone:       owner.Phone,
		Description: fmt.Sprintf("Daftar %s subscription", plan),
	})
	if err != nil {
		return CheckoutInvoice{}, dErrors.Wrap(err, dErrors.CodeProvider, "create provider invoice")
	}

	inv := Invoice{
		ID:          domain.NewInvoiceID(),
		OrderID:     orderID,
		StoreID:     storeID,
		Amount:      price,
		Plan:        plan,
		Status:      InvoicePending,
		ExternalRef: receipt.ExternalRef,
		CreatedAt:   now,
	}
	if err := s.invoices.Create(ctx, inv); err != nil {
		return CheckoutInvoice{}, dErrors.Wrap(err, dErrors.CodeInternal, "store invoice")
	}
	s.logger.InfoContext(ctx, "invoice created",
		"order_id", orderID, "store_id", storeID, "plan", plan)
	return CheckoutInvoice{Invoice: inv, CheckoutURL: receipt.CheckoutURL}, nil
}

// WebhookInput is the provider's payment callback. PaymentID is the
// provider's own reference for the payment, recorded on the invoice when the
// claim succeeds.
type WebhookInput struct {
	Secret    string
	OrderID   string
	PaymentID string
	Status    string
}

// WebhookOutcome says what the reconciler did with a delivery. Everything but
// OutcomeApplied is an acknowledged skip.
type WebhookOutcome string

const (
	OutcomeApplied      WebhookOutcome = "applied"
	OutcomeDuplicate    WebhookOutcome = "duplicate"
	OutcomeUnknownOrder WebhookOutcome = "unknown_order"
	OutcomeIgnored      WebhookOutcome = "ignored"
)

// HandleWebhook reconciles one payment notification. The shared secret is
// checked before anything else. Unknown orders and already-paid invoices are
// acknowledged without effect, so provider retries are harmless. On the first
// delivery for a pending invoice, the subscription activates and the owner
// notification is queued, all in one transaction.
func (s *Service) HandleWebhook(ctx context.Context, in WebhookInput) (WebhookOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "billing.webhook",
		trace.WithAttributes(attribute.String("order.id", in.OrderID)))
	defer span.End()

	if subtle.ConstantTimeCompare([]byte(in.Secret), []byte(s.webhookSecret)) != 1 {
		s.count("unauthorized")
		return "", dErrors.New(dErrors.CodeUnauthorized, "invalid webhook secret")
	}
	if in.Status != "" && in.Status != "PAID" && in.Status != "paid" {
		s.count(string(OutcomeIgnored))
		s.logger.InfoContext(ctx, "webhook ignored", "order_id", in.OrderID, "status", in.Status)
		return OutcomeIgnored, nil
	}

	outcome := OutcomeApplied
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		inv, claimed, err := s.invoices.MarkPaidIfPending(ctx, in.OrderID, in.PaymentID)
		if errors.Is(err, sentinel.ErrNotFound) {
			outcome = OutcomeUnknownOrder
			return nil
		}
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "claim invoice")
		}
		if !claimed {
			outcome = OutcomeDuplicate
			return nil
		}

		end := s.now().UTC().AddDate(0, 1, 0)
		if err := s.stores.ApplySubscription(ctx, inv.StoreID, inv.Plan, end, inv.Plan.Quota()); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "apply subscription")
		}
		if err := s.notifications.Enqueue(ctx, Notification{
			ID:              domain.NewDispatchID(),
			StoreID:         inv.StoreID,
			Plan:            inv.Plan,
			SubscriptionEnd: end,
			CreatedAt:       s.now().UTC(),
		}); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "queue owner notification")
		}
		return s.audit.Emit(ctx, audit.ActionSubscriptionActive, map[string]any{
			"store_id":   inv.StoreID.String(),
			"order_id":   inv.OrderID,
			"payment_id": in.PaymentID,
			"plan":       string(inv.Plan),
		})
	})
	if err != nil {
		s.count("error")
		return "", err
	}
	s.count(string(outcome))
	s.logger.InfoContext(ctx, "webhook reconciled", "order_id", in.OrderID, "outcome", outcome)
	return outcome, nil
}

func (s *Service) count(outcome string) {
	if s.metrics != nil {
		s.metrics.WebhooksProcessed.WithLabelValues(outcome).Inc()
	}
}
