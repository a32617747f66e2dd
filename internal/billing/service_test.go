package billing

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daftar/internal/identity"
	"daftar/internal/messaging"
	"daftar/internal/platform/postgres"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

type fakeProvider struct {
	created []ProviderInvoice
	fail    bool
}

func (f *fakeProvider) CreateInvoice(_ context.Context, inv ProviderInvoice) (ProviderReceipt, error) {
	if f.fail {
		return ProviderReceipt{}, errors.New("provider unavailable")
	}
	f.created = append(f.created, inv)
	return ProviderReceipt{ExternalRef: "ext-1", CheckoutURL: "https://pay.example/checkout/1"}, nil
}

type fixture struct {
	svc           *Service
	invoices      *MemoryInvoices
	notifications *MemoryNotifications
	stores        *tenant.MemoryStores
	identities    *identity.MemoryStore
	provider      *fakeProvider
	owner         domain.IdentityID
	store         tenant.Store
	now           time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	f := &fixture{
		invoices:      NewMemoryInvoices(),
		notifications: NewMemoryNotifications(),
		stores:        tenant.NewMemoryStores(),
		identities:    identity.NewMemoryStore(),
		provider:      &fakeProvider{},
		owner:         domain.NewIdentityID(),
		now:           time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, f.identities.Create(ctx, identity.Identity{
		ID:    f.owner,
		Kind:  identity.KindVerified,
		Phone: "992900000001",
	}))
	f.store = tenant.Store{
		ID:      domain.NewStoreID(),
		Name:    "Dukon",
		OwnerID: f.owner,
		Plan:    tenant.PlanFree,
	}
	require.NoError(t, f.stores.Create(ctx, f.store))

	resolver := tenant.NewAccessResolver(f.stores, tenant.NewMemoryGrants())
	f.svc = NewService(postgres.NewMemTxRunner(), f.invoices, f.notifications,
		f.stores, f.identities, resolver, f.provider, "hook-secret",
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(func() time.Time { return f.now }))
	return f
}

func TestServiceCreateInvoice(t *testing.T) {
	ctx := context.Background()

	t.Run("owner gets a pending invoice and a checkout url", func(t *testing.T) {
		f := newFixture(t)

		out, err := f.svc.CreateInvoice(ctx, f.owner, f.store.ID, "PRO")
		require.NoError(t, err)

		assert.Equal(t, InvoicePending, out.Invoice.Status)
		assert.Equal(t, tenant.PlanPro, out.Invoice.Plan)
		assert.True(t, out.Invoice.Amount.Equal(mustPrice(t, tenant.PlanPro)))
		assert.True(t, strings.HasPrefix(out.Invoice.OrderID, "SUB_"+f.store.ID.String()+"_"))
		assert.Equal(t, "https://pay.example/checkout/1", out.CheckoutURL)

		require.Len(t, f.provider.created, 1)
		assert.Equal(t, "992900000001", f.provider.created[0].Phone)
	})

	t.Run("unknown plan is rejected before the provider is called", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateInvoice(ctx, f.owner, f.store.ID, "PLATINUM")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		assert.Empty(t, f.provider.created)
	})

	t.Run("non-owner cannot subscribe the store", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateInvoice(ctx, domain.NewIdentityID(), f.store.ID, "PRO")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("owner without a proven phone cannot subscribe", func(t *testing.T) {
		f := newFixture(t)
		guest := domain.NewIdentityID()
		require.NoError(t, f.identities.Create(ctx, identity.Identity{
			ID:   guest,
			Kind: identity.KindEphemeral,
		}))
		st := tenant.Store{ID: domain.NewStoreID(), Name: "Guest Dukon", OwnerID: guest}
		require.NoError(t, f.stores.Create(ctx, st))

		_, err := f.svc.CreateInvoice(ctx, guest, st.ID, "STANDARD")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("provider failure surfaces as a provider error", func(t *testing.T) {
		f := newFixture(t)
		f.provider.fail = true

		_, err := f.svc.CreateInvoice(ctx, f.owner, f.store.ID, "PRO")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeProvider))
	})
}

func TestServiceHandleWebhook(t *testing.T) {
	ctx := context.Background()

	create := func(t *testing.T, f *fixture, plan string) Invoice {
		t.Helper()
		out, err := f.svc.CreateInvoice(ctx, f.owner, f.store.ID, plan)
		require.NoError(t, err)
		return out.Invoice
	}

	t.Run("wrong secret is rejected before any lookup", func(t *testing.T) {
		f := newFixture(t)
		inv := create(t, f, "PRO")

		_, err := f.svc.HandleWebhook(ctx, WebhookInput{Secret: "nope", OrderID: inv.OrderID})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))

		stored, err := f.invoices.GetByOrderID(ctx, inv.OrderID)
		require.NoError(t, err)
		assert.Equal(t, InvoicePending, stored.Status)
	})

	t.Run("first delivery activates the subscription and queues the owner text", func(t *testing.T) {
		f := newFixture(t)
		inv := create(t, f, "PRO")

		outcome, err := f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: inv.OrderID})
		require.NoError(t, err)
		assert.Equal(t, OutcomeApplied, outcome)

		st, err := f.stores.GetByID(ctx, f.store.ID)
		require.NoError(t, err)
		assert.Equal(t, tenant.PlanPro, st.Plan)
		assert.Equal(t, 300, st.MessageQuota)
		assert.Equal(t, 0, st.MessageUsed)
		require.NotNil(t, st.SubscriptionEnd)
		assert.Equal(t, f.now.AddDate(0, 1, 0), *st.SubscriptionEnd)

		pending, err := f.notifications.ListPending(ctx, 10)
		require.NoError(t, err)
		require.Len(t, pending, 1)
		assert.Equal(t, f.store.ID, pending[0].StoreID)
	})

	t.Run("callback payment reference lands on the invoice", func(t *testing.T) {
		f := newFixture(t)
		inv := create(t, f, "STANDARD")

		_, err := f.svc.HandleWebhook(ctx, WebhookInput{
			Secret: "hook-secret", OrderID: inv.OrderID, PaymentID: "PAY123",
		})
		require.NoError(t, err)

		stored, err := f.invoices.GetByOrderID(ctx, inv.OrderID)
		require.NoError(t, err)
		assert.Equal(t, InvoicePaid, stored.Status)
		assert.Equal(t, "PAY123", stored.ExternalRef)
	})

	t.Run("callback without a payment reference keeps the creation ref", func(t *testing.T) {
		f := newFixture(t)
		inv := create(t, f, "STANDARD")

		_, err := f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: inv.OrderID})
		require.NoError(t, err)

		stored, err := f.invoices.GetByOrderID(ctx, inv.OrderID)
		require.NoError(t, err)
		assert.Equal(t, "ext-1", stored.ExternalRef)
	})

	t.Run("replayed delivery is acknowledged without effect", func(t *testing.T) {
		f := newFixture(t)
		inv := create(t, f, "STANDARD")

		_, err := f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: inv.OrderID})
		require.NoError(t, err)
		// Usage accrues between deliveries; the replay must not reset it.
		require.NoError(t, f.stores.IncrementUsage(ctx, f.store.ID))

		outcome, err := f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: inv.OrderID})
		require.NoError(t, err)
		assert.Equal(t, OutcomeDuplicate, outcome)

		st, err := f.stores.GetByID(ctx, f.store.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, st.MessageUsed)

		pending, err := f.notifications.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1, "no second notification")
	})

	t.Run("unknown order is acknowledged and skipped", func(t *testing.T) {
		f := newFixture(t)

		outcome, err := f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: "SUB_nothing_1"})
		require.NoError(t, err)
		assert.Equal(t, OutcomeUnknownOrder, outcome)
	})

	t.Run("non-success status is acknowledged and ignored", func(t *testing.T) {
		f := newFixture(t)
		inv := create(t, f, "PRO")

		outcome, err := f.svc.HandleWebhook(ctx, WebhookInput{
			Secret: "hook-secret", OrderID: inv.OrderID, Status: "CANCELLED",
		})
		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)

		stored, err := f.invoices.GetByOrderID(ctx, inv.OrderID)
		require.NoError(t, err)
		assert.Equal(t, InvoicePending, stored.Status)
	})
}

func TestNotifierDrain(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers queued notifications to the owner phone", func(t *testing.T) {
		f := newFixture(t)
		inv, err := f.svc.CreateInvoice(ctx, f.owner, f.store.ID, "PRO")
		require.NoError(t, err)
		_, err = f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: inv.Invoice.OrderID})
		require.NoError(t, err)

		sender := &fakeNotifySender{}
		n := NewNotifier(f.notifications, f.stores, f.identities, sender,
			slog.New(slog.DiscardHandler), time.Second)
		require.NoError(t, n.Drain(ctx))

		require.Len(t, sender.sent, 1)
		assert.Equal(t, "992900000001", sender.sent[0].Phone)
		assert.Contains(t, sender.sent[0].Text, "PRO")

		pending, err := f.notifications.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("failed send stays queued", func(t *testing.T) {
		f := newFixture(t)
		inv, err := f.svc.CreateInvoice(ctx, f.owner, f.store.ID, "PRO")
		require.NoError(t, err)
		_, err = f.svc.HandleWebhook(ctx, WebhookInput{Secret: "hook-secret", OrderID: inv.Invoice.OrderID})
		require.NoError(t, err)

		sender := &fakeNotifySender{fail: true}
		n := NewNotifier(f.notifications, f.stores, f.identities, sender,
			slog.New(slog.DiscardHandler), time.Second)
		require.NoError(t, n.Drain(ctx))

		pending, err := f.notifications.ListPending(ctx, 10)
		require.NoError(t, err)
		assert.Len(t, pending, 1)
	})
}

type fakeNotifySender struct {
	sent []struct{ Phone, Text string }
	fail bool
}

func (f *fakeNotifySender) Send(_ context.Context, phone, text string) (string, error) {
	if f.fail {
		return "", errors.New("gateway down")
	}
	f.sent = append(f.sent, struct{ Phone, Text string }{phone, text})
	return "msg-1", nil
}

func (f *fakeNotifySender) QueryStatus(context.Context, string) (messaging.Status, error) {
	return messaging.StatusUnknown, nil
}

func mustPrice(t *testing.T, p tenant.Plan) decimal.Decimal {
	t.Helper()
	price, err := p.Price()
	require.NoError(t, err)
	return price
}
