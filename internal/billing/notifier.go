package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"daftar/internal/identity"
	"daftar/internal/messaging"
	"daftar/internal/tenant"
)

// Notifier drains the owner-notification outbox: for each paid subscription
// it texts the store owner that the plan is active. Delivery is best-effort;
// a failed send stays queued for the next tick.
type Notifier struct {
	notifications Notifications
	stores        tenant.Stores
	identities    identity.Store
	sender        messaging.Sender
	logger        *slog.Logger
	interval      time.Duration
	batch         int
}

func NewNotifier(notifications Notifications, stores tenant.Stores, identities identity.Store,
	sender messaging.Sender, logger *slog.Logger, interval time.Duration) *Notifier {
	return &Notifier{
		notifications: notifications,
		stores:        stores,
		identities:    identities,
		sender:        sender,
		logger:        logger,
		interval:      interval,
		batch:         20,
	}
}

// Run blocks until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) error {
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := n.Drain(ctx); err != nil && ctx.Err() == nil {
				n.logger.ErrorContext(ctx, "billing notifier drain failed", "error", err)
			}
		}
	}
}

// Drain processes one batch of pending notifications.
func (n *Notifier) Drain(ctx context.Context) error {
	pending, err := n.notifications.ListPending(ctx, n.batch)
	if err != nil {
		return err
	}
	for _, note := range pending {
		if err := n.deliver(ctx, note); err != nil {
			n.logger.WarnContext(ctx, "owner notification failed, will retry",
				"notification_id", note.ID, "store_id", note.StoreID, "error", err)
			continue
		}
		if err := n.notifications.MarkSent(ctx, note.ID); err != nil {
			return err
		}
	}
	return nil
}

func (n *Notifier) deliver(ctx context.Context, note Notification) error {
	st, err := n.stores.GetByID(ctx, note.StoreID)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	owner, err := n.identities.GetByID(ctx, st.OwnerID)
	if err != nil {
		return fmt.Errorf("load owner: %w", err)
	}
	if owner.Phone == "" {
		// Nothing to deliver to; settle the row so it stops recycling.
		n.logger.WarnContext(ctx, "owner has no phone, dropping notification",
			"notification_id", note.ID, "store_id", note.StoreID)
		return nil
	}
	text := fmt.Sprintf("Daftar: %s plan active for %s until %s.",
		note.Plan, st.Name, note.SubscriptionEnd.Format("2006-01-02"))
	if _, err := n.sender.Send(ctx, owner.Phone, text); err != nil {
		return fmt.Errorf("send owner notification: %w", err)
	}
	return nil
}
