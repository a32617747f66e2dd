package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Producer ships one event record to the broker.
type Producer interface {
	Produce(ctx context.Context, key string, value []byte) error
}

// Worker drains the outbox into Kafka. It polls on an interval; a publish
// failure leaves the row unpublished and the next tick retries it.
type Worker struct {
	store    Store
	producer Producer
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

func NewWorker(store Store, producer Producer, logger *slog.Logger, interval time.Duration) *Worker {
	return &Worker{
		store:    store,
		producer: producer,
		logger:   logger,
		interval: interval,
		batch:    100,
	}
}

// Run blocks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := w.Drain(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
			}
		}
	}
}

// Drain publishes one batch of unpublished events. Events are marked
// published individually so a mid-batch failure does not re-send the ones
// that already went out.
func (w *Worker) Drain(ctx context.Context) error {
	events, err := w.store.ListUnpublished(ctx, w.batch)
	if err != nil {
		return err
	}
	var published []uuid.UUID
	for _, ev := range events {
		if err := w.producer.Produce(ctx, ev.Action, ev.Payload); err != nil {
			w.logger.WarnContext(ctx, "audit publish failed, will retry",
				"event_id", ev.ID, "action", ev.Action, "error", err)
			break
		}
		published = append(published, ev.ID)
	}
	if len(published) > 0 {
		if err := w.store.MarkPublished(ctx, published); err != nil {
			return err
		}
		w.logger.DebugContext(ctx, "audit events published", "count", len(published))
	}
	return nil
}
