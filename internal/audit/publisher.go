package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	dErrors "daftar/pkg/domain-errors"
)

// Publisher is the emission side of the outbox. Services hold this interface;
// handing them the concrete recorder or the nop keeps audit optional.
type Publisher interface {
	Emit(ctx context.Context, action string, payload any) error
}

// Recorder writes events to the outbox store. When called inside a
// transaction the insert joins it.
type Recorder struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

func NewRecorder(store Store, logger *slog.Logger) *Recorder {
	return &Recorder{store: store, logger: logger, now: time.Now}
}

func (r *Recorder) Emit(ctx context.Context, action string, payload any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "marshal audit payload")
	}
	ev := Event{
		ID:        uuid.New(),
		Action:    action,
		Payload:   raw,
		CreatedAt: r.now().UTC(),
	}
	if err := r.store.Insert(ctx, ev); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "record audit event")
	}
	r.logger.DebugContext(ctx, "audit event recorded", "action", action, "event_id", ev.ID)
	return nil
}

// Nop discards events. Used when auditing is disabled and in tests that do
// not assert on the audit trail.
type Nop struct{}

func (Nop) Emit(context.Context, string, any) error { return nil }
