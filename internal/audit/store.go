package audit

import (
	"context"

	"github.com/google/uuid"
)

// Store is the outbox persistence boundary.
type Store interface {
	Insert(ctx context.Context, ev Event) error
	// ListUnpublished returns up to limit unpublished events, oldest first.
	ListUnpublished(ctx context.Context, limit int) ([]Event, error)
	MarkPublished(ctx context.Context, ids []uuid.UUID) error
}
