// Package audit records domain events into a transactional outbox and ships
// them to Kafka. Writes join the caller's transaction, so an event is only
// persisted when the state change that produced it commits.
package audit

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Actions recorded by the service. The payload shape varies per action.
const (
	ActionIdentityMerged       = "identity.merged"
	ActionIdentityPromoted     = "identity.promoted"
	ActionStoreCreated         = "store.created"
	ActionStoreVerified        = "store.verified"
	ActionCollaboratorAdded    = "collaborator.added"
	ActionCollaboratorRemoved  = "collaborator.removed"
	ActionTransactionApplied   = "transaction.applied"
	ActionTransactionReversed  = "transaction.reversed"
	ActionDebtorDeleted        = "debtor.deleted"
	ActionSubscriptionActive   = "subscription.activated"
	ActionReminderSent         = "reminder.sent"
	ActionAdminLoginSucceeded  = "admin.login.succeeded"
	ActionAdminLoginRejected   = "admin.login.rejected"
	ActionVerificationReviewed = "verification.reviewed"
)

// Event is one outbox row awaiting publication.
type Event struct {
	ID          uuid.UUID
	Action      string
	Payload     json.RawMessage
	CreatedAt   time.Time
	PublishedAt *time.Time
}
