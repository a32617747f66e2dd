package tenant

import (
	"context"
	"time"

	"daftar/pkg/domain"
)

// Stores is the merchant-store persistence boundary. Lookups return
// sentinel.ErrNotFound; updates against missing rows do the same.
type Stores interface {
	Create(ctx context.Context, s Store) error
	GetByID(ctx context.Context, id domain.StoreID) (Store, error)
	SetVerificationPending(ctx context.Context, id domain.StoreID) error
	// ApproveVerification marks the store verified under its proposed name
	// and grants the trial subscription in the same update.
	ApproveVerification(ctx context.Context, id domain.StoreID, name string, end time.Time, quota int) error
	RejectVerification(ctx context.Context, id domain.StoreID) error
	// ApplySubscription activates a paid plan: new quota, zero usage.
	ApplySubscription(ctx context.Context, id domain.StoreID, plan Plan, end time.Time, quota int) error
	// IncrementUsage burns one reminder message from the quota.
	IncrementUsage(ctx context.Context, id domain.StoreID) error
	ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error
}

// Grants is the collaborator-grant persistence boundary. Add returns
// sentinel.ErrConflict for a duplicate (store, identity) pair.
type Grants interface {
	Add(ctx context.Context, g CollaboratorGrant) error
	Remove(ctx context.Context, storeID domain.StoreID, identityID domain.IdentityID) error
	Get(ctx context.Context, storeID domain.StoreID, identityID domain.IdentityID) (CollaboratorGrant, error)
	ListByStore(ctx context.Context, storeID domain.StoreID) ([]CollaboratorGrant, error)
	ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error
}

// Requests is the verification-request persistence boundary.
type Requests interface {
	Create(ctx context.Context, r VerificationRequest) error
	GetByID(ctx context.Context, id domain.RequestID) (VerificationRequest, error)
	ListPending(ctx context.Context) ([]VerificationRequest, error)
	// Settle moves a PENDING request to its final status; a request already
	// settled returns sentinel.ErrInvalidState.
	Settle(ctx context.Context, id domain.RequestID, status VerificationStatus) error
	ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error
}
