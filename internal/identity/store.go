package identity

import (
	"context"

	"daftar/pkg/domain"
)

// Store is the identity persistence boundary. Lookups return
// sentinel.ErrNotFound when no row matches.
type Store interface {
	Create(ctx context.Context, id Identity) error
	GetByID(ctx context.Context, id domain.IdentityID) (Identity, error)
	GetByPhone(ctx context.Context, phone string) (Identity, error)
	UpdateProfile(ctx context.Context, id domain.IdentityID, displayName, language string) error
	SetLastActiveStore(ctx context.Context, id domain.IdentityID, storeID domain.StoreID) error
	// Promote flips an identity to verified and binds the phone number.
	Promote(ctx context.Context, id domain.IdentityID, phone string) error
	Delete(ctx context.Context, id domain.IdentityID) error
}

// ReferenceRewriter is implemented by stores holding foreign keys to
// identities. The Merger calls every registered rewriter inside one
// transaction so ownership moves atomically.
type ReferenceRewriter interface {
	ReassignIdentity(ctx context.Context, from, to domain.IdentityID) error
}
