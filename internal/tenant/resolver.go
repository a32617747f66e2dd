package tenant

import (
	"context"
	"errors"

	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
	"daftar/pkg/platform/sentinel"
)

// Access is the result of resolving an identity against a store: the store
// itself and the permission bits the identity holds on it. Owners always get
// the full set.
type Access struct {
	Store       Store
	Permissions domain.Permissions
	Owner       bool
}

// AccessResolver answers "may this identity touch this store, and how".
// Every ledger and reminder operation resolves access first.
type AccessResolver struct {
	stores Stores
	grants Grants
}

func NewAccessResolver(stores Stores, grants Grants) *AccessResolver {
	return &AccessResolver{stores: stores, grants: grants}
}

// Resolve loads the store and the caller's permission bits on it. An identity
// with no ownership and no grant gets CodeForbidden; a missing store gets
// CodeNotFound.
func (r *AccessResolver) Resolve(ctx context.Context, identityID domain.IdentityID, storeID domain.StoreID) (Access, error) {
	st, err := r.stores.GetByID(ctx, storeID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Access{}, dErrors.New(dErrors.CodeNotFound, "store not found")
	}
	if err != nil {
		return Access{}, dErrors.Wrap(err, dErrors.CodeInternal, "load store")
	}

	if st.OwnerID == identityID {
		return Access{Store: st, Permissions: domain.FullPermissions(), Owner: true}, nil
	}

	grant, err := r.grants.Get(ctx, storeID, identityID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return Access{}, dErrors.New(dErrors.CodeForbidden, "no access to this store")
	}
	if err != nil {
		return Access{}, dErrors.Wrap(err, dErrors.CodeInternal, "load collaborator grant")
	}
	return Access{Store: st, Permissions: grant.Permissions}, nil
}

// ResolveOwner is Resolve restricted to the store owner.
func (r *AccessResolver) ResolveOwner(ctx context.Context, identityID domain.IdentityID, storeID domain.StoreID) (Access, error) {
	access, err := r.Resolve(ctx, identityID, storeID)
	if err != nil {
		return Access{}, err
	}
	if !access.Owner {
		return Access{}, dErrors.New(dErrors.CodeForbidden, "owner access required")
	}
	return access, nil
}
