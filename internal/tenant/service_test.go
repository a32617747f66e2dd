package tenant

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daftar/internal/platform/postgres"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

type fixture struct {
	svc      *Service
	stores   *MemoryStores
	grants   *MemoryGrants
	requests *MemoryRequests
	now      time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	stores := NewMemoryStores()
	grants := NewMemoryGrants()
	requests := NewMemoryRequests()
	resolver := NewAccessResolver(stores, grants)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := NewService(postgres.NewMemTxRunner(), stores, grants, requests, resolver,
		WithLogger(slog.New(slog.DiscardHandler)),
		WithClock(func() time.Time { return now }))
	return &fixture{svc: svc, stores: stores, grants: grants, requests: requests, now: now}
}

func TestServiceCreateStore(t *testing.T) {
	ctx := context.Background()

	t.Run("creator becomes owner on the free plan", func(t *testing.T) {
		f := newFixture(t)
		owner := domain.NewIdentityID()

		st, err := f.svc.CreateStore(ctx, owner, "  Dukoni Vali ")
		require.NoError(t, err)

		assert.Equal(t, "Dukoni Vali", st.Name)
		assert.Equal(t, owner, st.OwnerID)
		assert.Equal(t, PlanFree, st.Plan)
		assert.False(t, st.Verified)
		assert.Nil(t, st.SubscriptionEnd)
	})

	t.Run("empty name is rejected", func(t *testing.T) {
		f := newFixture(t)

		_, err := f.svc.CreateStore(ctx, domain.NewIdentityID(), "   ")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
	})
}

func TestServiceCollaborators(t *testing.T) {
	ctx := context.Background()

	t.Run("owner adds a collaborator with default bits", func(t *testing.T) {
		f := newFixture(t)
		owner := domain.NewIdentityID()
		helper := domain.NewIdentityID()
		st, err := f.svc.CreateStore(ctx, owner, "Dukon")
		require.NoError(t, err)

		grant, err := f.svc.AddCollaborator(ctx, owner, st.ID, helper, nil)
		require.NoError(t, err)

		assert.True(t, grant.Permissions.AddDebt)
		assert.True(t, grant.Permissions.AddPayment)
		assert.False(t, grant.Permissions.DeleteDebtor)
	})

	t.Run("duplicate collaborator is a conflict", func(t *testing.T) {
		f := newFixture(t)
		owner := domain.NewIdentityID()
		helper := domain.NewIdentityID()
		st, err := f.svc.CreateStore(ctx, owner, "Dukon")
		require.NoError(t, err)

		_, err = f.svc.AddCollaborator(ctx, owner, st.ID, helper, nil)
		require.NoError(t, err)
		_, err = f.svc.AddCollaborator(ctx, owner, st.ID, helper, nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("collaborators cannot manage collaborators", func(t *testing.T) {
		f := newFixture(t)
		owner := domain.NewIdentityID()
		helper := domain.NewIdentityID()
		st, err := f.svc.CreateStore(ctx, owner, "Dukon")
		require.NoError(t, err)
		_, err = f.svc.AddCollaborator(ctx, owner, st.ID, helper, nil)
		require.NoError(t, err)

		_, err = f.svc.AddCollaborator(ctx, helper, st.ID, domain.NewIdentityID(), nil)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))

		err = f.svc.RemoveCollaborator(ctx, helper, st.ID, helper)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("removing an unknown collaborator is not found", func(t *testing.T) {
		f := newFixture(t)
		owner := domain.NewIdentityID()
		st, err := f.svc.CreateStore(ctx, owner, "Dukon")
		require.NoError(t, err)

		err = f.svc.RemoveCollaborator(ctx, owner, st.ID, domain.NewIdentityID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestServiceVerification(t *testing.T) {
	ctx := context.Background()

	submit := func(t *testing.T, f *fixture) (domain.IdentityID, Store, VerificationRequest) {
		t.Helper()
		owner := domain.NewIdentityID()
		st, err := f.svc.CreateStore(ctx, owner, "Old Name")
		require.NoError(t, err)
		req, err := f.svc.SubmitVerification(ctx, owner, st.ID, "patent", "Dukoni Rasmi")
		require.NoError(t, err)
		return owner, st, req
	}

	t.Run("submission marks the store pending", func(t *testing.T) {
		f := newFixture(t)
		_, st, req := submit(t, f)

		assert.Equal(t, VerificationPending, req.Status)
		stored, err := f.stores.GetByID(ctx, st.ID)
		require.NoError(t, err)
		assert.Equal(t, VerificationPending, stored.VerificationStatus)
	})

	t.Run("approval verifies, renames, and grants a month of trial", func(t *testing.T) {
		f := newFixture(t)
		_, st, req := submit(t, f)

		reviewed, err := f.svc.ReviewVerification(ctx, req.ID, true)
		require.NoError(t, err)
		assert.Equal(t, VerificationApproved, reviewed.Status)

		stored, err := f.stores.GetByID(ctx, st.ID)
		require.NoError(t, err)
		assert.True(t, stored.Verified)
		assert.Equal(t, "Dukoni Rasmi", stored.Name)
		assert.Equal(t, PlanTrial, stored.Plan)
		assert.Equal(t, 100, stored.MessageQuota)
		assert.Equal(t, 0, stored.MessageUsed)
		require.NotNil(t, stored.SubscriptionEnd)
		assert.Equal(t, f.now.AddDate(0, 1, 0), *stored.SubscriptionEnd)
	})

	t.Run("rejection clears the verified flag", func(t *testing.T) {
		f := newFixture(t)
		_, st, req := submit(t, f)

		reviewed, err := f.svc.ReviewVerification(ctx, req.ID, false)
		require.NoError(t, err)
		assert.Equal(t, VerificationRejected, reviewed.Status)

		stored, err := f.stores.GetByID(ctx, st.ID)
		require.NoError(t, err)
		assert.False(t, stored.Verified)
		assert.Equal(t, "Old Name", stored.Name, "rejection never renames")
	})

	t.Run("reviewing twice is a conflict", func(t *testing.T) {
		f := newFixture(t)
		_, _, req := submit(t, f)

		_, err := f.svc.ReviewVerification(ctx, req.ID, true)
		require.NoError(t, err)
		_, err = f.svc.ReviewVerification(ctx, req.ID, false)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})

	t.Run("resubmission while pending is a conflict", func(t *testing.T) {
		f := newFixture(t)
		owner, st, _ := submit(t, f)

		_, err := f.svc.SubmitVerification(ctx, owner, st.ID, "patent", "Another Name")
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
	})
}
