package ledger

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"daftar/internal/platform/postgres"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	dErrors "daftar/pkg/domain-errors"
)

type fixture struct {
	engine  *Engine
	debtors *MemoryDebtors
	txs     *MemoryTransactions
	owner   domain.IdentityID
	helper  domain.IdentityID
	store   tenant.Store
}

// newFixture seeds a store with an owner and one collaborator holding the
// default bits (debts and payments, no deletion).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	owner := domain.NewIdentityID()
	helper := domain.NewIdentityID()
	stores := tenant.NewMemoryStores()
	grants := tenant.NewMemoryGrants()
	st := tenant.Store{
		ID:        domain.NewStoreID(),
		Name:      "Dukon",
		OwnerID:   owner,
		Plan:      tenant.PlanFree,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, stores.Create(ctx, st))
	require.NoError(t, grants.Add(ctx, tenant.CollaboratorGrant{
		ID:          domain.NewGrantID(),
		StoreID:     st.ID,
		IdentityID:  helper,
		Permissions: domain.DefaultCollaboratorPermissions(),
		CreatedAt:   time.Now().UTC(),
	}))

	txs := NewMemoryTransactions()
	debtors := NewMemoryDebtors(txs)
	engine := NewEngine(postgres.NewMemTxRunner(), debtors, txs,
		tenant.NewAccessResolver(stores, grants),
		WithLogger(slog.New(slog.DiscardHandler)))

	return &fixture{engine: engine, debtors: debtors, txs: txs, owner: owner, helper: helper, store: st}
}

func (f *fixture) newDebtor(t *testing.T) Debtor {
	t.Helper()
	d, err := f.engine.CreateDebtor(context.Background(), f.owner, f.store.ID, "Karim", "900000001")
	require.NoError(t, err)
	return d
}

func amt(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestEngineApply(t *testing.T) {
	ctx := context.Background()

	t.Run("debt raises the balance and snapshots it", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		entry, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("120.50"), Description: "flour",
		})
		require.NoError(t, err)

		assert.True(t, entry.BalanceAfter.Equal(amt("120.50")))
		stored, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(amt("120.50")))
	})

	t.Run("payment lowers the balance", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		_, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("100"),
		})
		require.NoError(t, err)

		entry, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypePayment, Amount: amt("30"),
		})
		require.NoError(t, err)

		assert.True(t, entry.BalanceAfter.Equal(amt("70")))
	})

	t.Run("snapshots are never recomputed after later entries", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		first, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("50"),
		})
		require.NoError(t, err)
		_, err = f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("25"),
		})
		require.NoError(t, err)

		stored, err := f.txs.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, stored.BalanceAfter.Equal(amt("50")))
	})

	t.Run("amount must be positive with at most two decimals", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		for _, bad := range []string{"0", "-5", "10.123"} {
			_, err := f.engine.Apply(ctx, ApplyInput{
				ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
				Type: TypeDebt, Amount: amt(bad),
			})
			require.Error(t, err, "amount %s", bad)
			assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
		}
	})

	t.Run("parallel applies on one debtor never lose an update", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		const workers = 16
		var wg sync.WaitGroup
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := f.engine.Apply(ctx, ApplyInput{
					ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
					Type: TypeDebt, Amount: amt("10.50"),
				})
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		stored, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(amt("168")), "balance %s", stored.Balance)
		entries, err := f.txs.ListByDebtor(ctx, d.ID)
		require.NoError(t, err)
		assert.Len(t, entries, workers)
	})

	t.Run("missing permission bit is forbidden", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)
		// Helper holds only the payment bit on a second store.
		restricted := domain.NewIdentityID()
		stores := tenant.NewMemoryStores()
		grants := tenant.NewMemoryGrants()
		require.NoError(t, stores.Create(ctx, f.store))
		require.NoError(t, grants.Add(ctx, tenant.CollaboratorGrant{
			ID:         domain.NewGrantID(),
			StoreID:    f.store.ID,
			IdentityID: restricted,
			Permissions: domain.Permissions{
				AddDebt: false, AddPayment: true, DeleteDebtor: false,
			},
			CreatedAt: time.Now().UTC(),
		}))
		engine := NewEngine(postgres.NewMemTxRunner(), f.debtors, f.txs,
			tenant.NewAccessResolver(stores, grants),
			WithLogger(slog.New(slog.DiscardHandler)))

		_, err := engine.Apply(ctx, ApplyInput{
			ActorID: restricted, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("10"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	t.Run("debtor from another store reads as missing", func(t *testing.T) {
		f := newFixture(t)
		other := newFixture(t)
		stranger := other.newDebtor(t)

		_, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: stranger.ID,
			Type: TypeDebt, Amount: amt("10"),
		})
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestEngineReverse(t *testing.T) {
	ctx := context.Background()

	t.Run("reversal reverts the balance and removes the entry", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		entry, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("80"),
		})
		require.NoError(t, err)

		require.NoError(t, f.engine.Reverse(ctx, f.owner, f.store.ID, entry.ID))

		stored, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, stored.Balance.IsZero())
		_, err = f.txs.GetByID(ctx, entry.ID)
		assert.Error(t, err)
	})

	t.Run("reversing a payment restores the debt", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		_, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("100"),
		})
		require.NoError(t, err)
		payment, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypePayment, Amount: amt("40"),
		})
		require.NoError(t, err)

		require.NoError(t, f.engine.Reverse(ctx, f.owner, f.store.ID, payment.ID))

		stored, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, stored.Balance.Equal(amt("100")))
	})

	t.Run("reversal demands the bit that created the entry", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		entry, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("80"),
		})
		require.NoError(t, err)

		// Helper has the debt bit, so the reversal is allowed.
		require.NoError(t, f.engine.Reverse(ctx, f.helper, f.store.ID, entry.ID))
	})

	t.Run("unknown transaction is not found", func(t *testing.T) {
		f := newFixture(t)

		err := f.engine.Reverse(ctx, f.owner, f.store.ID, domain.NewTransactionID())
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}

func TestEngineDeleteDebtor(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes debtor and history together", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)
		entry, err := f.engine.Apply(ctx, ApplyInput{
			ActorID: f.owner, StoreID: f.store.ID, DebtorID: d.ID,
			Type: TypeDebt, Amount: amt("15"),
		})
		require.NoError(t, err)

		require.NoError(t, f.engine.DeleteDebtor(ctx, f.owner, f.store.ID, d.ID))

		_, err = f.debtors.GetByID(ctx, d.ID)
		assert.Error(t, err)
		_, err = f.txs.GetByID(ctx, entry.ID)
		assert.Error(t, err, "history goes with the debtor")
	})

	t.Run("default collaborator bits do not allow deletion", func(t *testing.T) {
		f := newFixture(t)
		d := f.newDebtor(t)

		err := f.engine.DeleteDebtor(ctx, f.helper, f.store.ID, d.ID)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}
