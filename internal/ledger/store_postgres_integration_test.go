//go:build integration

package ledger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"daftar/internal/identity"
	"daftar/internal/platform/postgres"
	"daftar/internal/tenant"
	"daftar/pkg/domain"
	"daftar/pkg/platform/sentinel"
	"daftar/pkg/testutil/containers"
)

type pgFixture struct {
	db           *postgres.TxRunner
	debtors      *PostgresDebtors
	transactions *PostgresTransactions
	store        tenant.Store
	owner        domain.IdentityID
}

func newPgFixture(t *testing.T) *pgFixture {
	t.Helper()
	ctx := context.Background()

	pg := containers.NewPostgresContainer(t)
	require.NoError(t, postgres.EnsureSchema(ctx, pg.DB))

	f := &pgFixture{
		db:           postgres.NewTxRunner(pg.DB),
		debtors:      NewPostgresDebtors(pg.DB),
		transactions: NewPostgresTransactions(pg.DB),
		owner:        domain.NewIdentityID(),
	}

	identities := identity.NewPostgresStore(pg.DB)
	require.NoError(t, identities.Create(ctx, identity.Identity{
		ID:         f.owner,
		Kind:       identity.KindVerified,
		Phone:      "992900000001",
		Language:   "tg",
		LastSeenAt: time.Now().UTC(),
		CreatedAt:  time.Now().UTC(),
	}))

	stores := tenant.NewPostgresStores(pg.DB)
	f.store = tenant.Store{
		ID:        domain.NewStoreID(),
		Name:      "Dukon",
		OwnerID:   f.owner,
		Plan:      tenant.PlanFree,
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, stores.Create(ctx, f.store))
	return f
}

func (f *pgFixture) newDebtor(t *testing.T, ctx context.Context) Debtor {
	t.Helper()
	d := Debtor{
		ID:           domain.NewDebtorID(),
		StoreID:      f.store.ID,
		Name:         "Karim",
		Phone:        "992900000002",
		Balance:      decimal.Zero,
		CreatedBy:    f.owner,
		LastActivity: time.Now().UTC(),
	}
	require.NoError(t, f.debtors.Create(ctx, d))
	return d
}

func TestPostgresDebtorsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test")
	}
	ctx := context.Background()
	f := newPgFixture(t)

	t.Run("adjust balance returns the moved value", func(t *testing.T) {
		d := f.newDebtor(t, ctx)

		balance, err := f.debtors.AdjustBalance(ctx, d.ID, decimal.RequireFromString("120.50"))
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("120.50")))

		balance, err = f.debtors.AdjustBalance(ctx, d.ID, decimal.RequireFromString("-20.50"))
		require.NoError(t, err)
		assert.True(t, balance.Equal(decimal.RequireFromString("100")))

		loaded, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, loaded.Balance.Equal(decimal.RequireFromString("100")))
	})

	t.Run("snapshots survive later balance movement", func(t *testing.T) {
		d := f.newDebtor(t, ctx)

		balance, err := f.debtors.AdjustBalance(ctx, d.ID, decimal.RequireFromString("50"))
		require.NoError(t, err)
		entry := Transaction{
			ID:           domain.NewTransactionID(),
			DebtorID:     d.ID,
			Type:         TypeDebt,
			Amount:       decimal.RequireFromString("50"),
			BalanceAfter: balance,
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, f.transactions.Insert(ctx, entry))

		_, err = f.debtors.AdjustBalance(ctx, d.ID, decimal.RequireFromString("25"))
		require.NoError(t, err)

		loaded, err := f.transactions.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, loaded.BalanceAfter.Equal(decimal.RequireFromString("50")),
			"snapshot must not move with the live balance")
	})

	t.Run("concurrent adjustments never lose an update", func(t *testing.T) {
		d := f.newDebtor(t, ctx)

		const workers = 8
		g, gctx := errgroup.WithContext(ctx)
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				_, err := f.debtors.AdjustBalance(gctx, d.ID, decimal.RequireFromString("12.25"))
				return err
			})
		}
		require.NoError(t, g.Wait())

		loaded, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, loaded.Balance.Equal(decimal.RequireFromString("98")),
			"balance %s", loaded.Balance)
	})

	t.Run("rolled back transaction leaves no trace", func(t *testing.T) {
		d := f.newDebtor(t, ctx)
		boom := errors.New("boom")

		err := f.db.RunInTx(ctx, func(ctx context.Context) error {
			if _, err := f.debtors.AdjustBalance(ctx, d.ID, decimal.RequireFromString("500")); err != nil {
				return err
			}
			return boom
		})
		require.ErrorIs(t, err, boom)

		loaded, err := f.debtors.GetByID(ctx, d.ID)
		require.NoError(t, err)
		assert.True(t, loaded.Balance.IsZero())
	})

	t.Run("deleting the debtor drops its history", func(t *testing.T) {
		d := f.newDebtor(t, ctx)
		entry := Transaction{
			ID:           domain.NewTransactionID(),
			DebtorID:     d.ID,
			Type:         TypeDebt,
			Amount:       decimal.RequireFromString("10"),
			BalanceAfter: decimal.RequireFromString("10"),
			CreatedAt:    time.Now().UTC(),
		}
		require.NoError(t, f.transactions.Insert(ctx, entry))

		require.NoError(t, f.debtors.Delete(ctx, d.ID))

		_, err := f.debtors.GetByID(ctx, d.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
		_, err = f.transactions.GetByID(ctx, entry.ID)
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}
