package tokenomics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdsale/internal/models"
)

func TestTryReserve(t *testing.T) {
	ctx := context.Background()

	t.Run("Allocation Example", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		tier := seedTier(t, repo, saleTier())
		wallet := newWallet()

		res, err := engine.Reserve(ctx, tier.ID, d("500"), wallet, t0)
		require.NoError(t, err)
		assert.True(t, d("10000").Equal(res.Purchase.TokenAmount))
		assert.True(t, d("10000").Equal(res.Tier.Sold))
		assert.True(t, res.Tier.IsActive)

		_, err = engine.Reserve(ctx, tier.ID, d("49500100"), wallet, t0)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrAllocationExceeded))
		assert.Equal(t, KindStateConflict, KindOf(err))

		var coreErr *Error
		require.True(t, errors.As(err, &coreErr))
		assert.True(t, d("990002000").Equal(*coreErr.Requested))
		assert.True(t, d("990000").Equal(*coreErr.Limit))

		stored, err := repo.GetTier(ctx, tier.ID)
		require.NoError(t, err)
		assert.True(t, d("10000").Equal(stored.Sold), "rejected purchase must not change sold")
	})

	t.Run("Validation Order", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		tier := seedTier(t, repo, saleTier())
		inactive := saleTier()
		inactive.IsActive = false
		inactive = seedTier(t, repo, inactive)
		wallet := newWallet()

		tests := []struct {
			name   string
			tierID uint
			usd    string
			wallet string
			want   *Error
		}{
			{"bad address", tier.ID, "500", "not-a-wallet", ErrInvalidAddress},
			{"empty address", tier.ID, "500", "", ErrInvalidAddress},
			{"unknown tier", 9999, "500", wallet, ErrTierNotFound},
			{"inactive tier", inactive.ID, "500", wallet, ErrTierInactive},
			{"below minimum", tier.ID, "9.99", wallet, ErrBelowMinimum},
			{"above maximum", tier.ID, "100000000.01", wallet, ErrAboveMaximum},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := engine.Reserve(ctx, tt.tierID, d(tt.usd), tt.wallet, t0)
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			})
		}
	})

	t.Run("Sale Window", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		tier := saleTier()
		starts := t0
		ends := t0.Add(48 * time.Hour)
		tier.StartsAt = &starts
		tier.EndsAt = &ends
		tier = seedTier(t, repo, tier)
		wallet := newWallet()

		_, err := engine.Reserve(ctx, tier.ID, d("500"), wallet, t0.Add(-time.Second))
		assert.True(t, errors.Is(err, ErrTierInactive))

		_, err = engine.Reserve(ctx, tier.ID, d("500"), wallet, t0)
		assert.NoError(t, err)

		_, err = engine.Reserve(ctx, tier.ID, d("500"), wallet, ends)
		assert.True(t, errors.Is(err, ErrTierInactive))
	})

	t.Run("Deactivates When Sold Out", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		tier := saleTier()
		tier.Allocation = d("20000")
		tier = seedTier(t, repo, tier)

		res, err := engine.Reserve(ctx, tier.ID, d("1000"), newWallet(), t0)
		require.NoError(t, err)
		assert.True(t, res.Tier.Sold.Equal(res.Tier.Allocation))
		assert.False(t, res.Tier.IsActive)

		_, err = engine.Reserve(ctx, tier.ID, d("10"), newWallet(), t0)
		assert.True(t, errors.Is(err, ErrTierInactive))
	})

	t.Run("Wallet Aggregate", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		seed := seedTier(t, repo, saleTier())
		public := saleTier()
		public.Price = d("0.08")
		public = seedTier(t, repo, public)
		wallet := newWallet()

		_, err := engine.Reserve(ctx, seed.ID, d("500"), wallet, t0)
		require.NoError(t, err)
		_, err = engine.Reserve(ctx, seed.ID, d("100"), wallet, t0)
		require.NoError(t, err)
		res, err := engine.Reserve(ctx, public.ID, d("800"), wallet, t0)
		require.NoError(t, err)

		user := res.User
		assert.Equal(t, wallet, user.Address)
		assert.True(t, d("22000").Equal(user.TotalTokens))
		assert.True(t, d("1400").Equal(user.TotalUsd))
		require.Len(t, user.TierAmounts, 2)

		sum := decimal.Zero
		for _, ta := range user.TierAmounts {
			sum = sum.Add(ta.TokenAmount)
		}
		assert.True(t, sum.Equal(user.TotalTokens))

		purchases, err := repo.ListPurchases(ctx, wallet)
		require.NoError(t, err)
		assert.Len(t, purchases, 3)
	})

	t.Run("Fees Recorded", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		tier := seedTier(t, repo, saleTier())

		res, err := engine.Reserve(ctx, tier.ID, d("500"), newWallet(), t0)
		require.NoError(t, err)
		assert.True(t, d("12.5").Equal(res.Fees.PlatformFee))
		assert.True(t, d("13").Equal(res.Purchase.FeeUsd))
	})
}

func TestTryReserveEvents(t *testing.T) {
	ctx := context.Background()

	t.Run("Publishes After Commit", func(t *testing.T) {
		publisher := &recordingPublisher{}
		engine, repo := newTestEngine(t, DefaultConfig(), publisher)
		tier := seedTier(t, repo, saleTier())
		wallet := newWallet()

		res, err := engine.Reserve(ctx, tier.ID, d("500"), wallet, t0)
		require.NoError(t, err)

		require.Len(t, publisher.events, 1)
		event := publisher.events[0]
		assert.Equal(t, res.Purchase.ID, event.PurchaseID)
		assert.Equal(t, tier.ID, event.TierID)
		assert.Equal(t, wallet, event.WalletAddress)
		assert.True(t, d("10000").Equal(event.TokenAmount))
		assert.True(t, d("20").Equal(event.VestingTgePercent))
		assert.Equal(t, 10, event.VestingMonths)
	})

	t.Run("Rejected Purchase Publishes Nothing", func(t *testing.T) {
		publisher := &recordingPublisher{}
		engine, repo := newTestEngine(t, DefaultConfig(), publisher)
		tier := seedTier(t, repo, saleTier())

		_, err := engine.Reserve(ctx, tier.ID, d("1"), newWallet(), t0)
		require.Error(t, err)
		assert.Empty(t, publisher.events)
	})

	t.Run("Publish Failure Keeps Reservation", func(t *testing.T) {
		publisher := &recordingPublisher{err: errBrokerDown}
		engine, repo := newTestEngine(t, DefaultConfig(), publisher)
		tier := seedTier(t, repo, saleTier())

		_, err := engine.Reserve(ctx, tier.ID, d("500"), newWallet(), t0)
		require.NoError(t, err)

		stored, err := repo.GetTier(ctx, tier.ID)
		require.NoError(t, err)
		assert.True(t, d("10000").Equal(stored.Sold))
	})
}

func TestConcurrentReservations(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	tier := saleTier()
	tier.Price = d("1")
	tier.Allocation = d("1000")
	tier.MinPurchase = d("1")
	tier = seedTier(t, repo, tier)

	const buyers = 50
	wallets := make([]string, buyers)
	for i := range wallets {
		wallets[i] = newWallet()
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(wallet string) {
			defer wg.Done()
			_, err := engine.Reserve(ctx, tier.ID, d("30"), wallet, t0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
				return
			}
			if errors.Is(err, ErrAllocationExceeded) {
				rejected++
			}
		}(wallets[i])
	}
	wg.Wait()

	assert.Equal(t, 33, succeeded)
	assert.Equal(t, buyers-33, rejected)

	stored, err := repo.GetTier(ctx, tier.ID)
	require.NoError(t, err)
	assert.True(t, stored.Sold.LessThanOrEqual(stored.Allocation))

	purchases, err := repo.ListPurchasesByTier(ctx, tier.ID)
	require.NoError(t, err)
	sum := decimal.Zero
	for _, p := range purchases {
		sum = sum.Add(p.TokenAmount)
	}
	assert.True(t, sum.Equal(stored.Sold), "sold %s != sum of purchases %s", stored.Sold, sum)
	assert.True(t, d("990").Equal(stored.Sold))
}

func TestCloseExpiredTiers(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)

	ends := t0.Add(24 * time.Hour)
	expiring := saleTier()
	expiring.EndsAt = &ends
	expiring = seedTier(t, repo, expiring)
	open := seedTier(t, repo, saleTier())

	closed, err := engine.CloseExpiredTiers(ctx, t0)
	require.NoError(t, err)
	assert.Empty(t, closed)

	closed, err = engine.CloseExpiredTiers(ctx, ends)
	require.NoError(t, err)
	assert.Equal(t, []uint{expiring.ID}, closed)

	snapshots, err := engine.TierSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 2)
	byID := map[uint]models.SaleTier{}
	for _, s := range snapshots {
		byID[s.Tier.ID] = s.Tier
	}
	assert.False(t, byID[expiring.ID].IsActive)
	assert.True(t, byID[open.ID].IsActive)
}

func TestTierSnapshots(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	tier := seedTier(t, repo, saleTier())

	_, err := engine.Reserve(ctx, tier.ID, d("12500"), newWallet(), t0)
	require.NoError(t, err)

	snapshots, err := engine.TierSnapshots(ctx)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.True(t, d("750000").Equal(snapshots[0].Remaining))
	assert.True(t, d("25").Equal(snapshots[0].PercentSold))
}
