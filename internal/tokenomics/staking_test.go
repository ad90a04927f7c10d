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

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func TestAccrual(t *testing.T) {
	got := Accrual(d("10000"), d("15"), 30*secondsPerDay)
	assert.True(t, d("123.287671232876712328").Equal(got), "got %s", got)

	assert.True(t, d("1500").Equal(Accrual(d("10000"), d("15"), 365*secondsPerDay)))
	assert.True(t, decimal.Zero.Equal(Accrual(d("10000"), d("15"), 0)))
	assert.True(t, decimal.Zero.Equal(Accrual(d("10000"), d("15"), -5)))
	assert.True(t, decimal.Zero.Equal(Accrual(d("10000"), decimal.Zero, 3600)))
}

func TestAccrueRewardsIdempotent(t *testing.T) {
	pool := stakingPool()
	position := models.UserStakePosition{
		StakedAmount:   d("10000"),
		AccruedRewards: decimal.Zero,
		StakeDate:      t0,
		LastRewardCalc: t0,
		Status:         models.StakeStatusActive,
	}
	asOf := t0.Add(days(30))

	first := AccrueRewards(&position, pool, asOf)
	assert.True(t, d("123.287671232876712328").Equal(first))
	assert.Equal(t, asOf, position.LastRewardCalc)

	second := AccrueRewards(&position, pool, asOf)
	assert.True(t, decimal.Zero.Equal(second))
	assert.True(t, first.Equal(position.AccruedRewards))

	earlier := AccrueRewards(&position, pool, t0.Add(days(10)))
	assert.True(t, decimal.Zero.Equal(earlier))
	assert.Equal(t, asOf, position.LastRewardCalc)

	position.LastRewardCalc = asOf.Add(-1500 * time.Millisecond)
	before := position.AccruedRewards
	AccrueRewards(&position, pool, asOf)
	assert.Equal(t, asOf.Add(-500*time.Millisecond), position.LastRewardCalc, "partial seconds carry over")
	assert.True(t, position.AccruedRewards.GreaterThan(before))

	closed := position
	closed.Status = models.StakeStatusClosed
	assert.True(t, decimal.Zero.Equal(AccrueRewards(&closed, pool, asOf.Add(days(1)))))
}

func TestStake(t *testing.T) {
	ctx := context.Background()

	t.Run("Opens Position", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := stakingPool()
		pool.LockPeriodDays = 30
		pool = seedPool(t, repo, pool)
		wallet := newWallet()

		position, err := engine.Stake(ctx, wallet, pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)
		assert.NotEmpty(t, position.StakeID)
		assert.Equal(t, models.StakeStatusActive, position.Status)
		assert.True(t, position.IsActive)
		assert.Equal(t, 30, position.LockPeriodDays)
		assert.Equal(t, t0, position.LastRewardCalc)

		longer := 90
		extended, err := engine.Stake(ctx, wallet, pool.ID, d("500"), &longer, t0)
		require.NoError(t, err)
		assert.Equal(t, 90, extended.LockPeriodDays)

		stored, err := repo.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		assert.True(t, d("10500").Equal(stored.TotalStaked))
	})

	t.Run("Rejections", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := stakingPool()
		pool.LockPeriodDays = 30
		pool.MaxPoolSize = d("20000")
		pool.TotalStaked = d("15000")
		pool = seedPool(t, repo, pool)
		inactive := stakingPool()
		inactive.IsActive = false
		inactive = seedPool(t, repo, inactive)
		wallet := newWallet()
		shorter := 7

		tests := []struct {
			name   string
			wallet string
			poolID uint
			amount string
			lock   *int
			want   *Error
		}{
			{"invalid wallet", "x", pool.ID, "1000", nil, ErrInvalidAddress},
			{"zero amount", wallet, pool.ID, "0", nil, ErrInvalidAmount},
			{"unknown pool", wallet, 4242, "1000", nil, ErrPoolNotFound},
			{"inactive pool", wallet, inactive.ID, "1000", nil, ErrPoolInactive},
			{"below minimum", wallet, pool.ID, "99", nil, ErrBelowMinimum},
			{"above maximum", wallet, pool.ID, "1000001", nil, ErrAboveMaximum},
			{"shorter lock", wallet, pool.ID, "1000", &shorter, ErrInvalidLockPeriod},
			{"pool full", wallet, pool.ID, "5000.000000000000000001", nil, ErrPoolFull},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				_, err := engine.Stake(ctx, tt.wallet, tt.poolID, d(tt.amount), tt.lock, t0)
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.want), "got %v", err)
			})
		}

		_, err := engine.Stake(ctx, wallet, pool.ID, d("5000"), nil, t0)
		assert.NoError(t, err, "filling the pool exactly is allowed")
	})
}

func TestStakingScenario(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	pool := seedPool(t, repo, stakingPool())
	wallet := newWallet()

	position, err := engine.Stake(ctx, wallet, pool.ID, d("10000"), nil, t0)
	require.NoError(t, err)

	day30 := t0.Add(days(30))
	accrued, err := engine.Staking.Accrue(ctx, position.StakeID, day30)
	require.NoError(t, err)
	assert.True(t, d("123.287671232876712328").Equal(accrued.AccruedRewards))

	again, err := engine.Staking.Accrue(ctx, position.StakeID, day30)
	require.NoError(t, err)
	assert.True(t, accrued.AccruedRewards.Equal(again.AccruedRewards), "second accrual at the same time is a no-op")

	compounded, err := engine.Compound(ctx, position.StakeID, day30)
	require.NoError(t, err)
	assert.True(t, compounded.Claim.Compounded)
	assert.True(t, d("123.287671232876712328").Equal(compounded.Claim.Amount))
	assert.True(t, d("10123.287671232876712328").Equal(compounded.Position.StakedAmount))
	assert.True(t, decimal.Zero.Equal(compounded.Position.AccruedRewards))
	assert.True(t, d("123.287671232876712328").Equal(compounded.Position.ClaimedRewards))

	storedPool, err := repo.GetPool(ctx, pool.ID)
	require.NoError(t, err)
	assert.True(t, d("10123.287671232876712328").Equal(storedPool.TotalStaked))

	views, err := engine.StakePositions(ctx, wallet, t0.Add(days(60)))
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.True(t, d("124.807656220679301932").Equal(views[0].PendingRewards), "got %s", views[0].PendingRewards)
	assert.True(t, d("15").Equal(views[0].APY))
	assert.True(t, views[0].Unlocked)

	claimed, err := engine.ClaimRewards(ctx, position.StakeID, t0.Add(days(60)))
	require.NoError(t, err)
	assert.True(t, d("124.807656220679301932").Equal(claimed.Claim.Amount))
	assert.True(t, d("248.095327453556014260").Equal(claimed.Position.ClaimedRewards))

	_, err = engine.ClaimRewards(ctx, position.StakeID, t0.Add(days(60)))
	assert.True(t, errors.Is(err, ErrNothingToClaim))
}

func TestConcurrentAccrual(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	pool := seedPool(t, repo, stakingPool())

	position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
	require.NoError(t, err)

	asOf := t0.Add(days(30))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := engine.Staking.Accrue(ctx, position.StakeID, asOf)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stored, err := repo.GetStake(ctx, position.StakeID)
	require.NoError(t, err)
	assert.True(t, d("123.287671232876712328").Equal(stored.AccruedRewards))
}

func TestAccrueAll(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	pool := seedPool(t, repo, stakingPool())

	for i := 0; i < 3; i++ {
		_, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)
	}
	closing, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
	require.NoError(t, err)
	_, err = engine.Unstake(ctx, closing.StakeID, t0.Add(time.Hour), false)
	require.NoError(t, err)

	count, err := engine.AccrueAll(ctx, t0.Add(days(30)))
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	active, err := repo.ListStakesByStatus(ctx, models.StakeStatusActive)
	require.NoError(t, err)
	for _, s := range active {
		assert.True(t, d("123.287671232876712328").Equal(s.AccruedRewards))
	}
}

func TestUnstake(t *testing.T) {
	ctx := context.Background()

	lockedPool := func() models.StakingPool {
		pool := stakingPool()
		pool.LockPeriodDays = 30
		return pool
	}

	t.Run("Locked Without Penalty", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := seedPool(t, repo, lockedPool())
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		_, err = engine.Unstake(ctx, position.StakeID, t0.Add(days(10)), false)
		assert.True(t, errors.Is(err, ErrLockNotElapsed))

		stored, err := repo.GetStake(ctx, position.StakeID)
		require.NoError(t, err)
		assert.Equal(t, models.StakeStatusActive, stored.Status)
		assert.Equal(t, t0, stored.LastRewardCalc, "rejected unstake does not persist accrual")
	})

	t.Run("Early With Penalty", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := seedPool(t, repo, lockedPool())
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		res, err := engine.Unstake(ctx, position.StakeID, t0.Add(days(10)), true)
		require.NoError(t, err)
		assert.True(t, d("1000").Equal(res.Penalty))
		assert.True(t, d("9000").Equal(res.Returned))
		require.NotNil(t, res.Rewards)
		assert.True(t, d("41.095890410958904109").Equal(res.Rewards.Amount))
		assert.Equal(t, models.StakeStatusClosed, res.Position.Status)
		assert.False(t, res.Position.IsActive)
		require.NotNil(t, res.Position.UnstakeDate)

		stored, err := repo.GetPool(ctx, pool.ID)
		require.NoError(t, err)
		assert.True(t, decimal.Zero.Equal(stored.TotalStaked))

		_, err = engine.Unstake(ctx, position.StakeID, t0.Add(days(11)), true)
		assert.True(t, errors.Is(err, ErrPositionNotActive))
		_, err = engine.ClaimRewards(ctx, position.StakeID, t0.Add(days(11)))
		assert.True(t, errors.Is(err, ErrPositionNotActive))
	})

	t.Run("Pool Penalty Overrides Default", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := lockedPool()
		pool.EarlyUnstakePenaltyPercent = d("5")
		pool = seedPool(t, repo, pool)
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		res, err := engine.Unstake(ctx, position.StakeID, t0.Add(days(1)), true)
		require.NoError(t, err)
		assert.True(t, d("500").Equal(res.Penalty))
	})

	t.Run("After Lock", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := seedPool(t, repo, lockedPool())
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		res, err := engine.Unstake(ctx, position.StakeID, t0.Add(days(30)), false)
		require.NoError(t, err)
		assert.True(t, decimal.Zero.Equal(res.Penalty))
		assert.True(t, d("10000").Equal(res.Returned))
		require.NotNil(t, res.Rewards)
		assert.True(t, d("123.287671232876712328").Equal(res.Rewards.Amount))
	})

	t.Run("Cooldown", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.UnstakeCooldown = 48 * time.Hour
		engine, repo := newTestEngine(t, cfg, nil)
		pool := seedPool(t, repo, stakingPool())
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		_, err = engine.Withdraw(ctx, position.StakeID, t0)
		assert.True(t, errors.Is(err, ErrPositionNotActive))

		unstakeAt := t0.Add(days(5))
		res, err := engine.Unstake(ctx, position.StakeID, unstakeAt, false)
		require.NoError(t, err)
		assert.Equal(t, models.StakeStatusUnstaking, res.Position.Status)

		later := unstakeAt.Add(days(10))
		views, err := engine.StakePositions(ctx, res.Position.WalletAddress, later)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.True(t, decimal.Zero.Equal(views[0].PendingRewards), "unstaking positions stop accruing")

		_, err = engine.Withdraw(ctx, position.StakeID, unstakeAt.Add(time.Hour))
		assert.True(t, errors.Is(err, ErrCooldownNotElapsed))

		withdrawn, err := engine.Withdraw(ctx, position.StakeID, unstakeAt.Add(48*time.Hour))
		require.NoError(t, err)
		assert.Equal(t, models.StakeStatusClosed, withdrawn.Status)
	})

	t.Run("Unknown Stake", func(t *testing.T) {
		engine, _ := newTestEngine(t, DefaultConfig(), nil)
		_, err := engine.Unstake(ctx, "missing", t0, true)
		assert.True(t, errors.Is(err, ErrPositionNotFound))
		assert.Equal(t, KindNotFound, KindOf(err))
	})
}

func TestCompoundLimits(t *testing.T) {
	ctx := context.Background()

	t.Run("Above Max Stake", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := stakingPool()
		pool.MaxStake = d("10000")
		pool = seedPool(t, repo, pool)
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		_, err = engine.Compound(ctx, position.StakeID, t0.Add(days(30)))
		assert.True(t, errors.Is(err, ErrAboveMaximum))

		stored, err := repo.GetStake(ctx, position.StakeID)
		require.NoError(t, err)
		assert.True(t, d("10000").Equal(stored.StakedAmount))
	})

	t.Run("Pool Full", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := stakingPool()
		pool.MaxPoolSize = d("10000")
		pool = seedPool(t, repo, pool)
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		_, err = engine.Compound(ctx, position.StakeID, t0.Add(days(30)))
		assert.True(t, errors.Is(err, ErrPoolFull))
	})

	t.Run("Nothing To Compound", func(t *testing.T) {
		engine, repo := newTestEngine(t, DefaultConfig(), nil)
		pool := seedPool(t, repo, stakingPool())
		position, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
		require.NoError(t, err)

		_, err = engine.Compound(ctx, position.StakeID, t0)
		assert.True(t, errors.Is(err, ErrNothingToClaim))
	})
}

func TestBeneficiarySplit(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	pool := seedPool(t, repo, stakingPool())
	school := models.SchoolBeneficiary{Name: "Riverside Primary", IsActive: true}
	require.NoError(t, repo.SaveBeneficiary(ctx, &school))
	closed := models.SchoolBeneficiary{Name: "Closed Academy", IsActive: false}
	require.NoError(t, repo.SaveBeneficiary(ctx, &closed))
	wallet := newWallet()

	_, err := engine.SelectBeneficiary(ctx, wallet, 999, t0)
	assert.True(t, errors.Is(err, ErrBeneficiaryNotFound))
	_, err = engine.SelectBeneficiary(ctx, wallet, closed.ID, t0)
	assert.True(t, errors.Is(err, ErrBeneficiaryInactive))

	selection, err := engine.SelectBeneficiary(ctx, wallet, school.ID, t0)
	require.NoError(t, err)
	assert.Equal(t, school.ID, selection.BeneficiaryID)

	position, err := engine.Stake(ctx, wallet, pool.ID, d("10000"), nil, t0)
	require.NoError(t, err)

	res, err := engine.ClaimRewards(ctx, position.StakeID, t0.Add(days(30)))
	require.NoError(t, err)
	claim := res.Claim
	assert.True(t, d("123.287671232876712328").Equal(claim.UserShare), "staker keeps the full amount")
	assert.True(t, d("12.328767123287671232").Equal(claim.SchoolShare))
	require.NotNil(t, claim.BeneficiaryID)
	assert.Equal(t, school.ID, *claim.BeneficiaryID)

	views, err := engine.Beneficiaries(ctx)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.True(t, d("12.328767123287671232").Equal(views[0].Received))
	assert.True(t, decimal.Zero.Equal(views[1].Received))

	other, err := engine.Stake(ctx, newWallet(), pool.ID, d("10000"), nil, t0)
	require.NoError(t, err)
	res, err = engine.ClaimRewards(ctx, other.StakeID, t0.Add(days(30)))
	require.NoError(t, err)
	assert.True(t, decimal.Zero.Equal(res.Claim.SchoolShare))
	assert.Nil(t, res.Claim.BeneficiaryID)
}
