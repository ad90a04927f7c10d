package tokenomics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdsale/internal/models"
)

func vestingPosition(tokens string, purchased time.Time) models.PurchasePosition {
	return models.PurchasePosition{
		ID:            1,
		TokenAmount:   d(tokens),
		ClaimedAmount: decimal.Zero,
		PurchaseTime:  purchased,
	}
}

func TestClaimableAt(t *testing.T) {
	calc := NewVestingScheduleCalculator(time.Time{})
	terms := VestingTerms{TgePercent: d("20"), Months: 10}
	position := vestingPosition("10000", t0)

	tests := []struct {
		name string
		asOf time.Time
		want string
	}{
		{"before purchase", t0.Add(-time.Hour), "0"},
		{"at tge", t0, "2000"},
		{"one day in", t0.AddDate(0, 0, 1), "2000"},
		{"one month", t0.AddDate(0, 1, 0), "2800"},
		{"five months", t0.AddDate(0, 5, 0), "6000"},
		{"just before ten months", t0.AddDate(0, 10, 0).Add(-time.Second), "9200"},
		{"ten months", t0.AddDate(0, 10, 0), "10000"},
		{"long after", t0.AddDate(3, 0, 0), "10000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calc.ClaimableAt(position, terms, tt.asOf)
			assert.True(t, d(tt.want).Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestClaimableAtClamps(t *testing.T) {
	calc := NewVestingScheduleCalculator(time.Time{})
	terms := VestingTerms{TgePercent: d("20"), Months: 10}

	position := vestingPosition("10000", t0)
	position.ClaimedAmount = d("6000")
	assert.True(t, decimal.Zero.Equal(calc.ClaimableAt(position, terms, t0)), "claimed beyond vested clamps to zero")
	assert.True(t, d("4000").Equal(calc.ClaimableAt(position, terms, t0.AddDate(1, 0, 0))))

	over := VestingTerms{TgePercent: d("150"), Months: 4}
	assert.True(t, d("10000").Equal(calc.ClaimableAt(vestingPosition("10000", t0), over, t0)))
}

func TestVestingReleasesMonthlySteps(t *testing.T) {
	calc := NewVestingScheduleCalculator(time.Time{})
	terms := VestingTerms{TgePercent: d("20"), Months: 10}
	position := vestingPosition("10000", t0)
	milestones := calc.Milestones(position, terms)
	require.Len(t, milestones, 11)

	for m := 0; m < terms.Months; m++ {
		want := milestones[m].Cumulative
		next := t0.AddDate(0, m+1, 0)
		for _, asOf := range []time.Time{t0.AddDate(0, m, 0), t0.AddDate(0, m, 14), next.Add(-time.Second)} {
			got := calc.ClaimableAt(position, terms, asOf)
			assert.True(t, want.Equal(got), "month %d at %s: want %s got %s", m, asOf, want, got)
		}
		assert.True(t, milestones[m+1].Cumulative.Equal(calc.ClaimableAt(position, terms, next)))
	}
}

func TestVestingMonotonic(t *testing.T) {
	calc := NewVestingScheduleCalculator(time.Time{})
	for _, terms := range []VestingTerms{
		{TgePercent: d("20"), Months: 10},
		{TgePercent: d("0"), Months: 7},
		{TgePercent: d("33.3333"), Months: 13},
		{TgePercent: d("100"), Months: 0},
	} {
		position := vestingPosition("123456.789012345678901234", t0)
		prev := decimal.Zero
		for day := -3; day <= 500; day++ {
			asOf := t0.AddDate(0, 0, day)
			got := calc.ClaimableAt(position, terms, asOf)
			require.True(t, got.GreaterThanOrEqual(prev), "months %d day %d: %s < %s", terms.Months, day, got, prev)
			require.True(t, got.LessThanOrEqual(position.TokenAmount))
			prev = got
		}
		end := t0.AddDate(0, terms.Months, 0)
		assert.True(t, position.TokenAmount.Equal(calc.ClaimableAt(position, terms, end)), "fully vested after %d months", terms.Months)
		assert.True(t, decimal.Zero.Equal(calc.LockedAt(position, terms, end)))
	}
}

func TestMonthsElapsedMonthEnd(t *testing.T) {
	start := time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 0, monthsElapsed(start, time.Date(2025, 3, 2, 23, 0, 0, 0, time.UTC)))
	assert.Equal(t, 1, monthsElapsed(start, time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, 2, monthsElapsed(start, time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, -1, monthsElapsed(start, start.Add(-time.Nanosecond)))
}

func TestMilestones(t *testing.T) {
	calc := NewVestingScheduleCalculator(time.Time{})

	t.Run("Tranches Sum To Token Amount", func(t *testing.T) {
		position := vestingPosition("10", t0)
		milestones := calc.Milestones(position, VestingTerms{TgePercent: decimal.Zero, Months: 3})
		require.Len(t, milestones, 4)

		sum := decimal.Zero
		for _, m := range milestones {
			sum = sum.Add(m.Amount)
		}
		assert.True(t, d("10").Equal(sum))
		assert.True(t, d("3.333333333333333333").Equal(milestones[1].Amount))
		assert.True(t, d("3.333333333333333334").Equal(milestones[3].Amount))
		assert.True(t, d("10").Equal(milestones[3].Cumulative))
		assert.Equal(t, t0.AddDate(0, 3, 0), milestones[3].Timestamp)
	})

	t.Run("Next Milestone", func(t *testing.T) {
		position := vestingPosition("10000", t0)
		terms := VestingTerms{TgePercent: d("20"), Months: 10}

		next := calc.NextMilestone(position, terms, t0)
		require.NotNil(t, next)
		assert.Equal(t, 1, next.Index)
		assert.Equal(t, t0.AddDate(0, 1, 0), next.Timestamp)
		assert.True(t, d("800").Equal(next.Amount))

		before := calc.NextMilestone(position, terms, t0.Add(-time.Minute))
		require.NotNil(t, before)
		assert.Equal(t, 0, before.Index)
		assert.True(t, d("2000").Equal(before.Amount))

		assert.Nil(t, calc.NextMilestone(position, terms, t0.AddDate(0, 10, 0)))
	})

	t.Run("Schedule For Event", func(t *testing.T) {
		milestones := calc.ScheduleFor(PurchaseEvent{
			PurchaseID:        7,
			TokenAmount:       d("10000"),
			VestingTgePercent: d("20"),
			VestingMonths:     10,
			PurchaseTime:      t0,
		})
		require.Len(t, milestones, 11)
		assert.True(t, d("2000").Equal(milestones[0].Amount))
		assert.True(t, d("10000").Equal(milestones[10].Cumulative))
	})
}

func TestGlobalTGE(t *testing.T) {
	tge := t0.AddDate(0, 2, 0)
	calc := NewVestingScheduleCalculator(tge)
	terms := VestingTerms{TgePercent: d("20"), Months: 10}
	position := vestingPosition("10000", t0)

	assert.Equal(t, tge, calc.Start(position))
	assert.True(t, decimal.Zero.Equal(calc.ClaimableAt(position, terms, t0.AddDate(0, 1, 0))))
	assert.True(t, d("2000").Equal(calc.ClaimableAt(position, terms, tge)))
	assert.True(t, d("6000").Equal(calc.ClaimableAt(position, terms, tge.AddDate(0, 5, 0))))
	assert.True(t, d("10000").Equal(calc.ClaimableAt(position, terms, tge.AddDate(0, 10, 0))))
}

func TestClaimVested(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	tier := seedTier(t, repo, saleTier())
	wallet := newWallet()

	_, err := engine.Reserve(ctx, tier.ID, d("500"), wallet, t0)
	require.NoError(t, err)

	claim, err := engine.ClaimVested(ctx, wallet, t0)
	require.NoError(t, err)
	assert.True(t, d("2000").Equal(claim.Amount))

	_, err = engine.ClaimVested(ctx, wallet, t0.Add(time.Hour))
	assert.True(t, errors.Is(err, ErrNothingToClaim))

	fiveMonths := t0.AddDate(0, 5, 0)
	claim, err = engine.ClaimVested(ctx, wallet, fiveMonths)
	require.NoError(t, err)
	assert.True(t, d("4000").Equal(claim.Amount))

	summary, err := engine.WalletVesting(ctx, wallet, fiveMonths)
	require.NoError(t, err)
	assert.True(t, d("10000").Equal(summary.TotalTokens))
	assert.True(t, d("6000").Equal(summary.Claimed))
	assert.True(t, decimal.Zero.Equal(summary.Claimable))
	assert.True(t, d("4000").Equal(summary.Locked))
	require.NotNil(t, summary.NextUnlock)
	assert.Equal(t, t0.AddDate(0, 6, 0), summary.NextUnlock.Timestamp)
	require.Len(t, summary.Positions, 1)
	assert.Len(t, summary.Positions[0].Milestones, 11)

	_, err = engine.ClaimVested(ctx, wallet, t0.AddDate(0, 10, 0))
	require.NoError(t, err)

	user, err := repo.GetUserPurchase(ctx, wallet)
	require.NoError(t, err)
	assert.True(t, user.ClaimedTokens.Equal(user.TotalTokens))
	require.NotNil(t, user.LastClaimTime)
	assert.Equal(t, t0.AddDate(0, 10, 0), *user.LastClaimTime)
}

func TestClaimVestedErrors(t *testing.T) {
	ctx := context.Background()
	engine, repo := newTestEngine(t, DefaultConfig(), nil)
	tier := seedTier(t, repo, saleTier())

	_, err := engine.ClaimVested(ctx, "bad", t0)
	assert.True(t, errors.Is(err, ErrInvalidAddress))

	_, err = engine.ClaimVested(ctx, newWallet(), t0)
	assert.True(t, errors.Is(err, ErrNothingToClaim))

	wallet := newWallet()
	res, err := engine.Reserve(ctx, tier.ID, d("500"), wallet, t0)
	require.NoError(t, err)

	corrupted := res.Purchase
	corrupted.ClaimedAmount = d("5000")
	require.NoError(t, repo.SavePurchase(ctx, &corrupted))

	_, err = engine.ClaimVested(ctx, wallet, t0)
	assert.True(t, errors.Is(err, ErrInvariantViolation))
	assert.Equal(t, KindInvariant, KindOf(err))
}
