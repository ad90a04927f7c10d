package tokenomics

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"crowdsale/internal/models"
)

// ChainBalanceSource supplies the authoritative on-chain token balance of the sale vault
type ChainBalanceSource interface {
	VaultBalance(ctx context.Context) (decimal.Decimal, error)
}

// Reconciliation check names
const (
	CheckTierSold     = "tier_sold"
	CheckWalletTotals = "wallet_totals"
	CheckPoolStaked   = "pool_staked"
	CheckVaultBalance = "vault_balance"
)

// Discrepancy is a stored total that does not match its ledger
type Discrepancy struct {
	Check    string          `json:"check"`
	Subject  string          `json:"subject"`
	Expected decimal.Decimal `json:"expected"`
	Actual   decimal.Decimal `json:"actual"`
}

// ReconcileReport lists every discrepancy found at CheckedAt
type ReconcileReport struct {
	CheckedAt     time.Time        `json:"checked_at"`
	Outstanding   decimal.Decimal  `json:"outstanding"`
	VaultBalance  *decimal.Decimal `json:"vault_balance,omitempty"`
	Discrepancies []Discrepancy    `json:"discrepancies"`
}

func (r *ReconcileReport) OK() bool {
	return len(r.Discrepancies) == 0
}

func (r *ReconcileReport) add(check, subject string, expected, actual decimal.Decimal) {
	r.Discrepancies = append(r.Discrepancies, Discrepancy{Check: check, Subject: subject, Expected: expected, Actual: actual})
}

// Reconcile compares running totals with the rows they summarize: tier sold
// against purchases, wallet totals against tier amounts, pool totals against
// active stakes, and, when a balance source is set, the vault balance against
// sold tokens not yet claimed.
func (e *Engine) Reconcile(ctx context.Context, asOf time.Time) (*ReconcileReport, error) {
	report := &ReconcileReport{CheckedAt: asOf, Discrepancies: []Discrepancy{}}

	tiers, err := e.repo.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	sold := decimal.Zero
	for _, tier := range tiers {
		purchases, err := e.repo.ListPurchasesByTier(ctx, tier.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to list purchases of tier %d: %w", tier.ID, err)
		}
		sum := decimal.Zero
		for _, p := range purchases {
			sum = sum.Add(p.TokenAmount)
		}
		if !sum.Equal(tier.Sold) {
			report.add(CheckTierSold, fmt.Sprintf("tier:%d", tier.ID), sum, tier.Sold)
		}
		if tier.Sold.GreaterThan(tier.Allocation) {
			report.add(CheckTierSold, fmt.Sprintf("tier:%d", tier.ID), tier.Allocation, tier.Sold)
		}
		sold = sold.Add(tier.Sold)
	}

	users, err := e.repo.ListUserPurchases(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet purchases: %w", err)
	}
	claimed := decimal.Zero
	for _, user := range users {
		sum := decimal.Zero
		for _, ta := range user.TierAmounts {
			sum = sum.Add(ta.TokenAmount)
		}
		if !sum.Equal(user.TotalTokens) {
			report.add(CheckWalletTotals, "wallet:"+user.Address, sum, user.TotalTokens)
		}
		claimed = claimed.Add(user.ClaimedTokens)
	}

	if err := e.reconcilePools(ctx, report); err != nil {
		return nil, err
	}

	report.Outstanding = sold.Sub(claimed)
	if e.chain != nil {
		balance, err := e.chain.VaultBalance(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to read vault balance: %w", err)
		}
		report.VaultBalance = &balance
		if balance.LessThan(report.Outstanding) {
			report.add(CheckVaultBalance, "vault", report.Outstanding, balance)
		}
	}

	entry := e.log.WithFields(logrus.Fields{
		"checked_at":    asOf.Format(time.RFC3339),
		"outstanding":   report.Outstanding.String(),
		"discrepancies": len(report.Discrepancies),
	})
	if report.OK() {
		entry.Info("reconciliation passed")
	} else {
		for _, d := range report.Discrepancies {
			e.log.WithFields(logrus.Fields{
				"check":    d.Check,
				"subject":  d.Subject,
				"expected": d.Expected.String(),
				"actual":   d.Actual.String(),
			}).Error("reconciliation mismatch")
		}
		entry.Warn("reconciliation found discrepancies")
	}
	return report, nil
}

func (e *Engine) reconcilePools(ctx context.Context, report *ReconcileReport) error {
	pools, err := e.repo.ListPools(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pools: %w", err)
	}
	active, err := e.repo.ListStakesByStatus(ctx, models.StakeStatusActive)
	if err != nil {
		return fmt.Errorf("failed to list active stakes: %w", err)
	}
	staked := map[uint]decimal.Decimal{}
	for _, s := range active {
		staked[s.PoolID] = staked[s.PoolID].Add(s.StakedAmount)
	}
	for _, pool := range pools {
		sum := staked[pool.ID]
		if !sum.Equal(pool.TotalStaked) {
			report.add(CheckPoolStaked, fmt.Sprintf("pool:%d", pool.ID), sum, pool.TotalStaked)
		}
		if pool.TotalStaked.GreaterThan(pool.MaxPoolSize) {
			report.add(CheckPoolStaked, fmt.Sprintf("pool:%d", pool.ID), pool.MaxPoolSize, pool.TotalStaked)
		}
	}
	return nil
}
