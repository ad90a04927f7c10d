package tokenomics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"crowdsale/internal/models"
	"crowdsale/pkg/utils"
)

// Reservation is the result of a committed purchase
type Reservation struct {
	Purchase models.PurchasePosition `json:"purchase"`
	Tier     models.SaleTier         `json:"tier"`
	User     models.UserPurchase     `json:"user"`
	Fees     utils.FeeBreakdown      `json:"fees"`
}

// TierSnapshot is a read-only view of a tier's sale progress
type TierSnapshot struct {
	Tier        models.SaleTier `json:"tier"`
	Remaining   decimal.Decimal `json:"remaining"`
	PercentSold decimal.Decimal `json:"percent_sold"`
}

// TierAllocationTracker admits or rejects purchases against tier caps
type TierAllocationTracker struct {
	repo      Repository
	pricing   *utils.PricingCalculator
	publisher EventPublisher
	log       *logrus.Entry
}

// NewTierAllocationTracker creates a tracker. A nil publisher drops purchase events.
func NewTierAllocationTracker(repo Repository, pricing *utils.PricingCalculator, publisher EventPublisher, log *logrus.Entry) *TierAllocationTracker {
	if publisher == nil {
		publisher = NopPublisher{}
	}
	if log == nil {
		log = logrus.WithField("component", "tier_allocation")
	}
	return &TierAllocationTracker{
		repo:      repo,
		pricing:   pricing,
		publisher: publisher,
		log:       log,
	}
}

// TryReserve reserves tokens of a tier for wallet. The tier and wallet are
// locked for the whole check-and-increment, so two purchases racing for the
// last allocation are serialized and the loser sees the updated sold amount.
func (t *TierAllocationTracker) TryReserve(ctx context.Context, tierID uint, usdAmount decimal.Decimal, wallet string, asOf time.Time) (*Reservation, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}

	var res *Reservation
	err := t.repo.Atomically(ctx, []LockKey{TierLock(tierID), WalletLock(wallet)}, func(ctx context.Context, repo Repository) error {
		tier, err := repo.GetTier(ctx, tierID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return newError(ErrTierNotFound, "tier %d does not exist", tierID)
			}
			return fmt.Errorf("failed to load tier %d: %w", tierID, err)
		}

		if !tier.IsActive {
			return newError(ErrTierInactive, "tier %d is not active", tierID)
		}
		if !tier.InWindow(asOf) {
			return newError(ErrTierInactive, "tier %d is not open at %s", tierID, asOf.Format(time.RFC3339))
		}
		if usdAmount.LessThan(tier.MinPurchase) {
			return boundError(ErrBelowMinimum, usdAmount, tier.MinPurchase,
				"purchase of %s USD is below the tier minimum of %s USD", usdAmount, tier.MinPurchase)
		}
		if usdAmount.GreaterThan(tier.MaxPurchase) {
			return boundError(ErrAboveMaximum, usdAmount, tier.MaxPurchase,
				"purchase of %s USD is above the tier maximum of %s USD", usdAmount, tier.MaxPurchase)
		}

		tokens, err := utils.TokensForUsd(usdAmount, tier.Price)
		if err != nil {
			if errors.Is(err, utils.ErrNonPositivePrice) {
				return invariantViolation(t.log, "tier %d has non positive price %s", tierID, tier.Price)
			}
			return boundError(ErrBelowMinimum, usdAmount, tier.MinPurchase, "%v", err)
		}
		if !tokens.IsPositive() {
			return boundError(ErrBelowMinimum, usdAmount, tier.MinPurchase,
				"purchase of %s USD buys no tokens at %s", usdAmount, tier.Price)
		}

		remaining := tier.Remaining()
		if remaining.IsNegative() {
			return invariantViolation(t.log, "tier %d sold %s exceeds allocation %s", tierID, tier.Sold, tier.Allocation)
		}
		if tokens.GreaterThan(remaining) {
			return boundError(ErrAllocationExceeded, tokens, remaining,
				"tier %d has %s tokens left, purchase needs %s", tierID, remaining, tokens)
		}

		fees, err := t.pricing.Fees(usdAmount)
		if err != nil {
			return err
		}

		tier.Sold = tier.Sold.Add(tokens)
		if tier.Sold.Equal(tier.Allocation) {
			tier.IsActive = false
		}
		if err := repo.SaveTier(ctx, tier); err != nil {
			return fmt.Errorf("failed to save tier %d: %w", tierID, err)
		}

		purchase := models.PurchasePosition{
			WalletAddress: wallet,
			TierID:        tierID,
			UsdAmount:     usdAmount,
			TokenAmount:   tokens,
			FeeUsd:        fees.TotalFee,
			ClaimedAmount: decimal.Zero,
			PurchaseTime:  asOf,
		}
		if err := repo.AddPurchase(ctx, &purchase); err != nil {
			return fmt.Errorf("failed to record purchase: %w", err)
		}

		user, err := repo.GetUserPurchase(ctx, wallet)
		if errors.Is(err, ErrNotFound) {
			user = &models.UserPurchase{Address: wallet}
		} else if err != nil {
			return fmt.Errorf("failed to load purchases of %s: %w", wallet, err)
		}
		applyPurchase(user, purchase)
		if err := repo.SaveUserPurchase(ctx, user); err != nil {
			return fmt.Errorf("failed to save purchases of %s: %w", wallet, err)
		}

		res = &Reservation{Purchase: purchase, Tier: *tier, User: *user, Fees: fees}
		return nil
	})
	if err != nil {
		t.log.WithFields(logrus.Fields{
			"tier_id": tierID,
			"wallet":  wallet,
			"usd":     usdAmount.String(),
		}).Warnf("reservation rejected: %v", err)
		return nil, err
	}

	t.log.WithFields(logrus.Fields{
		"tier_id":     tierID,
		"wallet":      wallet,
		"usd":         usdAmount.String(),
		"tokens":      res.Purchase.TokenAmount.String(),
		"tier_sold":   res.Tier.Sold.String(),
		"tier_active": res.Tier.IsActive,
	}).Info("reservation committed")

	event := PurchaseEvent{
		PurchaseID:        res.Purchase.ID,
		TierID:            tierID,
		WalletAddress:     wallet,
		UsdAmount:         usdAmount,
		TokenAmount:       res.Purchase.TokenAmount,
		VestingTgePercent: res.Tier.VestingTgePercent,
		VestingMonths:     res.Tier.VestingMonths,
		PurchaseTime:      asOf,
	}
	if err := t.publisher.PublishPurchase(ctx, event); err != nil {
		// the purchase is committed; the event can be rebuilt from the purchase row
		t.log.WithField("purchase_id", res.Purchase.ID).Errorf("failed to publish purchase event: %v", err)
	}
	return res, nil
}

// applyPurchase adds a purchase to the wallet aggregate
func applyPurchase(user *models.UserPurchase, purchase models.PurchasePosition) {
	user.TotalTokens = user.TotalTokens.Add(purchase.TokenAmount)
	user.TotalUsd = user.TotalUsd.Add(purchase.UsdAmount)
	for i := range user.TierAmounts {
		if user.TierAmounts[i].TierID == purchase.TierID {
			user.TierAmounts[i].TokenAmount = user.TierAmounts[i].TokenAmount.Add(purchase.TokenAmount)
			user.TierAmounts[i].UsdAmount = user.TierAmounts[i].UsdAmount.Add(purchase.UsdAmount)
			return
		}
	}
	user.TierAmounts = append(user.TierAmounts, models.UserTierAmount{
		Address:     user.Address,
		TierID:      purchase.TierID,
		TokenAmount: purchase.TokenAmount,
		UsdAmount:   purchase.UsdAmount,
	})
}

// Snapshot returns every tier with its remaining allocation
func (t *TierAllocationTracker) Snapshot(ctx context.Context) ([]TierSnapshot, error) {
	tiers, err := t.repo.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}
	snapshots := make([]TierSnapshot, 0, len(tiers))
	for _, tier := range tiers {
		percent := decimal.Zero
		if tier.Allocation.IsPositive() {
			percent = utils.TruncDiv(tier.Sold.Mul(decimal.NewFromInt(100)), tier.Allocation, 4)
		}
		snapshots = append(snapshots, TierSnapshot{
			Tier:        tier,
			Remaining:   tier.Remaining(),
			PercentSold: percent,
		})
	}
	return snapshots, nil
}

// CloseExpiredTiers deactivates active tiers whose window ended at or before asOf
func (t *TierAllocationTracker) CloseExpiredTiers(ctx context.Context, asOf time.Time) ([]uint, error) {
	tiers, err := t.repo.ListTiers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tiers: %w", err)
	}

	var closed []uint
	for _, candidate := range tiers {
		if !candidate.IsActive || candidate.EndsAt == nil || asOf.Before(*candidate.EndsAt) {
			continue
		}
		tierID := candidate.ID
		err := t.repo.Atomically(ctx, []LockKey{TierLock(tierID)}, func(ctx context.Context, repo Repository) error {
			tier, err := repo.GetTier(ctx, tierID)
			if err != nil {
				return err
			}
			if !tier.IsActive {
				return nil
			}
			tier.IsActive = false
			return repo.SaveTier(ctx, tier)
		})
		if err != nil {
			return closed, fmt.Errorf("failed to close tier %d: %w", tierID, err)
		}
		closed = append(closed, tierID)
		t.log.WithField("tier_id", tierID).Info("tier window closed")
	}
	return closed, nil
}

// invariantViolation logs and returns an invariant error. These indicate a bug
// or corrupted state upstream and abort the current operation.
func invariantViolation(log *logrus.Entry, format string, args ...interface{}) error {
	err := newError(ErrInvariantViolation, format, args...)
	log.WithField("kind", KindInvariant.String()).Error(err.Error())
	return err
}
