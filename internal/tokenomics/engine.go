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

// Engine wires the sale, vesting and staking components over one repository
type Engine struct {
	repo Repository
	cfg  Config
	log  *logrus.Entry

	Pricing    *utils.PricingCalculator
	Tiers      *TierAllocationTracker
	Vesting    *VestingScheduleCalculator
	Staking    *StakingRewardEngine
	Projection *RewardProjectionEngine

	chain ChainBalanceSource
}

// NewEngine validates cfg and builds the engine. publisher may be nil.
func NewEngine(repo Repository, cfg Config, publisher EventPublisher, log *logrus.Entry) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	if log == nil {
		log = logrus.WithField("component", "tokenomics")
	}
	pricing := utils.NewPricingCalculator(cfg.PlatformFeePercent, cfg.NetworkFeeUsd)
	return &Engine{
		repo:       repo,
		cfg:        cfg,
		log:        log,
		Pricing:    pricing,
		Tiers:      NewTierAllocationTracker(repo, pricing, publisher, log.WithField("component", "tier_allocation")),
		Vesting:    NewVestingScheduleCalculator(cfg.TGETime),
		Staking:    NewStakingRewardEngine(repo, cfg, log.WithField("component", "staking")),
		Projection: NewRewardProjectionEngine(cfg.MaxProjectionDays),
	}, nil
}

// WithBalanceSource sets the on-chain balance source used by Reconcile
func (e *Engine) WithBalanceSource(source ChainBalanceSource) *Engine {
	e.chain = source
	return e
}

func (e *Engine) Config() Config {
	return e.cfg
}

func (e *Engine) TierSnapshots(ctx context.Context) ([]TierSnapshot, error) {
	return e.Tiers.Snapshot(ctx)
}

// Quote prices a purchase against a tier without reserving anything
func (e *Engine) Quote(ctx context.Context, tierID uint, usdAmount decimal.Decimal) (*utils.PurchaseQuote, error) {
	tier, err := e.repo.GetTier(ctx, tierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrTierNotFound, "tier %d does not exist", tierID)
		}
		return nil, fmt.Errorf("failed to load tier %d: %w", tierID, err)
	}
	quote, err := e.Pricing.Quote(usdAmount, tier.Price)
	if err != nil {
		return nil, newError(ErrInvalidAmount, "%v", err)
	}
	return quote, nil
}

func (e *Engine) Reserve(ctx context.Context, tierID uint, usdAmount decimal.Decimal, wallet string, asOf time.Time) (*Reservation, error) {
	return e.Tiers.TryReserve(ctx, tierID, usdAmount, wallet, asOf)
}

// PositionVesting is the vesting state of one purchase
type PositionVesting struct {
	Purchase   models.PurchasePosition `json:"purchase"`
	Terms      VestingTerms            `json:"terms"`
	Vested     decimal.Decimal         `json:"vested"`
	Claimable  decimal.Decimal         `json:"claimable"`
	Locked     decimal.Decimal         `json:"locked"`
	Milestones []Milestone             `json:"milestones"`
}

// WalletVesting is the vesting state of every purchase of a wallet
type WalletVesting struct {
	WalletAddress string            `json:"wallet_address"`
	AsOf          time.Time         `json:"as_of"`
	TotalTokens   decimal.Decimal   `json:"total_tokens"`
	Vested        decimal.Decimal   `json:"vested"`
	Claimed       decimal.Decimal   `json:"claimed"`
	Claimable     decimal.Decimal   `json:"claimable"`
	Locked        decimal.Decimal   `json:"locked"`
	NextUnlock    *Milestone        `json:"next_unlock,omitempty"`
	Positions     []PositionVesting `json:"positions"`
}

// tierTerms caches vesting terms per tier. Terms never change after a tier is configured.
type tierTerms struct {
	repo  Repository
	terms map[uint]VestingTerms
}

func (t *tierTerms) get(ctx context.Context, tierID uint) (VestingTerms, error) {
	if terms, ok := t.terms[tierID]; ok {
		return terms, nil
	}
	tier, err := t.repo.GetTier(ctx, tierID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return VestingTerms{}, newError(ErrTierNotFound, "tier %d does not exist", tierID)
		}
		return VestingTerms{}, fmt.Errorf("failed to load tier %d: %w", tierID, err)
	}
	terms := TermsOf(*tier)
	t.terms[tierID] = terms
	return terms, nil
}

// WalletVesting returns the claimable, locked and upcoming amounts of wallet at asOf
func (e *Engine) WalletVesting(ctx context.Context, wallet string, asOf time.Time) (*WalletVesting, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}
	purchases, err := e.repo.ListPurchases(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to list purchases of %s: %w", wallet, err)
	}

	cache := &tierTerms{repo: e.repo, terms: map[uint]VestingTerms{}}
	summary := &WalletVesting{
		WalletAddress: wallet,
		AsOf:          asOf,
		Positions:     make([]PositionVesting, 0, len(purchases)),
	}
	for _, purchase := range purchases {
		terms, err := cache.get(ctx, purchase.TierID)
		if err != nil {
			return nil, err
		}
		view := PositionVesting{
			Purchase:   purchase,
			Terms:      terms,
			Vested:     e.Vesting.VestedAt(purchase, terms, asOf),
			Claimable:  e.Vesting.ClaimableAt(purchase, terms, asOf),
			Locked:     e.Vesting.LockedAt(purchase, terms, asOf),
			Milestones: e.Vesting.Milestones(purchase, terms),
		}
		summary.TotalTokens = summary.TotalTokens.Add(purchase.TokenAmount)
		summary.Vested = summary.Vested.Add(view.Vested)
		summary.Claimed = summary.Claimed.Add(purchase.ClaimedAmount)
		summary.Claimable = summary.Claimable.Add(view.Claimable)
		summary.Locked = summary.Locked.Add(view.Locked)

		if next := e.Vesting.NextMilestone(purchase, terms, asOf); next != nil {
			if summary.NextUnlock == nil || next.Timestamp.Before(summary.NextUnlock.Timestamp) {
				summary.NextUnlock = next
			}
		}
		summary.Positions = append(summary.Positions, view)
	}
	return summary, nil
}

// ClaimVested claims everything unlocked for wallet at asOf
func (e *Engine) ClaimVested(ctx context.Context, wallet string, asOf time.Time) (*models.VestingClaim, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}

	var claim *models.VestingClaim
	err := e.repo.Atomically(ctx, []LockKey{WalletLock(wallet)}, func(ctx context.Context, repo Repository) error {
		purchases, err := repo.ListPurchases(ctx, wallet)
		if err != nil {
			return fmt.Errorf("failed to list purchases of %s: %w", wallet, err)
		}

		cache := &tierTerms{repo: repo, terms: map[uint]VestingTerms{}}
		total := decimal.Zero
		for i := range purchases {
			purchase := &purchases[i]
			terms, err := cache.get(ctx, purchase.TierID)
			if err != nil {
				return err
			}
			vested := e.Vesting.VestedAt(*purchase, terms, asOf)
			if vested.LessThan(purchase.ClaimedAmount) {
				return invariantViolation(e.log, "purchase %d claimed %s exceeds vested %s", purchase.ID, purchase.ClaimedAmount, vested)
			}
			available := vested.Sub(purchase.ClaimedAmount)
			if !available.IsPositive() {
				continue
			}
			purchase.ClaimedAmount = vested
			if err := repo.SavePurchase(ctx, purchase); err != nil {
				return fmt.Errorf("failed to save purchase %d: %w", purchase.ID, err)
			}
			total = total.Add(available)
		}
		if !total.IsPositive() {
			return newError(ErrNothingToClaim, "wallet %s has nothing unlocked to claim", wallet)
		}

		user, err := repo.GetUserPurchase(ctx, wallet)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return invariantViolation(e.log, "wallet %s has purchases but no aggregate", wallet)
			}
			return fmt.Errorf("failed to load purchases of %s: %w", wallet, err)
		}
		claimTime := asOf
		user.ClaimedTokens = user.ClaimedTokens.Add(total)
		user.LastClaimTime = &claimTime
		if user.ClaimedTokens.GreaterThan(user.TotalTokens) {
			return invariantViolation(e.log, "wallet %s claimed %s of %s tokens", wallet, user.ClaimedTokens, user.TotalTokens)
		}
		if err := repo.SaveUserPurchase(ctx, user); err != nil {
			return fmt.Errorf("failed to save purchases of %s: %w", wallet, err)
		}

		claim = &models.VestingClaim{WalletAddress: wallet, Amount: total, ClaimTime: asOf}
		return repo.AddVestingClaim(ctx, claim)
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{"wallet": wallet, "amount": claim.Amount.String()}).Info("vested tokens claimed")
	return claim, nil
}

// StakeView is a position with its rewards brought up to the query time
type StakeView struct {
	Position       models.UserStakePosition `json:"position"`
	PoolName       string                   `json:"pool_name"`
	APY            decimal.Decimal          `json:"apy"`
	PendingRewards decimal.Decimal          `json:"pending_rewards"`
	UnlockAt       time.Time                `json:"unlock_at"`
	Unlocked       bool                     `json:"unlocked"`
}

// StakePositions lists the positions of wallet with pending rewards at asOf
func (e *Engine) StakePositions(ctx context.Context, wallet string, asOf time.Time) ([]StakeView, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}
	stakes, err := e.repo.ListStakes(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to list stakes of %s: %w", wallet, err)
	}

	pools := map[uint]*models.StakingPool{}
	views := make([]StakeView, 0, len(stakes))
	for _, stake := range stakes {
		pool, ok := pools[stake.PoolID]
		if !ok {
			pool, err = loadPool(ctx, e.repo, stake.PoolID)
			if err != nil {
				return nil, err
			}
			pools[stake.PoolID] = pool
		}
		unlockAt := stake.UnlockAt()
		views = append(views, StakeView{
			Position:       stake,
			PoolName:       pool.Name,
			APY:            pool.APY(),
			PendingRewards: PendingRewards(stake, *pool, asOf),
			UnlockAt:       unlockAt,
			Unlocked:       !asOf.Before(unlockAt),
		})
	}
	return views, nil
}

func (e *Engine) Pools(ctx context.Context) ([]models.StakingPool, error) {
	return e.repo.ListPools(ctx)
}

// ProjectStake forecasts a hypothetical stake in an existing pool
func (e *Engine) ProjectStake(ctx context.Context, poolID uint, req ProjectionRequest) ([]ProjectionPoint, error) {
	pool, err := loadPool(ctx, e.repo, poolID)
	if err != nil {
		return nil, err
	}
	req.Pool = *pool
	return e.Projection.ProjectWith(req)
}

func (e *Engine) Stake(ctx context.Context, wallet string, poolID uint, amount decimal.Decimal, lockDaysOverride *int, asOf time.Time) (*models.UserStakePosition, error) {
	return e.Staking.Stake(ctx, wallet, poolID, amount, lockDaysOverride, asOf)
}

func (e *Engine) Unstake(ctx context.Context, stakeID string, asOf time.Time, acceptPenalty bool) (*UnstakeResult, error) {
	return e.Staking.Unstake(ctx, stakeID, asOf, acceptPenalty)
}

func (e *Engine) Withdraw(ctx context.Context, stakeID string, asOf time.Time) (*models.UserStakePosition, error) {
	return e.Staking.Withdraw(ctx, stakeID, asOf)
}

func (e *Engine) ClaimRewards(ctx context.Context, stakeID string, asOf time.Time) (*RewardSettlement, error) {
	return e.Staking.Claim(ctx, stakeID, asOf)
}

func (e *Engine) Compound(ctx context.Context, stakeID string, asOf time.Time) (*RewardSettlement, error) {
	return e.Staking.Compound(ctx, stakeID, asOf)
}

func (e *Engine) SelectBeneficiary(ctx context.Context, wallet string, beneficiaryID uint, asOf time.Time) (*models.BeneficiarySelection, error) {
	return e.Staking.SelectBeneficiary(ctx, wallet, beneficiaryID, asOf)
}

// BeneficiaryView is a beneficiary with the total credited to it
type BeneficiaryView struct {
	Beneficiary models.SchoolBeneficiary `json:"beneficiary"`
	Received    decimal.Decimal          `json:"received"`
}

func (e *Engine) Beneficiaries(ctx context.Context) ([]BeneficiaryView, error) {
	beneficiaries, err := e.repo.ListBeneficiaries(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list beneficiaries: %w", err)
	}
	views := make([]BeneficiaryView, 0, len(beneficiaries))
	for _, b := range beneficiaries {
		total, err := e.repo.BeneficiaryTotal(ctx, b.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to total beneficiary %d: %w", b.ID, err)
		}
		views = append(views, BeneficiaryView{Beneficiary: b, Received: total})
	}
	return views, nil
}

func (e *Engine) AccrueAll(ctx context.Context, asOf time.Time) (int, error) {
	return e.Staking.AccrueAll(ctx, asOf)
}

func (e *Engine) CloseExpiredTiers(ctx context.Context, asOf time.Time) ([]uint, error) {
	return e.Tiers.CloseExpiredTiers(ctx, asOf)
}
