package tokenomics

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"crowdsale/internal/models"
	"crowdsale/pkg/utils"
)

const secondsPerYear = 365 * 24 * 60 * 60

var accrualDivisor = decimal.NewFromInt(100 * secondsPerYear)

// Accrual returns the reward earned by principal at apy percent over seconds,
// truncated to token precision.
func Accrual(principal, apy decimal.Decimal, seconds int64) decimal.Decimal {
	if seconds <= 0 || !principal.IsPositive() || !apy.IsPositive() {
		return decimal.Zero
	}
	earned := principal.Mul(apy).Mul(decimal.NewFromInt(seconds))
	return utils.TruncDiv(earned, accrualDivisor, utils.TokenDecimals)
}

// AccrueRewards credits position with the rewards earned since its last
// calculation and advances lastRewardCalc by the whole seconds credited.
// Calling it again with the same asOf credits nothing.
func AccrueRewards(position *models.UserStakePosition, pool models.StakingPool, asOf time.Time) decimal.Decimal {
	if position.Status != models.StakeStatusActive || !asOf.After(position.LastRewardCalc) {
		return decimal.Zero
	}
	seconds := int64(asOf.Sub(position.LastRewardCalc) / time.Second)
	if seconds == 0 {
		return decimal.Zero
	}
	reward := Accrual(position.StakedAmount, pool.APY(), seconds)
	position.AccruedRewards = position.AccruedRewards.Add(reward)
	position.LastRewardCalc = position.LastRewardCalc.Add(time.Duration(seconds) * time.Second)
	return reward
}

// PendingRewards returns the accrued rewards of position as of asOf without mutating it
func PendingRewards(position models.UserStakePosition, pool models.StakingPool, asOf time.Time) decimal.Decimal {
	AccrueRewards(&position, pool, asOf)
	return position.AccruedRewards
}

// RewardSettlement is the outcome of a claim or compound
type RewardSettlement struct {
	Claim    models.StakingRewardClaim `json:"claim"`
	Position models.UserStakePosition  `json:"position"`
}

// UnstakeResult is the outcome of an unstake
type UnstakeResult struct {
	Position models.UserStakePosition  `json:"position"`
	Penalty  decimal.Decimal           `json:"penalty"`
	Returned decimal.Decimal           `json:"returned"`
	Rewards  *models.StakingRewardClaim `json:"rewards,omitempty"`
}

// StakingRewardEngine runs the stake position state machine:
// active -> closed, or active -> unstaking -> closed with a cooldown.
type StakingRewardEngine struct {
	repo  Repository
	cfg   Config
	log   *logrus.Entry
	newID func() string
}

func NewStakingRewardEngine(repo Repository, cfg Config, log *logrus.Entry) *StakingRewardEngine {
	if log == nil {
		log = logrus.WithField("component", "staking")
	}
	return &StakingRewardEngine{
		repo:  repo,
		cfg:   cfg,
		log:   log,
		newID: uuid.NewString,
	}
}

func loadPool(ctx context.Context, repo Repository, poolID uint) (*models.StakingPool, error) {
	pool, err := repo.GetPool(ctx, poolID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrPoolNotFound, "pool %d does not exist", poolID)
		}
		return nil, fmt.Errorf("failed to load pool %d: %w", poolID, err)
	}
	return pool, nil
}

func loadStake(ctx context.Context, repo Repository, stakeID string) (*models.UserStakePosition, error) {
	stake, err := repo.GetStake(ctx, stakeID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, newError(ErrPositionNotFound, "stake %s does not exist", stakeID)
		}
		return nil, fmt.Errorf("failed to load stake %s: %w", stakeID, err)
	}
	return stake, nil
}

func requireActive(stake *models.UserStakePosition) error {
	if stake.Status != models.StakeStatusActive {
		return newError(ErrPositionNotActive, "stake %s is %s", stake.StakeID, stake.Status)
	}
	return nil
}

// Stake opens a position in a pool. lockDaysOverride may only lengthen the pool's lock.
func (e *StakingRewardEngine) Stake(ctx context.Context, wallet string, poolID uint, amount decimal.Decimal, lockDaysOverride *int, asOf time.Time) (*models.UserStakePosition, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, newError(ErrInvalidAmount, "stake amount must be positive, got %s", amount)
	}

	var position *models.UserStakePosition
	err := e.repo.Atomically(ctx, []LockKey{PoolLock(poolID)}, func(ctx context.Context, repo Repository) error {
		pool, err := loadPool(ctx, repo, poolID)
		if err != nil {
			return err
		}
		if !pool.IsActive {
			return newError(ErrPoolInactive, "pool %d is not active", poolID)
		}
		if amount.LessThan(pool.MinStake) {
			return boundError(ErrBelowMinimum, amount, pool.MinStake,
				"stake of %s is below the pool minimum of %s", amount, pool.MinStake)
		}
		if amount.GreaterThan(pool.MaxStake) {
			return boundError(ErrAboveMaximum, amount, pool.MaxStake,
				"stake of %s is above the pool maximum of %s", amount, pool.MaxStake)
		}

		lockDays := pool.LockPeriodDays
		if lockDaysOverride != nil {
			if *lockDaysOverride < pool.LockPeriodDays {
				return newError(ErrInvalidLockPeriod, "lock of %d days is shorter than the pool lock of %d days",
					*lockDaysOverride, pool.LockPeriodDays)
			}
			lockDays = *lockDaysOverride
		}

		total := pool.TotalStaked.Add(amount)
		if total.GreaterThan(pool.MaxPoolSize) {
			return boundError(ErrPoolFull, total, pool.MaxPoolSize,
				"pool %d holds %s of %s, stake of %s does not fit", poolID, pool.TotalStaked, pool.MaxPoolSize, amount)
		}

		position = &models.UserStakePosition{
			StakeID:        e.newID(),
			WalletAddress:  wallet,
			PoolID:         poolID,
			StakedAmount:   amount,
			AccruedRewards: decimal.Zero,
			ClaimedRewards: decimal.Zero,
			LockPeriodDays: lockDays,
			StakeDate:      asOf,
			LastRewardCalc: asOf,
			Status:         models.StakeStatusActive,
			IsActive:       true,
		}
		pool.TotalStaked = total
		if err := repo.SavePool(ctx, pool); err != nil {
			return fmt.Errorf("failed to save pool %d: %w", poolID, err)
		}
		if err := repo.SaveStake(ctx, position); err != nil {
			return fmt.Errorf("failed to save stake: %w", err)
		}
		return nil
	})
	if err != nil {
		e.log.WithFields(logrus.Fields{"pool_id": poolID, "wallet": wallet, "amount": amount.String()}).
			Warnf("stake rejected: %v", err)
		return nil, err
	}

	e.log.WithFields(logrus.Fields{
		"stake_id":  position.StakeID,
		"pool_id":   poolID,
		"wallet":    wallet,
		"amount":    amount.String(),
		"lock_days": position.LockPeriodDays,
	}).Info("stake opened")
	return position, nil
}

// Accrue persists the rewards of one position up to asOf
func (e *StakingRewardEngine) Accrue(ctx context.Context, stakeID string, asOf time.Time) (*models.UserStakePosition, error) {
	var position *models.UserStakePosition
	err := e.repo.Atomically(ctx, []LockKey{StakeLock(stakeID)}, func(ctx context.Context, repo Repository) error {
		stake, err := loadStake(ctx, repo, stakeID)
		if err != nil {
			return err
		}
		pool, err := loadPool(ctx, repo, stake.PoolID)
		if err != nil {
			return err
		}
		before := stake.LastRewardCalc
		AccrueRewards(stake, *pool, asOf)
		position = stake
		if stake.LastRewardCalc.Equal(before) {
			return nil
		}
		return repo.SaveStake(ctx, stake)
	})
	if err != nil {
		return nil, err
	}
	return position, nil
}

// AccrueAll persists rewards for every active position. It keeps going past
// failed positions and returns their errors joined.
func (e *StakingRewardEngine) AccrueAll(ctx context.Context, asOf time.Time) (int, error) {
	stakes, err := e.repo.ListStakesByStatus(ctx, models.StakeStatusActive)
	if err != nil {
		return 0, fmt.Errorf("failed to list active stakes: %w", err)
	}
	var errs []error
	accrued := 0
	for _, stake := range stakes {
		if _, err := e.Accrue(ctx, stake.StakeID, asOf); err != nil {
			e.log.WithField("stake_id", stake.StakeID).Errorf("accrual failed: %v", err)
			errs = append(errs, err)
			continue
		}
		accrued++
	}
	return accrued, errors.Join(errs...)
}

// settle moves all accrued rewards of stake to claimed and writes the claim
// row plus the beneficiary credit. The caller saves stake.
func (e *StakingRewardEngine) settle(ctx context.Context, repo Repository, stake *models.UserStakePosition, asOf time.Time, compounded bool) (*models.StakingRewardClaim, error) {
	amount := stake.AccruedRewards
	stake.ClaimedRewards = stake.ClaimedRewards.Add(amount)
	stake.AccruedRewards = decimal.Zero

	claim := &models.StakingRewardClaim{
		StakeID:       stake.StakeID,
		WalletAddress: stake.WalletAddress,
		Amount:        amount,
		UserShare:     amount,
		SchoolShare:   decimal.Zero,
		Compounded:    compounded,
		ClaimTime:     asOf,
	}

	beneficiary, err := e.selectedBeneficiary(ctx, repo, stake.WalletAddress)
	if err != nil {
		return nil, err
	}
	if beneficiary != nil {
		share := utils.PercentOf(amount, e.cfg.BeneficiarySharePercent, utils.TokenDecimals)
		if share.IsPositive() {
			id := beneficiary.ID
			claim.BeneficiaryID = &id
			claim.SchoolShare = share
			credit := &models.BeneficiaryCredit{
				BeneficiaryID: id,
				StakeID:       stake.StakeID,
				WalletAddress: stake.WalletAddress,
				Amount:        share,
				CreditedAt:    asOf,
			}
			if err := repo.AddBeneficiaryCredit(ctx, credit); err != nil {
				return nil, fmt.Errorf("failed to credit beneficiary %d: %w", id, err)
			}
		}
	}

	if err := repo.AddRewardClaim(ctx, claim); err != nil {
		return nil, fmt.Errorf("failed to record reward claim: %w", err)
	}
	return claim, nil
}

// selectedBeneficiary returns the active beneficiary chosen by wallet, or nil
func (e *StakingRewardEngine) selectedBeneficiary(ctx context.Context, repo Repository, wallet string) (*models.SchoolBeneficiary, error) {
	selection, err := repo.GetBeneficiarySelection(ctx, wallet)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load beneficiary selection of %s: %w", wallet, err)
	}
	beneficiary, err := repo.GetBeneficiary(ctx, selection.BeneficiaryID)
	if errors.Is(err, ErrNotFound) {
		e.log.WithField("wallet", wallet).Warnf("selected beneficiary %d no longer exists", selection.BeneficiaryID)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load beneficiary %d: %w", selection.BeneficiaryID, err)
	}
	if !beneficiary.IsActive {
		e.log.WithField("wallet", wallet).Warnf("selected beneficiary %d is inactive, share not credited", beneficiary.ID)
		return nil, nil
	}
	return beneficiary, nil
}

// Claim pays out all rewards accrued up to asOf
func (e *StakingRewardEngine) Claim(ctx context.Context, stakeID string, asOf time.Time) (*RewardSettlement, error) {
	var res *RewardSettlement
	err := e.repo.Atomically(ctx, []LockKey{StakeLock(stakeID)}, func(ctx context.Context, repo Repository) error {
		stake, err := loadStake(ctx, repo, stakeID)
		if err != nil {
			return err
		}
		if err := requireActive(stake); err != nil {
			return err
		}
		pool, err := loadPool(ctx, repo, stake.PoolID)
		if err != nil {
			return err
		}
		AccrueRewards(stake, *pool, asOf)
		if !stake.AccruedRewards.IsPositive() {
			return newError(ErrNothingToClaim, "stake %s has no accrued rewards", stakeID)
		}
		claim, err := e.settle(ctx, repo, stake, asOf, false)
		if err != nil {
			return err
		}
		if err := repo.SaveStake(ctx, stake); err != nil {
			return fmt.Errorf("failed to save stake %s: %w", stakeID, err)
		}
		res = &RewardSettlement{Claim: *claim, Position: *stake}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"stake_id":     stakeID,
		"amount":       res.Claim.Amount.String(),
		"school_share": res.Claim.SchoolShare.String(),
	}).Info("staking rewards claimed")
	return res, nil
}

// poolOf reads the pool id of a stake so the pool lock can be taken with the stake lock
func (e *StakingRewardEngine) poolOf(ctx context.Context, stakeID string) (uint, error) {
	stake, err := loadStake(ctx, e.repo, stakeID)
	if err != nil {
		return 0, err
	}
	return stake.PoolID, nil
}

// Compound claims the accrued rewards and adds them to the staked principal
func (e *StakingRewardEngine) Compound(ctx context.Context, stakeID string, asOf time.Time) (*RewardSettlement, error) {
	poolID, err := e.poolOf(ctx, stakeID)
	if err != nil {
		return nil, err
	}

	var res *RewardSettlement
	err = e.repo.Atomically(ctx, []LockKey{StakeLock(stakeID), PoolLock(poolID)}, func(ctx context.Context, repo Repository) error {
		stake, err := loadStake(ctx, repo, stakeID)
		if err != nil {
			return err
		}
		if err := requireActive(stake); err != nil {
			return err
		}
		pool, err := loadPool(ctx, repo, poolID)
		if err != nil {
			return err
		}
		if !pool.IsActive {
			return newError(ErrPoolInactive, "pool %d is not active", poolID)
		}
		AccrueRewards(stake, *pool, asOf)
		rewards := stake.AccruedRewards
		if !rewards.IsPositive() {
			return newError(ErrNothingToClaim, "stake %s has no accrued rewards", stakeID)
		}

		principal := stake.StakedAmount.Add(rewards)
		if principal.GreaterThan(pool.MaxStake) {
			return boundError(ErrAboveMaximum, principal, pool.MaxStake,
				"compounded stake of %s is above the pool maximum of %s", principal, pool.MaxStake)
		}
		total := pool.TotalStaked.Add(rewards)
		if total.GreaterThan(pool.MaxPoolSize) {
			return boundError(ErrPoolFull, total, pool.MaxPoolSize,
				"pool %d holds %s of %s, compound of %s does not fit", poolID, pool.TotalStaked, pool.MaxPoolSize, rewards)
		}

		claim, err := e.settle(ctx, repo, stake, asOf, true)
		if err != nil {
			return err
		}
		stake.StakedAmount = principal
		pool.TotalStaked = total
		if err := repo.SavePool(ctx, pool); err != nil {
			return fmt.Errorf("failed to save pool %d: %w", poolID, err)
		}
		if err := repo.SaveStake(ctx, stake); err != nil {
			return fmt.Errorf("failed to save stake %s: %w", stakeID, err)
		}
		res = &RewardSettlement{Claim: *claim, Position: *stake}
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"stake_id":  stakeID,
		"amount":    res.Claim.Amount.String(),
		"principal": res.Position.StakedAmount.String(),
	}).Info("staking rewards compounded")
	return res, nil
}

func (e *StakingRewardEngine) penaltyPercent(pool models.StakingPool) decimal.Decimal {
	if pool.EarlyUnstakePenaltyPercent.IsPositive() {
		return pool.EarlyUnstakePenaltyPercent
	}
	return e.cfg.EarlyUnstakePenaltyPercent
}

// Unstake releases the principal. Before the lock ends it fails with
// LockNotElapsed unless acceptPenalty is set, in which case the penalty share
// of the principal is forfeited to the configured sink. Outstanding rewards
// are settled as a claim.
func (e *StakingRewardEngine) Unstake(ctx context.Context, stakeID string, asOf time.Time, acceptPenalty bool) (*UnstakeResult, error) {
	poolID, err := e.poolOf(ctx, stakeID)
	if err != nil {
		return nil, err
	}

	var res *UnstakeResult
	err = e.repo.Atomically(ctx, []LockKey{StakeLock(stakeID), PoolLock(poolID)}, func(ctx context.Context, repo Repository) error {
		stake, err := loadStake(ctx, repo, stakeID)
		if err != nil {
			return err
		}
		if err := requireActive(stake); err != nil {
			return err
		}
		pool, err := loadPool(ctx, repo, poolID)
		if err != nil {
			return err
		}
		AccrueRewards(stake, *pool, asOf)

		penalty := decimal.Zero
		unlockAt := stake.UnlockAt()
		if asOf.Before(unlockAt) {
			if !acceptPenalty {
				return newError(ErrLockNotElapsed, "stake %s is locked until %s", stakeID, unlockAt.Format(time.RFC3339))
			}
			penalty = utils.PercentOf(stake.StakedAmount, e.penaltyPercent(*pool), utils.TokenDecimals)
		}
		if penalty.IsPositive() {
			record := &models.PenaltyRecord{
				StakeID:       stakeID,
				PoolID:        poolID,
				WalletAddress: stake.WalletAddress,
				Amount:        penalty,
				Sink:          e.cfg.PenaltySink,
				CreatedAt:     asOf,
			}
			if err := repo.AddPenalty(ctx, record); err != nil {
				return fmt.Errorf("failed to record penalty: %w", err)
			}
		}

		res = &UnstakeResult{Penalty: penalty, Returned: stake.StakedAmount.Sub(penalty)}
		if stake.AccruedRewards.IsPositive() {
			claim, err := e.settle(ctx, repo, stake, asOf, false)
			if err != nil {
				return err
			}
			res.Rewards = claim
		}

		pool.TotalStaked = pool.TotalStaked.Sub(stake.StakedAmount)
		if pool.TotalStaked.IsNegative() {
			return invariantViolation(e.log, "pool %d total staked would drop to %s", poolID, pool.TotalStaked)
		}

		unstakeDate := asOf
		stake.UnstakeDate = &unstakeDate
		stake.IsActive = false
		stake.Status = models.StakeStatusClosed
		if e.cfg.UnstakeCooldown > 0 {
			stake.Status = models.StakeStatusUnstaking
		}

		if err := repo.SavePool(ctx, pool); err != nil {
			return fmt.Errorf("failed to save pool %d: %w", poolID, err)
		}
		if err := repo.SaveStake(ctx, stake); err != nil {
			return fmt.Errorf("failed to save stake %s: %w", stakeID, err)
		}
		res.Position = *stake
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithFields(logrus.Fields{
		"stake_id": stakeID,
		"penalty":  res.Penalty.String(),
		"returned": res.Returned.String(),
		"status":   res.Position.Status,
	}).Info("stake unstaked")
	return res, nil
}

// Withdraw closes an unstaking position once the cooldown has elapsed
func (e *StakingRewardEngine) Withdraw(ctx context.Context, stakeID string, asOf time.Time) (*models.UserStakePosition, error) {
	var position *models.UserStakePosition
	err := e.repo.Atomically(ctx, []LockKey{StakeLock(stakeID)}, func(ctx context.Context, repo Repository) error {
		stake, err := loadStake(ctx, repo, stakeID)
		if err != nil {
			return err
		}
		if stake.Status != models.StakeStatusUnstaking || stake.UnstakeDate == nil {
			return newError(ErrPositionNotActive, "stake %s is %s, not unstaking", stakeID, stake.Status)
		}
		readyAt := stake.UnstakeDate.Add(e.cfg.UnstakeCooldown)
		if asOf.Before(readyAt) {
			return newError(ErrCooldownNotElapsed, "stake %s can be withdrawn from %s", stakeID, readyAt.Format(time.RFC3339))
		}
		stake.Status = models.StakeStatusClosed
		if err := repo.SaveStake(ctx, stake); err != nil {
			return fmt.Errorf("failed to save stake %s: %w", stakeID, err)
		}
		position = stake
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.log.WithField("stake_id", stakeID).Info("stake withdrawn")
	return position, nil
}

// SelectBeneficiary sets the beneficiary credited with a share of wallet's future reward claims
func (e *StakingRewardEngine) SelectBeneficiary(ctx context.Context, wallet string, beneficiaryID uint, asOf time.Time) (*models.BeneficiarySelection, error) {
	if err := ValidateWalletAddress(wallet); err != nil {
		return nil, err
	}
	var selection *models.BeneficiarySelection
	err := e.repo.Atomically(ctx, []LockKey{WalletLock(wallet)}, func(ctx context.Context, repo Repository) error {
		beneficiary, err := repo.GetBeneficiary(ctx, beneficiaryID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return newError(ErrBeneficiaryNotFound, "beneficiary %d does not exist", beneficiaryID)
			}
			return fmt.Errorf("failed to load beneficiary %d: %w", beneficiaryID, err)
		}
		if !beneficiary.IsActive {
			return newError(ErrBeneficiaryInactive, "beneficiary %d is not active", beneficiaryID)
		}
		selection = &models.BeneficiarySelection{
			WalletAddress: wallet,
			BeneficiaryID: beneficiaryID,
			SelectedAt:    asOf,
		}
		return repo.SaveBeneficiarySelection(ctx, selection)
	})
	if err != nil {
		return nil, err
	}
	return selection, nil
}
