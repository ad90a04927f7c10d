package tokenomics

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"crowdsale/internal/models"
)

// ErrNotFound is returned by repositories when a record does not exist
var ErrNotFound = errors.New("record not found")

// LockKey names a unit of mutual exclusion: one tier, wallet, pool or stake position
type LockKey string

func TierLock(id uint) LockKey          { return LockKey(fmt.Sprintf("tier:%d", id)) }
func WalletLock(address string) LockKey { return LockKey("wallet:" + address) }
func PoolLock(id uint) LockKey          { return LockKey(fmt.Sprintf("pool:%d", id)) }
func StakeLock(stakeID string) LockKey  { return LockKey("stake:" + stakeID) }

// LockOrder returns the distinct keys in acquisition order. Every
// implementation takes locks in this order so overlapping sets cannot deadlock.
func LockOrder(keys []LockKey) []LockKey {
	seen := make(map[LockKey]bool, len(keys))
	out := make([]LockKey, 0, len(keys))
	for _, key := range keys {
		if !seen[key] {
			seen[key] = true
			out = append(out, key)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Repository is the storage contract of the engine. The engine owns no state of
// its own; every tier, pool and position lives behind this interface.
type Repository interface {
	// Atomically runs fn holding exclusive locks on keys. Writes made through the
	// repository passed to fn are committed only if fn returns nil.
	Atomically(ctx context.Context, keys []LockKey, fn func(ctx context.Context, repo Repository) error) error

	GetTier(ctx context.Context, id uint) (*models.SaleTier, error)
	ListTiers(ctx context.Context) ([]models.SaleTier, error)
	SaveTier(ctx context.Context, tier *models.SaleTier) error

	AddPurchase(ctx context.Context, purchase *models.PurchasePosition) error
	SavePurchase(ctx context.Context, purchase *models.PurchasePosition) error
	ListPurchases(ctx context.Context, wallet string) ([]models.PurchasePosition, error)
	ListPurchasesByTier(ctx context.Context, tierID uint) ([]models.PurchasePosition, error)
	GetUserPurchase(ctx context.Context, wallet string) (*models.UserPurchase, error)
	ListUserPurchases(ctx context.Context) ([]models.UserPurchase, error)
	SaveUserPurchase(ctx context.Context, user *models.UserPurchase) error
	AddVestingClaim(ctx context.Context, claim *models.VestingClaim) error

	GetPool(ctx context.Context, id uint) (*models.StakingPool, error)
	ListPools(ctx context.Context) ([]models.StakingPool, error)
	SavePool(ctx context.Context, pool *models.StakingPool) error
	GetStake(ctx context.Context, stakeID string) (*models.UserStakePosition, error)
	ListStakes(ctx context.Context, wallet string) ([]models.UserStakePosition, error)
	ListStakesByStatus(ctx context.Context, status string) ([]models.UserStakePosition, error)
	SaveStake(ctx context.Context, stake *models.UserStakePosition) error
	AddRewardClaim(ctx context.Context, claim *models.StakingRewardClaim) error
	AddPenalty(ctx context.Context, penalty *models.PenaltyRecord) error

	GetBeneficiary(ctx context.Context, id uint) (*models.SchoolBeneficiary, error)
	ListBeneficiaries(ctx context.Context) ([]models.SchoolBeneficiary, error)
	SaveBeneficiary(ctx context.Context, beneficiary *models.SchoolBeneficiary) error
	GetBeneficiarySelection(ctx context.Context, wallet string) (*models.BeneficiarySelection, error)
	SaveBeneficiarySelection(ctx context.Context, selection *models.BeneficiarySelection) error
	AddBeneficiaryCredit(ctx context.Context, credit *models.BeneficiaryCredit) error
	BeneficiaryTotal(ctx context.Context, beneficiaryID uint) (decimal.Decimal, error)
}
