package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"crowdsale/internal/models"
	"crowdsale/internal/tokenomics"
)

// GormRepository stores engine state in postgres. Atomically runs the callback
// in one transaction holding a transaction scoped advisory lock per key.
type GormRepository struct {
	db   *gorm.DB
	inTx bool
}

func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

func (r *GormRepository) Atomically(ctx context.Context, keys []tokenomics.LockKey, fn func(ctx context.Context, repo tokenomics.Repository) error) error {
	if r.inTx {
		return fn(ctx, r)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, key := range tokenomics.LockOrder(keys) {
			if err := tx.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", string(key)).Error; err != nil {
				return fmt.Errorf("failed to lock %s: %w", key, err)
			}
		}
		return fn(ctx, &GormRepository{db: tx, inTx: true})
	})
}

func (r *GormRepository) conn(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// notFound maps gorm's missing record error onto the repository contract
func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return tokenomics.ErrNotFound
	}
	return err
}

func (r *GormRepository) GetTier(ctx context.Context, id uint) (*models.SaleTier, error) {
	var tier models.SaleTier
	if err := r.conn(ctx).First(&tier, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &tier, nil
}

func (r *GormRepository) ListTiers(ctx context.Context) ([]models.SaleTier, error) {
	var tiers []models.SaleTier
	err := r.conn(ctx).Order("id").Find(&tiers).Error
	return tiers, err
}

func (r *GormRepository) SaveTier(ctx context.Context, tier *models.SaleTier) error {
	return r.conn(ctx).Save(tier).Error
}

func (r *GormRepository) AddPurchase(ctx context.Context, purchase *models.PurchasePosition) error {
	return r.conn(ctx).Create(purchase).Error
}

func (r *GormRepository) SavePurchase(ctx context.Context, purchase *models.PurchasePosition) error {
	return r.conn(ctx).Save(purchase).Error
}

func (r *GormRepository) ListPurchases(ctx context.Context, wallet string) ([]models.PurchasePosition, error) {
	var purchases []models.PurchasePosition
	err := r.conn(ctx).Where("wallet_address = ?", wallet).Order("id").Find(&purchases).Error
	return purchases, err
}

func (r *GormRepository) ListPurchasesByTier(ctx context.Context, tierID uint) ([]models.PurchasePosition, error) {
	var purchases []models.PurchasePosition
	err := r.conn(ctx).Where("tier_id = ?", tierID).Order("id").Find(&purchases).Error
	return purchases, err
}

func preloadTierAmounts(db *gorm.DB) *gorm.DB {
	return db.Preload("TierAmounts", func(db *gorm.DB) *gorm.DB {
		return db.Order("tier_id")
	})
}

func (r *GormRepository) GetUserPurchase(ctx context.Context, wallet string) (*models.UserPurchase, error) {
	var user models.UserPurchase
	if err := preloadTierAmounts(r.conn(ctx)).Where("address = ?", wallet).First(&user).Error; err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

func (r *GormRepository) ListUserPurchases(ctx context.Context) ([]models.UserPurchase, error) {
	var users []models.UserPurchase
	err := preloadTierAmounts(r.conn(ctx)).Order("address").Find(&users).Error
	return users, err
}

// SaveUserPurchase saves the aggregate and upserts its tier amounts
func (r *GormRepository) SaveUserPurchase(ctx context.Context, user *models.UserPurchase) error {
	return r.conn(ctx).Session(&gorm.Session{FullSaveAssociations: true}).Save(user).Error
}

func (r *GormRepository) AddVestingClaim(ctx context.Context, claim *models.VestingClaim) error {
	return r.conn(ctx).Create(claim).Error
}

func (r *GormRepository) GetPool(ctx context.Context, id uint) (*models.StakingPool, error) {
	var pool models.StakingPool
	if err := r.conn(ctx).First(&pool, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &pool, nil
}

func (r *GormRepository) ListPools(ctx context.Context) ([]models.StakingPool, error) {
	var pools []models.StakingPool
	err := r.conn(ctx).Order("id").Find(&pools).Error
	return pools, err
}

func (r *GormRepository) SavePool(ctx context.Context, pool *models.StakingPool) error {
	return r.conn(ctx).Save(pool).Error
}

func (r *GormRepository) GetStake(ctx context.Context, stakeID string) (*models.UserStakePosition, error) {
	var stake models.UserStakePosition
	if err := r.conn(ctx).Where("stake_id = ?", stakeID).First(&stake).Error; err != nil {
		return nil, notFound(err)
	}
	return &stake, nil
}

func (r *GormRepository) ListStakes(ctx context.Context, wallet string) ([]models.UserStakePosition, error) {
	var stakes []models.UserStakePosition
	err := r.conn(ctx).Where("wallet_address = ?", wallet).Order("stake_date, stake_id").Find(&stakes).Error
	return stakes, err
}

func (r *GormRepository) ListStakesByStatus(ctx context.Context, status string) ([]models.UserStakePosition, error) {
	var stakes []models.UserStakePosition
	err := r.conn(ctx).Where("status = ?", status).Order("stake_date, stake_id").Find(&stakes).Error
	return stakes, err
}

func (r *GormRepository) SaveStake(ctx context.Context, stake *models.UserStakePosition) error {
	return r.conn(ctx).Save(stake).Error
}

func (r *GormRepository) AddRewardClaim(ctx context.Context, claim *models.StakingRewardClaim) error {
	return r.conn(ctx).Create(claim).Error
}

func (r *GormRepository) AddPenalty(ctx context.Context, penalty *models.PenaltyRecord) error {
	return r.conn(ctx).Create(penalty).Error
}

func (r *GormRepository) GetBeneficiary(ctx context.Context, id uint) (*models.SchoolBeneficiary, error) {
	var beneficiary models.SchoolBeneficiary
	if err := r.conn(ctx).First(&beneficiary, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &beneficiary, nil
}

func (r *GormRepository) ListBeneficiaries(ctx context.Context) ([]models.SchoolBeneficiary, error) {
	var beneficiaries []models.SchoolBeneficiary
	err := r.conn(ctx).Order("id").Find(&beneficiaries).Error
	return beneficiaries, err
}

func (r *GormRepository) SaveBeneficiary(ctx context.Context, beneficiary *models.SchoolBeneficiary) error {
	return r.conn(ctx).Save(beneficiary).Error
}

func (r *GormRepository) GetBeneficiarySelection(ctx context.Context, wallet string) (*models.BeneficiarySelection, error) {
	var selection models.BeneficiarySelection
	if err := r.conn(ctx).Where("wallet_address = ?", wallet).First(&selection).Error; err != nil {
		return nil, notFound(err)
	}
	return &selection, nil
}

func (r *GormRepository) SaveBeneficiarySelection(ctx context.Context, selection *models.BeneficiarySelection) error {
	return r.conn(ctx).Save(selection).Error
}

func (r *GormRepository) AddBeneficiaryCredit(ctx context.Context, credit *models.BeneficiaryCredit) error {
	return r.conn(ctx).Create(credit).Error
}

type sumResult struct {
	Total decimal.Decimal
}

func (r *GormRepository) BeneficiaryTotal(ctx context.Context, beneficiaryID uint) (decimal.Decimal, error) {
	var result sumResult
	err := r.conn(ctx).Model(&models.BeneficiaryCredit{}).
		Where("beneficiary_id = ?", beneficiaryID).
		Select("COALESCE(SUM(amount), 0) AS total").
		Scan(&result).Error
	return result.Total, err
}

var _ tokenomics.Repository = (*GormRepository)(nil)
