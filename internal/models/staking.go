package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stake position states
const (
	StakeStatusActive    = "active"
	StakeStatusUnstaking = "unstaking"
	StakeStatusClosed    = "closed"
)

// Early unstake penalty sinks
const (
	PenaltySinkPool     = "pool"
	PenaltySinkTreasury = "treasury"
	PenaltySinkBurn     = "burn"
)

// StakingPool holds the parameters and running total of a staking pool.
// APY values are percentages (10 means 10%).
type StakingPool struct {
	ID                         uint            `json:"id" gorm:"primaryKey"`
	Name                       string          `json:"name" gorm:"size:100;not null"`
	MinStake                   decimal.Decimal `json:"min_stake" gorm:"type:numeric(38,18);not null"`
	MaxStake                   decimal.Decimal `json:"max_stake" gorm:"type:numeric(38,18);not null"`
	LockPeriodDays             int             `json:"lock_period_days" gorm:"not null;default:0"`
	BaseAPY                    decimal.Decimal `json:"base_apy" gorm:"type:numeric(10,4);not null"`
	BonusAPY                   decimal.Decimal `json:"bonus_apy" gorm:"type:numeric(10,4);not null;default:0"`
	TotalStaked                decimal.Decimal `json:"total_staked" gorm:"type:numeric(38,18);not null;default:0"`
	MaxPoolSize                decimal.Decimal `json:"max_pool_size" gorm:"type:numeric(38,18);not null"`
	EarlyUnstakePenaltyPercent decimal.Decimal `json:"early_unstake_penalty_percent" gorm:"type:numeric(10,4);not null;default:0"`
	IsActive                   bool            `json:"is_active" gorm:"not null"`
	CreatedAt                  time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt                  time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (StakingPool) TableName() string {
	return "staking_pools"
}

// APY returns base plus bonus APY
func (p StakingPool) APY() decimal.Decimal {
	return p.BaseAPY.Add(p.BonusAPY)
}

// UserStakePosition is a wallet's stake in one pool
type UserStakePosition struct {
	StakeID        string          `json:"stake_id" gorm:"primaryKey;size:36"`
	WalletAddress  string          `json:"wallet_address" gorm:"size:64;not null;index"`
	PoolID         uint            `json:"pool_id" gorm:"not null;index"`
	StakedAmount   decimal.Decimal `json:"staked_amount" gorm:"type:numeric(38,18);not null"`
	AccruedRewards decimal.Decimal `json:"accrued_rewards" gorm:"type:numeric(38,18);not null;default:0"`
	ClaimedRewards decimal.Decimal `json:"claimed_rewards" gorm:"type:numeric(38,18);not null;default:0"`
	LockPeriodDays int             `json:"lock_period_days" gorm:"not null"`
	StakeDate      time.Time       `json:"stake_date" gorm:"not null"`
	UnstakeDate    *time.Time      `json:"unstake_date"`
	LastRewardCalc time.Time       `json:"last_reward_calc" gorm:"not null"`
	Status         string          `json:"status" gorm:"size:20;not null;index"`
	IsActive       bool            `json:"is_active" gorm:"not null"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (UserStakePosition) TableName() string {
	return "user_stake_positions"
}

// UnlockAt is the end of the position's lock period
func (p UserStakePosition) UnlockAt() time.Time {
	return p.StakeDate.AddDate(0, 0, p.LockPeriodDays)
}

// StakingRewardClaim records a reward claim or compound.
// SchoolShare is attributed to the beneficiary in parallel and does not reduce UserShare.
type StakingRewardClaim struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	StakeID       string          `json:"stake_id" gorm:"size:36;not null;index"`
	WalletAddress string          `json:"wallet_address" gorm:"size:64;not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	UserShare     decimal.Decimal `json:"user_share" gorm:"type:numeric(38,18);not null"`
	SchoolShare   decimal.Decimal `json:"school_share" gorm:"type:numeric(38,18);not null;default:0"`
	BeneficiaryID *uint           `json:"beneficiary_id"`
	Compounded    bool            `json:"compounded" gorm:"not null;default:false"`
	ClaimTime     time.Time       `json:"claim_time" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (StakingRewardClaim) TableName() string {
	return "staking_reward_claims"
}

// PenaltyRecord records principal forfeited on an early unstake
type PenaltyRecord struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	StakeID       string          `json:"stake_id" gorm:"size:36;not null;index"`
	PoolID        uint            `json:"pool_id" gorm:"not null"`
	WalletAddress string          `json:"wallet_address" gorm:"size:64;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	Sink          string          `json:"sink" gorm:"size:20;not null"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (PenaltyRecord) TableName() string {
	return "penalty_records"
}
