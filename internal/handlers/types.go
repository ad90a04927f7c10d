package handlers

import (
	"github.com/shopspring/decimal"

	"crowdsale/internal/models"
	"crowdsale/internal/tokenomics"
	"crowdsale/pkg/utils"
)

// PurchaseRequest 购买请求
type PurchaseRequest struct {
	TierID        uint   `json:"tier_id" binding:"required"`
	UsdAmount     string `json:"usd_amount" binding:"required"`
	WalletAddress string `json:"wallet_address" binding:"required"`
}

// StakeRequest 质押请求, lock_days 为空时使用池子的锁定期
type StakeRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	PoolID        uint   `json:"pool_id" binding:"required"`
	Amount        string `json:"amount" binding:"required"`
	LockDays      *int   `json:"lock_days"`
}

// UnstakeRequest 解除质押请求
type UnstakeRequest struct {
	AcceptPenalty bool `json:"accept_penalty"`
}

// BeneficiarySelectionRequest 选择受益学校
type BeneficiarySelectionRequest struct {
	WalletAddress string `json:"wallet_address" binding:"required"`
	BeneficiaryID uint   `json:"beneficiary_id" binding:"required"`
}

// PurchaseResp 购买结果
type PurchaseResp struct {
	PurchaseID     uint               `json:"purchase_id"`
	TierID         uint               `json:"tier_id"`
	WalletAddress  string             `json:"wallet_address"`
	UsdAmount      decimal.Decimal    `json:"usd_amount"`
	TokenAmount    decimal.Decimal    `json:"token_amount"`
	Fees           utils.FeeBreakdown `json:"fees"`
	TierRemaining  decimal.Decimal    `json:"tier_remaining"`
	TierActive     bool               `json:"tier_active"`
	WalletTotal    decimal.Decimal    `json:"wallet_total_tokens"`
	WalletTotalUsd decimal.Decimal    `json:"wallet_total_usd"`
	PurchaseTime   int64              `json:"purchase_time"`
}

func newPurchaseResp(r *tokenomics.Reservation) PurchaseResp {
	return PurchaseResp{
		PurchaseID:     r.Purchase.ID,
		TierID:         r.Purchase.TierID,
		WalletAddress:  r.Purchase.WalletAddress,
		UsdAmount:      r.Purchase.UsdAmount,
		TokenAmount:    r.Purchase.TokenAmount,
		Fees:           r.Fees,
		TierRemaining:  r.Tier.Remaining(),
		TierActive:     r.Tier.IsActive,
		WalletTotal:    r.User.TotalTokens,
		WalletTotalUsd: r.User.TotalUsd,
		PurchaseTime:   r.Purchase.PurchaseTime.Unix(),
	}
}

// StakeResp 质押仓位
type StakeResp struct {
	StakeID        string          `json:"stake_id"`
	WalletAddress  string          `json:"wallet_address"`
	PoolID         uint            `json:"pool_id"`
	StakedAmount   decimal.Decimal `json:"staked_amount"`
	AccruedRewards decimal.Decimal `json:"accrued_rewards"`
	ClaimedRewards decimal.Decimal `json:"claimed_rewards"`
	LockPeriodDays int             `json:"lock_period_days"`
	Status         string          `json:"status"`
	StakeDate      int64           `json:"stake_date"`
	UnlockAt       int64           `json:"unlock_at"`
	UnstakeDate    *int64          `json:"unstake_date,omitempty"`
}

func newStakeResp(p models.UserStakePosition) StakeResp {
	resp := StakeResp{
		StakeID:        p.StakeID,
		WalletAddress:  p.WalletAddress,
		PoolID:         p.PoolID,
		StakedAmount:   p.StakedAmount,
		AccruedRewards: p.AccruedRewards,
		ClaimedRewards: p.ClaimedRewards,
		LockPeriodDays: p.LockPeriodDays,
		Status:         p.Status,
		StakeDate:      p.StakeDate.Unix(),
		UnlockAt:       p.UnlockAt().Unix(),
	}
	if p.UnstakeDate != nil {
		ts := p.UnstakeDate.Unix()
		resp.UnstakeDate = &ts
	}
	return resp
}

// RewardClaimResp 奖励领取记录
type RewardClaimResp struct {
	StakeID       string          `json:"stake_id"`
	Amount        decimal.Decimal `json:"amount"`
	UserShare     decimal.Decimal `json:"user_share"`
	SchoolShare   decimal.Decimal `json:"school_share"`
	BeneficiaryID *uint           `json:"beneficiary_id,omitempty"`
	Compounded    bool            `json:"compounded"`
	ClaimTime     int64           `json:"claim_time"`
}

func newRewardClaimResp(c models.StakingRewardClaim) RewardClaimResp {
	return RewardClaimResp{
		StakeID:       c.StakeID,
		Amount:        c.Amount,
		UserShare:     c.UserShare,
		SchoolShare:   c.SchoolShare,
		BeneficiaryID: c.BeneficiaryID,
		Compounded:    c.Compounded,
		ClaimTime:     c.ClaimTime.Unix(),
	}
}

// SettlementResp 领取或复投结果
type SettlementResp struct {
	Claim    RewardClaimResp `json:"claim"`
	Position StakeResp       `json:"position"`
}

// UnstakeResp 解除质押结果
type UnstakeResp struct {
	Position StakeResp        `json:"position"`
	Penalty  decimal.Decimal  `json:"penalty"`
	Returned decimal.Decimal  `json:"returned"`
	Rewards  *RewardClaimResp `json:"rewards,omitempty"`
}

func newUnstakeResp(r *tokenomics.UnstakeResult) UnstakeResp {
	resp := UnstakeResp{
		Position: newStakeResp(r.Position),
		Penalty:  r.Penalty,
		Returned: r.Returned,
	}
	if r.Rewards != nil {
		claim := newRewardClaimResp(*r.Rewards)
		resp.Rewards = &claim
	}
	return resp
}

// VestingClaimResp 归属代币领取结果
type VestingClaimResp struct {
	WalletAddress string          `json:"wallet_address"`
	Amount        decimal.Decimal `json:"amount"`
	ClaimTime     int64           `json:"claim_time"`
}

func newVestingClaimResp(c *models.VestingClaim) VestingClaimResp {
	return VestingClaimResp{WalletAddress: c.WalletAddress, Amount: c.Amount, ClaimTime: c.ClaimTime.Unix()}
}
