package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchasePosition is one committed purchase of a wallet against a tier.
// Rows are never deleted; ClaimedAmount is the only field that changes after insert.
type PurchasePosition struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	WalletAddress string          `json:"wallet_address" gorm:"size:64;not null;index"`
	TierID        uint            `json:"tier_id" gorm:"not null;index"`
	UsdAmount     decimal.Decimal `json:"usd_amount" gorm:"type:numeric(38,18);not null"`
	TokenAmount   decimal.Decimal `json:"token_amount" gorm:"type:numeric(38,18);not null"`
	FeeUsd        decimal.Decimal `json:"fee_usd" gorm:"type:numeric(38,18);not null;default:0"`
	ClaimedAmount decimal.Decimal `json:"claimed_amount" gorm:"type:numeric(38,18);not null;default:0"`
	PurchaseTime  time.Time       `json:"purchase_time" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PurchasePosition) TableName() string {
	return "purchase_positions"
}

// UserPurchase aggregates every purchase of one wallet
type UserPurchase struct {
	ID            uint             `json:"id" gorm:"primaryKey"`
	Address       string           `json:"address" gorm:"size:64;not null;uniqueIndex"`
	TotalTokens   decimal.Decimal  `json:"total_tokens" gorm:"type:numeric(38,18);not null;default:0"`
	TotalUsd      decimal.Decimal  `json:"total_usd" gorm:"type:numeric(38,18);not null;default:0"`
	ClaimedTokens decimal.Decimal  `json:"claimed_tokens" gorm:"type:numeric(38,18);not null;default:0"`
	LastClaimTime *time.Time       `json:"last_claim_time"`
	TierAmounts   []UserTierAmount `json:"tier_amounts" gorm:"foreignKey:Address;references:Address"`
	CreatedAt     time.Time        `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (UserPurchase) TableName() string {
	return "user_purchases"
}

// UserTierAmount is the per tier share of a UserPurchase
type UserTierAmount struct {
	ID          uint            `json:"id" gorm:"primaryKey"`
	Address     string          `json:"address" gorm:"size:64;not null;uniqueIndex:idx_user_tier"`
	TierID      uint            `json:"tier_id" gorm:"not null;uniqueIndex:idx_user_tier"`
	TokenAmount decimal.Decimal `json:"token_amount" gorm:"type:numeric(38,18);not null;default:0"`
	UsdAmount   decimal.Decimal `json:"usd_amount" gorm:"type:numeric(38,18);not null;default:0"`
}

func (UserTierAmount) TableName() string {
	return "user_tier_amounts"
}

// VestingClaim records a claim of vested sale tokens
type VestingClaim struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	WalletAddress string          `json:"wallet_address" gorm:"size:64;not null;index"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	ClaimTime     time.Time       `json:"claim_time" gorm:"not null"`
	CreatedAt     time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (VestingClaim) TableName() string {
	return "vesting_claims"
}
