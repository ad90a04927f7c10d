package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SchoolBeneficiary is a third party that can receive a share of staking rewards
type SchoolBeneficiary struct {
	ID            uint      `json:"id" gorm:"primaryKey"`
	Name          string    `json:"name" gorm:"size:200;not null"`
	WalletAddress string    `json:"wallet_address" gorm:"size:64"`
	IsActive      bool      `json:"is_active" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

func (SchoolBeneficiary) TableName() string {
	return "school_beneficiaries"
}

// BeneficiarySelection links a staking wallet to its chosen beneficiary
type BeneficiarySelection struct {
	WalletAddress string    `json:"wallet_address" gorm:"primaryKey;size:64"`
	BeneficiaryID uint      `json:"beneficiary_id" gorm:"not null;index"`
	SelectedAt    time.Time `json:"selected_at" gorm:"not null"`
}

func (BeneficiarySelection) TableName() string {
	return "beneficiary_selections"
}

// BeneficiaryCredit is one entry of the beneficiary received-total ledger
type BeneficiaryCredit struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	BeneficiaryID uint            `json:"beneficiary_id" gorm:"not null;index"`
	StakeID       string          `json:"stake_id" gorm:"size:36;not null"`
	WalletAddress string          `json:"wallet_address" gorm:"size:64;not null"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(38,18);not null"`
	CreditedAt    time.Time       `json:"credited_at" gorm:"not null"`
}

func (BeneficiaryCredit) TableName() string {
	return "beneficiary_credits"
}
