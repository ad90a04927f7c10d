package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// SaleTier is a priced allocation band of the token sale
type SaleTier struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	Name              string          `json:"name" gorm:"size:100;not null"`
	Price             decimal.Decimal `json:"price" gorm:"type:numeric(38,18);not null"`
	Allocation        decimal.Decimal `json:"allocation" gorm:"type:numeric(38,18);not null"`
	Sold              decimal.Decimal `json:"sold" gorm:"type:numeric(38,18);not null;default:0"`
	MinPurchase       decimal.Decimal `json:"min_purchase" gorm:"type:numeric(38,18);not null"`
	MaxPurchase       decimal.Decimal `json:"max_purchase" gorm:"type:numeric(38,18);not null"`
	VestingTgePercent decimal.Decimal `json:"vesting_tge_percent" gorm:"type:numeric(10,4);not null;default:0"`
	VestingMonths     int             `json:"vesting_months" gorm:"not null;default:0"`
	IsActive          bool            `json:"is_active" gorm:"not null"`
	StartsAt          *time.Time      `json:"starts_at"`
	EndsAt            *time.Time      `json:"ends_at"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName specifies the table name
func (SaleTier) TableName() string {
	return "sale_tiers"
}

// Remaining returns the unsold part of the allocation
func (t SaleTier) Remaining() decimal.Decimal {
	return t.Allocation.Sub(t.Sold)
}

// InWindow reports whether asOf falls inside the tier's sale window.
// A missing bound is open.
func (t SaleTier) InWindow(asOf time.Time) bool {
	if t.StartsAt != nil && asOf.Before(*t.StartsAt) {
		return false
	}
	if t.EndsAt != nil && !asOf.Before(*t.EndsAt) {
		return false
	}
	return true
}
