package tokenomics

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"crowdsale/internal/models"
	"crowdsale/pkg/utils"
)

// Config holds the engine-wide settings
type Config struct {
	// TGETime is the shared vesting start for every tier. Zero means each
	// position vests from its own purchase time.
	TGETime time.Time

	PlatformFeePercent decimal.Decimal
	NetworkFeeUsd      decimal.Decimal

	// EarlyUnstakePenaltyPercent applies to pools that do not set their own penalty
	EarlyUnstakePenaltyPercent decimal.Decimal
	PenaltySink                string

	// BeneficiarySharePercent of every claimed staking reward is credited to the
	// wallet's selected beneficiary
	BeneficiarySharePercent decimal.Decimal

	// UnstakeCooldown > 0 moves unstaked positions to the unstaking state until
	// the cooldown elapses and Withdraw is called
	UnstakeCooldown time.Duration

	MaxProjectionDays int
}

// DefaultConfig returns the default engine configuration
func DefaultConfig() Config {
	return Config{
		PlatformFeePercent:         utils.DefaultPlatformFeePercent,
		NetworkFeeUsd:              utils.DefaultNetworkFeeUsd,
		EarlyUnstakePenaltyPercent: decimal.NewFromInt(10),
		PenaltySink:                models.PenaltySinkTreasury,
		BeneficiarySharePercent:    decimal.NewFromInt(10),
		MaxProjectionDays:          3650,
	}
}

// Validate checks the configuration bounds
func (c Config) Validate() error {
	hundred := decimal.NewFromInt(100)
	if c.PlatformFeePercent.IsNegative() || c.PlatformFeePercent.GreaterThan(hundred) {
		return fmt.Errorf("platform fee percent must be in [0, 100], got %s", c.PlatformFeePercent)
	}
	if c.NetworkFeeUsd.IsNegative() {
		return fmt.Errorf("network fee must not be negative, got %s", c.NetworkFeeUsd)
	}
	if c.EarlyUnstakePenaltyPercent.IsNegative() || c.EarlyUnstakePenaltyPercent.GreaterThan(hundred) {
		return fmt.Errorf("early unstake penalty percent must be in [0, 100], got %s", c.EarlyUnstakePenaltyPercent)
	}
	if c.BeneficiarySharePercent.IsNegative() || c.BeneficiarySharePercent.GreaterThan(hundred) {
		return fmt.Errorf("beneficiary share percent must be in [0, 100], got %s", c.BeneficiarySharePercent)
	}
	switch c.PenaltySink {
	case models.PenaltySinkPool, models.PenaltySinkTreasury, models.PenaltySinkBurn:
	default:
		return fmt.Errorf("unknown penalty sink %q", c.PenaltySink)
	}
	if c.UnstakeCooldown < 0 {
		return fmt.Errorf("unstake cooldown must not be negative, got %s", c.UnstakeCooldown)
	}
	if c.MaxProjectionDays <= 0 {
		return fmt.Errorf("max projection days must be positive, got %d", c.MaxProjectionDays)
	}
	return nil
}
