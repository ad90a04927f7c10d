package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"crowdsale/internal/tokenomics"
)

// DefaultPurchaseQueue is the queue purchase events are published to
const DefaultPurchaseQueue = "sale.purchases"

// LoadEnv loads a .env file from the working directory when one exists.
// Variables already set in the environment win.
func LoadEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Warnf("Failed to load .env file: %v", err)
	}
}

// Getenv returns the value of key, or fallback when it is unset or empty
func Getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDecimal(key string, fallback decimal.Decimal) (decimal.Decimal, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

func envInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

// LoadEngineConfig builds the tokenomics configuration from the environment
func LoadEngineConfig() (tokenomics.Config, error) {
	cfg := tokenomics.DefaultConfig()
	var err error

	if v := os.Getenv("TGE_TIME"); v != "" {
		cfg.TGETime, err = time.Parse(time.RFC3339, v)
		if err != nil {
			return cfg, fmt.Errorf("TGE_TIME: %w", err)
		}
	}
	if cfg.PlatformFeePercent, err = envDecimal("PLATFORM_FEE_PERCENT", cfg.PlatformFeePercent); err != nil {
		return cfg, err
	}
	if cfg.NetworkFeeUsd, err = envDecimal("NETWORK_FEE_USD", cfg.NetworkFeeUsd); err != nil {
		return cfg, err
	}
	if cfg.EarlyUnstakePenaltyPercent, err = envDecimal("EARLY_UNSTAKE_PENALTY_PERCENT", cfg.EarlyUnstakePenaltyPercent); err != nil {
		return cfg, err
	}
	if cfg.BeneficiarySharePercent, err = envDecimal("BENEFICIARY_SHARE_PERCENT", cfg.BeneficiarySharePercent); err != nil {
		return cfg, err
	}
	cfg.PenaltySink = Getenv("PENALTY_SINK", cfg.PenaltySink)

	hours, err := envInt("UNSTAKE_COOLDOWN_HOURS", 0)
	if err != nil {
		return cfg, err
	}
	cfg.UnstakeCooldown = time.Duration(hours) * time.Hour

	if cfg.MaxProjectionDays, err = envInt("MAX_PROJECTION_DAYS", cfg.MaxProjectionDays); err != nil {
		return cfg, err
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// PurchaseQueue returns the name of the purchase event queue
func PurchaseQueue() string {
	return Getenv("PURCHASE_EVENT_QUEUE", DefaultPurchaseQueue)
}
