package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"crowdsale/internal/models"
	"crowdsale/pkg/config"
)

// seedFile 初始化数据格式
type seedFile struct {
	Tiers []struct {
		Name              string          `json:"name"`
		Price             decimal.Decimal `json:"price"`
		Allocation        decimal.Decimal `json:"allocation"`
		MinPurchase       decimal.Decimal `json:"min_purchase"`
		MaxPurchase       decimal.Decimal `json:"max_purchase"`
		VestingTgePercent decimal.Decimal `json:"vesting_tge_percent"`
		VestingMonths     int             `json:"vesting_months"`
		StartsAt          *time.Time      `json:"starts_at"`
		EndsAt            *time.Time      `json:"ends_at"`
	} `json:"tiers"`
	Pools []struct {
		Name                       string          `json:"name"`
		MinStake                   decimal.Decimal `json:"min_stake"`
		MaxStake                   decimal.Decimal `json:"max_stake"`
		LockPeriodDays             int             `json:"lock_period_days"`
		BaseAPY                    decimal.Decimal `json:"base_apy"`
		BonusAPY                   decimal.Decimal `json:"bonus_apy"`
		MaxPoolSize                decimal.Decimal `json:"max_pool_size"`
		EarlyUnstakePenaltyPercent decimal.Decimal `json:"early_unstake_penalty_percent"`
	} `json:"pools"`
	Beneficiaries []struct {
		Name          string `json:"name"`
		WalletAddress string `json:"wallet_address"`
	} `json:"beneficiaries"`
}

// Seeds tiers, pools and beneficiaries. Existing rows are matched by name and
// left untouched so running the script twice never resets sold or staked totals.
//
//	go run scripts/seed_sale.go -file scripts/seed_sale.json
func main() {
	path := flag.String("file", "scripts/seed_sale.json", "seed data file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	config.LoadEnv()

	raw, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("> 读取初始化文件失败: %v", err)
	}
	var seed seedFile
	if err := json.Unmarshal(raw, &seed); err != nil {
		log.Fatalf("> 解析初始化文件失败: %v", err)
	}

	config.InitDB()
	err = config.DB.Transaction(func(tx *gorm.DB) error {
		for _, t := range seed.Tiers {
			tier := models.SaleTier{
				Name:              t.Name,
				Price:             t.Price,
				Allocation:        t.Allocation,
				Sold:              decimal.Zero,
				MinPurchase:       t.MinPurchase,
				MaxPurchase:       t.MaxPurchase,
				VestingTgePercent: t.VestingTgePercent,
				VestingMonths:     t.VestingMonths,
				IsActive:          true,
				StartsAt:          t.StartsAt,
				EndsAt:            t.EndsAt,
			}
			result := tx.Where("name = ?", t.Name).FirstOrCreate(&tier)
			if result.Error != nil {
				return result.Error
			}
			log.Infof("> 档位 %s (id=%d) created=%v", tier.Name, tier.ID, result.RowsAffected > 0)
		}
		for _, p := range seed.Pools {
			pool := models.StakingPool{
				Name:                       p.Name,
				MinStake:                   p.MinStake,
				MaxStake:                   p.MaxStake,
				LockPeriodDays:             p.LockPeriodDays,
				BaseAPY:                    p.BaseAPY,
				BonusAPY:                   p.BonusAPY,
				TotalStaked:                decimal.Zero,
				MaxPoolSize:                p.MaxPoolSize,
				EarlyUnstakePenaltyPercent: p.EarlyUnstakePenaltyPercent,
				IsActive:                   true,
			}
			result := tx.Where("name = ?", p.Name).FirstOrCreate(&pool)
			if result.Error != nil {
				return result.Error
			}
			log.Infof("> 质押池 %s (id=%d) created=%v", pool.Name, pool.ID, result.RowsAffected > 0)
		}
		for _, b := range seed.Beneficiaries {
			beneficiary := models.SchoolBeneficiary{Name: b.Name, WalletAddress: b.WalletAddress, IsActive: true}
			if err := tx.Where("name = ?", b.Name).FirstOrCreate(&beneficiary).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("> 初始化数据失败: %v", err)
	}
	log.Info("> 初始化数据完成")
}
