package config

import (
	"fmt"
	"os"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"crowdsale/internal/models"
)

var DB *gorm.DB

// DatabaseDSN builds the postgres DSN from DB_* variables
func DatabaseDSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=UTC",
		os.Getenv("DB_HOST"),
		os.Getenv("DB_USER"),
		os.Getenv("DB_PASSWORD"),
		os.Getenv("DB_NAME"),
		Getenv("DB_PORT", "5432"),
	)
}

// OpenDB connects to dsn and migrates the sale and staking tables
func OpenDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(20)           // 空闲连接池中的最大连接数
	sqlDB.SetMaxOpenConns(100)          // 打开数据库连接的最大数量
	sqlDB.SetConnMaxLifetime(time.Hour) // 连接可复用的最大时间

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// AutoMigrate creates or updates every table of the service
func AutoMigrate(db *gorm.DB) error {
	err := db.AutoMigrate(
		&models.SaleTier{},
		&models.PurchasePosition{},
		&models.UserPurchase{},
		&models.UserTierAmount{},
		&models.VestingClaim{},
		&models.StakingPool{},
		&models.UserStakePosition{},
		&models.StakingRewardClaim{},
		&models.PenaltyRecord{},
		&models.SchoolBeneficiary{},
		&models.BeneficiarySelection{},
		&models.BeneficiaryCredit{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// InitDB initializes the global database connection
func InitDB() {
	db, err := OpenDB(DatabaseDSN())
	if err != nil {
		log.Fatal(err)
	}
	DB = db
}
