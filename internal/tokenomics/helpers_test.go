package tokenomics

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blocto/solana-go-sdk/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"crowdsale/internal/models"
)

var t0 = time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newWallet() string {
	return types.NewAccount().PublicKey.ToBase58()
}

func quietLogger() *logrus.Entry {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return logrus.NewEntry(log)
}

func newTestEngine(t *testing.T, cfg Config, publisher EventPublisher) (*Engine, *MemoryRepository) {
	t.Helper()
	repo := NewMemoryRepository()
	engine, err := NewEngine(repo, cfg, publisher, quietLogger())
	require.NoError(t, err)
	return engine, repo
}

func seedTier(t *testing.T, repo Repository, tier models.SaleTier) models.SaleTier {
	t.Helper()
	require.NoError(t, repo.SaveTier(context.Background(), &tier))
	return tier
}

func seedPool(t *testing.T, repo Repository, pool models.StakingPool) models.StakingPool {
	t.Helper()
	require.NoError(t, repo.SavePool(context.Background(), &pool))
	return pool
}

// saleTier is a $0.05 tier with a 1,000,000 token allocation
func saleTier() models.SaleTier {
	return models.SaleTier{
		Name:              "Seed",
		Price:             d("0.05"),
		Allocation:        d("1000000"),
		Sold:              decimal.Zero,
		MinPurchase:       d("10"),
		MaxPurchase:       d("100000000"),
		VestingTgePercent: d("20"),
		VestingMonths:     10,
		IsActive:          true,
	}
}

// stakingPool is a 10% + 5% APY pool without a lock
func stakingPool() models.StakingPool {
	return models.StakingPool{
		Name:        "Flexible",
		MinStake:    d("100"),
		MaxStake:    d("1000000"),
		BaseAPY:     d("10"),
		BonusAPY:    d("5"),
		TotalStaked: decimal.Zero,
		MaxPoolSize: d("10000000"),
		IsActive:    true,
	}
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []PurchaseEvent
	err    error
}

func (p *recordingPublisher) PublishPurchase(ctx context.Context, event PurchaseEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

var errBrokerDown = errors.New("broker unavailable")
