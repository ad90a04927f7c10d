package tokenomics

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseEvent is emitted after a reservation commits. It carries everything
// the vesting calculator needs to derive the purchase's unlock schedule.
type PurchaseEvent struct {
	PurchaseID        uint            `json:"purchase_id"`
	TierID            uint            `json:"tier_id"`
	WalletAddress     string          `json:"wallet_address"`
	UsdAmount         decimal.Decimal `json:"usd_amount"`
	TokenAmount       decimal.Decimal `json:"token_amount"`
	VestingTgePercent decimal.Decimal `json:"vesting_tge_percent"`
	VestingMonths     int             `json:"vesting_months"`
	PurchaseTime      time.Time       `json:"purchase_time"`
}

// EventPublisher delivers purchase events to their consumers
type EventPublisher interface {
	PublishPurchase(ctx context.Context, event PurchaseEvent) error
}

// NopPublisher drops every event
type NopPublisher struct{}

func (NopPublisher) PublishPurchase(ctx context.Context, event PurchaseEvent) error {
	return nil
}

// MultiPublisher fans an event out to every publisher. All publishers are
// tried; their errors are joined.
type MultiPublisher []EventPublisher

func (m MultiPublisher) PublishPurchase(ctx context.Context, event PurchaseEvent) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.PublishPurchase(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
