package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	logrus "github.com/sirupsen/logrus"

	"crowdsale/internal/tokenomics"
	"crowdsale/pkg/config"
)

// handlePurchase derives the unlock schedule of a committed purchase and logs it
func handlePurchase(vesting *tokenomics.VestingScheduleCalculator) func(context.Context, []byte) error {
	return func(ctx context.Context, msg []byte) error {
		var event tokenomics.PurchaseEvent
		if err := json.Unmarshal(msg, &event); err != nil {
			return fmt.Errorf("%w: malformed purchase event: %v", config.ErrDiscard, err)
		}
		if event.PurchaseID == 0 || !event.TokenAmount.IsPositive() {
			return fmt.Errorf("%w: purchase event without id or tokens", config.ErrDiscard)
		}

		milestones := vesting.ScheduleFor(event)
		logrus.WithFields(logrus.Fields{
			"purchase_id":  event.PurchaseID,
			"tier_id":      event.TierID,
			"wallet":       event.WalletAddress,
			"token_amount": event.TokenAmount.String(),
			"milestones":   len(milestones),
		}).Info("Purchase received")

		for _, m := range milestones {
			if m.Amount.IsZero() {
				continue
			}
			logrus.WithFields(logrus.Fields{
				"purchase_id": event.PurchaseID,
				"index":       m.Index,
				"unlock_at":   m.Timestamp.Unix(),
				"amount":      m.Amount.String(),
				"cumulative":  m.Cumulative.String(),
			}).Debug("Unlock scheduled")
		}
		return nil
	}
}

func main() {
	// Initialize logger
	logrus.SetFormatter(&logrus.JSONFormatter{})
	logrus.SetLevel(logrus.InfoLevel)

	config.LoadEnv()
	engineConfig, err := config.LoadEngineConfig()
	if err != nil {
		logrus.Fatal("Invalid engine configuration: ", err)
	}
	vesting := tokenomics.NewVestingScheduleCalculator(engineConfig.TGETime)

	// Initialize RabbitMQ
	config.InitRabbitMQ()
	defer config.CloseRabbitMQ()

	msgConsumer, err := config.NewConsumer(config.PurchaseQueue())
	if err != nil {
		logrus.Fatal("Failed to create consumer: ", err)
	}
	defer msgConsumer.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logrus.Info("Purchase worker started, waiting for messages...")
	if err := msgConsumer.Consume(ctx, handlePurchase(vesting)); err != nil && ctx.Err() == nil {
		logrus.Fatal("Consumer stopped: ", err)
	}
	logrus.Info("Purchase worker stopped")
}
