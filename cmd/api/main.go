package main

import (
	"errors"
	"os"

	log "github.com/sirupsen/logrus"

	"crowdsale/internal/feed"
	"crowdsale/internal/handlers"
	"crowdsale/internal/repository"
	"crowdsale/internal/routes"
	"crowdsale/internal/tokenomics"
	"crowdsale/pkg/config"
	"crowdsale/pkg/solana"
)

func main() {
	config.LoadEnv()

	engineConfig, err := config.LoadEngineConfig()
	if err != nil {
		log.Fatal("Invalid engine configuration: ", err)
	}

	// Initialize database
	config.InitDB()
	config.ExecuteMigrations()

	allowedOrigins := routes.AllowedOrigins()
	hub := feed.NewHub(routes.CheckOrigin(allowedOrigins))
	defer hub.Close()
	publishers := tokenomics.MultiPublisher{hub}

	// Initialize RabbitMQ (optional, will log warning if not configured)
	if os.Getenv("RABBITMQ_HOST") != "" {
		config.InitRabbitMQ()
		defer config.CloseRabbitMQ()

		publisher, err := config.NewPublisher(config.PurchaseQueue())
		if err != nil {
			log.Fatal("Create publisher failed: ", err)
		}
		defer publisher.Close()
		publishers = append(publishers, publisher)
		log.Info("RabbitMQ initialized successfully")
	} else {
		log.Info("RabbitMQ not configured, skipping initialization")
	}

	engine, err := tokenomics.NewEngine(repository.NewGormRepository(config.DB), engineConfig, publishers, nil)
	if err != nil {
		log.Fatal(err)
	}

	vault, err := solana.NewVaultBalanceSourceFromEnv()
	switch {
	case errors.Is(err, solana.ErrVaultNotConfigured):
		log.Warn("Sale vault not configured, reconciliation skips the on-chain balance")
	case err != nil:
		log.Fatal(err)
	default:
		engine.WithBalanceSource(vault)
	}

	// Set up router
	r := routes.SetupRouter(handlers.NewHandler(engine, hub), allowedOrigins)

	// Start server
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.Fatal("Failed to start server: ", err)
	}
}
