package main

import (
	"flag"

	log "github.com/sirupsen/logrus"

	"crowdsale/pkg/config"
)

// Applies the SQL migrations, or rolls back the last one with -down.
//
//	go run ./cmd/migrate [-down]
func main() {
	down := flag.Bool("down", false, "roll back the last migration")
	flag.Parse()

	config.LoadEnv()
	config.InitDB()

	if *down {
		if err := config.RollbackMigration(); err != nil {
			log.Fatal(err)
		}
		log.Info("Migration rolled back successfully")
		return
	}
	if err := config.MigrateUp(); err != nil {
		log.Fatal(err)
	}
	log.Info("Database migrations completed successfully")
}
