package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	log "github.com/sirupsen/logrus"
)

// MigrationsDir holds the SQL migrations that gorm AutoMigrate cannot express,
// such as the check constraints guarding tier and pool caps
var MigrationsDir = Getenv("MIGRATIONS_DIR", "migrations")

func newMigrate() (*migrate.Migrate, error) {
	if DB == nil {
		return nil, errors.New("database not initialized")
	}
	db, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}
	m, err := migrate.NewWithDatabaseInstance("file://"+filepath.ToSlash(MigrationsDir), "postgres", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

// MigrateUp applies all pending SQL migrations
func MigrateUp() error {
	m, err := newMigrate()
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// ExecuteMigrations runs all pending SQL migrations. Call after InitDB so the
// tables the constraints attach to exist.
func ExecuteMigrations() {
	if err := MigrateUp(); err != nil {
		log.Fatal(err)
	}
	log.Info("Database migrations completed successfully")
}

// RollbackMigration rolls back the last applied migration
func RollbackMigration() error {
	m, err := newMigrate()
	if err != nil {
		return err
	}
	if err := m.Steps(-1); err != nil {
		return fmt.Errorf("failed to rollback migration: %w", err)
	}
	return nil
}
