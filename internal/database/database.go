// Package database opens the GORM connection behind the parameter store.
package database

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/drallgood/book-catalog/internal/logger"
)

// Database wraps the GORM database connection
type Database struct {
	db     *gorm.DB
	config *DatabaseConfig
	logger *logger.Logger
}

// Open connects using config, falling back to SQLite, and migrates the schema
func Open(config *DatabaseConfig, log *logger.Logger) (*Database, error) {
	if log == nil {
		log = logger.Get()
	}
	log = log.Component("database")

	cfg := *config
	cfg.ApplyDefaults()

	db, used, err := ConnectWithFallback(&cfg, log)
	if err != nil {
		return nil, err
	}

	database := &Database{db: db, config: used, logger: log}
	if err := database.migrate(); err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}

func (d *Database) migrate() error {
	if err := d.db.AutoMigrate(&Parameter{}); err != nil {
		return fmt.Errorf("failed to auto-migrate: %w", err)
	}
	d.logger.Debug("Database migrations completed", nil)
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	d.logger.Info("Database connection closed", nil)
	return nil
}

// GetDB returns the underlying GORM database instance
func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Config returns the configuration the connection was opened with
func (d *Database) Config() DatabaseConfig {
	return *d.config
}

// Health pings the database
func (d *Database) Health(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	return nil
}
