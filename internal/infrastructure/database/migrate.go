package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/foliohq/entitlement-service/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.UserEntitlement{},
		&model.ProcessedEvent{},
		&model.ProviderEvent{},
		&model.Plan{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

func createExtensions(db *gorm.DB) error {
	// uuid_generate_v4 for universal ids created server-side
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error
}

// createCustomIndexes creates custom indexes that GORM doesn't handle automatically
func createCustomIndexes(db *gorm.DB) error {
	// Partial index keeps the unresolved-event scan cheap regardless of how
	// large the delivery log grows.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_provider_events_unresolved ON provider_events (created_at) WHERE status IN ('failed', 'needs_review')`).Error; err != nil {
		return err
	}

	// Retry sweeps select by due time only among failed deliveries.
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_provider_events_next_retry ON provider_events (next_retry_at) WHERE status = 'failed'`).Error; err != nil {
		return err
	}

	return nil
}
