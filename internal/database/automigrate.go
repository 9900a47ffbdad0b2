package database

import (
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"presence-service/internal/domain"
)

// modelInfo holds information about a domain model and its table name
type modelInfo struct {
	model     interface{}
	tableName string
}

func models() []modelInfo {
	return []modelInfo{
		{&domain.UserPresence{}, "user_presence"},
		{&domain.Profile{}, "profiles"},
		{&domain.Notification{}, "notifications"},
		{&domain.Opportunity{}, "user_opportunities"},
		{&domain.TaxScore{}, "tax_scores"},
		{&domain.LearnedPattern{}, "clara_learned_patterns"},
		{&domain.Memory{}, "clara_memories"},
		{&domain.DecayRun{}, "decay_runs"},
	}
}

// AutoMigrate creates or updates every table this service reads or writes.
func AutoMigrate(db *gorm.DB) error {
	all := models()
	list := make([]interface{}, 0, len(all))
	for _, m := range all {
		list = append(list, m.model)
	}

	if err := db.AutoMigrate(list...); err != nil {
		return fmt.Errorf("failed to run auto-migration: %w", err)
	}
	return nil
}

// SafeAutoMigrate migrates table by table so a failure names the table it happened on.
func SafeAutoMigrate(db *gorm.DB, logger *zap.Logger) error {
	migrator := db.Migrator()
	all := models()

	logger.Info("Starting safe auto-migration", zap.Int("total_models", len(all)))

	for _, m := range all {
		tableExists := migrator.HasTable(m.model)

		if err := db.AutoMigrate(m.model); err != nil {
			logger.Error("Failed to migrate table",
				zap.String("table", m.tableName),
				zap.Bool("table_existed", tableExists),
				zap.Error(err),
			)
			return fmt.Errorf("failed to migrate table %s: %w", m.tableName, err)
		}

		logger.Debug("Migrated table",
			zap.String("table", m.tableName),
			zap.Bool("was_existing", tableExists),
		)
	}

	logger.Info("Safe auto-migration completed successfully", zap.Int("tables_migrated", len(all)))
	return nil
}
