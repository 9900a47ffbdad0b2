package database

import (
	"context"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrate brings the schema up to date. Tables come from AutoMigrate; indexes that
// gorm tags cannot express (partial and descending indexes) are tracked by goose.
func Migrate(ctx context.Context, db *gorm.DB, logger *zap.Logger) error {
	if err := SafeAutoMigrate(db, logger); err != nil {
		return err
	}

	if db.Dialector.Name() != "postgres" {
		logger.Info("Skipping SQL migrations for non-postgres dialect",
			zap.String("dialect", db.Dialector.Name()),
		)
		return nil
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	goose.SetBaseFS(migrationsFS)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, sqlDB, "migrations"); err != nil {
		return fmt.Errorf("failed to apply sql migrations: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, sqlDB)
	if err == nil {
		logger.Info("SQL migrations applied", zap.Int64("version", version))
	}
	return nil
}
