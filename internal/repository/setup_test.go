package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"presence-service/internal/domain"
)

// setupTestDB opens a private in-memory database. The pool is pinned to one
// connection because every new sqlite :memory: connection is a fresh database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err, "failed to open database")

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.AutoMigrate(
		&domain.UserPresence{},
		&domain.Profile{},
		&domain.Notification{},
		&domain.Opportunity{},
		&domain.TaxScore{},
		&domain.LearnedPattern{},
		&domain.Memory{},
		&domain.DecayRun{},
	))

	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

func strPtr(s string) *string { return &s }

// baseTime is a fixed instant truncated to the second so stored and compared values match exactly.
var baseTime = time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
