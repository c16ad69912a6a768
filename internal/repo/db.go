// Package repo implements the data layer. This file bootstraps the SQLite
// database (pure Go driver) behind the idempotency ledger and applies its
// schema. The default DSN is an in-memory shared-cache database, so ledger
// rows live only as long as the process.
package repo

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

// DefaultLedgerDSN keeps the ledger in memory, shared across pool connections.
const DefaultLedgerDSN = "file:ledger?mode=memory&cache=shared"

// OpenSQLite opens (or creates) a SQLite database, applies PRAGMAs, sizes the
// pool, and installs the OpenTelemetry plugin so ledger queries are traced.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	// Fail early if the parent directory of a file DSN does not exist.
	if !isMemoryDSN(dsn) {
		if dir := filepath.Dir(dsn); dir != "." {
			if _, err := os.Stat(dir); err != nil {
				return nil, err
			}
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}

	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA busy_timeout=5000;")
	if !isMemoryDSN(dsn) {
		db.Exec("PRAGMA journal_mode=WAL;")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		// A shared in-memory DB is dropped when its last connection closes.
		sqlDB.SetConnMaxIdleTime(0)
		if isMemoryDSN(dsn) {
			sqlDB.SetConnMaxLifetime(0)
		} else {
			sqlDB.SetConnMaxLifetime(30 * time.Minute)
		}
	}

	return db, nil
}

// AutoMigrate creates or updates the ledger schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&domain.Idempotency{})
}

func isMemoryDSN(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}
