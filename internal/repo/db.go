// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file opens the SQLite database, routes GORM's own
// logging into zerolog, installs tracing and owns the schema.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/media-tracker/internal/domain"
)

// SlowQueryThreshold is the duration past which a statement is logged.
const SlowQueryThreshold = 200 * time.Millisecond

// pragmas run on every opened database. WAL lets price reads proceed while
// a refresh run writes.
var pragmas = []string{
	"PRAGMA journal_mode=WAL;",
	"PRAGMA synchronous=NORMAL;",
	"PRAGMA foreign_keys=ON;",
	"PRAGMA busy_timeout=5000;",
}

// zerologWriter adapts GORM's Printf logger to the global zerolog logger.
type zerologWriter struct{}

func (zerologWriter) Printf(format string, args ...any) {
	log.Warn().Str("component", "gorm").Msgf(format, args...)
}

func newGormLogger() logger.Interface {
	return logger.New(zerologWriter{}, logger.Config{
		SlowThreshold:             SlowQueryThreshold,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		Colorful:                  false,
	})
}

// OpenSQLite opens (or creates) the database at path. Every query becomes a
// child span of the calling request or refresh run.
func OpenSQLite(path string) (*gorm.DB, error) {
	// A missing directory otherwise surfaces as an opaque sqlite error.
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: newGormLogger()})
	if err != nil {
		return nil, err
	}
	for _, p := range pragmas {
		if err := db.Exec(p).Error; err != nil {
			Close(db)
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	if err := db.Use(tracing.NewPlugin()); err != nil {
		Close(db)
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Close releases the connection pool; errors are dropped.
func Close(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// models lists every table the tracker owns, in dependency order.
func models() []any {
	return []any{
		&domain.Game{},
		&domain.StoreMetadata{},
		&domain.GamePrice{},
		&domain.Wishlist{},
		&domain.RefreshRun{},
		&domain.Idempotency{},
	}
}

// AutoMigrate creates or updates every table owned by the tracker.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(models()...)
}
