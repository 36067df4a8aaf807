// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the cached
// game metadata and the storefront identifier cache.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations. They
// follow the "thin repository" approach: no business logic, only
// persistence and query composition.
//
// Error semantics:
//   - When a row is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/media-tracker/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// tripleColumns is the conflict target shared by the per-storefront caches.
var tripleColumns = []clause.Column{{Name: "game_id"}, {Name: "store"}, {Name: "region"}}

// GetGame fetches cached metadata for a canonical game id, or ErrNotFound.
func GetGame(ctx context.Context, db *gorm.DB, id int64) (*domain.Game, error) {
	var g domain.Game
	if err := db.WithContext(ctx).Where("id = ?", id).First(&g).Error; err != nil {
		return nil, err
	}
	return &g, nil
}

// CreateGame inserts game metadata unless a row with the same id already
// exists; an existing row is left untouched.
func CreateGame(ctx context.Context, db *gorm.DB, g *domain.Game) error {
	now := time.Now().UTC()
	if g.CreatedAt.IsZero() {
		g.CreatedAt = now
	}
	g.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(g).Error
}

// GetStoreMetadata fetches the cached storefront identifier for a
// (game, store, region) triple, or ErrNotFound.
func GetStoreMetadata(ctx context.Context, db *gorm.DB, gameID int64, store domain.StoreType, region string) (*domain.StoreMetadata, error) {
	var m domain.StoreMetadata
	err := db.WithContext(ctx).
		Where("game_id = ? AND store = ? AND region = ?", gameID, store, region).
		First(&m).Error
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// CreateStoreMetadata inserts an identifier for the triple if none exists
// and returns the row that is stored afterwards. When a concurrent writer
// got there first, its row wins and is returned unchanged.
func CreateStoreMetadata(ctx context.Context, db *gorm.DB, m *domain.StoreMetadata) (*domain.StoreMetadata, error) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	res := db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: tripleColumns, DoNothing: true}).
		Create(m)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return GetStoreMetadata(ctx, db, m.GameID, m.Store, m.Region)
	}
	return m, nil
}
