// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the GamePrice
// model.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/media-tracker/internal/domain"
)

// priceUpdateColumns are the mutable fields overwritten when a snapshot for
// an existing triple is stored again.
var priceUpdateColumns = []string{"url", "currency", "amount", "on_sale", "sale_ends_at", "updated_at"}

// GetGamePrice fetches the stored snapshot for a (game, store, region)
// triple, or ErrNotFound.
func GetGamePrice(ctx context.Context, db *gorm.DB, gameID int64, store domain.StoreType, region string) (*domain.GamePrice, error) {
	var p domain.GamePrice
	err := db.WithContext(ctx).
		Where("game_id = ? AND store = ? AND region = ?", gameID, store, region).
		First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpsertGamePrice inserts the snapshot, or updates the mutable fields of the
// existing row for the same triple in place. Concurrent writers converge to
// the last one.
func UpsertGamePrice(ctx context.Context, db *gorm.DB, p *domain.GamePrice) error {
	now := time.Now().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   tripleColumns,
			DoUpdates: clause.AssignmentColumns(priceUpdateColumns),
		}).
		Create(p).Error
}

// CountGamePrices returns the number of stored snapshots for a store.
func CountGamePrices(ctx context.Context, db *gorm.DB, store domain.StoreType) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.GamePrice{}).
		Where("store = ?", store).
		Count(&total).Error
	return total, err
}
