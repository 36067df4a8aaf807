// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the read-only wishlist queries used by
// the price refresher.
package repo

import (
	"context"

	"gorm.io/gorm"
)

// CountWishlistedGames returns the number of distinct game ids wishlisted on
// platform, across all users (including anonymous entries).
//
// It uses a raw COUNT so a missing table surfaces as an error.
func CountWishlistedGames(ctx context.Context, db *gorm.DB, platform string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(DISTINCT game_id) FROM wishlists WHERE platform = ?", platform).
		Scan(&total).Error
	return total, err
}

// ListWishlistedGamesPage returns one page of distinct game ids wishlisted on
// platform. Games are ordered by the first wishlist row that mentioned them
// (primary key), so successive pages neither repeat nor skip a game while
// unrelated rows are appended.
func ListWishlistedGamesPage(ctx context.Context, db *gorm.DB, platform string, offset, limit int) ([]int64, error) {
	out := []int64{}
	err := db.WithContext(ctx).
		Raw(`SELECT game_id FROM wishlists
			WHERE platform = ?
			GROUP BY game_id
			ORDER BY MIN(id) ASC, game_id ASC
			LIMIT ? OFFSET ?`, platform, limit, offset).
		Scan(&out).Error
	return out, err
}
