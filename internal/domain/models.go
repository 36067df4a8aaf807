// Package domain defines the persistence models for the game metadata cache,
// storefront identifiers, price snapshots and wishlists. These types are
// mapped with GORM and form the core data layer of the media tracker.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Game is the cached metadata for a canonical game id. It is created the first
// time a game is resolved from the remote game catalog and afterwards read by
// the price pipeline for its title.
//
// Fields:
//   - ID: canonical (storefront-agnostic) remote id; not auto-incremented.
//   - Title: display title, used to search storefronts.
//   - CoverURL / Summary / Rating: presentation metadata.
//   - Platforms / Companies: JSON-serialized name lists.
//   - CreatedAt / UpdatedAt: timestamps managed by GORM (UpdatedAt is the
//     last-modified marker).
type Game struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	CoverURL  string    `json:"cover_url"  gorm:"type:varchar(512)"`
	Summary   string    `json:"summary"    gorm:"type:text"`
	Rating    *float64  `json:"rating,omitempty"`
	Platforms []string  `json:"platforms"  gorm:"serializer:json"`
	Companies []string  `json:"companies"  gorm:"serializer:json"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for Game.
func (Game) TableName() string { return "games" }

// StoreMetadata caches the storefront-specific identifier of a game in one
// region. Rows are unique per (game, store, region) and are only ever
// inserted: identifiers are treated as immutable once discovered.
type StoreMetadata struct {
	ID          uint      `json:"-"             gorm:"primaryKey"`
	GameID      int64     `json:"game_id"       gorm:"not null;uniqueIndex:ux_store_meta_triple,priority:1"`
	Store       StoreType `json:"store"         gorm:"type:varchar(32);not null;uniqueIndex:ux_store_meta_triple,priority:2"`
	Region      string    `json:"region"        gorm:"type:varchar(8);not null;uniqueIndex:ux_store_meta_triple,priority:3"`
	StoreGameID string    `json:"store_game_id" gorm:"type:varchar(128);not null"`
	CreatedAt   time.Time `json:"created_at"`
}

// TableName returns the database table name for StoreMetadata.
func (StoreMetadata) TableName() string { return "store_metadata" }

// GamePrice is the freshest known price snapshot of a game on one storefront
// in one region. Rows are unique per (game, store, region) and are updated in
// place on every fetch.
//
// Fields:
//   - URL: storefront page where the title can be bought.
//   - Currency: ISO 4217 currency code reported by the storefront.
//   - Amount: current price (the sale price while OnSale is set).
//   - OnSale / SaleEndsAt: discount flag and optional discount end.
//   - UpdatedAt: last time the snapshot was fetched.
type GamePrice struct {
	ID         uint            `json:"-"          gorm:"primaryKey"`
	GameID     int64           `json:"game_id"    gorm:"not null;uniqueIndex:ux_game_price_triple,priority:1"`
	Store      StoreType       `json:"store"      gorm:"type:varchar(32);not null;uniqueIndex:ux_game_price_triple,priority:2"`
	Region     string          `json:"region"     gorm:"type:varchar(8);not null;uniqueIndex:ux_game_price_triple,priority:3"`
	URL        string          `json:"url"        gorm:"type:varchar(512)"`
	Currency   string          `json:"currency"   gorm:"type:varchar(8);not null"`
	Amount     decimal.Decimal `json:"amount"     gorm:"type:decimal(12,2);not null"`
	OnSale     bool            `json:"on_sale"    gorm:"not null;default:false"`
	SaleEndsAt *time.Time      `json:"sale_ends_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TableName returns the database table name for GamePrice.
func (GamePrice) TableName() string { return "game_prices" }

// Wishlist is a user's interest in a game on a platform. A nil UserID marks
// anonymous/global demand. The refresher reads these rows; it never writes
// them.
type Wishlist struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    *string   `json:"user_id"    gorm:"type:varchar(64);index"`
	GameID    int64     `json:"game_id"    gorm:"not null;index"`
	Platform  string    `json:"platform"   gorm:"type:varchar(64);not null;index:idx_wishlist_platform"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for Wishlist.
func (Wishlist) TableName() string { return "wishlists" }
