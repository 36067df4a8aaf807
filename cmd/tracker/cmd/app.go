package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/media-tracker/internal/config"
	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/igdb"
	"github.com/tbourn/media-tracker/internal/repo"
	"github.com/tbourn/media-tracker/internal/resilience"
	"github.com/tbourn/media-tracker/internal/services"
	"github.com/tbourn/media-tracker/internal/storefront"
	"github.com/tbourn/media-tracker/internal/storefront/eshop"
)

// app holds the wired price pipeline shared by serve and refresh.
type app struct {
	db      *gorm.DB
	store   *repo.Store
	catalog *storefront.Catalog
	prices  *services.PriceResolver
	runner  *services.RefreshRunner
}

// openDB opens the database, migrates it, cancels runs orphaned by an
// earlier process and drops expired idempotency keys.
func openDB(ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		repo.Close(db)
		return nil, fmt.Errorf("migrate: %w", err)
	}
	n, err := repo.AbandonRunningRuns(ctx, db)
	if err != nil {
		repo.Close(db)
		return nil, fmt.Errorf("abandon running runs: %w", err)
	}
	if n > 0 {
		log.Warn().Int64("runs", n).Msg("marked interrupted refresh runs as canceled")
	}
	if n, err := repo.PurgeIdempotency(ctx, db, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("purge expired idempotency keys")
	} else if n > 0 {
		log.Info().Int64("keys", n).Msg("purged expired idempotency keys")
	}
	return db, nil
}

func newApp(ctx context.Context, cfg config.Config) (*app, error) {
	db, err := openDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := repo.NewStore(db)

	breaker := resilience.Settings{
		MaxFailures: cfg.Breaker.MaxFailures,
		OpenTimeout: cfg.Breaker.OpenTimeout,
	}

	shop := eshop.New(eshop.Config{
		SearchURL:      cfg.EShop.SearchURL,
		PriceURL:       cfg.EShop.PriceURL,
		ProductURL:     cfg.EShop.ProductURL,
		Regions:        cfg.EShop.Regions,
		Lang:           cfg.EShop.Lang,
		Timeout:        cfg.EShop.Timeout,
		MatchThreshold: cfg.EShop.MatchThreshold,
	}, nil)
	catalog := storefront.NewCatalog()
	catalog.Register(domain.StoreSwitch, storefront.WithBreaker(shop, resilience.New("eshop", breaker)))

	games := igdb.New(igdb.Config{
		BaseURL:  cfg.IGDB.BaseURL,
		ClientID: cfg.IGDB.ClientID,
		Token:    cfg.IGDB.Token,
		Timeout:  cfg.IGDB.Timeout,
	}, nil, resilience.New("igdb", breaker))
	if cfg.IGDB.ClientID == "" || cfg.IGDB.Token == "" {
		log.Warn().Msg("IGDB credentials missing; unknown games will not resolve")
	}

	prices := services.NewPriceResolver(store, games, catalog)
	refresher := services.NewWishlistPriceRefresher(prices, store, services.NewDelayPacer(cfg.Refresh.Delay), cfg.Refresh.PageSize)
	runner := services.NewRefreshRunner(store, refresher, catalog, cfg.IdempotencyTTL)

	log.Info().
		Strs("regions", cfg.EShop.Regions).
		Dur("refresh_delay", cfg.Refresh.Delay).
		Int("page_size", cfg.Refresh.PageSize).
		Msg("price pipeline ready")

	return &app{db: db, store: store, catalog: catalog, prices: prices, runner: runner}, nil
}

func (a *app) close() { repo.Close(a.db) }

// refreshStores returns the configured periodic refresh targets.
func refreshStores(cfg config.Config) []domain.StoreType {
	out := make([]domain.StoreType, 0, len(cfg.Refresh.Stores))
	for _, s := range cfg.Refresh.Stores {
		out = append(out, domain.StoreType(s))
	}
	return out
}
