// Package services – WishlistPriceRefresher
//
// This file implements the batch job that re-prices every game wishlisted on
// a store's platform, in every region the store serves. Work is strictly
// sequential (page, then game, then region) and paced between price fetches
// so the storefront never sees a burst of traffic.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/utils"
)

const defaultRefreshPageSize = 10

// WishlistSource reads the distinct wishlisted games of a platform.
type WishlistSource interface {
	CountWishlistedGames(ctx context.Context, platform string) (int64, error)
	ListWishlistedGamesPage(ctx context.Context, platform string, offset, limit int) ([]int64, error)
}

// RefreshReport summarizes one refresh.
type RefreshReport struct {
	Games       int `json:"games"`       // distinct games visited
	Pairs       int `json:"pairs"`       // (game, region) pairs attempted
	Priced      int `json:"priced"`      // pairs that stored a price
	Unavailable int `json:"unavailable"` // pairs skipped as not available
}

// WishlistPriceRefresher re-prices wishlisted games.
type WishlistPriceRefresher struct {
	Resolver  *PriceResolver
	Wishlists WishlistSource
	Pacer     Pacer
	PageSize  int
}

// NewWishlistPriceRefresher wires a refresher. A nil pacer disables pacing and
// a non-positive page size falls back to 10.
func NewWishlistPriceRefresher(resolver *PriceResolver, wishlists WishlistSource, pacer Pacer, pageSize int) *WishlistPriceRefresher {
	if pacer == nil {
		pacer = NoPacer{}
	}
	if pageSize <= 0 {
		pageSize = defaultRefreshPageSize
	}
	return &WishlistPriceRefresher{Resolver: resolver, Wishlists: wishlists, Pacer: pacer, PageSize: pageSize}
}

// RefreshAll re-prices every game wishlisted on store's platform in every
// region. A pair with no available price is skipped; a fault or cancellation
// stops the run and is returned together with the partial report. Rows
// written before the stop are kept.
func (w *WishlistPriceRefresher) RefreshAll(ctx context.Context, store domain.StoreType) (RefreshReport, error) {
	tr := otel.Tracer("services/WishlistPriceRefresher")
	ctx, span := tr.Start(ctx, "RefreshAll",
		trace.WithAttributes(attribute.String("store", string(store))),
	)
	defer span.End()

	var rep RefreshReport
	start := time.Now()
	defer func() { refreshDuration.WithLabelValues(string(store)).Observe(time.Since(start).Seconds()) }()

	fail := func(err error) (RefreshReport, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		span.SetAttributes(attribute.Int("refresh.priced", rep.Priced), attribute.Int("refresh.pairs", rep.Pairs))
		log.Error().Err(err).
			Str("store", string(store)).
			Int("games", rep.Games).
			Int("pairs", rep.Pairs).
			Msg("price refresh aborted")
		return rep, err
	}

	client, err := w.Resolver.Stores.Get(store)
	if err != nil {
		return fail(err)
	}
	regions := client.SupportedRegions()
	platform := store.Platform()

	total, err := w.Wishlists.CountWishlistedGames(ctx, platform)
	if err != nil {
		return fail(fmt.Errorf("count wishlisted games: %w", err))
	}
	size := w.pageSize()
	pages := utils.Pages(total, size)

	log.Info().
		Str("store", string(store)).
		Str("platform", platform).
		Int64("games", total).
		Int("pages", pages).
		Strs("regions", regions).
		Msg("price refresh started")

	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return fail(err)
		}
		ids, err := w.Wishlists.ListWishlistedGamesPage(ctx, platform, (page-1)*size, size)
		if err != nil {
			return fail(fmt.Errorf("list wishlist page %d: %w", page, err))
		}
		log.Debug().Str("store", string(store)).Int("page", page).Int("games", len(ids)).Msg("refreshing wishlist page")

		for _, gameID := range ids {
			rep.Games++
			for _, region := range regions {
				if err := ctx.Err(); err != nil {
					return fail(err)
				}
				t := target{gameID: gameID, store: store, region: region, client: client}
				rep.Pairs++

				out, err := w.Resolver.refresh(ctx, t, w.Pacer)
				if err != nil {
					refreshPairs.WithLabelValues(string(store), "error").Inc()
					return fail(fmt.Errorf("refresh game %d region %s: %w", gameID, region, err))
				}
				if !out.ok {
					rep.Unavailable++
					refreshPairs.WithLabelValues(string(store), "unavailable").Inc()
					log.Debug().Str("store", string(store)).Int64("game_id", gameID).Str("region", region).Msg("price not available")
					continue
				}
				rep.Priced++
				refreshPairs.WithLabelValues(string(store), "priced").Inc()
			}
		}
	}

	span.SetAttributes(attribute.Int("refresh.priced", rep.Priced), attribute.Int("refresh.pairs", rep.Pairs))
	log.Info().
		Str("store", string(store)).
		Int("games", rep.Games).
		Int("pairs", rep.Pairs).
		Int("priced", rep.Priced).
		Int("unavailable", rep.Unavailable).
		Dur("took", time.Since(start)).
		Msg("price refresh finished")
	return rep, nil
}

func (w *WishlistPriceRefresher) pageSize() int {
	if w.PageSize <= 0 {
		return defaultRefreshPageSize
	}
	return w.PageSize
}
