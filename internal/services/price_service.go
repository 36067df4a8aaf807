// Package services – PriceResolver
//
// This file implements PriceResolver, which answers "what does game X cost on
// store S in region R" with the fewest remote calls possible. It walks a
// fixed fallback chain and writes every fact it learns before the next remote
// call:
//
//  1. stored price
//  2. stored storefront identifier
//  3. game title (stored game, else remote catalog lookup stored on the way)
//     followed by a title search whose identifier is stored insert-only
//  4. price fetch, upserted on success
//
// Observability: Resolve is OpenTelemetry-instrumented and counted in
// tracker_price_resolutions_total.
package services

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/storefront"
)

// PriceStore is the persistence capability over the game, identifier and
// price caches. Getters return (nil, nil) when the row does not exist.
type PriceStore interface {
	GetPrice(ctx context.Context, gameID int64, store domain.StoreType, region string) (*domain.GamePrice, error)
	UpsertPrice(ctx context.Context, p *domain.GamePrice) error

	GetStoreMetadata(ctx context.Context, gameID int64, store domain.StoreType, region string) (*domain.StoreMetadata, error)
	// CreateStoreMetadata inserts if absent and returns the row stored afterwards.
	CreateStoreMetadata(ctx context.Context, m *domain.StoreMetadata) (*domain.StoreMetadata, error)

	GetGame(ctx context.Context, id int64) (*domain.Game, error)
	SaveGame(ctx context.Context, g *domain.Game) error
}

// GameCatalog looks up canonical game metadata. GetByID returns (nil, nil)
// for an id the catalog does not know.
type GameCatalog interface {
	GetByID(ctx context.Context, id int64) (*domain.Game, error)
}

// StoreRegistry resolves a store type to its client.
type StoreRegistry interface {
	Get(store domain.StoreType) (storefront.StoreClient, error)
}

// PriceResolver resolves price snapshots through the cache chain.
type PriceResolver struct {
	Store  PriceStore
	Games  GameCatalog
	Stores StoreRegistry
}

// NewPriceResolver wires a resolver.
func NewPriceResolver(store PriceStore, games GameCatalog, stores StoreRegistry) *PriceResolver {
	return &PriceResolver{Store: store, Games: games, Stores: stores}
}

// target is one (game, store, region) triple with the client serving it.
type target struct {
	gameID int64
	store  domain.StoreType
	region string
	client storefront.StoreClient
}

// Resolve returns the best-known price of gameID on store in region. A nil
// snapshot with a nil error means the price is not available: the game is
// unknown upstream, the title has no storefront match, or the storefront has
// no price for it. Errors are faults only.
func (r *PriceResolver) Resolve(ctx context.Context, store domain.StoreType, region string, gameID int64) (*domain.GamePrice, error) {
	tr := otel.Tracer("services/PriceResolver")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(
			attribute.String("store", string(store)),
			attribute.String("region", region),
			attribute.Int64("game.id", gameID),
		),
	)
	defer span.End()

	t, err := r.target(store, region, gameID)
	if err != nil {
		return nil, err
	}

	source := "remote"
	var cached step[*domain.GamePrice] = func(ctx context.Context) (outcome[*domain.GamePrice], error) {
		out, err := r.cachedPrice(t)(ctx)
		if out.ok {
			source = "cache"
		}
		return out, err
	}

	out, err := firstOf(cached, r.fetchPrice(t, r.identifier(t), nil))(ctx)
	switch {
	case err != nil:
		source = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, "resolve failed")
	case !out.ok:
		source = "unavailable"
	}
	priceResolutions.WithLabelValues(string(store), source).Inc()
	span.SetAttributes(attribute.String("price.source", source))

	if err != nil {
		return nil, fmt.Errorf("resolve %s/%s game %d: %w", store, t.region, gameID, err)
	}
	if !out.ok {
		return nil, nil
	}
	return out.value, nil
}

// Regions returns the regions served by store.
func (r *PriceResolver) Regions(store domain.StoreType) ([]string, error) {
	client, err := r.Stores.Get(store)
	if err != nil {
		return nil, err
	}
	return client.SupportedRegions(), nil
}

func (r *PriceResolver) target(store domain.StoreType, region string, gameID int64) (target, error) {
	if gameID <= 0 {
		return target{}, ErrInvalidGameID
	}
	client, err := r.Stores.Get(store)
	if err != nil {
		return target{}, err
	}
	region = strings.ToUpper(strings.TrimSpace(region))
	if !storefront.SupportsRegion(client, region) {
		return target{}, ErrInvalidRegion
	}
	return target{gameID: gameID, store: store, region: region, client: client}, nil
}

// refresh runs the chain from the identifier step onward, ignoring any
// stored price, and waits on pace after every completed price fetch.
func (r *PriceResolver) refresh(ctx context.Context, t target, pace Pacer) (outcome[*domain.GamePrice], error) {
	return r.fetchPrice(t, r.identifier(t), pace)(ctx)
}

// ---- steps ----

func (r *PriceResolver) cachedPrice(t target) step[*domain.GamePrice] {
	return func(ctx context.Context) (outcome[*domain.GamePrice], error) {
		p, err := r.Store.GetPrice(ctx, t.gameID, t.store, t.region)
		if err != nil {
			return outcome[*domain.GamePrice]{}, fmt.Errorf("load price: %w", err)
		}
		if p == nil {
			return unavailable[*domain.GamePrice]()
		}
		return resolved(p)
	}
}

// identifier yields the storefront identifier, from the cache or by
// discovering it.
func (r *PriceResolver) identifier(t target) step[string] {
	return firstOf(r.cachedIdentifier(t), then(r.title(t), r.searchIdentifier(t)))
}

func (r *PriceResolver) cachedIdentifier(t target) step[string] {
	return func(ctx context.Context) (outcome[string], error) {
		m, err := r.Store.GetStoreMetadata(ctx, t.gameID, t.store, t.region)
		if err != nil {
			return outcome[string]{}, fmt.Errorf("load identifier: %w", err)
		}
		if m == nil || m.StoreGameID == "" {
			return unavailable[string]()
		}
		return resolved(m.StoreGameID)
	}
}

// title yields the game's title from the cache or the remote catalog.
func (r *PriceResolver) title(t target) step[string] {
	return firstOf(r.cachedTitle(t), r.remoteTitle(t))
}

func (r *PriceResolver) cachedTitle(t target) step[string] {
	return func(ctx context.Context) (outcome[string], error) {
		g, err := r.Store.GetGame(ctx, t.gameID)
		if err != nil {
			return outcome[string]{}, fmt.Errorf("load game: %w", err)
		}
		if g == nil {
			return unavailable[string]()
		}
		return resolved(g.Title)
	}
}

// remoteTitle looks the game up upstream and stores it before returning.
func (r *PriceResolver) remoteTitle(t target) step[string] {
	return func(ctx context.Context) (outcome[string], error) {
		g, err := r.Games.GetByID(ctx, t.gameID)
		if err != nil {
			return outcome[string]{}, fmt.Errorf("game lookup: %w", err)
		}
		if g == nil {
			return unavailable[string]()
		}
		g.ID = t.gameID
		if err := r.Store.SaveGame(ctx, g); err != nil {
			return outcome[string]{}, fmt.Errorf("save game: %w", err)
		}
		return resolved(g.Title)
	}
}

// searchIdentifier searches the storefront for title and stores the match.
func (r *PriceResolver) searchIdentifier(t target) func(context.Context, string) (outcome[string], error) {
	return func(ctx context.Context, title string) (outcome[string], error) {
		id, ok, err := t.client.SearchIdentifier(ctx, t.region, title)
		if err != nil {
			return outcome[string]{}, fmt.Errorf("title search: %w", err)
		}
		if !ok || id == "" {
			return unavailable[string]()
		}
		stored, err := r.Store.CreateStoreMetadata(ctx, &domain.StoreMetadata{
			GameID:      t.gameID,
			Store:       t.store,
			Region:      t.region,
			StoreGameID: id,
		})
		if err != nil {
			return outcome[string]{}, fmt.Errorf("save identifier: %w", err)
		}
		return resolved(stored.StoreGameID)
	}
}

// fetchPrice fetches the price for the identifier yielded by id and upserts
// it. When pace is set it is waited on after every completed fetch,
// including fetches that found no price.
func (r *PriceResolver) fetchPrice(t target, id step[string], pace Pacer) step[*domain.GamePrice] {
	return then(id, func(ctx context.Context, storeID string) (outcome[*domain.GamePrice], error) {
		p, err := t.client.GetPrice(ctx, t.region, storeID)
		if err != nil {
			return outcome[*domain.GamePrice]{}, fmt.Errorf("price fetch: %w", err)
		}

		var out outcome[*domain.GamePrice]
		if p != nil {
			row := &domain.GamePrice{
				GameID:     t.gameID,
				Store:      t.store,
				Region:     t.region,
				URL:        p.URL,
				Currency:   p.Currency,
				Amount:     p.Amount,
				OnSale:     p.OnSale,
				SaleEndsAt: p.SaleEndsAt,
			}
			if err := r.Store.UpsertPrice(ctx, row); err != nil {
				return outcome[*domain.GamePrice]{}, fmt.Errorf("save price: %w", err)
			}
			out = outcome[*domain.GamePrice]{value: row, ok: true}
		}

		if pace != nil {
			if err := pace.Wait(ctx); err != nil {
				return outcome[*domain.GamePrice]{}, err
			}
		}
		return out, nil
	})
}
