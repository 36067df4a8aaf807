package services

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/tbourn/media-tracker/internal/domain"
)

func newResolverFixture() (*PriceResolver, *memStore, *fakeCatalog, *fakeShop) {
	st := newMemStore()
	games := &fakeCatalog{titles: map[int64]string{}}
	shop := &fakeShop{
		regions:  []string{"SG", "US"},
		ids:      map[string]string{},
		prices:   map[string]string{},
		priceErr: map[string]error{},
	}
	return NewPriceResolver(st, games, catalogWith(shop)), st, games, shop
}

func TestResolve_CachedPriceShortCircuits(t *testing.T) {
	r, st, games, shop := newResolverFixture()
	ctx := context.Background()
	_ = st.UpsertPrice(ctx, &domain.GamePrice{
		GameID: 1, Store: domain.StoreSwitch, Region: "SG",
		Currency: "SGD", Amount: decimal.RequireFromString("1.5"),
	})

	p, err := r.Resolve(ctx, domain.StoreSwitch, "SG", 1)
	if err != nil || p == nil {
		t.Fatalf("Resolve = %v, %v", p, err)
	}
	if !p.Amount.Equal(decimal.RequireFromString("1.5")) {
		t.Fatalf("amount = %s, want 1.5", p.Amount)
	}
	if games.calls != 0 || shop.searches != 0 || shop.priceCount() != 0 {
		t.Fatalf("expected no remote calls, got catalog=%d search=%d price=%d",
			games.calls, shop.searches, shop.priceCount())
	}
}

func TestResolve_ProgressiveFill(t *testing.T) {
	r, st, games, shop := newResolverFixture()
	games.titles[4] = "4"
	shop.ids["4"] = "id-4"
	shop.prices["id-4"] = "1.5"
	ctx := context.Background()

	p, err := r.Resolve(ctx, domain.StoreSwitch, "SG", 4)
	if err != nil || p == nil {
		t.Fatalf("Resolve = %v, %v", p, err)
	}
	if !p.Amount.Equal(decimal.RequireFromString("1.5")) || p.Region != "SG" || p.Store != domain.StoreSwitch {
		t.Fatalf("unexpected snapshot %+v", p)
	}

	g, _ := st.GetGame(ctx, 4)
	if g == nil || g.Title != "4" {
		t.Fatalf("game not cached: %+v", g)
	}
	m, _ := st.GetStoreMetadata(ctx, 4, domain.StoreSwitch, "SG")
	if m == nil || m.StoreGameID != "id-4" {
		t.Fatalf("identifier not cached: %+v", m)
	}
	if ng, ni, np := st.counts(); ng != 1 || ni != 1 || np != 1 {
		t.Fatalf("row counts games=%d ids=%d prices=%d; want 1/1/1", ng, ni, np)
	}

	// Second call is served from cache.
	if _, err := r.Resolve(ctx, domain.StoreSwitch, "SG", 4); err != nil {
		t.Fatalf("second Resolve: %v", err)
	}
	if games.calls != 1 || shop.searches != 1 || shop.priceCount() != 1 {
		t.Fatalf("second call hit remotes: catalog=%d search=%d price=%d",
			games.calls, shop.searches, shop.priceCount())
	}
}

func TestResolve_UnknownGameWritesNothing(t *testing.T) {
	r, st, _, shop := newResolverFixture()

	p, err := r.Resolve(context.Background(), domain.StoreSwitch, "SG", 5)
	if err != nil || p != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", p, err)
	}
	if ng, ni, np := st.counts(); ng+ni+np != 0 {
		t.Fatalf("expected no writes, got games=%d ids=%d prices=%d", ng, ni, np)
	}
	if shop.searches != 0 || shop.priceCount() != 0 {
		t.Fatalf("storefront must not be called for an unknown game")
	}
}

func TestResolve_StoredIdentifierIsReused(t *testing.T) {
	r, st, games, shop := newResolverFixture()
	shop.prices["id-2"] = "9.99"
	ctx := context.Background()
	_, _ = st.CreateStoreMetadata(ctx, &domain.StoreMetadata{
		GameID: 2, Store: domain.StoreSwitch, Region: "SG", StoreGameID: "id-2",
	})

	p, err := r.Resolve(ctx, domain.StoreSwitch, "SG", 2)
	if err != nil || p == nil {
		t.Fatalf("Resolve = %v, %v", p, err)
	}
	if games.calls != 0 || shop.searches != 0 {
		t.Fatalf("identifier reuse must skip catalog and search, got catalog=%d search=%d", games.calls, shop.searches)
	}
	if len(shop.priceCalls) != 1 || shop.priceCalls[0] != (priceCall{"SG", "id-2"}) {
		t.Fatalf("unexpected price calls %+v", shop.priceCalls)
	}
}

func TestResolve_SearchMissKeepsGame(t *testing.T) {
	r, st, games, shop := newResolverFixture()
	games.titles[6] = "Obscure Title"
	ctx := context.Background()

	p, err := r.Resolve(ctx, domain.StoreSwitch, "SG", 6)
	if err != nil || p != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", p, err)
	}
	if ng, ni, np := st.counts(); ng != 1 || ni != 0 || np != 0 {
		t.Fatalf("row counts games=%d ids=%d prices=%d; want 1/0/0", ng, ni, np)
	}
	if shop.priceCount() != 0 {
		t.Fatalf("no price fetch expected after a search miss")
	}
}

func TestResolve_AbsentPriceKeepsIdentifier(t *testing.T) {
	r, st, games, shop := newResolverFixture()
	games.titles[7] = "Coming Soon"
	shop.ids["Coming Soon"] = "id-7"

	p, err := r.Resolve(context.Background(), domain.StoreSwitch, "US", 7)
	if err != nil || p != nil {
		t.Fatalf("expected (nil, nil), got %v, %v", p, err)
	}
	if ng, ni, np := st.counts(); ng != 1 || ni != 1 || np != 0 {
		t.Fatalf("row counts games=%d ids=%d prices=%d; want 1/1/0", ng, ni, np)
	}
}

func TestResolve_FaultsPropagateAndKeepEarlierWrites(t *testing.T) {
	r, st, games, shop := newResolverFixture()
	games.titles[8] = "Flaky"
	shop.ids["Flaky"] = "id-8"
	shop.priceErr["id-8"] = errBoom

	p, err := r.Resolve(context.Background(), domain.StoreSwitch, "SG", 8)
	if !errors.Is(err, errBoom) || p != nil {
		t.Fatalf("expected wrapped fault, got %v, %v", p, err)
	}
	if ng, ni, np := st.counts(); ng != 1 || ni != 1 || np != 0 {
		t.Fatalf("row counts games=%d ids=%d prices=%d; want 1/1/0", ng, ni, np)
	}

	games.err = errBoom
	if _, err := r.Resolve(context.Background(), domain.StoreSwitch, "SG", 9); !errors.Is(err, errBoom) {
		t.Fatalf("catalog fault should propagate, got %v", err)
	}
}

func TestResolve_Validation(t *testing.T) {
	r, _, _, shop := newResolverFixture()
	ctx := context.Background()

	if _, err := r.Resolve(ctx, "steam", "SG", 1); !errors.Is(err, ErrUnknownStore) {
		t.Fatalf("expected ErrUnknownStore, got %v", err)
	}
	if _, err := r.Resolve(ctx, domain.StoreSwitch, "ZZ", 1); !errors.Is(err, ErrInvalidRegion) {
		t.Fatalf("expected ErrInvalidRegion, got %v", err)
	}
	if _, err := r.Resolve(ctx, domain.StoreSwitch, "SG", 0); !errors.Is(err, ErrInvalidGameID) {
		t.Fatalf("expected ErrInvalidGameID, got %v", err)
	}

	// Region codes are case-insensitive.
	shop.prices["id-3"] = "3"
	r.Store.(*memStore).ids[tripleKey{3, domain.StoreSwitch, "SG"}] = &domain.StoreMetadata{StoreGameID: "id-3"}
	p, err := r.Resolve(ctx, domain.StoreSwitch, " sg ", 3)
	if err != nil || p == nil || p.Region != "SG" {
		t.Fatalf("lowercase region: %v, %v", p, err)
	}
}

func TestResolver_Regions(t *testing.T) {
	r, _, _, _ := newResolverFixture()
	regions, err := r.Regions(domain.StoreSwitch)
	if err != nil || len(regions) != 2 || regions[0] != "SG" {
		t.Fatalf("Regions = %v, %v", regions, err)
	}
	if _, err := r.Regions("steam"); !errors.Is(err, ErrUnknownStore) {
		t.Fatalf("expected ErrUnknownStore, got %v", err)
	}
}
