package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/repo"
	"github.com/tbourn/media-tracker/internal/storefront"
)

// ---- in-memory PriceStore ----

type tripleKey struct {
	game   int64
	store  domain.StoreType
	region string
}

type memStore struct {
	mu     sync.Mutex
	games  map[int64]*domain.Game
	ids    map[tripleKey]*domain.StoreMetadata
	prices map[tripleKey]*domain.GamePrice

	saveGameErr error
}

func newMemStore() *memStore {
	return &memStore{
		games:  map[int64]*domain.Game{},
		ids:    map[tripleKey]*domain.StoreMetadata{},
		prices: map[tripleKey]*domain.GamePrice{},
	}
}

func (m *memStore) GetPrice(_ context.Context, g int64, s domain.StoreType, r string) (*domain.GamePrice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prices[tripleKey{g, s, r}], nil
}

func (m *memStore) UpsertPrice(_ context.Context, p *domain.GamePrice) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *p
	m.prices[tripleKey{p.GameID, p.Store, p.Region}] = &cp
	return nil
}

func (m *memStore) GetStoreMetadata(_ context.Context, g int64, s domain.StoreType, r string) (*domain.StoreMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ids[tripleKey{g, s, r}], nil
}

func (m *memStore) CreateStoreMetadata(_ context.Context, md *domain.StoreMetadata) (*domain.StoreMetadata, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := tripleKey{md.GameID, md.Store, md.Region}
	if cur, ok := m.ids[k]; ok {
		return cur, nil
	}
	cp := *md
	m.ids[k] = &cp
	return &cp, nil
}

func (m *memStore) GetGame(_ context.Context, id int64) (*domain.Game, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.games[id], nil
}

func (m *memStore) SaveGame(_ context.Context, g *domain.Game) error {
	if m.saveGameErr != nil {
		return m.saveGameErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.games[g.ID]; !ok {
		cp := *g
		m.games[g.ID] = &cp
	}
	return nil
}

func (m *memStore) counts() (games, ids, prices int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games), len(m.ids), len(m.prices)
}

// ---- fake GameCatalog ----

type fakeCatalog struct {
	mu     sync.Mutex
	titles map[int64]string
	err    error
	calls  int
}

func (f *fakeCatalog) GetByID(_ context.Context, id int64) (*domain.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	title, ok := f.titles[id]
	if !ok {
		return nil, nil
	}
	return &domain.Game{ID: id, Title: title}, nil
}

// ---- fake StoreClient ----

type priceCall struct{ region, id string }

type fakeShop struct {
	mu      sync.Mutex
	regions []string

	// search: title -> identifier; missing title is a miss
	ids map[string]string
	// prices: identifier -> amount; missing identifier is an absent price
	prices map[string]string
	// priceErr fails GetPrice for the given identifier
	priceErr map[string]error

	searches   int
	priceCalls []priceCall
}

func (f *fakeShop) SupportedRegions() []string { return f.regions }

func (f *fakeShop) SearchIdentifier(_ context.Context, _, title string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searches++
	id, ok := f.ids[title]
	return id, ok, nil
}

func (f *fakeShop) GetPrice(_ context.Context, region, id string) (*storefront.Price, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.priceCalls = append(f.priceCalls, priceCall{region, id})
	if err := f.priceErr[id]; err != nil {
		return nil, err
	}
	amt, ok := f.prices[id]
	if !ok {
		return nil, nil
	}
	return &storefront.Price{
		URL:      fmt.Sprintf("https://shop.test/%s/%s", region, id),
		Currency: "SGD",
		Amount:   decimal.RequireFromString(amt),
	}, nil
}

func (f *fakeShop) priceCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.priceCalls)
}

func catalogWith(shop storefront.StoreClient) *storefront.Catalog {
	c := storefront.NewCatalog()
	c.Register(domain.StoreSwitch, shop)
	return c
}

// ---- pacers ----

type countingPacer struct {
	mu    sync.Mutex
	waits int
	// cancelAfter cancels via cancel once waits reaches the value (0 = never)
	cancelAfter int
	cancel      context.CancelFunc
}

func (p *countingPacer) Wait(ctx context.Context) error {
	p.mu.Lock()
	p.waits++
	n := p.waits
	p.mu.Unlock()
	if p.cancelAfter > 0 && n >= p.cancelAfter && p.cancel != nil {
		p.cancel()
	}
	return ctx.Err()
}

func (p *countingPacer) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waits
}

// ---- sqlite ----

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	// Background runs and test assertions share one connection.
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	return db
}

var errBoom = errors.New("boom")
