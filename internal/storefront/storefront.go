// Package storefront defines the capability every digital storefront client
// implements and the registry that maps a store type to its client.
//
// Absence is a value, not an error: a title without a match or an identifier
// without a price is reported as (zero, false) / nil. Errors are reserved for
// transport and protocol faults.
package storefront

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tbourn/media-tracker/internal/domain"
)

// ErrUnknownStore is returned by Catalog.Get for an unregistered store type.
var ErrUnknownStore = errors.New("unknown store")

// Price is a price snapshot as reported by a storefront.
type Price struct {
	URL        string
	Currency   string
	Amount     decimal.Decimal
	OnSale     bool
	SaleEndsAt *time.Time
}

// StoreClient is the capability set of one storefront.
type StoreClient interface {
	// SupportedRegions lists the region codes the storefront serves, in the
	// order a refresh visits them.
	SupportedRegions() []string

	// SearchIdentifier maps a title to the storefront's own identifier in a
	// region. ok is false when nothing matched well enough.
	SearchIdentifier(ctx context.Context, region, title string) (id string, ok bool, err error)

	// GetPrice returns the current price of identifier in region, or nil when
	// the storefront reports no price (delisted, unreleased, unknown id).
	GetPrice(ctx context.Context, region, identifier string) (*Price, error)
}

// Catalog is a concurrency-safe registry of storefront clients.
type Catalog struct {
	mu      sync.RWMutex
	clients map[domain.StoreType]StoreClient
}

// NewCatalog returns an empty Catalog.
func NewCatalog() *Catalog {
	return &Catalog{clients: make(map[domain.StoreType]StoreClient)}
}

// Register binds client to store, replacing any earlier registration.
func (c *Catalog) Register(store domain.StoreType, client StoreClient) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clients[store] = client
}

// Get returns the client registered for store or ErrUnknownStore.
func (c *Catalog) Get(store domain.StoreType) (StoreClient, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cl, ok := c.clients[store]
	if !ok {
		return nil, ErrUnknownStore
	}
	return cl, nil
}

// Types returns the registered store types in lexical order.
func (c *Catalog) Types() []domain.StoreType {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.StoreType, 0, len(c.clients))
	for t := range c.clients {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// SupportsRegion reports whether region is one of client's regions.
func SupportsRegion(client StoreClient, region string) bool {
	for _, r := range client.SupportedRegions() {
		if r == region {
			return true
		}
	}
	return false
}
