// Package handlers exposes the price pipeline over HTTP.
//
// Handlers are transport-thin: they validate path and query input, call the
// application services through the narrow interfaces below, and translate
// results into JSON responses (including conditional and replayed ones).
package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/media-tracker/internal/domain"
)

//
// Service contracts (context-aware)
//

// PriceService answers price lookups.
//
// Resolve returns (nil, nil) when no price is available for the triple.
type PriceService interface {
	Resolve(ctx context.Context, store domain.StoreType, region string, gameID int64) (*domain.GamePrice, error)
	Regions(store domain.StoreType) ([]string, error)
}

// RefreshService starts and reports wishlist price refreshes.
type RefreshService interface {
	// Start launches a background run. replay is true when key matched a run
	// started earlier by the same user.
	Start(ctx context.Context, store domain.StoreType, userID, key string) (run *domain.RefreshRun, replay bool, err error)
	Get(ctx context.Context, id string) (*domain.RefreshRun, error)
	List(ctx context.Context, store domain.StoreType, limit int) ([]domain.RefreshRun, error)
}

// StoreDirectory lists the registered storefronts.
type StoreDirectory interface {
	Types() []domain.StoreType
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints of the tracker.
type Handlers struct {
	prices PriceService
	runs   RefreshService
	stores StoreDirectory
}

// New constructs Handlers bound to the given services.
func New(prices PriceService, runs RefreshService, stores StoreDirectory) *Handlers {
	return &Handlers{prices: prices, runs: runs, stores: stores}
}

// userID extracts the caller id from Gin context (set by upstream
// middleware). If absent, it falls back to the "X-User-ID" header and
// finally to "demo-user". It never touches c.Request if it's nil.
func userID(c *gin.Context) string {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	if c != nil && c.Request != nil {
		if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
			return h
		}
	}
	return "demo-user"
}

// storeParam parses the :store path parameter. On failure it has already
// written a 400 response.
func storeParam(c *gin.Context) (domain.StoreType, bool) {
	s, err := domain.ParseStoreType(c.Param("store"))
	if err != nil {
		fail(c, http.StatusBadRequest, ErrCodeUnknownStore, "unknown store")
		return "", false
	}
	return s, true
}
