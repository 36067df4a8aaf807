// Price and store HTTP handlers.
//
// This file exposes the read side of the price pipeline:
//   - GET /games/{id}/prices/{store}/{region}   (resolve one price, ETag support)
//   - GET /stores                               (registered storefronts)
//   - GET /stores/{store}/regions               (regions served by a store)
package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/resilience"
	"github.com/tbourn/media-tracker/internal/services"
)

//
// DTOs
//

// PriceResponse wraps a price lookup. Price is omitted when Available is false.
type PriceResponse struct {
	Available bool              `json:"available" example:"true"`
	Price     *domain.GamePrice `json:"price,omitempty"`
}

// StoreInfo describes one registered storefront.
type StoreInfo struct {
	Store    domain.StoreType `json:"store"    example:"switch"`
	Platform string           `json:"platform" example:"Nintendo Switch"`
	Regions  []string         `json:"regions"  example:"SG,US"`
}

// ListStoresResponse lists registered storefronts.
type ListStoresResponse struct {
	Stores []StoreInfo `json:"stores"`
}

// RegionsResponse lists the regions of one storefront.
type RegionsResponse struct {
	Store   domain.StoreType `json:"store"   example:"switch"`
	Regions []string         `json:"regions" example:"SG,US"`
}

//
// Handlers
//

// GetPrice godoc
// @ID          getPrice
// @Summary     Resolve the price of a game
// @Description Returns the cached price of a game on a storefront in a region, fetching and caching it on a miss.
// @Description A game without a storefront match or without a price is reported with available=false.
// @Tags        Prices
// @Produce     json
//
// @Param       id             path    int     true  "Canonical game id"  minimum(1) example(1942)
// @Param       store          path    string  true  "Storefront"         example(switch)
// @Param       region         path    string  true  "Region code"        example(SG)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"
//
// @Success     200  {object}  handlers.PriceResponse
// @Header      200  {string}  ETag  "Weak ETag of the price snapshot"
// @Success     304  {string}  string "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Failure     503  {object}  handlers.ErrorResponse "Upstream unavailable"
// @Router      /games/{id}/prices/{store}/{region} [get]
func (h *Handlers) GetPrice(c *gin.Context) {
	gameID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || gameID <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeInvalidGameID, "game id must be a positive integer")
		return
	}
	store, okStore := storeParam(c)
	if !okStore {
		return
	}

	p, err := h.prices.Resolve(c.Request.Context(), store, c.Param("region"), gameID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidGameID):
			fail(c, http.StatusBadRequest, ErrCodeInvalidGameID, "game id must be a positive integer")
		case errors.Is(err, services.ErrUnknownStore):
			fail(c, http.StatusBadRequest, ErrCodeUnknownStore, "unknown store")
		case errors.Is(err, services.ErrInvalidRegion):
			fail(c, http.StatusBadRequest, ErrCodeInvalidRegion, "region not supported by store")
		case errors.Is(err, resilience.ErrOpen):
			fail(c, http.StatusServiceUnavailable, ErrCodeUnavailable, "storefront temporarily unavailable")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeResolveFailed, err.Error())
		}
		return
	}
	if p == nil {
		ok(c, http.StatusOK, PriceResponse{Available: false})
		return
	}

	etag := fmt.Sprintf(`W/"price:%d:%s:%s:%d"`, p.GameID, p.Store, p.Region, p.UpdatedAt.UnixNano())
	if notModified(c, etag) {
		return
	}
	ok(c, http.StatusOK, PriceResponse{Available: true, Price: p})
}

// ListStores godoc
// @ID          listStores
// @Summary     List storefronts
// @Description Returns every registered storefront with its wishlist platform and regions.
// @Tags        Stores
// @Produce     json
// @Success     200  {object}  handlers.ListStoresResponse
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /stores [get]
func (h *Handlers) ListStores(c *gin.Context) {
	types := h.stores.Types()
	out := ListStoresResponse{Stores: make([]StoreInfo, 0, len(types))}
	for _, s := range types {
		regions, err := h.prices.Regions(s)
		if err != nil {
			fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
			return
		}
		out.Stores = append(out.Stores, StoreInfo{Store: s, Platform: s.Platform(), Regions: regions})
	}
	ok(c, http.StatusOK, out)
}

// ListRegions godoc
// @ID          listRegions
// @Summary     List regions of a storefront
// @Tags        Stores
// @Produce     json
// @Param       store  path  string  true  "Storefront"  example(switch)
// @Success     200  {object}  handlers.RegionsResponse
// @Failure     400  {object}  handlers.ErrorResponse "Unknown store"
// @Router      /stores/{store}/regions [get]
func (h *Handlers) ListRegions(c *gin.Context) {
	store, okStore := storeParam(c)
	if !okStore {
		return
	}
	regions, err := h.prices.Regions(store)
	if err != nil {
		if errors.Is(err, services.ErrUnknownStore) {
			fail(c, http.StatusBadRequest, ErrCodeUnknownStore, "unknown store")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RegionsResponse{Store: store, Regions: regions})
}
