// Refresh HTTP handlers.
//
// This file exposes the write side of the price pipeline:
//   - POST /stores/{store}/refresh         (start a background refresh run)
//   - GET  /stores/{store}/refresh-runs    (latest runs of a store)
//   - GET  /refresh-runs/{id}              (status of one run)
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a run was already
// started under (user, store, key) inside the replay window, the handler
// returns that run and sets `Idempotency-Replayed: true`.
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/http/middleware"
	"github.com/tbourn/media-tracker/internal/services"
	"github.com/tbourn/media-tracker/internal/utils"
)

// ListRefreshRunsResponse wraps the latest runs of a store.
type ListRefreshRunsResponse struct {
	Runs []domain.RefreshRun `json:"runs"`
}

// StartRefresh godoc
// @ID          startRefresh
// @Summary     Start a wishlist price refresh
// @Description Starts a background refresh of every wishlisted game of the store in every region and returns the run.
// @Description Supports idempotency via the Idempotency-Key header (same key → same run).
// @Tags        Refresh
// @Produce     json
//
// @Param       X-User-ID        header  string  false "User ID (demo header)"  example(user123)
// @Param       Idempotency-Key  header  string  false "Idempotency key for safe retries (UUID recommended)"  example(7a8d9f4c-1b2a-4c3d-8e9f-0123456789ab)
// @Param       store            path    string  true  "Storefront"  example(switch)
//
// @Success     202  {object}  domain.RefreshRun
// @Header      202  {string}  Idempotency-Replayed  "true when an earlier run was replayed"
// @Failure     400  {object}  handlers.ErrorResponse "Unknown store"
// @Failure     409  {object}  handlers.ErrorResponse "Refresh already running"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /stores/{store}/refresh [post]
func (h *Handlers) StartRefresh(c *gin.Context) {
	store, okStore := storeParam(c)
	if !okStore {
		return
	}

	key, _ := idempotencyKey(c)
	run, replay, err := h.runs.Start(c.Request.Context(), store, userID(c), key)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownStore):
			fail(c, http.StatusBadRequest, ErrCodeUnknownStore, "unknown store")
		case errors.Is(err, services.ErrRefreshInProgress):
			fail(c, http.StatusConflict, ErrCodeRefreshInProgress, "a refresh for this store is already running")
		default:
			fail(c, http.StatusInternalServerError, ErrCodeRefreshFailed, err.Error())
		}
		return
	}

	middleware.LoggerFrom(c).Info().
		Str("run_id", run.ID).
		Str("store", string(store)).
		Bool("replay", replay).
		Bool("rate_bypassed", middleware.IsReplay(c)).
		Msg("refresh accepted")
	accepted(c, run, replay)
}

// GetRefreshRun godoc
// @ID          getRefreshRun
// @Summary     Get a refresh run
// @Tags        Refresh
// @Produce     json
// @Param       id  path  string  true  "Run ID (UUID)"  format(uuid)
// @Success     200  {object}  domain.RefreshRun
// @Failure     400  {object}  handlers.ErrorResponse "Bad request"
// @Failure     404  {object}  handlers.ErrorResponse "Run not found"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /refresh-runs/{id} [get]
func (h *Handlers) GetRefreshRun(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "run id must be a UUID")
		return
	}
	run, err := h.runs.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrRunNotFound) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "refresh run not found")
			return
		}
		fail(c, http.StatusInternalServerError, ErrCodeInternal, err.Error())
		return
	}
	ok(c, http.StatusOK, run)
}

// ListRefreshRuns godoc
// @ID          listRefreshRuns
// @Summary     List refresh runs of a storefront
// @Description Returns the latest runs of the store, newest first.
// @Tags        Refresh
// @Produce     json
// @Param       store  path   string  true   "Storefront"      example(switch)
// @Param       limit  query  int     false  "Maximum runs"    minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListRefreshRunsResponse
// @Failure     400  {object}  handlers.ErrorResponse "Unknown store"
// @Failure     500  {object}  handlers.ErrorResponse "Internal error"
// @Router      /stores/{store}/refresh-runs [get]
func (h *Handlers) ListRefreshRuns(c *gin.Context) {
	store, okStore := storeParam(c)
	if !okStore {
		return
	}
	limit := utils.BoundedInt(c.Query("limit"), 20, 1, 100)

	runs, err := h.runs.List(c.Request.Context(), store, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeListFailed, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.RefreshRun{}
	}
	ok(c, http.StatusOK, ListRefreshRunsResponse{Runs: runs})
}

// idempotencyKey prefers the key validated by the middleware and falls back
// to the raw header when the middleware is not installed.
func idempotencyKey(c *gin.Context) (string, bool) {
	if k, found := middleware.GetIdempotencyKey(c); found {
		return k, true
	}
	if v := strings.TrimSpace(c.GetHeader(middleware.HeaderIdempotencyKey)); v != "" {
		return v, true
	}
	return "", false
}
