// Package httpapi mounts the tracker API on a Gin engine: price lookups,
// store listings and refresh runs, behind the shared middleware chain.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/media-tracker/docs"
	"github.com/tbourn/media-tracker/internal/config"
	"github.com/tbourn/media-tracker/internal/http/handlers"
	"github.com/tbourn/media-tracker/internal/http/middleware"
)

const (
	// refreshCost is the token charge of starting a refresh, which walks
	// every wishlist of the store.
	refreshCost = 3
	// maxBodyBytes caps request bodies; no route takes a large payload.
	maxBodyBytes = 64 << 10
)

// IdempotencyStore answers whether a refresh was already started under
// (user, store, key). repo.Store satisfies it.
type IdempotencyStore interface {
	FindIdempotentRun(ctx context.Context, userID, resource, key string, now time.Time) (string, error)
}

// Services bundles what the routes depend on.
type Services struct {
	Prices      handlers.PriceService
	Refresh     handlers.RefreshService
	Stores      handlers.StoreDirectory
	Idempotency IdempotencyStore
}

// RegisterRoutes installs the middleware chain, the probe and docs routes,
// and the API under cfg.APIBasePath. The idempotency validator runs before
// the rate limiter so a replayed refresh is not charged again.
func RegisterRoutes(r *gin.Engine, svc Services, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	base := strings.TrimSuffix(cfg.APIBasePath, "/")

	r.Use(
		otelgin.Middleware(cfg.OTEL.ServiceName),
		middleware.RequestID(),
		middleware.RedactingLogger(middleware.RedactOptions{MaskHeaders: []string{"X-API-Key", "Client-ID"}}),
		middleware.Recovery(),
		limitBody(maxBodyBytes),
		middleware.Metrics(),
	)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var lookup middleware.IdempotencyLookup
	if svc.Idempotency != nil {
		lookup = svc.Idempotency.FindIdempotentRun
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		MaxLen:        200,
		ResourceParam: "store",
	}, lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).
		Exempt("/health", "/metrics").
		Cost(base+"/stores/:store/refresh", refreshCost)
	r.Use(rl.Handler())

	// CORS and security headers
	r.Use(corsHandlers(cfg.CORS)...)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:    cfg.Security.EnableHSTS,
		HSTSMaxAge:    cfg.Security.HSTSMaxAge,
		EnablePolicy:  true,
		NoStore:       true,
		Revalidate:    []string{base + "/games/:id/prices/:store/:region"},
		ExposeHeaders: []string{"ETag", handlers.HeaderReplayed},
	}))

	// The Prometheus handler negotiates its own encoding.
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc.Prices, svc.Refresh, svc.Stores)

	api := r.Group(base)
	api.GET("/games/:id/prices/:store/:region", h.GetPrice)
	api.GET("/stores", h.ListStores)
	api.GET("/stores/:store/regions", h.ListRegions)
	api.POST("/stores/:store/refresh", h.StartRefresh)
	api.GET("/stores/:store/refresh-runs", h.ListRefreshRuns)
	api.GET("/refresh-runs/:id", h.GetRefreshRun)
}

// limitBody caps request bodies at n bytes; reads past it fail.
func limitBody(n int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, n)
		c.Next()
	}
}
