// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file holds the Prometheus instrumentation of the API. Labels stay
// bounded: route is the registered Gin pattern (raw path only when nothing
// matched), store is a known storefront, "unknown" or "none".
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/media-tracker/internal/domain"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_requests_total",
			Help: "HTTP requests by method, route, status and storefront.",
		},
		[]string{"method", "path", "status", "store"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "tracker_http_request_duration_seconds",
			Help: "HTTP request latency by method and route.",
			// Cache hits answer in milliseconds; misses wait on the storefront.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tracker_http_requests_inflight",
			Help: "HTTP requests currently being served.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tracker_http_response_size_bytes",
			Help:    "HTTP response body size by method and route.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 7), // 128B..512KiB
		},
		[]string{"method", "path"},
	)

	// httpNotModified counts conditional GETs answered from the client's copy.
	httpNotModified = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tracker_http_not_modified_total",
			Help: "Conditional requests answered with 304 Not Modified.",
		},
		[]string{"path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, httpNotModified)
}

// Metrics instruments every request. Mount /metrics next to it:
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		code := c.Writer.Status()

		httpReqs.WithLabelValues(method, path, strconv.Itoa(code), storeLabel(c)).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if code == http.StatusNotModified {
			httpNotModified.WithLabelValues(path).Inc()
		}
		// Status-only responses report -1.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

func storeLabel(c *gin.Context) string {
	raw := c.Param("store")
	if raw == "" {
		return "none"
	}
	s, err := domain.ParseStoreType(raw)
	if err != nil {
		return "unknown"
	}
	return string(s)
}
