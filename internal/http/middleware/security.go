// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file sets the response hardening and caching headers. Price lookups
// carry an ETag, so their routes are marked for revalidation instead of
// no-store; everything else (refresh runs, store listings) is never cached
// when NoStore is on.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
type SecurityOptions struct {
	// EnableHSTS sends Strict-Transport-Security on HTTPS requests only.
	EnableHSTS bool
	// HSTSMaxAge defaults to 180 days.
	HSTSMaxAge time.Duration
	// EnablePolicy adds Permissions-Policy and X-Permitted-Cross-Domain-Policies.
	EnablePolicy bool

	// NoStore marks responses uncacheable, except on Revalidate routes.
	NoStore bool
	// Revalidate lists registered routes (e.g. "/api/v1/games/:id/prices/:store/:region")
	// whose responses may be cached privately but must be revalidated with
	// If-None-Match before reuse.
	Revalidate []string

	// ExposeHeaders lists response headers browsers may read besides
	// X-Request-ID. Handlers set them later, so they are always exposed.
	ExposeHeaders []string
}

// SecurityHeaders always sets nosniff, DENY framing and no-referrer, plus
// whatever opt enables.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	revalidate := make(map[string]struct{}, len(opt.Revalidate))
	for _, route := range opt.Revalidate {
		revalidate[route] = struct{}{}
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")

		if opt.EnablePolicy {
			h.Set("Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()")
			h.Set("X-Permitted-Cross-Domain-Policies", "none")
		}

		if _, ok := revalidate[c.FullPath()]; ok {
			h.Set("Cache-Control", "private, no-cache")
		} else if opt.NoStore {
			h.Set("Cache-Control", "no-store")
			h.Set("Pragma", "no-cache")
			h.Set("Expires", "0")
		}

		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}

		if h.Get(requestIDHeader) != "" {
			exposeHeader(h, requestIDHeader)
		}
		for _, name := range opt.ExposeHeaders {
			exposeHeader(h, name)
		}

		c.Next()
	}
}

// isHTTPS trusts r.TLS or an X-Forwarded-Proto of https set by the proxy.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// exposeHeader appends name to Access-Control-Expose-Headers once.
func exposeHeader(h http.Header, name string) {
	const hdr = "Access-Control-Expose-Headers"
	cur := h.Get(hdr)
	if cur == "" {
		h.Set(hdr, name)
		return
	}
	for _, have := range strings.Split(cur, ",") {
		if strings.EqualFold(strings.TrimSpace(have), name) {
			return
		}
	}
	h.Set(hdr, cur+", "+name)
}
