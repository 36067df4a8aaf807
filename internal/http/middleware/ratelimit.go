// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements the process-local token-bucket limiter in front of
// the API. Buckets are keyed per caller, idle buckets are collected
// opportunistically, and routes can be weighted so a refresh start (which
// walks every wishlist) drains more tokens than a cached price lookup.
// Idempotent replays and probe routes pass untouched.
package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// keyFunc maps a request to its bucket, e.g. "user:<id>" or "ip:<addr>".
type keyFunc func(*gin.Context) string

// KeyByUserOrIP keys by the caller the handlers see: the "userID" context
// value, else the X-User-ID header, else the client IP.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if id, ok := callerID(c); ok {
			return "user:" + id
		}
		return "ip:" + c.ClientIP()
	}
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per-key token-bucket limiter. It is safe for concurrent use.
type RateLimiter struct {
	rps   rate.Limit
	burst int
	keyFn keyFunc

	mu       sync.Mutex
	visitors map[string]*visitor
	ttl      time.Duration
	lookups  uint64
	gcEvery  uint64

	exempt map[string]struct{}
	cost   map[string]int
	now    func() time.Time
}

// NewRateLimiter builds a limiter refilling rps tokens per second up to
// burst (coerced to at least 1), keyed by keyFn.
func NewRateLimiter(rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		rps:      rate.Limit(rps),
		burst:    burst,
		keyFn:    keyFn,
		visitors: make(map[string]*visitor),
		ttl:      10 * time.Minute,
		gcEvery:  5000,
		exempt:   make(map[string]struct{}),
		cost:     make(map[string]int),
		now:      time.Now,
	}
}

// Exempt skips limiting for the given registered routes (e.g. "/health").
func (rl *RateLimiter) Exempt(routes ...string) *RateLimiter {
	for _, p := range routes {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// Cost charges n tokens per request on route instead of one. n is capped at
// the burst so a weighted route can still be served from a full bucket.
func (rl *RateLimiter) Cost(route string, n int) *RateLimiter {
	switch {
	case n < 1:
		n = 1
	case n > rl.burst:
		n = rl.burst
	}
	rl.cost[route] = n
	return rl
}

func (rl *RateLimiter) tokens(route string) int {
	if n, ok := rl.cost[route]; ok {
		return n
	}
	return 1
}

// getVisitor returns the bucket for key, creating it when absent. Every
// gcEvery lookups idle buckets are swept first, so a stale bucket is dropped
// even when it is the one being asked for.
func (rl *RateLimiter) getVisitor(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lookups++
	if rl.lookups >= rl.gcEvery {
		for k, v := range rl.visitors {
			if now.Sub(v.lastSeen) >= rl.ttl {
				delete(rl.visitors, k)
			}
		}
		rl.lookups = 0
	}

	if v, ok := rl.visitors[key]; ok {
		v.lastSeen = now
		return v.limiter
	}
	lim := rate.NewLimiter(rl.rps, rl.burst)
	rl.visitors[key] = &visitor{limiter: lim, lastSeen: now}
	return lim
}

// IsRateBypass reports whether IdempotencyValidator found a recorded run for
// this request, which is then replayed without spending tokens.
func IsRateBypass(c *gin.Context) bool {
	b, _ := c.Get(ctxKeyRateBypass)
	v, _ := b.(bool)
	return v
}

// Handler enforces the limits. A denied request gets 429 with a Retry-After
// (whole seconds, at least 1) derived from when the bucket will next hold
// enough tokens.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if _, skip := rl.exempt[route]; skip || IsRateBypass(c) {
			c.Next()
			return
		}

		lim := rl.getVisitor(rl.keyFn(c))
		now := rl.now()
		res := lim.ReserveN(now, rl.tokens(route))
		delay := res.DelayFrom(now)
		if res.OK() && delay == 0 {
			c.Next()
			return
		}
		res.CancelAt(now)

		c.Header("Retry-After", retryAfter(delay, res.OK()))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": RequestIDFrom(c),
			"code":       "too_many_requests",
			"message":    "rate limit exceeded",
		})
	}
}

func retryAfter(delay time.Duration, ok bool) string {
	if !ok || delay == rate.InfDuration {
		return "60"
	}
	secs := int(math.Ceil(delay.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
