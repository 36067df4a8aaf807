// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file validates the Idempotency-Key header of refresh starts. A key
// is scoped to (caller, store); when a live run was already started under
// it, the request is flagged as a replay, which lets it skip rate limiting.
// The handler still asks the service for the run, so a stale flag only
// costs the token bucket.
package middleware

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/media-tracker/internal/domain"
)

// HeaderIdempotencyKey carries the client's key for a refresh start.
const HeaderIdempotencyKey = "Idempotency-Key"

// anonymousCaller is the identity of requests without X-User-ID.
const anonymousCaller = "demo-user"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemRun    = "idem.run"
	ctxKeyRateBypass = "rate.bypass"
)

var defaultKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key, if the request had one.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemKey)
	s, _ := v.(string)
	return s, s != ""
}

// IsReplay reports whether the key already names a live run.
func IsReplay(c *gin.Context) bool {
	_, ok := ReplayedRun(c)
	return ok
}

// ReplayedRun returns the id of the run the key already names.
func ReplayedRun(c *gin.Context) (string, bool) {
	v, _ := c.Get(ctxKeyIdemRun)
	s, _ := v.(string)
	return s, s != ""
}

// IdempotencyOptions configures IdempotencyValidator. Key expiry belongs to
// the lookup.
type IdempotencyOptions struct {
	// MaxLen caps the key length; <= 0 means 200.
	MaxLen int
	// Pattern restricts key characters; nil means ^[A-Za-z0-9._~\-:]+$.
	Pattern *regexp.Regexp
	// ResourceParam is the route parameter naming the store; "" means "store".
	ResourceParam string
}

// IdempotencyLookup returns the id of the live run recorded for
// (userID, store, key) at now, or "" when there is none.
type IdempotencyLookup func(ctx context.Context, userID, store, key string, now time.Time) (runID string, err error)

// IdempotencyValidator checks the key on unsafe methods. A malformed key is
// answered with 400. Lookup failures are logged and the request proceeds as a
// fresh one; safe methods pass without inspection.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	maxLen := opts.MaxLen
	if maxLen <= 0 {
		maxLen = 200
	}
	param := opts.ResourceParam
	if param == "" {
		param = "store"
	}
	pat := opts.Pattern
	if pat == nil {
		pat = defaultKeyPattern
	}

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !unsafeMethod(c.Request.Method) {
			c.Next()
			return
		}
		if len(key) > maxLen || !pat.MatchString(key) {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"request_id": RequestIDFrom(c),
				"code":       "bad_idempotency_key",
				"message":    "invalid Idempotency-Key",
			})
			return
		}
		c.Set(ctxKeyIdemKey, key)

		store, err := domain.ParseStoreType(c.Param(param))
		if lookup == nil || err != nil {
			c.Next()
			return
		}

		runID, err := lookup(c.Request.Context(), userIDFromCtx(c), string(store), key, time.Now().UTC())
		switch {
		case err != nil:
			LoggerFrom(c).Warn().Err(err).Str("store", string(store)).Msg("idempotency lookup failed")
		case runID != "":
			c.Set(ctxKeyIdemRun, runID)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}

func unsafeMethod(m string) bool {
	switch m {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// callerID resolves the caller the way the handlers do: the "userID"
// context value set by auth, then the X-User-ID header.
func callerID(c *gin.Context) (string, bool) {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	if h := strings.TrimSpace(c.GetHeader("X-User-ID")); h != "" {
		return h, true
	}
	return "", false
}

func userIDFromCtx(c *gin.Context) string {
	if id, ok := callerID(c); ok {
		return id
	}
	return anonymousCaller
}
