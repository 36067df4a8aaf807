// Package handlers provides HTTP handler implementations for the public API.
//
// Every failure leaves through fail() as an ErrorResponse carrying a stable
// code; successes go through ok(), accepted() or notModified().
//
//	HTTP/1.1 400 Bad Request
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "invalid_region",
//	  "message": "region not supported by store"
//	}
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/media-tracker/internal/http/middleware"
)

// HeaderReplayed marks a refresh response that returns an earlier run.
const HeaderReplayed = "Idempotency-Replayed"

// ErrorResponse is the error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go)
	Code string `json:"code" example:"unknown_store"`
	// Human-readable message
	Message string `json:"message" example:"unknown store"`
}

// fail aborts with an ErrorResponse. Server faults are logged at error level
// except 503, which only means a storefront is shedding load.
func fail(c *gin.Context, status int, code, msg string) {
	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error()
		if status == http.StatusServiceUnavailable {
			ev = lg.Warn()
		}
		ev.Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: middleware.RequestIDFrom(c),
		Code:      code,
		Message:   msg,
	})
}

// Fail is fail for callers outside the package, such as the router's
// NoRoute and NoMethod handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// accepted answers 202 for work handed to the background, flagging replays.
func accepted(c *gin.Context, body any, replayed bool) {
	if replayed {
		c.Header(HeaderReplayed, "true")
	}
	c.JSON(http.StatusAccepted, body)
}

// notModified sets etag and reports whether If-None-Match already names it,
// in which case a bodiless 304 has been written. Tags compare weakly.
func notModified(c *gin.Context, etag string) bool {
	c.Header("ETag", etag)
	inm := c.GetHeader("If-None-Match")
	if inm == "" {
		return false
	}
	want := strings.TrimPrefix(etag, "W/")
	for _, tag := range strings.Split(inm, ",") {
		tag = strings.TrimSpace(tag)
		if tag == "*" || strings.TrimPrefix(tag, "W/") == want {
			c.Status(http.StatusNotModified)
			return true
		}
	}
	return false
}
