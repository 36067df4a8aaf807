// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file implements RedactingLogger, the access logger of the tracker API.
// Each request gets a scoped zerolog.Logger carrying its correlation ID and
// route parameters (store, region, game or run id); handlers log through it
// via LoggerFrom and the access line is written through it at the end, so
// every line of one request can be joined with the refresh logs.
//
// Bodies are never logged. Query strings and header values are scrubbed of
// emails, phone numbers and UUIDs, and credential headers are masked whole.
package middleware

import (
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// RedactOptions configures RedactingLogger.
type RedactOptions struct {
	// MaskHeaders are replaced with "[REDACTED]" in addition to
	// Authorization, Cookie and Set-Cookie. Matching ignores case.
	MaskHeaders []string
}

type scrubRule struct {
	re    *regexp.Regexp
	label string
}

// scrubRules run in order. UUIDs go first so the loose phone pattern never
// sees their digit groups.
var scrubRules = []scrubRule{
	{regexp.MustCompile(`(?i)\b[0-9a-f]{8}-[0-9a-f]{4}-[1-5][0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}\b`), "[REDACTED:id]"},
	{regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`), "[REDACTED:email]"},
	{regexp.MustCompile(`\b(?:\+?\d{1,3}[ .-]?)?(?:\(?\d{2,4}\)?[ .-]?)?\d{3,4}[ .-]?\d{4}\b`), "[REDACTED:phone]"},
}

func scrub(s string) string {
	for _, r := range scrubRules {
		if s == "" {
			return s
		}
		s = r.re.ReplaceAllString(s, r.label)
	}
	return s
}

// routeFields maps route parameters to the log fields that carry them.
var routeFields = []struct{ param, field string }{
	{"store", "store"},
	{"region", "region"},
	{"id", "resource_id"},
}

// RedactingLogger logs one line per request: info for success, warn for
// 4xx, error for 5xx or when handlers recorded Gin errors.
func RedactingLogger(opts RedactOptions) gin.HandlerFunc {
	masked := map[string]struct{}{
		"authorization": {},
		"cookie":        {},
		"set-cookie":    {},
	}
	for _, h := range opts.MaskHeaders {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			masked[h] = struct{}{}
		}
	}

	return func(c *gin.Context) {
		start := time.Now()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		reqID := RequestIDFrom(c)
		if reqID == "" {
			reqID = c.GetHeader(requestIDHeader)
		}

		lc := log.With().
			Str("request_id", reqID).
			Str("method", c.Request.Method).
			Str("path", path)
		for _, f := range routeFields {
			if v := c.Param(f.param); v != "" {
				lc = lc.Str(f.field, v)
			}
		}
		scoped := lc.Logger()
		c.Set(loggerKey, &scoped)

		c.Next()

		status := c.Writer.Status()
		var ev *zerolog.Event
		switch {
		case len(c.Errors) > 0 || status >= 500:
			ev = scoped.Error()
		case status >= 400:
			ev = scoped.Warn()
		default:
			ev = scoped.Info()
		}
		if len(c.Errors) > 0 {
			ev = ev.Str("errors", c.Errors.String())
		}

		ev.Str("query", truncate(scrub(c.Request.URL.RawQuery), maxQueryLogLength)).
			Str("remote_ip", c.ClientIP()).
			Int("status", status).
			Int("bytes", c.Writer.Size()).
			Dur("latency", time.Since(start)).
			Interface("headers", scrubHeaders(c, masked)).
			Msg("http_request")
	}
}

func scrubHeaders(c *gin.Context, masked map[string]struct{}) map[string]string {
	out := make(map[string]string, len(c.Request.Header))
	for k, vv := range c.Request.Header {
		if _, ok := masked[strings.ToLower(k)]; ok {
			out[k] = "[REDACTED]"
			continue
		}
		out[k] = scrub(strings.Join(vv, ", "))
	}
	return out
}
