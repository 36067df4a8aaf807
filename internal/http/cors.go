package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/tbourn/media-tracker/internal/config"
	"github.com/tbourn/media-tracker/internal/http/handlers"
	"github.com/tbourn/media-tracker/internal/http/middleware"
)

// corsHandlers returns the CORS chain. With no allowlist every origin is
// accepted without credentials. gin-contrib/cors skips requests whose
// Origin matches the Host, so the allowed origin is echoed up front.
func corsHandlers(cc config.CORSConfig) []gin.HandlerFunc {
	base := cors.Config{
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Authorization",
			"X-User-ID", "If-None-Match", middleware.HeaderIdempotencyKey,
		},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", "ETag", handlers.HeaderReplayed},
		MaxAge:        12 * time.Hour,
	}

	if len(cc.AllowedOrigins) == 0 {
		base.AllowAllOrigins = true
		return []gin.HandlerFunc{
			func(c *gin.Context) {
				c.Header("Access-Control-Allow-Origin", "*")
				c.Next()
			},
			cors.New(base),
		}
	}

	allowed := make(map[string]bool, len(cc.AllowedOrigins))
	for _, o := range cc.AllowedOrigins {
		allowed[o] = true
	}
	base.AllowOrigins = cc.AllowedOrigins
	return []gin.HandlerFunc{
		func(c *gin.Context) {
			if o := c.GetHeader("Origin"); allowed[o] {
				c.Header("Access-Control-Allow-Origin", o)
				c.Writer.Header().Add("Vary", "Origin")
			}
			c.Next()
		},
		cors.New(base),
	}
}
