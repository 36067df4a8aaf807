// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, database paths, rate limiting, storefront
// and game catalog endpoints, refresh pacing, and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/tbourn/media-tracker/internal/domain"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "media-tracker")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// RefreshConfig controls the wishlist price refresher.
type RefreshConfig struct {
	Delay    time.Duration // REFRESH_DELAY: pause after every price fetch
	PageSize int           // REFRESH_PAGE_SIZE: wishlist games per page
	Interval time.Duration // REFRESH_INTERVAL: periodic refresh in serve (0 = off)
	Stores   []string      // REFRESH_STORES: stores refreshed periodically
}

// EShopConfig defines the Nintendo eShop storefront endpoints.
type EShopConfig struct {
	SearchURL      string        // ESHOP_SEARCH_URL
	PriceURL       string        // ESHOP_PRICE_URL
	ProductURL     string        // ESHOP_PRODUCT_URL, with {region} and {id}
	Regions        []string      // ESHOP_REGIONS
	Lang           string        // ESHOP_LANG
	Timeout        time.Duration // ESHOP_TIMEOUT
	MatchThreshold float64       // MATCH_THRESHOLD in [0,1]
}

// IGDBConfig defines the remote game catalog endpoint and credentials.
type IGDBConfig struct {
	BaseURL  string        // IGDB_BASE_URL
	ClientID string        // IGDB_CLIENT_ID
	Token    string        // IGDB_TOKEN
	Timeout  time.Duration // IGDB_TIMEOUT
}

// BreakerConfig tunes the circuit breakers in front of remote clients.
type BreakerConfig struct {
	MaxFailures uint32        // BREAKER_MAX_FAILURES: consecutive faults before opening
	OpenTimeout time.Duration // BREAKER_OPEN_TIMEOUT: time spent open before probing
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// App
	DBPath string // SQLite path

	// Price pipeline
	Refresh RefreshConfig
	EShop   EShopConfig
	IGDB    IGDBConfig
	Breaker BreakerConfig

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Idempotency
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Observability
	OTEL OTELConfig
}

// Load reads the configuration from the environment. A variable that is
// set but cannot be parsed is an error rather than a silent default, and
// every problem found is reported at once.
func Load() (Config, error) {
	e := &env{lookup: os.LookupEnv}

	cfg := Config{
		Port:              e.str("PORT", "8080"),
		ReadTimeout:       e.dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: e.dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      e.dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       e.dur("IDLE_TIMEOUT", time.Minute),
		MaxHeaderBytes:    e.int("MAX_HEADER_BYTES", 1<<20),
		GinMode:           ginMode(e.str("GIN_MODE", "release")),

		LogLevel:       logLevel(e.str("LOG_LEVEL", "info")),
		LogPretty:      e.bool("LOG_PRETTY", false),
		SwaggerEnabled: e.bool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(e.str("API_BASE_PATH", "/api/v1")),

		DBPath: e.str("DB_PATH", "tracker.db"),

		Refresh: RefreshConfig{
			Delay:    e.dur("REFRESH_DELAY", 5*time.Second),
			PageSize: e.int("REFRESH_PAGE_SIZE", 10),
			Interval: e.dur("REFRESH_INTERVAL", 0),
			Stores:   e.list("REFRESH_STORES", "switch", strings.ToLower),
		},
		EShop: EShopConfig{
			SearchURL:      e.str("ESHOP_SEARCH_URL", "https://searching.nintendo-europe.com/{lang}/select"),
			PriceURL:       e.str("ESHOP_PRICE_URL", "https://api.ec.nintendo.com/v1/price"),
			ProductURL:     e.str("ESHOP_PRODUCT_URL", "https://ec.nintendo.com/{region}/titles/{id}"),
			Regions:        e.list("ESHOP_REGIONS", "SG,US,GB,JP,AU", strings.ToUpper),
			Lang:           strings.ToLower(e.str("ESHOP_LANG", "en")),
			Timeout:        e.dur("ESHOP_TIMEOUT", 10*time.Second),
			MatchThreshold: e.float("MATCH_THRESHOLD", 0.5),
		},
		IGDB: IGDBConfig{
			BaseURL:  strings.TrimRight(e.str("IGDB_BASE_URL", "https://api.igdb.com/v4"), "/"),
			ClientID: e.str("IGDB_CLIENT_ID", ""),
			Token:    e.str("IGDB_TOKEN", ""),
			Timeout:  e.dur("IGDB_TIMEOUT", 10*time.Second),
		},
		Breaker: BreakerConfig{
			MaxFailures: e.uint32("BREAKER_MAX_FAILURES", 5),
			OpenTimeout: e.dur("BREAKER_OPEN_TIMEOUT", time.Minute),
		},

		RateRPS:   e.float("RATE_RPS", 5),
		RateBurst: e.int("RATE_BURST", 10),

		CORS: CORSConfig{
			AllowedOrigins: e.list("CORS_ALLOWED_ORIGINS", "", nil),
		},
		Security: SecurityConfig{
			EnableHSTS: e.bool("ENABLE_HSTS", false),
			HSTSMaxAge: e.dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		IdempotencyTTL: e.dur("IDEMPOTENCY_TTL", 24*time.Hour),

		OTEL: OTELConfig{
			Enabled:     e.bool("OTEL_ENABLED", false),
			Endpoint:    e.str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    e.bool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: e.str("OTEL_SERVICE_NAME", "media-tracker"),
			SampleRatio: e.float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}

	return cfg, errors.Join(append(e.errs, cfg.validate()...)...)
}

func (cfg Config) validate() []error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(isLogLevel(cfg.LogLevel), "LOG_LEVEL: %q is not one of debug, info, warn, error, fatal, panic", cfg.LogLevel)
	check(strings.TrimSpace(cfg.Port) != "", "PORT must not be empty")
	check(cfg.ReadTimeout > 0 && cfg.ReadHeaderTimeout > 0 && cfg.WriteTimeout > 0 && cfg.IdleTimeout > 0,
		"server timeouts must be positive durations")
	check(cfg.MaxHeaderBytes > 0, "MAX_HEADER_BYTES must be > 0")
	check(strings.TrimSpace(cfg.DBPath) != "", "DB_PATH must not be empty")

	check(cfg.Refresh.Delay >= 0, "REFRESH_DELAY must be >= 0")
	check(cfg.Refresh.PageSize >= 1, "REFRESH_PAGE_SIZE must be >= 1")
	check(cfg.Refresh.Interval >= 0, "REFRESH_INTERVAL must be >= 0")
	for _, s := range cfg.Refresh.Stores {
		check(domain.StoreType(s).Valid(), "REFRESH_STORES: unknown store %q", s)
	}

	check(strings.TrimSpace(cfg.EShop.SearchURL) != "", "ESHOP_SEARCH_URL must not be empty")
	check(strings.TrimSpace(cfg.EShop.PriceURL) != "", "ESHOP_PRICE_URL must not be empty")
	check(len(cfg.EShop.Regions) > 0, "ESHOP_REGIONS must list at least one region")
	check(cfg.EShop.Timeout > 0, "ESHOP_TIMEOUT must be > 0")
	check(cfg.EShop.MatchThreshold >= 0 && cfg.EShop.MatchThreshold <= 1, "MATCH_THRESHOLD must be in [0,1]")
	check(strings.TrimSpace(cfg.IGDB.BaseURL) != "", "IGDB_BASE_URL must not be empty")
	check(cfg.IGDB.Timeout > 0, "IGDB_TIMEOUT must be > 0")
	check(cfg.Breaker.MaxFailures >= 1, "BREAKER_MAX_FAILURES must be >= 1")
	check(cfg.Breaker.OpenTimeout > 0, "BREAKER_OPEN_TIMEOUT must be > 0")

	check(cfg.RateRPS >= 0, "RATE_RPS must be >= 0")
	check(cfg.RateBurst >= 1, "RATE_BURST must be >= 1")
	check(cfg.Security.HSTSMaxAge >= 0, "HSTS_MAX_AGE must be >= 0")
	check(cfg.IdempotencyTTL > 0, "IDEMPOTENCY_TTL must be > 0")
	check(cfg.OTEL.SampleRatio >= 0 && cfg.OTEL.SampleRatio <= 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")
	return errs
}

// env reads typed values and remembers every malformed one.
type env struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *env) raw(k string) (string, bool) {
	v, ok := e.lookup(k)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (e *env) fail(k, v string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q: %w", k, v, errors.Unwrap(err)))
}

func (e *env) str(k, def string) string {
	if v, ok := e.raw(k); ok {
		return v
	}
	return def
}

func (e *env) int(k string, def int) int {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return n
}

func (e *env) uint32(k string, def uint32) uint32 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return uint32(n)
}

func (e *env) float(k string, def float64) float64 {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		e.fail(k, v, err)
		return def
	}
	return f
}

func (e *env) dur(k string, def time.Duration) time.Duration {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q as a duration", k, v))
		return def
	}
	return d
}

func (e *env) bool(k string, def bool) bool {
	v, ok := e.raw(k)
	if !ok {
		return def
	}
	switch strings.ToLower(v) {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	}
	e.errs = append(e.errs, fmt.Errorf("%s: cannot parse %q as a boolean", k, v))
	return def
}

// list splits a comma separated value, dropping blanks. norm, when set,
// is applied to the whole value first.
func (e *env) list(k, def string, norm func(string) string) []string {
	v := e.str(k, def)
	if norm != nil {
		v = norm(v)
	}
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ginMode falls back to release for anything Gin does not know.
func ginMode(m string) string {
	switch m = strings.ToLower(m); m {
	case "debug", "release", "test":
		return m
	}
	return "release"
}

func logLevel(l string) string {
	if l = strings.ToLower(l); l == "warning" {
		return "warn"
	}
	return l
}

func isLogLevel(l string) bool {
	switch l {
	case "debug", "info", "warn", "error", "fatal", "panic":
		return true
	}
	return false
}

// normalizeBasePath returns p with one leading slash and no trailing one;
// blank means the root.
func normalizeBasePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	return "/" + p
}
