// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes settings for the
// server, logging, the catalog's shared secret and paging, the idempotency
// ledger, rate limiting, and observability.
package config

import (
	"errors"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-catalog/internal/repo"
	"github.com/tbourn/go-product-catalog/internal/utils"
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
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-product-catalog")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	ShutdownTimeout   time.Duration // grace period for in-flight requests
	MaxHeaderBytes    int           // bytes
	MaxBodyBytes      int64         // request body cap
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for catalog routes

	// Catalog
	APIKey           string        // shared secret expected in X-API-Key
	AsyncDelay       time.Duration // delay of the simulated slow lookup
	DefaultPageLimit int           // page size when ?limit is absent

	// Idempotency ledger
	LedgerDSN      string        // SQLite DSN; in-memory by default
	IdempotencyTTL time.Duration // how long a given Idempotency-Key is valid

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// Load builds a Config from the environment. Unset or unparsable variables
// take their defaults; the assembled value is then normalized and validated.
func Load() (Config, error) {
	cfg := Config{
		Port:              str("PORT", "3000"),
		ReadTimeout:       dur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: dur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      dur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       dur("IDLE_TIMEOUT", time.Minute),
		ShutdownTimeout:   dur("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxHeaderBytes:    num("MAX_HEADER_BYTES", 1<<20),
		MaxBodyBytes:      int64(num("MAX_BODY_BYTES", 1<<20)),
		GinMode:           str("GIN_MODE", gin.ReleaseMode),

		LogLevel:       str("LOG_LEVEL", "info"),
		LogPretty:      flag("LOG_PRETTY", false),
		SwaggerEnabled: flag("SWAGGER_ENABLED", false),
		APIBasePath:    str("API_BASE_PATH", "/"),

		APIKey:           str("API_KEY", "15940"),
		AsyncDelay:       dur("ASYNC_DELAY", 500*time.Millisecond),
		DefaultPageLimit: num("DEFAULT_PAGE_LIMIT", 5),

		LedgerDSN:      str("LEDGER_DSN", repo.DefaultLedgerDSN),
		IdempotencyTTL: dur("IDEMPOTENCY_TTL", 24*time.Hour),

		RateRPS:   float("RATE_RPS", 20),
		RateBurst: num("RATE_BURST", 40),

		CORS: CORSConfig{AllowedOrigins: origins(str("CORS_ALLOWED_ORIGINS", ""))},
		Security: SecurityConfig{
			EnableHSTS: flag("ENABLE_HSTS", false),
			HSTSMaxAge: dur("HSTS_MAX_AGE", 180*24*time.Hour),
		},
		OTEL: OTELConfig{
			Enabled:     flag("OTEL_ENABLED", false),
			Endpoint:    str("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    flag("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: str("OTEL_SERVICE_NAME", "go-product-catalog"),
			SampleRatio: float("OTEL_TRACES_SAMPLER_ARG", 1),
		},
	}
	cfg.normalize()
	return cfg, cfg.Validate()
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(c.LogLevel)
	if c.LogLevel == "warning" {
		c.LogLevel = "warn"
	}
	c.GinMode = strings.ToLower(c.GinMode)
	if !slices.Contains([]string{gin.DebugMode, gin.ReleaseMode, gin.TestMode}, c.GinMode) {
		c.GinMode = gin.ReleaseMode
	}
	c.APIBasePath = basePath(c.APIBasePath)
}

// Validate reports every rule c violates, joined into a single error.
func (c Config) Validate() error {
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }
	rules := []struct {
		bad bool
		msg string
	}{
		{!slices.Contains(logLevels, c.LogLevel), "LOG_LEVEL must be one of: " + strings.Join(logLevels, ", ")},
		{blank(c.Port), "PORT must not be empty"},
		{slices.ContainsFunc([]time.Duration{c.ReadTimeout, c.ReadHeaderTimeout, c.WriteTimeout, c.IdleTimeout, c.ShutdownTimeout},
			func(d time.Duration) bool { return d <= 0 }), "timeouts must be positive durations"},
		{c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0"},
		{c.MaxBodyBytes <= 0, "MAX_BODY_BYTES must be > 0"},
		{blank(c.APIKey), "API_KEY must not be empty"},
		{c.AsyncDelay < 0, "ASYNC_DELAY must be >= 0"},
		{c.DefaultPageLimit < 1 || c.DefaultPageLimit > 100, "DEFAULT_PAGE_LIMIT must be between 1 and 100"},
		{blank(c.LedgerDSN), "LEDGER_DSN must not be empty"},
		{c.RateRPS < 0, "RATE_RPS must be >= 0"},
		{c.RateBurst < 1, "RATE_BURST must be >= 1"},
		{c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0"},
		{c.IdempotencyTTL <= 0, "IDEMPOTENCY_TTL must be > 0"},
		{c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]"},
	}
	var errs []error
	for _, r := range rules {
		if r.bad {
			errs = append(errs, errors.New(r.msg))
		}
	}
	return errors.Join(errs...)
}

var logLevels = []string{"debug", "info", "warn", "error", "fatal", "panic"}

// lookup returns parse(value) for a set, non-empty key and def otherwise,
// including when parse fails.
func lookup[T any](key string, def T, parse func(string) (T, error)) T {
	raw, ok := os.LookupEnv(key)
	if !ok || raw == "" {
		return def
	}
	v, err := parse(raw)
	if err != nil {
		return def
	}
	return v
}

func str(key, def string) string {
	return lookup(key, def, func(s string) (string, error) { return s, nil })
}

func num(key string, def int) int {
	return utils.AtoiDefault(strings.TrimSpace(os.Getenv(key)), def)
}

func float(key string, def float64) float64 {
	return lookup(key, def, func(s string) (float64, error) { return strconv.ParseFloat(s, 64) })
}

func dur(key string, def time.Duration) time.Duration {
	return lookup(key, def, time.ParseDuration)
}

var errNotBool = errors.New("not a boolean")

func flag(key string, def bool) bool {
	return lookup(key, def, func(s string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, errNotBool
	})
}

// origins splits a comma list, dropping blanks.
func origins(csv string) []string {
	var out []string
	for _, o := range strings.Split(csv, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// basePath yields "/" or a path with a leading slash and no trailing one.
func basePath(p string) string {
	p = strings.Trim(strings.TrimSpace(p), "/")
	if p == "" {
		return "/"
	}
	return "/" + p
}
