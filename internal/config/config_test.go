package config

import (
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tbourn/go-product-catalog/internal/repo"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "3000" || cfg.APIKey != "15940" || cfg.APIBasePath != "/" {
		t.Fatalf("server defaults: %+v", cfg)
	}
	if cfg.AsyncDelay != 500*time.Millisecond || cfg.DefaultPageLimit != 5 {
		t.Fatalf("catalog defaults: %+v", cfg)
	}
	if cfg.LedgerDSN != repo.DefaultLedgerDSN || cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("ledger defaults: dsn=%q ttl=%v", cfg.LedgerDSN, cfg.IdempotencyTTL)
	}
	if cfg.RateRPS != 20 || cfg.RateBurst != 40 || cfg.MaxBodyBytes != 1<<20 {
		t.Fatalf("limits: %+v", cfg)
	}
	if cfg.GinMode != "release" || cfg.LogLevel != "info" {
		t.Fatalf("modes: gin=%q log=%q", cfg.GinMode, cfg.LogLevel)
	}
	if cfg.OTEL.Enabled || cfg.OTEL.ServiceName != "go-product-catalog" || !cfg.OTEL.Insecure {
		t.Fatalf("otel defaults: %+v", cfg.OTEL)
	}
	if cfg.CORS.AllowedOrigins != nil {
		t.Fatalf("cors origins should be nil, got %#v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Overrides(t *testing.T) {
	env := map[string]string{
		"PORT":                        "8088",
		"READ_TIMEOUT":                "2s",
		"READ_HEADER_TIMEOUT":         "1s",
		"WRITE_TIMEOUT":               "3s",
		"IDLE_TIMEOUT":                "4s",
		"SHUTDOWN_TIMEOUT":            "5s",
		"MAX_HEADER_BYTES":            "8192",
		"MAX_BODY_BYTES":              "2048",
		"GIN_MODE":                    "Test",
		"LOG_LEVEL":                   "WARNING",
		"LOG_PRETTY":                  "yes",
		"SWAGGER_ENABLED":             "on",
		"API_BASE_PATH":               "api/v1/",
		"API_KEY":                     "s3cret",
		"ASYNC_DELAY":                 "25ms",
		"DEFAULT_PAGE_LIMIT":          "10",
		"LEDGER_DSN":                  "ledger.db",
		"IDEMPOTENCY_TTL":             "48h",
		"RATE_RPS":                    "2.5",
		"RATE_BURST":                  "3",
		"CORS_ALLOWED_ORIGINS":        " https://a.com , , http://b ",
		"ENABLE_HSTS":                 "TRUE",
		"HSTS_MAX_AGE":                "24h",
		"OTEL_ENABLED":                "1",
		"OTEL_EXPORTER_OTLP_ENDPOINT": "otel:4317",
		"OTEL_EXPORTER_OTLP_INSECURE": "0",
		"OTEL_SERVICE_NAME":           "svc",
		"OTEL_TRACES_SAMPLER_ARG":     "0.75",
	}
	for k, v := range env {
		t.Setenv(k, v)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Port != "8088" || cfg.ReadTimeout != 2*time.Second || cfg.ReadHeaderTimeout != time.Second ||
		cfg.WriteTimeout != 3*time.Second || cfg.IdleTimeout != 4*time.Second || cfg.ShutdownTimeout != 5*time.Second {
		t.Fatalf("server: %+v", cfg)
	}
	if cfg.MaxHeaderBytes != 8192 || cfg.MaxBodyBytes != 2048 || cfg.GinMode != "test" {
		t.Fatalf("server limits: %+v", cfg)
	}
	if cfg.LogLevel != "warn" || !cfg.LogPretty || !cfg.SwaggerEnabled || cfg.APIBasePath != "/api/v1" {
		t.Fatalf("logging/docs: %+v", cfg)
	}
	if cfg.APIKey != "s3cret" || cfg.AsyncDelay != 25*time.Millisecond || cfg.DefaultPageLimit != 10 {
		t.Fatalf("catalog: %+v", cfg)
	}
	if cfg.LedgerDSN != "ledger.db" || cfg.IdempotencyTTL != 48*time.Hour {
		t.Fatalf("ledger: %+v", cfg)
	}
	if cfg.RateRPS != 2.5 || cfg.RateBurst != 3 {
		t.Fatalf("rate: rps=%v burst=%d", cfg.RateRPS, cfg.RateBurst)
	}
	if !slices.Equal(cfg.CORS.AllowedOrigins, []string{"https://a.com", "http://b"}) {
		t.Fatalf("cors: %#v", cfg.CORS.AllowedOrigins)
	}
	if !cfg.Security.EnableHSTS || cfg.Security.HSTSMaxAge != 24*time.Hour {
		t.Fatalf("security: %+v", cfg.Security)
	}
	want := OTELConfig{Enabled: true, Endpoint: "otel:4317", ServiceName: "svc", SampleRatio: 0.75}
	if cfg.OTEL != want {
		t.Fatalf("otel: got %+v want %+v", cfg.OTEL, want)
	}
}

func TestLoad_UnparsableValuesFallBack(t *testing.T) {
	t.Setenv("RATE_RPS", "x")
	t.Setenv("RATE_BURST", "nope")
	t.Setenv("ASYNC_DELAY", "soon")
	t.Setenv("LOG_PRETTY", "maybe")
	t.Setenv("GIN_MODE", "weird")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RateRPS != 20 || cfg.RateBurst != 40 || cfg.AsyncDelay != 500*time.Millisecond {
		t.Fatalf("numeric fallbacks: %+v", cfg)
	}
	if cfg.LogPretty || cfg.GinMode != "release" {
		t.Fatalf("pretty=%v gin=%q", cfg.LogPretty, cfg.GinMode)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		key, val, want string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"PORT", "   ", "PORT must not be empty"},
		{"READ_TIMEOUT", "0s", "timeouts must be positive"},
		{"SHUTDOWN_TIMEOUT", "-2s", "timeouts must be positive"},
		{"MAX_HEADER_BYTES", "0", "MAX_HEADER_BYTES"},
		{"MAX_BODY_BYTES", "-5", "MAX_BODY_BYTES"},
		{"API_KEY", "   ", "API_KEY must not be empty"},
		{"ASYNC_DELAY", "-1s", "ASYNC_DELAY"},
		{"DEFAULT_PAGE_LIMIT", "500", "DEFAULT_PAGE_LIMIT"},
		{"DEFAULT_PAGE_LIMIT", "0", "DEFAULT_PAGE_LIMIT"},
		{"LEDGER_DSN", "   ", "LEDGER_DSN"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"HSTS_MAX_AGE", "-1s", "HSTS_MAX_AGE"},
		{"IDEMPOTENCY_TTL", "0s", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key+"="+tc.val, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("want error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	cfg.APIKey = ""
	cfg.RateBurst = 0
	cfg.OTEL.SampleRatio = -0.1

	err = cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"API_KEY", "RATE_BURST", "OTEL_TRACES_SAMPLER_ARG"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q lacks %q", err, want)
		}
	}
}

func TestFlag(t *testing.T) {
	for i, v := range []string{"1", "true", "TRUE", " yes ", "Y", "on"} {
		k := "FLAG_T" + string(rune('A'+i))
		t.Setenv(k, v)
		if !flag(k, false) {
			t.Errorf("flag(%q) = false", v)
		}
	}
	for i, v := range []string{"0", "false", " no ", "N", "Off"} {
		k := "FLAG_F" + string(rune('A'+i))
		t.Setenv(k, v)
		if flag(k, true) {
			t.Errorf("flag(%q) = true", v)
		}
	}
	t.Setenv("FLAG_EMPTY", "")
	if !flag("FLAG_EMPTY", true) || flag("FLAG_EMPTY", false) {
		t.Error("empty value should yield the default")
	}
}

func TestOrigins(t *testing.T) {
	if got := origins(""); got != nil {
		t.Fatalf("origins(\"\") = %#v", got)
	}
	if got := origins(" a, ,b ,  c  ,"); !slices.Equal(got, []string{"a", "b", "c"}) {
		t.Fatalf("origins = %#v", got)
	}
}

func TestBasePath(t *testing.T) {
	cases := map[string]string{
		"":        "/",
		" / ":     "/",
		"v1":      "/v1",
		"/v1/":    "/v1",
		"api/v1/": "/api/v1",
	}
	for in, want := range cases {
		if got := basePath(in); got != want {
			t.Errorf("basePath(%q) = %q, want %q", in, got, want)
		}
	}
}
