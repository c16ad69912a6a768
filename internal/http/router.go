// Package httpapi wires the Gin transport to the catalog service. It owns the
// cross-cutting middleware order, the health, metrics, and docs endpoints,
// and the catalog route table.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/tbourn/go-product-catalog/internal/config"
	"github.com/tbourn/go-product-catalog/internal/http/handlers"
	"github.com/tbourn/go-product-catalog/internal/http/middleware"
	"github.com/tbourn/go-product-catalog/internal/repo"
	"github.com/tbourn/go-product-catalog/internal/services"
)

// RegisterRoutes installs middleware and endpoints on r. ledger may be nil,
// in which case Idempotency-Key headers are validated but never replayed.
//
// Middleware order, outermost first:
//  1. otelgin: one span per request
//  2. RequestID, Logger
//  3. body limit, Metrics
//  4. IdempotencyValidator then the rate limiter, so replays skip limiting
//  5. CORS, security headers, gzip
//  6. Recovery, ErrorHandler
//
// Recovery and ErrorHandler write their envelopes while the gzip writer is
// still open, and before Logger and Metrics read the final status.
func RegisterRoutes(r *gin.Engine, svc *services.CatalogService, ledger *repo.Ledger, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.RedactOptions{}))

	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	r.Use(limitBody(maxBody))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	var lookup middleware.IdempotencyLookup
	if ledger != nil {
		lookup = ledger.Exists
	}
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{
		MaxLen: 200,
		Scope:  services.CreateScope,
	}, lookup))

	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByClientOrIP())
	r.Use(rl.Handler())

	r.Use(corsMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{"/metrics"})))
	r.Use(middleware.Recovery())
	r.Use(middleware.ErrorHandler())

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(svc)
	auth := middleware.APIKey(cfg.APIKey)

	api := groupWithPrefix(r, cfg.APIBasePath)
	{
		api.GET("/", h.Hello)

		api.GET("/products", auth, h.ListProducts)
		api.POST("/products", middleware.ValidateProduct(), h.CreateProduct)
		api.GET("/products/stats", auth, h.Stats)
		api.GET("/products/search", auth, h.Search)
		api.GET("/products/:id", h.GetProduct)
		api.PUT("/products/:id", middleware.ValidateProductPatch(), h.UpdateProduct)
		api.DELETE("/products/:id", h.DeleteProduct)

		api.GET("/async-products/:id", auth, h.AsyncProduct)
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", middleware.HeaderAPIKey, middleware.HeaderIdempotencyKey},
		ExposeHeaders: []string{"X-Request-ID", "Content-Length", handlers.HeaderReplayed},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = origins
	}
	return cors.New(cc)
}

// limitBody caps request bodies at maxBytes; larger bodies fail to read.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
