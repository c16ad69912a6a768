package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "catalog"

// Route labels use the registered template (/products/:id) so cardinality
// stays bounded; only unmatched requests fall back to the raw path.
var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by method, route and status.",
	}, []string{"method", "route", "status"})

	requestSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	requestsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests currently being served.",
	})

	responseBytes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "http",
		Name:      "response_size_bytes",
		Help:      "Response body size.",
		Buckets:   prometheus.ExponentialBuckets(128, 4, 8),
	}, []string{"method", "route"})

	productOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "product_operations_total",
		Help:      "Catalog operations by kind and outcome.",
	}, []string{"op", "result"})
)

func routeLabel(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}
	return c.Request.URL.Path
}

// Metrics observes every request on the default Prometheus registry.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestsInFlight.Inc()
		defer requestsInFlight.Dec()
		began := time.Now()
		c.Next()

		method, route := c.Request.Method, routeLabel(c)
		requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		requestSeconds.WithLabelValues(method, route).Observe(time.Since(began).Seconds())
		if n := c.Writer.Size(); n >= 0 {
			responseBytes.WithLabelValues(method, route).Observe(float64(n))
		}
	}
}

// ObserveProductOp counts one catalog operation as "ok", "replay" (an
// idempotent create served from the ledger) or "error".
func ObserveProductOp(op string, replayed bool, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	} else if replayed {
		result = "replay"
	}
	productOps.WithLabelValues(op, result).Inc()
}
