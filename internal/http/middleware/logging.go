// Package middleware contains the Gin middleware used by the HTTP layer.
//
// This file provides the request ID injector, the structured access logger,
// and panic recovery. Recommended order:
//  1. RequestID()
//  2. Logger()
//  3. Recovery()
//  4. ErrorHandler()
//
// so that panics and rendered errors carry the correlation ID and are logged.
package middleware

import (
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	requestIDKey    = "requestID"
	requestIDHeader = "X-Request-ID"
	loggerKey       = "logger"

	// Raw query strings longer than this are clipped in access logs.
	maxLoggedQuery = 2048
)

// RequestID honours an incoming X-Request-ID, otherwise mints a UUIDv4. The
// id is stored for RequestIDFrom and echoed on the response.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// levelFor maps a response status to the access log level.
func levelFor(status int) zerolog.Level {
	switch {
	case status >= http.StatusInternalServerError:
		return zerolog.ErrorLevel
	case status >= http.StatusBadRequest:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}

// Logger writes one "http_request" line per request once the chain returns,
// at a level picked by levelFor. Header values named in opts, plus the
// built-in secret headers, are masked; personal data in the query and other
// headers is redacted. Handlers reach the request-scoped logger, which
// carries request_id, method and path, through LoggerFrom or zerolog.Ctx.
func Logger(opts RedactOptions) gin.HandlerFunc {
	mask := newHeaderMask(opts.MaskHeaders)

	return func(c *gin.Context) {
		began := time.Now()
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		scoped := log.With().
			Str("request_id", c.GetString(requestIDKey)).
			Str("method", c.Request.Method).
			Str("path", route).
			Logger()
		c.Set(loggerKey, &scoped)
		c.Request = c.Request.WithContext(scoped.WithContext(c.Request.Context()))

		// Captured before the handlers run so they cannot alter what is logged.
		headers := mask.scrub(c.Request.Header)
		query := clip(redact(c.Request.URL.RawQuery), maxLoggedQuery)

		c.Next()

		status := c.Writer.Status()
		ev := scoped.WithLevel(levelFor(status))
		if errs := c.Errors.String(); errs != "" {
			ev = ev.Str("errors", errs)
		}
		ev.Time("started_at", began.UTC()).
			Int("status", status).
			Dur("latency", time.Since(began)).
			Str("query", query).
			Str("remote_ip", c.ClientIP()).
			Str("client_id", c.GetString(ctxKeyClientID)).
			Int64("bytes_in", c.Request.ContentLength).
			Int("bytes_out", c.Writer.Size()).
			Interface("headers", headers).
			Msg("http_request")
	}
}

// Recovery turns a panic into the JSON 500 envelope, or a bare 500 when the
// handler already started writing, and logs the panic with its stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			LoggerFrom(c).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("panic recovered")
			if c.Writer.Written() {
				c.AbortWithStatus(http.StatusInternalServerError)
				return
			}
			WriteError(c, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		}()
		c.Next()
	}
}

// LoggerFrom returns the logger installed by Logger, falling back to the
// global logger. It never returns nil.
func LoggerFrom(c *gin.Context) *zerolog.Logger {
	if l, ok := c.Value(loggerKey).(*zerolog.Logger); ok {
		return l
	}
	return &log.Logger
}

// RequestIDFrom returns the request's correlation id, or "" outside RequestID.
func RequestIDFrom(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return c.Writer.Header().Get(requestIDHeader)
}

func clip(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
