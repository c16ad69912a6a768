package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

// ErrorHandler is the terminal error middleware. Handlers and middleware
// report failures with c.Error(err) and return (or abort); once the chain
// unwinds, ErrorHandler renders the last recorded error as
//
//	{"request_id": "...", "code": "not_found", "error": "Product not found"}
//
// with the status resolved by domain.StatusOf (500 for unclassified errors).
// The error is logged with its stack trace when one is attached.
// Nothing is written if a response already went out.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status, msg := domain.StatusOf(err)

		lg := LoggerFrom(c)
		ev := lg.Warn()
		if status >= http.StatusInternalServerError {
			ev = lg.Error()
		}
		ev.Stack().Err(err).Int("status", status).Msg("request failed")

		WriteError(c, status, msg)
	}
}

// WriteError aborts the request with the standard error envelope.
func WriteError(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{
		"request_id": RequestIDFrom(c),
		"code":       CodeForStatus(status),
		"error":      msg,
	})
}

// CodeForStatus returns the machine-readable code for an HTTP status, e.g.
// "not_found" for 404. 500 maps to "internal_error".
func CodeForStatus(status int) string {
	if status == http.StatusInternalServerError {
		return "internal_error"
	}
	text := http.StatusText(status)
	if text == "" {
		return "error"
	}
	return strings.ToLower(strings.ReplaceAll(strings.ReplaceAll(text, "-", "_"), " ", "_"))
}
