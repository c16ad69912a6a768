// Package handlers provides the HTTP handlers of the product catalog API.
//
// Handlers are transport-thin: they parse path and query input, call the
// catalog service, and write JSON. Failures are recorded with c.Error and
// rendered by middleware.ErrorHandler, so every error leaves the server in
// the same envelope:
//
//	HTTP/1.1 404 Not Found
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "not_found",
//	  "error": "Product not found"
//	}
package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-catalog/internal/http/middleware"
)

// ErrorResponse documents the error envelope written by middleware.ErrorHandler.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Machine-readable code derived from the status
	Code string `json:"code" example:"not_found"`
	// Human-readable message
	Error string `json:"error" example:"Product not found"`
}

// Fail writes the error envelope directly. It is meant for router fallbacks
// that run outside the handler chain; handlers use c.Error instead.
func Fail(c *gin.Context, status int, msg string) {
	middleware.WriteError(c, status, msg)
}

// abort records err for ErrorHandler and stops the chain.
func abort(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}
