package middleware

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

// HeaderAPIKey carries the shared secret on protected routes.
const HeaderAPIKey = "X-API-Key"

const ctxKeyClientID = "clientID"

// ErrInvalidAPIKey is recorded when the X-API-Key header is missing or wrong.
var ErrInvalidAPIKey = domain.Unauthorized("Unauthorized: Invalid API Key")

// APIKey guards a route with a shared secret. A mismatch records
// ErrInvalidAPIKey for ErrorHandler and aborts; a match stores the caller's
// key fingerprint as the client identity.
func APIKey(secret string) gin.HandlerFunc {
	want := []byte(secret)
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderAPIKey)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			_ = c.Error(ErrInvalidAPIKey)
			c.Abort()
			return
		}
		c.Set(ctxKeyClientID, fingerprint(got))
		c.Next()
	}
}

// ClientID identifies the caller for idempotency and rate limiting: the
// identity stored by APIKey, else a fingerprint of any presented key, else
// the remote address.
func ClientID(c *gin.Context) string {
	if id := c.GetString(ctxKeyClientID); id != "" {
		return id
	}
	if k := c.GetHeader(HeaderAPIKey); k != "" {
		return fingerprint(k)
	}
	return "ip:" + c.ClientIP()
}

// fingerprint avoids keeping raw secrets in context, logs, or the ledger.
func fingerprint(key string) string {
	sum := sha256.Sum256([]byte(key))
	return "key:" + hex.EncodeToString(sum[:8])
}
