package middleware

import (
	"context"
	"net/http"
	"regexp"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
)

// HeaderIdempotencyKey carries the client-chosen key that makes a POST safe
// to retry.
const HeaderIdempotencyKey = "Idempotency-Key"

const (
	ctxKeyIdemKey    = "idem.key"
	ctxKeyIdemReplay = "idem.replay"
	ctxKeyRateBypass = "rate.bypass"
)

var idemKeyPattern = regexp.MustCompile(`^[A-Za-z0-9._~\-:]+$`)

// GetIdempotencyKey returns the validated key stashed by IdempotencyValidator.
func GetIdempotencyKey(c *gin.Context) (string, bool) {
	key := c.GetString(ctxKeyIdemKey)
	return key, key != ""
}

// IsReplay reports whether the ledger already held a live record for the key.
func IsReplay(c *gin.Context) bool { return c.GetBool(ctxKeyIdemReplay) }

// IdempotencyOptions configures IdempotencyValidator. Zero values select
// the defaults noted on each field.
type IdempotencyOptions struct {
	MaxLen  int            // 200
	Pattern *regexp.Regexp // ^[A-Za-z0-9._~\-:]+$
	Scope   string         // ledger namespace, e.g. "POST /products"
	Methods []string       // POST
}

func (o IdempotencyOptions) withDefaults() IdempotencyOptions {
	if o.MaxLen <= 0 {
		o.MaxLen = 200
	}
	if o.Pattern == nil {
		o.Pattern = idemKeyPattern
	}
	if len(o.Methods) == 0 {
		o.Methods = []string{http.MethodPost}
	}
	return o
}

func (o IdempotencyOptions) valid(key string) bool {
	return len(key) <= o.MaxLen && o.Pattern.MatchString(key)
}

// IdempotencyLookup reports whether a live record exists for
// (clientID, scope, key) at now. repo.Ledger.Exists satisfies it.
type IdempotencyLookup func(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error)

// IdempotencyValidator inspects the Idempotency-Key header on the configured
// methods. Malformed keys are rejected with 400. Keys the lookup already
// knows mark the request as a replay, which also exempts it from the rate
// limiter; serving the replay is left to the handler. Lookup failures are
// logged and the request proceeds as a first attempt.
func IdempotencyValidator(opts IdempotencyOptions, lookup IdempotencyLookup) gin.HandlerFunc {
	opts = opts.withDefaults()

	return func(c *gin.Context) {
		key := c.GetHeader(HeaderIdempotencyKey)
		if key == "" || !slices.Contains(opts.Methods, c.Request.Method) {
			c.Next()
			return
		}
		if !opts.valid(key) {
			WriteError(c, http.StatusBadRequest, "invalid Idempotency-Key")
			return
		}
		c.Set(ctxKeyIdemKey, key)

		if lookup == nil {
			c.Next()
			return
		}
		seen, err := lookup(c.Request.Context(), ClientID(c), opts.Scope, key, time.Now().UTC())
		if err != nil {
			LoggerFrom(c).Warn().Err(err).Str("scope", opts.Scope).Msg("idempotency lookup failed")
		}
		if seen {
			c.Set(ctxKeyIdemReplay, true)
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	}
}
