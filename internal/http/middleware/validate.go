package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

const ctxKeyProductPatch = "product.patch"

// createProductRequest is the POST payload. Pointer fields let `required`
// accept zero values such as a price of 0 or inStock=false while still
// rejecting absent and null fields.
type createProductRequest struct {
	Name        *string  `json:"name"        binding:"required"`
	Description *string  `json:"description" binding:"required"`
	Price       *float64 `json:"price"       binding:"required"`
	Category    *string  `json:"category"    binding:"required"`
	InStock     *bool    `json:"inStock"     binding:"required"`
}

func (r createProductRequest) patch() domain.ProductPatch {
	return domain.ProductPatch{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Category:    r.Category,
		InStock:     r.InStock,
	}
}

// ValidateProduct requires a JSON object carrying all five product fields
// with the right primitive types: name, description, and category strings,
// a numeric price, and a boolean inStock. Anything else records
// domain.ErrInvalidProduct and aborts. The decoded fields are available to
// the handler through PatchFrom; a client-supplied id is ignored.
func ValidateProduct() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			rejectProduct(c, err)
			return
		}
		c.Set(ctxKeyProductPatch, req.patch())
		c.Next()
	}
}

// ValidateProductPatch is the update variant: fields may be omitted, but
// every known field that is present must have the right type. Unknown
// fields and id are ignored.
func ValidateProductPatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch domain.ProductPatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			rejectProduct(c, err)
			return
		}
		c.Set(ctxKeyProductPatch, patch)
		c.Next()
	}
}

// PatchFrom returns the payload decoded by ValidateProduct or
// ValidateProductPatch.
func PatchFrom(c *gin.Context) (domain.ProductPatch, bool) {
	p, ok := c.Value(ctxKeyProductPatch).(domain.ProductPatch)
	return p, ok
}

func rejectProduct(c *gin.Context, cause error) {
	LoggerFrom(c).Debug().Err(cause).Msg("product payload rejected")
	_ = c.Error(domain.ErrInvalidProduct)
	c.Abort()
}
