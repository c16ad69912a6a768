package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-product-catalog/internal/domain"
	"github.com/tbourn/go-product-catalog/internal/http/middleware"
	"github.com/tbourn/go-product-catalog/internal/services"
)

// CatalogService is the set of catalog operations the handlers consume.
// services.CatalogService implements it.
type CatalogService interface {
	List(ctx context.Context, q services.ListQuery) (*services.Page, error)
	Get(ctx context.Context, id int) (*domain.Product, error)
	CreateIdempotent(ctx context.Context, clientID, key string, patch domain.ProductPatch) (*domain.Product, bool, error)
	Update(ctx context.Context, id int, patch domain.ProductPatch) (*domain.Product, error)
	Delete(ctx context.Context, id int) (*domain.Product, error)
	Stats(ctx context.Context) (map[string]int, error)
	Search(ctx context.Context, term string) ([]domain.Product, error)
	LookupSlow(ctx context.Context, id string) (*domain.ProductSummary, error)
}

// HeaderReplayed marks a POST response served from the idempotency ledger.
const HeaderReplayed = "Idempotency-Replayed"

// Handlers groups the catalog endpoints.
type Handlers struct {
	svc CatalogService
}

// New returns Handlers bound to svc.
func New(svc CatalogService) *Handlers {
	return &Handlers{svc: svc}
}

// productID parses the :id path segment. Anything that is not a base-10
// integer cannot name a product, so it is reported as not found.
func productID(c *gin.Context) (int, error) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		return 0, services.ErrProductNotFound
	}
	return id, nil
}

// queryPositive reads an integer query parameter. Absent or non-numeric
// values yield 0 so the service default applies; numbers below 1 become 1.
func queryPositive(c *gin.Context, name string) int {
	n, err := strconv.Atoi(c.Query(name))
	switch {
	case err != nil:
		return 0
	case n < 1:
		return 1
	}
	return n
}

// Hello godoc
// @ID       hello
// @Summary  Greeting
// @Tags     Meta
// @Produce  plain
// @Success  200  {string}  string  "Hello World!"
// @Router   / [get]
func (h *Handlers) Hello(c *gin.Context) {
	c.String(http.StatusOK, "Hello World!")
}

// ListProducts godoc
// @ID          listProducts
// @Summary     List products
// @Description Returns one page of products, optionally restricted to a category (case-insensitive exact match).
// @Tags        Products
// @Produce     json
// @Security    ApiKeyAuth
// @Param       category  query  string  false  "Category filter"  example(Bakery sweet treat)
// @Param       page      query  int     false  "Page number"      minimum(1) default(1)
// @Param       limit     query  int     false  "Items per page"   minimum(1) maximum(100) default(5)
// @Success     200  {object}  services.Page
// @Failure     401  {object}  handlers.ErrorResponse
// @Router      /products [get]
func (h *Handlers) ListProducts(c *gin.Context) {
	page, err := h.svc.List(c.Request.Context(), services.ListQuery{
		Category: c.Query("category"),
		Page:     queryPositive(c, "page"),
		Limit:    queryPositive(c, "limit"),
	})
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, page)
}

// GetProduct godoc
// @ID       getProduct
// @Summary  Get a product
// @Tags     Products
// @Produce  json
// @Param    id   path  int  true  "Product ID"
// @Success  200  {object}  domain.Product
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /products/{id} [get]
func (h *Handlers) GetProduct(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		abort(c, err)
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// CreateProduct godoc
// @ID          createProduct
// @Summary     Create a product
// @Description Appends a product. With an Idempotency-Key, a retry by the same client returns the original product and sets Idempotency-Replayed.
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       Idempotency-Key  header  string  false  "Retry-safe key"  example(create-7f3a)
// @Param       body  body  domain.ProductPatch  true  "All five product fields"
// @Success     201  {object}  domain.Product
// @Header      201  {string}  Idempotency-Replayed  "true when served from the ledger"
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /products [post]
func (h *Handlers) CreateProduct(c *gin.Context) {
	patch, _ := middleware.PatchFrom(c)
	key, _ := middleware.GetIdempotencyKey(c)

	p, replayed, err := h.svc.CreateIdempotent(c.Request.Context(), middleware.ClientID(c), key, patch)
	middleware.ObserveProductOp("create", replayed, err)
	if err != nil {
		abort(c, err)
		return
	}
	switch {
	case replayed:
		c.Header(HeaderReplayed, "true")
		middleware.LoggerFrom(c).Info().Int("product_id", p.ID).Msg("idempotent replay")
	case middleware.IsReplay(c):
		// The key expired or was purged between validation and lookup.
		middleware.LoggerFrom(c).Info().Int("product_id", p.ID).Msg("idempotency key no longer live, created anew")
	}
	c.JSON(http.StatusCreated, p)
}

// UpdateProduct godoc
// @ID          updateProduct
// @Summary     Update a product
// @Description Shallow-merges the supplied fields. The id cannot be changed.
// @Tags        Products
// @Accept      json
// @Produce     json
// @Param       id    path  int                  true  "Product ID"
// @Param       body  body  domain.ProductPatch  true  "Fields to change"
// @Success     200  {object}  domain.Product
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /products/{id} [put]
func (h *Handlers) UpdateProduct(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		abort(c, err)
		return
	}
	patch, _ := middleware.PatchFrom(c)
	p, err := h.svc.Update(c.Request.Context(), id, patch)
	middleware.ObserveProductOp("update", false, err)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// DeleteProduct godoc
// @ID       deleteProduct
// @Summary  Delete a product
// @Tags     Products
// @Produce  json
// @Param    id   path  int  true  "Product ID"
// @Success  200  {object}  domain.Product  "The removed product"
// @Failure  404  {object}  handlers.ErrorResponse
// @Router   /products/{id} [delete]
func (h *Handlers) DeleteProduct(c *gin.Context) {
	id, err := productID(c)
	if err != nil {
		abort(c, err)
		return
	}
	p, err := h.svc.Delete(c.Request.Context(), id)
	middleware.ObserveProductOp("delete", false, err)
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Stats godoc
// @ID       productStats
// @Summary  Count products per category
// @Tags     Products
// @Produce  json
// @Security ApiKeyAuth
// @Success  200  {object}  map[string]int
// @Failure  401  {object}  handlers.ErrorResponse
// @Router   /products/stats [get]
func (h *Handlers) Stats(c *gin.Context) {
	stats, err := h.svc.Stats(c.Request.Context())
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

// Search godoc
// @ID       searchProducts
// @Summary  Search products by name
// @Tags     Products
// @Produce  json
// @Security ApiKeyAuth
// @Param    name  query  string  true  "Case-insensitive substring"  example(cake)
// @Success  200  {array}   domain.Product
// @Failure  400  {object}  handlers.ErrorResponse
// @Failure  401  {object}  handlers.ErrorResponse
// @Router   /products/search [get]
func (h *Handlers) Search(c *gin.Context) {
	items, err := h.svc.Search(c.Request.Context(), c.Query("name"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, items)
}

// AsyncProduct godoc
// @ID          asyncProduct
// @Summary     Slow product lookup
// @Description Resolves after a fixed delay. Only id 1 exists.
// @Tags        Products
// @Produce     json
// @Security    ApiKeyAuth
// @Param       id   path  string  true  "Product ID"
// @Success     200  {object}  domain.ProductSummary
// @Failure     401  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /async-products/{id} [get]
func (h *Handlers) AsyncProduct(c *gin.Context) {
	p, err := h.svc.LookupSlow(c.Request.Context(), c.Param("id"))
	if err != nil {
		abort(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
