// Package services – CatalogService
//
// This file implements the CatalogService, which owns the product catalog's
// read and write operations: filtered and paginated listing, single-record
// CRUD, per-category statistics, name search, idempotent creation, and the
// slow lookup used to exercise asynchronous error propagation.
//
// Missing records surface as ErrProductNotFound so handlers can map them to
// HTTP results through domain.StatusOf.
package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-product-catalog/internal/domain"
	"github.com/tbourn/go-product-catalog/internal/observability"
	"github.com/tbourn/go-product-catalog/internal/repo"
	"github.com/tbourn/go-product-catalog/internal/search"
	"github.com/tbourn/go-product-catalog/internal/utils"
)

// Pagination defaults for List.
const (
	DefaultPage     = 1
	DefaultLimit    = 5
	MaxLimit        = 100
	DefaultAsyncLag = 500 * time.Millisecond
)

// CreateScope namespaces idempotency keys recorded by Create.
const CreateScope = "POST /products"

// ProductRepo is the storage contract required by CatalogService.
// repo.ProductStore satisfies it.
type ProductRepo interface {
	List(ctx context.Context) ([]domain.Product, error)
	FindByID(ctx context.Context, id int) (*domain.Product, error)
	Append(ctx context.Context, patch domain.ProductPatch) (*domain.Product, error)
	UpdateByID(ctx context.Context, id int, patch domain.ProductPatch) (*domain.Product, error)
	RemoveByID(ctx context.Context, id int) (*domain.Product, error)
}

// IdempotencyLedger remembers which product a (client, scope, key) triple
// created. Lookup reports ok=false when nothing valid is recorded.
type IdempotencyLedger interface {
	Lookup(ctx context.Context, clientID, scope, key string) (productID int, ok bool, err error)
	Record(ctx context.Context, clientID, scope, key string, productID, status int) error
}

// ListQuery selects a page of products, optionally restricted to a category.
// Zero Page/Limit mean "use the default".
type ListQuery struct {
	Category string
	Page     int
	Limit    int
}

// Page is one page of a filtered listing.
type Page struct {
	Total int              `json:"total" example:"2"`
	Page  int              `json:"page"  example:"1"`
	Limit int              `json:"limit" example:"5"`
	Data  []domain.Product `json:"data"`
}

// CatalogService provides the product catalog's operations.
type CatalogService struct {
	// Repo is the product store.
	Repo ProductRepo
	// Ledger backs idempotent creation; nil disables replays.
	Ledger IdempotencyLedger

	// DefaultLimit is the page size used when a query gives none.
	DefaultLimit int
	// AsyncDelay is how long LookupSlow waits before answering.
	AsyncDelay time.Duration
}

// NewCatalogService constructs a CatalogService with default pagination and
// lookup delay.
func NewCatalogService(r ProductRepo, ledger IdempotencyLedger) *CatalogService {
	return &CatalogService{
		Repo:         r,
		Ledger:       ledger,
		DefaultLimit: DefaultLimit,
		AsyncDelay:   DefaultAsyncLag,
	}
}

// List returns the page of products matching q. The category comparison is
// exact but case-insensitive; Total counts all matches before paging.
func (s *CatalogService) List(ctx context.Context, q ListQuery) (*Page, error) {
	items, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if cat := q.Category; cat != "" {
		items = search.Filter(items, categoryOf, func(c string) bool { return search.Equal(c, cat) })
	}

	page, limit := q.Page, q.Limit
	if page == 0 {
		page = DefaultPage
	}
	if limit == 0 {
		limit = s.DefaultLimit
	}
	page, limit = utils.ClampPage(page, limit, MaxLimit)

	return &Page{
		Total: len(items),
		Page:  page,
		Limit: limit,
		Data:  utils.Paginate(items, page, limit),
	}, nil
}

// Get returns the product with the given id.
func (s *CatalogService) Get(ctx context.Context, id int) (*domain.Product, error) {
	p, err := s.Repo.FindByID(ctx, id)
	return p, mapNotFound(err)
}

// Create appends a new product built from patch.
func (s *CatalogService) Create(ctx context.Context, patch domain.ProductPatch) (*domain.Product, error) {
	return s.Repo.Append(ctx, patch)
}

// CreateIdempotent behaves like Create, but when key is non-empty and the
// same client already created a product with that key, the original product
// is returned with replayed=true and nothing is appended.
//
// Recording the key is best effort: a ledger failure is logged through the
// logger in ctx and does not undo the create. The lookup and the record are
// separate steps, so two concurrent first attempts with the same key may
// both append; the ledger keeps the first record and later retries replay it.
func (s *CatalogService) CreateIdempotent(ctx context.Context, clientID, key string, patch domain.ProductPatch) (p *domain.Product, replayed bool, err error) {
	key = strings.TrimSpace(key)
	if key == "" || s.Ledger == nil {
		p, err = s.Create(ctx, patch)
		return p, false, err
	}

	id, ok, lerr := s.Ledger.Lookup(ctx, clientID, CreateScope, key)
	switch {
	case lerr != nil:
		zerolog.Ctx(ctx).Warn().Err(lerr).Str("scope", CreateScope).Msg("idempotency lookup failed")
	case ok:
		p, err = s.Get(ctx, id)
		return p, true, err
	}

	p, err = s.Create(ctx, patch)
	if err != nil {
		return nil, false, err
	}
	if rerr := s.Ledger.Record(ctx, clientID, CreateScope, key, p.ID, 201); rerr != nil {
		zerolog.Ctx(ctx).Error().Err(rerr).
			Str("scope", CreateScope).
			Int("product_id", p.ID).
			Msg("idempotency record failed")
	}
	return p, false, nil
}

// Update merges patch into the product with the given id.
func (s *CatalogService) Update(ctx context.Context, id int, patch domain.ProductPatch) (*domain.Product, error) {
	p, err := s.Repo.UpdateByID(ctx, id, patch)
	return p, mapNotFound(err)
}

// Delete removes the product with the given id and returns it.
func (s *CatalogService) Delete(ctx context.Context, id int) (*domain.Product, error) {
	p, err := s.Repo.RemoveByID(ctx, id)
	return p, mapNotFound(err)
}

// Stats counts products per category. Keys are lowercased.
func (s *CatalogService) Stats(ctx context.Context) (map[string]int, error) {
	items, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return search.CountBy(items, categoryOf), nil
}

// Search returns products whose name contains term, ignoring case.
func (s *CatalogService) Search(ctx context.Context, term string) ([]domain.Product, error) {
	if term == "" {
		return nil, ErrSearchTermRequired
	}
	items, err := s.Repo.List(ctx)
	if err != nil {
		return nil, err
	}
	return search.Filter(items, nameOf, func(n string) bool { return search.Contains(n, term) }), nil
}

// LookupSlow simulates a slow backing store. After AsyncDelay it resolves
// id "1" to a fixed summary and fails every other id with a stack-annotated
// ErrProductNotFound. Cancellation of ctx ends the wait early.
func (s *CatalogService) LookupSlow(ctx context.Context, id string) (_ *domain.ProductSummary, err error) {
	ctx, span := observability.Tracer().Start(ctx, "catalog.LookupSlow",
		trace.WithAttributes(attribute.String("product.id", id)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if s.AsyncDelay > 0 {
		t := time.NewTimer(s.AsyncDelay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return nil, errors.WithStack(ctx.Err())
		case <-t.C:
		}
	}
	if id == "1" {
		return &domain.ProductSummary{ID: 1, Name: "Test Product"}, nil
	}
	return nil, errors.WithStack(ErrProductNotFound)
}

func mapNotFound(err error) error {
	if errors.Is(err, repo.ErrNotFound) {
		return ErrProductNotFound
	}
	return err
}

func categoryOf(p domain.Product) string { return p.Category }
func nameOf(p domain.Product) string     { return p.Name }
