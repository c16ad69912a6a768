// Package services defines the catalog's business logic. This file
// centralizes service-level error values so callers can match them with
// errors.Is and the HTTP layer can render them through the domain taxonomy.
package services

import "github.com/tbourn/go-product-catalog/internal/domain"

var (
	// ErrProductNotFound indicates that no product has the requested id.
	ErrProductNotFound = domain.NotFound("Product not found")

	// ErrSearchTermRequired is returned by Search when the term is blank.
	ErrSearchTermRequired = domain.Invalid(`Search term "name" is required`)
)
