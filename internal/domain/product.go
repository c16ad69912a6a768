// Package domain defines the catalog's core types: the Product record, the
// partial update used for merges, the idempotency ledger row, and the error
// taxonomy shared by the service and HTTP layers.
package domain

// Product is a single catalog record.
//
// Fields:
//   - ID: store-assigned identifier, never reused after deletion.
//   - Name / Description / Category: free-form text.
//   - Price: unit price; no currency semantics are attached.
//   - InStock: availability flag.
type Product struct {
	ID          int     `json:"id"          example:"1"`
	Name        string  `json:"name"        example:"Cup cake"`
	Description string  `json:"description" example:"Soft, fluffy and moist cake."`
	Price       float64 `json:"price"       example:"40.99"`
	Category    string  `json:"category"    example:"Bakery sweet treat"`
	InStock     bool    `json:"inStock"     example:"true"`
}

// ProductPatch carries the fields supplied by a create or update request.
// Nil pointers mean "not supplied" so that updates merge shallowly.
// The identifier is deliberately absent: ids are owned by the store.
type ProductPatch struct {
	Name        *string  `json:"name,omitempty"        example:"Cup cake"`
	Description *string  `json:"description,omitempty" example:"Soft, fluffy and moist cake."`
	Price       *float64 `json:"price,omitempty"       example:"40.99"`
	Category    *string  `json:"category,omitempty"    example:"Bakery sweet treat"`
	InStock     *bool    `json:"inStock,omitempty"     example:"true"`
}

// Apply overwrites the fields of p that are present in the patch.
func (pt ProductPatch) Apply(p *Product) {
	if pt.Name != nil {
		p.Name = *pt.Name
	}
	if pt.Description != nil {
		p.Description = *pt.Description
	}
	if pt.Price != nil {
		p.Price = *pt.Price
	}
	if pt.Category != nil {
		p.Category = *pt.Category
	}
	if pt.InStock != nil {
		p.InStock = *pt.InStock
	}
}

// ProductSummary is the reduced shape returned by the slow lookup path.
type ProductSummary struct {
	ID   int    `json:"id"   example:"1"`
	Name string `json:"name" example:"Test Product"`
}

// SeedProducts returns the records a fresh catalog starts with.
func SeedProducts() []Product {
	return []Product{
		{
			ID:          1,
			Name:        "Cup cake",
			Description: "Soft, fluffy and moist cake.",
			Price:       40.99,
			Category:    "Bakery sweet treat",
			InStock:     true,
		},
		{
			ID:          2,
			Name:        "Wholegrain Bread",
			Description: "Healthy seeded bread loaf.",
			Price:       30.00,
			Category:    "Bakery savory treat",
			InStock:     false,
		},
	}
}
