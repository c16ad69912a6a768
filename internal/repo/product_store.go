// Package repo implements the data layer. This file provides ProductStore,
// the in-memory, insertion-ordered catalog of products.
//
// The store is an explicitly owned value: callers construct one with
// NewProductStore and inject it where needed. State lives for the lifetime of
// the value; a fresh store starts from the seed records.
//
// Error semantics:
//   - Lookups, updates, and removals of a missing id return ErrNotFound.
//
// All operations are linear scans over the ordered slice.
package repo

import (
	"context"
	"errors"
	"sync"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

// ErrNotFound is returned when no product has the requested id.
var ErrNotFound = errors.New("not found")

// ProductStore is an ordered, mutable list of products guarded by a RWMutex.
// Identifiers come from a monotonic counter and are never reused.
type ProductStore struct {
	mu     sync.RWMutex
	items  []domain.Product
	nextID int
}

// NewProductStore returns a store holding a copy of seed. The id counter
// starts after the highest seeded id.
func NewProductStore(seed []domain.Product) *ProductStore {
	s := &ProductStore{
		items:  make([]domain.Product, 0, len(seed)),
		nextID: 1,
	}
	for _, p := range seed {
		s.items = append(s.items, p)
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
	return s
}

// List returns a copy of all products in insertion order.
func (s *ProductStore) List(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Product, len(s.items))
	copy(out, s.items)
	return out, nil
}

// Len reports the number of stored products.
func (s *ProductStore) Len(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// FindByID returns the first product with the given id.
func (s *ProductStore) FindByID(_ context.Context, id int) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		p := s.items[i]
		return &p, nil
	}
	return nil, ErrNotFound
}

// Append assigns the next id, stores the product at the end, and returns it.
func (s *ProductStore) Append(_ context.Context, patch domain.ProductPatch) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := domain.Product{ID: s.nextID}
	patch.Apply(&p)
	s.nextID++
	s.items = append(s.items, p)
	return &p, nil
}

// UpdateByID merges patch into the matching product and returns the result.
func (s *ProductStore) UpdateByID(_ context.Context, id int, patch domain.ProductPatch) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	patch.Apply(&s.items[i])
	p := s.items[i]
	return &p, nil
}

// RemoveByID deletes the first product with the given id and returns it.
func (s *ProductStore) RemoveByID(_ context.Context, id int) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(id)
	if i < 0 {
		return nil, ErrNotFound
	}
	p := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	return &p, nil
}

// indexOf returns the slice index of id or -1. Callers hold the lock.
func (s *ProductStore) indexOf(id int) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}
