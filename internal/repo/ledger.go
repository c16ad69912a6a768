// Package repo implements the data layer. This file provides Ledger, the
// GORM-backed record of completed creates that lets a retried POST with the
// same Idempotency-Key be answered from history.
package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

// Ledger stores idempotency records in db. Records expire TTL after they
// are written; expired rows are invisible to reads and removed by
// PurgeExpired.
type Ledger struct {
	db  *gorm.DB
	ttl time.Duration
	now func() time.Time
}

// NewLedger returns a Ledger whose records expire after ttl.
func NewLedger(db *gorm.DB, ttl time.Duration) *Ledger {
	return &Ledger{db: db, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}
}

// find returns the live record for the triple, or nil when there is none.
func (l *Ledger) find(ctx context.Context, clientID, scope, key string, at time.Time) (*domain.Idempotency, error) {
	if strings.TrimSpace(key) == "" {
		return nil, nil
	}
	var rec domain.Idempotency
	err := l.db.WithContext(ctx).
		Where(map[string]any{"client_id": clientID, "scope": scope, "key": key}).
		Where("expires_at > ?", at).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// Lookup returns the product id recorded for the triple, if still valid.
func (l *Ledger) Lookup(ctx context.Context, clientID, scope, key string) (int, bool, error) {
	rec, err := l.find(ctx, clientID, scope, key, l.now())
	if rec == nil || err != nil {
		return 0, false, err
	}
	return rec.ProductID, true, nil
}

// Exists reports whether a record valid at now exists. It has the shape of
// middleware.IdempotencyLookup.
func (l *Ledger) Exists(ctx context.Context, clientID, scope, key string, now time.Time) (bool, error) {
	rec, err := l.find(ctx, clientID, scope, key, now)
	return rec != nil, err
}

// Record stores the outcome of a completed create. If the triple is already
// recorded the existing row is kept: the first writer wins.
func (l *Ledger) Record(ctx context.Context, clientID, scope, key string, productID, status int) error {
	now := l.now()
	rec := domain.Idempotency{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		Scope:     scope,
		Key:       key,
		ProductID: productID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(l.ttl),
	}
	return l.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error
}

// PurgeExpired deletes records whose TTL has passed and reports how many
// were removed.
func (l *Ledger) PurgeExpired(ctx context.Context) (int64, error) {
	res := l.db.WithContext(ctx).Where("expires_at <= ?", l.now()).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}
