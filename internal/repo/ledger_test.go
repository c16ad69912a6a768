package repo

import (
	"context"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-product-catalog/internal/domain"
)

const scope = "POST /products"

// newTestLedger opens a private in-memory database and returns a ledger whose
// clock is driven by *clock.
func newTestLedger(t *testing.T, ttl time.Duration, clock *time.Time) *Ledger {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	t.Cleanup(func() { _ = sqlDB.Close() })

	l := NewLedger(db, ttl)
	if clock != nil {
		l.now = func() time.Time { return *clock }
	}
	return l
}

func TestLedger_RecordThenLookup(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, time.Hour, nil)

	if id, ok, err := l.Lookup(ctx, "ip:1", scope, "k1"); ok || err != nil || id != 0 {
		t.Fatalf("empty ledger Lookup = (%d, %v, %v)", id, ok, err)
	}
	if err := l.Record(ctx, "ip:1", scope, "k1", 7, 201); err != nil {
		t.Fatalf("Record: %v", err)
	}
	id, ok, err := l.Lookup(ctx, "ip:1", scope, "k1")
	if err != nil || !ok || id != 7 {
		t.Fatalf("Lookup = (%d, %v, %v); want (7, true, nil)", id, ok, err)
	}
	if _, ok, _ := l.Lookup(ctx, "ip:2", scope, "k1"); ok {
		t.Fatal("key leaked across clients")
	}
	if _, ok, _ := l.Lookup(ctx, "ip:1", "PUT /products", "k1"); ok {
		t.Fatal("key leaked across scopes")
	}
}

func TestLedger_FirstWriterWins(t *testing.T) {
	ctx := context.Background()
	l := newTestLedger(t, time.Hour, nil)

	for _, pid := range []int{3, 4} {
		if err := l.Record(ctx, "ip:1", scope, "k1", pid, 201); err != nil {
			t.Fatalf("Record(%d): %v", pid, err)
		}
	}
	if id, _, _ := l.Lookup(ctx, "ip:1", scope, "k1"); id != 3 {
		t.Fatalf("Lookup id = %d; want 3", id)
	}
	var n int64
	l.db.Model(&domain.Idempotency{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows = %d; want 1", n)
	}
}

func TestLedger_BlankKeyNeverMatches(t *testing.T) {
	l := newTestLedger(t, time.Hour, nil)
	if ok, err := l.Exists(context.Background(), "ip:1", scope, "   ", time.Now()); ok || err != nil {
		t.Fatalf("Exists(blank) = (%v, %v)", ok, err)
	}
}

func TestLedger_Expiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	l := newTestLedger(t, time.Hour, &now)

	if err := l.Record(ctx, "ip:1", scope, "k1", 1, 201); err != nil {
		t.Fatalf("Record: %v", err)
	}
	if ok, err := l.Exists(ctx, "ip:1", scope, "k1", now.Add(59*time.Minute)); !ok || err != nil {
		t.Fatalf("Exists before TTL = (%v, %v)", ok, err)
	}
	if ok, err := l.Exists(ctx, "ip:1", scope, "k1", now.Add(time.Hour)); ok || err != nil {
		t.Fatalf("Exists at TTL = (%v, %v)", ok, err)
	}

	if n, err := l.PurgeExpired(ctx); err != nil || n != 0 {
		t.Fatalf("early PurgeExpired = (%d, %v); want (0, nil)", n, err)
	}
	now = now.Add(2 * time.Hour)
	if _, ok, _ := l.Lookup(ctx, "ip:1", scope, "k1"); ok {
		t.Fatal("expired record still visible")
	}
	if n, err := l.PurgeExpired(ctx); err != nil || n != 1 {
		t.Fatalf("PurgeExpired = (%d, %v); want (1, nil)", n, err)
	}
}

func TestLedger_RecordSurfacesDBErrors(t *testing.T) {
	l := newTestLedger(t, time.Hour, nil)
	if err := l.db.Migrator().DropTable(&domain.Idempotency{}); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if err := l.Record(context.Background(), "ip:1", scope, "k1", 1, 201); err == nil {
		t.Fatal("expected error without table")
	}
	if _, _, err := l.Lookup(context.Background(), "ip:1", scope, "k1"); err == nil {
		t.Fatal("expected lookup error without table")
	}
}
