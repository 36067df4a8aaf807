package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/media-tracker/internal/domain"
)

// newTestDB opens a unique in-memory database per test and migrates the
// given models.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestFindIdempotency_BlankKeyOrResource(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	for _, k := range []IdemKey{{"u1", " ", "k1"}, {"u1", "switch", ""}} {
		if rec, err := FindIdempotency(context.Background(), db, k, time.Now()); rec != nil || !errors.Is(err, ErrNotFound) {
			t.Fatalf("%+v: got (%v, %v)", k, rec, err)
		}
		if _, err := ClaimIdempotency(context.Background(), db, k, "run", 202, time.Now(), time.Hour); err == nil {
			t.Fatalf("%+v: claim must be rejected", k)
		}
	}
}

func TestClaimIdempotency_LiveKeyIsDuplicate(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	k := IdemKey{"u9", "switch", "nightly"}

	rec, err := ClaimIdempotency(ctx, db, k, "run-1", 202, now, 90*time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if rec.ID == "" || rec.RunID != "run-1" || !rec.ExpiresAt.Equal(now.Add(90*time.Minute)) {
		t.Fatalf("record: %+v", rec)
	}

	if _, err := ClaimIdempotency(ctx, db, k, "run-2", 202, now.Add(time.Minute), time.Hour); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("second claim: %v", err)
	}
	got, err := FindIdempotency(ctx, db, k, now.Add(time.Minute))
	if err != nil || got.RunID != "run-1" {
		t.Fatalf("find: %+v, %v", got, err)
	}

	// Keys are scoped per user and per resource.
	for _, other := range []IdemKey{{"u10", "switch", "nightly"}, {"u9", "ps5", "nightly"}} {
		if _, err := ClaimIdempotency(ctx, db, other, "run-3", 202, now, time.Hour); err != nil {
			t.Fatalf("%+v: %v", other, err)
		}
	}
}

func TestClaimIdempotency_ExpiredKeyIsReclaimed(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	k := IdemKey{"u1", "switch", "k1"}

	if _, err := ClaimIdempotency(ctx, db, k, "old-run", 202, now.Add(-2*time.Hour), time.Hour); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := FindIdempotency(ctx, db, k, now); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record still visible: %v", err)
	}

	if _, err := ClaimIdempotency(ctx, db, k, "new-run", 202, now, time.Hour); err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	got, err := FindIdempotency(ctx, db, k, now)
	if err != nil || got.RunID != "new-run" {
		t.Fatalf("after reclaim: %+v, %v", got, err)
	}
	var n int64
	db.Model(&domain.Idempotency{}).Count(&n)
	if n != 1 {
		t.Fatalf("rows = %d; want the record updated in place", n)
	}
}

func TestPurgeIdempotency(t *testing.T) {
	db := newTestDB(t, &domain.Idempotency{})
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	for i, ttl := range []time.Duration{-time.Hour, -time.Minute, time.Hour} {
		k := IdemKey{"u", "switch", fmt.Sprintf("k%d", i)}
		if _, err := ClaimIdempotency(ctx, db, k, "run", 202, now, ttl); err != nil {
			t.Fatalf("seed %d: %v", i, err)
		}
	}
	n, err := PurgeIdempotency(ctx, db, now)
	if err != nil || n != 2 {
		t.Fatalf("purge = %d, %v", n, err)
	}
	if _, err := FindIdempotency(ctx, db, IdemKey{"u", "switch", "k2"}, now); err != nil {
		t.Fatalf("live record purged: %v", err)
	}
}

func TestClaimIdempotency_MissingTable(t *testing.T) {
	db := newTestDB(t)
	_, err := ClaimIdempotency(context.Background(), db, IdemKey{"u", "switch", "k"}, "r", 202, time.Now(), time.Minute)
	if err == nil || errors.Is(err, ErrDuplicate) {
		t.Fatalf("want a plain driver error, got %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	cases := map[error]bool{
		gorm.ErrDuplicatedKey: true,
		errors.New("UNIQUE constraint failed: idempotency.key"):          true,
		errors.New("constraint failed: UNIQUE constraint failed (2067)"): true,
		errors.New("no such table: idempotency"):                         false,
	}
	for err, want := range cases {
		if got := isUniqueViolation(err); got != want {
			t.Fatalf("isUniqueViolation(%q) = %v", err, got)
		}
	}
}
