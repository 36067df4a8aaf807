package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/media-tracker/internal/domain"
)

// ErrDuplicate reports that a live record already holds the key.
var ErrDuplicate = errors.New("duplicate")

// IdemKey identifies one client retry window.
type IdemKey struct {
	UserID   string
	Resource string
	Key      string
}

func (k IdemKey) valid() bool {
	return strings.TrimSpace(k.Resource) != "" && strings.TrimSpace(k.Key) != ""
}

// FindIdempotency returns the record holding k at now, or ErrNotFound when
// there is none or it has expired.
func FindIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, now time.Time) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, ErrNotFound
	}
	var rec domain.Idempotency
	err := db.WithContext(ctx).
		Where(map[string]any{"user_id": k.UserID, "resource": k.Resource, "key": k.Key}).
		Where("expires_at > ?", now).
		Take(&rec).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, ErrNotFound
	case err != nil:
		return nil, err
	}
	return &rec, nil
}

// ClaimIdempotency binds k to runID until now+ttl. An expired record for the
// same key is taken over in place; a live one yields ErrDuplicate.
func ClaimIdempotency(ctx context.Context, db *gorm.DB, k IdemKey, runID string, status int, now time.Time, ttl time.Duration) (*domain.Idempotency, error) {
	if !k.valid() {
		return nil, errors.New("idempotency: resource and key are required")
	}
	rec := &domain.Idempotency{
		ID:        uuid.NewString(),
		UserID:    k.UserID,
		Resource:  k.Resource,
		Key:       k.Key,
		RunID:     runID,
		Status:    status,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	res := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "resource"}, {Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"run_id", "status", "created_at", "expires_at"}),
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{SQL: "idempotency.expires_at <= ?", Vars: []any{now}},
		}},
	}).Create(rec)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return nil, ErrDuplicate
		}
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, ErrDuplicate
	}
	return rec, nil
}

// PurgeIdempotency deletes records that expired at or before now.
func PurgeIdempotency(ctx context.Context, db *gorm.DB, now time.Time) (int64, error) {
	res := db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.Idempotency{})
	return res.RowsAffected, res.Error
}

// isUniqueViolation matches unique failures from drivers that report them
// as plain text instead of gorm.ErrDuplicatedKey.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"unique constraint failed", "constraint failed: unique", "duplicate key"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}
