// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for refresh run
// audit records.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/media-tracker/internal/domain"
)

// CreateRefreshRun inserts a running refresh record for store.
func CreateRefreshRun(ctx context.Context, db *gorm.DB, store domain.StoreType) (*domain.RefreshRun, error) {
	run := &domain.RefreshRun{
		ID:        uuid.NewString(),
		Store:     store,
		Status:    domain.RunRunning,
		StartedAt: time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, err
	}
	return run, nil
}

// FinishRefreshRun stores the final status, counters and error message of a
// run. It returns ErrNotFound when the run does not exist.
func FinishRefreshRun(ctx context.Context, db *gorm.DB, run *domain.RefreshRun) error {
	now := time.Now().UTC()
	run.FinishedAt = &now
	res := db.WithContext(ctx).
		Model(&domain.RefreshRun{}).
		Where("id = ?", run.ID).
		Updates(map[string]any{
			"status":      run.Status,
			"games":       run.Games,
			"pairs":       run.Pairs,
			"priced":      run.Priced,
			"unavailable": run.Unavailable,
			"error":       run.Error,
			"finished_at": now,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetRefreshRun fetches a run by id, or ErrNotFound.
func GetRefreshRun(ctx context.Context, db *gorm.DB, id string) (*domain.RefreshRun, error) {
	var run domain.RefreshRun
	if err := db.WithContext(ctx).Where("id = ?", id).First(&run).Error; err != nil {
		return nil, err
	}
	return &run, nil
}

// ListRefreshRuns returns the most recent runs for a store, newest first.
func ListRefreshRuns(ctx context.Context, db *gorm.DB, store domain.StoreType, limit int) ([]domain.RefreshRun, error) {
	var out []domain.RefreshRun
	q := db.WithContext(ctx).
		Where("store = ?", store).
		Order("started_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// AbandonRunningRuns marks runs left in the running state by a previous
// process as canceled. It returns the number of rows changed.
func AbandonRunningRuns(ctx context.Context, db *gorm.DB) (int64, error) {
	now := time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.RefreshRun{}).
		Where("status = ?", domain.RunRunning).
		Updates(map[string]any{
			"status":      domain.RunCanceled,
			"error":       "interrupted",
			"finished_at": now,
		})
	return res.RowsAffected, res.Error
}
