// Package domain defines the core persistence models for the application.
// These types are used by GORM for database schema mapping and are shared
// across the repository and service layers.
package domain

import "time"

// Idempotency records the refresh run started for a client-supplied key,
// keyed by (user_id, resource, key). A retried POST with the same key inside
// the TTL window is answered with the original run instead of starting a new
// one.
type Idempotency struct {
	ID        string    `gorm:"type:text;primaryKey"`
	UserID    string    `gorm:"type:text;not null;uniqueIndex:ux_user_resource_key,priority:1"`
	Resource  string    `gorm:"type:text;not null;uniqueIndex:ux_user_resource_key,priority:2"`
	Key       string    `gorm:"type:text;not null;uniqueIndex:ux_user_resource_key,priority:3"`
	RunID     string    `gorm:"type:text;not null"`
	Status    int       `gorm:"not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
	ExpiresAt time.Time `gorm:"not null;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }

// Refresh run statuses.
const (
	RunRunning   = "running"
	RunSucceeded = "succeeded"
	RunFailed    = "failed"
	RunCanceled  = "canceled"
)

// RefreshRun is the audit record of one wishlist price refresh for a store.
type RefreshRun struct {
	ID          string     `json:"id"          gorm:"type:char(36);primaryKey"`
	Store       StoreType  `json:"store"       gorm:"type:varchar(32);not null;index"`
	Status      string     `json:"status"      gorm:"type:varchar(16);not null;check:status IN ('running','succeeded','failed','canceled')"`
	Games       int        `json:"games"`
	Pairs       int        `json:"pairs"`
	Priced      int        `json:"priced"`
	Unavailable int        `json:"unavailable"`
	Error       string     `json:"error,omitempty" gorm:"type:text"`
	StartedAt   time.Time  `json:"started_at"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

// TableName returns the database table name for RefreshRun.
func (RefreshRun) TableName() string { return "refresh_runs" }
