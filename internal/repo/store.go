package repo

import (
	"context"
	"errors"
	"net/http"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/media-tracker/internal/domain"
)

// Store binds the repository functions to one database handle. It satisfies
// the persistence capabilities the services depend on. Lookups of missing
// rows return (nil, nil) so callers can treat absence as a value.
type Store struct {
	DB *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store { return &Store{DB: db} }

func absent[T any](v *T, err error) (*T, error) {
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return v, err
}

// GetGame returns cached metadata or nil.
func (s *Store) GetGame(ctx context.Context, id int64) (*domain.Game, error) {
	return absent(GetGame(ctx, s.DB, id))
}

// SaveGame inserts metadata unless already cached.
func (s *Store) SaveGame(ctx context.Context, g *domain.Game) error {
	return CreateGame(ctx, s.DB, g)
}

// GetStoreMetadata returns the cached identifier row or nil.
func (s *Store) GetStoreMetadata(ctx context.Context, gameID int64, store domain.StoreType, region string) (*domain.StoreMetadata, error) {
	return absent(GetStoreMetadata(ctx, s.DB, gameID, store, region))
}

// CreateStoreMetadata inserts the identifier if absent and returns the stored row.
func (s *Store) CreateStoreMetadata(ctx context.Context, m *domain.StoreMetadata) (*domain.StoreMetadata, error) {
	return CreateStoreMetadata(ctx, s.DB, m)
}

// GetPrice returns the stored snapshot or nil.
func (s *Store) GetPrice(ctx context.Context, gameID int64, store domain.StoreType, region string) (*domain.GamePrice, error) {
	return absent(GetGamePrice(ctx, s.DB, gameID, store, region))
}

// UpsertPrice inserts or updates the snapshot for its triple.
func (s *Store) UpsertPrice(ctx context.Context, p *domain.GamePrice) error {
	return UpsertGamePrice(ctx, s.DB, p)
}

// CountWishlistedGames proxies the wishlist count query.
func (s *Store) CountWishlistedGames(ctx context.Context, platform string) (int64, error) {
	return CountWishlistedGames(ctx, s.DB, platform)
}

// ListWishlistedGamesPage proxies the wishlist page query.
func (s *Store) ListWishlistedGamesPage(ctx context.Context, platform string, offset, limit int) ([]int64, error) {
	return ListWishlistedGamesPage(ctx, s.DB, platform, offset, limit)
}

// CreateRefreshRun inserts a running refresh record.
func (s *Store) CreateRefreshRun(ctx context.Context, store domain.StoreType) (*domain.RefreshRun, error) {
	return CreateRefreshRun(ctx, s.DB, store)
}

// FinishRefreshRun stores the final state of a run.
func (s *Store) FinishRefreshRun(ctx context.Context, run *domain.RefreshRun) error {
	return FinishRefreshRun(ctx, s.DB, run)
}

// GetRefreshRun returns a run or nil.
func (s *Store) GetRefreshRun(ctx context.Context, id string) (*domain.RefreshRun, error) {
	return absent(GetRefreshRun(ctx, s.DB, id))
}

// ListRefreshRuns returns the latest runs for a store.
func (s *Store) ListRefreshRuns(ctx context.Context, store domain.StoreType, limit int) ([]domain.RefreshRun, error) {
	return ListRefreshRuns(ctx, s.DB, store, limit)
}

// FindIdempotentRun returns the run id recorded for (user, resource, key),
// or "" when none is live.
func (s *Store) FindIdempotentRun(ctx context.Context, userID, resource, key string, now time.Time) (string, error) {
	rec, err := FindIdempotency(ctx, s.DB, IdemKey{userID, resource, key}, now)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return rec.RunID, nil
}

// RememberIdempotentRun records runID under (user, resource, key). A
// concurrent live duplicate is reported as ErrDuplicate.
func (s *Store) RememberIdempotentRun(ctx context.Context, userID, resource, key, runID string, ttl time.Duration) error {
	_, err := ClaimIdempotency(ctx, s.DB, IdemKey{userID, resource, key}, runID, http.StatusAccepted, time.Now().UTC(), ttl)
	return err
}
