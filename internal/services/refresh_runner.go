// Package services – RefreshRunner
//
// RefreshRunner turns the refresher into an operable job: every run is
// recorded as a RefreshRun row, at most one run per store executes at a time,
// runs can be started in the background (HTTP) or in the foreground (CLI),
// and a client-supplied idempotency key replays the run it started first.
package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/repo"
)

// RunStore persists refresh runs and the idempotency keys that started them.
// GetRefreshRun returns (nil, nil) for an unknown id and FindIdempotentRun
// returns "" when no live key exists.
type RunStore interface {
	CreateRefreshRun(ctx context.Context, store domain.StoreType) (*domain.RefreshRun, error)
	FinishRefreshRun(ctx context.Context, run *domain.RefreshRun) error
	GetRefreshRun(ctx context.Context, id string) (*domain.RefreshRun, error)
	ListRefreshRuns(ctx context.Context, store domain.StoreType, limit int) ([]domain.RefreshRun, error)

	FindIdempotentRun(ctx context.Context, userID, resource, key string, now time.Time) (string, error)
	RememberIdempotentRun(ctx context.Context, userID, resource, key, runID string, ttl time.Duration) error
}

// Refresher is the batch job executed by a run.
type Refresher interface {
	RefreshAll(ctx context.Context, store domain.StoreType) (RefreshReport, error)
}

// RefreshRunner schedules and records refresh runs.
type RefreshRunner struct {
	Runs           RunStore
	Refresher      Refresher
	Stores         StoreRegistry
	IdempotencyTTL time.Duration

	mu     sync.Mutex
	active map[domain.StoreType]context.CancelFunc
	wg     sync.WaitGroup
}

// NewRefreshRunner wires a runner.
func NewRefreshRunner(runs RunStore, refresher Refresher, stores StoreRegistry, idemTTL time.Duration) *RefreshRunner {
	if idemTTL <= 0 {
		idemTTL = 24 * time.Hour
	}
	return &RefreshRunner{
		Runs:           runs,
		Refresher:      refresher,
		Stores:         stores,
		IdempotencyTTL: idemTTL,
		active:         make(map[domain.StoreType]context.CancelFunc),
	}
}

// Start launches a background refresh for store and returns its run record
// in the running state. With a non-empty key, a run already started under
// (userID, store, key) inside the TTL is returned instead with replay set.
func (r *RefreshRunner) Start(ctx context.Context, store domain.StoreType, userID, key string) (run *domain.RefreshRun, replay bool, err error) {
	if _, err := r.Stores.Get(store); err != nil {
		return nil, false, err
	}

	if key != "" {
		if prior, err := r.findReplay(ctx, store, userID, key); err != nil || prior != nil {
			return prior, prior != nil, err
		}
	}

	// The run outlives the request but keeps its values (trace, logger).
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	if !r.acquire(store, cancel) {
		cancel()
		return nil, false, ErrRefreshInProgress
	}

	run, err = r.Runs.CreateRefreshRun(ctx, store)
	if err != nil {
		r.release(store)
		cancel()
		return nil, false, err
	}

	if key != "" {
		if err := r.Runs.RememberIdempotentRun(ctx, userID, string(store), key, run.ID, r.IdempotencyTTL); err != nil {
			r.release(store)
			cancel()
			r.abandon(run, err)
			if errors.Is(err, repo.ErrDuplicate) {
				prior, ferr := r.findReplay(ctx, store, userID, key)
				if ferr == nil && prior != nil {
					return prior, true, nil
				}
			}
			return nil, false, err
		}
	}

	// The caller gets a copy; the job alone mutates bg.
	snapshot := *run
	bg := run
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer cancel()
		_ = r.execute(runCtx, bg)
	}()
	return &snapshot, false, nil
}

// Run executes a refresh for store in the caller's goroutine and returns the
// finished run together with the refresh error, if any.
func (r *RefreshRunner) Run(ctx context.Context, store domain.StoreType) (*domain.RefreshRun, error) {
	if _, err := r.Stores.Get(store); err != nil {
		return nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !r.acquire(store, cancel) {
		return nil, ErrRefreshInProgress
	}
	run, err := r.Runs.CreateRefreshRun(ctx, store)
	if err != nil {
		r.release(store)
		return nil, err
	}
	err = r.execute(runCtx, run)
	return run, err
}

// Get returns a run by id or ErrRunNotFound.
func (r *RefreshRunner) Get(ctx context.Context, id string) (*domain.RefreshRun, error) {
	run, err := r.Runs.GetRefreshRun(ctx, id)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, ErrRunNotFound
	}
	return run, nil
}

// List returns the latest runs of store, newest first.
func (r *RefreshRunner) List(ctx context.Context, store domain.StoreType, limit int) ([]domain.RefreshRun, error) {
	return r.Runs.ListRefreshRuns(ctx, store, limit)
}

// Every runs a foreground refresh of each store once per interval until ctx
// is done. A store still busy from an earlier run is skipped for that tick.
func (r *RefreshRunner) Every(ctx context.Context, interval time.Duration, stores []domain.StoreType) {
	if interval <= 0 || len(stores) == 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			for _, s := range stores {
				if ctx.Err() != nil {
					return
				}
				if _, err := r.Run(ctx, s); err != nil {
					log.Warn().Err(err).Str("store", string(s)).Msg("scheduled refresh did not complete")
				}
			}
		}
	}
}

// Shutdown cancels background runs and waits for them to record their final
// state, or for ctx to expire.
func (r *RefreshRunner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	for _, cancel := range r.active {
		cancel()
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run for store is in progress.
func (r *RefreshRunner) Running(store domain.StoreType) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[store]
	return ok
}

// ---- internals ----

func (r *RefreshRunner) findReplay(ctx context.Context, store domain.StoreType, userID, key string) (*domain.RefreshRun, error) {
	id, err := r.Runs.FindIdempotentRun(ctx, userID, string(store), key, time.Now().UTC())
	if err != nil || id == "" {
		return nil, err
	}
	return r.Runs.GetRefreshRun(ctx, id)
}

func (r *RefreshRunner) acquire(store domain.StoreType, cancel context.CancelFunc) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.active == nil {
		r.active = make(map[domain.StoreType]context.CancelFunc)
	}
	if _, busy := r.active[store]; busy {
		return false
	}
	r.active[store] = cancel
	return true
}

func (r *RefreshRunner) release(store domain.StoreType) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.active, store)
}

// execute runs the refresh, records the outcome and frees the store slot.
func (r *RefreshRunner) execute(ctx context.Context, run *domain.RefreshRun) error {
	defer r.release(run.Store)

	rep, err := r.Refresher.RefreshAll(ctx, run.Store)
	run.Games, run.Pairs, run.Priced, run.Unavailable = rep.Games, rep.Pairs, rep.Priced, rep.Unavailable
	switch {
	case err == nil:
		run.Status = domain.RunSucceeded
	case errors.Is(err, context.Canceled):
		run.Status = domain.RunCanceled
		run.Error = err.Error()
	default:
		run.Status = domain.RunFailed
		run.Error = err.Error()
	}
	refreshRuns.WithLabelValues(string(run.Store), run.Status).Inc()

	// Record even when ctx was canceled.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if ferr := r.Runs.FinishRefreshRun(fctx, run); ferr != nil {
		log.Error().Err(ferr).Str("run_id", run.ID).Msg("could not record refresh run")
	}
	return err
}

// abandon marks a run that never started as canceled.
func (r *RefreshRunner) abandon(run *domain.RefreshRun, cause error) {
	run.Status = domain.RunCanceled
	run.Error = cause.Error()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.Runs.FinishRefreshRun(ctx, run); err != nil {
		log.Error().Err(err).Str("run_id", run.ID).Msg("could not record abandoned run")
	}
}
