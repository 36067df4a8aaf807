package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/media-tracker/internal/domain"
	"github.com/tbourn/media-tracker/internal/http/middleware"
	"github.com/tbourn/media-tracker/internal/repo"
	"github.com/tbourn/media-tracker/internal/services"
	"github.com/tbourn/media-tracker/internal/storefront"
)

func refreshRouter(runs RefreshService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := New(stubPrices{}, runs, stubStores{})
	r := gin.New()
	r.POST("/stores/:store/refresh", h.StartRefresh)
	r.GET("/stores/:store/refresh-runs", h.ListRefreshRuns)
	r.GET("/refresh-runs/:id", h.GetRefreshRun)
	return r
}

func TestStartRefresh_AcceptedPassesUserAndKey(t *testing.T) {
	var gotUser, gotKey string
	r := refreshRouter(stubRuns{
		start: func(_ context.Context, s domain.StoreType, u, k string) (*domain.RefreshRun, bool, error) {
			gotUser, gotKey = u, k
			return &domain.RefreshRun{ID: "run-1", Store: s, Status: domain.RunRunning}, false, nil
		},
	})

	w := do(r, http.MethodPost, "/stores/SWITCH/refresh", map[string]string{
		"X-User-ID":                     "u1",
		middleware.HeaderIdempotencyKey: "k-1",
	})
	if w.Code != http.StatusAccepted {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	if gotUser != "u1" || gotKey != "k-1" {
		t.Fatalf("service got user=%q key=%q", gotUser, gotKey)
	}
	if w.Header().Get("Idempotency-Replayed") != "" {
		t.Fatalf("fresh run must not be flagged as replay")
	}
	var run domain.RefreshRun
	if err := json.Unmarshal(w.Body.Bytes(), &run); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if run.ID != "run-1" || run.Store != domain.StoreSwitch || run.Status != domain.RunRunning {
		t.Fatalf("unexpected run: %+v", run)
	}
}

func TestStartRefresh_ReplayHeader(t *testing.T) {
	r := refreshRouter(stubRuns{
		start: func(_ context.Context, s domain.StoreType, _, _ string) (*domain.RefreshRun, bool, error) {
			return &domain.RefreshRun{ID: "run-0", Store: s, Status: domain.RunSucceeded}, true, nil
		},
	})
	w := do(r, http.MethodPost, "/stores/switch/refresh", map[string]string{middleware.HeaderIdempotencyKey: "k"})
	if w.Code != http.StatusAccepted || w.Header().Get("Idempotency-Replayed") != "true" {
		t.Fatalf("status=%d replay=%q", w.Code, w.Header().Get("Idempotency-Replayed"))
	}
}

func TestStartRefresh_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		path   string
		err    error
		status int
		code   string
	}{
		{"unknown store path", "/stores/psn/refresh", nil, http.StatusBadRequest, ErrCodeUnknownStore},
		{"unregistered store", "/stores/switch/refresh", services.ErrUnknownStore, http.StatusBadRequest, ErrCodeUnknownStore},
		{"busy", "/stores/switch/refresh", services.ErrRefreshInProgress, http.StatusConflict, ErrCodeRefreshInProgress},
		{"fault", "/stores/switch/refresh", errors.New("db locked"), http.StatusInternalServerError, ErrCodeRefreshFailed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := refreshRouter(stubRuns{
				start: func(context.Context, domain.StoreType, string, string) (*domain.RefreshRun, bool, error) {
					return nil, false, tc.err
				},
			})
			w := do(r, http.MethodPost, tc.path, nil)
			if w.Code != tc.status {
				t.Fatalf("status=%d want %d", w.Code, tc.status)
			}
			if e := decodeError(t, w); e.Code != tc.code {
				t.Fatalf("code=%q want %q", e.Code, tc.code)
			}
		})
	}
}

func TestGetRefreshRun(t *testing.T) {
	known := uuid.NewString()
	r := refreshRouter(stubRuns{
		get: func(_ context.Context, id string) (*domain.RefreshRun, error) {
			switch id {
			case known:
				return &domain.RefreshRun{ID: id, Store: domain.StoreSwitch, Status: domain.RunSucceeded, Priced: 3}, nil
			default:
				return nil, services.ErrRunNotFound
			}
		},
	})

	w := do(r, http.MethodGet, "/refresh-runs/"+known, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	var run domain.RefreshRun
	_ = json.Unmarshal(w.Body.Bytes(), &run)
	if run.ID != known || run.Priced != 3 {
		t.Fatalf("unexpected run: %+v", run)
	}

	if w := do(r, http.MethodGet, "/refresh-runs/"+uuid.NewString(), nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing run: status=%d", w.Code)
	}
	if w := do(r, http.MethodGet, "/refresh-runs/not-a-uuid", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", w.Code)
	}

	r = refreshRouter(stubRuns{
		get: func(context.Context, string) (*domain.RefreshRun, error) { return nil, errors.New("boom") },
	})
	if w := do(r, http.MethodGet, "/refresh-runs/"+known, nil); w.Code != http.StatusInternalServerError {
		t.Fatalf("fault: status=%d", w.Code)
	}
}

func TestListRefreshRuns_LimitClamp(t *testing.T) {
	var gotLimit int
	r := refreshRouter(stubRuns{
		list: func(_ context.Context, _ domain.StoreType, limit int) ([]domain.RefreshRun, error) {
			gotLimit = limit
			return nil, nil
		},
	})

	for q, want := range map[string]int{"": 20, "?limit=5": 5, "?limit=0": 1, "?limit=1000": 100, "?limit=x": 20} {
		w := do(r, http.MethodGet, "/stores/switch/refresh-runs"+q, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%q: status=%d", q, w.Code)
		}
		if gotLimit != want {
			t.Fatalf("%q: limit=%d want %d", q, gotLimit, want)
		}
		if w.Body.String() != `{"runs":[]}` {
			t.Fatalf("%q: body=%s", q, w.Body.String())
		}
	}

	r = refreshRouter(stubRuns{
		list: func(context.Context, domain.StoreType, int) ([]domain.RefreshRun, error) {
			return nil, errors.New("boom")
		},
	})
	w := do(r, http.MethodGet, "/stores/switch/refresh-runs", nil)
	if e := decodeError(t, w); w.Code != http.StatusInternalServerError || e.Code != ErrCodeListFailed {
		t.Fatalf("status=%d code=%q", w.Code, e.Code)
	}
}

// ---------- end to end with the real runner and sqlite ----------

type oneRegionShop struct{}

func (oneRegionShop) SupportedRegions() []string { return []string{"SG"} }
func (oneRegionShop) SearchIdentifier(context.Context, string, string) (string, bool, error) {
	return "", false, nil
}
func (oneRegionShop) GetPrice(context.Context, string, string) (*storefront.Price, error) {
	return nil, nil
}

type reportRefresher struct{ rep services.RefreshReport }

func (f reportRefresher) RefreshAll(context.Context, domain.StoreType) (services.RefreshReport, error) {
	return f.rep, nil
}

func newRunnerDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:refresh_handlers_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	return db
}

func TestRefreshEndpoints_WithRunner(t *testing.T) {
	db := newRunnerDB(t)
	catalog := storefront.NewCatalog()
	catalog.Register(domain.StoreSwitch, oneRegionShop{})
	runner := services.NewRefreshRunner(repo.NewStore(db), reportRefresher{services.RefreshReport{Games: 2, Pairs: 2, Priced: 1, Unavailable: 1}}, catalog, time.Hour)
	t.Cleanup(func() { _ = runner.Shutdown(context.Background()) })

	r := refreshRouter(runner)
	hdr := map[string]string{"X-User-ID": "u1", middleware.HeaderIdempotencyKey: "nightly-1"}

	w := do(r, http.MethodPost, "/stores/switch/refresh", hdr)
	if w.Code != http.StatusAccepted {
		t.Fatalf("start: status=%d body=%s", w.Code, w.Body.String())
	}
	var first domain.RefreshRun
	if err := json.Unmarshal(w.Body.Bytes(), &first); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if first.Status != domain.RunRunning {
		t.Fatalf("fresh run status=%q", first.Status)
	}

	// Wait for the background run to be recorded.
	if err := runner.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}

	w = do(r, http.MethodGet, "/refresh-runs/"+first.ID, nil)
	var done domain.RefreshRun
	_ = json.Unmarshal(w.Body.Bytes(), &done)
	if w.Code != http.StatusOK || done.Status != domain.RunSucceeded || done.Priced != 1 || done.Unavailable != 1 {
		t.Fatalf("get: status=%d run=%+v", w.Code, done)
	}

	// Same key replays the first run.
	w = do(r, http.MethodPost, "/stores/switch/refresh", hdr)
	var replay domain.RefreshRun
	_ = json.Unmarshal(w.Body.Bytes(), &replay)
	if w.Code != http.StatusAccepted || w.Header().Get("Idempotency-Replayed") != "true" || replay.ID != first.ID {
		t.Fatalf("replay: status=%d header=%q id=%q", w.Code, w.Header().Get("Idempotency-Replayed"), replay.ID)
	}

	w = do(r, http.MethodGet, "/stores/switch/refresh-runs", nil)
	var list ListRefreshRunsResponse
	_ = json.Unmarshal(w.Body.Bytes(), &list)
	if len(list.Runs) != 1 || list.Runs[0].ID != first.ID {
		t.Fatalf("list: %+v", list.Runs)
	}
}
