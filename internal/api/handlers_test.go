package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aiopstack/graph-rca/internal/analyzer"
	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/models"
)

type fakeProvider struct {
	snap        *graph.Snapshot
	snapErr     error
	stats       models.CacheStats
	invalidated bool
}

func (f *fakeProvider) Snapshot(ctx context.Context, forceRefresh bool) (*graph.Snapshot, error) {
	return f.snap, f.snapErr
}

func (f *fakeProvider) Invalidate() { f.invalidated = true }

func (f *fakeProvider) Stats() models.CacheStats { return f.stats }

type fakeCleaner struct {
	previews []models.CategoryPreview
	stats    models.CleanupStats
	err      error
	lastDry  bool
}

func (f *fakeCleaner) Preview(ctx context.Context) ([]models.CategoryPreview, error) {
	return f.previews, f.err
}

func (f *fakeCleaner) RunCleanup(ctx context.Context, dryRun bool) (models.CleanupStats, error) {
	f.lastDry = dryRun
	return f.stats, f.err
}

func testSnapshot() *graph.Snapshot {
	nodes := []models.Node{
		{ID: "checkout", Category: models.CategoryService},
		{ID: "postgres", Category: models.CategoryDatabase},
	}
	edges := []models.Edge{{SourceID: "checkout", TargetID: "postgres", Criticality: 0.9}}
	return graph.NewSnapshot(time.Now(), nodes, edges)
}

func newTestRouter(provider *fakeProvider, cleaner *fakeCleaner) http.Handler {
	handlers := NewHandlers(provider, cleaner, analyzer.New(nil), 3, nil)
	router := chi.NewRouter()
	router.Get("/healthz", handlers.Health)
	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/cache/stats", handlers.CacheStats)
		r.Post("/cache/invalidate", handlers.InvalidateCache)
		r.Get("/gc/preview", handlers.GCPreview)
		r.Post("/gc/run", handlers.GCRun)
		r.Get("/dependencies/{nodeID}", handlers.Dependencies)
	})
	return router
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(&fakeProvider{}, &fakeCleaner{})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestCacheStatsEndpoint(t *testing.T) {
	provider := &fakeProvider{stats: models.CacheStats{NodeCount: 7, IsLoaded: true}}
	router := newTestRouter(provider, &fakeCleaner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/cache/stats", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var stats models.CacheStats
	if err := json.NewDecoder(rec.Body).Decode(&stats); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.NodeCount != 7 || !stats.IsLoaded {
		t.Fatalf("unexpected stats %+v", stats)
	}
}

func TestInvalidateEndpoint(t *testing.T) {
	provider := &fakeProvider{}
	router := newTestRouter(provider, &fakeCleaner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/cache/invalidate", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !provider.invalidated {
		t.Fatal("expected provider invalidated")
	}
}

func TestGCPreviewEndpoint(t *testing.T) {
	cleaner := &fakeCleaner{previews: []models.CategoryPreview{
		{Category: "Pod", TTLHours: 24, ExpiredCount: 9, EstimatedMB: 0.009},
	}}
	router := newTestRouter(&fakeProvider{}, cleaner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/gc/preview", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var previews []models.CategoryPreview
	if err := json.NewDecoder(rec.Body).Decode(&previews); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(previews) != 1 || previews[0].ExpiredCount != 9 {
		t.Fatalf("unexpected previews %+v", previews)
	}
}

func TestGCRunEndpointDryRun(t *testing.T) {
	cleaner := &fakeCleaner{stats: models.CleanupStats{TotalDeleted: 5, DryRun: true}}
	router := newTestRouter(&fakeProvider{}, cleaner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/gc/run?dry_run=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !cleaner.lastDry {
		t.Fatal("expected dry_run forwarded to the cleaner")
	}
}

func TestGCRunEndpointFailure(t *testing.T) {
	cleaner := &fakeCleaner{err: errors.New("store down")}
	router := newTestRouter(&fakeProvider{}, cleaner)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/gc/run", nil))
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
}

func TestDependenciesEndpoint(t *testing.T) {
	router := newTestRouter(&fakeProvider{snap: testSnapshot()}, &fakeCleaner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dependencies/checkout", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp dependenciesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Direction != models.DirectionDownstream {
		t.Fatalf("expected downstream default, got %s", resp.Direction)
	}
	if len(resp.Dependencies) != 1 || resp.Dependencies[0].NodeID != "postgres" {
		t.Fatalf("unexpected dependencies %+v", resp.Dependencies)
	}
}

func TestDependenciesEndpointUpstream(t *testing.T) {
	router := newTestRouter(&fakeProvider{snap: testSnapshot()}, &fakeCleaner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dependencies/postgres?direction=upstream", nil))
	var resp dependenciesResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Dependencies) != 1 || resp.Dependencies[0].NodeID != "checkout" {
		t.Fatalf("unexpected upstream dependencies %+v", resp.Dependencies)
	}
}

func TestDependenciesEndpointValidation(t *testing.T) {
	router := newTestRouter(&fakeProvider{snap: testSnapshot()}, &fakeCleaner{})

	cases := []struct {
		url  string
		code int
	}{
		{"/api/v1/dependencies/checkout?direction=sideways", http.StatusBadRequest},
		{"/api/v1/dependencies/checkout?depth=-1", http.StatusBadRequest},
		{"/api/v1/dependencies/ghost", http.StatusNotFound},
	}
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.url, nil))
		if rec.Code != tc.code {
			t.Fatalf("%s: expected %d, got %d", tc.url, tc.code, rec.Code)
		}
	}
}

func TestDependenciesEndpointSnapshotUnavailable(t *testing.T) {
	router := newTestRouter(&fakeProvider{snapErr: errors.New("cold start failed")}, &fakeCleaner{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/dependencies/checkout", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
