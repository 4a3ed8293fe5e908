package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/aiopstack/graph-rca/internal/analyzer"
	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/models"
)

// SnapshotProvider serves cached graph snapshots.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, forceRefresh bool) (*graph.Snapshot, error)
	Invalidate()
	Stats() models.CacheStats
}

// Cleaner previews and executes TTL garbage collection.
type Cleaner interface {
	Preview(ctx context.Context) ([]models.CategoryPreview, error)
	RunCleanup(ctx context.Context, dryRun bool) (models.CleanupStats, error)
}

// Handlers implements the operational endpoints.
type Handlers struct {
	provider SnapshotProvider
	cleaner  Cleaner
	analyzer *analyzer.Analyzer
	maxDepth int
	logger   *slog.Logger
}

// NewHandlers wires the endpoint dependencies together. maxDepth bounds
// dependency queries that do not specify their own depth.
func NewHandlers(provider SnapshotProvider, cleaner Cleaner, analyzer *analyzer.Analyzer, maxDepth int, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Handlers{
		provider: provider,
		cleaner:  cleaner,
		analyzer: analyzer,
		maxDepth: maxDepth,
		logger:   logger,
	}
}

// Health reports liveness.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CacheStats reports the snapshot cache state.
func (h *Handlers) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.provider.Stats())
}

// InvalidateCache forces the next snapshot request to reload from the store.
func (h *Handlers) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.provider.Invalidate()
	h.logger.Info("graph cache invalidated via api")
	writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

// GCPreview reports what a cleanup run would delete, without deleting.
func (h *Handlers) GCPreview(w http.ResponseWriter, r *http.Request) {
	previews, err := h.cleaner.Preview(r.Context())
	if err != nil {
		h.logger.Error("gc preview failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "gc preview failed")
		return
	}
	writeJSON(w, http.StatusOK, previews)
}

// GCRun triggers a cleanup pass. ?dry_run=true counts instead of deleting.
func (h *Handlers) GCRun(w http.ResponseWriter, r *http.Request) {
	dryRun, _ := strconv.ParseBool(r.URL.Query().Get("dry_run"))
	stats, err := h.cleaner.RunCleanup(r.Context(), dryRun)
	if err != nil {
		h.logger.Error("gc run failed", slog.Any("error", err))
		writeError(w, http.StatusBadGateway, "gc run failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

type dependenciesResponse struct {
	NodeID       string              `json:"node_id"`
	Direction    models.Direction    `json:"direction"`
	Depth        int                 `json:"depth"`
	Dependencies []models.Dependency `json:"dependencies"`
}

// Dependencies lists transitive dependencies of a node.
// Query parameters: direction (upstream|downstream, default downstream) and
// depth (default and cap: the configured analysis depth).
func (h *Handlers) Dependencies(w http.ResponseWriter, r *http.Request) {
	nodeID := chi.URLParam(r, "nodeID")
	if nodeID == "" {
		writeError(w, http.StatusBadRequest, "node id is required")
		return
	}

	direction := models.DirectionDownstream
	switch r.URL.Query().Get("direction") {
	case "", string(models.DirectionDownstream):
	case string(models.DirectionUpstream):
		direction = models.DirectionUpstream
	default:
		writeError(w, http.StatusBadRequest, "direction must be upstream or downstream")
		return
	}

	depth := h.maxDepth
	if raw := r.URL.Query().Get("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "depth must be a positive integer")
			return
		}
		if parsed < depth {
			depth = parsed
		}
	}

	snap, err := h.provider.Snapshot(r.Context(), false)
	if err != nil {
		h.logger.Error("snapshot unavailable", slog.Any("error", err))
		writeError(w, http.StatusServiceUnavailable, "dependency graph unavailable")
		return
	}
	if !snap.HasNode(nodeID) {
		writeError(w, http.StatusNotFound, "node not found")
		return
	}

	deps := h.analyzer.Dependencies(snap, nodeID, direction, depth)
	writeJSON(w, http.StatusOK, dependenciesResponse{
		NodeID:       nodeID,
		Direction:    direction,
		Depth:        depth,
		Dependencies: deps,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
