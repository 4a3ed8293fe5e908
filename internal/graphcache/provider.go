// Package graphcache keeps one in-memory snapshot of the dependency graph
// per process and refreshes it from the graph store on TTL expiry without
// blocking readers.
package graphcache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/metrics"
	"github.com/aiopstack/graph-rca/internal/models"
	"github.com/aiopstack/graph-rca/internal/store"
)

// ErrEmptyLoad signals that a refresh returned zero nodes. An empty topology
// is treated as a transient store issue, not an authoritative state; the
// previous snapshot is retained.
var ErrEmptyLoad = errors.New("graph load returned zero nodes")

// DefaultTTL is the snapshot lifetime used when none is configured.
const DefaultTTL = 5 * time.Minute

// Provider serves the cached graph snapshot. One Provider is constructed at
// startup and shared by reference among all consumers needing graph context.
//
// Readers dereference the published snapshot pointer and never take the
// refresh lock; at most one refresh is in flight at a time. The only blocking
// path is cold start, where a caller waits for the first successful load
// because there is nothing to serve yet.
type Provider struct {
	store  store.GraphReader
	logger *slog.Logger
	clock  clockwork.Clock

	snapshot atomic.Pointer[graph.Snapshot]
	// refreshMu is try-acquired on the hot path and held for the duration
	// of a refresh. lastRefresh is the age clock; zero forces a refresh
	// attempt on the next access.
	refreshMu   sync.Mutex
	updating    atomic.Bool
	ttl         atomic.Int64
	lastRefresh atomic.Int64
}

// NewProvider creates a Provider over the given store. A nil clock selects
// the real clock; ttl <= 0 selects DefaultTTL.
func NewProvider(reader store.GraphReader, ttl time.Duration, logger *slog.Logger, clock clockwork.Clock) *Provider {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	p := &Provider{store: reader, logger: logger, clock: clock}
	p.ttl.Store(int64(ttl))
	return p
}

// Snapshot returns the current graph snapshot, refreshing it first when the
// cache is missing, force-requested, or older than the TTL. When another
// caller is already refreshing, the existing snapshot is returned
// immediately, stale or not.
func (p *Provider) Snapshot(ctx context.Context, forceRefresh bool) (*graph.Snapshot, error) {
	if p.needsRefresh(forceRefresh) {
		if p.refreshMu.TryLock() {
			if err := p.refresh(ctx); err != nil {
				p.logger.Warn("graph refresh failed, serving previous snapshot", slog.Any("error", err))
			}
			p.refreshMu.Unlock()
		} else {
			p.logger.Debug("graph refresh already in flight, serving stale snapshot")
		}
	}

	if snap := p.snapshot.Load(); snap != nil {
		return snap, nil
	}

	// Cold start: no snapshot has ever been published, so wait for the
	// in-flight refresh (or run one) before returning.
	p.refreshMu.Lock()
	defer p.refreshMu.Unlock()
	if snap := p.snapshot.Load(); snap != nil {
		return snap, nil
	}
	if err := p.refresh(ctx); err != nil {
		return nil, fmt.Errorf("initial graph load: %w", err)
	}
	snap := p.snapshot.Load()
	if snap == nil {
		return nil, ErrEmptyLoad
	}
	return snap, nil
}

// Invalidate resets the age clock so the next access attempts a refresh.
// The existing snapshot keeps being served until the refresh succeeds.
func (p *Provider) Invalidate() {
	p.lastRefresh.Store(0)
	p.logger.Info("graph cache invalidated, will refresh on next access")
}

// SetTTL updates the snapshot lifetime.
func (p *Provider) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	p.ttl.Store(int64(ttl))
	p.logger.Info("graph cache ttl updated", slog.Duration("ttl", ttl))
}

// Stats reports the operational state of the cache.
func (p *Provider) Stats() models.CacheStats {
	ttl := time.Duration(p.ttl.Load())
	stats := models.CacheStats{
		TTL:        ttl,
		IsUpdating: p.updating.Load(),
	}
	if last := p.lastRefresh.Load(); last > 0 {
		stats.LastRefresh = time.Unix(0, last)
		stats.Age = p.clock.Now().Sub(stats.LastRefresh)
	}
	stats.IsExpired = p.lastRefresh.Load() == 0 || stats.Age > ttl
	if snap := p.snapshot.Load(); snap != nil {
		stats.IsLoaded = true
		stats.NodeCount = snap.NodeCount()
		stats.EdgeCount = snap.EdgeCount()
	}
	return stats
}

func (p *Provider) needsRefresh(force bool) bool {
	if force || p.snapshot.Load() == nil {
		return true
	}
	last := p.lastRefresh.Load()
	if last == 0 {
		return true
	}
	age := p.clock.Now().Sub(time.Unix(0, last))
	return age > time.Duration(p.ttl.Load())
}

// refresh loads a new snapshot and atomically publishes it. Callers must
// hold refreshMu. On any failure the previous snapshot stays published.
func (p *Provider) refresh(ctx context.Context) error {
	p.updating.Store(true)
	defer p.updating.Store(false)

	start := p.clock.Now()
	nodes, err := p.store.ListNodes(ctx)
	if err != nil {
		metrics.ObserveCacheRefresh(p.clock.Since(start), metrics.OutcomeError)
		return fmt.Errorf("load nodes: %w", err)
	}
	edges, err := p.store.ListEdges(ctx)
	if err != nil {
		metrics.ObserveCacheRefresh(p.clock.Since(start), metrics.OutcomeError)
		return fmt.Errorf("load edges: %w", err)
	}
	if len(nodes) == 0 {
		metrics.ObserveCacheRefresh(p.clock.Since(start), metrics.OutcomeError)
		p.logger.Warn("empty graph loaded from store, keeping previous snapshot")
		return ErrEmptyLoad
	}

	snap := graph.NewSnapshot(p.clock.Now(), nodes, edges)
	old := p.snapshot.Swap(snap)
	p.lastRefresh.Store(p.clock.Now().UnixNano())

	oldNodes := 0
	if old != nil {
		oldNodes = old.NodeCount()
	}
	metrics.ObserveCacheRefresh(p.clock.Since(start), metrics.OutcomeSuccess)
	metrics.SetGraphSize(snap.NodeCount(), snap.EdgeCount())
	metrics.SetCacheLastRefresh(p.clock.Now())
	p.logger.Info("graph snapshot refreshed",
		slog.Duration("duration", p.clock.Since(start)),
		slog.Int("old_nodes", oldNodes),
		slog.Int("nodes", snap.NodeCount()),
		slog.Int("edges", snap.EdgeCount()),
	)
	return nil
}
