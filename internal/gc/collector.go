// Package gc implements TTL-based garbage collection of expired topology
// nodes. It runs on its own schedule against the graph store, decoupled from
// the graph cache: deletions become visible to analysis only after the
// cache's next refresh, an accepted consistency window.
package gc

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/aiopstack/graph-rca/internal/metrics"
	"github.com/aiopstack/graph-rca/internal/models"
	"github.com/aiopstack/graph-rca/internal/store"
)

// DefaultBatchSize caps deletions per store round-trip to bound transaction
// cost and latency.
const DefaultBatchSize = 1000

// estimatedNodeMB is the rough per-node storage estimate used by Preview.
const estimatedNodeMB = 0.001

// Collector scans the graph store by node category and deletes expired
// nodes in bounded batches per the TTL policy.
type Collector struct {
	store     store.GraphJanitor
	policy    models.TTLPolicy
	batchSize int
	logger    *slog.Logger
	clock     clockwork.Clock
}

// NewCollector constructs a Collector. A nil policy selects the default TTL
// policy; batchSize <= 0 selects DefaultBatchSize; a nil clock selects the
// real clock.
func NewCollector(janitor store.GraphJanitor, policy models.TTLPolicy, batchSize int, logger *slog.Logger, clock clockwork.Clock) *Collector {
	if policy == nil {
		policy = models.DefaultTTLPolicy()
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Collector{store: janitor, policy: policy, batchSize: batchSize, logger: logger, clock: clock}
}

// RunCleanup removes expired nodes for every category present in the store.
// A failure cleaning one category is logged, marked in the returned stats,
// and does not abort the remaining categories. The operation is idempotent:
// a second run with no newly-expired nodes deletes nothing.
func (c *Collector) RunCleanup(ctx context.Context, dryRun bool) (models.CleanupStats, error) {
	start := c.clock.Now()
	stats := models.CleanupStats{
		NodesByCategory: make(map[models.NodeCategory]int),
		DryRun:          dryRun,
	}

	categories, err := c.store.ListCategories(ctx)
	if err != nil {
		c.logger.Error("failed to enumerate node categories", slog.Any("error", err))
		stats.Duration = c.clock.Since(start)
		return stats, err
	}
	c.logger.Info("starting topology garbage collection",
		slog.Int("categories", len(categories)), slog.Bool("dry_run", dryRun))

	deletedByCategory := make(map[string]int)
	for _, category := range categories {
		ttlHours := c.policy.TTLHours(category)
		deleted, err := c.cleanupCategory(ctx, category, ttlHours, dryRun)
		if err != nil {
			c.logger.Error("category cleanup failed, continuing",
				slog.String("category", string(category)), slog.Any("error", err))
			if stats.Errors == nil {
				stats.Errors = make(map[models.NodeCategory]string)
			}
			stats.Errors[category] = err.Error()
			continue
		}
		if deleted > 0 {
			stats.NodesByCategory[category] = deleted
			stats.TotalDeleted += deleted
			if !dryRun {
				deletedByCategory[string(category)] = deleted
			}
			c.logger.Info("cleaned expired nodes",
				slog.String("category", string(category)),
				slog.Int("ttl_hours", ttlHours),
				slog.Int("deleted", deleted),
				slog.Bool("dry_run", dryRun))
		}
	}

	stats.Duration = c.clock.Since(start)
	if !dryRun {
		metrics.ObserveGCRun(stats.Duration, deletedByCategory)
	}
	c.logger.Info("garbage collection completed",
		slog.Int("total_deleted", stats.TotalDeleted),
		slog.Duration("duration", stats.Duration),
		slog.Bool("dry_run", dryRun))
	return stats, nil
}

// RunCleanupForCategory cleans a single category. ttlOverride <= 0 uses the
// configured policy for that category.
func (c *Collector) RunCleanupForCategory(ctx context.Context, category models.NodeCategory, ttlOverride int, dryRun bool) (models.CategoryCleanupStats, error) {
	start := c.clock.Now()
	ttlHours := ttlOverride
	if ttlHours <= 0 {
		ttlHours = c.policy.TTLHours(category)
	}
	deleted, err := c.cleanupCategory(ctx, category, ttlHours, dryRun)
	stats := models.CategoryCleanupStats{
		Category:     category,
		TTLHours:     ttlHours,
		DeletedCount: deleted,
		Duration:     c.clock.Since(start),
		DryRun:       dryRun,
	}
	if err != nil {
		return stats, err
	}
	if !dryRun && deleted > 0 {
		metrics.ObserveGCRun(stats.Duration, map[string]int{string(category): deleted})
	}
	return stats, nil
}

// Preview reports, per category, the TTL, the expired node count, and the
// estimated reclaimable size, without deleting anything.
func (c *Collector) Preview(ctx context.Context) ([]models.CategoryPreview, error) {
	categories, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}

	previews := make([]models.CategoryPreview, 0, len(categories))
	for _, category := range categories {
		ttlHours := c.policy.TTLHours(category)
		cutoff := c.cutoff(ttlHours)
		count, err := c.store.CountExpired(ctx, category, cutoff)
		if err != nil {
			c.logger.Warn("expired count failed",
				slog.String("category", string(category)), slog.Any("error", err))
			continue
		}
		previews = append(previews, models.CategoryPreview{
			Category:     category,
			TTLHours:     ttlHours,
			ExpiredCount: count,
			EstimatedMB:  float64(count) * estimatedNodeMB,
		})
	}
	sort.Slice(previews, func(i, j int) bool {
		return previews[i].ExpiredCount > previews[j].ExpiredCount
	})
	return previews, nil
}

// cleanupCategory deletes (or counts, in dry-run) the expired nodes of one
// category, looping in batches until a round removes nothing.
func (c *Collector) cleanupCategory(ctx context.Context, category models.NodeCategory, ttlHours int, dryRun bool) (int, error) {
	cutoff := c.cutoff(ttlHours)

	if dryRun {
		return c.store.CountExpired(ctx, category, cutoff)
	}

	total := 0
	for {
		deleted, err := c.store.DeleteExpiredBatch(ctx, category, cutoff, c.batchSize)
		if err != nil {
			return total, err
		}
		if deleted == 0 {
			return total, nil
		}
		total += deleted
		c.logger.Debug("deleted expired batch",
			slog.String("category", string(category)), slog.Int("count", deleted))
	}
}

func (c *Collector) cutoff(ttlHours int) time.Time {
	return c.clock.Now().Add(-time.Duration(ttlHours) * time.Hour)
}

// Scheduler runs cleanup on a fixed interval until the context is cancelled.
type Scheduler struct {
	collector *Collector
	interval  time.Duration
	dryRun    bool
	logger    *slog.Logger
	clock     clockwork.Clock
}

// NewScheduler wraps a Collector in a periodic runner.
func NewScheduler(collector *Collector, interval time.Duration, dryRun bool, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		collector: collector,
		interval:  interval,
		dryRun:    dryRun,
		logger:    logger,
		clock:     collector.clock,
	}
}

// Run blocks until ctx is done, triggering a cleanup every interval. A
// failed run retains store state and retries on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("garbage collector scheduled",
		slog.Duration("interval", s.interval), slog.Bool("dry_run", s.dryRun))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("garbage collector stopped")
			return
		case <-ticker.Chan():
			if _, err := s.collector.RunCleanup(ctx, s.dryRun); err != nil {
				s.logger.Warn("scheduled cleanup failed, will retry next interval", slog.Any("error", err))
			}
		}
	}
}
