package models

import "time"

// TTLPolicy maps node categories to their maximum age in hours before a node
// becomes eligible for deletion.
type TTLPolicy map[NodeCategory]int

// DefaultTTLPolicy returns the stock retention policy. Ephemeral workload
// nodes age out quickly; stable infrastructure is kept for 30 days.
func DefaultTTLPolicy() TTLPolicy {
	return TTLPolicy{
		"Pod":       24,
		"Container": 24,
		"Service":   720,
		"Node":      720,
		"Device":    720,
		"Server":    720,
		"Alert":     168,
		"Anomaly":   168,
		"LogEntry":  48,
		"Trace":     24,
		"Unknown":   48,
	}
}

// TTLHours returns the retention for a category, falling back to the
// Unknown policy when the category has no explicit entry.
func (p TTLPolicy) TTLHours(category NodeCategory) int {
	if hours, ok := p[category]; ok {
		return hours
	}
	if hours, ok := p["Unknown"]; ok {
		return hours
	}
	return 48
}

// CleanupStats reports the outcome of one garbage-collection run. Categories
// that failed carry an entry in Errors and are excluded from the counts.
type CleanupStats struct {
	TotalDeleted    int                     `json:"total_deleted"`
	NodesByCategory map[NodeCategory]int    `json:"nodes_by_category"`
	Errors          map[NodeCategory]string `json:"errors,omitempty"`
	Duration        time.Duration           `json:"duration"`
	DryRun          bool                    `json:"dry_run"`
}

// CategoryCleanupStats reports a single-category cleanup.
type CategoryCleanupStats struct {
	Category     NodeCategory  `json:"category"`
	TTLHours     int           `json:"ttl_hours"`
	DeletedCount int           `json:"deleted_count"`
	Duration     time.Duration `json:"duration"`
	DryRun       bool          `json:"dry_run"`
}

// CategoryPreview describes what a cleanup would remove for one category.
type CategoryPreview struct {
	Category     NodeCategory `json:"category"`
	TTLHours     int          `json:"ttl_hours"`
	ExpiredCount int          `json:"expired_count"`
	EstimatedMB  float64      `json:"estimated_mb"`
}

// CacheStats is the operational view of the graph cache.
type CacheStats struct {
	NodeCount   int           `json:"node_count"`
	EdgeCount   int           `json:"edge_count"`
	TTL         time.Duration `json:"ttl"`
	Age         time.Duration `json:"age"`
	IsExpired   bool          `json:"is_expired"`
	IsLoaded    bool          `json:"is_loaded"`
	IsUpdating  bool          `json:"is_updating"`
	LastRefresh time.Time     `json:"last_refresh,omitempty"`
}
