// Package store defines the graph store contract and its Neo4j-backed
// implementation. The store is the system of record for topology; this
// service only reads it, except for TTL-based garbage collection.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/aiopstack/graph-rca/internal/models"
)

// ErrStoreUnavailable signals a connection or query failure against the
// graph store. Callers retain last-known-good state and retry on the next
// scheduled attempt.
var ErrStoreUnavailable = errors.New("graph store unavailable")

// ErrQueryTimeout signals that a store operation exceeded its deadline.
var ErrQueryTimeout = errors.New("graph store query timed out")

// GraphReader provides the read operations consumed by the cache provider.
type GraphReader interface {
	// ListNodes returns every node with identity, category, attributes,
	// and last-seen timestamp.
	ListNodes(ctx context.Context) ([]models.Node, error)
	// ListEdges returns every directed dependency edge with its
	// criticality weight and optional port pair.
	ListEdges(ctx context.Context) ([]models.Edge, error)
}

// GraphJanitor provides the expiry operations consumed by the garbage
// collector.
type GraphJanitor interface {
	// ListCategories enumerates the node categories actually present in
	// the store.
	ListCategories(ctx context.Context) ([]models.NodeCategory, error)
	// CountExpired counts nodes of the category whose last_seen predates
	// the cutoff, without deleting anything.
	CountExpired(ctx context.Context, category models.NodeCategory, cutoff time.Time) (int, error)
	// DeleteExpiredBatch deletes up to limit expired nodes of the category
	// and returns the count actually removed.
	DeleteExpiredBatch(ctx context.Context, category models.NodeCategory, cutoff time.Time, limit int) (int, error)
}

// Store is the full graph store contract.
type Store interface {
	GraphReader
	GraphJanitor
}
