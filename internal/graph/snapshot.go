// Package graph holds the immutable in-memory dependency graph snapshot
// shared by the cache provider and the analysis engines.
package graph

import (
	"time"

	"github.com/aiopstack/graph-rca/internal/models"
)

// Snapshot is a point-in-time copy of the dependency graph. It is never
// mutated after construction; concurrent readers share one instance without
// locking. A cache refresh builds a brand-new Snapshot and atomically swaps
// the published reference.
type Snapshot struct {
	capturedAt time.Time
	nodes      map[string]models.Node
	outgoing   map[string][]models.Edge
	incoming   map[string][]models.Edge
	edgeCount  int
}

// NewSnapshot builds a snapshot from node and edge listings. Edges whose
// endpoints are absent from the node set are dropped; adjacency indexes are
// computed once here so traversals never scan the full edge list.
func NewSnapshot(capturedAt time.Time, nodes []models.Node, edges []models.Edge) *Snapshot {
	s := &Snapshot{
		capturedAt: capturedAt,
		nodes:      make(map[string]models.Node, len(nodes)),
		outgoing:   make(map[string][]models.Edge),
		incoming:   make(map[string][]models.Edge),
	}
	for _, node := range nodes {
		if node.ID == "" {
			continue
		}
		s.nodes[node.ID] = node
	}
	for _, edge := range edges {
		if _, ok := s.nodes[edge.SourceID]; !ok {
			continue
		}
		if _, ok := s.nodes[edge.TargetID]; !ok {
			continue
		}
		s.outgoing[edge.SourceID] = append(s.outgoing[edge.SourceID], edge)
		s.incoming[edge.TargetID] = append(s.incoming[edge.TargetID], edge)
		s.edgeCount++
	}
	return s
}

// CapturedAt reports when the snapshot was loaded from the store.
func (s *Snapshot) CapturedAt() time.Time { return s.capturedAt }

// NodeCount returns the number of nodes.
func (s *Snapshot) NodeCount() int { return len(s.nodes) }

// EdgeCount returns the number of retained edges.
func (s *Snapshot) EdgeCount() int { return s.edgeCount }

// Node looks up a node by ID.
func (s *Snapshot) Node(id string) (models.Node, bool) {
	node, ok := s.nodes[id]
	return node, ok
}

// HasNode reports whether the node exists in the snapshot.
func (s *Snapshot) HasNode(id string) bool {
	_, ok := s.nodes[id]
	return ok
}

// Outgoing returns the edges leaving the node. The returned slice is shared;
// callers must not modify it.
func (s *Snapshot) Outgoing(id string) []models.Edge { return s.outgoing[id] }

// Incoming returns the edges arriving at the node. The returned slice is
// shared; callers must not modify it.
func (s *Snapshot) Incoming(id string) []models.Edge { return s.incoming[id] }

// NodeIDs returns all node identifiers. Order is unspecified.
func (s *Snapshot) NodeIDs() []string {
	ids := make([]string, 0, len(s.nodes))
	for id := range s.nodes {
		ids = append(ids, id)
	}
	return ids
}
