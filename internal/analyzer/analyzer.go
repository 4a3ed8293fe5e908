// Package analyzer runs graph algorithms against a dependency graph
// snapshot: bounded-depth reachability, centrality, and weighted
// failure-propagation scoring.
package analyzer

import (
	"log/slog"

	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/models"
)

// Analyzer is stateless over a given snapshot and safe for concurrent use.
type Analyzer struct {
	logger *slog.Logger
}

// New constructs an Analyzer.
func New(logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{logger: logger}
}

// Dependencies lists the nodes reachable from nodeID within maxDepth hops,
// following edges downstream (dependencies of the node) or upstream
// (dependents of the node). Results are ordered by ascending hop distance,
// ties broken by breadth-first discovery order.
func (a *Analyzer) Dependencies(snap *graph.Snapshot, nodeID string, direction models.Direction, maxDepth int) []models.Dependency {
	if snap == nil || maxDepth <= 0 {
		return nil
	}
	if !snap.HasNode(nodeID) {
		a.logger.Debug("dependency query for unknown node", slog.String("node", nodeID))
		return nil
	}

	neighbors := func(id string) []string {
		var out []string
		if direction == models.DirectionUpstream {
			for _, edge := range snap.Incoming(id) {
				out = append(out, edge.SourceID)
			}
		} else {
			for _, edge := range snap.Outgoing(id) {
				out = append(out, edge.TargetID)
			}
		}
		return out
	}

	type frontier struct {
		id  string
		hop int
	}
	visited := map[string]bool{nodeID: true}
	queue := []frontier{{id: nodeID, hop: 0}}
	var deps []models.Dependency

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current.hop == maxDepth {
			continue
		}
		for _, next := range neighbors(current.id) {
			if visited[next] {
				continue
			}
			visited[next] = true
			node, _ := snap.Node(next)
			deps = append(deps, models.Dependency{
				NodeID:      next,
				Category:    node.Category,
				HopDistance: current.hop + 1,
			})
			queue = append(queue, frontier{id: next, hop: current.hop + 1})
		}
	}
	return deps
}
