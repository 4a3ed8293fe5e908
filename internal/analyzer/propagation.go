package analyzer

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/models"
)

// AnalyzeFailurePropagation scores each anomalous node by how strongly a
// failure there would propagate to the target, and returns ranked
// root-cause candidates.
//
// For every anomalous node the directed paths from targetID to the node
// within maxDepth hops are examined; the path score is the product of edge
// criticalities along the path, and when several paths exist the maximum
// product wins: one highly critical hop on an alternate route is a stronger
// signal than a longer chain of weak hops. The candidate score is
// pathScore × the anomaly's normalized score. Nodes unreachable within the
// depth bound are excluded rather than scored zero; anomalies naming nodes
// absent from the snapshot are skipped.
func (a *Analyzer) AnalyzeFailurePropagation(snap *graph.Snapshot, targetID string, anomalous []models.AnomalyEvent, maxDepth int) []models.RootCauseCandidate {
	if snap == nil || len(anomalous) == 0 {
		return nil
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	if !snap.HasNode(targetID) {
		a.logger.Debug("propagation target absent from snapshot", slog.String("target", targetID))
		return nil
	}

	var candidates []models.RootCauseCandidate
	for _, anomaly := range anomalous {
		device := anomaly.DeviceID()
		if device == "" {
			continue
		}
		if !snap.HasNode(device) {
			a.logger.Debug("anomalous node absent from snapshot", slog.String("node", device))
			continue
		}

		var pathScore float64
		var hops int
		if device == targetID {
			// The target reporting its own anomaly is trivially reachable.
			pathScore, hops = 1.0, 0
		} else {
			best := bestPath(snap, targetID, device, maxDepth)
			if !best.found {
				continue
			}
			pathScore, hops = best.product, best.hops
		}

		node, _ := snap.Node(device)
		score := pathScore * anomaly.Score
		candidates = append(candidates, models.RootCauseCandidate{
			NodeID:    device,
			Category:  node.Category,
			Score:     score,
			PathScore: pathScore,
			HopCount:  hops,
			Anomaly:   anomaly,
			Explanation: fmt.Sprintf(
				"%s: dependency path score %.2f over %d hop(s), anomaly score %.2f on %s -> composite %.2f",
				device, pathScore, hops, anomaly.Score, anomaly.MetricName, score,
			),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		if candidates[i].HopCount != candidates[j].HopCount {
			return candidates[i].HopCount < candidates[j].HopCount
		}
		return candidates[i].NodeID < candidates[j].NodeID
	})
	return candidates
}

type pathScore struct {
	product float64
	hops    int
	found   bool
}

// bestPath finds the maximum criticality product over all directed simple
// paths from source to destination within maxDepth hops.
func bestPath(snap *graph.Snapshot, source, destination string, maxDepth int) pathScore {
	var best pathScore
	onPath := map[string]bool{source: true}

	var walk func(node string, depth int, product float64)
	walk = func(node string, depth int, product float64) {
		for _, edge := range snap.Outgoing(node) {
			next := edge.TargetID
			if onPath[next] {
				continue
			}
			nextProduct := product * edge.Criticality
			if next == destination {
				if !best.found || nextProduct > best.product ||
					(nextProduct == best.product && depth+1 < best.hops) {
					best = pathScore{product: nextProduct, hops: depth + 1, found: true}
				}
				continue
			}
			if depth+1 < maxDepth {
				onPath[next] = true
				walk(next, depth+1, nextProduct)
				onPath[next] = false
			}
		}
	}
	walk(source, 0, 1.0)
	return best
}
