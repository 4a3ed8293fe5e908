package analyzer

import (
	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/models"
)

// Centrality computes degree, betweenness, and closeness centrality for
// every node, treating the graph as undirected. Betweenness uses Brandes'
// algorithm (O(V·E) on unweighted graphs). This is the only whole-graph scan
// in the analyzer; callers should memoize the result per snapshot rather
// than recompute it per anomaly.
func (a *Analyzer) Centrality(snap *graph.Snapshot) map[string]models.CentralityScores {
	if snap == nil {
		return nil
	}

	ids := snap.NodeIDs()
	n := len(ids)
	scores := make(map[string]models.CentralityScores, n)
	if n == 0 {
		return scores
	}

	// Undirected adjacency with parallel edges collapsed.
	adjacency := make(map[string][]string, n)
	seen := make(map[[2]string]bool)
	addEdge := func(u, v string) {
		if u == v || seen[[2]string{u, v}] {
			return
		}
		seen[[2]string{u, v}] = true
		seen[[2]string{v, u}] = true
		adjacency[u] = append(adjacency[u], v)
		adjacency[v] = append(adjacency[v], u)
	}
	for _, id := range ids {
		for _, edge := range snap.Outgoing(id) {
			addEdge(edge.SourceID, edge.TargetID)
		}
	}

	betweenness := make(map[string]float64, n)

	for _, source := range ids {
		// Brandes: single-source shortest paths with path counting.
		var stack []string
		predecessors := make(map[string][]string)
		sigma := map[string]float64{source: 1}
		distance := map[string]int{source: 0}
		queue := []string{source}

		for len(queue) > 0 {
			v := queue[0]
			queue = queue[1:]
			stack = append(stack, v)
			for _, w := range adjacency[v] {
				if _, ok := distance[w]; !ok {
					distance[w] = distance[v] + 1
					queue = append(queue, w)
				}
				if distance[w] == distance[v]+1 {
					sigma[w] += sigma[v]
					predecessors[w] = append(predecessors[w], v)
				}
			}
		}

		// Dependency accumulation in reverse BFS order.
		delta := make(map[string]float64)
		for i := len(stack) - 1; i >= 0; i-- {
			w := stack[i]
			for _, v := range predecessors[w] {
				delta[v] += sigma[v] / sigma[w] * (1 + delta[w])
			}
			if w != source {
				betweenness[w] += delta[w]
			}
		}

		// Closeness for this source falls out of the same BFS.
		sum := 0
		reachable := 0
		for _, d := range distance {
			sum += d
			reachable++
		}
		closeness := 0.0
		if sum > 0 && n > 1 {
			// Wasserman-Faust: scale by the reachable fraction so nodes in
			// small components do not look artificially central.
			closeness = float64(reachable-1) / float64(sum) * float64(reachable-1) / float64(n-1)
		}
		node := scores[source]
		node.Closeness = closeness
		node.Degree = float64(len(adjacency[source])) / float64(max(n-1, 1))
		scores[source] = node
	}

	betweennessScale := 0.0
	if n > 2 {
		betweennessScale = 1.0 / float64((n-1)*(n-2))
	}
	for _, id := range ids {
		node := scores[id]
		node.Betweenness = betweenness[id] * betweennessScale
		scores[id] = node
	}
	return scores
}
