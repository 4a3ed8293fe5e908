package models

import "time"

// NodeCategory classifies a topology node.
type NodeCategory string

const (
	CategoryService      NodeCategory = "service"
	CategoryDatabase     NodeCategory = "database"
	CategoryCache        NodeCategory = "cache"
	CategoryMessageQueue NodeCategory = "message-queue"
	CategorySidecar      NodeCategory = "sidecar"
	CategoryRouter       NodeCategory = "router"
	CategorySwitch       NodeCategory = "switch"
	CategoryUnknown      NodeCategory = "unknown"
)

// Node is a device or service in the dependency graph. ID is a URN-like
// identifier unique within the store, independent of transient attributes.
type Node struct {
	ID       string       `json:"id"`
	Name     string       `json:"name,omitempty"`
	Category NodeCategory `json:"category"`
	Address  string       `json:"address,omitempty"`
	Site     string       `json:"site,omitempty"`
	LastSeen time.Time    `json:"last_seen"`
}

// RelationKind classifies a dependency edge.
type RelationKind string

const (
	RelationPhysical  RelationKind = "PHYSICAL"
	RelationSyncCall  RelationKind = "SYNC_CALL"
	RelationConfig    RelationKind = "CONFIG"
	RelationAsyncCall RelationKind = "ASYNC_CALL"
	RelationSidecar   RelationKind = "SIDECAR"
	RelationUnknown   RelationKind = "UNKNOWN"
)

// Edge is a directed, weighted dependency from SourceID to TargetID.
// Criticality in [0,1] expresses how strongly a failure of the target
// affects the source.
type Edge struct {
	SourceID    string    `json:"source_id"`
	TargetID    string    `json:"target_id"`
	Criticality float64   `json:"criticality"`
	SourcePort  int       `json:"source_port,omitempty"`
	TargetPort  int       `json:"target_port,omitempty"`
	LastSeen    time.Time `json:"last_seen"`
}

// Direction selects the traversal orientation for dependency queries.
type Direction string

const (
	DirectionUpstream   Direction = "upstream"
	DirectionDownstream Direction = "downstream"
)

// Dependency is one entry of an ordered dependency listing.
type Dependency struct {
	NodeID      string       `json:"node_id"`
	Category    NodeCategory `json:"category"`
	HopDistance int          `json:"hop_distance"`
}

// CentralityScores holds per-node centrality metrics computed over the
// undirected view of the graph.
type CentralityScores struct {
	Degree      float64 `json:"degree"`
	Betweenness float64 `json:"betweenness"`
	Closeness   float64 `json:"closeness"`
}

// Blend combines the individual metrics into a single positional score.
func (c CentralityScores) Blend() float64 {
	return c.Betweenness*0.5 + c.Degree*0.3 + c.Closeness*0.2
}
