package models

import "time"

// RootCauseCandidate is one ranked outcome of weighted failure propagation.
// PathScore is the maximum product of edge criticalities along any directed
// path from the analysis target to the candidate within the depth bound.
type RootCauseCandidate struct {
	NodeID      string       `json:"node_id"`
	Category    NodeCategory `json:"category"`
	Score       float64      `json:"score"`
	PathScore   float64      `json:"path_score"`
	HopCount    int          `json:"hop_count"`
	Anomaly     AnomalyEvent `json:"anomaly"`
	Explanation string       `json:"explanation"`
}

// InferenceCandidate is one scored root-cause hypothesis produced by the
// inference engine from centrality, severity, and anomaly magnitude.
type InferenceCandidate struct {
	Device          string       `json:"device"`
	Anomaly         AnomalyEvent `json:"anomaly"`
	CentralityScore float64      `json:"centrality_score"`
	SeverityScore   float64      `json:"severity_score"`
	AnomalyScore    float64      `json:"anomaly_score"`
	CombinedScore   float64      `json:"combined_score"`
}

// Inference summarises a completed root-cause inference.
type Inference struct {
	RootCauseDevice string               `json:"root_cause_device"`
	RootCauseEvent  AnomalyEvent         `json:"root_cause_anomaly"`
	Confidence      float64              `json:"confidence"`
	Explanation     string               `json:"explanation"`
	Candidates      []InferenceCandidate `json:"candidates"`
}

// PropagationSource names the upstream node most shared across the
// propagation chains of a correlated anomaly group.
type PropagationSource struct {
	Device          string `json:"device"`
	OccurrenceCount int    `json:"occurrence_count"`
}

// RCAResult is the downstream-facing analysis outcome for one trigger event.
type RCAResult struct {
	Timestamp         time.Time            `json:"timestamp"`
	TriggerEvent      AnomalyEvent         `json:"trigger_anomaly"`
	CorrelatedEvents  []CorrelatedEvent    `json:"correlated_anomalies"`
	PropagationSource *PropagationSource   `json:"propagation_source,omitempty"`
	RankedCandidates  []RootCauseCandidate `json:"ranked_candidates,omitempty"`
	RootCause         Inference            `json:"root_cause"`
	Summary           string               `json:"rca_summary"`
}
