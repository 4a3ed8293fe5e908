package analyzer

import (
	"math"
	"testing"
	"time"

	"github.com/aiopstack/graph-rca/internal/models"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.001
}

// A service depends on its database over a strong synchronous link and on a
// logging sidecar over a weak one. Even a maximal anomaly on the sidecar
// must rank below a strong anomaly on the database.
func TestPropagationPrefersCriticalDependency(t *testing.T) {
	snap := buildSnapshot(
		[]models.Node{
			serviceNode("checkout"),
			{ID: "postgres", Name: "postgres", Category: models.CategoryDatabase},
			{ID: "fluentd", Name: "fluentd", Category: models.CategorySidecar},
		},
		[]models.Edge{
			{SourceID: "checkout", TargetID: "postgres", Criticality: 0.9},
			{SourceID: "checkout", TargetID: "fluentd", Criticality: 0.2},
		},
	)
	anomalies := []models.AnomalyEvent{
		{Device: "postgres", MetricName: "db_latency", Score: 0.9, Timestamp: time.Now()},
		{Device: "fluentd", MetricName: "buffer_full", Score: 1.0, Timestamp: time.Now()},
	}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "checkout", anomalies, 3)
	if len(candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(candidates))
	}
	if candidates[0].NodeID != "postgres" {
		t.Fatalf("expected postgres ranked first, got %s", candidates[0].NodeID)
	}
	if !almostEqual(candidates[0].Score, 0.81) {
		t.Fatalf("expected postgres score 0.81, got %f", candidates[0].Score)
	}
	if !almostEqual(candidates[1].Score, 0.20) {
		t.Fatalf("expected fluentd score 0.20, got %f", candidates[1].Score)
	}
}

func TestPropagationMultiHopProduct(t *testing.T) {
	// checkout -> router (0.7) -> postgres (0.9)
	snap := buildSnapshot(
		[]models.Node{
			serviceNode("checkout"),
			{ID: "router", Category: models.CategoryRouter},
			{ID: "postgres", Category: models.CategoryDatabase},
		},
		[]models.Edge{
			{SourceID: "checkout", TargetID: "router", Criticality: 0.7},
			{SourceID: "router", TargetID: "postgres", Criticality: 0.9},
		},
	)
	anomalies := []models.AnomalyEvent{
		{Device: "postgres", MetricName: "db_latency", Score: 1.0},
	}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "checkout", anomalies, 3)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if !almostEqual(candidates[0].PathScore, 0.63) {
		t.Fatalf("expected path score 0.63, got %f", candidates[0].PathScore)
	}
	if candidates[0].HopCount != 2 {
		t.Fatalf("expected 2 hops, got %d", candidates[0].HopCount)
	}
}

// When several paths reach the anomalous node, the strongest product wins
// even if a weaker direct edge exists.
func TestPropagationPicksStrongestPath(t *testing.T) {
	snap := buildSnapshot(
		[]models.Node{serviceNode("a"), serviceNode("b"), serviceNode("c")},
		[]models.Edge{
			{SourceID: "a", TargetID: "c", Criticality: 0.3},
			{SourceID: "a", TargetID: "b", Criticality: 0.9},
			{SourceID: "b", TargetID: "c", Criticality: 0.9},
		},
	)
	anomalies := []models.AnomalyEvent{{Device: "c", MetricName: "m", Score: 1.0}}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "a", anomalies, 3)
	if len(candidates) != 1 {
		t.Fatalf("expected 1 candidate, got %d", len(candidates))
	}
	if !almostEqual(candidates[0].PathScore, 0.81) {
		t.Fatalf("expected strongest path 0.81, got %f", candidates[0].PathScore)
	}
	if candidates[0].HopCount != 2 {
		t.Fatalf("expected the 2-hop path, got %d hops", candidates[0].HopCount)
	}
}

func TestPropagationExcludesUnreachable(t *testing.T) {
	snap := buildSnapshot(
		[]models.Node{serviceNode("a"), serviceNode("b"), serviceNode("island")},
		[]models.Edge{{SourceID: "a", TargetID: "b", Criticality: 0.9}},
	)
	anomalies := []models.AnomalyEvent{
		{Device: "b", MetricName: "m", Score: 0.5},
		{Device: "island", MetricName: "m", Score: 1.0},
	}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "a", anomalies, 3)
	if len(candidates) != 1 || candidates[0].NodeID != "b" {
		t.Fatalf("expected only reachable candidate b, got %+v", candidates)
	}
}

func TestPropagationDepthBoundExcludesDistantNodes(t *testing.T) {
	snap := buildSnapshot(
		[]models.Node{serviceNode("a"), serviceNode("b"), serviceNode("c"), serviceNode("d")},
		[]models.Edge{
			{SourceID: "a", TargetID: "b", Criticality: 1.0},
			{SourceID: "b", TargetID: "c", Criticality: 1.0},
			{SourceID: "c", TargetID: "d", Criticality: 1.0},
		},
	)
	anomalies := []models.AnomalyEvent{{Device: "d", MetricName: "m", Score: 1.0}}

	if candidates := New(nil).AnalyzeFailurePropagation(snap, "a", anomalies, 2); len(candidates) != 0 {
		t.Fatalf("expected no candidates beyond depth bound, got %+v", candidates)
	}
}

func TestPropagationTargetSelfAnomaly(t *testing.T) {
	snap := buildSnapshot([]models.Node{serviceNode("a")}, nil)
	anomalies := []models.AnomalyEvent{{Device: "a", MetricName: "m", Score: 0.8}}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "a", anomalies, 3)
	if len(candidates) != 1 {
		t.Fatalf("expected self candidate, got %d", len(candidates))
	}
	if candidates[0].PathScore != 1.0 || candidates[0].HopCount != 0 {
		t.Fatalf("expected trivial path for self anomaly, got %+v", candidates[0])
	}
	if !almostEqual(candidates[0].Score, 0.8) {
		t.Fatalf("expected score 0.8, got %f", candidates[0].Score)
	}
}

func TestPropagationSkipsNodesAbsentFromSnapshot(t *testing.T) {
	snap := buildSnapshot(
		[]models.Node{serviceNode("a"), serviceNode("b")},
		[]models.Edge{{SourceID: "a", TargetID: "b", Criticality: 0.9}},
	)
	anomalies := []models.AnomalyEvent{
		{Device: "ghost", MetricName: "m", Score: 1.0},
		{Device: "b", MetricName: "m", Score: 0.5},
	}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "a", anomalies, 3)
	if len(candidates) != 1 || candidates[0].NodeID != "b" {
		t.Fatalf("expected ghost anomaly skipped, got %+v", candidates)
	}
}

func TestPropagationDeviceFromInstanceLabel(t *testing.T) {
	snap := buildSnapshot(
		[]models.Node{serviceNode("a"), serviceNode("b")},
		[]models.Edge{{SourceID: "a", TargetID: "b", Criticality: 0.9}},
	)
	anomalies := []models.AnomalyEvent{
		{MetricName: "m", Score: 1.0, Labels: map[string]string{"instance": "b:8080"}},
	}

	candidates := New(nil).AnalyzeFailurePropagation(snap, "a", anomalies, 3)
	if len(candidates) != 1 || candidates[0].NodeID != "b" {
		t.Fatalf("expected device resolved from instance label, got %+v", candidates)
	}
}
