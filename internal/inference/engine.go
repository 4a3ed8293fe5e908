// Package inference combines centrality, severity, and anomaly magnitude
// into ranked, explained root-cause candidates.
package inference

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/aiopstack/graph-rca/internal/models"
)

// maxCandidates bounds the ranked candidate list.
const maxCandidates = 5

// Engine scores root-cause hypotheses. It is stateless and safe for
// concurrent use; centrality scores are supplied by the caller so they can
// be memoized per snapshot.
type Engine struct {
	logger *slog.Logger
}

// New constructs an Engine.
func New(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// Infer ranks the anomalies as root-cause hypotheses. Each candidate's
// combined score blends the device's network position (0.4), the anomaly
// severity (0.3), and the raw anomaly score (0.3). Devices missing from the
// centrality map contribute zero positional score but are still ranked.
func (e *Engine) Infer(anomalies []models.AnomalyEvent, centrality map[string]models.CentralityScores) models.Inference {
	if len(anomalies) == 0 {
		return models.Inference{}
	}

	candidates := make([]models.InferenceCandidate, 0, len(anomalies))
	for _, anomaly := range anomalies {
		device := anomaly.DeviceID()
		if device == "" {
			e.logger.Debug("anomaly without device identity skipped", slog.String("metric", anomaly.MetricName))
			continue
		}

		centralityScore := centrality[device].Blend()
		severityScore := anomaly.Severity.Weight()
		combined := centralityScore*0.4 + severityScore*0.3 + anomaly.Score*0.3

		candidates = append(candidates, models.InferenceCandidate{
			Device:          device,
			Anomaly:         anomaly,
			CentralityScore: centralityScore,
			SeverityScore:   severityScore,
			AnomalyScore:    anomaly.Score,
			CombinedScore:   combined,
		})
	}
	if len(candidates) == 0 {
		return models.Inference{}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].CombinedScore != candidates[j].CombinedScore {
			return candidates[i].CombinedScore > candidates[j].CombinedScore
		}
		return candidates[i].Device < candidates[j].Device
	})
	if len(candidates) > maxCandidates {
		candidates = candidates[:maxCandidates]
	}

	top := candidates[0]
	return models.Inference{
		RootCauseDevice: top.Device,
		RootCauseEvent:  top.Anomaly,
		Confidence:      top.CombinedScore,
		Explanation:     explain(top),
		Candidates:      candidates,
	}
}

// explain renders the deterministic audit trail for the top candidate,
// citing every contributing factor with its numeric value.
func explain(candidate models.InferenceCandidate) string {
	anomaly := candidate.Anomaly
	anomalyType := anomaly.AnomalyType
	if anomalyType == "" {
		anomalyType = "unknown"
	}
	metric := anomaly.MetricName
	if metric == "" {
		metric = "unknown metric"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Root cause identified on device '%s' based on:\n", candidate.Device)
	fmt.Fprintf(&b, "- Anomaly type: %s\n", anomalyType)
	fmt.Fprintf(&b, "- Affected metric: %s\n", metric)
	fmt.Fprintf(&b, "- Detection reason: %s\n", anomaly.Reason)
	fmt.Fprintf(&b, "- Centrality score: %.3f (network position)\n", candidate.CentralityScore)
	fmt.Fprintf(&b, "- Severity: %.3f\n", candidate.SeverityScore)
	fmt.Fprintf(&b, "- Anomaly score: %.3f\n", candidate.AnomalyScore)
	fmt.Fprintf(&b, "- Overall confidence: %.3f", candidate.CombinedScore)
	return b.String()
}
