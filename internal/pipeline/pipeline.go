// Package pipeline turns the incoming anomaly stream into published
// root-cause analysis results.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/aiopstack/graph-rca/internal/analyzer"
	"github.com/aiopstack/graph-rca/internal/correlator"
	"github.com/aiopstack/graph-rca/internal/graph"
	"github.com/aiopstack/graph-rca/internal/inference"
	"github.com/aiopstack/graph-rca/internal/metrics"
	"github.com/aiopstack/graph-rca/internal/models"
	"github.com/aiopstack/graph-rca/internal/utils"
)

// minCorrelated is the number of correlated events required before a group
// is analysed; a lone anomaly is noise until corroborated.
const minCorrelated = 2

// SnapshotProvider supplies the current graph snapshot.
type SnapshotProvider interface {
	Snapshot(ctx context.Context, forceRefresh bool) (*graph.Snapshot, error)
}

// ResultPublisher delivers RCA results downstream.
type ResultPublisher interface {
	Publish(ctx context.Context, result models.RCAResult) error
}

// Pipeline wires the correlator, graph analysis, and inference together.
// It is safe for concurrent ProcessAnomaly calls.
type Pipeline struct {
	logger     *slog.Logger
	provider   SnapshotProvider
	analyzer   *analyzer.Analyzer
	correlator *correlator.Correlator
	engine     *inference.Engine
	publisher  ResultPublisher
	maxDepth   int
	latencies  *utils.LatencyTracker

	// Centrality is the only whole-graph scan; memoize it per snapshot
	// so anomaly bursts against one snapshot compute it once.
	centralityMu   sync.Mutex
	centralitySnap *graph.Snapshot
	centrality     map[string]models.CentralityScores
}

// New constructs a Pipeline.
func New(
	logger *slog.Logger,
	provider SnapshotProvider,
	graphAnalyzer *analyzer.Analyzer,
	eventCorrelator *correlator.Correlator,
	engine *inference.Engine,
	publisher ResultPublisher,
	maxDepth int,
) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if graphAnalyzer == nil {
		graphAnalyzer = analyzer.New(logger)
	}
	if eventCorrelator == nil {
		eventCorrelator = correlator.New(0)
	}
	if engine == nil {
		engine = inference.New(logger)
	}
	if maxDepth <= 0 {
		maxDepth = 3
	}
	return &Pipeline{
		logger:     logger,
		provider:   provider,
		analyzer:   graphAnalyzer,
		correlator: eventCorrelator,
		engine:     engine,
		publisher:  publisher,
		maxDepth:   maxDepth,
		latencies:  utils.NewLatencyTracker(1024),
	}
}

// ProcessAnomaly folds one anomaly into the correlation window and, when
// enough correlated evidence exists, runs the full analysis and publishes
// the result. A nil return with no publication means the event was buffered
// awaiting corroboration. Per-event failures never propagate a panic; a
// malformed or unresolvable event is logged and dropped.
func (p *Pipeline) ProcessAnomaly(ctx context.Context, event models.AnomalyEvent) error {
	correlated := p.correlator.Correlate(event)
	p.correlator.Add(event)

	if len(correlated) < minCorrelated {
		p.logger.Debug("anomaly buffered, not enough correlated evidence",
			slog.String("device", event.DeviceID()),
			slog.String("metric", event.MetricName),
			slog.Int("correlated", len(correlated)))
		return nil
	}

	start := time.Now()
	result, err := p.analyze(ctx, event, correlated)
	duration := time.Since(start)
	if err != nil {
		metrics.ObserveAnalysis(duration, metrics.OutcomeError)
		return err
	}
	p.latencies.Observe(duration)
	metrics.ObserveAnalysis(duration, metrics.OutcomeSuccess)
	if count := p.latencies.Count(); count >= 20 && count%20 == 0 {
		p.logger.Info("analysis latency",
			slog.Duration("p95", p.latencies.Percentile(95)),
			slog.Int("samples", count))
	}

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, result); err != nil {
			return utils.NewAppError("pipeline.publish", "failed to publish RCA result", err)
		}
	}
	p.logger.Info("rca result published",
		slog.String("root_cause", result.RootCause.RootCauseDevice),
		slog.Float64("confidence", result.RootCause.Confidence),
		slog.Int("correlated", len(correlated)))
	return nil
}

func (p *Pipeline) analyze(ctx context.Context, trigger models.AnomalyEvent, correlated []models.CorrelatedEvent) (models.RCAResult, error) {
	snap, err := p.provider.Snapshot(ctx, false)
	if err != nil {
		return models.RCAResult{}, fmt.Errorf("graph snapshot: %w", err)
	}

	group := make([]models.AnomalyEvent, 0, len(correlated)+1)
	group = append(group, trigger)
	for _, c := range correlated {
		group = append(group, c.Event)
	}

	source := p.propagationSource(snap, group)
	candidates := p.analyzer.AnalyzeFailurePropagation(snap, trigger.DeviceID(), group, p.maxDepth)
	rootCause := p.engine.Infer(group, p.centralityFor(snap))

	result := models.RCAResult{
		Timestamp:         time.Now(),
		TriggerEvent:      trigger,
		CorrelatedEvents:  correlated,
		PropagationSource: source,
		RankedCandidates:  candidates,
		RootCause:         rootCause,
		Summary:           summarize(trigger, len(group), rootCause),
	}
	return result, nil
}

// propagationSource votes across the upstream dependency chains of every
// anomalous device; the upstream node shared by the most chains is the
// likeliest propagation origin. Ties resolve to the lexically smaller ID so
// the outcome is deterministic.
func (p *Pipeline) propagationSource(snap *graph.Snapshot, group []models.AnomalyEvent) *models.PropagationSource {
	occurrences := make(map[string]int)
	for _, anomaly := range group {
		device := anomaly.DeviceID()
		if device == "" {
			continue
		}
		for _, dep := range p.analyzer.Dependencies(snap, device, models.DirectionUpstream, p.maxDepth) {
			occurrences[dep.NodeID]++
		}
	}
	if len(occurrences) == 0 {
		return nil
	}

	devices := make([]string, 0, len(occurrences))
	for device := range occurrences {
		devices = append(devices, device)
	}
	sort.Strings(devices)
	best := devices[0]
	for _, device := range devices[1:] {
		if occurrences[device] > occurrences[best] {
			best = device
		}
	}
	return &models.PropagationSource{Device: best, OccurrenceCount: occurrences[best]}
}

func (p *Pipeline) centralityFor(snap *graph.Snapshot) map[string]models.CentralityScores {
	p.centralityMu.Lock()
	defer p.centralityMu.Unlock()
	if p.centralitySnap != snap {
		p.centrality = p.analyzer.Centrality(snap)
		p.centralitySnap = snap
	}
	return p.centrality
}

func summarize(trigger models.AnomalyEvent, groupSize int, rootCause models.Inference) string {
	if rootCause.RootCauseDevice == "" {
		return fmt.Sprintf("RCA incomplete: insufficient evidence (found %d anomalies)", groupSize)
	}
	triggerSummary := trigger.Summary
	if triggerSummary == "" {
		triggerSummary = fmt.Sprintf("%s on %s", trigger.MetricName, trigger.DeviceID())
	}
	return fmt.Sprintf(
		"Root Cause Analysis completed:\n- Trigger: %s\n- Correlated anomalies: %d\n- Root cause device: %s\n- Confidence: %.2f%%\n- Explanation: %s",
		triggerSummary, groupSize, rootCause.RootCauseDevice, rootCause.Confidence*100, rootCause.Explanation,
	)
}
