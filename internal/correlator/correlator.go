// Package correlator buffers recent anomaly events in a sliding time window
// and scores pairwise temporal/semantic correlation.
package correlator

import (
	"sort"
	"sync"
	"time"

	"github.com/aiopstack/graph-rca/internal/metrics"
	"github.com/aiopstack/graph-rca/internal/models"
)

// DefaultWindow is the correlation window used when none is configured.
const DefaultWindow = 10 * time.Minute

// correlationThreshold is the minimum score for two events to be reported
// as correlated.
const correlationThreshold = 0.5

// Correlator holds the sliding event window. All buffer mutations are
// serialized behind one mutex so concurrent producers cannot interleave
// partial evictions.
type Correlator struct {
	mu     sync.Mutex
	window time.Duration
	events []models.AnomalyEvent
}

// New constructs a Correlator; window <= 0 selects DefaultWindow.
func New(window time.Duration) *Correlator {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Correlator{window: window}
}

// Window returns the configured window length.
func (c *Correlator) Window() time.Duration {
	return c.window
}

// Add appends an event to the buffer and evicts everything older than the
// window, measured against the newest event's timestamp.
func (c *Correlator) Add(event models.AnomalyEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.events = append(c.events, event)
	cutoff := event.Timestamp.Add(-c.window)
	kept := c.events[:0]
	for _, buffered := range c.events {
		if buffered.Timestamp.After(cutoff) {
			kept = append(kept, buffered)
		}
	}
	c.events = kept
	metrics.SetCorrelationBufferSize(len(c.events))
}

// Correlate compares the event against every buffered event and returns
// those scoring above the correlation threshold, descending by score. The
// event itself is not expected to be in the buffer yet; callers typically
// Correlate first and Add after.
func (c *Correlator) Correlate(event models.AnomalyEvent) []models.CorrelatedEvent {
	c.mu.Lock()
	defer c.mu.Unlock()

	var correlated []models.CorrelatedEvent
	for _, buffered := range c.events {
		diff := event.Timestamp.Sub(buffered.Timestamp)
		if diff < 0 {
			diff = -diff
		}
		if diff > c.window {
			continue
		}
		score := c.score(event, buffered, diff)
		if score > correlationThreshold {
			correlated = append(correlated, models.CorrelatedEvent{
				Event:    buffered,
				Score:    score,
				TimeDiff: diff,
			})
		}
	}
	sort.SliceStable(correlated, func(i, j int) bool {
		return correlated[i].Score > correlated[j].Score
	})
	return correlated
}

// Len reports the current buffer occupancy.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

// score weighs temporal proximity at 0.4 and metric/instance identity at
// 0.3 each.
func (c *Correlator) score(a, b models.AnomalyEvent, diff time.Duration) float64 {
	proximity := 1.0 - diff.Seconds()/c.window.Seconds()
	if proximity < 0 {
		proximity = 0
	}
	score := proximity * 0.4
	if a.MetricName != "" && a.MetricName == b.MetricName {
		score += 0.3
	}
	if a.Instance() != "" && a.Instance() == b.Instance() {
		score += 0.3
	}
	return score
}
