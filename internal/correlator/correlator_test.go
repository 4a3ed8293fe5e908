package correlator

import (
	"testing"
	"time"

	"github.com/aiopstack/graph-rca/internal/models"
)

func event(device, metric, instance string, ts time.Time) models.AnomalyEvent {
	e := models.AnomalyEvent{Device: device, MetricName: metric, Timestamp: ts, Score: 0.8}
	if instance != "" {
		e.Labels = map[string]string{"instance": instance}
	}
	return e
}

func TestCorrelateCloseSameMetricAndInstance(t *testing.T) {
	c := New(10 * time.Minute)
	base := time.Now()
	c.Add(event("db", "latency", "db:5432", base))

	got := c.Correlate(event("db", "latency", "db:5432", base.Add(10*time.Second)))
	if len(got) != 1 {
		t.Fatalf("expected 1 correlated event, got %d", len(got))
	}
	if got[0].Score < 0.9 {
		t.Fatalf("expected near-max correlation, got %f", got[0].Score)
	}
	if got[0].TimeDiff != 10*time.Second {
		t.Fatalf("expected 10s time diff, got %v", got[0].TimeDiff)
	}
}

func TestCorrelateDistantUnrelatedEvents(t *testing.T) {
	c := New(10 * time.Minute)
	base := time.Now()
	c.Add(event("db", "latency", "db:5432", base))

	got := c.Correlate(event("web", "error_rate", "web:8080", base.Add(590*time.Second)))
	if len(got) != 0 {
		t.Fatalf("expected no correlation for distant unrelated event, got %+v", got)
	}
}

func TestCorrelateSameMetricOnly(t *testing.T) {
	c := New(10 * time.Minute)
	base := time.Now()
	c.Add(event("a", "error_rate", "a:80", base))

	// proximity 0.4*(1-60/600)=0.36 + metric 0.3 = 0.66
	got := c.Correlate(event("b", "error_rate", "b:80", base.Add(time.Minute)))
	if len(got) != 1 {
		t.Fatalf("expected correlation on shared metric, got %d", len(got))
	}
	if got[0].Score < 0.6 || got[0].Score > 0.7 {
		t.Fatalf("expected score near 0.66, got %f", got[0].Score)
	}
}

func TestCorrelateSortedDescending(t *testing.T) {
	c := New(10 * time.Minute)
	base := time.Now()
	c.Add(event("far", "latency", "far:80", base.Add(-5*time.Minute)))
	c.Add(event("near", "latency", "near:80", base.Add(-10*time.Second)))

	got := c.Correlate(event("x", "latency", "x:80", base))
	if len(got) != 2 {
		t.Fatalf("expected 2 correlated events, got %d", len(got))
	}
	if got[0].Event.Device != "near" {
		t.Fatalf("expected nearest event first, got %s", got[0].Event.Device)
	}
}

func TestAddEvictsOutsideWindow(t *testing.T) {
	c := New(10 * time.Minute)
	base := time.Now()
	c.Add(event("old", "m", "", base))
	c.Add(event("new", "m", "", base.Add(11*time.Minute)))

	if c.Len() != 1 {
		t.Fatalf("expected old event evicted, buffer len %d", c.Len())
	}
	if got := c.Correlate(event("probe", "m", "", base.Add(11*time.Minute))); len(got) != 1 || got[0].Event.Device != "new" {
		t.Fatalf("expected only the new event retained, got %+v", got)
	}
}

func TestDefaultWindow(t *testing.T) {
	if c := New(0); c.Window() != DefaultWindow {
		t.Fatalf("expected default window, got %v", c.Window())
	}
}
