package models

import (
	"strings"
	"time"
)

// Severity captures anomaly impact levels.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Weight maps a severity to its normalized contribution in [0,1].
// Unrecognized values fall back to 0.5.
func (s Severity) Weight() float64 {
	switch s {
	case SeverityLow:
		return 0.3
	case SeverityMedium:
		return 0.6
	case SeverityHigh, SeverityCritical:
		return 1.0
	default:
		return 0.5
	}
}

// AnomalyEvent is one anomaly produced by the upstream detection pipeline.
type AnomalyEvent struct {
	Device      string            `json:"device,omitempty"`
	AnomalyType string            `json:"anomaly_type,omitempty"`
	MetricName  string            `json:"metric_name"`
	Severity    Severity          `json:"severity"`
	Score       float64           `json:"score"`
	Timestamp   time.Time         `json:"timestamp"`
	Labels      map[string]string `json:"labels,omitempty"`
	Reason      string            `json:"reason,omitempty"`
	Summary     string            `json:"summary,omitempty"`
}

// Instance returns the raw instance identifier carried in the labels.
func (e AnomalyEvent) Instance() string {
	if e.Labels == nil {
		return ""
	}
	return e.Labels["instance"]
}

// DeviceID resolves the device this event refers to. The explicit device
// field wins; otherwise the host part of the instance label is used
// (instance labels carry host:port).
func (e AnomalyEvent) DeviceID() string {
	if e.Device != "" {
		return e.Device
	}
	instance := e.Instance()
	if idx := strings.IndexByte(instance, ':'); idx >= 0 {
		return instance[:idx]
	}
	return instance
}

// CorrelatedEvent pairs a buffered event with its correlation score against
// a trigger event.
type CorrelatedEvent struct {
	Event    AnomalyEvent  `json:"event"`
	Score    float64       `json:"score"`
	TimeDiff time.Duration `json:"time_diff"`
}
