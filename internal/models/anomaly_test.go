package models

import "testing"

func TestSeverityWeight(t *testing.T) {
	cases := []struct {
		severity Severity
		want     float64
	}{
		{SeverityLow, 0.3},
		{SeverityMedium, 0.6},
		{SeverityHigh, 1.0},
		{SeverityCritical, 1.0},
		{Severity("bogus"), 0.5},
		{Severity(""), 0.5},
	}
	for _, tc := range cases {
		if got := tc.severity.Weight(); got != tc.want {
			t.Fatalf("severity %q: expected %f, got %f", tc.severity, tc.want, got)
		}
	}
}

func TestAnomalyDeviceID(t *testing.T) {
	cases := []struct {
		name  string
		event AnomalyEvent
		want  string
	}{
		{"explicit device wins", AnomalyEvent{Device: "db", Labels: map[string]string{"instance": "web:80"}}, "db"},
		{"host from instance", AnomalyEvent{Labels: map[string]string{"instance": "web:8080"}}, "web"},
		{"instance without port", AnomalyEvent{Labels: map[string]string{"instance": "web"}}, "web"},
		{"no identity", AnomalyEvent{}, ""},
	}
	for _, tc := range cases {
		if got := tc.event.DeviceID(); got != tc.want {
			t.Fatalf("%s: expected %q, got %q", tc.name, tc.want, got)
		}
	}
}
