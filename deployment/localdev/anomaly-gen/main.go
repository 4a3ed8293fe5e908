// anomaly-gen publishes a scripted burst of anomaly events to the broker so
// the RCA pipeline can be exercised locally without a real detector. It
// replays a database outage: the shared Postgres degrades first, then the
// services that depend on it start alarming.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
)

type anomalyEvent struct {
	Device      string            `json:"device"`
	AnomalyType string            `json:"anomaly_type"`
	MetricName  string            `json:"metric_name"`
	Severity    string            `json:"severity"`
	Score       float64           `json:"score"`
	Timestamp   time.Time         `json:"timestamp"`
	Labels      map[string]string `json:"labels,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}

func main() {
	var (
		addr     string
		channel  string
		interval time.Duration
	)
	flag.StringVar(&addr, "addr", "localhost:6379", "broker address")
	flag.StringVar(&channel, "channel", "aiops.anomalies", "anomaly channel")
	flag.DurationVar(&interval, "interval", 2*time.Second, "delay between events")
	flag.Parse()

	logger := log.New(os.Stdout, "anomaly-gen ", log.LstdFlags|log.Lmicroseconds)

	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Fatalf("broker unreachable at %s: %v", addr, err)
	}
	defer client.Close()

	now := time.Now().UTC()
	burst := []anomalyEvent{
		{
			Device:      "postgres-primary",
			AnomalyType: "latency_spike",
			MetricName:  "db_query_duration_seconds",
			Severity:    "high",
			Score:       0.95,
			Timestamp:   now,
			Labels:      map[string]string{"instance": "postgres-primary:5432"},
			Reason:      "p99 query latency 40x above baseline",
		},
		{
			Device:      "checkout",
			AnomalyType: "error_rate",
			MetricName:  "http_requests_errors_total",
			Severity:    "medium",
			Score:       0.7,
			Timestamp:   now.Add(30 * time.Second),
			Labels:      map[string]string{"instance": "checkout:8080"},
			Reason:      "5xx rate exceeded threshold",
		},
		{
			Device:      "payments",
			AnomalyType: "latency_spike",
			MetricName:  "http_request_duration_seconds",
			Severity:    "medium",
			Score:       0.65,
			Timestamp:   now.Add(45 * time.Second),
			Labels:      map[string]string{"instance": "payments:8080"},
			Reason:      "upstream timeouts on db calls",
		},
		{
			Device:      "inventory",
			AnomalyType: "error_rate",
			MetricName:  "http_requests_errors_total",
			Severity:    "low",
			Score:       0.4,
			Timestamp:   now.Add(60 * time.Second),
			Labels:      map[string]string{"instance": "inventory:8080"},
			Reason:      "sporadic connection resets",
		},
	}

	for _, event := range burst {
		payload, err := json.Marshal(event)
		if err != nil {
			logger.Fatalf("encode event: %v", err)
		}
		if err := client.Publish(ctx, channel, payload).Err(); err != nil {
			logger.Fatalf("publish: %v", err)
		}
		logger.Printf("published %s %s severity=%s score=%.2f", event.Device, event.MetricName, event.Severity, event.Score)
		time.Sleep(interval)
	}
	logger.Printf("done: %d events on %s", len(burst), channel)
}
