package analyzer

import (
	"strings"

	"github.com/aiopstack/graph-rca/internal/models"
)

// Edge criticality policy. These weights express how fatal a failure of the
// edge target is to the edge source; they feed the propagation scoring and
// are policy, not algorithm.
var relationWeights = map[models.RelationKind]float64{
	models.RelationPhysical:  1.0,
	models.RelationSyncCall:  0.9,
	models.RelationConfig:    0.8,
	models.RelationAsyncCall: 0.5,
	models.RelationSidecar:   0.2,
	models.RelationUnknown:   0.5,
}

// Well-known port signatures used to classify otherwise unknown links.
var (
	syncPorts  = map[int]bool{80: true, 443: true, 8080: true, 8443: true, 3306: true, 5432: true, 6379: true, 27017: true, 9200: true}
	asyncPorts = map[int]bool{9092: true, 9093: true, 9094: true, 5672: true, 1883: true, 61616: true, 4222: true}
)

var (
	databaseHints = []string{"mysql", "postgres", "redis", "mongodb", "elasticsearch", "cassandra", "influxdb"}
	queueHints    = []string{"kafka", "rabbitmq", "activemq", "pulsar", "nats", "mqtt", "redis-stream"}
	sidecarHints  = []string{"fluentd", "filebeat", "promtail", "loki", "otel-collector", "istio-proxy", "envoy", "sidecar"}
)

// EdgeHints carries the inputs available when a link's strength must be
// inferred rather than declared.
type EdgeHints struct {
	SourceName     string
	TargetName     string
	SourcePort     int
	TargetPort     int
	TargetCategory models.NodeCategory
}

// InferCriticality maps a relation kind plus naming/port hints onto an edge
// weight in [0,1]. Fallback order for links of unknown kind:
//
//  1. sidecar name hints on either endpoint
//  2. well-known port signature (target port preferred)
//  3. database / message-queue keywords in the target name or category
//  4. network gear target (router/switch) -> 0.7
//  5. assume a synchronous strong dependency; overestimating a dependency
//     is recoverable, missing one hides a root cause
func InferCriticality(relation models.RelationKind, hints EdgeHints) float64 {
	if relation != models.RelationUnknown && relation != "" {
		if weight, ok := relationWeights[relation]; ok {
			return weight
		}
		return relationWeights[models.RelationUnknown]
	}

	source := strings.ToLower(hints.SourceName)
	target := strings.ToLower(hints.TargetName)
	category := strings.ToLower(string(hints.TargetCategory))

	if matchesAny(target, sidecarHints) || matchesAny(source, sidecarHints) {
		return relationWeights[models.RelationSidecar]
	}

	port := hints.TargetPort
	if port <= 0 {
		port = hints.SourcePort
	}
	if port > 0 {
		if syncPorts[port] {
			return relationWeights[models.RelationSyncCall]
		}
		if asyncPorts[port] {
			return relationWeights[models.RelationAsyncCall]
		}
	}

	if matchesAny(target, databaseHints) || matchesAny(category, databaseHints) ||
		hints.TargetCategory == models.CategoryDatabase || hints.TargetCategory == models.CategoryCache {
		return relationWeights[models.RelationSyncCall]
	}
	if matchesAny(target, queueHints) || matchesAny(category, queueHints) ||
		hints.TargetCategory == models.CategoryMessageQueue {
		return relationWeights[models.RelationAsyncCall]
	}

	switch hints.TargetCategory {
	case models.CategoryRouter, models.CategorySwitch:
		return 0.7
	}

	return relationWeights[models.RelationSyncCall]
}

func matchesAny(value string, hints []string) bool {
	if value == "" {
		return false
	}
	for _, hint := range hints {
		if strings.Contains(value, hint) {
			return true
		}
	}
	return false
}
