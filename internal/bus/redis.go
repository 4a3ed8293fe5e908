// Package bus adapts the external pub/sub broker: anomaly events in, RCA
// results out. The broker itself, and how anomalies are produced, are out
// of scope; this package only carries messages.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-redis/redis/v8"

	"github.com/aiopstack/graph-rca/internal/models"
)

// Default channel names matching the upstream anomaly pipeline's topics.
const (
	DefaultAnomalyChannel = "aiops.anomalies"
	DefaultResultChannel  = "aiops.rca_results"
)

// Config holds broker connection parameters.
type Config struct {
	Addr           string
	Username       string
	Password       string
	DB             int
	AnomalyChannel string
	ResultChannel  string
}

// Bus is a Redis-backed message bus for anomaly events and RCA results.
type Bus struct {
	client         *redis.Client
	anomalyChannel string
	resultChannel  string
	logger         *slog.Logger
}

// New connects to the broker and verifies it responds.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Bus, error) {
	if logger == nil {
		logger = slog.Default()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("broker ping %s: %w", cfg.Addr, err)
	}

	anomalyChannel := cfg.AnomalyChannel
	if anomalyChannel == "" {
		anomalyChannel = DefaultAnomalyChannel
	}
	resultChannel := cfg.ResultChannel
	if resultChannel == "" {
		resultChannel = DefaultResultChannel
	}
	logger.Info("connected to broker", slog.String("addr", cfg.Addr))

	return &Bus{
		client:         client,
		anomalyChannel: anomalyChannel,
		resultChannel:  resultChannel,
		logger:         logger,
	}, nil
}

// Close releases the broker connection.
func (b *Bus) Close() error {
	return b.client.Close()
}

// Publish sends an RCA result to the downstream channel.
func (b *Bus) Publish(ctx context.Context, result models.RCAResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode rca result: %w", err)
	}
	if err := b.client.Publish(ctx, b.resultChannel, payload).Err(); err != nil {
		return fmt.Errorf("publish rca result: %w", err)
	}
	b.logger.Debug("rca result published", slog.String("channel", b.resultChannel))
	return nil
}

// ConsumeAnomalies subscribes to the anomaly channel and invokes handle for
// every decoded event until the context is cancelled. Malformed payloads
// and per-event handler failures are logged and skipped; no single message
// terminates the consumer.
func (b *Bus) ConsumeAnomalies(ctx context.Context, handle func(context.Context, models.AnomalyEvent) error) error {
	sub := b.client.Subscribe(ctx, b.anomalyChannel)
	defer sub.Close()

	// Force the subscription before consuming so startup failures surface.
	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.anomalyChannel, err)
	}
	b.logger.Info("consuming anomaly events", slog.String("channel", b.anomalyChannel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event models.AnomalyEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				b.logger.Warn("dropping malformed anomaly payload", slog.Any("error", err))
				continue
			}
			if err := handle(ctx, event); err != nil {
				b.logger.Error("anomaly processing failed",
					slog.String("device", event.DeviceID()),
					slog.String("metric", event.MetricName),
					slog.Any("error", err))
			}
		}
	}
}
