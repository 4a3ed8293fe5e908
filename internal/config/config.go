package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/aiopstack/graph-rca/internal/models"
)

// Config captures the settings required to boot the graph RCA service.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Graph       GraphConfig       `yaml:"graph"`
	Broker      BrokerConfig      `yaml:"broker"`
	Cache       CacheConfig       `yaml:"cache"`
	Analysis    AnalysisConfig    `yaml:"analysis"`
	Correlation CorrelationConfig `yaml:"correlation"`
	GC          GCConfig          `yaml:"gc"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the operational HTTP listener.
type ServerConfig struct {
	Address         string        `yaml:"address"`
	MetricsAddress  string        `yaml:"metricsAddress"`
	GracefulTimeout time.Duration `yaml:"gracefulTimeout"`
}

// GraphConfig configures the Neo4j dependency-graph store.
type GraphConfig struct {
	URI      string        `yaml:"uri"`
	Username string        `yaml:"username"`
	Password string        `yaml:"password"`
	Database string        `yaml:"database"`
	Timeout  time.Duration `yaml:"timeout"`
}

// BrokerConfig configures the anomaly/result pub-sub broker.
type BrokerConfig struct {
	Addr           string `yaml:"addr"`
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
	DB             int    `yaml:"db"`
	AnomalyChannel string `yaml:"anomalyChannel"`
	ResultChannel  string `yaml:"resultChannel"`
}

// CacheConfig controls the in-memory graph snapshot cache.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AnalysisConfig controls dependency traversal limits.
type AnalysisConfig struct {
	MaxDepth int `yaml:"maxDepth"`
}

// CorrelationConfig controls the temporal event correlator.
type CorrelationConfig struct {
	Window time.Duration `yaml:"window"`
}

// GCConfig controls the TTL garbage collector.
type GCConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Interval  time.Duration  `yaml:"interval"`
	BatchSize int            `yaml:"batchSize"`
	DryRun    bool           `yaml:"dryRun"`
	TTLHours  map[string]int `yaml:"ttlHours"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// TTLPolicy merges the configured per-category TTL hours over the built-in
// defaults.
func (g GCConfig) TTLPolicy() models.TTLPolicy {
	policy := models.DefaultTTLPolicy()
	for category, hours := range g.TTLHours {
		if hours > 0 {
			policy[models.NodeCategory(category)] = hours
		}
	}
	return policy
}

// Load initialises Config from a YAML file and optional environment overrides.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("GRAPH_RCA_CONFIG")
	}

	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

func defaultConfig() Config {
	return Config{
		Server: ServerConfig{
			Address:         ":8080",
			MetricsAddress:  ":2112",
			GracefulTimeout: 10 * time.Second,
		},
		Graph: GraphConfig{
			URI:      "bolt://localhost:7687",
			Username: "neo4j",
			Database: "neo4j",
			Timeout:  30 * time.Second,
		},
		Broker: BrokerConfig{
			Addr:           "localhost:6379",
			AnomalyChannel: "aiops.anomalies",
			ResultChannel:  "aiops.rca_results",
		},
		Cache:       CacheConfig{TTL: 5 * time.Minute},
		Analysis:    AnalysisConfig{MaxDepth: 3},
		Correlation: CorrelationConfig{Window: 10 * time.Minute},
		GC: GCConfig{
			Enabled:   true,
			Interval:  time.Hour,
			BatchSize: 1000,
		},
		Logging: LoggingConfig{Level: "info", JSON: false},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("GRAPH_RCA_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("GRAPH_RCA_METRICS_ADDRESS"); v != "" {
		cfg.Server.MetricsAddress = v
	}
	if v := os.Getenv("GRAPH_RCA_NEO4J_URI"); v != "" {
		cfg.Graph.URI = v
	}
	if v := os.Getenv("GRAPH_RCA_NEO4J_USERNAME"); v != "" {
		cfg.Graph.Username = v
	}
	if v := os.Getenv("GRAPH_RCA_NEO4J_PASSWORD"); v != "" {
		cfg.Graph.Password = v
	}
	if v := os.Getenv("GRAPH_RCA_NEO4J_DATABASE"); v != "" {
		cfg.Graph.Database = v
	}
	if v := os.Getenv("GRAPH_RCA_BROKER_ADDR"); v != "" {
		cfg.Broker.Addr = v
	}
	if v := os.Getenv("GRAPH_RCA_BROKER_PASSWORD"); v != "" {
		cfg.Broker.Password = v
	}
	if v := os.Getenv("GRAPH_RCA_ANOMALY_CHANNEL"); v != "" {
		cfg.Broker.AnomalyChannel = v
	}
	if v := os.Getenv("GRAPH_RCA_RESULT_CHANNEL"); v != "" {
		cfg.Broker.ResultChannel = v
	}
	if v := os.Getenv("GRAPH_RCA_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Cache.TTL = d
		}
	}
	if v := os.Getenv("GRAPH_RCA_MAX_DEPTH"); v != "" {
		if depth, err := strconv.Atoi(v); err == nil && depth > 0 {
			cfg.Analysis.MaxDepth = depth
		}
	}
	if v := os.Getenv("GRAPH_RCA_CORRELATION_WINDOW"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Correlation.Window = d
		}
	}
	if v := os.Getenv("GRAPH_RCA_GC_ENABLED"); v != "" {
		cfg.GC.Enabled = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GRAPH_RCA_GC_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.GC.Interval = d
		}
	}
	if v := os.Getenv("GRAPH_RCA_GC_BATCH_SIZE"); v != "" {
		if size, err := strconv.Atoi(v); err == nil && size > 0 {
			cfg.GC.BatchSize = size
		}
	}
	if v := os.Getenv("GRAPH_RCA_GC_DRY_RUN"); v != "" {
		cfg.GC.DryRun = strings.EqualFold(v, "true") || v == "1"
	}
	if v := os.Getenv("GRAPH_RCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("GRAPH_RCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	applyTTLOverrides(cfg)
}

// applyTTLOverrides reads GRAPH_RCA_TTL_<CATEGORY>=<hours> variables, e.g.
// GRAPH_RCA_TTL_POD=12 shortens the Pod retention to twelve hours. The
// category name is matched case-insensitively against the policy keys.
func applyTTLOverrides(cfg *Config) {
	const prefix = "GRAPH_RCA_TTL_"
	for _, entry := range os.Environ() {
		if !strings.HasPrefix(entry, prefix) {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			continue
		}
		hours, err := strconv.Atoi(value)
		if err != nil || hours <= 0 {
			continue
		}
		category := canonicalCategory(strings.TrimPrefix(key, prefix))
		if cfg.GC.TTLHours == nil {
			cfg.GC.TTLHours = make(map[string]int)
		}
		cfg.GC.TTLHours[category] = hours
	}
}

// canonicalCategory turns an env-var suffix like LOG_ENTRY or LOGENTRY into
// the store label form (LogEntry is special-cased; everything else is
// capitalized, e.g. POD -> Pod).
func canonicalCategory(suffix string) string {
	normalized := strings.ReplaceAll(strings.ToUpper(suffix), "_", "")
	if normalized == "LOGENTRY" {
		return "LogEntry"
	}
	lower := strings.ToLower(normalized)
	if lower == "" {
		return lower
	}
	return strings.ToUpper(lower[:1]) + lower[1:]
}
