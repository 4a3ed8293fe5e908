package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/aiopstack/graph-rca/internal/analyzer"
	"github.com/aiopstack/graph-rca/internal/models"
)

// Neo4jConfig holds connection parameters for the topology database.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	Database string
	// Timeout bounds every store-facing operation. Defaults to 30s.
	Timeout time.Duration
}

// Neo4jStore implements Store against a Neo4j topology database.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewNeo4jStore connects to Neo4j and verifies connectivity, retrying with
// exponential backoff so the service survives the database starting later
// than it does.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig, logger *slog.Logger) (*Neo4jStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	verify := func() error {
		if err := driver.VerifyConnectivity(ctx); err != nil {
			logger.Warn("neo4j not reachable yet, retrying", slog.String("uri", cfg.URI), slog.Any("error", err))
			return err
		}
		return nil
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 9), ctx)
	if err := backoff.Retry(verify, policy); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}
	logger.Info("connected to neo4j", slog.String("uri", cfg.URI), slog.String("database", database))

	return &Neo4jStore{driver: driver, database: database, timeout: timeout, logger: logger}, nil
}

// Close releases the underlying driver.
func (s *Neo4jStore) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

// ListNodes loads all device nodes with their attributes.
func (s *Neo4jStore) ListNodes(ctx context.Context) ([]models.Node, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (d:Device)
			RETURN d.urn AS urn, d.name AS name, d.ip AS ip,
			       d.type AS type, d.site AS site, d.last_seen AS last_seen
		`
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, queryErr("list nodes", err)
	}

	var nodes []models.Node
	for _, record := range records.([]*neo4j.Record) {
		name := stringValue(record, "name")
		id := stringValue(record, "urn")
		if id == "" {
			// Older topology writers only set name; fall back to it as identity.
			id = name
		}
		if id == "" {
			continue
		}
		nodes = append(nodes, models.Node{
			ID:       id,
			Name:     name,
			Category: NormalizeCategory(stringValue(record, "type")),
			Address:  stringValue(record, "ip"),
			Site:     stringValue(record, "site"),
			LastSeen: timeValue(record, "last_seen"),
		})
	}
	return nodes, nil
}

// ListEdges loads all directed dependency edges with their weights.
func (s *Neo4jStore) ListEdges(ctx context.Context) ([]models.Edge, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (src:Device)-[r:CONNECTS_TO]->(dst:Device)
			RETURN coalesce(src.urn, src.name) AS source, coalesce(dst.urn, dst.name) AS target,
			       src.name AS source_name, dst.name AS target_name, dst.type AS target_type,
			       r.type AS relation, r.criticality AS criticality,
			       r.source_port AS source_port, r.target_port AS target_port,
			       r.last_seen AS last_seen
		`
		result, err := tx.Run(ctx, query, nil)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, queryErr("list edges", err)
	}

	var edges []models.Edge
	for _, record := range records.([]*neo4j.Record) {
		source := stringValue(record, "source")
		target := stringValue(record, "target")
		if source == "" || target == "" {
			continue
		}
		// Older topology writers did not persist a weight; infer one from the
		// relation type and whatever naming/port hints the edge carries.
		criticality := floatValue(record, "criticality", -1)
		if criticality < 0 {
			criticality = analyzer.InferCriticality(
				models.RelationKind(stringValue(record, "relation")),
				analyzer.EdgeHints{
					SourceName:     stringValue(record, "source_name"),
					TargetName:     stringValue(record, "target_name"),
					SourcePort:     intValue(record, "source_port"),
					TargetPort:     intValue(record, "target_port"),
					TargetCategory: NormalizeCategory(stringValue(record, "target_type")),
				},
			)
		}
		if criticality > 1 {
			criticality = 1
		}
		edges = append(edges, models.Edge{
			SourceID:    source,
			TargetID:    target,
			Criticality: criticality,
			SourcePort:  intValue(record, "source_port"),
			TargetPort:  intValue(record, "target_port"),
			LastSeen:    timeValue(record, "last_seen"),
		})
	}
	return edges, nil
}

// ListCategories enumerates the node labels present in the database.
func (s *Neo4jStore) ListCategories(ctx context.Context) ([]models.NodeCategory, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	session := s.session(ctx)
	defer session.Close(ctx)

	records, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, "CALL db.labels() YIELD label RETURN label ORDER BY label", nil)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, queryErr("list categories", err)
	}

	var categories []models.NodeCategory
	for _, record := range records.([]*neo4j.Record) {
		if label := stringValue(record, "label"); label != "" {
			categories = append(categories, models.NodeCategory(label))
		}
	}
	return categories, nil
}

// CountExpired counts nodes of the category older than the cutoff.
func (s *Neo4jStore) CountExpired(ctx context.Context, category models.NodeCategory, cutoff time.Time) (int, error) {
	label, err := safeLabel(category)
	if err != nil {
		return 0, err
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	session := s.session(ctx)
	defer session.Close(ctx)

	count, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf("MATCH (n:%s) WHERE n.last_seen < $cutoff RETURN count(n) AS count", label)
		result, err := tx.Run(ctx, query, map[string]any{"cutoff": cutoff})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return recordCount(record), nil
	})
	if err != nil {
		return 0, queryErr(fmt.Sprintf("count expired %s", category), err)
	}
	return count.(int), nil
}

// DeleteExpiredBatch removes up to limit expired nodes of the category,
// detaching their relationships, and returns the number deleted.
func (s *Neo4jStore) DeleteExpiredBatch(ctx context.Context, category models.NodeCategory, cutoff time.Time, limit int) (int, error) {
	label, err := safeLabel(category)
	if err != nil {
		return 0, err
	}
	if limit <= 0 {
		limit = 1000
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()

	session := s.session(ctx)
	defer session.Close(ctx)

	count, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (n:%s)
			WHERE n.last_seen < $cutoff
			WITH n LIMIT $limit
			DETACH DELETE n
			RETURN count(n) AS count
		`, label)
		result, err := tx.Run(ctx, query, map[string]any{"cutoff": cutoff, "limit": limit})
		if err != nil {
			return nil, err
		}
		record, err := result.Single(ctx)
		if err != nil {
			return nil, err
		}
		return recordCount(record), nil
	})
	if err != nil {
		return 0, queryErr(fmt.Sprintf("delete expired %s", category), err)
	}
	return count.(int), nil
}

func (s *Neo4jStore) session(ctx context.Context) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: s.database})
}

func (s *Neo4jStore) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// queryErr classifies a failed store operation: deadline overruns map to
// ErrQueryTimeout, everything else to ErrStoreUnavailable.
func queryErr(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s: %v", ErrQueryTimeout, op, err)
	}
	return fmt.Errorf("%w: %s: %v", ErrStoreUnavailable, op, err)
}

// safeLabel rejects categories that cannot be used as a Cypher label.
// Labels cannot be parameterised, so the name is interpolated and must be
// restricted to identifier characters.
func safeLabel(category models.NodeCategory) (string, error) {
	label := string(category)
	if label == "" {
		return "", fmt.Errorf("empty node category")
	}
	for _, r := range label {
		if r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '_' {
			continue
		}
		return "", fmt.Errorf("invalid node category %q", category)
	}
	return label, nil
}

// NormalizeCategory maps free-form store type strings onto the canonical
// category set used by the analysis engines.
func NormalizeCategory(raw string) models.NodeCategory {
	switch strings.ToLower(raw) {
	case "service":
		return models.CategoryService
	case "database", "db":
		return models.CategoryDatabase
	case "cache":
		return models.CategoryCache
	case "messagequeue", "message-queue", "mq":
		return models.CategoryMessageQueue
	case "sidecar":
		return models.CategorySidecar
	case "router":
		return models.CategoryRouter
	case "switch":
		return models.CategorySwitch
	default:
		return models.CategoryUnknown
	}
}

func stringValue(record *neo4j.Record, key string) string {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return ""
	}
	str, _ := value.(string)
	return str
}

func floatValue(record *neo4j.Record, key string, fallback float64) float64 {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return fallback
	}
	switch v := value.(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	default:
		return fallback
	}
}

func intValue(record *neo4j.Record, key string) int {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return 0
	}
	switch v := value.(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

func timeValue(record *neo4j.Record, key string) time.Time {
	value, ok := record.Get(key)
	if !ok || value == nil {
		return time.Time{}
	}
	if t, ok := value.(time.Time); ok {
		return t
	}
	return time.Time{}
}

func recordCount(record *neo4j.Record) int {
	value, ok := record.Get("count")
	if !ok || value == nil {
		return 0
	}
	if n, ok := value.(int64); ok {
		return int(n)
	}
	return 0
}
