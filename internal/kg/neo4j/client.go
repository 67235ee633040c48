package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/pkg/circuitbreaker"
	"github.com/medgraph/backend/pkg/logger"
	"github.com/medgraph/backend/pkg/retry"
)

const (
	maxTraversalDepth = 3
	maxPathLength     = 5
)

// Client wraps the neo4j driver with a circuit breaker and retry so
// transient connectivity problems never surface as hard failures to the
// builder or retriever.
type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(uri, username, password, database string) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		uri,
		neo4j.BasicAuth(username, password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.New("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	if database == "" {
		database = "neo4j"
	}

	logger.Info("Neo4j client initialized", zap.String("uri", uri))

	return &Client{
		driver:      driver,
		database:    database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// ExecuteQuery runs a read query and returns each record as a map of
// JSON-safe values.
func (c *Client) ExecuteQuery(ctx context.Context, cypher string, params map[string]interface{}) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		rows = rows[:0]

		result, err := session.Run(ctx, cypher, params)
		if err != nil {
			return fmt.Errorf("failed to run query: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()
			row := make(map[string]interface{}, len(record.Keys))
			for _, key := range record.Keys {
				value, _ := record.Get(key)
				row[key] = normalizeValue(value)
			}
			rows = append(rows, row)
		}

		if err = result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}
		return nil
	})

	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ExecuteWrite runs a write query and reports what it changed.
func (c *Client) ExecuteWrite(ctx context.Context, cypher string, params map[string]interface{}) (kg.Counters, error) {
	var counters kg.Counters

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, cypher, params)
		if err != nil {
			return fmt.Errorf("failed to run write: %w", err)
		}

		summary, err := result.Consume(ctx)
		if err != nil {
			return fmt.Errorf("failed to consume write result: %w", err)
		}

		sc := summary.Counters()
		counters = kg.Counters{
			NodesCreated:         sc.NodesCreated(),
			RelationshipsCreated: sc.RelationshipsCreated(),
			PropertiesSet:        sc.PropertiesSet(),
		}
		return nil
	})

	if err != nil {
		return kg.Counters{}, err
	}
	return counters, nil
}

// MergeEntity upserts an entity node keyed by name under its sanitized
// label. Returns whether the node was created rather than updated.
func (c *Client) MergeEntity(ctx context.Context, entity kg.Entity) (bool, error) {
	label := kg.SanitizeLabel(entity.Type)

	query := fmt.Sprintf(`
		MERGE (e:%s {name: $name})
		ON CREATE SET e.type = $type,
		              e.description = $description,
		              e.created_at = timestamp()
		ON MATCH SET e.updated_at = timestamp(),
		             e.description = CASE WHEN $description <> ''
		                                  THEN $description
		                                  ELSE coalesce(e.description, '') END
	`, label)

	counters, err := c.ExecuteWrite(ctx, query, map[string]interface{}{
		"name":        entity.Name,
		"type":        label,
		"description": entity.Description,
	})
	if err != nil {
		return false, fmt.Errorf("failed to merge entity %q: %w", entity.Name, err)
	}

	logger.Debug("Entity merged",
		zap.String("name", entity.Name),
		zap.String("label", label),
		zap.Bool("created", counters.NodesCreated > 0),
	)

	return counters.NodesCreated > 0, nil
}

// MergeRelation upserts a typed edge between two existing nodes matched
// by name. Missing endpoints make the MERGE a no-op with zero counters,
// not an error.
func (c *Client) MergeRelation(ctx context.Context, relation kg.Relation) (bool, error) {
	relType := kg.SanitizeRelationType(relation.Predicate)

	query := fmt.Sprintf(`
		MATCH (s {name: $subject})
		MATCH (o {name: $object})
		MERGE (s)-[r:%s]->(o)
		ON CREATE SET r.created_at = timestamp()
		ON MATCH SET r.updated_at = timestamp()
	`, relType)

	counters, err := c.ExecuteWrite(ctx, query, map[string]interface{}{
		"subject": relation.Subject,
		"object":  relation.Object,
	})
	if err != nil {
		return false, fmt.Errorf("failed to merge relation %s-%s->%s: %w",
			relation.Subject, relType, relation.Object, err)
	}

	return counters.RelationshipsCreated > 0, nil
}

// FindEntities returns nodes whose name exactly matches any of names.
func (c *Client) FindEntities(ctx context.Context, names []string) ([]kg.Node, error) {
	if len(names) == 0 {
		return nil, nil
	}

	query := `
		MATCH (n)
		WHERE n.name IN $names
		RETURN elementId(n) AS id, n.name AS name, labels(n)[0] AS label,
		       coalesce(n.description, '') AS description
	`

	rows, err := c.ExecuteQuery(ctx, query, map[string]interface{}{"names": names})
	if err != nil {
		return nil, fmt.Errorf("failed to find entities: %w", err)
	}
	return rowsToNodes(rows), nil
}

// Neighbors returns nodes within depth hops of the named entity, each
// annotated with its minimal hop distance and the relation on the last
// hop of a shortest route.
func (c *Client) Neighbors(ctx context.Context, name string, depth int) ([]kg.Neighbor, error) {
	depth = clampDepth(depth)

	query := fmt.Sprintf(`
		MATCH (s {name: $name})
		MATCH path = (s)-[*1..%d]-(n)
		WHERE n <> s
		WITH n, path, length(path) AS hops
		ORDER BY hops ASC
		WITH n, min(hops) AS hops, collect(path)[0] AS p
		RETURN elementId(n) AS id, n.name AS name, labels(n)[0] AS label,
		       coalesce(n.description, '') AS description,
		       type(relationships(p)[-1]) AS relation, hops
		ORDER BY hops ASC, name ASC
		LIMIT 50
	`, depth)

	rows, err := c.ExecuteQuery(ctx, query, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to get neighbors of %q: %w", name, err)
	}

	neighbors := make([]kg.Neighbor, 0, len(rows))
	for _, row := range rows {
		neighbors = append(neighbors, kg.Neighbor{
			Node:     rowToNode(row),
			Relation: asString(row["relation"]),
			Hops:     asInt(row["hops"]),
		})
	}
	return neighbors, nil
}

// ShortestPath returns the shortest path between two named entities,
// bounded by maxLen hops. A missing path is (nil, nil).
func (c *Client) ShortestPath(ctx context.Context, from, to string, maxLen int) (*kg.Path, error) {
	if maxLen <= 0 || maxLen > maxPathLength {
		maxLen = maxPathLength
	}

	query := fmt.Sprintf(`
		MATCH (a {name: $from}), (b {name: $to})
		MATCH p = shortestPath((a)-[*..%d]-(b))
		RETURN p
		LIMIT 1
	`, maxLen)

	var path *kg.Path
	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		path = nil

		result, err := session.Run(ctx, query, map[string]interface{}{
			"from": from,
			"to":   to,
		})
		if err != nil {
			return fmt.Errorf("failed to run shortest path query: %w", err)
		}

		if result.Next(ctx) {
			value, _ := result.Record().Get("p")
			if p, ok := value.(dbtype.Path); ok {
				converted := convertPath(p)
				path = &converted
			}
		}
		return result.Err()
	})

	if err != nil {
		return nil, fmt.Errorf("failed to find path %q -> %q: %w", from, to, err)
	}
	return path, nil
}

// RelatedByType returns nodes connected to the named entity over the
// given relation type. Direction is "out", "in" or "both".
func (c *Client) RelatedByType(ctx context.Context, name, relationType, direction string) ([]kg.Node, error) {
	relType := kg.SanitizeRelationType(relationType)

	var pattern string
	switch direction {
	case "out":
		pattern = fmt.Sprintf("(s {name: $name})-[r:%s]->(n)", relType)
	case "in":
		pattern = fmt.Sprintf("(s {name: $name})<-[r:%s]-(n)", relType)
	default:
		pattern = fmt.Sprintf("(s {name: $name})-[r:%s]-(n)", relType)
	}

	query := fmt.Sprintf(`
		MATCH %s
		RETURN DISTINCT elementId(n) AS id, n.name AS name, labels(n)[0] AS label,
		       coalesce(n.description, '') AS description
		ORDER BY name ASC
		LIMIT 50
	`, pattern)

	rows, err := c.ExecuteQuery(ctx, query, map[string]interface{}{"name": name})
	if err != nil {
		return nil, fmt.Errorf("failed to get %s relations of %q: %w", relType, name, err)
	}
	return rowsToNodes(rows), nil
}

// SearchByKeywords matches nodes whose name or description contains any
// keyword, case-insensitive.
func (c *Client) SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]kg.Node, error) {
	if len(keywords) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}

	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		lowered = append(lowered, toLower(k))
	}

	query := `
		MATCH (n)
		WHERE any(k IN $keywords WHERE toLower(n.name) CONTAINS k
		      OR toLower(coalesce(n.description, '')) CONTAINS k)
		RETURN elementId(n) AS id, n.name AS name, labels(n)[0] AS label,
		       coalesce(n.description, '') AS description
		LIMIT $limit
	`

	rows, err := c.ExecuteQuery(ctx, query, map[string]interface{}{
		"keywords": lowered,
		"limit":    limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search by keywords: %w", err)
	}
	return rowsToNodes(rows), nil
}

// EntitiesWithDescriptions returns a capped pool of described nodes for
// semantic scoring.
func (c *Client) EntitiesWithDescriptions(ctx context.Context, limit int) ([]kg.Node, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `
		MATCH (n)
		WHERE n.description IS NOT NULL AND n.description <> ''
		RETURN elementId(n) AS id, n.name AS name, labels(n)[0] AS label,
		       n.description AS description
		LIMIT $limit
	`

	rows, err := c.ExecuteQuery(ctx, query, map[string]interface{}{"limit": limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list described entities: %w", err)
	}
	return rowsToNodes(rows), nil
}

// SubgraphAround collects the nodes and edges within depth hops of the
// seed entities.
func (c *Client) SubgraphAround(ctx context.Context, names []string, depth int) (kg.Subgraph, error) {
	if len(names) == 0 {
		return kg.Subgraph{Nodes: []kg.Node{}, Edges: []kg.Edge{}}, nil
	}
	depth = clampDepth(depth)

	query := fmt.Sprintf(`
		MATCH (s)
		WHERE s.name IN $names
		OPTIONAL MATCH p = (s)-[*1..%d]-(n)
		RETURN s, collect(p) AS paths
	`, depth)

	subgraph := kg.Subgraph{Nodes: []kg.Node{}, Edges: []kg.Edge{}}
	seenNodes := make(map[string]struct{})
	seenEdges := make(map[string]struct{})

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		result, err := session.Run(ctx, query, map[string]interface{}{"names": names})
		if err != nil {
			return fmt.Errorf("failed to run subgraph query: %w", err)
		}

		for result.Next(ctx) {
			record := result.Record()

			if value, ok := record.Get("s"); ok {
				if node, ok := value.(dbtype.Node); ok {
					addSubgraphNode(&subgraph, seenNodes, node)
				}
			}

			value, _ := record.Get("paths")
			paths, _ := value.([]interface{})
			for _, raw := range paths {
				p, ok := raw.(dbtype.Path)
				if !ok {
					continue
				}
				for _, node := range p.Nodes {
					addSubgraphNode(&subgraph, seenNodes, node)
				}
				for _, rel := range p.Relationships {
					key := rel.ElementId
					if _, dup := seenEdges[key]; dup {
						continue
					}
					seenEdges[key] = struct{}{}
					subgraph.Edges = append(subgraph.Edges, kg.Edge{
						Source: rel.StartElementId,
						Target: rel.EndElementId,
						Type:   rel.Type,
					})
				}
			}
		}
		return result.Err()
	})

	if err != nil {
		return kg.Subgraph{}, fmt.Errorf("failed to build subgraph: %w", err)
	}
	return subgraph, nil
}

// GraphData pages through the graph for visualization. An empty label
// means all nodes.
func (c *Client) GraphData(ctx context.Context, label string, limit, offset int) (kg.Subgraph, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}

	match := "MATCH (n)"
	if label != "" {
		match = fmt.Sprintf("MATCH (n:%s)", kg.SanitizeLabel(label))
	}

	nodeQuery := match + `
		RETURN elementId(n) AS id, n.name AS name, labels(n)[0] AS label,
		       coalesce(n.description, '') AS description
		ORDER BY name ASC
		SKIP $offset LIMIT $limit
	`

	rows, err := c.ExecuteQuery(ctx, nodeQuery, map[string]interface{}{
		"offset": offset,
		"limit":  limit,
	})
	if err != nil {
		return kg.Subgraph{}, fmt.Errorf("failed to page graph nodes: %w", err)
	}

	nodes := rowsToNodes(rows)
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}

	subgraph := kg.Subgraph{Nodes: nodes, Edges: []kg.Edge{}}
	if len(ids) == 0 {
		return subgraph, nil
	}

	edgeQuery := `
		MATCH (n)-[r]->(m)
		WHERE elementId(n) IN $ids AND elementId(m) IN $ids
		RETURN elementId(n) AS source, elementId(m) AS target, type(r) AS type
	`

	edgeRows, err := c.ExecuteQuery(ctx, edgeQuery, map[string]interface{}{"ids": ids})
	if err != nil {
		return kg.Subgraph{}, fmt.Errorf("failed to page graph edges: %w", err)
	}

	for _, row := range edgeRows {
		subgraph.Edges = append(subgraph.Edges, kg.Edge{
			Source: asString(row["source"]),
			Target: asString(row["target"]),
			Type:   asString(row["type"]),
		})
	}
	return subgraph, nil
}

// Stats returns node and relationship totals.
func (c *Client) Stats(ctx context.Context) (map[string]interface{}, error) {
	rows, err := c.ExecuteQuery(ctx, `
		MATCH (n)
		OPTIONAL MATCH ()-[r]->()
		RETURN count(DISTINCT n) AS nodes, count(DISTINCT r) AS relations
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get graph stats: %w", err)
	}
	if len(rows) == 0 {
		return map[string]interface{}{"nodes": 0, "relations": 0}, nil
	}
	return rows[0], nil
}

func clampDepth(depth int) int {
	if depth <= 0 {
		return 1
	}
	if depth > maxTraversalDepth {
		return maxTraversalDepth
	}
	return depth
}

func addSubgraphNode(sg *kg.Subgraph, seen map[string]struct{}, node dbtype.Node) {
	if _, dup := seen[node.ElementId]; dup {
		return
	}
	seen[node.ElementId] = struct{}{}
	sg.Nodes = append(sg.Nodes, dbNodeToNode(node))
}

func convertPath(p dbtype.Path) kg.Path {
	path := kg.Path{}
	if len(p.Nodes) > 0 {
		path.Start = dbNodeToNode(p.Nodes[0])
		path.End = dbNodeToNode(p.Nodes[len(p.Nodes)-1])
	}

	nodeByID := make(map[string]dbtype.Node, len(p.Nodes))
	for _, n := range p.Nodes {
		nodeByID[n.ElementId] = n
	}

	for _, rel := range p.Relationships {
		from := nodeByID[rel.StartElementId]
		to := nodeByID[rel.EndElementId]
		path.Hops = append(path.Hops, kg.PathHop{
			FromName: propString(from.Props, "name"),
			Relation: rel.Type,
			ToName:   propString(to.Props, "name"),
		})
	}
	return path
}

func dbNodeToNode(n dbtype.Node) kg.Node {
	label := ""
	if len(n.Labels) > 0 {
		label = n.Labels[0]
	}
	return kg.Node{
		ID:          n.ElementId,
		Name:        propString(n.Props, "name"),
		Label:       label,
		Description: propString(n.Props, "description"),
	}
}

func propString(props map[string]interface{}, key string) string {
	if props == nil {
		return ""
	}
	return asString(props[key])
}

func rowsToNodes(rows []map[string]interface{}) []kg.Node {
	nodes := make([]kg.Node, 0, len(rows))
	for _, row := range rows {
		nodes = append(nodes, rowToNode(row))
	}
	return nodes
}

func rowToNode(row map[string]interface{}) kg.Node {
	return kg.Node{
		ID:          asString(row["id"]),
		Name:        asString(row["name"]),
		Label:       asString(row["label"]),
		Description: asString(row["description"]),
	}
}
