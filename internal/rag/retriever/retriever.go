package retriever

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/pkg/logger"
)

const (
	maxDepthLimit     = 3
	maxPathLength     = 5
	relationRelevance = 0.8
)

// GraphStore is the slice of the graph client the retriever reads
// through.
type GraphStore interface {
	FindEntities(ctx context.Context, names []string) ([]kg.Node, error)
	Neighbors(ctx context.Context, name string, depth int) ([]kg.Neighbor, error)
	ShortestPath(ctx context.Context, from, to string, maxLen int) (*kg.Path, error)
	RelatedByType(ctx context.Context, name, relationType, direction string) ([]kg.Node, error)
	SubgraphAround(ctx context.Context, names []string, depth int) (kg.Subgraph, error)
	GraphData(ctx context.Context, label string, limit, offset int) (kg.Subgraph, error)
}

// Result is one retrieved graph fact with its relevance score.
type Result struct {
	Node      kg.Node  `json:"node"`
	Relevance float64  `json:"relevance"`
	Source    string   `json:"source"`
	Relation  string   `json:"relation,omitempty"`
	Hops      int      `json:"hops,omitempty"`
	Path      *kg.Path `json:"path,omitempty"`
}

// Request bounds one retrieval run. RelationTypes optionally adds a
// typed-edge lookup on top of the structural searches.
type Request struct {
	Query         string
	EntityNames   []string
	MaxDepth      int
	Limit         int
	RelationTypes []string
}

// Retriever runs the graph-side searches for the pipeline. Every
// sub-search is independently fault tolerant; a failing one contributes
// nothing instead of failing the run.
type Retriever struct {
	store GraphStore
}

func NewRetriever(store GraphStore) *Retriever {
	return &Retriever{store: store}
}

// Retrieve combines direct match, multi-hop neighborhood, pairwise
// shortest paths and optional relation-typed lookups, deduplicates by
// node keeping the best relevance, and returns the top results sorted
// by relevance.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]Result, error) {
	if len(req.EntityNames) == 0 {
		return []Result{}, nil
	}

	depth := req.MaxDepth
	if depth <= 0 || depth > maxDepthLimit {
		depth = maxDepthLimit
	}
	limit := req.Limit
	if limit <= 0 {
		limit = 20
	}

	var results []Result
	results = append(results, r.directMatches(ctx, req.EntityNames)...)
	results = append(results, r.neighborMatches(ctx, req.EntityNames, depth)...)
	results = append(results, r.pathMatches(ctx, req.EntityNames)...)
	for _, relType := range req.RelationTypes {
		results = append(results, r.RetrieveByRelation(ctx, req.EntityNames, relType, "both")...)
	}

	results = DedupeAndRank(results)
	if len(results) > limit {
		results = results[:limit]
	}

	logger.Debug("Graph retrieval completed",
		zap.Int("entities", len(req.EntityNames)),
		zap.Int("results", len(results)),
	)
	return results, nil
}

func (r *Retriever) directMatches(ctx context.Context, names []string) []Result {
	nodes, err := r.store.FindEntities(ctx, names)
	if err != nil {
		logger.Warn("Direct entity lookup failed", zap.Error(err))
		return nil
	}

	results := make([]Result, 0, len(nodes))
	for _, node := range nodes {
		results = append(results, Result{
			Node:      node,
			Relevance: 1.0,
			Source:    "direct",
		})
	}
	return results
}

func (r *Retriever) neighborMatches(ctx context.Context, names []string, depth int) []Result {
	var results []Result
	for _, name := range names {
		neighbors, err := r.store.Neighbors(ctx, name, depth)
		if err != nil {
			logger.Warn("Neighbor lookup failed", zap.String("entity", name), zap.Error(err))
			continue
		}
		for _, neighbor := range neighbors {
			hops := neighbor.Hops
			if hops < 1 {
				hops = 1
			}
			results = append(results, Result{
				Node:      neighbor.Node,
				Relevance: 1.0 / (1.0 + 0.3*float64(hops)),
				Source:    "neighbor",
				Relation:  neighbor.Relation,
				Hops:      hops,
			})
		}
	}
	return results
}

func (r *Retriever) pathMatches(ctx context.Context, names []string) []Result {
	var results []Result
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			path, err := r.store.ShortestPath(ctx, names[i], names[j], maxPathLength)
			if err != nil {
				logger.Warn("Shortest path lookup failed",
					zap.String("from", names[i]),
					zap.String("to", names[j]),
					zap.Error(err),
				)
				continue
			}
			if path == nil || len(path.Hops) == 0 {
				continue
			}
			results = append(results, Result{
				Node:      path.End,
				Relevance: 1.0 / (1.0 + 0.2*float64(len(path.Hops))),
				Source:    "path",
				Hops:      len(path.Hops),
				Path:      path,
			})
		}
	}
	return results
}

// RetrieveByRelation looks up nodes connected to the given entities
// over one relation type. Direction is "out", "in" or "both".
func (r *Retriever) RetrieveByRelation(ctx context.Context, names []string, relationType, direction string) []Result {
	var results []Result
	for _, name := range names {
		nodes, err := r.store.RelatedByType(ctx, name, relationType, direction)
		if err != nil {
			logger.Warn("Relation-typed lookup failed",
				zap.String("entity", name),
				zap.String("relation", relationType),
				zap.Error(err),
			)
			continue
		}
		for _, node := range nodes {
			results = append(results, Result{
				Node:      node,
				Relevance: relationRelevance,
				Source:    "relation",
				Relation:  kg.SanitizeRelationType(relationType),
			})
		}
	}
	return results
}

// RetrieveSubgraph returns the node/edge neighborhood of the given
// entities for visualization.
func (r *Retriever) RetrieveSubgraph(ctx context.Context, entityNames []string, depth int) (kg.Subgraph, error) {
	if depth <= 0 || depth > maxDepthLimit {
		depth = 1
	}
	return r.store.SubgraphAround(ctx, entityNames, depth)
}

// GraphData pages through the whole graph, optionally filtered to one
// label.
func (r *Retriever) GraphData(ctx context.Context, label string, limit, offset int) (kg.Subgraph, error) {
	return r.store.GraphData(ctx, label, limit, offset)
}

// DedupeAndRank collapses results onto one entry per node, keeping the
// highest relevance, and sorts by relevance descending with name as the
// tiebreaker.
func DedupeAndRank(results []Result) []Result {
	index := make(map[string]int, len(results))
	deduped := make([]Result, 0, len(results))

	for _, result := range results {
		key := result.Node.ID
		if key == "" {
			key = strings.ToLower(result.Node.Name)
		}
		if i, dup := index[key]; dup {
			if result.Relevance > deduped[i].Relevance {
				result.Node = mergeNode(deduped[i].Node, result.Node)
				deduped[i] = result
			}
			continue
		}
		index[key] = len(deduped)
		deduped = append(deduped, result)
	}

	sort.SliceStable(deduped, func(i, j int) bool {
		if deduped[i].Relevance != deduped[j].Relevance {
			return deduped[i].Relevance > deduped[j].Relevance
		}
		return deduped[i].Node.Name < deduped[j].Node.Name
	})
	return deduped
}

func mergeNode(prev, next kg.Node) kg.Node {
	if next.Description == "" {
		next.Description = prev.Description
	}
	if next.Label == "" {
		next.Label = prev.Label
	}
	return next
}
