package retriever

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgraph/backend/internal/kg"
)

type fakeStore struct {
	nodes       map[string]kg.Node
	neighbors   map[string][]kg.Neighbor
	paths       map[string]*kg.Path
	related     map[string][]kg.Node
	neighborErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		nodes:     make(map[string]kg.Node),
		neighbors: make(map[string][]kg.Neighbor),
		paths:     make(map[string]*kg.Path),
		related:   make(map[string][]kg.Node),
	}
}

func (s *fakeStore) FindEntities(_ context.Context, names []string) ([]kg.Node, error) {
	var out []kg.Node
	for _, name := range names {
		if node, ok := s.nodes[name]; ok {
			out = append(out, node)
		}
	}
	return out, nil
}

func (s *fakeStore) Neighbors(_ context.Context, name string, _ int) ([]kg.Neighbor, error) {
	if s.neighborErr != nil {
		return nil, s.neighborErr
	}
	return s.neighbors[name], nil
}

func (s *fakeStore) ShortestPath(_ context.Context, from, to string, _ int) (*kg.Path, error) {
	return s.paths[from+"|"+to], nil
}

func (s *fakeStore) RelatedByType(_ context.Context, name, _, _ string) ([]kg.Node, error) {
	return s.related[name], nil
}

func (s *fakeStore) SubgraphAround(_ context.Context, names []string, _ int) (kg.Subgraph, error) {
	sg := kg.Subgraph{Nodes: []kg.Node{}, Edges: []kg.Edge{}}
	for _, name := range names {
		if node, ok := s.nodes[name]; ok {
			sg.Nodes = append(sg.Nodes, node)
		}
	}
	return sg, nil
}

func (s *fakeStore) GraphData(_ context.Context, _ string, _, _ int) (kg.Subgraph, error) {
	return kg.Subgraph{Nodes: []kg.Node{}, Edges: []kg.Edge{}}, nil
}

func node(id, name, label string) kg.Node {
	return kg.Node{ID: id, Name: name, Label: label, Description: name + " description"}
}

func TestRetrieveEmptyEntityList(t *testing.T) {
	r := NewRetriever(newFakeStore())
	results, err := r.Retrieve(context.Background(), Request{Query: "anything"})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestRetrieveDirectAndNeighbors(t *testing.T) {
	store := newFakeStore()
	store.nodes["diabetes"] = node("1", "diabetes", "Disease")
	store.neighbors["diabetes"] = []kg.Neighbor{
		{Node: node("2", "thirst", "Symptom"), Relation: "HAS_SYMPTOM", Hops: 1},
		{Node: node("3", "retinopathy", "Complication"), Relation: "LEADS_TO", Hops: 2},
	}

	r := NewRetriever(store)
	results, err := r.Retrieve(context.Background(), Request{
		EntityNames: []string{"diabetes"},
		MaxDepth:    2,
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "diabetes", results[0].Node.Name)
	assert.InDelta(t, 1.0, results[0].Relevance, 1e-9)
	assert.InDelta(t, 1.0/1.3, results[1].Relevance, 1e-9)
	assert.InDelta(t, 1.0/1.6, results[2].Relevance, 1e-9)
}

func TestHopDecayIsStrictlyMonotonic(t *testing.T) {
	store := newFakeStore()
	store.neighbors["seed"] = []kg.Neighbor{
		{Node: node("1", "one", "Disease"), Relation: "CAUSES", Hops: 1},
		{Node: node("2", "two", "Disease"), Relation: "CAUSES", Hops: 2},
		{Node: node("3", "three", "Disease"), Relation: "CAUSES", Hops: 3},
	}

	r := NewRetriever(store)
	results, err := r.Retrieve(context.Background(), Request{
		EntityNames: []string{"seed"},
		MaxDepth:    3,
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i := 1; i < len(results); i++ {
		assert.Less(t, results[i].Relevance, results[i-1].Relevance)
	}
}

func TestRetrieveDeduplicatesKeepingMaxRelevance(t *testing.T) {
	store := newFakeStore()
	store.nodes["diabetes"] = node("1", "diabetes", "Disease")
	store.neighbors["thirst"] = []kg.Neighbor{
		{Node: node("1", "diabetes", "Disease"), Relation: "HAS_SYMPTOM", Hops: 1},
	}

	r := NewRetriever(store)
	results, err := r.Retrieve(context.Background(), Request{
		EntityNames: []string{"diabetes", "thirst"},
		Limit:       10,
	})
	require.NoError(t, err)

	count := 0
	for _, result := range results {
		if result.Node.Name == "diabetes" {
			count++
			assert.InDelta(t, 1.0, result.Relevance, 1e-9)
		}
	}
	assert.Equal(t, 1, count)
}

func TestRetrieveOutputSortedAndUnique(t *testing.T) {
	store := newFakeStore()
	store.nodes["a"] = node("1", "a", "Disease")
	store.nodes["b"] = node("2", "b", "Disease")
	store.neighbors["a"] = []kg.Neighbor{
		{Node: node("3", "c", "Symptom"), Relation: "HAS_SYMPTOM", Hops: 1},
	}
	store.paths["a|b"] = &kg.Path{
		Start: node("1", "a", "Disease"),
		End:   node("2", "b", "Disease"),
		Hops:  []kg.PathHop{{FromName: "a", Relation: "CAUSES", ToName: "b"}},
	}

	r := NewRetriever(store)
	results, err := r.Retrieve(context.Background(), Request{
		EntityNames: []string{"a", "b"},
		Limit:       10,
	})
	require.NoError(t, err)

	assert.True(t, sort.SliceIsSorted(results, func(i, j int) bool {
		return results[i].Relevance >= results[j].Relevance
	}))

	seen := make(map[string]struct{})
	for _, result := range results {
		_, dup := seen[result.Node.ID]
		assert.False(t, dup, "duplicate node %s", result.Node.ID)
		seen[result.Node.ID] = struct{}{}
	}
}

func TestRetrievePathRelevance(t *testing.T) {
	store := newFakeStore()
	store.paths["a|b"] = &kg.Path{
		Start: node("1", "a", "Disease"),
		End:   node("2", "b", "Disease"),
		Hops: []kg.PathHop{
			{FromName: "a", Relation: "CAUSES", ToName: "x"},
			{FromName: "x", Relation: "LEADS_TO", ToName: "b"},
		},
	}

	r := NewRetriever(store)
	results, err := r.Retrieve(context.Background(), Request{
		EntityNames: []string{"a", "b"},
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 1.0/1.4, results[0].Relevance, 1e-9)
	assert.Equal(t, "path", results[0].Source)
}

func TestRetrieveSurvivesSubSearchFailure(t *testing.T) {
	store := newFakeStore()
	store.nodes["diabetes"] = node("1", "diabetes", "Disease")
	store.neighborErr = errors.New("traversal timeout")

	r := NewRetriever(store)
	results, err := r.Retrieve(context.Background(), Request{
		EntityNames: []string{"diabetes"},
		Limit:       10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "direct", results[0].Source)
}

func TestRetrieveByRelationFixedRelevance(t *testing.T) {
	store := newFakeStore()
	store.related["diabetes"] = []kg.Node{node("2", "metformin", "Medicine")}

	r := NewRetriever(store)
	results := r.RetrieveByRelation(context.Background(), []string{"diabetes"}, "USES_MEDICINE", "out")
	require.Len(t, results, 1)
	assert.InDelta(t, 0.8, results[0].Relevance, 1e-9)
	assert.Equal(t, "USES_MEDICINE", results[0].Relation)
}

func TestFormatResultsBlockGranularTruncation(t *testing.T) {
	results := []Result{
		{Node: kg.Node{Name: "diabetes", Label: "Disease", Description: "chronic metabolic disease"}, Source: "direct", Relevance: 1.0},
		{Node: kg.Node{Name: "thirst", Label: "Symptom", Description: "excessive thirst"}, Source: "neighbor", Relation: "HAS_SYMPTOM", Hops: 1, Relevance: 0.7},
		{Node: kg.Node{Name: "metformin", Label: "Medicine", Description: "first line oral drug"}, Source: "relation", Relation: "USES_MEDICINE", Relevance: 0.8},
	}

	full := FormatResultsForContext(results, 10000)
	require.NotEmpty(t, full)
	blocks := len(splitBlocks(full))
	require.Equal(t, 3, blocks)

	truncated := FormatResultsForContext(results, len(full)-1)
	assert.Less(t, len(truncated), len(full))

	for _, block := range splitBlocks(truncated) {
		assert.Contains(t, splitBlocks(full), block, "truncation must drop whole blocks only")
	}
}

func splitBlocks(s string) []string {
	if s == "" {
		return nil
	}
	var blocks []string
	start := 0
	for i := 0; i < len(s); i++ {
		if s[i] == '\n' {
			blocks = append(blocks, s[start:i])
			start = i + 1
		}
	}
	return append(blocks, s[start:])
}
