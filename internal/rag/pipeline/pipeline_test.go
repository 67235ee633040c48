package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/internal/llm"
	"github.com/medgraph/backend/internal/rag/parser"
	"github.com/medgraph/backend/internal/rag/retriever"
	"github.com/medgraph/backend/internal/vector/milvus"
)

type fakeParser struct {
	result *parser.ParsedQuery
	err    error
}

func (f *fakeParser) Parse(_ context.Context, query string) (*parser.ParsedQuery, error) {
	if f.err != nil {
		return nil, f.err
	}
	result := *f.result
	result.OriginalQuery = query
	return &result, nil
}

type fakeRetriever struct {
	results []retriever.Result
	err     error
	lastReq retriever.Request
}

func (f *fakeRetriever) Retrieve(_ context.Context, req retriever.Request) ([]retriever.Result, error) {
	f.lastReq = req
	return f.results, f.err
}

type fakeSearchStore struct {
	keywordNodes []kg.Node
	poolNodes    []kg.Node
}

func (f *fakeSearchStore) SearchByKeywords(_ context.Context, _ []string, _ int) ([]kg.Node, error) {
	return f.keywordNodes, nil
}

func (f *fakeSearchStore) EntitiesWithDescriptions(_ context.Context, _ int) ([]kg.Node, error) {
	return f.poolNodes, nil
}

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	return f.response, f.err
}

type fakeEmbedder struct {
	queryVec []float32
	batch    [][]float32
	err      error
}

func (f *fakeEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return f.queryVec, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.batch[:len(texts)], nil
}

type fakeChunks struct {
	hits []milvus.ChunkHit
}

func (f *fakeChunks) Search(_ context.Context, _ []float32, _ int) ([]milvus.ChunkHit, error) {
	return f.hits, nil
}

func parsedDiabetes() *parser.ParsedQuery {
	return &parser.ParsedQuery{
		NormalizedQuery: "What are the symptoms of diabetes?",
		Entities:        []parser.Entity{{Name: "diabetes", Type: "Disease", Confidence: 0.9}},
		Intent:          "symptom",
		Keywords:        []string{"symptoms", "diabetes"},
		QuestionType:    "what",
		Confidence:      0.8,
	}
}

func graphResults(n int) []retriever.Result {
	results := make([]retriever.Result, 0, n)
	for i := 0; i < n; i++ {
		results = append(results, retriever.Result{
			Node:      kg.Node{ID: string(rune('a' + i)), Name: string(rune('a' + i)), Label: "Symptom"},
			Relevance: 1.0 - float64(i)*0.1,
			Source:    "neighbor",
			Relation:  "HAS_SYMPTOM",
			Hops:      1,
		})
	}
	return results
}

func TestAnswerHappyPath(t *testing.T) {
	ret := &fakeRetriever{results: graphResults(5)}
	p := NewPipeline(
		&fakeParser{result: parsedDiabetes()},
		ret,
		&fakeSearchStore{},
		&fakeCompleter{response: "Diabetes commonly causes thirst and fatigue."},
		nil, nil,
		Config{TopK: 5},
	)

	var stages []Stage
	resp := p.Answer(context.Background(), "What are the symptoms of diabetes?", Options{
		UseGraph: true,
		TopK:     5,
		OnStage: func(stage Stage, _ map[string]interface{}) {
			stages = append(stages, stage)
		},
	})

	require.NotNil(t, resp)
	assert.Empty(t, resp.Error)
	assert.Equal(t, "Diabetes commonly causes thirst and fatigue.", resp.Answer)
	assert.GreaterOrEqual(t, resp.Confidence, 0.0)
	assert.LessOrEqual(t, resp.Confidence, 1.0)
	assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)
	assert.Len(t, resp.Sources, 5)
	assert.Equal(t, []Stage{StageParse, StageRetrieve, StageContextBuild, StageGenerate, StageDone}, stages)

	// Intent-driven typed lookup reaches the retriever.
	assert.Equal(t, []string{"HAS_SYMPTOM"}, ret.lastReq.RelationTypes)
}

func TestAnswerConfidenceFormula(t *testing.T) {
	results := graphResults(5)
	var sum float64
	for _, r := range results {
		sum += r.Relevance
	}
	avg := sum / float64(len(results))

	p := NewPipeline(
		&fakeParser{result: parsedDiabetes()},
		&fakeRetriever{results: results},
		&fakeSearchStore{},
		&fakeCompleter{response: "answer"},
		nil, nil,
		Config{},
	)

	resp := p.Answer(context.Background(), "q", Options{UseGraph: true})
	want := ((0.5 + 0.2 + avg*0.2) + 0.8) / 2
	assert.InDelta(t, want, resp.Confidence, 1e-9)
}

func TestAnswerDegradesOnGenerationFailure(t *testing.T) {
	p := NewPipeline(
		&fakeParser{result: parsedDiabetes()},
		&fakeRetriever{results: graphResults(2)},
		&fakeSearchStore{},
		&fakeCompleter{err: errors.New("model unavailable")},
		nil, nil,
		Config{},
	)

	var stages []Stage
	resp := p.Answer(context.Background(), "q", Options{
		UseGraph: true,
		OnStage: func(stage Stage, _ map[string]interface{}) {
			stages = append(stages, stage)
		},
	})

	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Error)
	assert.Equal(t, degradedAnswer, resp.Answer)
	assert.Zero(t, resp.Confidence)
	assert.GreaterOrEqual(t, resp.ProcessingTime, 0.0)
	assert.Equal(t, StageDegraded, stages[len(stages)-1])
}

func TestAnswerKeywordFallback(t *testing.T) {
	store := &fakeSearchStore{keywordNodes: []kg.Node{
		{ID: "1", Name: "diabetes", Label: "Disease", Description: "chronic disease"},
	}}
	p := NewPipeline(
		&fakeParser{result: parsedDiabetes()},
		&fakeRetriever{results: nil},
		store,
		&fakeCompleter{response: "answer"},
		nil, nil,
		Config{},
	)

	resp := p.Answer(context.Background(), "q", Options{UseGraph: true})
	require.Len(t, resp.Sources, 1)
	assert.Equal(t, "keyword", resp.Sources[0]["source"])
	assert.InDelta(t, 0.5, resp.Sources[0]["relevance"].(float64), 1e-9)
}

func TestAnswerVectorBranchWithChunks(t *testing.T) {
	store := &fakeSearchStore{poolNodes: []kg.Node{
		{ID: "1", Name: "diabetes", Label: "Disease", Description: "chronic metabolic disease"},
		{ID: "2", Name: "asthma", Label: "Disease", Description: "airway disease"},
	}}
	embedder := &fakeEmbedder{
		queryVec: []float32{1, 0},
		batch:    [][]float32{{1, 0}, {0, 1}},
	}
	chunks := &fakeChunks{hits: []milvus.ChunkHit{
		{ChunkID: "c1", DocumentID: "d1", Text: "Diabetes management basics.", Score: 0.9},
	}}

	p := NewPipeline(
		&fakeParser{result: parsedDiabetes()},
		&fakeRetriever{},
		store,
		&fakeCompleter{response: "answer"},
		embedder,
		chunks,
		Config{},
	)

	resp := p.Answer(context.Background(), "q", Options{UseVector: true})
	require.NotEmpty(t, resp.Sources)

	names := make(map[string]bool)
	for _, s := range resp.Sources {
		names[s["name"].(string)] = true
		assert.Equal(t, "vector", s["source"])
	}
	assert.True(t, names["diabetes"])
	assert.True(t, names["Document excerpt"])
	// Orthogonal description contributes nothing.
	assert.False(t, names["asthma"])
}

func TestAnswerSourcesAreJSONSafe(t *testing.T) {
	p := NewPipeline(
		&fakeParser{result: parsedDiabetes()},
		&fakeRetriever{results: graphResults(3)},
		&fakeSearchStore{},
		&fakeCompleter{response: "answer"},
		nil, nil,
		Config{},
	)

	resp := p.Answer(context.Background(), "q", Options{UseGraph: true})
	_, err := json.Marshal(resp)
	require.NoError(t, err)
}

func TestAnswerNeverRaisesOnParserFailure(t *testing.T) {
	p := NewPipeline(
		&fakeParser{err: errors.New("bad state")},
		&fakeRetriever{},
		&fakeSearchStore{},
		&fakeCompleter{response: "answer"},
		nil, nil,
		Config{},
	)

	resp := p.Answer(context.Background(), "q", Options{UseGraph: true})
	require.NotNil(t, resp)
	assert.NotEmpty(t, resp.Error)
	assert.Zero(t, resp.Confidence)
}

func TestBuildContextRespectsBudget(t *testing.T) {
	results := graphResults(5)
	for i := range results {
		results[i].Node.Description = "a fairly long description of the finding that takes up context budget"
	}

	full := buildContext("symptom", results, 10000)
	small := buildContext("symptom", results, 200)

	assert.LessOrEqual(t, len(small), 200)
	assert.Less(t, len(small), len(full))
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Zero(t, cosine(nil, nil))
}
