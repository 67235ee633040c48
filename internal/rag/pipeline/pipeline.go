package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/internal/llm"
	"github.com/medgraph/backend/internal/rag/parser"
	"github.com/medgraph/backend/internal/rag/retriever"
	"github.com/medgraph/backend/internal/vector/milvus"
	"github.com/medgraph/backend/pkg/logger"
)

// Stage names the observable steps of one Answer run.
type Stage string

const (
	StageParse        Stage = "PARSE"
	StageRetrieve     Stage = "RETRIEVE"
	StageContextBuild Stage = "CONTEXT_BUILD"
	StageGenerate     Stage = "GENERATE"
	StageDone         Stage = "DONE"
	StageDegraded     Stage = "DEGRADED"
)

// StageHook observes stage transitions. Details are JSON-safe
// primitives only.
type StageHook func(stage Stage, detail map[string]interface{})

// QueryParser is the slice of the parser the pipeline needs.
type QueryParser interface {
	Parse(ctx context.Context, query string) (*parser.ParsedQuery, error)
}

// GraphRetriever is the slice of the retriever the pipeline needs.
type GraphRetriever interface {
	Retrieve(ctx context.Context, req retriever.Request) ([]retriever.Result, error)
}

// SearchStore covers the keyword and semantic-pool lookups that do not
// go through the structural retriever.
type SearchStore interface {
	SearchByKeywords(ctx context.Context, keywords []string, limit int) ([]kg.Node, error)
	EntitiesWithDescriptions(ctx context.Context, limit int) ([]kg.Node, error)
}

// Completer is the slice of the LLM client used for generation.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Embedder produces embedding vectors for the vector branch.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// ChunkStore is the document-chunk vector store, optional.
type ChunkStore interface {
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]milvus.ChunkHit, error)
}

// Options tune a single Answer call.
type Options struct {
	UseGraph  bool
	UseVector bool
	TopK      int
	OnStage   StageHook
}

// Response is the final answer envelope. All values are JSON-safe
// primitives; Error is set only on degraded runs.
type Response struct {
	Query          string                   `json:"query"`
	Answer         string                   `json:"answer"`
	Sources        []map[string]interface{} `json:"sources"`
	Confidence     float64                  `json:"confidence"`
	ProcessingTime float64                  `json:"processing_time"`
	Metadata       map[string]interface{}   `json:"metadata"`
	Error          string                   `json:"error,omitempty"`
}

// Config holds the pipeline tunables.
type Config struct {
	TopK             int
	MaxGraphDepth    int
	MaxContextLength int
	SemanticPoolSize int
}

// Pipeline orchestrates parse, retrieve, context build and generation.
// Answer never fails; the worst outcome is a degraded response carrying
// the error text.
type Pipeline struct {
	parser    QueryParser
	retriever GraphRetriever
	store     SearchStore
	llm       Completer
	embedder  Embedder
	chunks    ChunkStore
	cfg       Config
}

func NewPipeline(qp QueryParser, gr GraphRetriever, store SearchStore, completer Completer, embedder Embedder, chunks ChunkStore, cfg Config) *Pipeline {
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.MaxGraphDepth <= 0 {
		cfg.MaxGraphDepth = 3
	}
	if cfg.MaxContextLength <= 0 {
		cfg.MaxContextLength = 3000
	}
	if cfg.SemanticPoolSize <= 0 {
		cfg.SemanticPoolSize = 100
	}
	return &Pipeline{
		parser:    qp,
		retriever: gr,
		store:     store,
		llm:       completer,
		embedder:  embedder,
		chunks:    chunks,
		cfg:       cfg,
	}
}

const degradedAnswer = "I am sorry, I could not produce a reliable answer to this question right now. Please try again, or rephrase the question."

// Answer runs the full pipeline for one query.
func (p *Pipeline) Answer(ctx context.Context, query string, opts Options) *Response {
	start := time.Now()

	topK := opts.TopK
	if topK <= 0 {
		topK = p.cfg.TopK
	}

	emit := func(stage Stage, detail map[string]interface{}) {
		if opts.OnStage != nil {
			opts.OnStage(stage, detail)
		}
	}

	emit(StageParse, map[string]interface{}{"query": query})
	parsed, err := p.parser.Parse(ctx, query)
	if err != nil {
		return p.degrade(query, start, emit, fmt.Errorf("failed to parse query: %w", err))
	}

	emit(StageRetrieve, map[string]interface{}{
		"entities": len(parsed.Entities),
		"intent":   parsed.Intent,
	})
	results := p.retrieve(ctx, parsed, opts, topK)

	emit(StageContextBuild, map[string]interface{}{"results": len(results)})
	contextText := buildContext(parsed.Intent, results, p.cfg.MaxContextLength)

	emit(StageGenerate, nil)
	answer, err := p.generate(ctx, parsed, contextText)
	if err != nil {
		return p.degrade(query, start, emit, fmt.Errorf("failed to generate answer: %w", err))
	}

	confidence := answerConfidence(parsed.Confidence, results)

	response := &Response{
		Query:          query,
		Answer:         answer,
		Sources:        sourcesFor(results),
		Confidence:     confidence,
		ProcessingTime: time.Since(start).Seconds(),
		Metadata: map[string]interface{}{
			"intent":        parsed.Intent,
			"question_type": parsed.QuestionType,
			"entities":      parsed.EntityNames(),
			"num_results":   len(results),
		},
	}

	emit(StageDone, map[string]interface{}{"confidence": confidence})

	logger.Info("Query answered",
		zap.String("intent", parsed.Intent),
		zap.Int("results", len(results)),
		zap.Float64("confidence", confidence),
		zap.Float64("seconds", response.ProcessingTime),
	)
	return response
}

// retrieve merges the graph, vector and keyword branches. Every branch
// is independently fault tolerant.
func (p *Pipeline) retrieve(ctx context.Context, parsed *parser.ParsedQuery, opts Options, topK int) []retriever.Result {
	var results []retriever.Result

	if opts.UseGraph && len(parsed.Entities) > 0 {
		graphResults, err := p.retriever.Retrieve(ctx, retriever.Request{
			Query:         parsed.NormalizedQuery,
			EntityNames:   parsed.EntityNames(),
			MaxDepth:      p.cfg.MaxGraphDepth,
			Limit:         2 * topK,
			RelationTypes: relationTypesFor(parsed.Intent),
		})
		if err != nil {
			logger.Warn("Graph retrieval failed", zap.Error(err))
		} else {
			results = append(results, graphResults...)
		}
	}

	if opts.UseVector && p.embedder != nil {
		results = append(results, p.vectorResults(ctx, parsed, topK)...)
	}

	if len(results) == 0 && len(parsed.Keywords) > 0 {
		nodes, err := p.store.SearchByKeywords(ctx, parsed.Keywords, 2*topK)
		if err != nil {
			logger.Warn("Keyword fallback failed", zap.Error(err))
		} else {
			for _, node := range nodes {
				results = append(results, retriever.Result{
					Node:      node,
					Relevance: 0.5,
					Source:    "keyword",
				})
			}
		}
	}

	results = retriever.DedupeAndRank(results)
	if len(results) > 2*topK {
		results = results[:2*topK]
	}
	return results
}

// vectorResults scores a capped pool of described graph entities by
// cosine similarity to the query embedding and, when a chunk store is
// configured, adds the nearest document chunks.
func (p *Pipeline) vectorResults(ctx context.Context, parsed *parser.ParsedQuery, topK int) []retriever.Result {
	queryVec, err := p.embedder.Embed(ctx, parsed.NormalizedQuery)
	if err != nil {
		logger.Warn("Query embedding failed, skipping vector branch", zap.Error(err))
		return nil
	}

	var results []retriever.Result

	pool, err := p.store.EntitiesWithDescriptions(ctx, p.cfg.SemanticPoolSize)
	if err != nil {
		logger.Warn("Semantic pool lookup failed", zap.Error(err))
	} else if len(pool) > 0 {
		descriptions := make([]string, len(pool))
		for i, node := range pool {
			descriptions[i] = node.Description
		}

		vectors, err := p.embedder.EmbedBatch(ctx, descriptions)
		if err != nil {
			logger.Warn("Description embedding failed", zap.Error(err))
		} else {
			for i, node := range pool {
				score := cosine(queryVec, vectors[i])
				if score <= 0 {
					continue
				}
				results = append(results, retriever.Result{
					Node:      node,
					Relevance: clamp01(score),
					Source:    "vector",
				})
			}
		}
	}

	if p.chunks != nil {
		hits, err := p.chunks.Search(ctx, queryVec, topK)
		if err != nil {
			logger.Warn("Chunk search failed", zap.Error(err))
		} else {
			for _, hit := range hits {
				results = append(results, retriever.Result{
					Node: kg.Node{
						ID:          "chunk:" + hit.ChunkID,
						Name:        "Document excerpt",
						Label:       "Chunk",
						Description: hit.Text,
					},
					Relevance: clamp01(hit.Score),
					Source:    "vector",
				})
			}
		}
	}

	return results
}

func (p *Pipeline) generate(ctx context.Context, parsed *parser.ParsedQuery, contextText string) (string, error) {
	userPrompt := fmt.Sprintf("%s\n\nQuestion: %s", contextText, parsed.NormalizedQuery)
	return p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: systemPromptFor(parsed.Intent),
		UserPrompt:   userPrompt,
	})
}

func (p *Pipeline) degrade(query string, start time.Time, emit func(Stage, map[string]interface{}), cause error) *Response {
	logger.Error("Pipeline degraded", zap.String("query", query), zap.Error(cause))
	emit(StageDegraded, map[string]interface{}{"error": cause.Error()})

	return &Response{
		Query:          query,
		Answer:         degradedAnswer,
		Sources:        []map[string]interface{}{},
		Confidence:     0,
		ProcessingTime: time.Since(start).Seconds(),
		Metadata:       map[string]interface{}{},
		Error:          cause.Error(),
	}
}

// answerConfidence combines result volume and quality with the parser's
// own confidence.
func answerConfidence(parseConfidence float64, results []retriever.Result) float64 {
	base := 0.5
	if len(results) >= 5 {
		base += 0.2
	} else if len(results) >= 3 {
		base += 0.1
	}

	if len(results) > 0 {
		var sum float64
		for _, result := range results {
			sum += result.Relevance
		}
		base += (sum / float64(len(results))) * 0.2
	}

	return clamp01((base + parseConfidence) / 2)
}

func sourcesFor(results []retriever.Result) []map[string]interface{} {
	sources := make([]map[string]interface{}, 0, len(results))
	for _, result := range results {
		source := map[string]interface{}{
			"name":      result.Node.Name,
			"type":      result.Node.Label,
			"relevance": result.Relevance,
			"source":    result.Source,
		}
		if result.Relation != "" {
			source["relation"] = result.Relation
		}
		if result.Hops > 0 {
			source["hops"] = result.Hops
		}
		sources = append(sources, source)
	}
	return sources
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
