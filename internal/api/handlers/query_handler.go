package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/cache/redis"
	"github.com/medgraph/backend/internal/metrics"
	"github.com/medgraph/backend/internal/rag/pipeline"
	"github.com/medgraph/backend/internal/storage/models"
	"github.com/medgraph/backend/internal/storage/sqlite"
	"github.com/medgraph/backend/pkg/logger"
	"github.com/medgraph/backend/pkg/utils"
)

type QueryHandler struct {
	pipeline *pipeline.Pipeline
	cache    *redis.Client
	db       *sqlite.Client
}

func NewQueryHandler(p *pipeline.Pipeline, cache *redis.Client, db *sqlite.Client) *QueryHandler {
	return &QueryHandler{
		pipeline: p,
		cache:    cache,
		db:       db,
	}
}

func (h *QueryHandler) HandleQuery(c *fiber.Ctx) error {
	var req struct {
		Query     string `json:"query"`
		UseGraph  *bool  `json:"use_graph"`
		UseVector *bool  `json:"use_vector"`
		TopK      int    `json:"top_k"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse request body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Query == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query is required",
		})
	}

	queryHash := utils.QueryHash(req.Query)
	if h.cache != nil {
		var cached pipeline.Response
		hit, err := h.cache.GetAnswer(c.Context(), queryHash, &cached)
		if err != nil {
			logger.Warn("Answer cache lookup failed", zap.Error(err))
		}
		if hit {
			metrics.CacheHits.WithLabelValues("hit").Inc()
			return c.JSON(cached)
		}
		metrics.CacheHits.WithLabelValues("miss").Inc()
	}

	opts := pipeline.Options{
		UseGraph:  true,
		UseVector: true,
		TopK:      req.TopK,
	}
	if req.UseGraph != nil {
		opts.UseGraph = *req.UseGraph
	}
	if req.UseVector != nil {
		opts.UseVector = *req.UseVector
	}

	response := h.pipeline.Answer(c.Context(), req.Query, opts)

	h.record(response)

	if h.cache != nil && response.Error == "" {
		if err := h.cache.SetAnswer(c.Context(), queryHash, response); err != nil {
			logger.Warn("Failed to cache answer", zap.Error(err))
		}
	}

	return c.JSON(response)
}

func (h *QueryHandler) GetQueryHistory(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)

	if h.db == nil {
		return c.JSON(fiber.Map{"history": []interface{}{}})
	}

	records, err := h.db.GetQueryHistory(limit)
	if err != nil {
		logger.Error("Failed to load query history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load query history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, r := range records {
		history = append(history, fiber.Map{
			"id":          r.ID,
			"query":       r.QueryText,
			"intent":      r.Intent,
			"answer":      r.Answer,
			"confidence":  r.Confidence,
			"num_results": r.NumResults,
			"latency_ms":  r.LatencyMS,
			"created_at":  r.CreatedAt.Format(time.RFC3339),
		})
	}
	return c.JSON(fiber.Map{"history": history})
}

// record persists the answered query and updates metrics, best effort.
func (h *QueryHandler) record(response *pipeline.Response) {
	status := "ok"
	if response.Error != "" {
		status = "degraded"
	}
	metrics.QueryTotal.WithLabelValues(status).Inc()
	metrics.ConfidenceScore.Observe(response.Confidence)

	intent, _ := response.Metadata["intent"].(string)
	metrics.QueryDuration.WithLabelValues(intent).Observe(response.ProcessingTime)

	if h.db == nil || response.Error != "" {
		return
	}

	queryID := uuid.NewString()
	record := &models.QueryRecord{
		ID:         queryID,
		QueryText:  response.Query,
		Intent:     intent,
		Answer:     response.Answer,
		Confidence: response.Confidence,
		NumResults: len(response.Sources),
		LatencyMS:  int(response.ProcessingTime * 1000),
		CreatedAt:  time.Now(),
	}
	if err := h.db.InsertQueryRecord(record); err != nil {
		logger.Warn("Failed to record query", zap.Error(err))
		return
	}

	sources := make([]models.QuerySource, 0, len(response.Sources))
	for _, s := range response.Sources {
		name, _ := s["name"].(string)
		sourceType, _ := s["source"].(string)
		relevance, _ := s["relevance"].(float64)
		sources = append(sources, models.QuerySource{
			Name:       name,
			SourceType: sourceType,
			Relevance:  relevance,
		})
	}
	if err := h.db.InsertQuerySources(queryID, sources); err != nil {
		logger.Warn("Failed to record query sources", zap.Error(err))
	}
}
