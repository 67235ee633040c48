package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/cache/redis"
	"github.com/medgraph/backend/internal/ingestion"
	"github.com/medgraph/backend/internal/metrics"
	"github.com/medgraph/backend/internal/storage/sqlite"
	"github.com/medgraph/backend/pkg/logger"
)

type DocumentHandler struct {
	processor *ingestion.Processor
	db        *sqlite.Client
	cache     *redis.Client
}

func NewDocumentHandler(processor *ingestion.Processor, db *sqlite.Client, cache *redis.Client) *DocumentHandler {
	return &DocumentHandler{
		processor: processor,
		db:        db,
		cache:     cache,
	}
}

// HandleIngest ingests one document from the request body.
func (h *DocumentHandler) HandleIngest(c *fiber.Ctx) error {
	var req struct {
		Source  string `json:"source"`
		Title   string `json:"title"`
		Content string `json:"content"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content is required",
		})
	}
	if req.Source == "" {
		req.Source = req.Title
	}
	if req.Source == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Source or title is required",
		})
	}

	result, err := h.processor.ProcessDocument(c.Context(), req.Source, req.Title, req.Content)
	if err != nil {
		logger.Error("Failed to ingest document", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to ingest document",
		})
	}

	metrics.DocumentsProcessed.Inc()
	metrics.GraphEntitiesCreated.Add(float64(result.EntitiesCreated))
	metrics.GraphRelationsCreated.Add(float64(result.RelationsCreated))

	h.invalidateAnswers(c.Context())

	return c.JSON(result)
}

// HandleBatchIngest ingests several documents; a failing document is
// reported, not fatal.
func (h *DocumentHandler) HandleBatchIngest(c *fiber.Ctx) error {
	var req struct {
		Documents []struct {
			Source  string `json:"source"`
			Title   string `json:"title"`
			Content string `json:"content"`
		} `json:"documents"`
	}

	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	if len(req.Documents) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Documents are required",
		})
	}

	results := make([]fiber.Map, 0, len(req.Documents))
	for _, doc := range req.Documents {
		source := doc.Source
		if source == "" {
			source = doc.Title
		}
		result, err := h.processor.ProcessDocument(c.Context(), source, doc.Title, doc.Content)
		if err != nil {
			logger.Warn("Batch ingest: document failed", zap.String("source", source), zap.Error(err))
			results = append(results, fiber.Map{"source": source, "error": err.Error()})
			continue
		}
		metrics.DocumentsProcessed.Inc()
		metrics.GraphEntitiesCreated.Add(float64(result.EntitiesCreated))
		metrics.GraphRelationsCreated.Add(float64(result.RelationsCreated))
		results = append(results, fiber.Map{"source": source, "result": result})
	}

	h.invalidateAnswers(c.Context())

	return c.JSON(fiber.Map{"results": results})
}

func (h *DocumentHandler) HandleListDocuments(c *fiber.Ctx) error {
	if h.db == nil {
		return c.JSON(fiber.Map{"documents": []interface{}{}})
	}

	limit := c.QueryInt("limit", 50)
	offset := c.QueryInt("offset", 0)

	docs, err := h.db.ListDocuments(limit, offset)
	if err != nil {
		logger.Error("Failed to list documents", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list documents",
		})
	}
	return c.JSON(fiber.Map{"documents": docs})
}

// invalidateAnswers drops cached answers after the graph changed.
func (h *DocumentHandler) invalidateAnswers(ctx context.Context) {
	if h.cache == nil {
		return
	}
	if err := h.cache.InvalidateAnswers(ctx); err != nil {
		logger.Warn("Failed to invalidate answer cache", zap.Error(err))
	}
}
