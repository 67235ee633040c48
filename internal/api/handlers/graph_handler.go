package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/kg/neo4j"
	"github.com/medgraph/backend/internal/rag/retriever"
	"github.com/medgraph/backend/pkg/logger"
)

type GraphHandler struct {
	retriever *retriever.Retriever
	store     *neo4j.Client
}

func NewGraphHandler(r *retriever.Retriever, store *neo4j.Client) *GraphHandler {
	return &GraphHandler{retriever: r, store: store}
}

// HandleSubgraph returns the neighborhood of the requested entities for
// visualization.
func (h *GraphHandler) HandleSubgraph(c *fiber.Ctx) error {
	entities := c.Query("entities")
	if entities == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "entities is required",
		})
	}

	names := []string{}
	for _, name := range strings.Split(entities, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	depth := c.QueryInt("depth", 1)

	subgraph, err := h.retriever.RetrieveSubgraph(c.Context(), names, depth)
	if err != nil {
		logger.Error("Failed to retrieve subgraph", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to retrieve subgraph",
		})
	}
	return c.JSON(subgraph)
}

// HandleGraphData pages through the graph, optionally filtered by
// label.
func (h *GraphHandler) HandleGraphData(c *fiber.Ctx) error {
	label := c.Query("label")
	limit := c.QueryInt("limit", 100)
	offset := c.QueryInt("offset", 0)

	data, err := h.retriever.GraphData(c.Context(), label, limit, offset)
	if err != nil {
		logger.Error("Failed to load graph data", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load graph data",
		})
	}
	return c.JSON(data)
}

func (h *GraphHandler) HandleStats(c *fiber.Ctx) error {
	stats, err := h.store.Stats(c.Context())
	if err != nil {
		logger.Error("Failed to load graph stats", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load graph stats",
		})
	}
	return c.JSON(stats)
}
