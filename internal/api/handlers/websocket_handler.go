package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/rag/pipeline"
	"github.com/medgraph/backend/pkg/logger"
)

// WebSocketHandler answers queries over a websocket, streaming the
// pipeline stages as they happen and the full response at the end.
type WebSocketHandler struct {
	pipeline *pipeline.Pipeline
}

func NewWebSocketHandler(p *pipeline.Pipeline) *WebSocketHandler {
	return &WebSocketHandler{pipeline: p}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string `json:"type"`
			Query     string `json:"query"`
			UseGraph  *bool  `json:"use_graph"`
			UseVector *bool  `json:"use_vector"`
			TopK      int    `json:"top_k"`
		}

		if err := c.ReadJSON(&msg); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		if msg.Type != "query" || msg.Query == "" {
			h.sendError(c, "Expected a query message")
			continue
		}

		opts := pipeline.Options{
			UseGraph:  true,
			UseVector: true,
			TopK:      msg.TopK,
		}
		if msg.UseGraph != nil {
			opts.UseGraph = *msg.UseGraph
		}
		if msg.UseVector != nil {
			opts.UseVector = *msg.UseVector
		}
		opts.OnStage = func(stage pipeline.Stage, detail map[string]interface{}) {
			h.sendStage(c, stage, detail)
		}

		response := h.pipeline.Answer(context.Background(), msg.Query, opts)

		if err := c.WriteJSON(map[string]interface{}{
			"type":     "complete",
			"response": response,
		}); err != nil {
			logger.Error("Failed to send websocket response", zap.Error(err))
			break
		}
	}
}

func (h *WebSocketHandler) sendStage(c *websocket.Conn, stage pipeline.Stage, detail map[string]interface{}) {
	msg := map[string]interface{}{
		"type":  "stage",
		"stage": string(stage),
	}
	if len(detail) > 0 {
		msg["detail"] = detail
	}
	if err := c.WriteJSON(msg); err != nil {
		logger.Debug("Failed to send stage update", zap.Error(err))
	}
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	c.WriteJSON(map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	})
}
