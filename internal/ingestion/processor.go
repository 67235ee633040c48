package ingestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/kg/builder"
	"github.com/medgraph/backend/internal/storage/models"
	"github.com/medgraph/backend/internal/storage/sqlite"
	"github.com/medgraph/backend/internal/vector/milvus"
	"github.com/medgraph/backend/pkg/logger"
	"github.com/medgraph/backend/pkg/utils"
)

// Embedder produces embedding vectors for document chunks.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Result summarizes one ingestion run. Stages degrade independently;
// Warnings records the ones that were skipped.
type Result struct {
	DocumentID       string   `json:"document_id"`
	Chunks           int      `json:"chunks"`
	EntitiesCreated  int      `json:"entities_created"`
	RelationsCreated int      `json:"relations_created"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Processor ingests a document: clean, persist, chunk, embed, and
// build the knowledge graph from the cleaned text.
type Processor struct {
	db        *sqlite.Client
	vectorDB  *milvus.Client
	embedder  Embedder
	builder   *builder.Builder
	chunkSize int
}

func NewProcessor(db *sqlite.Client, vectorDB *milvus.Client, embedder Embedder, kgBuilder *builder.Builder, chunkSize int) *Processor {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	return &Processor{
		db:        db,
		vectorDB:  vectorDB,
		embedder:  embedder,
		builder:   kgBuilder,
		chunkSize: chunkSize,
	}
}

// ProcessDocument ingests one document given as raw text or HTML. The
// knowledge graph build is the essential stage; persistence and the
// vector index degrade to warnings when unavailable.
func (p *Processor) ProcessDocument(ctx context.Context, source, title, content string) (*Result, error) {
	logger.Info("Processing document", zap.String("source", source))

	text := content
	if looksLikeHTML(content) {
		text = cleanHTML(content)
		if title == "" {
			title = htmlTitle(content)
		}
	}
	text = builder.CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("no content extracted from document")
	}
	if title == "" {
		title = firstWords(text, 8)
	}

	docID := utils.DocumentID(source)
	result := &Result{DocumentID: docID}

	chunks := builder.Paragraphs(text, p.chunkSize)
	result.Chunks = len(chunks)

	if p.db != nil {
		if err := p.persist(docID, source, title, text, chunks); err != nil {
			logger.Warn("Document persistence failed", zap.Error(err))
			result.Warnings = append(result.Warnings, "persistence skipped: "+err.Error())
		}
	}

	if p.vectorDB != nil && p.embedder != nil {
		if err := p.index(ctx, docID, chunks); err != nil {
			logger.Warn("Vector indexing failed", zap.Error(err))
			result.Warnings = append(result.Warnings, "vector index skipped: "+err.Error())
		}
	}

	build, err := p.builder.ProcessText(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to build knowledge graph: %w", err)
	}
	result.EntitiesCreated = build.EntitiesCreated
	result.RelationsCreated = build.RelationsCreated

	logger.Info("Document processed",
		zap.String("doc_id", docID),
		zap.Int("chunks", result.Chunks),
		zap.Int("entities_created", result.EntitiesCreated),
		zap.Int("relations_created", result.RelationsCreated),
	)
	return result, nil
}

func (p *Processor) persist(docID, source, title, text string, chunks []string) error {
	now := time.Now()
	doc := &models.Document{
		ID:        docID,
		Source:    source,
		Title:     title,
		Content:   text,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := p.db.UpsertDocument(doc); err != nil {
		return err
	}

	dbChunks := make([]models.DocumentChunk, 0, len(chunks))
	for i, chunkText := range chunks {
		dbChunks = append(dbChunks, models.DocumentChunk{
			ID:         uuid.NewString(),
			DocID:      docID,
			ChunkIndex: i,
			Text:       chunkText,
			CreatedAt:  now,
		})
	}
	return p.db.ReplaceChunks(docID, dbChunks)
}

func (p *Processor) index(ctx context.Context, docID string, chunks []string) error {
	if len(chunks) == 0 {
		return nil
	}

	embeddings, err := p.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return fmt.Errorf("failed to embed chunks: %w", err)
	}
	if len(embeddings) != len(chunks) {
		return fmt.Errorf("embedding count mismatch: got %d, expected %d", len(embeddings), len(chunks))
	}

	if err := p.vectorDB.DeleteByDocument(ctx, docID); err != nil {
		logger.Warn("Failed to clear old chunks before re-index", zap.Error(err))
	}

	vectorChunks := make([]milvus.Chunk, 0, len(chunks))
	for i, chunkText := range chunks {
		vectorChunks = append(vectorChunks, milvus.Chunk{
			ID:         fmt.Sprintf("%s_chunk_%d", docID, i),
			DocumentID: docID,
			Text:       chunkText,
			Embedding:  embeddings[i],
		})
	}
	return p.vectorDB.Insert(ctx, vectorChunks)
}

func looksLikeHTML(content string) bool {
	lowered := strings.ToLower(content)
	return strings.Contains(lowered, "<html") ||
		strings.Contains(lowered, "<body") ||
		strings.Contains(lowered, "<p>") ||
		strings.Contains(lowered, "<div")
}

// cleanHTML extracts the visible text of an HTML document, dropping
// script, style and navigation noise.
func cleanHTML(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, header, footer, aside").Remove()

	var parts []string
	doc.Find("h1, h2, h3, h4, p, li, td").Each(func(_ int, s *goquery.Selection) {
		if text := strings.TrimSpace(s.Text()); text != "" {
			parts = append(parts, text)
		}
	})

	if len(parts) == 0 {
		return strings.TrimSpace(doc.Text())
	}
	return strings.Join(parts, "\n")
}

func htmlTitle(htmlContent string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlContent))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

func firstWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}
