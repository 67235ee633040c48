package builder

import (
	"context"

	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/pkg/logger"
)

// GraphStore is the slice of the graph client the builder writes
// through. Merge calls report whether the item was created rather than
// updated.
type GraphStore interface {
	MergeEntity(ctx context.Context, entity kg.Entity) (bool, error)
	MergeRelation(ctx context.Context, relation kg.Relation) (bool, error)
}

// BuildResult summarizes one ProcessText run. Counts reflect only items
// that reached the store; failed paragraphs and failed writes are
// logged and skipped.
type BuildResult struct {
	EntitiesCreated     int           `json:"entities_created"`
	RelationsCreated    int           `json:"relations_created"`
	Entities            []kg.Entity   `json:"entities"`
	Relations           []kg.Relation `json:"relations"`
	ParagraphsProcessed int           `json:"paragraphs_processed"`
}

// Builder drives the extract-then-merge loop that populates the
// knowledge graph from raw text.
type Builder struct {
	extractor     *Extractor
	store         GraphStore
	paragraphSize int
}

func NewBuilder(extractor *Extractor, store GraphStore, paragraphSize int) *Builder {
	if paragraphSize <= 0 {
		paragraphSize = 1000
	}
	return &Builder{
		extractor:     extractor,
		store:         store,
		paragraphSize: paragraphSize,
	}
}

// ProcessText cleans the text, extracts entities and relations per
// paragraph, deduplicates them at document level, and upserts them.
// Repeating the same text yields zero created counts.
func (b *Builder) ProcessText(ctx context.Context, text string) (*BuildResult, error) {
	result := &BuildResult{
		Entities:  []kg.Entity{},
		Relations: []kg.Relation{},
	}

	cleaned := CleanText(text)
	if cleaned == "" {
		return result, nil
	}

	paragraphs := Paragraphs(cleaned, b.paragraphSize)

	seenEntities := make(map[string]int)
	seenRelations := make(map[string]struct{})

	for i, paragraph := range paragraphs {
		entities, relations, err := b.extractor.Extract(ctx, paragraph)
		if err != nil {
			logger.Warn("Extraction failed for paragraph, skipping",
				zap.Int("paragraph", i),
				zap.Error(err),
			)
			result.ParagraphsProcessed++
			continue
		}

		for _, entity := range entities {
			key := entity.Name + "|" + entity.Type
			if idx, dup := seenEntities[key]; dup {
				if result.Entities[idx].Description == "" && entity.Description != "" {
					result.Entities[idx].Description = entity.Description
				}
				continue
			}
			seenEntities[key] = len(result.Entities)
			result.Entities = append(result.Entities, entity)
		}

		for _, relation := range relations {
			key := relation.Subject + "|" + relation.Predicate + "|" + relation.Object
			if _, dup := seenRelations[key]; dup {
				continue
			}
			seenRelations[key] = struct{}{}
			result.Relations = append(result.Relations, relation)
		}

		result.ParagraphsProcessed++
	}

	for _, entity := range result.Entities {
		created, err := b.store.MergeEntity(ctx, entity)
		if err != nil {
			logger.Warn("Failed to merge entity, skipping",
				zap.String("name", entity.Name),
				zap.Error(err),
			)
			continue
		}
		if created {
			result.EntitiesCreated++
		}
	}

	for _, relation := range result.Relations {
		created, err := b.store.MergeRelation(ctx, relation)
		if err != nil {
			logger.Warn("Failed to merge relation, skipping",
				zap.String("subject", relation.Subject),
				zap.String("predicate", relation.Predicate),
				zap.String("object", relation.Object),
				zap.Error(err),
			)
			continue
		}
		if created {
			result.RelationsCreated++
		}
	}

	logger.Info("Knowledge graph build completed",
		zap.Int("paragraphs", result.ParagraphsProcessed),
		zap.Int("entities_created", result.EntitiesCreated),
		zap.Int("relations_created", result.RelationsCreated),
	)

	return result, nil
}

// ProcessDocuments builds the graph from multiple documents and
// aggregates the stats. A failing document is logged and skipped.
func (b *Builder) ProcessDocuments(ctx context.Context, documents []string) (*BuildResult, error) {
	total := &BuildResult{
		Entities:  []kg.Entity{},
		Relations: []kg.Relation{},
	}

	for i, doc := range documents {
		result, err := b.ProcessText(ctx, doc)
		if err != nil {
			logger.Warn("Failed to process document, skipping",
				zap.Int("document", i),
				zap.Error(err),
			)
			continue
		}
		total.EntitiesCreated += result.EntitiesCreated
		total.RelationsCreated += result.RelationsCreated
		total.ParagraphsProcessed += result.ParagraphsProcessed
		total.Entities = append(total.Entities, result.Entities...)
		total.Relations = append(total.Relations, result.Relations...)
	}

	return total, nil
}
