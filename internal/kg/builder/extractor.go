package builder

import (
	"context"
	"fmt"
	"strings"

	"github.com/medgraph/backend/internal/jsonx"
	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/internal/llm"
)

// Completer is the slice of the LLM client the extractor needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Extractor turns a paragraph of medical text into typed entities and
// relations via one structured LLM call.
type Extractor struct {
	llm Completer
}

func NewExtractor(completer Completer) *Extractor {
	return &Extractor{llm: completer}
}

const extractionSystemPrompt = `You are a medical information extraction system.
Extract entities and relations from the given text.

Entity types (use exactly these): Disease, Symptom, Treatment, Medicine, Examination, Department, Complication, RiskFactor.
Relation types (use exactly these): HAS_SYMPTOM, TREATED_BY, USES_MEDICINE, REQUIRES_EXAM, BELONGS_TO, CAUSES, LEADS_TO, ASSOCIATED_WITH, INCREASES_RISK.

Respond with JSON only, no explanations, in this exact shape:
{
  "entities": [{"name": "...", "type": "...", "description": "..."}],
  "relations": [{"subject": "...", "predicate": "...", "object": "..."}]
}

Rules:
- Entity names are short noun phrases as they appear in the text.
- Every relation subject and object must appear in the entities list.
- If the text contains no medical content, return empty lists.`

type extractionResult struct {
	Entities []struct {
		Name        string `json:"name"`
		Type        string `json:"type"`
		Description string `json:"description"`
	} `json:"entities"`
	Relations []struct {
		Subject   string `json:"subject"`
		Predicate string `json:"predicate"`
		Object    string `json:"object"`
	} `json:"relations"`
}

// Extract returns the entities and relations found in the paragraph.
// Malformed model output is repaired where possible; unusable output is
// an error the caller treats as an empty extraction.
func (e *Extractor) Extract(ctx context.Context, paragraph string) ([]kg.Entity, []kg.Relation, error) {
	content, err := e.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: extractionSystemPrompt,
		UserPrompt:   "Text:\n" + paragraph,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("extraction call failed: %w", err)
	}

	var result extractionResult
	if err := jsonx.Decode(content, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode extraction output: %w", err)
	}

	entities := make([]kg.Entity, 0, len(result.Entities))
	for _, raw := range result.Entities {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		entities = append(entities, kg.Entity{
			Name:        name,
			Type:        kg.SanitizeLabel(strings.TrimSpace(raw.Type)),
			Description: strings.TrimSpace(raw.Description),
		})
	}

	relations := make([]kg.Relation, 0, len(result.Relations))
	for _, raw := range result.Relations {
		subject := strings.TrimSpace(raw.Subject)
		object := strings.TrimSpace(raw.Object)
		if subject == "" || object == "" || subject == object {
			continue
		}
		relations = append(relations, kg.Relation{
			Subject:   subject,
			Predicate: kg.SanitizeRelationType(strings.TrimSpace(raw.Predicate)),
			Object:    object,
		})
	}

	return entities, relations, nil
}
