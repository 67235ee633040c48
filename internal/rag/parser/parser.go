package parser

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/medgraph/backend/internal/jsonx"
	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/internal/llm"
	"github.com/medgraph/backend/pkg/logger"
)

// Entity is a mention found in the user query.
type Entity struct {
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	Confidence float64 `json:"confidence"`
}

// ParsedQuery is the structured reading of a user question.
type ParsedQuery struct {
	OriginalQuery   string   `json:"original_query"`
	NormalizedQuery string   `json:"normalized_query"`
	Entities        []Entity `json:"entities"`
	Intent          string   `json:"intent"`
	Keywords        []string `json:"keywords"`
	QuestionType    string   `json:"question_type"`
	Confidence      float64  `json:"confidence"`
}

// EntityNames returns the entity names in order.
func (p *ParsedQuery) EntityNames() []string {
	names := make([]string, 0, len(p.Entities))
	for _, e := range p.Entities {
		names = append(names, e.Name)
	}
	return names
}

// Completer is the slice of the LLM client the parser needs.
type Completer interface {
	Complete(ctx context.Context, req llm.CompletionRequest) (string, error)
}

// Parser combines an LLM reading of the query with a rule-based one.
// The rule parser always runs; the LLM result refines it when
// available, and a total LLM failure degrades to the rule result.
type Parser struct {
	llm Completer
}

func NewParser(completer Completer) *Parser {
	return &Parser{llm: completer}
}

const parseSystemPrompt = `You analyze medical questions.

Entity types (use exactly these): Disease, Symptom, Treatment, Medicine, Examination, Department, Complication, RiskFactor.
Intents (use exactly one): definition, symptom, treatment, cause, diagnosis, prevention, complication, comparison, other.

Respond with JSON only, in this exact shape:
{
  "entities": [{"name": "...", "type": "...", "confidence": 0.9}],
  "intent": "...",
  "keywords": ["..."]
}`

type llmParseResult struct {
	Entities []struct {
		Name       string  `json:"name"`
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	} `json:"entities"`
	Intent   string   `json:"intent"`
	Keywords []string `json:"keywords"`
}

var (
	punctuationMap = strings.NewReplacer(
		"“", `"`, "”", `"`, "‘", "'", "’", "'",
		"—", "-", "–", "-", "。", ".", "，", ",",
		"？", "?", "！", "!",
	)
	normalizeStripRe = regexp.MustCompile(`[^\p{L}\p{N}\s.,;:!?()'"/-]`)
	normalizeWsRe    = regexp.MustCompile(`\s+`)
)

// Normalize collapses whitespace, unifies punctuation variants and
// strips special characters.
func Normalize(query string) string {
	s := punctuationMap.Replace(query)
	s = normalizeStripRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(normalizeWsRe.ReplaceAllString(s, " "))
}

// Parse returns the structured reading of the query. It never fails on
// LLM errors; the weakest outcome is the rule-based reading with a
// correspondingly lower confidence.
func (p *Parser) Parse(ctx context.Context, query string) (*ParsedQuery, error) {
	normalized := Normalize(query)

	ruleResult := p.parseByRules(normalized)

	llmResult, err := p.parseByLLM(ctx, normalized)
	if err != nil {
		logger.Warn("LLM query parse failed, using rule result",
			zap.String("query", normalized),
			zap.Error(err),
		)
		ruleResult.OriginalQuery = query
		return ruleResult, nil
	}

	merged := p.merge(llmResult, ruleResult)
	merged.OriginalQuery = query
	merged.NormalizedQuery = normalized
	return merged, nil
}

func (p *Parser) parseByRules(normalized string) *ParsedQuery {
	keywords := extractKeywords(normalized)
	entities := ruleEntities(keywords)
	intent := classifyIntent(normalized)

	confidence := 0.4
	if len(entities) > 0 {
		confidence += 0.1
	}
	if intent != "other" {
		confidence += 0.1
	}

	return &ParsedQuery{
		NormalizedQuery: normalized,
		Entities:        entities,
		Intent:          intent,
		Keywords:        keywords,
		QuestionType:    classifyQuestionType(normalized),
		Confidence:      confidence,
	}
}

func (p *Parser) parseByLLM(ctx context.Context, normalized string) (*llmParseResult, error) {
	content, err := p.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: parseSystemPrompt,
		UserPrompt:   "Question:\n" + normalized,
		Temperature:  0.1,
	})
	if err != nil {
		return nil, err
	}

	var result llmParseResult
	if err := jsonx.Decode(content, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (p *Parser) merge(llmResult *llmParseResult, ruleResult *ParsedQuery) *ParsedQuery {
	merged := &ParsedQuery{QuestionType: ruleResult.QuestionType}

	byName := make(map[string]int)
	for _, raw := range llmResult.Entities {
		name := strings.TrimSpace(raw.Name)
		if name == "" {
			continue
		}
		confidence := raw.Confidence
		if confidence <= 0 || confidence > 1 {
			confidence = 0.7
		}
		entity := Entity{
			Name:       name,
			Type:       kg.SanitizeLabel(strings.TrimSpace(raw.Type)),
			Confidence: confidence,
		}
		if idx, dup := byName[strings.ToLower(name)]; dup {
			if entity.Confidence > merged.Entities[idx].Confidence {
				merged.Entities[idx] = entity
			}
			continue
		}
		byName[strings.ToLower(name)] = len(merged.Entities)
		merged.Entities = append(merged.Entities, entity)
	}
	for _, entity := range ruleResult.Entities {
		key := strings.ToLower(entity.Name)
		if idx, dup := byName[key]; dup {
			if entity.Confidence > merged.Entities[idx].Confidence {
				merged.Entities[idx] = entity
			}
			continue
		}
		byName[key] = len(merged.Entities)
		merged.Entities = append(merged.Entities, entity)
	}

	merged.Intent = validIntent(llmResult.Intent)
	llmProducedIntent := merged.Intent != "" && merged.Intent != "other"
	if merged.Intent == "" || merged.Intent == "other" {
		merged.Intent = ruleResult.Intent
	}

	if len(llmResult.Keywords) > 0 {
		merged.Keywords = lowerTrimmed(llmResult.Keywords)
	} else {
		merged.Keywords = ruleResult.Keywords
	}

	base := 0.5
	if len(llmResult.Entities) > 0 || llmProducedIntent {
		base = 0.8
	}
	if len(merged.Entities) > 0 {
		base += 0.1
	}
	if merged.Intent != "other" {
		base += 0.1
	}

	merged.Confidence = clamp01((base + ruleResult.Confidence) / 2)
	return merged
}

func validIntent(intent string) string {
	intent = strings.ToLower(strings.TrimSpace(intent))
	for _, known := range Intents {
		if intent == known {
			return intent
		}
	}
	return ""
}

func lowerTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.ToLower(strings.TrimSpace(v)); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
