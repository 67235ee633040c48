package parser

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgraph/backend/internal/llm"
)

type fakeCompleter struct {
	response string
	err      error
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, `What is "diabetes"?`, Normalize(`What   is “diabetes”?`))
	assert.Equal(t, "chest pain - causes", Normalize("chest pain — causes"))
}

func TestParseMergesLLMAndRules(t *testing.T) {
	p := NewParser(&fakeCompleter{response: `{
		"entities": [{"name": "diabetes", "type": "Disease", "confidence": 0.95}],
		"intent": "symptom",
		"keywords": ["diabetes", "symptoms"]
	}`})

	parsed, err := p.Parse(context.Background(), "What are the symptoms of diabetes?")
	require.NoError(t, err)

	assert.Equal(t, "What are the symptoms of diabetes?", parsed.OriginalQuery)
	assert.Equal(t, "symptom", parsed.Intent)
	assert.Equal(t, "what", parsed.QuestionType)
	require.NotEmpty(t, parsed.Entities)
	assert.Equal(t, "diabetes", parsed.Entities[0].Name)
	assert.InDelta(t, 0.95, parsed.Entities[0].Confidence, 1e-9)
	assert.Contains(t, parsed.Keywords, "diabetes")

	// LLM produced entities and intent, entities nonempty, intent set:
	// (0.8+0.1+0.1 + rule 0.6) / 2 = 0.8.
	assert.InDelta(t, 0.8, parsed.Confidence, 1e-9)
}

func TestParseDegradesToRulesOnLLMFailure(t *testing.T) {
	p := NewParser(&fakeCompleter{err: errors.New("model unavailable")})

	parsed, err := p.Parse(context.Background(), "How is hypertension treated?")
	require.NoError(t, err)

	assert.Equal(t, "treatment", parsed.Intent)
	assert.Equal(t, "how", parsed.QuestionType)
	assert.GreaterOrEqual(t, parsed.Confidence, 0.3)
	assert.LessOrEqual(t, parsed.Confidence, 0.6)
	assert.Contains(t, parsed.Keywords, "hypertension")
}

func TestParseDegradesOnUnusableLLMOutput(t *testing.T) {
	p := NewParser(&fakeCompleter{response: "I am sorry, I cannot help with that."})

	parsed, err := p.Parse(context.Background(), "Why does anemia cause fatigue?")
	require.NoError(t, err)

	assert.Equal(t, "cause", parsed.Intent)
	assert.GreaterOrEqual(t, parsed.Confidence, 0.3)
	assert.LessOrEqual(t, parsed.Confidence, 0.6)
}

func TestParseDeduplicatesEntitiesKeepingMaxConfidence(t *testing.T) {
	p := NewParser(&fakeCompleter{response: `{
		"entities": [{"name": "asthma", "type": "Disease", "confidence": 0.6}],
		"intent": "definition",
		"keywords": []
	}`})

	parsed, err := p.Parse(context.Background(), "What is asthma?")
	require.NoError(t, err)

	count := 0
	for _, e := range parsed.Entities {
		if e.Name == "asthma" {
			count++
			assert.GreaterOrEqual(t, e.Confidence, 0.6)
		}
	}
	assert.Equal(t, 1, count)
}

func TestParseInvalidLLMIntentFallsBackToRules(t *testing.T) {
	p := NewParser(&fakeCompleter{response: `{
		"entities": [],
		"intent": "banana",
		"keywords": []
	}`})

	parsed, err := p.Parse(context.Background(), "How can I prevent influenza?")
	require.NoError(t, err)

	assert.Equal(t, "prevention", parsed.Intent)
}

func TestClassifyQuestionType(t *testing.T) {
	tests := []struct {
		query string
		want  string
	}{
		{"Is diabetes curable?", "yes_no"},
		{"Why does asthma flare up at night?", "why"},
		{"How is pneumonia diagnosed?", "how"},
		{"Which department treats migraines?", "which"},
		{"What is hepatitis?", "what"},
		{"Tell me something.", "other"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, classifyQuestionType(tt.query), tt.query)
	}
}

func TestExtractKeywordsFiltersStopWords(t *testing.T) {
	keywords := extractKeywords("What are the symptoms of diabetes?")
	assert.Contains(t, keywords, "symptoms")
	assert.Contains(t, keywords, "diabetes")
	assert.NotContains(t, keywords, "what")
	assert.NotContains(t, keywords, "the")
}

func TestRuleEntitiesTypesByShape(t *testing.T) {
	entities := ruleEntities([]string{"arthritis", "ibuprofen", "chemotherapy"})
	types := make(map[string]string)
	for _, e := range entities {
		types[e.Name] = e.Type
	}
	assert.Equal(t, "Disease", types["arthritis"])
	assert.Equal(t, "Medicine", types["ibuprofen"])
	assert.Equal(t, "Treatment", types["chemotherapy"])
}
