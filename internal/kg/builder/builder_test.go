package builder

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medgraph/backend/internal/kg"
	"github.com/medgraph/backend/internal/llm"
)

type fakeCompleter struct {
	responses []string
	errs      []error
	calls     int
}

func (f *fakeCompleter) Complete(_ context.Context, _ llm.CompletionRequest) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return `{"entities": [], "relations": []}`, nil
}

type fakeStore struct {
	entities  map[string]kg.Entity
	relations map[string]struct{}
	failNames map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities:  make(map[string]kg.Entity),
		relations: make(map[string]struct{}),
		failNames: make(map[string]bool),
	}
}

func (s *fakeStore) MergeEntity(_ context.Context, entity kg.Entity) (bool, error) {
	if s.failNames[entity.Name] {
		return false, errors.New("write refused")
	}
	if _, exists := s.entities[entity.Name]; exists {
		s.entities[entity.Name] = entity
		return false, nil
	}
	s.entities[entity.Name] = entity
	return true, nil
}

func (s *fakeStore) MergeRelation(_ context.Context, relation kg.Relation) (bool, error) {
	key := relation.Subject + "|" + relation.Predicate + "|" + relation.Object
	if _, exists := s.relations[key]; exists {
		return false, nil
	}
	s.relations[key] = struct{}{}
	return true, nil
}

const diabetesExtraction = `{
	"entities": [
		{"name": "diabetes", "type": "Disease", "description": "a metabolic disease"},
		{"name": "thirst", "type": "Symptom", "description": ""},
		{"name": "metformin", "type": "Medicine", "description": "first line drug"}
	],
	"relations": [
		{"subject": "diabetes", "predicate": "HAS_SYMPTOM", "object": "thirst"},
		{"subject": "diabetes", "predicate": "USES_MEDICINE", "object": "metformin"}
	]
}`

func TestProcessTextBuildsGraph(t *testing.T) {
	store := newFakeStore()
	b := NewBuilder(NewExtractor(&fakeCompleter{responses: []string{diabetesExtraction}}), store, 1000)

	result, err := b.ProcessText(context.Background(), "Diabetes causes thirst. Metformin treats it.")
	require.NoError(t, err)

	assert.Equal(t, 3, result.EntitiesCreated)
	assert.Equal(t, 2, result.RelationsCreated)
	assert.Equal(t, 1, result.ParagraphsProcessed)
	assert.Len(t, store.entities, 3)
	assert.Len(t, store.relations, 2)
}

func TestProcessTextIsIdempotent(t *testing.T) {
	store := newFakeStore()

	first := NewBuilder(NewExtractor(&fakeCompleter{responses: []string{diabetesExtraction}}), store, 1000)
	result, err := first.ProcessText(context.Background(), "Diabetes causes thirst.")
	require.NoError(t, err)
	require.Equal(t, 3, result.EntitiesCreated)

	second := NewBuilder(NewExtractor(&fakeCompleter{responses: []string{diabetesExtraction}}), store, 1000)
	result, err = second.ProcessText(context.Background(), "Diabetes causes thirst.")
	require.NoError(t, err)

	assert.Equal(t, 0, result.EntitiesCreated)
	assert.Equal(t, 0, result.RelationsCreated)
	assert.Len(t, store.entities, 3)
	assert.Len(t, store.relations, 2)
}

func TestProcessTextDeduplicatesAcrossParagraphs(t *testing.T) {
	longFiller := ""
	for i := 0; i < 60; i++ {
		longFiller += "Diabetes is a chronic disease of glucose regulation. "
	}

	completer := &fakeCompleter{responses: []string{diabetesExtraction, diabetesExtraction, diabetesExtraction, diabetesExtraction}}
	store := newFakeStore()
	b := NewBuilder(NewExtractor(completer), store, 1000)

	result, err := b.ProcessText(context.Background(), longFiller)
	require.NoError(t, err)

	assert.Greater(t, result.ParagraphsProcessed, 1)
	assert.Equal(t, 3, result.EntitiesCreated)
	assert.Equal(t, 2, result.RelationsCreated)
	assert.Len(t, result.Entities, 3)
	assert.Len(t, result.Relations, 2)
}

func TestProcessTextSkipsFailedParagraphs(t *testing.T) {
	longFiller := ""
	for i := 0; i < 60; i++ {
		longFiller += "Hypertension damages blood vessels over many years. "
	}

	completer := &fakeCompleter{
		responses: []string{"", diabetesExtraction, "", ""},
		errs:      []error{errors.New("model unavailable")},
	}
	store := newFakeStore()
	b := NewBuilder(NewExtractor(completer), store, 1000)

	result, err := b.ProcessText(context.Background(), longFiller)
	require.NoError(t, err)

	assert.Equal(t, 3, result.EntitiesCreated)
	assert.Greater(t, result.ParagraphsProcessed, 1)
}

func TestProcessTextSkipsFailedWrites(t *testing.T) {
	store := newFakeStore()
	store.failNames["thirst"] = true
	b := NewBuilder(NewExtractor(&fakeCompleter{responses: []string{diabetesExtraction}}), store, 1000)

	result, err := b.ProcessText(context.Background(), "Diabetes causes thirst.")
	require.NoError(t, err)

	assert.Equal(t, 2, result.EntitiesCreated)
	assert.Len(t, store.entities, 2)
}

func TestProcessTextHandlesMalformedModelOutput(t *testing.T) {
	truncated := `{"entities": [{"name": "asthma", "type": "Disease", "description": ""`
	store := newFakeStore()
	b := NewBuilder(NewExtractor(&fakeCompleter{responses: []string{truncated}}), store, 1000)

	result, err := b.ProcessText(context.Background(), "Asthma narrows the airways.")
	require.NoError(t, err)

	assert.Equal(t, 1, result.EntitiesCreated)
	assert.Contains(t, store.entities, "asthma")
}

func TestProcessTextEmptyInput(t *testing.T) {
	store := newFakeStore()
	b := NewBuilder(NewExtractor(&fakeCompleter{}), store, 1000)

	result, err := b.ProcessText(context.Background(), "   ")
	require.NoError(t, err)

	assert.Equal(t, 0, result.EntitiesCreated)
	assert.Equal(t, 0, result.ParagraphsProcessed)
}

func TestProcessDocumentsAggregates(t *testing.T) {
	completer := &fakeCompleter{responses: []string{
		diabetesExtraction,
		`{"entities": [{"name": "asthma", "type": "Disease", "description": ""}], "relations": []}`,
	}}
	store := newFakeStore()
	b := NewBuilder(NewExtractor(completer), store, 1000)

	result, err := b.ProcessDocuments(context.Background(), []string{
		"Diabetes causes thirst.",
		"Asthma narrows the airways.",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, result.EntitiesCreated)
	assert.Equal(t, 2, result.RelationsCreated)
	assert.Equal(t, 2, result.ParagraphsProcessed)
}
