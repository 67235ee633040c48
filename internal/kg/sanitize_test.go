package kg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeLabel(t *testing.T) {
	tests := []struct {
		name       string
		entityType string
		want       string
	}{
		{"known type passes through", "Symptom", "Symptom"},
		{"known type with stray punctuation", "Symptom!", "Symptom"},
		{"unknown type falls back to Disease", "Gadget", "Disease"},
		{"injection attempt is stripped", "Disease) DETACH DELETE n //", "Disease"},
		{"only invalid characters falls back to Entity", "!!!", "Entity"},
		{"empty falls back to Entity", "", "Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeLabel(tt.entityType))
		})
	}
}

func TestSanitizeRelationType(t *testing.T) {
	tests := []struct {
		name      string
		predicate string
		want      string
	}{
		{"known type passes through", "HAS_SYMPTOM", "HAS_SYMPTOM"},
		{"known type with stray characters", "TREATED_BY;", "TREATED_BY"},
		{"unknown type falls back", "LOVES", "ASSOCIATED_WITH"},
		{"empty falls back", "", "ASSOCIATED_WITH"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeRelationType(tt.predicate))
		})
	}
}
