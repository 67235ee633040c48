package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type extraction struct {
	Entities []struct {
		Name string `json:"name"`
		Type string `json:"type"`
	} `json:"entities"`
	Intent string `json:"intent"`
}

func TestDecodeCleanJSON(t *testing.T) {
	var out extraction
	err := Decode(`{"entities":[{"name":"diabetes","type":"Disease"}],"intent":"definition"}`, &out)
	require.NoError(t, err)
	assert.Equal(t, "definition", out.Intent)
	require.Len(t, out.Entities, 1)
	assert.Equal(t, "diabetes", out.Entities[0].Name)
}

func TestDecodeMarkdownFence(t *testing.T) {
	raw := "Here is the result:\n```json\n{\"intent\": \"symptom\", \"entities\": []}\n```\nDone."
	var out extraction
	err := Decode(raw, &out)
	require.NoError(t, err)
	assert.Equal(t, "symptom", out.Intent)
}

func TestDecodeTruncatedOutput(t *testing.T) {
	raw := `{"entities":[{"name":"hypertension","type":"Disease"`
	var out extraction
	err := Decode(raw, &out)
	require.NoError(t, err)
	require.Len(t, out.Entities, 1)
	assert.Equal(t, "hypertension", out.Entities[0].Name)
}

func TestDecodeRepairsMinorDamage(t *testing.T) {
	raw := `{"intent": 'treatment', "entities": [],}`
	var out extraction
	err := Decode(raw, &out)
	require.NoError(t, err)
	assert.Equal(t, "treatment", out.Intent)
}

func TestDecodeLeadingProse(t *testing.T) {
	raw := `The extracted entities are as follows: {"intent":"cause","entities":[]}`
	var out extraction
	err := Decode(raw, &out)
	require.NoError(t, err)
	assert.Equal(t, "cause", out.Intent)
}

func TestDecodeNoJSON(t *testing.T) {
	var out extraction
	err := Decode("I could not find any entities in this text.", &out)
	assert.Error(t, err)
}
