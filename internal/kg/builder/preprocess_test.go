package builder

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanText(t *testing.T) {
	assert.Equal(t, "Diabetes type 2, affects 10% of adults.",
		CleanText("Diabetes type 2, affects 10% of adults.\n\n"))
	assert.Equal(t, "high blood pressure", CleanText("  high   blood\tpressure  "))
}

func TestSplitSentences(t *testing.T) {
	sentences := SplitSentences("Diabetes is chronic. It causes thirst. Treatment exists.")
	require.Len(t, sentences, 3)
	assert.Equal(t, "Diabetes is chronic.", sentences[0])
}

func TestParagraphsRespectSentenceBoundaries(t *testing.T) {
	sentence := "This sentence describes one specific aspect of a chronic disease in detail."
	text := strings.TrimSpace(strings.Repeat(sentence+" ", 40))

	paragraphs := Paragraphs(text, 300)
	require.Greater(t, len(paragraphs), 1)

	for _, p := range paragraphs {
		assert.LessOrEqual(t, len(p), 300)
		assert.True(t, strings.HasSuffix(p, "."), "paragraph must end at a sentence boundary: %q", p)
	}
}

func TestParagraphsKeepOversizedSentenceWhole(t *testing.T) {
	long := "This single sentence is deliberately far longer than the configured maximum paragraph size so it cannot be regrouped with anything else."
	paragraphs := Paragraphs(long, 50)
	require.Len(t, paragraphs, 1)
	assert.Equal(t, long, paragraphs[0])
}

func TestParagraphsEmptyInput(t *testing.T) {
	assert.Empty(t, Paragraphs("", 1000))
}
