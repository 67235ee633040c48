package pipeline

import (
	"strings"

	"github.com/medgraph/backend/internal/rag/retriever"
)

// buildContext renders the retrieved facts into the generation context.
// The intent header comes first; the remaining budget is filled with
// whole result blocks, never partial ones.
func buildContext(intent string, results []retriever.Result, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 3000
	}

	var b strings.Builder
	if intent != "" && intent != "other" {
		b.WriteString("Question intent: ")
		b.WriteString(intent)
		b.WriteString("\n\nKnowledge:\n")
	} else {
		b.WriteString("Knowledge:\n")
	}

	remaining := maxLength - b.Len()
	if remaining <= 0 {
		return b.String()[:maxLength]
	}

	b.WriteString(retriever.FormatResultsForContext(results, remaining))
	return b.String()
}
