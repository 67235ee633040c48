package retriever

import (
	"fmt"
	"strings"
)

// FormatResultsForContext renders results as context blocks within
// maxLength characters. Truncation is block granular; a block that
// would overflow the budget is dropped whole, never cut.
func FormatResultsForContext(results []Result, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 3000
	}

	var b strings.Builder
	for _, result := range results {
		block := formatBlock(result)
		if block == "" {
			continue
		}

		need := len(block)
		if b.Len() > 0 {
			need++
		}
		if b.Len()+need > maxLength {
			break
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(block)
	}
	return b.String()
}

func formatBlock(result Result) string {
	switch result.Source {
	case "path":
		return formatPathBlock(result)
	case "neighbor":
		return formatNodeBlock(result, fmt.Sprintf("related via %s, %d hop(s) away", result.Relation, result.Hops))
	case "relation":
		return formatNodeBlock(result, "connected by "+result.Relation)
	case "keyword":
		return formatNodeBlock(result, "keyword match")
	case "vector":
		return formatNodeBlock(result, "semantic match")
	default:
		return formatNodeBlock(result, "")
	}
}

func formatNodeBlock(result Result, note string) string {
	name := strings.TrimSpace(result.Node.Name)
	if name == "" {
		return ""
	}

	var b strings.Builder
	b.WriteString("- ")
	b.WriteString(name)
	if result.Node.Label != "" {
		b.WriteString(" [")
		b.WriteString(result.Node.Label)
		b.WriteString("]")
	}
	if note != "" {
		b.WriteString(" (")
		b.WriteString(note)
		b.WriteString(")")
	}
	if result.Node.Description != "" {
		b.WriteString(": ")
		b.WriteString(result.Node.Description)
	}
	return b.String()
}

func formatPathBlock(result Result) string {
	if result.Path == nil || len(result.Path.Hops) == 0 {
		return formatNodeBlock(result, "")
	}

	var b strings.Builder
	b.WriteString("- Path: ")
	for i, hop := range result.Path.Hops {
		if i == 0 {
			b.WriteString(hop.FromName)
		}
		b.WriteString(" -[")
		b.WriteString(hop.Relation)
		b.WriteString("]-> ")
		b.WriteString(hop.ToName)
	}
	return b.String()
}
