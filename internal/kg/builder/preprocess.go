package builder

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

var (
	disallowedRe = regexp.MustCompile(`[^\p{L}\p{N}\s.,;:!?()\[\]%/+'"-]`)
	whitespaceRe = regexp.MustCompile(`\s+`)
	sentenceRe   = regexp.MustCompile(`[^.!?]+[.!?]*`)
)

// CleanText strips characters outside the allowed alphabet and
// collapses runs of whitespace.
func CleanText(text string) string {
	cleaned := disallowedRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(cleaned, " "))
}

// SplitSentences segments text into sentences, preferring the prose
// tokenizer and falling back to punctuation splitting when it fails or
// finds nothing.
func SplitSentences(text string) []string {
	doc, err := prose.NewDocument(text,
		prose.WithExtraction(false),
		prose.WithTagging(false),
	)
	if err == nil {
		sentences := doc.Sentences()
		if len(sentences) > 0 {
			out := make([]string, 0, len(sentences))
			for _, s := range sentences {
				if trimmed := strings.TrimSpace(s.Text); trimmed != "" {
					out = append(out, trimmed)
				}
			}
			if len(out) > 0 {
				return out
			}
		}
	}

	var out []string
	for _, s := range sentenceRe.FindAllString(text, -1) {
		if trimmed := strings.TrimSpace(s); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// Paragraphs regroups sentences into chunks of at most maxSize
// characters. Boundaries always fall between sentences; a single
// sentence longer than maxSize becomes its own paragraph rather than
// being cut.
func Paragraphs(text string, maxSize int) []string {
	if maxSize <= 0 {
		maxSize = 1000
	}

	sentences := SplitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	var paragraphs []string
	var current strings.Builder

	for _, sentence := range sentences {
		if current.Len() > 0 && current.Len()+1+len(sentence) > maxSize {
			paragraphs = append(paragraphs, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	if current.Len() > 0 {
		paragraphs = append(paragraphs, current.String())
	}

	return paragraphs
}
