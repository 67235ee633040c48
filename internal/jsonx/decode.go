package jsonx

import (
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Decode parses LLM output into v, tolerating the usual model quirks:
// markdown code fences, leading prose before the first brace, truncated
// output missing closing brackets, and minor syntax damage. Strategies
// are tried in order; if all fail the original parse error is returned.
func Decode(raw string, v interface{}) error {
	content := extractJSON(raw)
	if content == "" {
		return fmt.Errorf("no JSON content found in input")
	}

	originalErr := json.UnmarshalFromString(content, v)
	if originalErr == nil {
		return nil
	}

	// Truncated model output usually just lacks closing brackets.
	if err := json.UnmarshalFromString(closeBrackets(content), v); err == nil {
		return nil
	}

	repaired, err := jsonrepair.JSONRepair(content)
	if err == nil {
		if err := json.UnmarshalFromString(repaired, v); err == nil {
			return nil
		}
	}

	return fmt.Errorf("failed to parse JSON: %w", originalErr)
}

// extractJSON strips markdown fences and surrounding prose, keeping the
// span from the first { or [ to the last } or ]. If no closing bracket
// follows the opener, everything from the opener on is kept so the
// repair strategies can complete it.
func extractJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if idx := strings.Index(s, "```json"); idx >= 0 {
		s = s[idx+len("```json"):]
	} else if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[idx+3:]
	}
	if idx := strings.Index(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return ""
	}
	end := strings.LastIndexAny(s, "}]")
	if end < start {
		return s[start:]
	}
	return s[start : end+1]
}

// closeBrackets appends the closing brackets needed to balance the
// input, respecting string literals and escapes.
func closeBrackets(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escaped = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				stack = append(stack, '}')
			}
		case '[':
			if !inString {
				stack = append(stack, ']')
			}
		case '}', ']':
			if !inString && len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var b strings.Builder
	b.WriteString(s)
	if inString {
		b.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
