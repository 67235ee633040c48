package parser

import (
	"regexp"
	"strings"

	prose "github.com/jdkato/prose/v2"
)

// Intents the parser may assign. The vocabulary is closed; anything
// unrecognized is "other".
var Intents = []string{
	"definition",
	"symptom",
	"treatment",
	"cause",
	"diagnosis",
	"prevention",
	"complication",
	"comparison",
	"other",
}

var questionTypePatterns = []struct {
	qtype   string
	pattern *regexp.Regexp
}{
	{"yes_no", regexp.MustCompile(`(?i)^(is|are|can|could|does|do|did|will|would|should)\b`)},
	{"why", regexp.MustCompile(`(?i)\bwhy\b`)},
	{"how", regexp.MustCompile(`(?i)\bhow\b`)},
	{"which", regexp.MustCompile(`(?i)\b(which|who|where|when)\b`)},
	{"what", regexp.MustCompile(`(?i)\bwhat\b`)},
}

var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{"comparison", []string{"difference between", "compare", "versus", " vs ", "better than"}},
	{"prevention", []string{"prevent", "avoid", "reduce the risk", "protect against"}},
	{"complication", []string{"complication", "consequence", "if untreated", "worsen"}},
	{"diagnosis", []string{"diagnos", "test for", "screen", "detect", "examination", "checkup"}},
	{"treatment", []string{"treat", "therapy", "cure", "manage", "medication", "medicine", "drug", "relieve", "remedy"}},
	{"symptom", []string{"symptom", "sign of", "signs of", "manifest", "feel like", "present with"}},
	{"cause", []string{"cause", "reason for", "lead to", "due to", "result from", "risk factor"}},
	{"definition", []string{"what is", "what are", "define", "definition", "meaning of", "tell me about"}},
}

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "do": {}, "does": {}, "did": {}, "can": {}, "could": {},
	"will": {}, "would": {}, "should": {}, "have": {}, "has": {}, "had": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "whose": {}, "where": {},
	"when": {}, "why": {}, "how": {}, "of": {}, "for": {}, "to": {}, "in": {},
	"on": {}, "at": {}, "by": {}, "with": {}, "about": {}, "from": {}, "and": {},
	"or": {}, "not": {}, "no": {}, "if": {}, "it": {}, "its": {}, "this": {},
	"that": {}, "these": {}, "those": {}, "my": {}, "your": {}, "i": {}, "you": {},
	"me": {}, "we": {}, "they": {}, "them": {}, "there": {}, "between": {},
	"tell": {}, "please": {}, "some": {}, "any": {}, "get": {}, "am": {},
}

var entityTypeHints = []struct {
	entityType string
	suffixes   []string
	substrings []string
}{
	{"Examination", []string{"scan", "test", "x-ray", "biopsy", "endoscopy"}, []string{"mri", "ct scan", "ultrasound", "blood test", "ecg", "ekg"}},
	{"Medicine", []string{"cillin", "mycin", "azole", "statin", "pril", "olol", "dipine", "formin"}, []string{"aspirin", "insulin", "ibuprofen", "paracetamol", "tablet", "vaccine"}},
	{"Symptom", []string{"ache", "pain"}, []string{"fever", "cough", "fatigue", "nausea", "dizziness", "rash", "swelling", "thirst", "bleeding", "vomiting", "headache"}},
	{"Department", []string{"ology", "iatrics", "surgery department"}, []string{"clinic", "department", "ward"}},
	{"Disease", []string{"itis", "osis", "emia", "oma", "pathy", "syndrome", "disease", "disorder", "infection", "cancer"}, []string{"diabetes", "asthma", "hypertension", "influenza", "stroke", "pneumonia", "anemia", "arthritis", "migraine", "hepatitis"}},
	{"Treatment", []string{"therapy", "ectomy", "plasty", "surgery", "transplant"}, []string{"dialysis", "chemotherapy", "radiotherapy", "rehabilitation"}},
}

// classifyQuestionType matches the query against the question-form
// patterns, first match wins.
func classifyQuestionType(query string) string {
	for _, qt := range questionTypePatterns {
		if qt.pattern.MatchString(query) {
			return qt.qtype
		}
	}
	return "other"
}

// classifyIntent scans the lowered query for intent keyword lists,
// ordered so the more specific intents win over the generic ones.
func classifyIntent(query string) string {
	lowered := strings.ToLower(query)
	for _, group := range intentKeywords {
		for _, kw := range group.keywords {
			if strings.Contains(lowered, kw) {
				return group.intent
			}
		}
	}
	return "other"
}

// extractKeywords tokenizes the query and keeps lowered non-stop-word
// tokens of at least three characters, preserving first-seen order.
func extractKeywords(query string) []string {
	tokens := tokenize(query)

	var keywords []string
	seen := make(map[string]struct{})
	for _, token := range tokens {
		word := strings.ToLower(strings.Trim(token, ".,;:!?()\"'"))
		if len(word) < 3 {
			continue
		}
		if _, stop := stopWords[word]; stop {
			continue
		}
		if _, dup := seen[word]; dup {
			continue
		}
		seen[word] = struct{}{}
		keywords = append(keywords, word)
	}
	return keywords
}

func tokenize(query string) []string {
	doc, err := prose.NewDocument(query,
		prose.WithExtraction(false),
		prose.WithTagging(false),
		prose.WithSegmentation(false),
	)
	if err == nil {
		tokens := doc.Tokens()
		if len(tokens) > 0 {
			out := make([]string, 0, len(tokens))
			for _, t := range tokens {
				out = append(out, t.Text)
			}
			return out
		}
	}
	return strings.Fields(query)
}

// typeEntityByHints assigns an entity type to a term from its suffix or
// substring shape, or "" when nothing matches.
func typeEntityByHints(term string) string {
	lowered := strings.ToLower(term)
	for _, hint := range entityTypeHints {
		for _, sub := range hint.substrings {
			if strings.Contains(lowered, sub) {
				return hint.entityType
			}
		}
		for _, suffix := range hint.suffixes {
			if strings.HasSuffix(lowered, suffix) {
				return hint.entityType
			}
		}
	}
	return ""
}

// ruleEntities finds candidate entities among keywords and adjacent
// keyword bigrams using the type hints.
func ruleEntities(keywords []string) []Entity {
	var entities []Entity
	seen := make(map[string]struct{})

	add := func(name, entityType string) {
		if _, dup := seen[name]; dup {
			return
		}
		seen[name] = struct{}{}
		entities = append(entities, Entity{Name: name, Type: entityType, Confidence: 0.5})
	}

	for i := 0; i < len(keywords)-1; i++ {
		bigram := keywords[i] + " " + keywords[i+1]
		if entityType := typeEntityByHints(bigram); entityType != "" {
			add(bigram, entityType)
		}
	}
	for _, word := range keywords {
		if entityType := typeEntityByHints(word); entityType != "" {
			add(word, entityType)
		}
	}
	return entities
}
