package kg

import "regexp"

// EntityTypes is the closed vocabulary of node labels the extractor and
// parser may produce.
var EntityTypes = []string{
	"Disease",
	"Symptom",
	"Treatment",
	"Medicine",
	"Examination",
	"Department",
	"Complication",
	"RiskFactor",
}

// RelationTypes is the closed vocabulary of relationship types.
var RelationTypes = []string{
	"HAS_SYMPTOM",
	"TREATED_BY",
	"USES_MEDICINE",
	"REQUIRES_EXAM",
	"BELONGS_TO",
	"CAUSES",
	"LEADS_TO",
	"ASSOCIATED_WITH",
	"INCREASES_RISK",
}

const (
	DefaultEntityType   = "Disease"
	DefaultNodeLabel    = "Entity"
	DefaultRelationType = "ASSOCIATED_WITH"
)

var identifierRe = regexp.MustCompile(`[^a-zA-Z0-9_]`)

var entityTypeSet = toSet(EntityTypes)
var relationTypeSet = toSet(RelationTypes)

func toSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}

// SanitizeLabel maps an entity type to a safe node label. Labels are
// interpolated into Cypher text, so only [A-Za-z0-9_] survives; a type
// outside the vocabulary falls back to the Disease label, and a type
// that sanitizes to nothing falls back to Entity.
func SanitizeLabel(entityType string) string {
	if _, ok := entityTypeSet[entityType]; ok {
		return entityType
	}
	cleaned := identifierRe.ReplaceAllString(entityType, "")
	if cleaned == "" {
		return DefaultNodeLabel
	}
	if _, ok := entityTypeSet[cleaned]; ok {
		return cleaned
	}
	return DefaultEntityType
}

// SanitizeRelationType maps a predicate to a safe relationship type.
// Unknown predicates collapse to ASSOCIATED_WITH.
func SanitizeRelationType(predicate string) string {
	if _, ok := relationTypeSet[predicate]; ok {
		return predicate
	}
	cleaned := identifierRe.ReplaceAllString(predicate, "")
	if _, ok := relationTypeSet[cleaned]; ok {
		return cleaned
	}
	return DefaultRelationType
}

// IsKnownEntityType reports whether t is in the entity vocabulary.
func IsKnownEntityType(t string) bool {
	_, ok := entityTypeSet[t]
	return ok
}
