package pipeline

const baseSystemPrompt = `You are a medical information assistant.
Answer the question using ONLY the knowledge context provided.
If the context does not contain the needed information, say so plainly
instead of guessing. Keep the answer focused and factual.`

const treatmentDisclaimer = `
Always end the answer with a short reminder that treatment decisions
must be made with a qualified physician and that this information is
not a prescription.`

var intentPromptHints = map[string]string{
	"definition":   "Give a clear definition first, then the key characteristics.",
	"symptom":      "List the symptoms explicitly, most significant first.",
	"treatment":    "Describe the treatment options found in the context.",
	"cause":        "Explain the causes and risk factors found in the context.",
	"diagnosis":    "Describe the examinations and diagnostic steps found in the context.",
	"prevention":   "Describe the preventive measures found in the context.",
	"complication": "Describe the possible complications found in the context.",
	"comparison":   "Compare the items point by point using only the context.",
}

// systemPromptFor builds the generation system prompt for an intent.
// Treatment-related intents carry a safety reminder.
func systemPromptFor(intent string) string {
	prompt := baseSystemPrompt
	if hint, ok := intentPromptHints[intent]; ok {
		prompt += "\n" + hint
	}
	if intent == "treatment" || intent == "prevention" {
		prompt += treatmentDisclaimer
	}
	return prompt
}

// relationTypesFor maps a query intent to the edge types worth a typed
// lookup on top of the structural searches.
func relationTypesFor(intent string) []string {
	switch intent {
	case "symptom":
		return []string{"HAS_SYMPTOM"}
	case "treatment":
		return []string{"TREATED_BY", "USES_MEDICINE"}
	case "cause":
		return []string{"CAUSES", "INCREASES_RISK"}
	case "diagnosis":
		return []string{"REQUIRES_EXAM"}
	case "complication":
		return []string{"LEADS_TO"}
	case "prevention":
		return []string{"INCREASES_RISK"}
	default:
		return nil
	}
}
