package pipeline

import (
	"encoding/json"
	"strings"
)

// answerField is the single field the grounded-QA call is instructed to
// return in its JSON envelope.
const answerField = "answer"

// extractAnswer resolves the model's structured output into plain answer
// text. It is a small state machine over the possible output shapes rather
// than nested error handling:
//
//	not JSON at all      → the raw model text, trimmed
//	JSON, field missing  → the raw model text, trimmed
//	field is a string    → the string value
//	field is any other   → the field re-serialized to its JSON text form
//
// It never fails: whatever the model produced, some usable text comes back.
func extractAnswer(raw string) string {
	candidate := stripCodeFence(strings.TrimSpace(raw))

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal([]byte(candidate), &envelope); err != nil {
		return strings.TrimSpace(raw)
	}

	field, ok := envelope[answerField]
	if !ok {
		return strings.TrimSpace(raw)
	}

	var s string
	if err := json.Unmarshal(field, &s); err == nil {
		return s
	}

	// Nested object or array — surface its serialized form rather than fail.
	return string(field)
}

// stripCodeFence removes a surrounding Markdown code fence (``` or ```json)
// if present. Models in JSON mode usually return bare JSON, but fenced
// output shows up often enough with smaller local models.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json", "JSON", or empty).
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
