// Package budget provides token budget estimation and context trimming for
// the chat pipeline. Because the backend supports multiple LLM providers
// with different tokenizers, this package uses a conservative character-based
// heuristic: 1 token ≈ 4 characters (prose and technical text). This
// deliberately under-estimates token counts to leave headroom for
// model-specific overhead.
package budget

const (
	// charsPerToken is the conservative character-to-token ratio used for
	// estimation. 4 chars/token is standard for Latin-script prose; using 3
	// would be more aggressive but risks overflowing context windows.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for the retrieved
	// context block. Conservative enough that the grounded-QA prompt fits
	// within 8k-context models while leaving room for the output.
	DefaultMaxContextTokens = 6000
)

// Estimate returns a rough token count for s using the character heuristic.
func Estimate(s string) int {
	n := len(s) / charsPerToken
	if n == 0 && len(s) > 0 {
		return 1
	}
	return n
}

// TrimChunks drops retrieved context chunks from the tail until the total
// estimated token count fits within maxTokens. Chunks arrive in similarity
// order, so the least relevant matches are dropped first. The input slice
// is never mutated; the returned slice shares its backing array.
//
// The first chunk is always kept even when it alone exceeds the budget —
// the budget is a headroom guard, not a hard protocol limit, and an answer
// grounded in one oversized chunk beats an answer grounded in nothing.
func TrimChunks(chunks []string, maxTokens int) []string {
	if maxTokens <= 0 || len(chunks) == 0 {
		return chunks
	}

	total := 0
	for i, chunk := range chunks {
		t := Estimate(chunk)
		if i > 0 && total+t > maxTokens {
			return chunks[:i]
		}
		total += t
	}
	return chunks
}
