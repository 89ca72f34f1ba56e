// Package budget provides token budget estimation and trimming for the
// retrieved context passed to the generation provider. Because the backend
// supports multiple providers with different tokenizers, it uses a
// conservative character-based heuristic: 1 token ≈ 4 characters (English
// prose and code). This deliberately under-estimates so there is headroom
// for model-specific overhead.
package budget

const (
	// charsPerToken is the character-to-token ratio used for estimation.
	charsPerToken = 4

	// DefaultMaxContextTokens is the default budget for retrieved context.
	// Conservative enough to fit 8k-context models together with the
	// system preamble, the question, and the answer.
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

// TrimBlocks drops context blocks from the tail until the total estimated
// token count fits within maxTokens. Blocks arrive in relevance order, so
// the least relevant context is dropped first. The first block is always
// kept, even if it alone exceeds the budget — answering with truncated
// context beats answering with none.
func TrimBlocks(blocks []string, maxTokens int) []string {
	if len(blocks) == 0 {
		return blocks
	}
	if maxTokens <= 0 {
		maxTokens = DefaultMaxContextTokens
	}

	total := 0
	keep := 0
	for _, b := range blocks {
		total += Estimate(b)
		if keep > 0 && total > maxTokens {
			break
		}
		keep++
	}
	return blocks[:keep]
}
