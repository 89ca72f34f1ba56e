// Package chunker splits extracted document text into overlapping
// fixed-size windows. Chunk order is load-bearing: a chunk's rank in the
// returned slice becomes its vector offset within the owning tenant's
// index, so the walk must be deterministic and strictly forward.
package chunker

// Default window parameters, matching the ingestion pipeline defaults.
const (
	// DefaultSize is the target chunk length in characters (runes).
	DefaultSize = 1000
	// DefaultOverlap is the number of characters shared with the
	// preceding chunk.
	DefaultOverlap = 100
)

// Chunk splits text into windows of size runes, each starting overlap runes
// before the end of its predecessor. The final window ends exactly at the
// text length, so no overlap step is taken once the remaining text is
// shorter than size. Empty input yields zero chunks; any non-empty input
// yields at least one.
//
// Callers are expected to pass overlap < size. If they don't, the window
// start is forced forward one rune per iteration so the walk still
// terminates.
func Chunk(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}

	runes := []rune(text)
	n := len(runes)
	if n == 0 {
		return nil
	}

	var chunks []string
	start := 0
	for start < n {
		end := start + size
		if end > n {
			end = n
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
		next := end - overlap
		if next <= start {
			// overlap >= size: force progress rather than loop forever.
			next = start + 1
		}
		start = next
	}

	return chunks
}
