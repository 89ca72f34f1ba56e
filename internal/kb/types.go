// Package kb implements the knowledge-base engine: per-tenant document
// ingestion (chunk → embed → index → record) and retrieval (embed →
// nearest-neighbor search → chunk resolution), plus retrieval-grounded
// question answering. The engine exclusively owns the vector index store
// and the document metadata table; no other component touches their files.
package kb

import "context"

// Embedder converts text into dense vector embeddings of a fixed dimension.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Role identifies the author of a generation message.
type Role string

const (
	// RoleSystem carries instructions that frame the conversation.
	RoleSystem Role = "system"
	// RoleUser carries the end user's input.
	RoleUser Role = "user"
	// RoleAssistant carries model output.
	RoleAssistant Role = "assistant"
)

// Message is a single role-tagged turn sent to the generation provider.
type Message struct {
	// Role is the author of the message.
	Role Role
	// Content is the text of the message.
	Content string
}

// Generator produces text from an ordered list of role-tagged messages.
// Implementations must be safe to call from multiple goroutines.
type Generator interface {
	// Generate returns the model's response to the given messages.
	Generate(ctx context.Context, messages []Message) (string, error)
}

// Result is one ranked retrieval hit, resolved back to its document.
type Result struct {
	// DocumentID is the document the chunk belongs to.
	DocumentID string `json:"document_id"`
	// Chunk is the retrieved chunk text.
	Chunk string `json:"chunk"`
	// Distance is the squared L2 distance to the query embedding; smaller
	// is more similar.
	Distance float32 `json:"distance"`
	// FilePath locates the source file of the owning document.
	FilePath string `json:"file_path"`
}
