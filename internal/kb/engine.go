package kb

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chatkb/chatkb/internal/budget"
	"github.com/chatkb/chatkb/internal/chunker"
	"github.com/chatkb/chatkb/internal/extract"
	"github.com/chatkb/chatkb/internal/index"
	"github.com/chatkb/chatkb/internal/logging"
	"github.com/chatkb/chatkb/internal/metadata"
	"github.com/chatkb/chatkb/internal/prompt"
)

// NoRelevantInformation is returned by Answer when retrieval produces no
// results; the generation provider is not called in that case.
const NoRelevantInformation = "No relevant information found in the knowledge base."

// defaultTopK is the result count used when a caller passes k <= 0.
const defaultTopK = 5

// Config holds the engine's injected collaborators and tuning parameters.
type Config struct {
	// Embedder converts chunk and query text into vectors. Required.
	Embedder Embedder

	// Generator answers questions from retrieved context. Optional —
	// engines that only ingest and search may leave it nil; Answer then
	// fails with a configuration error.
	Generator Generator

	// Indexes is the per-tenant vector index registry. Required.
	Indexes *index.Store

	// Metadata is the document-record table. Required.
	Metadata *metadata.Store

	// ChunkSize is the chunk window length in characters.
	// Defaults to chunker.DefaultSize if zero.
	ChunkSize int

	// ChunkOverlap is the character overlap between consecutive chunks.
	// Defaults to chunker.DefaultOverlap if zero.
	ChunkOverlap int

	// MaxContextTokens caps the retrieved context passed to the generator.
	// Defaults to budget.DefaultMaxContextTokens if zero.
	MaxContextTokens int
}

// Engine orchestrates chunking, embedding, indexing, and retrieval for all
// tenants. It is safe for concurrent use: ingestion is serialized per tenant
// by the index store, and both stores guard their own state.
type Engine struct {
	embedder  Embedder
	generator Generator
	indexes   *index.Store
	meta      *metadata.Store

	chunkSize        int
	chunkOverlap     int
	maxContextTokens int
}

// New constructs an Engine from the given config.
func New(cfg *Config) (*Engine, error) {
	if cfg == nil {
		return nil, fmt.Errorf("kb: config must not be nil")
	}
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("kb: embedder must not be nil")
	}
	if cfg.Indexes == nil {
		return nil, fmt.Errorf("kb: index store must not be nil")
	}
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("kb: metadata store must not be nil")
	}

	e := &Engine{
		embedder:         cfg.Embedder,
		generator:        cfg.Generator,
		indexes:          cfg.Indexes,
		meta:             cfg.Metadata,
		chunkSize:        cfg.ChunkSize,
		chunkOverlap:     cfg.ChunkOverlap,
		maxContextTokens: cfg.MaxContextTokens,
	}
	if e.chunkSize <= 0 {
		e.chunkSize = chunker.DefaultSize
	}
	if e.chunkOverlap <= 0 {
		e.chunkOverlap = chunker.DefaultOverlap
	}
	if e.chunkOverlap >= e.chunkSize {
		return nil, fmt.Errorf("kb: chunk overlap %d must be smaller than chunk size %d",
			e.chunkOverlap, e.chunkSize)
	}
	if e.maxContextTokens <= 0 {
		e.maxContextTokens = budget.DefaultMaxContextTokens
	}
	return e, nil
}

// AddDocument ingests text for a tenant: chunk, embed, append to the
// tenant's index, and record the document metadata. If documentID is empty
// a fresh UUID is assigned. It returns the document ID and the number of
// chunks indexed.
//
// Reusing an existing documentID replaces its record; the previous record's
// vectors stay in the index but can no longer be resolved. The index is
// never compacted.
func (e *Engine) AddDocument(ctx context.Context, tenantID, documentID, filePath, text string) (string, int, error) {
	if !index.ValidTenantID(tenantID) {
		return "", 0, fmt.Errorf("kb: invalid tenant id %q", tenantID)
	}
	if documentID == "" {
		documentID = uuid.NewString()
	}

	chunks := chunker.Chunk(text, e.chunkSize, e.chunkOverlap)

	var vectors [][]float32
	if len(chunks) > 0 {
		var err error
		vectors, err = e.embedder.Embed(ctx, chunks)
		if err != nil {
			return "", 0, fmt.Errorf("kb: embedding document %s: %w", documentID, err)
		}
		if len(vectors) != len(chunks) {
			return "", 0, fmt.Errorf("kb: embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
		}
	}

	// The offset read and the append happen atomically per tenant, so
	// concurrent ingestions always get disjoint, dense ranges.
	start, err := e.indexes.AppendWithOffset(tenantID, vectors)
	if err != nil {
		return "", 0, fmt.Errorf("kb: indexing document %s: %w", documentID, err)
	}

	if e.meta.Contains(documentID) {
		logging.FromContext(ctx).Warn("kb: overwriting document record — previous vectors become unreachable",
			slog.String("document_id", documentID),
			slog.String("tenant_id", tenantID),
		)
	}

	rec := metadata.Record{
		FilePath:   filePath,
		Chunks:     chunks,
		NumVectors: len(chunks),
		StartIdx:   start,
		ChatbotID:  tenantID,
		AddedAt:    time.Now().UTC(),
	}
	if err := e.meta.Put(documentID, rec); err != nil {
		// The vectors are already in the index; without a record they are
		// unreachable, which is the documented non-atomicity of the two
		// stores.
		return "", 0, fmt.Errorf("kb: recording document %s: %w", documentID, err)
	}

	return documentID, len(chunks), nil
}

// AddFile extracts text from the file at path and ingests it as a document
// for the tenant. Unsupported file types fail before any chunking or
// embedding happens.
func (e *Engine) AddFile(ctx context.Context, tenantID, documentID, path string) (string, int, error) {
	text, err := extract.Text(path)
	if err != nil {
		return "", 0, err
	}
	return e.AddDocument(ctx, tenantID, documentID, path, text)
}

// Search embeds the query and returns up to k chunks from the tenant's
// documents, ranked by ascending distance. If documentIDs is non-empty,
// hits outside the given set are dropped after ranking. A tenant with no
// ingested documents yields an empty result, not an error.
func (e *Engine) Search(ctx context.Context, tenantID, query string, k int, documentIDs []string) ([]Result, error) {
	if !index.ValidTenantID(tenantID) {
		return nil, fmt.Errorf("kb: invalid tenant id %q", tenantID)
	}
	if k <= 0 {
		k = defaultTopK
	}

	total, err := e.indexes.Len(tenantID)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return nil, nil
	}

	embeddings, err := e.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("kb: embedding query: %w", err)
	}
	if len(embeddings) == 0 {
		return nil, fmt.Errorf("kb: embedder returned no vector for query")
	}

	hits, err := e.indexes.Search(tenantID, embeddings[0], k)
	if err != nil {
		return nil, err
	}

	var filter map[string]bool
	if len(documentIDs) > 0 {
		filter = make(map[string]bool, len(documentIDs))
		for _, id := range documentIDs {
			filter[id] = true
		}
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		if hit.Position < 0 || hit.Position >= total {
			// Sentinel entry from an underfilled index: no match.
			continue
		}
		res, ok := e.meta.Resolve(tenantID, hit.Position)
		if !ok {
			// Orphaned vector (overwritten document) — skip.
			continue
		}
		if filter != nil && !filter[res.DocumentID] {
			continue
		}
		results = append(results, Result{
			DocumentID: res.DocumentID,
			Chunk:      res.Chunk,
			Distance:   hit.Distance,
			FilePath:   res.FilePath,
		})
	}
	return results, nil
}

// Answer retrieves context for the query and asks the generation provider
// to answer from it. When retrieval comes back empty, a fixed fallback is
// returned without calling the provider.
func (e *Engine) Answer(ctx context.Context, tenantID, query string, k int, documentIDs []string) (string, error) {
	if e.generator == nil {
		return "", fmt.Errorf("kb: no generation provider configured")
	}

	results, err := e.Search(ctx, tenantID, query, k, documentIDs)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return NoRelevantInformation, nil
	}

	blocks := make([]string, len(results))
	for i, r := range results {
		blocks[i] = fmt.Sprintf("Context %d:\n%s", i+1, r.Chunk)
	}
	blocks = budget.TrimBlocks(blocks, e.maxContextTokens)

	messages := []Message{
		{Role: RoleSystem, Content: prompt.KnowledgeBase},
		{Role: RoleUser, Content: fmt.Sprintf(
			"Using the following context, answer this question: %s\n\nContext:\n%s",
			query, strings.Join(blocks, "\n\n"),
		)},
	}

	answer, err := e.generator.Generate(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("kb: generation failed: %w", err)
	}
	return answer, nil
}

// NameSession produces a short display name for a chat session from its
// opening question.
func (e *Engine) NameSession(ctx context.Context, question string) (string, error) {
	if e.generator == nil {
		return "", fmt.Errorf("kb: no generator configured")
	}
	if strings.TrimSpace(question) == "" {
		return "", fmt.Errorf("kb: question must not be empty")
	}

	name, err := e.generator.Generate(ctx, []Message{
		{Role: RoleSystem, Content: prompt.SessionName},
		{Role: RoleUser, Content: question},
	})
	if err != nil {
		return "", fmt.Errorf("kb: session naming failed: %w", err)
	}
	return strings.TrimSpace(name), nil
}

// ListDocuments returns the tenant's document records in ingestion order.
func (e *Engine) ListDocuments(tenantID string) ([]metadata.Entry, error) {
	if !index.ValidTenantID(tenantID) {
		return nil, fmt.Errorf("kb: invalid tenant id %q", tenantID)
	}
	return e.meta.ListForTenant(tenantID), nil
}
