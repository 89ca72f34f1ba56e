package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/chatkb/chatkb/internal/embedder"
	"github.com/chatkb/chatkb/internal/generator"
	"github.com/chatkb/chatkb/internal/index"
	"github.com/chatkb/chatkb/internal/kb"
	"github.com/chatkb/chatkb/internal/metadata"
)

// getEnvOrDefault returns the env var value, or def when unset or empty.
func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt returns the env var parsed as int, or def when unset or invalid.
func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// storageDir resolves the root directory for index files, uploads, and
// metadata: CHATKB_STORAGE_DIR if set, otherwise ~/.chatkb/data, falling
// back to ./data when the home directory cannot be resolved.
func storageDir() string {
	if v := os.Getenv("CHATKB_STORAGE_DIR"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(home, ".chatkb", "data")
}

// buildEngine assembles the knowledge-base engine from the environment:
// embedding provider, on-disk index registry, metadata store, and (when
// withGenerator is set) the chat model used to answer questions.
func buildEngine(ctx context.Context, log *slog.Logger, withGenerator bool) (*kb.Engine, error) {
	if err := embedder.Validate(log); err != nil {
		return nil, err
	}

	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	backend := embedder.Backend()
	dims := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(backend))
	log.Info("embedder initialised",
		slog.String("provider", backend),
		slog.Int("dimensions", dims),
	)

	dir := storageDir()
	indexes, err := index.NewStore(filepath.Join(dir, "indices"), dims)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}
	meta, err := metadata.Open(filepath.Join(dir, "metadata.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	log.Info("storage ready", slog.String("dir", dir))

	var gen kb.Generator
	if withGenerator {
		gen, err = generator.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to initialise model provider: %w", err)
		}
		log.Info("model provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))
	}

	return kb.New(&kb.Config{
		Embedder:         emb,
		Generator:        gen,
		Indexes:          indexes,
		Metadata:         meta,
		ChunkSize:        getEnvInt("KB_CHUNK_SIZE", 0),
		ChunkOverlap:     getEnvInt("KB_CHUNK_OVERLAP", 0),
		MaxContextTokens: getEnvInt("KB_MAX_CONTEXT_TOKENS", 0),
	})
}
