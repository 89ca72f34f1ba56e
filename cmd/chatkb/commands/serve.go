package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/chatkb/chatkb/internal/embedder"
	"github.com/chatkb/chatkb/internal/logging"
	"github.com/chatkb/chatkb/internal/server"
	"github.com/chatkb/chatkb/internal/store"
	"github.com/chatkb/chatkb/internal/tracing"
)

// NewServeCmd constructs the `chatkb serve` command, which starts the HTTP
// server that chatbot frontends talk to.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatkb HTTP server",
		Long: `Start the chatkb HTTP server on localhost.

The server exposes a REST API for chatbot administration, document
ingestion, vector search, and retrieval-grounded question answering.

Examples:
  chatkb serve
  chatkb serve --port 9090
  MODEL_PROVIDER=azure chatkb serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			engine, err := buildEngine(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			// Open the relational store for chatbots, sessions, and upload
			// records. CHATKB_DB overrides the default path (~/.chatkb/chatkb.db).
			dbPath := os.Getenv("CHATKB_DB")
			if dbPath == "" {
				dbPath, err = store.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("serve: could not resolve database path: %w", err)
				}
			}
			db, err := store.Open(dbPath)
			if err != nil {
				return fmt.Errorf("serve: failed to open database: %w", err)
			}
			defer func() { _ = db.Close() }()
			log.Info("database opened", slog.String("path", dbPath))

			pingers := []server.Pinger{server.NewStorePinger(db)}
			if embedder.Backend() == "ollama" || getEnvOrDefault("MODEL_PROVIDER", "ollama") == "ollama" {
				ollamaHost := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
				pingers = append(pingers, server.NewHTTPPinger(ollamaHost, "ollama"))
			}

			srv, err := server.New(engine, db, &server.Config{
				Host:        host,
				Port:        port,
				UploadDir:   filepath.Join(storageDir(), "documents"),
				DefaultTopK: getEnvInt("KB_TOP_K", 5),
				Logger:      log,
				Pingers:     pingers,
				APIKey:      os.Getenv("CHATKB_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
