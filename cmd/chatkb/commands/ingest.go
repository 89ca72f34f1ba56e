package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/chatkb/chatkb/internal/extract"
	"github.com/chatkb/chatkb/internal/index"
	"github.com/chatkb/chatkb/internal/logging"
)

// NewIngestCmd constructs the `chatkb ingest` command, which indexes local
// files into a chatbot's knowledge base without going through the server.
func NewIngestCmd() *cobra.Command {
	var chatbotID string

	cmd := &cobra.Command{
		Use:   "ingest [files...]",
		Short: "Ingest local files into a chatbot's knowledge base",
		Long: `Extract, chunk, embed, and index local files into a chatbot's
knowledge base. Supported formats: .txt, .md, .pdf, .docx, .xlsx.

The embedding provider is selected via EMBEDDING_PROVIDER (falling back to
MODEL_PROVIDER, default: ollama). Index files are written under the storage
directory (CHATKB_STORAGE_DIR, default: ~/.chatkb/data).

Examples:
  chatkb ingest --chatbot support-bot docs/refund-policy.md
  chatkb ingest --chatbot support-bot handbook.pdf pricing.xlsx`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !index.ValidTenantID(chatbotID) {
				return fmt.Errorf("ingest: a valid --chatbot ID is required")
			}
			for _, path := range args {
				if !extract.Supported(path) {
					return fmt.Errorf("ingest: unsupported file type: %s", path)
				}
			}

			engine, err := buildEngine(ctx, log, false)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			for _, path := range args {
				docID, chunks, err := engine.AddFile(ctx, chatbotID, "", path)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				log.Info("document ingested",
					slog.String("chatbot_id", chatbotID),
					slog.String("document_id", docID),
					slog.String("file", path),
					slog.Int("chunks", chunks),
				)
				fmt.Printf("indexed %s as %s (%d chunks)\n", path, docID, chunks)
			}

			return nil
		},
	}

	cmd.Flags().StringVarP(&chatbotID, "chatbot", "c", "", "Chatbot ID to ingest into (required)")
	_ = cmd.MarkFlagRequired("chatbot")

	return cmd
}
