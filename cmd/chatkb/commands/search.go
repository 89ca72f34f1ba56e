package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatkb/chatkb/internal/index"
	"github.com/chatkb/chatkb/internal/logging"
)

// NewSearchCmd constructs the `chatkb search` command, which runs a vector
// search against a chatbot's knowledge base and prints the ranked chunks.
func NewSearchCmd() *cobra.Command {
	var chatbotID string
	var topK int

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a chatbot's knowledge base",
		Long: `Embed the query and print the nearest chunks from a chatbot's
knowledge base, nearest first. Useful for inspecting what a chatbot would
retrieve for a given question.

Examples:
  chatkb search --chatbot support-bot "what is the refund window?"
  chatkb search --chatbot support-bot --top-k 3 "pricing tiers"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !index.ValidTenantID(chatbotID) {
				return fmt.Errorf("search: a valid --chatbot ID is required")
			}

			engine, err := buildEngine(ctx, log, false)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			query := strings.Join(args, " ")
			results, err := engine.Search(ctx, chatbotID, query, topK, nil)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			if len(results) == 0 {
				fmt.Println("no results")
				return nil
			}

			for i, res := range results {
				fmt.Printf("%d. document=%s distance=%.4f\n", i+1, res.DocumentID, res.Distance)
				if res.FilePath != "" {
					fmt.Printf("   file: %s\n", res.FilePath)
				}
				fmt.Printf("   %s\n", res.Chunk)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&chatbotID, "chatbot", "c", "", "Chatbot ID to search (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to retrieve")
	_ = cmd.MarkFlagRequired("chatbot")

	return cmd
}
