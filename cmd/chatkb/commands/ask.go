package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chatkb/chatkb/internal/index"
	"github.com/chatkb/chatkb/internal/logging"
)

// NewAskCmd constructs the `chatkb ask` command, which answers a single
// question grounded in a chatbot's knowledge base and prints the answer.
func NewAskCmd() *cobra.Command {
	var chatbotID string
	var topK int

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question against a chatbot's knowledge base",
		Long: `Retrieve the most relevant chunks from a chatbot's knowledge base
and ask the configured chat model to answer the question using them as
context.

The chat model is selected via MODEL_PROVIDER (ollama, openai, azure,
gemini; default: ollama).

Examples:
  chatkb ask --chatbot support-bot "what is the refund window?"
  MODEL_PROVIDER=openai chatkb ask --chatbot support-bot "when is support available?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !index.ValidTenantID(chatbotID) {
				return fmt.Errorf("ask: a valid --chatbot ID is required")
			}

			engine, err := buildEngine(ctx, log, true)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			question := strings.Join(args, " ")
			answer, err := engine.Answer(ctx, chatbotID, question, topK, nil)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}

			fmt.Println(answer)
			return nil
		},
	}

	cmd.Flags().StringVarP(&chatbotID, "chatbot", "c", "", "Chatbot ID to query (required)")
	cmd.Flags().IntVarP(&topK, "top-k", "k", 5, "Number of chunks to retrieve as context")
	_ = cmd.MarkFlagRequired("chatbot")

	return cmd
}
