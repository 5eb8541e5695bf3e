package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	askSource   string
	askProvider string
	askContext  bool
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the ingested documents",
	Long: `Retrieves the chunks closest to the question and asks the generation
provider to answer from them. With --source, retrieval is limited to one
document and falls back to the whole index when that document has no match.`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askSource, "source", "", "restrict retrieval to one document name")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "generation provider override")
	askCmd.Flags().BoolVar(&askContext, "show-context", false, "print the retrieved chunks before the answer")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	if chatService == nil {
		return errors.New("chat service not configured")
	}

	ctx := commandContext(cmd)
	opts := domain.ChatOptions{Source: askSource, Provider: askProvider}

	if askContext {
		retrieval, err := chatService.Retrieve(ctx, args[0], opts)
		if err != nil {
			return fmt.Errorf("retrieval failed: %w", err)
		}
		printRetrieval(cmd, retrieval)
	}

	answer, err := chatService.Answer(ctx, args[0], opts)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	cmd.Println(answer)
	return nil
}

func printRetrieval(cmd *cobra.Command, r *domain.RetrievalResult) {
	if r == nil || len(r.Chunks) == 0 {
		cmd.Println("No context retrieved.")
		cmd.Println()
		return
	}

	cmd.Println("Context:")
	for i, c := range r.Chunks {
		cmd.Printf("  [%d] %s (chunk %d/%d)\n", i+1, c.Metadata.Source, c.Metadata.ChunkIndex, c.Metadata.TotalChunks)
	}
	cmd.Println()
}
