// Package cli is the command-line front end for ingesting documents and
// asking questions without running the HTTP server.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driving"
)

var (
	version = "dev"

	ingestionService driving.IngestionService
	chatService      driving.ChatService
)

var rootCmd = &cobra.Command{
	Use:   "sercha-rag-ingest",
	Short: "Ingest documents and query the RAG index from the command line",
	Long: `Feeds documents into the same vector store the API serves from.
Files, whole directories and web pages can be ingested, and questions
can be answered against the stored chunks.`,
	SilenceUsage: true,
}

// SetServices installs the services the commands run against
func SetServices(ingestion driving.IngestionService, chat driving.ChatService) {
	ingestionService = ingestion
	chatService = chat
}

// SetVersion sets the version reported by the version command
func SetVersion(v string) {
	version = v
}

// Execute runs the root command with os.Args.
// Cancelling ctx aborts in-flight ingestion.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
