package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

var (
	ingestName string
	ingestJSON bool
)

var (
	successLabel = color.New(color.FgGreen, color.Bold).SprintFunc()
	warningLabel = color.New(color.FgYellow, color.Bold).SprintFunc()
	errorLabel   = color.New(color.FgRed, color.Bold).SprintFunc()
	skippedLabel = color.New(color.FgHiBlack).SprintFunc()
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest documents into the vector store",
}

var ingestFileCmd = &cobra.Command{
	Use:   "file [path]",
	Short: "Ingest a single file",
	Long: `Extracts, chunks and embeds one file. Re-ingesting a file with the
same name replaces its previous chunks.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestFile,
}

var ingestDirCmd = &cobra.Command{
	Use:   "dir [path]",
	Short: "Ingest every supported file in a directory",
	Long: `Ingests the files directly under a directory. Unsupported files are
skipped and subdirectories are not descended into.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestDir,
}

var ingestURLCmd = &cobra.Command{
	Use:   "url [url]",
	Short: "Fetch and ingest a web page",
	Args:  cobra.ExactArgs(1),
	RunE:  runIngestURL,
}

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List the supported document types",
	RunE:  runTypes,
}

func init() {
	ingestFileCmd.Flags().StringVar(&ingestName, "name", "", "document name (defaults to the file name)")
	ingestCmd.PersistentFlags().BoolVar(&ingestJSON, "json", false, "output results as JSON")

	ingestCmd.AddCommand(ingestFileCmd)
	ingestCmd.AddCommand(ingestDirCmd)
	ingestCmd.AddCommand(ingestURLCmd)
	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(typesCmd)
}

func runIngestFile(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	path := args[0]
	name := ingestName
	if name == "" {
		name = filepath.Base(path)
	}

	result := ingestionService.IngestDocument(commandContext(cmd), path, name)
	if ingestJSON {
		return outputJSON(cmd, result)
	}
	printResult(cmd, result)
	return resultError(result)
}

func runIngestURL(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}
	if !domain.IsLink(args[0]) {
		return fmt.Errorf("%w: not an http(s) URL: %s", domain.ErrInvalidInput, args[0])
	}

	result := ingestionService.IngestURL(commandContext(cmd), args[0])
	if ingestJSON {
		return outputJSON(cmd, result)
	}
	printResult(cmd, result)
	return resultError(result)
}

func runIngestDir(cmd *cobra.Command, args []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	batch, err := ingestionService.IngestDirectory(commandContext(cmd), args[0])
	if batch != nil {
		if ingestJSON {
			if jsonErr := outputJSON(cmd, batch); jsonErr != nil {
				return jsonErr
			}
		} else {
			printBatch(cmd, batch)
		}
	}
	if err != nil {
		return fmt.Errorf("failed to process directory: %w", err)
	}
	return nil
}

func runTypes(cmd *cobra.Command, _ []string) error {
	if ingestionService == nil {
		return errors.New("ingestion service not configured")
	}

	types := ingestionService.SupportedTypes(commandContext(cmd))
	cmd.Println("Supported extensions:")
	for _, ext := range types.SupportedExtensions {
		cmd.Printf("  %s\n", ext)
	}
	cmd.Println()

	names := make([]string, 0, len(types.DocumentTypes))
	for name := range types.DocumentTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cmd.Printf("  %-7s %s\n", name, types.DocumentTypes[name])
	}
	cmd.Println()
	cmd.Printf("OCR: %s\n", types.OCRAvailability)
	return nil
}

// printResult writes one line per document: status, name and detail
func printResult(cmd *cobra.Command, r *domain.IngestionResult) {
	cmd.Printf("  %s %s\n", statusLabel(r.Status), r.FileName)
	switch {
	case r.IsSuccess():
		cmd.Printf("      %d chunks, %s, embedded with %s\n", r.ChunksCreated, r.DocumentType, r.EmbeddingProvider)
	case r.Message != "":
		cmd.Printf("      %s\n", r.Message)
	}
}

func printBatch(cmd *cobra.Command, b *domain.BatchResult) {
	for _, r := range b.Results {
		printResult(cmd, r)
	}
	cmd.Println()
	cmd.Printf("%s: %d files, %d successful, %d warnings, %d failed, %d skipped\n",
		statusLabel(b.Status), b.TotalFiles, b.Successful, b.Warnings, b.Failed, b.Skipped)
}

func statusLabel(s domain.IngestionStatus) string {
	label := fmt.Sprintf("%-7s", s)
	switch s {
	case domain.IngestionSuccess:
		return successLabel(label)
	case domain.IngestionWarning:
		return warningLabel(label)
	case domain.IngestionError:
		return errorLabel(label)
	default:
		return skippedLabel(label)
	}
}

// resultError turns an error-tier result into a non-zero exit
func resultError(r *domain.IngestionResult) error {
	if r.Status != domain.IngestionError {
		return nil
	}
	if r.Err != nil {
		return fmt.Errorf("ingestion of %s failed: %w", r.FileName, r.Err)
	}
	return fmt.Errorf("ingestion of %s failed: %s", r.FileName, r.Message)
}

func outputJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
