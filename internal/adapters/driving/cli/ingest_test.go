package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

type mockIngestionService struct {
	lastPath string
	lastName string
	result   *domain.IngestionResult
	batch    *domain.BatchResult
	batchErr error
}

func (m *mockIngestionService) IngestDocument(_ context.Context, path, name string) *domain.IngestionResult {
	m.lastPath, m.lastName = path, name
	return m.result
}

func (m *mockIngestionService) IngestURL(_ context.Context, url string) *domain.IngestionResult {
	m.lastPath, m.lastName = url, url
	return m.result
}

func (m *mockIngestionService) IngestDirectory(_ context.Context, dir string) (*domain.BatchResult, error) {
	m.lastPath = dir
	return m.batch, m.batchErr
}

func (m *mockIngestionService) SupportedTypes(_ context.Context) *domain.SupportedTypes {
	return domain.NewSupportedTypes(false)
}

type mockChatService struct {
	lastQuery string
	lastOpts  domain.ChatOptions
	answer    string
	retrieval *domain.RetrievalResult
	err       error
}

func (m *mockChatService) Answer(_ context.Context, query string, opts domain.ChatOptions) (string, error) {
	m.lastQuery, m.lastOpts = query, opts
	return m.answer, m.err
}

func (m *mockChatService) Retrieve(_ context.Context, query string, opts domain.ChatOptions) (*domain.RetrievalResult, error) {
	m.lastQuery, m.lastOpts = query, opts
	return m.retrieval, m.err
}

// runCommand executes the root command with args and returns its output
func runCommand(t *testing.T, ingestion *mockIngestionService, chat *mockChatService, args ...string) (string, error) {
	t.Helper()

	oldIngestion, oldChat, oldNoColor := ingestionService, chatService, color.NoColor
	color.NoColor = true
	ingestName, ingestJSON = "", false
	askSource, askProvider, askContext = "", "", false

	if ingestion != nil {
		ingestionService = ingestion
	} else {
		ingestionService = nil
	}
	if chat != nil {
		chatService = chat
	} else {
		chatService = nil
	}
	t.Cleanup(func() {
		ingestionService, chatService, color.NoColor = oldIngestion, oldChat, oldNoColor
		rootCmd.SetArgs(nil)
	})

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	return buf.String(), err
}

func successResult(name string) *domain.IngestionResult {
	return &domain.IngestionResult{
		Status:            domain.IngestionSuccess,
		Message:           "Successfully processed",
		FileName:          name,
		ChunksCreated:     3,
		DocumentType:      domain.DocumentTypeText,
		EmbeddingProvider: "openai",
	}
}

func TestIngestCmd_HasSubcommands(t *testing.T) {
	names := make([]string, 0)
	for _, cmd := range ingestCmd.Commands() {
		names = append(names, cmd.Name())
	}

	assert.Contains(t, names, "file")
	assert.Contains(t, names, "dir")
	assert.Contains(t, names, "url")
}

func TestIngestFileCmd_RequiresExactlyOneArg(t *testing.T) {
	_, err := runCommand(t, &mockIngestionService{}, nil, "ingest", "file")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestIngestFileCmd_Success(t *testing.T) {
	svc := &mockIngestionService{result: successResult("notes.txt")}

	out, err := runCommand(t, svc, nil, "ingest", "file", "/data/in/notes.txt")

	require.NoError(t, err)
	assert.Equal(t, "/data/in/notes.txt", svc.lastPath)
	assert.Equal(t, "notes.txt", svc.lastName)
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "notes.txt")
	assert.Contains(t, out, "3 chunks, txt, embedded with openai")
}

func TestIngestFileCmd_NameFlag(t *testing.T) {
	svc := &mockIngestionService{result: successResult("report")}

	_, err := runCommand(t, svc, nil, "ingest", "file", "--name", "report", "/tmp/abc.txt")

	require.NoError(t, err)
	assert.Equal(t, "report", svc.lastName)
}

func TestIngestFileCmd_WarningIsNotAnError(t *testing.T) {
	svc := &mockIngestionService{result: &domain.IngestionResult{
		Status:   domain.IngestionWarning,
		Message:  "No text could be extracted from empty.txt",
		FileName: "empty.txt",
	}}

	out, err := runCommand(t, svc, nil, "ingest", "file", "empty.txt")

	require.NoError(t, err)
	assert.Contains(t, out, "warning")
	assert.Contains(t, out, "No text could be extracted")
}

func TestIngestFileCmd_ErrorExitsNonZero(t *testing.T) {
	svc := &mockIngestionService{result: &domain.IngestionResult{
		Status:   domain.IngestionError,
		Message:  "Error storing chunks",
		FileName: "a.txt",
		Err:      domain.ErrIngestionInProgress,
	}}

	out, err := runCommand(t, svc, nil, "ingest", "file", "a.txt")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrIngestionInProgress)
	assert.Contains(t, out, "Error storing chunks")
}

func TestIngestFileCmd_JSON(t *testing.T) {
	svc := &mockIngestionService{result: successResult("notes.txt")}

	out, err := runCommand(t, svc, nil, "ingest", "file", "--json", "notes.txt")

	require.NoError(t, err)
	assert.Contains(t, out, `"status": "success"`)
	assert.Contains(t, out, `"chunks_created": 3`)
}

func TestIngestFileCmd_NoService(t *testing.T) {
	_, err := runCommand(t, nil, nil, "ingest", "file", "a.txt")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "not configured")
}

func TestIngestURLCmd(t *testing.T) {
	svc := &mockIngestionService{result: successResult("https://example.com/page")}

	out, err := runCommand(t, svc, nil, "ingest", "url", "https://example.com/page")

	require.NoError(t, err)
	assert.Equal(t, "https://example.com/page", svc.lastPath)
	assert.Contains(t, out, "https://example.com/page")
}

func TestIngestURLCmd_RejectsNonURL(t *testing.T) {
	svc := &mockIngestionService{}

	_, err := runCommand(t, svc, nil, "ingest", "url", "/etc/passwd")

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, svc.lastPath)
}

func TestIngestDirCmd_PrintsSummary(t *testing.T) {
	batch := &domain.BatchResult{}
	batch.Add(successResult("a.txt"))
	batch.Add(&domain.IngestionResult{Status: domain.IngestionWarning, Message: "No text", FileName: "b.txt"})
	batch.Add(&domain.IngestionResult{Status: domain.IngestionSkipped, Message: "Unsupported file type: .zip", FileName: "c.zip"})
	batch.Finalise()
	svc := &mockIngestionService{batch: batch}

	out, err := runCommand(t, svc, nil, "ingest", "dir", "/data/in")

	require.NoError(t, err)
	assert.Equal(t, "/data/in", svc.lastPath)
	assert.Contains(t, out, "c.zip")
	assert.Contains(t, out, "skipped")
	assert.Contains(t, out, "3 files, 1 successful, 1 warnings, 0 failed, 1 skipped")
}

func TestIngestDirCmd_Error(t *testing.T) {
	svc := &mockIngestionService{
		batch:    &domain.BatchResult{Status: domain.IngestionError},
		batchErr: errors.New("permission denied"),
	}

	_, err := runCommand(t, svc, nil, "ingest", "dir", "/root")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to process directory: permission denied")
}

func TestTypesCmd(t *testing.T) {
	out, err := runCommand(t, &mockIngestionService{}, nil, "types")

	require.NoError(t, err)
	assert.Contains(t, out, ".docx")
	assert.Contains(t, out, "PDF")
	assert.Contains(t, out, "OCR: Not available")
}

func TestResultError(t *testing.T) {
	assert.NoError(t, resultError(successResult("a")))
	assert.NoError(t, resultError(&domain.IngestionResult{Status: domain.IngestionSkipped}))

	err := resultError(&domain.IngestionResult{Status: domain.IngestionError, FileName: "a", Message: "boom"})
	require.Error(t, err)
	assert.Equal(t, "ingestion of a failed: boom", err.Error())
}

func TestVersionCmd(t *testing.T) {
	old := version
	SetVersion("1.2.3")
	defer SetVersion(old)

	out, err := runCommand(t, nil, nil, "version")

	require.NoError(t, err)
	assert.Contains(t, out, "sercha-rag version 1.2.3")
}
