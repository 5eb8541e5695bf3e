package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-rag/internal/adapters/driven/memory"
	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/extractors"
	"github.com/custodia-labs/sercha-rag/internal/runtime"
)

func TestIngestDocument_Success(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "upload-1.txt", longText(8))

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")

	require.Equal(t, domain.IngestionSuccess, result.Status, result.Message)
	assert.Equal(t, "notes.txt", result.FileName)
	assert.Equal(t, domain.DocumentTypeText, result.DocumentType)
	assert.Equal(t, "openai", result.EmbeddingProvider)
	assert.Greater(t, result.ChunksCreated, 1)
	assert.Equal(t, fmt.Sprintf("Document notes.txt ingested successfully (%d chunks)", result.ChunksCreated), result.Message)

	stored := h.store.ChunksForSource("notes.txt")
	require.Len(t, stored, result.ChunksCreated)
	for i := 0; i < result.ChunksCreated; i++ {
		chunk, ok := h.store.Get(domain.ChunkID("notes.txt", i))
		require.True(t, ok, "missing chunk %d", i)
		assert.Equal(t, i+1, chunk.Metadata.ChunkIndex)
		assert.Equal(t, result.ChunksCreated, chunk.Metadata.TotalChunks)
		assert.Equal(t, path, chunk.Metadata.FilePath)
		assert.Equal(t, len([]rune(chunk.Text)), chunk.Metadata.ChunkLength)
		assert.LessOrEqual(t, chunk.Metadata.ChunkLength, 60)
	}

	doc, err := h.docs.Get(context.Background(), "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, result.ChunksCreated, doc.ChunkCount)
	assert.Equal(t, "openai", doc.EmbeddingProvider)

	assert.Equal(t, []string{"ingest:notes.txt"}, h.lock.Acquired())
	assert.False(t, h.lock.IsHeld("ingest:notes.txt"))
}

func TestIngestDocument_DefaultsNameToBase(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "plain.txt", "Hello there.")

	result := h.svc.IngestDocument(context.Background(), path, "")

	assert.Equal(t, domain.IngestionSuccess, result.Status)
	assert.Equal(t, "plain.txt", result.FileName)
	_, ok := h.store.Get("plain.txt_chunk_0")
	assert.True(t, ok)
}

func TestIngestDocument_UnreadableFile(t *testing.T) {
	h := newIngestionHarness(t)

	result := h.svc.IngestDocument(context.Background(), filepath.Join(t.TempDir(), "gone.txt"), "gone.txt")

	assert.Equal(t, domain.IngestionError, result.Status)
	assert.Contains(t, result.Message, "Cannot read file gone.txt")
	assert.Empty(t, h.lock.Acquired(), "extraction must not start")
}

func TestIngestDocument_Directory(t *testing.T) {
	h := newIngestionHarness(t)

	result := h.svc.IngestDocument(context.Background(), t.TempDir(), "folder.txt")
	assert.Equal(t, domain.IngestionError, result.Status)
}

func TestIngestDocument_TypeComesFromPathNotName(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "report.txt", "Quarterly revenue grew.")

	result := h.svc.IngestDocument(context.Background(), path, "Quarterly Report")

	require.Equal(t, domain.IngestionSuccess, result.Status, result.Message)
	assert.Equal(t, domain.DocumentTypeText, result.DocumentType)
	chunk, ok := h.store.Get(domain.ChunkID("Quarterly Report", 0))
	require.True(t, ok)
	assert.Equal(t, domain.DocumentTypeText, chunk.Metadata.DocumentType)
	assert.Equal(t, "Quarterly Report", chunk.Metadata.Source)

	doc, err := h.docs.Get(context.Background(), "Quarterly Report")
	require.NoError(t, err)
	assert.Equal(t, domain.DocumentTypeText, doc.Type)
}

func TestIngestDocument_MisleadingNameExtensionIgnored(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Plain text, not an image.")

	result := h.svc.IngestDocument(context.Background(), path, "scan.png")

	require.Equal(t, domain.IngestionSuccess, result.Status, result.Message)
	assert.Equal(t, domain.DocumentTypeText, result.DocumentType)
	chunk, ok := h.store.Get("scan.png_chunk_0")
	require.True(t, ok)
	assert.Equal(t, domain.DocumentTypeText, chunk.Metadata.DocumentType)
}

func TestIngestDocument_UnsupportedType(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "archive.zip", "PK")

	result := h.svc.IngestDocument(context.Background(), path, "archive.zip")

	assert.Equal(t, domain.IngestionError, result.Status)
	assert.Contains(t, result.Message, ".zip")
	assert.Zero(t, result.ChunksCreated)
}

func TestIngestDocument_EmptyTextIsWarning(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "blank.txt", "  \n\t \r\n")

	result := h.svc.IngestDocument(context.Background(), path, "blank.txt")

	assert.Equal(t, domain.IngestionWarning, result.Status)
	assert.Contains(t, result.Message, "No text content could be extracted from blank.txt")
	assert.Empty(t, h.store.ChunksForSource("blank.txt"))
	_, err := h.docs.Get(context.Background(), "blank.txt")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIngestDocument_ExtractionFailureIsWarning(t *testing.T) {
	h := newIngestionHarness(t)
	path := writeTestFile(t, t.TempDir(), "broken.pdf", "this is not a pdf")

	result := h.svc.IngestDocument(context.Background(), path, "broken.pdf")

	assert.Equal(t, domain.IngestionWarning, result.Status)
	assert.Contains(t, result.Message, domain.ErrExtractionFailed.Error())
}

func TestIngestDocument_ImageViaOCR(t *testing.T) {
	h := newIngestionHarness(t)
	h.runner.outputs["tesseract"] = "Invoice total 42 EUR."
	path := writeTestFile(t, t.TempDir(), "scan.png", "\x89PNG")

	result := h.svc.IngestDocument(context.Background(), path, "scan.png")

	require.Equal(t, domain.IngestionSuccess, result.Status, result.Message)
	assert.Equal(t, domain.DocumentTypeImage, result.DocumentType)
	chunk, ok := h.store.Get("scan.png_chunk_0")
	require.True(t, ok)
	assert.Equal(t, "Invoice total 42 EUR.", chunk.Text)
}

func TestIngestDocument_StoreFailure(t *testing.T) {
	h := newIngestionHarness(t)
	h.store.UpsertErr = fmt.Errorf("%w: disk full", domain.ErrStoreFailure)
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")

	assert.Equal(t, domain.IngestionError, result.Status)
	assert.Contains(t, result.Message, "disk full")
	assert.Zero(t, result.ChunksCreated)
	count, _ := h.docs.Count(context.Background())
	assert.Zero(t, count)
	assert.False(t, h.lock.IsHeld("ingest:notes.txt"), "lock must be released on failure")
}

func TestIngestDocument_EmbeddingFailureIsError(t *testing.T) {
	h := newIngestionHarness(t)
	fn := runtime.NewEmbeddingFunction(h.services, 1, discardLogger())
	h.svc.store = memory.NewVectorStore(fn)
	h.embed.SetFailNext(fmt.Errorf("%w: connection refused", domain.ErrProviderUnavailable))
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")

	assert.Equal(t, domain.IngestionError, result.Status)
	assert.Contains(t, result.Message, "connection refused")
}

func TestIngestDocument_ReingestPrunesStaleChunks(t *testing.T) {
	h := newIngestionHarness(t)
	dir := t.TempDir()
	ctx := context.Background()

	first := h.svc.IngestDocument(ctx, writeTestFile(t, dir, "v1.txt", longText(10)), "report.txt")
	require.Equal(t, domain.IngestionSuccess, first.Status)
	require.Greater(t, first.ChunksCreated, 2)

	second := h.svc.IngestDocument(ctx, writeTestFile(t, dir, "v2.txt", "Short replacement."), "report.txt")
	require.Equal(t, domain.IngestionSuccess, second.Status)
	assert.Equal(t, 1, second.ChunksCreated)

	stored := h.store.ChunksForSource("report.txt")
	require.Len(t, stored, 1)
	assert.Equal(t, "Short replacement.", stored[0].Text)
	assert.Equal(t, 1, stored[0].Metadata.TotalChunks)
}

func TestIngestDocument_PruneFailureStillSucceeds(t *testing.T) {
	h := newIngestionHarness(t)
	h.store.DeleteErr = fmt.Errorf("%w: timeout", domain.ErrStoreFailure)
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")
	assert.Equal(t, domain.IngestionSuccess, result.Status)
}

func TestIngestDocument_LockHeld(t *testing.T) {
	h := newIngestionHarness(t)
	h.lock.SetLockHeld("ingest:notes.txt", time.Minute)
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")

	assert.Equal(t, domain.IngestionError, result.Status)
	assert.Contains(t, result.Message, domain.ErrIngestionInProgress.Error())
	assert.ErrorIs(t, result.Err, domain.ErrIngestionInProgress)
	assert.Empty(t, h.store.ChunksForSource("notes.txt"))
}

func TestIngestDocument_LockError(t *testing.T) {
	h := newIngestionHarness(t)
	h.lock.AcquireFn = func(string, time.Duration) (bool, error) {
		return false, fmt.Errorf("redis unavailable")
	}
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")
	assert.Equal(t, domain.IngestionError, result.Status)
	assert.Contains(t, result.Message, "redis unavailable")
}

func TestAcquire_RenewsLockWhileHeld(t *testing.T) {
	h := newIngestionHarness(t)
	h.svc.lockTTL = 60 * time.Millisecond

	release, err := h.svc.acquire(context.Background(), "slow.pdf")
	require.NoError(t, err)

	time.Sleep(2 * h.svc.lockTTL)
	assert.True(t, h.lock.IsHeld("ingest:slow.pdf"), "lock expired during a long ingestion")
	assert.Positive(t, h.lock.Extends())

	release()
	assert.False(t, h.lock.IsHeld("ingest:slow.pdf"))

	extends := h.lock.Extends()
	time.Sleep(2 * h.svc.lockTTL)
	assert.Equal(t, extends, h.lock.Extends(), "renewal continued after release")
}

func TestAcquire_ExtendFailureIsLoggedOnly(t *testing.T) {
	h := newIngestionHarness(t)
	h.svc.lockTTL = 30 * time.Millisecond
	h.lock.ExtendFn = func(string, time.Duration) error { return fmt.Errorf("redis unavailable") }

	release, err := h.svc.acquire(context.Background(), "a.txt")
	require.NoError(t, err)
	time.Sleep(3 * h.svc.lockTTL)
	release()

	assert.Positive(t, h.lock.Extends())
	assert.False(t, h.lock.IsHeld("ingest:a.txt"))
}

func TestAcquire_StopsRenewingLostLock(t *testing.T) {
	h := newIngestionHarness(t)
	h.svc.lockTTL = 30 * time.Millisecond
	h.lock.ExtendFn = func(name string, _ time.Duration) error {
		return fmt.Errorf("%w: %s", domain.ErrLockNotHeld, name)
	}

	release, err := h.svc.acquire(context.Background(), "a.txt")
	require.NoError(t, err)
	time.Sleep(4 * h.svc.lockTTL)
	release()

	assert.Equal(t, 1, h.lock.Extends())
}

func TestIngestDocument_WithoutOptionalDependencies(t *testing.T) {
	h := newIngestionHarness(t)
	h.svc.lock = nil
	h.svc.documents = nil
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")
	assert.Equal(t, domain.IngestionSuccess, result.Status)
}

func TestIngestDocument_RegistryFailureIsLoggedOnly(t *testing.T) {
	h := newIngestionHarness(t)
	h.docs.SaveErr = fmt.Errorf("registry offline")
	path := writeTestFile(t, t.TempDir(), "notes.txt", "Some text.")

	result := h.svc.IngestDocument(context.Background(), path, "notes.txt")
	assert.Equal(t, domain.IngestionSuccess, result.Status)
}

func TestIngestURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(`<html><head><title>t</title><script>var x;</script></head>
			<body><h1>Release notes</h1><p>Version two adds search.</p></body></html>`))
	}))
	defer server.Close()

	h := newIngestionHarness(t)
	url := server.URL + "/notes"

	result := h.svc.IngestURL(context.Background(), url)

	require.Equal(t, domain.IngestionSuccess, result.Status, result.Message)
	assert.Equal(t, domain.DocumentTypeLink, result.DocumentType)
	chunk, ok := h.store.Get(domain.ChunkID(url, 0))
	require.True(t, ok)
	assert.Contains(t, chunk.Text, "Version two adds search.")
	assert.NotContains(t, chunk.Text, "var x")
	assert.Equal(t, url, chunk.Metadata.Source)
}

func TestIngestURL_Invalid(t *testing.T) {
	h := newIngestionHarness(t)

	result := h.svc.IngestURL(context.Background(), "ftp://example.com/file.txt")
	assert.Equal(t, domain.IngestionError, result.Status)
}

func TestIngestURL_FetchFailureIsWarning(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	h := newIngestionHarness(t)
	result := h.svc.IngestURL(context.Background(), server.URL+"/missing")

	assert.Equal(t, domain.IngestionWarning, result.Status)
	assert.Contains(t, result.Message, "404")
}

func TestIngestDirectory(t *testing.T) {
	h := newIngestionHarness(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "c.txt", "Third file content.")
	writeTestFile(t, dir, "a.txt", "First file content.")
	writeTestFile(t, dir, "b.pdf", "corrupt")
	writeTestFile(t, dir, "d.zip", "PK")
	writeTestFile(t, dir, "e.md", "# readme")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))
	writeTestFile(t, filepath.Join(dir, "nested"), "inner.txt", "Not visited.")

	batch, err := h.svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, 5, batch.TotalFiles)
	assert.Equal(t, 2, batch.Successful)
	assert.Equal(t, 1, batch.Warnings)
	assert.Equal(t, 0, batch.Failed)
	assert.Equal(t, 2, batch.Skipped)
	assert.Equal(t, domain.IngestionWarning, batch.Status)
	assert.Equal(t, "Processed 5 files: 2 successful, 0 failed, 1 warnings, 2 skipped", batch.Message)

	names := make([]string, len(batch.Results))
	for i, r := range batch.Results {
		names[i] = r.FileName
	}
	assert.Equal(t, []string{"a.txt", "b.pdf", "c.txt", "d.zip", "e.md"}, names)
	assert.Equal(t, domain.IngestionSkipped, batch.Results[3].Status)
	assert.Empty(t, h.store.ChunksForSource("inner.txt"))

	// Skipped files are never attempted
	for _, name := range h.lock.Acquired() {
		assert.False(t, strings.HasSuffix(name, ".zip") || strings.HasSuffix(name, ".md"), name)
	}
}

func TestIngestDirectory_AllSucceed(t *testing.T) {
	h := newIngestionHarness(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "Alpha.")
	writeTestFile(t, dir, "b.txt", "Beta.")

	batch, err := h.svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, domain.IngestionSuccess, batch.Status)
	assert.Equal(t, 2, batch.Successful)
}

func TestIngestDirectory_FailureIsIsolated(t *testing.T) {
	h := newIngestionHarness(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "Alpha.")
	writeTestFile(t, dir, "b.txt", "Beta.")
	h.lock.SetLockHeld("ingest:a.txt", time.Minute)

	batch, err := h.svc.IngestDirectory(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, batch.Failed)
	assert.Equal(t, 1, batch.Successful)
	assert.Equal(t, domain.IngestionWarning, batch.Status)
}

func TestIngestDirectory_Unreadable(t *testing.T) {
	h := newIngestionHarness(t)

	batch, err := h.svc.IngestDirectory(context.Background(), filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, domain.IngestionError, batch.Status)
	assert.Contains(t, batch.Message, "Cannot read directory")
}

func TestIngestDirectory_Cancelled(t *testing.T) {
	h := newIngestionHarness(t)
	dir := t.TempDir()
	writeTestFile(t, dir, "a.txt", "Alpha.")
	writeTestFile(t, dir, "b.txt", "Beta.")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	batch, err := h.svc.IngestDirectory(ctx, dir)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, batch.TotalFiles)
	assert.Empty(t, h.lock.Acquired())
}

func TestSupportedTypes(t *testing.T) {
	h := newIngestionHarness(t)

	types := h.svc.SupportedTypes(context.Background())
	assert.NotEqual(t, "Available", types.OCRAvailability)

	h.runner.outputs["tesseract"] = "tesseract 5.3.0"
	types = h.svc.SupportedTypes(context.Background())
	assert.Equal(t, "Available", types.OCRAvailability)
	assert.Contains(t, types.SupportedExtensions, ".txt")
	assert.Contains(t, types.SupportedExtensions, ".png")
}

func TestSupportedTypes_OnlyRegisteredExtractors(t *testing.T) {
	h := newIngestionHarness(t)

	// The harness registers no legacy .doc extractor
	types := h.svc.SupportedTypes(context.Background())

	assert.NotContains(t, types.SupportedExtensions, ".doc")
	assert.NotContains(t, types.DocumentTypes, "DOC")
	assert.Contains(t, types.SupportedExtensions, ".docx")
	assert.Contains(t, types.DocumentTypes, "Links")
	assert.NotEmpty(t, types.Note)
}

func TestSupportedTypes_FullRegistryAdvertisesEverything(t *testing.T) {
	h := newIngestionHarness(t)
	h.svc.extractors = extractors.DefaultRegistry(extractors.Config{Runner: h.runner, Logger: discardLogger()})

	types := h.svc.SupportedTypes(context.Background())

	assert.Equal(t, domain.SupportedExtensions(), types.SupportedExtensions)
	assert.Equal(t, domain.DocumentTypeDescriptions(), types.DocumentTypes)
}

func TestBuildChunks(t *testing.T) {
	chunks := buildChunks("a.pdf", "/tmp/x.pdf", domain.DocumentTypePDF, testPipeline().Process(longText(6)))
	require.NotEmpty(t, chunks)

	for i, c := range chunks {
		assert.Equal(t, fmt.Sprintf("a.pdf_chunk_%d", i), c.ID)
		assert.Equal(t, i+1, c.Metadata.ChunkIndex)
		assert.Equal(t, len(chunks), c.Metadata.TotalChunks)
		assert.Equal(t, "a.pdf", c.Metadata.Source)
	}
}
