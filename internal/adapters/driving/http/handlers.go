package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
)

// ErrorResponse represents an API error response
// @Description API error response
type ErrorResponse struct {
	Error string `json:"error" example:"unsupported file type: .zip"`
	Trace string `json:"trace,omitempty"`
}

// StatusResponse represents a simple status response
// @Description Simple status response
type StatusResponse struct {
	Status string `json:"status" example:"ok"`
}

// ReadyResponse reports the state of every dependency
// @Description Readiness response
type ReadyResponse struct {
	Status string            `json:"status" example:"ready"`
	Checks map[string]string `json:"checks"`
}

// VersionResponse represents the API version response
// @Description API version response
type VersionResponse struct {
	Version string `json:"version" example:"1.0.0"`
}

// UploadResponse is returned for a successfully ingested document
// @Description Successful ingestion
type UploadResponse struct {
	Message           string              `json:"message"`
	FileName          string              `json:"file_name"`
	ChunksCreated     int                 `json:"chunks_created"`
	DocumentType      domain.DocumentType `json:"document_type"`
	EmbeddingProvider string              `json:"embedding_provider"`
}

// UploadWarningResponse is returned when a document produced nothing to store
// @Description Ingestion warning
type UploadWarningResponse struct {
	Message  string `json:"message"`
	Warning  bool   `json:"warning"`
	FileName string `json:"file_name"`
}

// DirectoryRequest names a server-side directory to ingest
type DirectoryRequest struct {
	DirectoryPath string `json:"directory_path"`
}

// URLRequest names a web page to ingest
type URLRequest struct {
	URL string `json:"url"`
}

// DocumentListResponse is a page of the document registry
type DocumentListResponse struct {
	Documents []*domain.Document `json:"documents"`
	Total     int                `json:"total"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// Health endpoints

// handleHealth godoc
// @Summary      Health check
// @Description  Returns the health status of the API
// @Tags         Health
// @Produce      json
// @Success      200  {object}  StatusResponse
// @Router       /health [get]
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
}

// handleReady godoc
// @Summary      Readiness check
// @Description  Probes the vector store, document registry and model providers
// @Tags         Health
// @Produce      json
// @Success      200  {object}  ReadyResponse
// @Failure      503  {object}  ReadyResponse
// @Router       /ready [get]
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadyResponse{Status: "ready", Checks: make(map[string]string, len(s.checks))}
	status := http.StatusOK
	for _, c := range s.checks {
		if err := c.Check(ctx); err != nil {
			resp.Checks[c.Name] = err.Error()
			resp.Status = "not ready"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[c.Name] = "ok"
	}

	writeJSON(w, status, resp)
}

// handleVersion godoc
// @Summary      Get API version
// @Description  Returns the current API version
// @Tags         Health
// @Produce      json
// @Success      200  {object}  VersionResponse
// @Router       /version [get]
func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, VersionResponse{Version: s.version})
}

// Ingestion endpoints

// handleUpload godoc
// @Summary      Upload and ingest a document
// @Description  Accepts a multipart file, or a url field naming a web page
// @Tags         Ingest
// @Accept       mpfd
// @Produce      json
// @Param        file  formData  file    false  "Document to ingest"
// @Param        url   formData  string  false  "Web page to ingest"
// @Success      200   {object}  UploadResponse
// @Failure      400   {object}  ErrorResponse  "Missing or unsupported file"
// @Failure      409   {object}  ErrorResponse  "Document is already being ingested"
// @Failure      500   {object}  ErrorResponse  "Ingestion failed"
// @Router       /api/ingest/upload [post]
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if isJSON(r) {
		var req URLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		s.ingestURL(w, r, req.URL)
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		if url := r.FormValue("url"); url != "" {
			s.ingestURL(w, r, url)
			return
		}
		writeError(w, http.StatusBadRequest, "No file or url provided.")
		return
	}
	defer file.Close()

	name := filepath.Base(filepath.Clean("/" + header.Filename))
	if name == "" || name == "/" || name == "." {
		writeError(w, http.StatusBadRequest, "No filename provided.")
		return
	}
	if _, err := domain.GetDocumentType(name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := s.saveUpload(file, name)
	if err != nil {
		s.logger.Error("failed to save upload", "file", name, "error", err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process file: %v", err))
		return
	}

	s.writeIngestionResult(w, s.ingestion.IngestDocument(r.Context(), path, name))
}

func (s *Server) ingestURL(w http.ResponseWriter, r *http.Request, url string) {
	url = strings.TrimSpace(url)
	if url == "" {
		writeError(w, http.StatusBadRequest, "No file or url provided.")
		return
	}
	if !domain.IsLink(url) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("Invalid URL %q: only http and https are supported", url))
		return
	}
	s.writeIngestionResult(w, s.ingestion.IngestURL(r.Context(), url))
}

// saveUpload stores the upload under a unique name that keeps its extension.
// The sweeper removes it once the retention period has passed.
func (s *Server) saveUpload(src io.Reader, name string) (string, error) {
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return "", err
	}

	path := filepath.Join(s.uploadDir, uuid.NewString()+strings.ToLower(filepath.Ext(name)))
	dst, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func (s *Server) writeIngestionResult(w http.ResponseWriter, result *domain.IngestionResult) {
	switch result.Status {
	case domain.IngestionSuccess:
		writeJSON(w, http.StatusOK, UploadResponse{
			Message:           result.Message,
			FileName:          result.FileName,
			ChunksCreated:     result.ChunksCreated,
			DocumentType:      result.DocumentType,
			EmbeddingProvider: result.EmbeddingProvider,
		})
	case domain.IngestionWarning:
		writeJSON(w, http.StatusOK, UploadWarningResponse{
			Message:  result.Message,
			Warning:  true,
			FileName: result.FileName,
		})
	default:
		writeError(w, statusFor(result.Err), result.Message)
	}
}

// handleUploadDirectory godoc
// @Summary      Ingest a server-side directory
// @Description  Ingests every supported file directly under directory_path
// @Tags         Ingest
// @Accept       json
// @Produce      json
// @Param        directory_path  query     string            false  "Directory to ingest"
// @Param        request         body      DirectoryRequest  false  "Directory to ingest"
// @Success      200             {object}  domain.BatchResult
// @Failure      400             {object}  ErrorResponse  "Directory path is required"
// @Failure      500             {object}  ErrorResponse  "Directory could not be read"
// @Router       /api/ingest/upload-directory [post]
func (s *Server) handleUploadDirectory(w http.ResponseWriter, r *http.Request) {
	dir := r.URL.Query().Get("directory_path")
	if dir == "" && isJSON(r) {
		var req DirectoryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		dir = req.DirectoryPath
	}
	if strings.TrimSpace(dir) == "" {
		writeError(w, http.StatusBadRequest, "Directory path is required.")
		return
	}

	batch, err := s.ingestion.IngestDirectory(r.Context(), dir)
	if err != nil {
		msg := err.Error()
		if batch != nil && batch.Message != "" {
			msg = batch.Message
		}
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to process directory: %s", msg))
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

// handleSupportedTypes godoc
// @Summary      List supported document types
// @Description  Lists accepted extensions and whether OCR is installed
// @Tags         Ingest
// @Produce      json
// @Success      200  {object}  domain.SupportedTypes
// @Router       /api/ingest/supported-types [get]
func (s *Server) handleSupportedTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ingestion.SupportedTypes(r.Context()))
}

// Chat endpoints

// handleChat godoc
// @Summary      Ask a question
// @Description  Answers a query using the most similar stored chunks as context
// @Tags         Chat
// @Accept       json
// @Produce      json
// @Param        request  body      domain.ChatRequest  true  "Question"
// @Success      200      {object}  domain.ChatResponse
// @Failure      400      {object}  ErrorResponse  "Missing query or unknown provider"
// @Failure      500      {object}  ErrorResponse  "Retrieval or generation failed"
// @Router       /api/chat/ [post]
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	answer, err := s.chat.Answer(r.Context(), req.Query, domain.ChatOptions{
		Provider: req.Provider,
		Source:   req.Source,
	})
	if err != nil {
		s.logger.Error("chat failed", "error", err, "request_id", GetRequestID(r.Context()))
		status := statusFor(err)
		if status == http.StatusInternalServerError {
			writeJSON(w, status, ErrorResponse{Error: err.Error(), Trace: string(debug.Stack())})
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, domain.ChatResponse{Answer: answer})
}

// Document endpoints

// handleListDocuments godoc
// @Summary      List ingested documents
// @Description  Pages through the document registry, most recent first
// @Tags         Documents
// @Produce      json
// @Param        limit   query     int  false  "Page size (default 50)"
// @Param        offset  query     int  false  "Offset"
// @Success      200     {object}  DocumentListResponse
// @Failure      500     {object}  ErrorResponse  "Registry unavailable"
// @Router       /api/documents [get]
func (s *Server) handleListDocuments(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	docs, err := s.documents.List(r.Context(), limit, offset)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	total, err := s.documents.Count(r.Context())
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, DocumentListResponse{
		Documents: docs,
		Total:     total,
		Limit:     limit,
		Offset:    offset,
	})
}

// handleGetDocument godoc
// @Summary      Get a document
// @Description  Returns the registry entry of one ingested document
// @Tags         Documents
// @Produce      json
// @Param        name  path      string  true  "Document name"
// @Success      200   {object}  domain.Document
// @Failure      404   {object}  ErrorResponse  "Document not found"
// @Router       /api/documents/{name} [get]
func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := s.documents.Get(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// Helper functions

// statusFor maps domain errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusInternalServerError
	case errors.Is(err, domain.ErrUnsupportedType),
		errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrUnknownProvider):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrIngestionInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func isJSON(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "application/json"
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, ErrorResponse{Error: message})
}
