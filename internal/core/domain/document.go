package domain

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DocumentType is the coarse format label attached to every chunk
type DocumentType string

const (
	DocumentTypePDF   DocumentType = "pdf"
	DocumentTypeDOCX  DocumentType = "docx"
	DocumentTypeDOC   DocumentType = "doc"
	DocumentTypeText  DocumentType = "txt"
	DocumentTypeImage DocumentType = "image"
	DocumentTypeLink  DocumentType = "link"
)

// documentTypes maps lowercase file extensions to their document type
var documentTypes = map[string]DocumentType{
	".pdf":  DocumentTypePDF,
	".docx": DocumentTypeDOCX,
	".doc":  DocumentTypeDOC,
	".txt":  DocumentTypeText,
	".jpg":  DocumentTypeImage,
	".jpeg": DocumentTypeImage,
	".png":  DocumentTypeImage,
	".bmp":  DocumentTypeImage,
	".tiff": DocumentTypeImage,
	".gif":  DocumentTypeImage,
}

// GetDocumentType returns the document type for a file name, path or URL.
// Returns ErrUnsupportedType for extensions with no extraction strategy.
func GetDocumentType(name string) (DocumentType, error) {
	if IsLink(name) {
		return DocumentTypeLink, nil
	}
	ext := strings.ToLower(filepath.Ext(name))
	if dt, ok := documentTypes[ext]; ok {
		return dt, nil
	}
	if ext == "" {
		ext = "(none)"
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupportedType, ext)
}

// IsLink reports whether the reference is a web page rather than a file
func IsLink(ref string) bool {
	lower := strings.ToLower(strings.TrimSpace(ref))
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// SupportedExtensions returns every supported file extension, sorted
func SupportedExtensions() []string {
	exts := make([]string, 0, len(documentTypes))
	for ext := range documentTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// typeDescriptions labels each document type for clients
var typeDescriptions = []struct {
	label string
	typ   DocumentType
	text  string
}{
	{"PDF", DocumentTypePDF, "Portable Document Format files"},
	{"DOCX", DocumentTypeDOCX, "Microsoft Word documents (newer format)"},
	{"DOC", DocumentTypeDOC, "Microsoft Word documents (legacy format, requires antiword, catdoc or LibreOffice)"},
	{"TXT", DocumentTypeText, "Plain text files"},
	{"Images", DocumentTypeImage, "Image files with OCR text extraction (requires Tesseract)"},
	{"Links", DocumentTypeLink, "Web pages fetched over HTTP(S)"},
}

// DocumentTypeDescriptions is the human-readable table served to clients
func DocumentTypeDescriptions() map[string]string {
	out := make(map[string]string, len(typeDescriptions))
	for _, d := range typeDescriptions {
		out[d.label] = d.text
	}
	return out
}

// SupportedTypes describes the accepted formats to clients
type SupportedTypes struct {
	SupportedExtensions []string          `json:"supported_extensions"`
	DocumentTypes       map[string]string `json:"document_types"`
	Note                string            `json:"note"`
	OCRAvailability     string            `json:"ocr_availability"`
}

// NewSupportedTypes builds the format description for the given OCR state
func NewSupportedTypes(ocrAvailable bool) *SupportedTypes {
	availability := "Not available - install Tesseract for image processing"
	if ocrAvailable {
		availability = "Available"
	}
	return &SupportedTypes{
		SupportedExtensions: SupportedExtensions(),
		DocumentTypes:       DocumentTypeDescriptions(),
		Note:                "Web pages can be ingested by submitting an http(s) URL instead of a file",
		OCRAvailability:     availability,
	}
}

// Restrict drops every extension and description whose type is not in registered
func (t *SupportedTypes) Restrict(registered []DocumentType) {
	has := make(map[DocumentType]bool, len(registered))
	for _, dt := range registered {
		has[dt] = true
	}

	exts := make([]string, 0, len(t.SupportedExtensions))
	for _, ext := range t.SupportedExtensions {
		if has[documentTypes[ext]] {
			exts = append(exts, ext)
		}
	}
	t.SupportedExtensions = exts

	for _, d := range typeDescriptions {
		if !has[d.typ] {
			delete(t.DocumentTypes, d.label)
		}
	}
	if !has[DocumentTypeLink] {
		t.Note = ""
	}
}

// Document is a logical unit of ingestion, identified by its name.
// Re-ingesting a name overwrites the chunks stored under it.
type Document struct {
	Name              string       `json:"name"`
	Type              DocumentType `json:"document_type"`
	Source            string       `json:"source"` // Original path or URL
	ChunkCount        int          `json:"chunk_count"`
	EmbeddingProvider string       `json:"embedding_provider"`
	IngestedAt        time.Time    `json:"ingested_at"`
}

// Chunk is a contiguous piece of extracted text stored in the vector index
type Chunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
}

// ChunkMetadata is stored alongside every chunk.
// ChunkIndex is 1-based, unlike the index embedded in the chunk ID.
type ChunkMetadata struct {
	Source       string       `json:"source"`
	ChunkIndex   int          `json:"chunk_index"`
	TotalChunks  int          `json:"total_chunks"`
	DocumentType DocumentType `json:"document_type"`
	FilePath     string       `json:"file_path"`
	ChunkLength  int          `json:"chunk_length"`
}

// Metadata keys used by the vector store
const (
	MetaSource       = "source"
	MetaChunkIndex   = "chunk_index"
	MetaTotalChunks  = "total_chunks"
	MetaDocumentType = "document_type"
	MetaFilePath     = "file_path"
	MetaChunkLength  = "chunk_length"
)

// ChunkID builds the stable identifier for the i-th (0-based) chunk of a document
func ChunkID(name string, index int) string {
	return fmt.Sprintf("%s_chunk_%d", name, index)
}

// Map flattens metadata into the scalar map stored by vector backends
func (m ChunkMetadata) Map() map[string]any {
	return map[string]any{
		MetaSource:       m.Source,
		MetaChunkIndex:   m.ChunkIndex,
		MetaTotalChunks:  m.TotalChunks,
		MetaDocumentType: string(m.DocumentType),
		MetaFilePath:     m.FilePath,
		MetaChunkLength:  m.ChunkLength,
	}
}

// ChunkMetadataFromMap rebuilds metadata read back from a vector backend.
// Numbers may arrive as int, int64 or float64 depending on the decoder.
func ChunkMetadataFromMap(m map[string]any) ChunkMetadata {
	return ChunkMetadata{
		Source:       stringValue(m[MetaSource]),
		ChunkIndex:   intValue(m[MetaChunkIndex]),
		TotalChunks:  intValue(m[MetaTotalChunks]),
		DocumentType: DocumentType(stringValue(m[MetaDocumentType])),
		FilePath:     stringValue(m[MetaFilePath]),
		ChunkLength:  intValue(m[MetaChunkLength]),
	}
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func intValue(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int32:
		return int(n)
	case int64:
		return int(n)
	case float32:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}
