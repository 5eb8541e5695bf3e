package domain

// IngestionStatus is the outcome tier of an ingestion
type IngestionStatus string

const (
	IngestionSuccess IngestionStatus = "success"
	IngestionWarning IngestionStatus = "warning"
	IngestionError   IngestionStatus = "error"
	IngestionSkipped IngestionStatus = "skipped"
)

// IngestionResult describes what happened to a single document.
// ChunksCreated, DocumentType and EmbeddingProvider are only set on success.
type IngestionResult struct {
	Status            IngestionStatus `json:"status"`
	Message           string          `json:"message"`
	FileName          string          `json:"file_name"`
	ChunksCreated     int             `json:"chunks_created,omitempty"`
	DocumentType      DocumentType    `json:"document_type,omitempty"`
	EmbeddingProvider string          `json:"embedding_provider,omitempty"`

	Err error `json:"-"` // Cause of an error-tier result, if known
}

// IsSuccess returns true if the document was fully stored
func (r *IngestionResult) IsSuccess() bool {
	return r.Status == IngestionSuccess
}

// BatchResult aggregates the results of a directory ingestion
type BatchResult struct {
	Status     IngestionStatus    `json:"status"`
	Message    string             `json:"message"`
	TotalFiles int                `json:"total_files"`
	Successful int                `json:"successful"`
	Failed     int                `json:"failed"`
	Warnings   int                `json:"warnings"`
	Skipped    int                `json:"skipped"`
	Results    []*IngestionResult `json:"results"`
}

// Add records a per-file result and updates the counters
func (b *BatchResult) Add(r *IngestionResult) {
	b.Results = append(b.Results, r)
	switch r.Status {
	case IngestionSuccess:
		b.Successful++
	case IngestionWarning:
		b.Warnings++
	case IngestionError:
		b.Failed++
	case IngestionSkipped:
		b.Skipped++
	}
}

// Finalise derives the aggregate status from the counters
func (b *BatchResult) Finalise() {
	b.TotalFiles = len(b.Results)
	switch {
	case b.Failed > 0 || b.Warnings > 0:
		b.Status = IngestionWarning
	default:
		b.Status = IngestionSuccess
	}
}
