package domain

import "strings"

// DefaultTopK is the number of chunks retrieved as context for a query
const DefaultTopK = 3

// VectorQuery is a nearest-neighbour request against the vector store.
// When Embeddings is empty the store embeds Texts with its bound embedding function.
type VectorQuery struct {
	Texts      []string
	Embeddings [][]float32
	NResults   int
	Filter     map[string]string // Exact match on chunk metadata, e.g. {"source": "a.pdf"}
}

// RetrievedChunk is a single nearest-neighbour match
type RetrievedChunk struct {
	ID       string        `json:"id"`
	Text     string        `json:"text"`
	Metadata ChunkMetadata `json:"metadata"`
	Distance float64       `json:"distance"`
}

// RetrievalResult holds matches ordered by decreasing similarity
type RetrievalResult struct {
	Chunks []RetrievedChunk `json:"chunks"`
}

// Texts returns the chunk texts in retrieval order
func (r *RetrievalResult) Texts() []string {
	if r == nil {
		return nil
	}
	texts := make([]string, len(r.Chunks))
	for i, c := range r.Chunks {
		texts[i] = c.Text
	}
	return texts
}

// Context joins the retrieved texts into a single prompt context.
// Returns an empty string when nothing was retrieved.
func (r *RetrievalResult) Context() string {
	return strings.Join(r.Texts(), "\n")
}

// ChatOptions carries the per-request hints of a query
type ChatOptions struct {
	Provider string `json:"provider,omitempty"` // Generation provider override
	Source   string `json:"source,omitempty"`   // Restrict retrieval to one document
}

// ChatRequest is the body of a chat call
type ChatRequest struct {
	Query    string `json:"query"`
	Provider string `json:"provider,omitempty"`
	Source   string `json:"source,omitempty"`
}

// ChatResponse is the answer to a chat call
type ChatResponse struct {
	Answer string `json:"answer"`
}
