package postprocessors

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.PostProcessorPipeline = (*Pipeline)(nil)

// Pipeline implements PostProcessorPipeline.
// It chains multiple post-processors in order, starting with a Chunker.
type Pipeline struct {
	mu         sync.RWMutex
	processors []driven.PostProcessor
	sorted     bool
}

// NewPipeline creates a new post-processor pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		processors: make([]driven.PostProcessor, 0),
	}
}

// Add adds a processor to the pipeline.
// Processors are sorted by Order() before processing.
func (p *Pipeline) Add(processor driven.PostProcessor) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.processors = append(p.processors, processor)
	p.sorted = false
}

// Process applies all processors in order and renumbers the survivors.
func (p *Pipeline) Process(content string) []driven.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	p.mu.Lock()
	if !p.sorted {
		sort.SliceStable(p.processors, func(i, j int) bool {
			return p.processors[i].Order() < p.processors[j].Order()
		})
		p.sorted = true
	}
	processors := make([]driven.PostProcessor, len(p.processors))
	copy(processors, p.processors)
	p.mu.Unlock()

	chunks := []driven.Chunk{
		{
			Content:     content,
			Position:    0,
			StartOffset: 0,
			EndOffset:   len([]rune(content)),
		},
	}

	for _, proc := range processors {
		chunks = proc.Process(chunks)
	}

	// Dropped chunks leave gaps; ids are derived from positions
	for i := range chunks {
		chunks[i].Position = i
	}

	return chunks
}

// List returns processor names in order.
func (p *Pipeline) List() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	procs := make([]driven.PostProcessor, len(p.processors))
	copy(procs, p.processors)
	sort.SliceStable(procs, func(i, j int) bool {
		return procs[i].Order() < procs[j].Order()
	})

	names := make([]string, len(procs))
	for i, proc := range procs {
		names[i] = proc.Name()
	}
	return names
}

// BuildPipeline creates a chunker pipeline plus the named optional processors.
// Recognised names are "whitespace" and "dedup".
func BuildPipeline(cfg ChunkConfig, extras []string) (*Pipeline, error) {
	p := NewPipeline()
	p.Add(NewChunker(cfg))

	for _, name := range extras {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "":
			continue
		case "whitespace":
			p.Add(NewWhitespaceNormalizer())
		case "dedup":
			p.Add(NewDeduplicator(DefaultDeduplicatorConfig()))
		default:
			return nil, fmt.Errorf("unknown post-processor %q", name)
		}
	}

	return p, nil
}
