package postprocessors

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// breakWindow is how far back from the hard limit a natural break is searched for
const breakWindow = 100

// ChunkConfig configures the chunker behavior.
// Sizes are measured in characters (runes).
type ChunkConfig struct {
	// ChunkSize is the maximum characters per chunk
	ChunkSize int

	// ChunkOverlap is the maximum character overlap between adjacent chunks
	ChunkOverlap int

	// PreserveSentences tries to break at sentence boundaries
	PreserveSentences bool

	// PreserveParagraphs tries to break at paragraph boundaries
	PreserveParagraphs bool
}

// DefaultChunkConfig returns the standard 1000/200 configuration.
func DefaultChunkConfig() ChunkConfig {
	return ChunkConfig{
		ChunkSize:          1000,
		ChunkOverlap:       200,
		PreserveSentences:  true,
		PreserveParagraphs: true,
	}
}

// Validate rejects configurations that cannot make progress
func (c ChunkConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive, got %d", c.ChunkSize)
	}
	if c.ChunkOverlap < 0 {
		return fmt.Errorf("chunk overlap must not be negative, got %d", c.ChunkOverlap)
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return fmt.Errorf("chunk overlap %d must be smaller than chunk size %d", c.ChunkOverlap, c.ChunkSize)
	}
	return nil
}

// Chunker splits content into overlapping chunks.
// This is the first processor in the pipeline (Order = 0).
type Chunker struct {
	config ChunkConfig
}

// Verify interface compliance
var _ driven.PostProcessor = (*Chunker)(nil)

// NewChunker creates a new chunker with the given config.
// Out-of-range values are clamped so the chunker always advances.
func NewChunker(config ChunkConfig) *Chunker {
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkConfig().ChunkSize
	}
	if config.ChunkOverlap < 0 {
		config.ChunkOverlap = 0
	}
	if config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize - 1
	}
	return &Chunker{config: config}
}

// Config returns the effective configuration
func (c *Chunker) Config() ChunkConfig {
	return c.config
}

// Split splits text into chunk strings.
// Empty or whitespace-only text yields no chunks.
func (c *Chunker) Split(text string) []string {
	pieces := c.splitContent(text, 0, new(int))
	out := make([]string, len(pieces))
	for i, p := range pieces {
		out[i] = p.Content
	}
	return out
}

// Process splits content into chunks.
func (c *Chunker) Process(chunks []driven.Chunk) []driven.Chunk {
	var result []driven.Chunk
	position := 0

	for _, chunk := range chunks {
		newChunks := c.splitContent(chunk.Content, chunk.StartOffset, &position)
		result = append(result, newChunks...)
	}

	return result
}

// Name returns the processor name.
func (c *Chunker) Name() string {
	return "chunker"
}

// Order returns 0 - chunker should be first.
func (c *Chunker) Order() int {
	return 0
}

// splitContent walks a window of ChunkSize runes across content.
// Each window is shortened to the best natural break near its end, and the
// next window starts ChunkOverlap runes before the previous end.
func (c *Chunker) splitContent(content string, baseOffset int, position *int) []driven.Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	runes := []rune(content)
	size := c.config.ChunkSize

	var chunks []driven.Chunk
	start := 0

	for start < len(runes) {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}

		if end < len(runes) {
			if bp := c.findBreakPoint(runes, start, end); bp > start {
				end = bp
			}
		}

		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			chunks = append(chunks, driven.Chunk{
				Content:     piece,
				Position:    *position,
				StartOffset: baseOffset + start,
				EndOffset:   baseOffset + end,
			})
			*position++
		}

		if end >= len(runes) {
			break
		}

		nextStart := end - c.config.ChunkOverlap
		if nextStart <= start {
			nextStart = start + 1
		}
		start = nextStart
	}

	return chunks
}

// findBreakPoint returns the rune index to end a chunk at, preferring a
// paragraph break, then a sentence end, then a word boundary.
// Returns maxEnd (a hard cut) when the window has none of them.
func (c *Chunker) findBreakPoint(runes []rune, start, maxEnd int) int {
	searchStart := maxEnd - breakWindow
	if searchStart < start {
		searchStart = start
	}

	window := string(runes[searchStart:maxEnd])

	if c.config.PreserveParagraphs {
		if idx := strings.LastIndex(window, "\n\n"); idx != -1 {
			return searchStart + utf8.RuneCountInString(window[:idx]) + 2
		}
	}

	if c.config.PreserveSentences {
		best := -1
		for _, ender := range []string{". ", "! ", "? ", ".\n", "!\n", "?\n"} {
			if idx := strings.LastIndex(window, ender); idx != -1 {
				if endPos := idx + len(ender); endPos > best {
					best = endPos
				}
			}
		}
		if best > 0 {
			return searchStart + utf8.RuneCountInString(window[:best])
		}
	}

	if idx := strings.LastIndexFunc(window, unicode.IsSpace); idx != -1 {
		_, width := utf8.DecodeRuneInString(window[idx:])
		return searchStart + utf8.RuneCountInString(window[:idx+width])
	}

	return maxEnd
}
