package extractors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-rag/internal/core/domain"
	"github.com/custodia-labs/sercha-rag/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.Extractor = (*LegacyDocExtractor)(nil)

// converter is one external tool able to print a .doc file as text
type converter struct {
	name string
	args func(path string) []string
}

// legacyDocConverters are tried in order until one produces text
var legacyDocConverters = []converter{
	{name: "antiword", args: func(p string) []string { return []string{p} }},
	{name: "catdoc", args: func(p string) []string { return []string{p} }},
	{name: "textutil", args: func(p string) []string { return []string{"-convert", "txt", "-stdout", p} }},
	{name: "soffice", args: func(p string) []string { return []string{"--headless", "--cat", p} }},
}

// LegacyDocExtractor converts binary Word documents using whichever
// converter tool is installed.
type LegacyDocExtractor struct {
	runner     driven.CommandRunner
	converters []converter
}

// NewLegacyDocExtractor creates a .doc extractor
func NewLegacyDocExtractor(runner driven.CommandRunner) *LegacyDocExtractor {
	return &LegacyDocExtractor{runner: runner, converters: legacyDocConverters}
}

func (e *LegacyDocExtractor) Type() domain.DocumentType {
	return domain.DocumentTypeDOC
}

// Extract returns the first non-empty conversion. When every tool fails the
// error lists each attempt.
func (e *LegacyDocExtractor) Extract(ctx context.Context, path string) (string, error) {
	var errs []error
	for _, c := range e.converters {
		out, err := e.runner.Run(ctx, c.name, c.args(path)...)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			errs = append(errs, err)
			continue
		}
		if text := string(out); strings.TrimSpace(text) != "" {
			return text, nil
		}
		errs = append(errs, fmt.Errorf("%s: no text produced", c.name))
	}
	return "", fmt.Errorf("no .doc converter succeeded: %w", errors.Join(errs...))
}
