package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"ErrNotFound", ErrNotFound, "not found"},
		{"ErrInvalidInput", ErrInvalidInput, "invalid input"},
		{"ErrUnsupportedType", ErrUnsupportedType, "unsupported file type"},
		{"ErrExtractionFailed", ErrExtractionFailed, "extraction failed"},
		{"ErrEmptyContent", ErrEmptyContent, "no text content"},
		{"ErrProviderUnavailable", ErrProviderUnavailable, "provider unavailable"},
		{"ErrProviderResponse", ErrProviderResponse, "invalid provider response"},
		{"ErrCapabilityUnsupported", ErrCapabilityUnsupported, "capability not supported by provider"},
		{"ErrUnknownProvider", ErrUnknownProvider, "unknown provider"},
		{"ErrStoreFailure", ErrStoreFailure, "vector store failure"},
		{"ErrFilterUnsupported", ErrFilterUnsupported, "metadata filter not supported"},
		{"ErrEmbeddingMismatch", ErrEmbeddingMismatch, "embedding provider does not match collection"},
		{"ErrIngestionInProgress", ErrIngestionInProgress, "ingestion already in progress"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Errorf("expected %q, got %q", tt.msg, tt.err.Error())
			}
		})
	}
}

func TestErrorsAreDistinct(t *testing.T) {
	allErrors := []error{
		ErrNotFound,
		ErrInvalidInput,
		ErrUnsupportedType,
		ErrExtractionFailed,
		ErrEmptyContent,
		ErrProviderUnavailable,
		ErrProviderResponse,
		ErrCapabilityUnsupported,
		ErrUnknownProvider,
		ErrStoreFailure,
		ErrFilterUnsupported,
		ErrEmbeddingMismatch,
		ErrIngestionInProgress,
	}

	for i, a := range allErrors {
		for j, b := range allErrors {
			if i != j && errors.Is(a, b) {
				t.Errorf("errors %q and %q should be distinct", a, b)
			}
		}
	}
}

func TestErrorsSurviveWrapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: .xyz", ErrUnsupportedType)
	if !errors.Is(wrapped, ErrUnsupportedType) {
		t.Errorf("expected wrapped error to match ErrUnsupportedType")
	}
	if errors.Is(wrapped, ErrStoreFailure) {
		t.Errorf("wrapped error should not match ErrStoreFailure")
	}
}
