package domain

import "errors"

// Domain errors - used across all layers
var (
	// ErrNotFound indicates the requested resource was not found
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates the input is invalid
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates the file extension has no extraction strategy
	ErrUnsupportedType = errors.New("unsupported file type")

	// ErrExtractionFailed indicates a strategy could not read the document.
	// The ingestion pipeline recovers from it and continues with empty text.
	ErrExtractionFailed = errors.New("extraction failed")

	// ErrEmptyContent indicates no usable text was produced from a document
	ErrEmptyContent = errors.New("no text content")

	// ErrProviderUnavailable indicates a model provider could not be reached
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrProviderResponse indicates a model provider returned an unusable response
	ErrProviderResponse = errors.New("invalid provider response")

	// ErrCapabilityUnsupported indicates the provider lacks the requested capability
	ErrCapabilityUnsupported = errors.New("capability not supported by provider")

	// ErrUnknownProvider indicates an unrecognised provider identifier
	ErrUnknownProvider = errors.New("unknown provider")

	// ErrStoreFailure indicates the vector store rejected a read or write
	ErrStoreFailure = errors.New("vector store failure")

	// ErrFilterUnsupported indicates the vector store cannot apply metadata filters
	ErrFilterUnsupported = errors.New("metadata filter not supported")

	// ErrEmbeddingMismatch indicates a collection was built with a different embedding provider
	ErrEmbeddingMismatch = errors.New("embedding provider does not match collection")

	// ErrIngestionInProgress indicates another ingestion of the same document is running
	ErrIngestionInProgress = errors.New("ingestion already in progress")

	// ErrLockNotHeld indicates a lock expired or belongs to another holder
	ErrLockNotHeld = errors.New("lock not held by this instance")
)
