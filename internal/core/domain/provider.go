package domain

import "fmt"

// EmbeddingFingerprint identifies the embedding space a collection was built in.
// Vectors from different fingerprints are not comparable.
type EmbeddingFingerprint struct {
	Provider   string `json:"provider"`
	Model      string `json:"model"`
	Dimensions int    `json:"dimensions"`
}

// String renders the fingerprint as provider/model/dimensions
func (f EmbeddingFingerprint) String() string {
	return fmt.Sprintf("%s/%s/%d", f.Provider, f.Model, f.Dimensions)
}

// IsZero reports whether no fingerprint was recorded
func (f EmbeddingFingerprint) IsZero() bool {
	return f.Provider == "" && f.Model == "" && f.Dimensions == 0
}

// ParseEmbeddingFingerprint parses the String form back into a fingerprint
func ParseEmbeddingFingerprint(s string) (EmbeddingFingerprint, error) {
	var f EmbeddingFingerprint
	if s == "" {
		return f, nil
	}
	// Model names may contain slashes, so split from both ends
	first := -1
	last := -1
	for i := 0; i < len(s); i++ {
		if s[i] == '/' {
			if first < 0 {
				first = i
			}
			last = i
		}
	}
	if first < 0 || first == last {
		return f, fmt.Errorf("%w: fingerprint %q", ErrInvalidInput, s)
	}
	f.Provider = s[:first]
	f.Model = s[first+1 : last]
	if _, err := fmt.Sscanf(s[last+1:], "%d", &f.Dimensions); err != nil {
		return EmbeddingFingerprint{}, fmt.Errorf("%w: fingerprint %q", ErrInvalidInput, s)
	}
	return f, nil
}

// EmbeddingMismatchError reports a populated collection whose recorded
// fingerprint differs from the configured one. It wraps ErrEmbeddingMismatch.
func EmbeddingMismatchError(collection string, count int, recorded string, want EmbeddingFingerprint) error {
	stored, err := ParseEmbeddingFingerprint(recorded)
	if err != nil || stored.IsZero() {
		return fmt.Errorf("%w: collection %q holds %d chunks with unknown fingerprint %q, configured %s",
			ErrEmbeddingMismatch, collection, count, recorded, want)
	}
	return fmt.Errorf("%w: collection %q holds %d chunks embedded with %s model %s (%d dims), configured %s model %s (%d dims)",
		ErrEmbeddingMismatch, collection, count,
		stored.Provider, stored.Model, stored.Dimensions,
		want.Provider, want.Model, want.Dimensions)
}

// ProviderSelection records which providers serve a request
type ProviderSelection struct {
	Generation  AIProvider `json:"generation"`
	Embedding   AIProvider `json:"embedding"`
	Requested   AIProvider `json:"requested_embedding"`
	Substituted bool       `json:"substituted"`
}
