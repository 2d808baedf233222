package docindex

import "errors"

var (
	// ErrInvalidSource is returned for an empty source path.
	ErrInvalidSource = errors.New("source is required")

	// ErrInvalidExpiry is returned for negative expiry days.
	ErrInvalidExpiry = errors.New("expiry days must not be negative")

	// ErrInvalidMetadata is returned for metadata that cannot be stored.
	ErrInvalidMetadata = errors.New("metadata cannot be encoded")

	// ErrInvalidTopK is returned when top_k is not positive.
	ErrInvalidTopK = errors.New("top_k must be a positive integer")

	// ErrInvalidTimeRange is returned when a time range starts after it ends.
	ErrInvalidTimeRange = errors.New("time range start is after its end")

	// ErrEmptyQuery is returned for a blank search query.
	ErrEmptyQuery = errors.New("query is empty")

	// ErrEmbeddingFailed wraps embedder failures.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrLatestless marks a failure after the previous latest version of a
	// source was removed and before its replacement was stored. The source
	// has no latest version until it is ingested again.
	ErrLatestless = errors.New("source left without a latest version")
)

// IsValidation reports whether err was caused by invalid caller input and
// was rejected before touching the index or the embedder.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSource) ||
		errors.Is(err, ErrInvalidExpiry) ||
		errors.Is(err, ErrInvalidMetadata) ||
		errors.Is(err, ErrInvalidTopK) ||
		errors.Is(err, ErrInvalidTimeRange) ||
		errors.Is(err, ErrEmptyQuery)
}
