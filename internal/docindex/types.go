package docindex

import "github.com/fyrsmithlabs/tempora/internal/vectorstore"

// Action is the outcome of AddOrUpdate.
type Action string

const (
	ActionCreated   Action = "created"
	ActionUpdated   Action = "updated"
	ActionUnchanged Action = "unchanged"
	// ActionSkippedEmpty is returned for empty or undecodable content.
	// Nothing is written.
	ActionSkippedEmpty Action = "skipped: empty"
)

// Reserved document metadata keys. Caller metadata cannot override them.
const (
	MetaFileHash     = "file_hash"
	MetaTotalChunks  = "total_chunks"
	MetaVersion      = "version"
	MetaChunkInfo    = "chunk_info"
	MetaOriginalName = "original_name"
)

// NeverExpires is the expiry_at of documents ingested without expiry days.
const NeverExpires = vectorstore.NeverExpires

const msPerDay int64 = 86_400_000

// AddRequest is the input of AddOrUpdate.
type AddRequest struct {
	// Source is the logical path identifying the document.
	Source  string
	Content []byte
	// ExpiryDays is relative to ingestion time. nil never expires; 0 is
	// expired immediately.
	ExpiryDays *int
	// Metadata must be JSON-encodable; NaN and infinite floats are rejected
	// with ErrInvalidMetadata before anything is written.
	Metadata map[string]any
	// ForceNewVersion writes a new version even when content is unchanged.
	ForceNewVersion bool
}

// AddOptions are the AddRequest fields other than source and content.
type AddOptions struct {
	ExpiryDays      *int
	Metadata        map[string]any
	ForceNewVersion bool
}

// AddResult describes what AddOrUpdate did. DocID, Version and ChunkCount
// describe the latest version after the call; they are zero for skipped
// content and for a first-time source.
type AddResult struct {
	DocID      string `json:"doc_id"`
	Version    int    `json:"version"`
	ChunkCount int    `json:"chunk_count"`
	Action     Action `json:"action"`
}

// TimeRange bounds chunk timestamps, inclusive, in Unix milliseconds.
type TimeRange struct {
	Start int64 `json:"start"`
	End   int64 `json:"end"`
}

// SearchRequest is the input of Search.
type SearchRequest struct {
	Query          string
	TopK           int
	OnlyLatest     bool
	ExcludeExpired bool
	TimeRange      *TimeRange
	ExactVersion   *int
	// Sources restricts results to any of these source paths.
	Sources []string
}

// DefaultSearchRequest returns a request for the 5 best current, unexpired
// chunks.
func DefaultSearchRequest(query string) SearchRequest {
	return SearchRequest{
		Query:          query,
		TopK:           5,
		OnlyLatest:     true,
		ExcludeExpired: true,
	}
}

// SearchResult is one matching chunk.
type SearchResult struct {
	ID         string         `json:"id"`
	Score      float32        `json:"score"`
	Text       string         `json:"text"`
	Source     string         `json:"source"`
	DocID      string         `json:"doc_id"`
	ChunkIndex int            `json:"chunk_index"`
	Version    int            `json:"version"`
	Timestamp  int64          `json:"timestamp"`
	ExpiryAt   int64          `json:"expiry_at"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Statistics are aggregate chunk counts. They are approximate while writes
// are in flight.
type Statistics struct {
	TotalChunks         int `json:"total_chunks"`
	LatestVersionChunks int `json:"latest_version_chunks"`
	ExpiredChunks       int `json:"expired_chunks"`
}
