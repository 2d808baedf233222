package vectorstore

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// NeverExpires is the ExpiryAt value of records without an expiry.
const NeverExpires int64 = -1

// Field names usable in filters. They are also the payload keys written by
// every backend.
const (
	FieldID         = "id"
	FieldDocID      = "doc_id"
	FieldText       = "text"
	FieldSource     = "source"
	FieldChunkIndex = "chunk_index"
	FieldTimestamp  = "timestamp"
	FieldVersion    = "version"
	FieldExpiryAt   = "expiry_at"
	FieldIsLatest   = "is_latest"
	FieldMetadata   = "metadata"
)

// Record is one stored chunk.
type Record struct {
	ID         string
	DocID      string
	Embedding  []float32
	Text       string
	Source     string
	ChunkIndex int
	// Timestamp and ExpiryAt are Unix milliseconds.
	Timestamp int64
	Version   int
	ExpiryAt  int64
	IsLatest  bool
	Metadata  map[string]any
}

// Hit is a search result.
type Hit struct {
	Record
	Score float32
}

// field returns the scalar value of a filterable field, normalised to
// string, bool or int64.
func (r *Record) field(name string) (any, bool) {
	switch name {
	case FieldID:
		return r.ID, true
	case FieldDocID:
		return r.DocID, true
	case FieldText:
		return r.Text, true
	case FieldSource:
		return r.Source, true
	case FieldChunkIndex:
		return int64(r.ChunkIndex), true
	case FieldTimestamp:
		return r.Timestamp, true
	case FieldVersion:
		return int64(r.Version), true
	case FieldExpiryAt:
		return r.ExpiryAt, true
	case FieldIsLatest:
		return r.IsLatest, true
	default:
		return nil, false
	}
}

// toStrings flattens r into chromem's string metadata.
func (r *Record) toStrings() (map[string]string, error) {
	m := map[string]string{
		FieldDocID:      r.DocID,
		FieldSource:     r.Source,
		FieldChunkIndex: strconv.Itoa(r.ChunkIndex),
		FieldTimestamp:  strconv.FormatInt(r.Timestamp, 10),
		FieldVersion:    strconv.Itoa(r.Version),
		FieldExpiryAt:   strconv.FormatInt(r.ExpiryAt, 10),
		FieldIsLatest:   strconv.FormatBool(r.IsLatest),
	}
	if len(r.Metadata) > 0 {
		raw, err := json.Marshal(r.Metadata)
		if err != nil {
			return nil, fmt.Errorf("encoding metadata of %s: %w", r.ID, err)
		}
		m[FieldMetadata] = string(raw)
	}
	return m, nil
}

// recordFromStrings is the inverse of toStrings.
func recordFromStrings(id, text string, embedding []float32, m map[string]string) (Record, error) {
	r := Record{
		ID:        id,
		Text:      text,
		Embedding: embedding,
		DocID:     m[FieldDocID],
		Source:    m[FieldSource],
	}
	var err error
	if r.ChunkIndex, err = strconv.Atoi(m[FieldChunkIndex]); err != nil {
		return r, fmt.Errorf("record %s: chunk_index: %w", id, err)
	}
	if r.Timestamp, err = strconv.ParseInt(m[FieldTimestamp], 10, 64); err != nil {
		return r, fmt.Errorf("record %s: timestamp: %w", id, err)
	}
	if r.Version, err = strconv.Atoi(m[FieldVersion]); err != nil {
		return r, fmt.Errorf("record %s: version: %w", id, err)
	}
	if r.ExpiryAt, err = strconv.ParseInt(m[FieldExpiryAt], 10, 64); err != nil {
		return r, fmt.Errorf("record %s: expiry_at: %w", id, err)
	}
	if r.IsLatest, err = strconv.ParseBool(m[FieldIsLatest]); err != nil {
		return r, fmt.Errorf("record %s: is_latest: %w", id, err)
	}
	if raw := m[FieldMetadata]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &r.Metadata); err != nil {
			return r, fmt.Errorf("record %s: metadata: %w", id, err)
		}
	}
	return r, nil
}
