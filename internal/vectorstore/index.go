package vectorstore

import (
	"context"
	"errors"
)

var (
	// ErrCollectionNotFound is returned when the collection does not exist yet.
	ErrCollectionNotFound = errors.New("collection not found")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyDocuments indicates an insert without records.
	ErrEmptyDocuments = errors.New("empty or nil documents")

	// ErrConnectionFailed indicates the backend could not be reached.
	ErrConnectionFailed = errors.New("failed to connect to vector index")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")

	// ErrDimensionMismatch indicates an embedding whose length differs from
	// the collection's dimension.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// DefaultCollection is used when no collection is configured.
const DefaultCollection = "temporal_rag_documents"

// Index is a single vector collection.
type Index interface {
	// EnsureCollection creates the collection with the given dimension, or
	// loads it if it already exists.
	EnsureCollection(ctx context.Context, dim int) error

	// Insert adds records. Embeddings must match the collection dimension.
	Insert(ctx context.Context, records []Record) error

	// Flush makes previous inserts durable and visible.
	Flush(ctx context.Context) error

	// Search returns up to k records matching filter, ordered by descending
	// cosine similarity to vector.
	Search(ctx context.Context, vector []float32, k int, filter Filter) ([]Hit, error)

	// Query returns every record matching filter, without embeddings.
	Query(ctx context.Context, filter Filter) ([]Record, error)

	// Delete removes every record matching filter and returns how many were
	// removed. A nil filter is rejected.
	Delete(ctx context.Context, filter Filter) (int, error)

	// Count returns the number of records matching filter.
	Count(ctx context.Context, filter Filter) (int, error)

	// Close releases backend resources.
	Close() error
}

// ErrUnboundedDelete is returned by Delete when called without a filter.
var ErrUnboundedDelete = errors.New("delete requires a filter")
