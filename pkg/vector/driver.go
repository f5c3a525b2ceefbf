// Package vector provides interfaces and implementations for vector storage
// of embedded Q&A chunks.
package vector

import "context"

// Document represents a stored chunk with its embedding and metadata.
type Document struct {
	// ID is a deterministic identifier for the chunk, derived from its
	// source, position, and text so that re-ingestion upserts instead of
	// duplicating.
	ID string

	// Text is the natural-language content that was embedded.
	Text string

	// Metadata is a flat string mapping. The keys "release", "doc_type",
	// and "source" are always set by the ingestion pipeline.
	Metadata map[string]string

	// Embedding is the vector representation of Text.
	Embedding []float32
}

// QueryResult represents a search result with similarity score.
type QueryResult struct {
	Document

	// Score is the similarity score (higher = more similar).
	Score float32
}

// Driver handles storage and retrieval of vector embeddings.
type Driver interface {
	// Add stores documents with their embeddings. Documents sharing an ID
	// with an existing document replace it.
	Add(ctx context.Context, docs []Document) error

	// Query finds the topK documents most similar to the given embedding
	// among documents whose metadata matches every key/value pair in
	// filters. A nil or empty filters map leaves the search unconstrained.
	// Fewer than topK matches is not an error. Ties are broken by
	// insertion order, earlier document first.
	Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]QueryResult, error)

	// Get retrieves documents by their IDs.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Count returns the total number of stored documents.
	Count(ctx context.Context) (int, error)

	// Reset removes all stored documents, supporting full re-ingestion.
	Reset(ctx context.Context) error

	// Close releases any resources held by the driver.
	Close() error
}
