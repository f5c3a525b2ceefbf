// Package index couples an embedder with a vector driver behind a
// many-readers/one-writer lock.
//
// Searches proceed concurrently; a rebuild (Replace) takes the write lock so
// queries never observe a half-replaced index.
package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/chunkgen"
	"github.com/releaselens/releaselens/pkg/embeddings"
	"github.com/releaselens/releaselens/pkg/vector"
)

const (
	// DefaultTopK is the number of results returned when the caller does
	// not specify one.
	DefaultTopK = 8

	// MaxTopK caps a single search.
	MaxTopK = 100
)

// Index is the retrieval surface over embedded Q&A chunks.
type Index struct {
	mu       sync.RWMutex
	embedder embeddings.Embedder
	driver   vector.Driver
	logger   *zap.Logger
}

// New creates an Index over the given embedder and driver.
func New(embedder embeddings.Embedder, driver vector.Driver, logger *zap.Logger) *Index {
	return &Index{
		embedder: embedder,
		driver:   driver,
		logger:   logger,
	}
}

// ChunkID derives the stable document ID for a chunk: the hex SHA-256 of
// source, ordinal, and text. Re-ingesting identical content yields identical
// IDs, which makes ingestion idempotent at the store level.
func ChunkID(source string, ordinal int, text string) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s|%d|%s", source, ordinal, text)
	return hex.EncodeToString(h.Sum(nil))
}

// buildDocuments assigns per-source ordinals and derives stable IDs. The
// ordinal counts chunks within one source, so an identical source produces
// identical IDs regardless of what else was ingested alongside it.
func buildDocuments(chunks []chunkgen.Chunk, vectors [][]float32) []vector.Document {
	ordinals := make(map[string]int, len(chunks))
	docs := make([]vector.Document, len(chunks))
	for i, c := range chunks {
		source := c.Metadata[chunkgen.MetaSource]
		ord := ordinals[source]
		ordinals[source] = ord + 1

		docs[i] = vector.Document{
			ID:        ChunkID(source, ord, c.Text),
			Text:      c.Text,
			Metadata:  c.Metadata,
			Embedding: vectors[i],
		}
	}
	return docs
}

// EmbedAndStore embeds the chunks and upserts them into the store.
func (ix *Index) EmbedAndStore(ctx context.Context, chunks []chunkgen.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}

	docs := buildDocuments(chunks, vectors)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.driver.Add(ctx, docs); err != nil {
		return fmt.Errorf("storing %d chunks: %w", len(docs), err)
	}

	ix.logger.Debug("stored chunks",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Replace atomically rebuilds the index contents: everything currently
// stored is dropped and the given chunks are embedded and stored in its
// place. Readers block for the duration.
func (ix *Index) Replace(ctx context.Context, chunks []chunkgen.Chunk) error {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	// Embed outside the lock; only the store swap needs exclusivity.
	var vectors [][]float32
	if len(chunks) > 0 {
		var err error
		vectors, err = ix.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
		}
	}

	docs := buildDocuments(chunks, vectors)

	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.driver.Reset(ctx); err != nil {
		return fmt.Errorf("resetting store: %w", err)
	}

	if len(docs) > 0 {
		if err := ix.driver.Add(ctx, docs); err != nil {
			return fmt.Errorf("storing %d chunks: %w", len(docs), err)
		}
	}

	ix.logger.Info("index replaced",
		zap.Int("chunks", len(docs)),
	)

	return nil
}

// Search embeds the query and returns the topK most similar chunks whose
// metadata matches every filter exactly. topK defaults to DefaultTopK when
// unset and is clamped to MaxTopK. Fewer matches than topK is not an error.
func (ix *Index) Search(ctx context.Context, query string, topK int, filters map[string]string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	embedding, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	ix.mu.RLock()
	defer ix.mu.RUnlock()

	results, err := ix.driver.Query(ctx, embedding, topK, filters)
	if err != nil {
		return nil, fmt.Errorf("querying store: %w", err)
	}

	return results, nil
}

// Count returns the number of stored chunks.
func (ix *Index) Count(ctx context.Context) (int, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	return ix.driver.Count(ctx)
}

// Close releases the underlying embedder and driver.
func (ix *Index) Close() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if err := ix.embedder.Close(); err != nil {
		return err
	}
	return ix.driver.Close()
}
