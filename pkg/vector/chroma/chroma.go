// Package chroma provides a Chroma vector database driver implementation.
//
// Chroma is the persistence backend the QA documents were originally stored
// in; this driver keeps that deployment option available next to the
// embedded sqlite-vec store.
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/releaselens/releaselens/pkg/vector"
)

const (
	// DefaultCollectionName is the default collection name for storing
	// Q&A chunk embeddings.
	DefaultCollectionName = "qa_documents"

	collectionsPath = "%s/api/v2/tenants/default_tenant/databases/default_database/collections"
	collectionPath  = "%s/api/v2/tenants/default_tenant/databases/default_database/collections/%s"
)

// ChromaDriver implements vector.Driver using Chroma's REST API.
type ChromaDriver struct {
	baseURL        string
	collectionName string
	collectionID   string
	httpClient     *http.Client
	logger         *zap.Logger
}

// Config holds configuration for the Chroma driver.
type Config struct {
	// URL is the Chroma server URL (e.g., "http://localhost:8000").
	URL string

	// CollectionName is the name of the collection to use.
	// Defaults to DefaultCollectionName if empty.
	CollectionName string
}

// NewChromaDriver creates a new Chroma vector driver.
func NewChromaDriver(c Config, logger *zap.Logger) (*ChromaDriver, error) {
	if c.URL == "" {
		return nil, fmt.Errorf("chroma URL is required")
	}

	collectionName := c.CollectionName
	if collectionName == "" {
		collectionName = DefaultCollectionName
	}

	d := &ChromaDriver{
		baseURL:        c.URL,
		collectionName: collectionName,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}

	collectionID, err := d.getOrCreateCollection(context.Background())
	if err != nil {
		return nil, fmt.Errorf("%w: getting or creating collection %q: %v", vector.ErrConnection, collectionName, err)
	}
	d.collectionID = collectionID

	logger.Info("connected to Chroma",
		zap.String("url", c.URL),
		zap.String("collection", collectionName),
		zap.String("collection_id", collectionID),
	)

	return d, nil
}

// getOrCreateCollection gets an existing collection or creates a new one.
func (d *ChromaDriver) getOrCreateCollection(ctx context.Context) (string, error) {
	url := fmt.Sprintf(collectionPath, d.baseURL, d.collectionName)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return "", fmt.Errorf("creating get request: %w", err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending get request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var collection chromaCollection
		if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
			return "", fmt.Errorf("decoding collection response: %w", err)
		}
		return collection.ID, nil
	}

	// Collection doesn't exist, create it with cosine distance so scores
	// match the sqlite-vec backend.
	createURL := fmt.Sprintf(collectionsPath, d.baseURL)
	createBody := map[string]any{
		"name":     d.collectionName,
		"metadata": map[string]any{"hnsw:space": "cosine"},
	}
	jsonBody, err := json.Marshal(createBody)
	if err != nil {
		return "", fmt.Errorf("marshaling create request: %w", err)
	}

	req, err = http.NewRequestWithContext(ctx, "POST", createURL, bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("creating create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err = d.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("sending create request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("failed to create collection: status %d: %s", resp.StatusCode, string(body))
	}

	var collection chromaCollection
	if err := json.NewDecoder(resp.Body).Decode(&collection); err != nil {
		return "", fmt.Errorf("decoding create response: %w", err)
	}

	return collection.ID, nil
}

func metadataToAny(m map[string]string) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func metadataFromAny(m map[string]any) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// whereFilter renders a conjunctive exact-match filter map into Chroma's
// where syntax: a single {key: value} term, or {"$and": [...]} for several.
func whereFilter(filters map[string]string) map[string]any {
	switch len(filters) {
	case 0:
		return nil
	case 1:
		for k, v := range filters {
			return map[string]any{k: v}
		}
		return nil
	default:
		terms := make([]map[string]any, 0, len(filters))
		for k, v := range filters {
			terms = append(terms, map[string]any{k: v})
		}
		return map[string]any{"$and": terms}
	}
}

// Add upserts documents with their embeddings, text, and metadata.
func (d *ChromaDriver) Add(ctx context.Context, docs []vector.Document) error {
	if len(docs) == 0 {
		return nil
	}

	ids := make([]string, len(docs))
	embeddings := make([][]float32, len(docs))
	metadatas := make([]map[string]any, len(docs))
	documents := make([]string, len(docs))

	for i, doc := range docs {
		ids[i] = doc.ID
		embeddings[i] = doc.Embedding
		metadatas[i] = metadataToAny(doc.Metadata)
		documents[i] = doc.Text
	}

	reqBody := chromaUpsertRequest{
		IDs:        ids,
		Embeddings: embeddings,
		Metadatas:  metadatas,
		Documents:  documents,
	}

	// upsert, not add: re-ingesting an identical chunk must overwrite.
	if err := d.post(ctx, "upsert", reqBody, nil); err != nil {
		return fmt.Errorf("%w: upserting documents: %v", vector.ErrConnection, err)
	}

	d.logger.Debug("upserted documents to chroma",
		zap.Int("count", len(docs)),
	)

	return nil
}

// Query finds the topK most similar documents to the given embedding among
// documents whose metadata matches every filter key/value pair.
func (d *ChromaDriver) Query(ctx context.Context, embedding []float32, topK int, filters map[string]string) ([]vector.QueryResult, error) {
	if topK <= 0 {
		topK = 10
	}

	reqBody := chromaQueryRequest{
		QueryEmbeddings: [][]float32{embedding},
		NResults:        topK,
		Where:           whereFilter(filters),
		Include:         []string{"metadatas", "documents", "distances"},
	}

	var queryResp chromaQueryResponse
	if err := d.post(ctx, "query", reqBody, &queryResp); err != nil {
		return nil, fmt.Errorf("%w: querying: %v", vector.ErrConnection, err)
	}

	var results []vector.QueryResult

	// Process first group (we only query with one embedding)
	if len(queryResp.IDs) == 0 || len(queryResp.IDs[0]) == 0 {
		return results, nil
	}

	ids := queryResp.IDs[0]
	distances := queryResp.Distances[0]

	var metadatas []map[string]any
	if len(queryResp.Metadatas) > 0 {
		metadatas = queryResp.Metadatas[0]
	}

	var documents []string
	if len(queryResp.Documents) > 0 {
		documents = queryResp.Documents[0]
	}

	for i, id := range ids {
		result := vector.QueryResult{
			Document: vector.Document{ID: id},
		}

		if i < len(metadatas) && metadatas[i] != nil {
			result.Metadata = metadataFromAny(metadatas[i])
		}
		if i < len(documents) {
			result.Text = documents[i]
		}
		// Cosine distance; similarity = 1 - distance.
		if i < len(distances) {
			result.Score = 1.0 - distances[i]
		}

		results = append(results, result)
	}

	d.logger.Debug("queried chroma",
		zap.Int("results", len(results)),
	)

	return results, nil
}

// Get retrieves documents by their IDs.
func (d *ChromaDriver) Get(ctx context.Context, ids []string) ([]vector.Document, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	reqBody := chromaGetRequest{
		IDs:     ids,
		Include: []string{"metadatas", "documents", "embeddings"},
	}

	var getResp chromaGetResponse
	if err := d.post(ctx, "get", reqBody, &getResp); err != nil {
		return nil, fmt.Errorf("%w: getting documents: %v", vector.ErrConnection, err)
	}

	docs := make([]vector.Document, len(getResp.IDs))
	for i, id := range getResp.IDs {
		docs[i] = vector.Document{ID: id}

		if i < len(getResp.Metadatas) && getResp.Metadatas[i] != nil {
			docs[i].Metadata = metadataFromAny(getResp.Metadatas[i])
		}
		if i < len(getResp.Documents) {
			docs[i].Text = getResp.Documents[i]
		}
		if i < len(getResp.Embeddings) {
			docs[i].Embedding = getResp.Embeddings[i]
		}
	}

	return docs, nil
}

// Delete removes documents by their IDs.
func (d *ChromaDriver) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	if err := d.post(ctx, "delete", chromaDeleteRequest{IDs: ids}, nil); err != nil {
		return fmt.Errorf("%w: deleting documents: %v", vector.ErrConnection, err)
	}

	d.logger.Debug("deleted documents from chroma",
		zap.Int("count", len(ids)),
	)

	return nil
}

// Count returns the total number of stored documents.
func (d *ChromaDriver) Count(ctx context.Context) (int, error) {
	url := fmt.Sprintf(collectionPath+"/count", d.baseURL, d.collectionID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: creating count request: %v", vector.ErrConnection, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: sending count request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("%w: count returned status %d: %s", vector.ErrConnection, resp.StatusCode, string(body))
	}

	var count chromaCountResponse
	if err := json.NewDecoder(resp.Body).Decode(&count); err != nil {
		return 0, fmt.Errorf("%w: decoding count response: %v", vector.ErrConnection, err)
	}

	return count, nil
}

// Reset drops and recreates the collection, removing all documents.
func (d *ChromaDriver) Reset(ctx context.Context) error {
	url := fmt.Sprintf(collectionPath, d.baseURL, d.collectionName)

	req, err := http.NewRequestWithContext(ctx, "DELETE", url, nil)
	if err != nil {
		return fmt.Errorf("%w: creating delete-collection request: %v", vector.ErrConnection, err)
	}

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: sending delete-collection request: %v", vector.ErrConnection, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%w: delete collection returned status %d: %s", vector.ErrConnection, resp.StatusCode, string(body))
	}

	collectionID, err := d.getOrCreateCollection(ctx)
	if err != nil {
		return fmt.Errorf("%w: recreating collection: %v", vector.ErrConnection, err)
	}
	d.collectionID = collectionID

	d.logger.Info("reset chroma collection",
		zap.String("collection", d.collectionName),
	)

	return nil
}

// Close releases resources held by the driver.
func (d *ChromaDriver) Close() error {
	// HTTP client doesn't require explicit cleanup
	return nil
}

// post sends a JSON POST to a collection sub-endpoint and optionally decodes
// the response into out.
func (d *ChromaDriver) post(ctx context.Context, endpoint string, body any, out any) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling %s request: %w", endpoint, err)
	}

	url := fmt.Sprintf(collectionPath+"/%s", d.baseURL, d.collectionID, endpoint)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("creating %s request: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("sending %s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("%s returned status %d: %s", endpoint, resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding %s response: %w", endpoint, err)
		}
	}

	return nil
}

var _ vector.Driver = (*ChromaDriver)(nil)
