package testutils

import (
	"context"
	"math"
	"sort"

	"github.com/releaselens/releaselens/pkg/vector"
)

// MockVectorDriver is an in-memory vector driver that honors metadata
// filters and scores by cosine similarity, so retrieval tests exercise
// the same ranking semantics as the real drivers.
type MockVectorDriver struct {
	documents []vector.Document

	// FailQuery causes Query to return this error when set
	FailQuery error
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		documents: make([]vector.Document, 0),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	for _, doc := range docs {
		replaced := false
		for i, existing := range m.documents {
			if existing.ID == doc.ID {
				m.documents[i] = doc
				replaced = true
				break
			}
		}
		if !replaced {
			m.documents = append(m.documents, doc)
		}
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, embedding []float32, topK int, filters map[string]string) ([]vector.QueryResult, error) {
	if m.FailQuery != nil {
		return nil, m.FailQuery
	}

	type scored struct {
		result vector.QueryResult
		order  int
	}

	matches := make([]scored, 0, len(m.documents))
	for i, doc := range m.documents {
		if !matchesFilters(doc.Metadata, filters) {
			continue
		}
		matches = append(matches, scored{
			result: vector.QueryResult{
				Document: doc,
				Score:    cosineSimilarity(embedding, doc.Embedding),
			},
			order: i,
		})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].result.Score != matches[j].result.Score {
			return matches[i].result.Score > matches[j].result.Score
		}
		return matches[i].order < matches[j].order
	})

	if topK < len(matches) {
		matches = matches[:topK]
	}

	results := make([]vector.QueryResult, 0, len(matches))
	for _, m := range matches {
		results = append(results, m.result)
	}
	return results, nil
}

func (m *MockVectorDriver) Get(_ context.Context, ids []string) ([]vector.Document, error) {
	found := make([]vector.Document, 0, len(ids))
	for _, id := range ids {
		for _, doc := range m.documents {
			if doc.ID == id {
				found = append(found, doc)
				break
			}
		}
	}
	return found, nil
}

func (m *MockVectorDriver) Delete(_ context.Context, ids []string) error {
	kept := m.documents[:0]
	for _, doc := range m.documents {
		remove := false
		for _, id := range ids {
			if doc.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, doc)
		}
	}
	m.documents = kept
	return nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	return len(m.documents), nil
}

func (m *MockVectorDriver) Reset(_ context.Context) error {
	m.documents = m.documents[:0]
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}

// Documents exposes the stored documents for assertions.
func (m *MockVectorDriver) Documents() []vector.Document {
	return m.documents
}

func matchesFilters(metadata, filters map[string]string) bool {
	for key, want := range filters {
		if metadata[key] != want {
			return false
		}
	}
	return true
}

func cosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}
