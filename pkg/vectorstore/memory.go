package vectorstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// Memory is an in-memory Store using brute-force cosine search. Suitable
// for development and corpora in the tens of thousands of documents; not a
// production index.
type Memory struct {
	mu           sync.RWMutex
	documents    map[string]Document
	dimensions   int
	maxDocuments int
}

// MemoryConfig configures the in-memory store.
type MemoryConfig struct {
	// Dimensions is the required embedding dimension (must be > 0).
	Dimensions int `yaml:"dimensions" json:"dimensions"`

	// MaxDocuments bounds the store size (default: 10000).
	MaxDocuments int `yaml:"max_documents,omitempty" json:"max_documents,omitempty"`
}

// NewMemory creates an in-memory vector store.
func NewMemory(cfg MemoryConfig) (*Memory, error) {
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("embedding dimensions must be greater than 0, got %d", cfg.Dimensions)
	}
	maxDocs := cfg.MaxDocuments
	if maxDocs <= 0 {
		maxDocs = 10000
	}
	return &Memory{
		documents:    make(map[string]Document),
		dimensions:   cfg.Dimensions,
		maxDocuments: maxDocs,
	}, nil
}

// Upsert inserts or updates documents. All documents are validated before
// any mutation so a failed call leaves the store unchanged.
func (m *Memory) Upsert(ctx context.Context, documents []Document) error {
	if len(documents) == 0 {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range documents {
		if err := ValidateDocument(&documents[i]); err != nil {
			return fmt.Errorf("invalid document at index %d: %w", i, err)
		}
		if len(documents[i].Embedding) != m.dimensions {
			return fmt.Errorf("document %s embedding dimension mismatch: expected %d, got %d",
				documents[i].ID, m.dimensions, len(documents[i].Embedding))
		}
	}

	newDocs := 0
	for _, doc := range documents {
		if _, exists := m.documents[doc.ID]; !exists {
			newDocs++
		}
	}
	if len(m.documents)+newDocs > m.maxDocuments {
		return fmt.Errorf("would exceed max documents limit: %d (current: %d, adding: %d)",
			m.maxDocuments, len(m.documents), newDocs)
	}

	for _, doc := range documents {
		m.documents[doc.ID] = copyDocument(doc)
	}
	return nil
}

// Search performs brute-force cosine similarity search.
func (m *Memory) Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]SearchResult, error) {
	if len(embedding) != m.dimensions {
		return nil, fmt.Errorf("query embedding dimension mismatch: expected %d, got %d",
			m.dimensions, len(embedding))
	}
	if topK <= 0 {
		topK = 5
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var candidates []SearchResult
	for _, doc := range m.documents {
		score := cosineSimilarity(embedding, doc.Embedding)
		if minScore > 0 && score < minScore {
			continue
		}
		candidates = append(candidates, SearchResult{Document: copyDocument(doc), Score: score})
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}

// Count returns the number of stored documents.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.documents)
}

// Delete removes a document by id. Unknown ids are a no-op.
func (m *Memory) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.documents, id)
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	denom := math.Sqrt(normA)*math.Sqrt(normB) + 1e-10
	return dot / denom
}

func copyDocument(doc Document) Document {
	out := doc
	out.Embedding = make([]float32, len(doc.Embedding))
	copy(out.Embedding, doc.Embedding)
	if doc.Metadata != nil {
		out.Metadata = make(map[string]string, len(doc.Metadata))
		for k, v := range doc.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}
