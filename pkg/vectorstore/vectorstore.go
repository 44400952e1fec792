// Package vectorstore provides similarity search over embedded documents.
//
// The store is consumed as a black box by retrieval agents: it holds no
// scheduling or concurrency logic of its own beyond being safe for
// concurrent use.
package vectorstore

import (
	"context"
	"fmt"
)

// Document is a unit of searchable content with its embedding.
type Document struct {
	ID        string            `json:"id"`
	Text      string            `json:"text"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float32         `json:"embedding"`
}

// SearchResult pairs a document with its similarity score.
type SearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// Store is the interface retrieval agents depend on.
type Store interface {
	// Upsert inserts or updates documents with embeddings.
	Upsert(ctx context.Context, documents []Document) error

	// Search returns the topK most similar documents by cosine
	// similarity, highest score first. Results below minScore are
	// dropped when minScore > 0.
	Search(ctx context.Context, embedding []float32, topK int, minScore float64) ([]SearchResult, error)

	// Count returns the number of stored documents.
	Count() int
}

// ValidateDocument checks the invariants every stored document must hold.
func ValidateDocument(doc *Document) error {
	if doc.ID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if len(doc.Embedding) == 0 {
		return fmt.Errorf("document %s has no embedding", doc.ID)
	}
	return nil
}
