// Package retrieval defines the vector-store and embedding interfaces the
// chat pipeline retrieves grounding context through, plus the Document model
// shared with the ingestion pipeline. Concrete backends (Qdrant) satisfy
// these interfaces so the pipeline never depends on a specific store.
package retrieval

import (
	"context"
)

// Document is a unit of stored or retrieved equipment documentation.
type Document struct {
	// ID is the unique identifier for this document chunk.
	ID string

	// Content is the raw text content of the chunk.
	Content string

	// Source is the origin URI or file path of the document.
	Source string

	// Metadata holds arbitrary key-value pairs (manufacturer, category, etc.).
	Metadata map[string]string

	// Score is the similarity score assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// Filter constrains a similarity search to documents whose payload matches
// every key-value pair. An empty or nil filter matches all documents.
type Filter map[string]string

// VectorStore is the interface for persisting and searching document
// embeddings. Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of documents with their pre-computed
	// embeddings. embeddings[i] is the vector for docs[i].
	Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error

	// Search returns the matchCount most similar documents for the given
	// query embedding, optionally constrained by filter, in similarity order.
	Search(ctx context.Context, queryEmbedding []float32, matchCount int, filter Filter) ([]Document, error)

	// Delete removes documents by their IDs.
	Delete(ctx context.Context, ids []string) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
