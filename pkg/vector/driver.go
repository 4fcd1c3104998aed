// Package vector provides interfaces and implementations for persisting
// record embeddings.
package vector

import "context"

// Document is a stored record embedding.
type Document struct {
	// ID is the record id the embedding belongs to.
	ID string

	// ProjectID scopes the document to a project.
	ProjectID string

	// Version names the embedding model that produced Embedding.
	Version string

	// Embedding is the vector representation of the record content.
	Embedding []float32
}

// Driver stores record embeddings so they survive restarts. Ranking happens
// in the retrieval engine; drivers are looked up by id only.
type Driver interface {
	// Add stores documents with their embeddings.
	// If a document with the same ID already exists, implementers should update
	// the document.
	Add(ctx context.Context, docs []Document) error

	// Get retrieves documents by their IDs. Unknown IDs are skipped.
	Get(ctx context.Context, ids []string) ([]Document, error)

	// Close releases any resources held by the driver.
	Close() error
}
