package domain

import "context"

// Names of the two documents the store persists
const (
	DatasetUsers       = "users"
	DatasetAnnotations = "annotations"
)

// DatasetRepository is durable key-value storage for whole JSON documents
type DatasetRepository interface {
	// Load returns the stored document, or nil without error when the dataset
	// was never saved
	Load(ctx context.Context, name string) ([]byte, error)

	// Save replaces the dataset with doc
	Save(ctx context.Context, name string, doc []byte) error

	// Close releases the underlying storage
	Close() error
}
