// Package lake is the partitioned columnar store. A partition is one parquet
// object addressed by entity attributes and date; the partition is the unit
// of idempotent overwrite.
//
// Backends: memory (testing), local (filesystem), badgerstore (embedded
// durable store for self-hosted deployments).
package lake

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get for missing objects.
var ErrNotFound = errors.New("lake: object not found")

// ObjectStore is durable object storage with partition-granular overwrite
// semantics. No append support is required anywhere in the pipeline.
type ObjectStore interface {
	// Put stores data at path, replacing any existing object.
	Put(ctx context.Context, path string, data []byte) error

	// Get returns the object at path, or ErrNotFound.
	Get(ctx context.Context, path string) ([]byte, error)

	// Delete removes the object at path. Missing objects are not an error.
	Delete(ctx context.Context, path string) error

	// List returns the paths of all objects under prefix.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close cleanly shuts down the backend.
	Close() error
}
