package media

import (
	"context"
	"io"
)

// StorageProvider abstracts object storage operations.
type StorageProvider interface {
	// Put writes data to storage under the given key.
	Put(ctx context.Context, key string, reader io.Reader, contentType string) error
	// AccessPath returns the public URL for a storage key.
	AccessPath(key string) string
}
