package cdl

import "context"

// ObjectStore reads study artifacts from object storage.
// Keys are relative to the bucket the store was opened for.
type ObjectStore interface {
	// ListKeys returns every object key under prefix, in listing order.
	ListKeys(ctx context.Context, prefix string) ([]string, error)

	// Download writes the object at key to destPath, creating or truncating it.
	Download(ctx context.Context, key string, destPath string) error
}

// StoreOpener opens an ObjectStore scoped to a credential's base location.
type StoreOpener interface {
	Open(ctx context.Context, cred *StorageCredential) (ObjectStore, error)
}
