package storage

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"cdl-sync/internal/cdl"
)

// MemoryStore is an in-memory ObjectStore for one bucket.
// It counts list and download calls, making it useful for testing.
// This implementation is safe for concurrent use.
type MemoryStore struct {
	bucket    string
	objects   map[string][]byte
	lists     int
	downloads int
	mu        sync.RWMutex
}

var _ cdl.ObjectStore = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore(bucket string) *MemoryStore {
	return &MemoryStore{
		bucket:  bucket,
		objects: make(map[string][]byte),
	}
}

// Put stores content at key, replacing any existing object.
func (m *MemoryStore) Put(key string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), content...)
}

// ListKeys returns the keys under prefix in lexical order.
func (m *MemoryStore) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.lists++

	var keys []string
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Download writes the object at key to destPath.
func (m *MemoryStore) Download(ctx context.Context, key string, destPath string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	m.downloads++
	data, ok := m.objects[key]
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s/%s", ErrObjectNotFound, m.bucket, key)
	}
	if err := os.WriteFile(destPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write object: %w", err)
	}
	return nil
}

// Lists returns the number of ListKeys calls.
func (m *MemoryStore) Lists() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lists
}

// Downloads returns the number of Download calls.
func (m *MemoryStore) Downloads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.downloads
}

// MemoryOpener hands out MemoryStores by bucket and counts Open calls.
type MemoryOpener struct {
	stores map[string]*MemoryStore
	opens  int
	mu     sync.Mutex
}

var _ cdl.StoreOpener = (*MemoryOpener)(nil)

func NewMemoryOpener() *MemoryOpener {
	return &MemoryOpener{stores: make(map[string]*MemoryStore)}
}

// Bucket returns the store for bucket, creating it if needed.
func (o *MemoryOpener) Bucket(name string) *MemoryStore {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.bucketLocked(name)
}

func (o *MemoryOpener) bucketLocked(name string) *MemoryStore {
	s, ok := o.stores[name]
	if !ok {
		s = NewMemoryStore(name)
		o.stores[name] = s
	}
	return s
}

func (o *MemoryOpener) Open(ctx context.Context, cred *cdl.StorageCredential) (cdl.ObjectStore, error) {
	bucket, _, err := cred.Location()
	if err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.opens++
	return o.bucketLocked(bucket), nil
}

// Opens returns the number of Open calls.
func (o *MemoryOpener) Opens() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opens
}
