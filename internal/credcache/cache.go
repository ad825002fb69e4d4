// Package credcache persists short-lived credentials as JSON files and reuses
// them until they are about to expire.
package credcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/workspace"
)

// Expiring is a credential with a known expiry. A zero expiry means the
// expiry is unknown and the credential is never reused.
type Expiring interface {
	Expiry() time.Time
}

// FetchFunc obtains a fresh credential from its issuer.
type FetchFunc[T Expiring] func(ctx context.Context) (T, error)

// Cache is a single persisted credential record.
//
// A cached record is reused only when its expiry lies strictly after
// now+margin. Otherwise the fetch function is called, the record is
// overwritten and the fresh value returned. A fetch failure leaves the
// record untouched.
type Cache[T Expiring] struct {
	mu     sync.Mutex
	path   string
	margin time.Duration
	clock  cdl.Clock
	logger cdl.Logger
}

// New creates a cache backed by the file at path.
func New[T Expiring](path string, margin time.Duration, clock cdl.Clock, logger cdl.Logger) *Cache[T] {
	return &Cache[T]{
		path:   path,
		margin: margin,
		clock:  clock,
		logger: logger,
	}
}

// Path returns the file backing the cache.
func (c *Cache[T]) Path() string { return c.path }

// GetOrRefresh returns the cached credential if it is still fresh, and fetches
// and persists a new one otherwise.
func (c *Cache[T]) GetOrRefresh(ctx context.Context, fetch FetchFunc[T]) (T, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero T

	cached, ok := c.load()
	if ok && c.fresh(cached) {
		c.logger.Debug("using cached credential", "path", c.path, "expires", cached.Expiry())
		return cached, nil
	}

	fresh, err := fetch(ctx)
	if err != nil {
		return zero, err
	}

	if err := c.store(fresh); err != nil {
		return zero, err
	}
	c.logger.Debug("credential refreshed", "path", c.path, "expires", fresh.Expiry())
	return fresh, nil
}

// Invalidate removes the persisted record.
func (c *Cache[T]) Invalidate() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", c.path, err)
	}
	return nil
}

func (c *Cache[T]) fresh(v T) bool {
	exp := v.Expiry()
	if exp.IsZero() {
		return false
	}
	return exp.After(c.clock.Now().Add(c.margin))
}

// load reads the persisted record. A missing or unreadable record is a miss.
func (c *Cache[T]) load() (T, bool) {
	var v T
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			c.logger.Warn("credential cache unreadable", "path", c.path, "error", err)
		}
		return v, false
	}
	if err := json.Unmarshal(data, &v); err != nil {
		c.logger.Warn("credential cache corrupt, refetching", "path", c.path, "error", err)
		return v, false
	}
	return v, true
}

func (c *Cache[T]) store(v T) error {
	err := workspace.WriteFileAtomic(c.path, 0600, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	})
	if err != nil {
		return fmt.Errorf("persisting credential: %w", err)
	}
	return nil
}
