package datalake

import (
	"context"

	"cdl-sync/internal/cdl"
	"cdl-sync/internal/credcache"
)

// CachedStorageCredentials serves storage credentials from the credential
// cache and requests a new one only once the cached one has expired.
type CachedStorageCredentials struct {
	client *Client
	cache  *credcache.Cache[*cdl.StorageCredential]
}

var _ cdl.StorageCredentialSource = (*CachedStorageCredentials)(nil)

func NewCachedStorageCredentials(client *Client, cache *credcache.Cache[*cdl.StorageCredential]) *CachedStorageCredentials {
	return &CachedStorageCredentials{client: client, cache: cache}
}

func (s *CachedStorageCredentials) StorageCredential(ctx context.Context) (*cdl.StorageCredential, error) {
	return s.cache.GetOrRefresh(ctx, s.client.FetchStorageCredential)
}
