package storage

import (
	"context"
	"time"

	"github.com/patrickmn/go-cache"

	"img2img/internal/domain"
)

const (
	defaultCacheExpiration = 30 * time.Minute
	cacheCleanupInterval   = time.Hour
	maxCachedBlobSize      = 8 << 20
)

// CachedStore keeps recently fetched blobs in memory. Stored objects are
// immutable, so entries are only dropped on delete or expiry.
type CachedStore struct {
	domain.BlobStore
	cache *cache.Cache
}

func NewCachedStore(inner domain.BlobStore) *CachedStore {
	return &CachedStore{
		BlobStore: inner,
		cache:     cache.New(defaultCacheExpiration, cacheCleanupInterval),
	}
}

func (s *CachedStore) Fetch(ctx context.Context, key string) (*domain.Blob, error) {
	if v, ok := s.cache.Get(key); ok {
		return v.(*domain.Blob), nil
	}
	blob, err := s.BlobStore.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if len(blob.Data) <= maxCachedBlobSize {
		s.cache.SetDefault(key, blob)
	}
	return blob, nil
}

func (s *CachedStore) Delete(ctx context.Context, key string) error {
	s.cache.Delete(key)
	return s.BlobStore.Delete(ctx, key)
}

var _ domain.BlobStore = (*CachedStore)(nil)
