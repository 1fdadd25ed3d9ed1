package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	"tweetstamp-node/types"
)

const memcachedKeyPrefix = "verify_"

type MemcachedCacheSvc struct {
	client *memcache.Client
}

func NewMemcachedCacheSvc(conn string) *MemcachedCacheSvc {
	log.Infof("init memcached verification cache: %v ******", conn)
	return &MemcachedCacheSvc{client: memcache.New(conn)}
}

func (svc *MemcachedCacheSvc) Get(_ context.Context, contentHash string) (*types.CachedVerification, error) {
	item, err := svc.client.Get(memcachedKeyPrefix + contentHash)
	if err == memcache.ErrCacheMiss {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrCacheBackendFailed, err)
	}
	var entry types.CachedVerification
	if err = json.Unmarshal(item.Value, &entry); err != nil {
		return &types.CachedVerification{}, nil
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

func (svc *MemcachedCacheSvc) Put(ctx context.Context, entry *types.CachedVerification) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return svc.Evict(ctx, entry.ContentHash)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	err = svc.client.Set(&memcache.Item{
		Key:        memcachedKeyPrefix + entry.ContentHash,
		Value:      raw,
		Expiration: int32(ttl / time.Second),
	})
	if err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	return nil
}

func (svc *MemcachedCacheSvc) Evict(_ context.Context, contentHash string) error {
	err := svc.client.Delete(memcachedKeyPrefix + contentHash)
	if err != nil && err != memcache.ErrCacheMiss {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	return nil
}
