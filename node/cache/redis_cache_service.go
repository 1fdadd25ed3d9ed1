package cache

import (
	"context"
	"encoding/json"
	"runtime"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"

	"tweetstamp-node/types"
)

const redisKeyPrefix = "verify_"

// RedisCacheSvc stores entries as JSON with a native redis TTL, so expiry
// needs no reaper of our own.
type RedisCacheSvc struct {
	client redis.Cmdable
}

func NewRedisCacheSvc(conn string, password string, poolSize int) *RedisCacheSvc {
	log.Infof("init redis verification cache: %v ******", conn)

	if poolSize < 1 {
		poolSize = 4 * runtime.NumCPU()
	}
	var cli redis.Cmdable
	if strings.Contains(conn, ",") {
		cli = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    strings.Split(conn, ","),
			Password: password,
			PoolSize: poolSize,
		})
	} else {
		cli = redis.NewClient(&redis.Options{
			Addr:     conn,
			Password: password,
			PoolSize: poolSize,
		})
	}
	return &RedisCacheSvc{client: cli}
}

func (svc *RedisCacheSvc) Get(ctx context.Context, contentHash string) (*types.CachedVerification, error) {
	raw, err := svc.client.Get(ctx, redisKeyPrefix+contentHash).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrCacheBackendFailed, err)
	}
	var entry types.CachedVerification
	if err = json.Unmarshal([]byte(raw), &entry); err != nil {
		// undecodable entries read as corrupt, the resolver deletes them
		return &types.CachedVerification{}, nil
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

func (svc *RedisCacheSvc) Put(ctx context.Context, entry *types.CachedVerification) error {
	ttl := time.Until(entry.ExpiresAt)
	if ttl <= 0 {
		return svc.Evict(ctx, entry.ContentHash)
	}
	raw, err := json.Marshal(entry)
	if err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	if err = svc.client.Set(ctx, redisKeyPrefix+entry.ContentHash, raw, ttl).Err(); err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	return nil
}

func (svc *RedisCacheSvc) Evict(ctx context.Context, contentHash string) error {
	if err := svc.client.Del(ctx, redisKeyPrefix+contentHash).Err(); err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	return nil
}
