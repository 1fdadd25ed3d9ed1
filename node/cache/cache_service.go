package cache

import (
	"go.mongodb.org/mongo-driver/mongo"
	"golang.org/x/xerrors"

	"tweetstamp-node/node/config"
)

// NewCacheSvc picks the verification-cache backend from config. The mongo
// backend is the default so a bare deployment needs nothing beyond the
// document store it already runs.
func NewCacheSvc(cfg config.Cache, db *mongo.Database) (VerifyCacheApi, error) {
	switch cfg.Backend {
	case "", "mongo":
		if db == nil {
			return nil, xerrors.Errorf("mongo cache backend requires a store connection")
		}
		return NewMongoCacheSvc(db), nil
	case "memory":
		return NewMemoryCacheSvc(cfg.Capacity), nil
	case "redis":
		return NewRedisCacheSvc(cfg.RedisConn, cfg.RedisPassword, cfg.RedisPoolSize), nil
	case "memcached":
		return NewMemcachedCacheSvc(cfg.MemcachedConn), nil
	default:
		return nil, xerrors.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
