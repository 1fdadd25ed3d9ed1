package cache

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"tweetstamp-node/types"
)

var log = logging.Logger("cache")

// VerifyCacheApi memoizes verification answers keyed by content hash. At
// most one live entry exists per hash; Put overwrites. Get returns
// (nil, nil) on a miss, and implementations must treat an expired entry as
// a miss even before the backend physically deletes it.
type VerifyCacheApi interface {
	Get(ctx context.Context, contentHash string) (*types.CachedVerification, error)
	Put(ctx context.Context, entry *types.CachedVerification) error
	Evict(ctx context.Context, contentHash string) error
}
