package cache

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tweetstamp-node/types"
)

const colVerifications = "verifications"

// MongoCacheSvc keeps cached verifications in the document store next to
// the registrations, with physical expiry owned by the TTL index on
// expiresAt. The reaper lags up to a minute, so reads still check the
// stamp themselves.
type MongoCacheSvc struct {
	col *mongo.Collection
}

func NewMongoCacheSvc(db *mongo.Database) *MongoCacheSvc {
	return &MongoCacheSvc{col: db.Collection(colVerifications)}
}

func (svc *MongoCacheSvc) Get(ctx context.Context, contentHash string) (*types.CachedVerification, error) {
	var entry types.CachedVerification
	err := svc.col.FindOne(ctx, bson.M{"contentHash": contentHash}).Decode(&entry)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, types.Wrap(types.ErrCacheBackendFailed, err)
	}
	if entry.Expired(time.Now()) {
		return nil, nil
	}
	return &entry, nil
}

func (svc *MongoCacheSvc) Put(ctx context.Context, entry *types.CachedVerification) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := svc.col.ReplaceOne(ctx, bson.M{"contentHash": entry.ContentHash}, entry, opts); err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	return nil
}

func (svc *MongoCacheSvc) Evict(ctx context.Context, contentHash string) error {
	if _, err := svc.col.DeleteOne(ctx, bson.M{"contentHash": contentHash}); err != nil {
		return types.Wrap(types.ErrCacheBackendFailed, err)
	}
	return nil
}
