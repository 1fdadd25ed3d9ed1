package store

import (
	"context"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tweetstamp-node/types"
)

var log = logging.Logger("store")

const (
	colRegistrations = "registrations"
	colVerifications = "verifications"
	colSessions      = "sessions"

	connectTimeout = 10 * time.Second
)

// RegistrationStore is the persistence surface for notarization records.
// Implementations must keep contentHash unique and support atomic counter
// increments.
type RegistrationStore interface {
	FindByHash(ctx context.Context, contentHash string) (*types.Registration, error)
	FindActiveByHash(ctx context.Context, contentHash string) (*types.Registration, error)
	FindByAuthor(ctx context.Context, authorWallet string, limit int) ([]*types.Registration, error)
	FindStaleBindings(ctx context.Context, olderThan time.Time, limit int) ([]*types.Registration, error)
	Insert(ctx context.Context, reg *types.Registration) error
	ConfirmChain(ctx context.Context, contentHash, txId string, blockHeight, registrationId uint64) error
	FailChain(ctx context.Context, contentHash, txId string) error
	UpdateBinding(ctx context.Context, contentHash string, status types.BindingStatus, currentOwner string, transferredAt *time.Time, validatedAt time.Time) error
	IncVerifyCount(ctx context.Context, contentHash string) error
	IncViewCount(ctx context.Context, contentHash string) error
	Stats(ctx context.Context) (*types.StoreStats, error)
}

// MongoStore backs the registration, cached-verification and session
// collections. Expiry is enforced by TTL indexes rather than manual sweeps.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

func NewMongoStore(ctx context.Context, uri string, database string) (*MongoStore, error) {
	cctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(cctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, types.Wrap(types.ErrConnectStoreFailed, err)
	}
	if err = client.Ping(cctx, nil); err != nil {
		return nil, types.Wrap(types.ErrConnectStoreFailed, err)
	}

	s := &MongoStore{
		client: client,
		db:     client.Database(database),
	}
	if err = s.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	log.Infof("connected record store, database %s", database)
	return s, nil
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	_, err := s.db.Collection(colRegistrations).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "contentHash", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "authorWallet", Value: 1}}},
		{Keys: bson.D{{Key: "chainStatus", Value: 1}}},
		{Keys: bson.D{{Key: "bnsName", Value: 1}, {Key: "bnsLastValidated", Value: 1}}},
	})
	if err != nil {
		return types.Wrap(types.ErrConnectStoreFailed, err)
	}

	ttl := options.Index().SetExpireAfterSeconds(0)
	_, err = s.db.Collection(colVerifications).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "contentHash", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: ttl},
	})
	if err != nil {
		return types.Wrap(types.ErrConnectStoreFailed, err)
	}

	_, err = s.db.Collection(colSessions).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "expiresAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(0)},
	})
	if err != nil {
		return types.Wrap(types.ErrConnectStoreFailed, err)
	}
	return nil
}

func (s *MongoStore) Disconnect(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *MongoStore) registrations() *mongo.Collection {
	return s.db.Collection(colRegistrations)
}

// Database exposes the underlying handle for collections owned by other
// packages, like the mongo verification-cache backend.
func (s *MongoStore) Database() *mongo.Database {
	return s.db
}

func (s *MongoStore) FindByHash(ctx context.Context, contentHash string) (*types.Registration, error) {
	var reg types.Registration
	err := s.registrations().FindOne(ctx, bson.M{"contentHash": normalizeHashKey(contentHash)}).Decode(&reg)
	if err == mongo.ErrNoDocuments {
		return nil, types.ErrRecordNotFound
	}
	if err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	return &reg, nil
}

// FindActiveByHash only matches records still on the normal lifecycle path,
// chain status confirmed or pending.
func (s *MongoStore) FindActiveByHash(ctx context.Context, contentHash string) (*types.Registration, error) {
	var reg types.Registration
	err := s.registrations().FindOne(ctx, bson.M{
		"contentHash": normalizeHashKey(contentHash),
		"chainStatus": bson.M{"$in": []types.ChainStatus{types.ChainStatusConfirmed, types.ChainStatusPending}},
	}).Decode(&reg)
	if err == mongo.ErrNoDocuments {
		return nil, types.ErrRecordNotFound
	}
	if err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	return &reg, nil
}

func (s *MongoStore) FindByAuthor(ctx context.Context, authorWallet string, limit int) ([]*types.Registration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cur, err := s.registrations().Find(ctx, bson.M{"authorWallet": authorWallet}, opts)
	if err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	defer cur.Close(ctx)

	var regs []*types.Registration
	if err = cur.All(ctx, &regs); err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	return regs, nil
}

// FindStaleBindings selects records carrying a name binding whose last
// validation is absent or older than the cutoff.
func (s *MongoStore) FindStaleBindings(ctx context.Context, olderThan time.Time, limit int) ([]*types.Registration, error) {
	filter := bson.M{
		"bnsName": bson.M{"$exists": true, "$ne": ""},
		"$or": []bson.M{
			{"bnsLastValidated": bson.M{"$exists": false}},
			{"bnsLastValidated": nil},
			{"bnsLastValidated": bson.M{"$lt": olderThan}},
		},
	}
	cur, err := s.registrations().Find(ctx, filter, options.Find().SetLimit(int64(limit)))
	if err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	defer cur.Close(ctx)

	var regs []*types.Registration
	if err = cur.All(ctx, &regs); err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	return regs, nil
}

func (s *MongoStore) Insert(ctx context.Context, reg *types.Registration) error {
	reg.ContentHash = normalizeHashKey(reg.ContentHash)
	if reg.CreatedAt.IsZero() {
		reg.CreatedAt = time.Now().UTC()
	}
	_, err := s.registrations().InsertOne(ctx, reg)
	if mongo.IsDuplicateKeyError(err) {
		return types.ErrDuplicateHash
	}
	if err != nil {
		return types.Wrap(types.ErrStoreWriteFailed, err)
	}
	return nil
}

// ConfirmChain moves a pending record to confirmed. Confirmed is terminal:
// a record already confirmed or failed is left untouched.
func (s *MongoStore) ConfirmChain(ctx context.Context, contentHash, txId string, blockHeight, registrationId uint64) error {
	res, err := s.registrations().UpdateOne(ctx,
		bson.M{"contentHash": contentHash, "chainStatus": types.ChainStatusPending},
		bson.M{"$set": bson.M{
			"chainStatus":    types.ChainStatusConfirmed,
			"txId":           txId,
			"blockHeight":    blockHeight,
			"registrationId": registrationId,
			"registeredAt":   time.Now().UTC(),
		}})
	if err != nil {
		return types.Wrap(types.ErrStoreWriteFailed, err)
	}
	if res.MatchedCount == 0 {
		if _, ferr := s.FindByHash(ctx, contentHash); ferr != nil {
			return ferr
		}
		return types.ErrChainStatusTerminal
	}
	return nil
}

func (s *MongoStore) FailChain(ctx context.Context, contentHash, txId string) error {
	res, err := s.registrations().UpdateOne(ctx,
		bson.M{"contentHash": contentHash, "chainStatus": types.ChainStatusPending},
		bson.M{"$set": bson.M{
			"chainStatus": types.ChainStatusFailed,
			"txId":        txId,
		}})
	if err != nil {
		return types.Wrap(types.ErrStoreWriteFailed, err)
	}
	if res.MatchedCount == 0 {
		if _, ferr := s.FindByHash(ctx, contentHash); ferr != nil {
			return ferr
		}
		return types.ErrChainStatusTerminal
	}
	return nil
}

// UpdateBinding stamps a validation outcome. Transitions back to valid only
// clear transfer bookkeeping that a previous sweep may have set.
func (s *MongoStore) UpdateBinding(ctx context.Context, contentHash string, status types.BindingStatus, currentOwner string, transferredAt *time.Time, validatedAt time.Time) error {
	set := bson.M{
		"bnsStatus":        status,
		"bnsLastValidated": validatedAt,
	}
	unset := bson.M{}
	if status == types.BindingTransferred {
		set["bnsCurrentOwner"] = currentOwner
		if transferredAt != nil {
			set["bnsTransferredAt"] = transferredAt
		}
	} else {
		unset["bnsCurrentOwner"] = ""
	}
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	_, err := s.registrations().UpdateOne(ctx, bson.M{"contentHash": contentHash}, update)
	if err != nil {
		return types.Wrap(types.ErrStoreWriteFailed, err)
	}
	return nil
}

func (s *MongoStore) IncVerifyCount(ctx context.Context, contentHash string) error {
	return s.incCounter(ctx, contentHash, "verifyCount")
}

func (s *MongoStore) IncViewCount(ctx context.Context, contentHash string) error {
	return s.incCounter(ctx, contentHash, "viewCount")
}

func (s *MongoStore) incCounter(ctx context.Context, contentHash, field string) error {
	_, err := s.registrations().UpdateOne(ctx,
		bson.M{"contentHash": contentHash},
		bson.M{"$inc": bson.M{field: 1}})
	if err != nil {
		return types.Wrap(types.ErrStoreWriteFailed, err)
	}
	return nil
}

func (s *MongoStore) Stats(ctx context.Context) (*types.StoreStats, error) {
	stats := &types.StoreStats{}
	var err error
	if stats.TotalRegistrations, err = s.registrations().CountDocuments(ctx, bson.M{}); err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	for status, target := range map[types.ChainStatus]*int64{
		types.ChainStatusConfirmed: &stats.Confirmed,
		types.ChainStatusPending:   &stats.Pending,
		types.ChainStatusFailed:    &stats.Failed,
	} {
		if *target, err = s.registrations().CountDocuments(ctx, bson.M{"chainStatus": status}); err != nil {
			return nil, types.Wrap(types.ErrStoreQueryFailed, err)
		}
	}

	cur, err := s.registrations().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.M{"_id": nil, "total": bson.M{"$sum": "$verifyCount"}}}},
	})
	if err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	defer cur.Close(ctx)
	var agg []struct {
		Total int64 `bson:"total"`
	}
	if err = cur.All(ctx, &agg); err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	if len(agg) > 0 {
		stats.TotalVerifications = agg[0].Total
	}
	return stats, nil
}

// normalizeHashKey lowercases and strips an optional 0x prefix so lookups
// match however the hash was rendered.
func normalizeHashKey(hash string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hash), "0x"))
}
