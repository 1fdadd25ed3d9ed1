package store

import (
	"context"
	"time"

	uuid "github.com/satori/go.uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"tweetstamp-node/types"
)

// Session is one wallet-auth challenge or issued session. Expiry is owned
// by the TTL index on expiresAt; a fetched document past its stamp is
// treated as gone even if the index has not reaped it yet.
type Session struct {
	Id        string    `bson:"id" json:"id"`
	Wallet    string    `bson:"wallet" json:"wallet"`
	Challenge string    `bson:"challenge,omitempty" json:"challenge,omitempty"`
	IssuedAt  time.Time `bson:"issuedAt" json:"issuedAt"`
	ExpiresAt time.Time `bson:"expiresAt" json:"expiresAt"`
}

// SessionStore replaces process-wide challenge maps with an injected,
// TTL-indexed store.
type SessionStore interface {
	Create(ctx context.Context, wallet string, challenge string, ttl time.Duration) (*Session, error)
	Get(ctx context.Context, id string) (*Session, error)
	Delete(ctx context.Context, id string) error
}

type MongoSessionStore struct {
	col *mongo.Collection
}

func NewMongoSessionStore(db *mongo.Database) *MongoSessionStore {
	return &MongoSessionStore{col: db.Collection(colSessions)}
}

func (s *MongoSessionStore) Create(ctx context.Context, wallet string, challenge string, ttl time.Duration) (*Session, error) {
	now := time.Now().UTC()
	sess := &Session{
		Id:        uuid.NewV4().String(),
		Wallet:    wallet,
		Challenge: challenge,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col.ReplaceOne(ctx, bson.M{"id": sess.Id}, sess, opts); err != nil {
		return nil, types.Wrap(types.ErrStoreWriteFailed, err)
	}
	return sess, nil
}

func (s *MongoSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	var sess Session
	err := s.col.FindOne(ctx, bson.M{"id": id}).Decode(&sess)
	if err == mongo.ErrNoDocuments {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, types.Wrap(types.ErrStoreQueryFailed, err)
	}
	if !time.Now().Before(sess.ExpiresAt) {
		// TTL reaper lags; expired means gone
		_, _ = s.col.DeleteOne(ctx, bson.M{"id": id})
		return nil, types.ErrSessionNotFound
	}
	return &sess, nil
}

func (s *MongoSessionStore) Delete(ctx context.Context, id string) error {
	if _, err := s.col.DeleteOne(ctx, bson.M{"id": id}); err != nil {
		return types.Wrap(types.ErrStoreWriteFailed, err)
	}
	return nil
}
