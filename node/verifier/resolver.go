package verifier

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"tweetstamp-node/chain"
	"tweetstamp-node/node/cache"
	"tweetstamp-node/types"
	"tweetstamp-node/utils"
)

var log = logging.Logger("verifier")

const (
	DefaultCacheTtl = time.Hour
	BatchLimit      = 10

	msgVerifiedCache = "Content verified (cached)"
	msgVerifiedStore = "Content verified"
	msgVerifiedChain = "Content verified on chain"
	msgNotVerified   = "Content is not registered"
	MsgContentOrHash = "Either content or hash required"
)

// VerifyStore is the slice of the registration store the resolver reads.
type VerifyStore interface {
	FindActiveByHash(ctx context.Context, contentHash string) (*types.Registration, error)
	IncVerifyCount(ctx context.Context, contentHash string) error
}

type Request struct {
	Content string `json:"tweetContent,omitempty"`
	Hash    string `json:"hash,omitempty"`
}

type Outcome struct {
	Verified bool
	Message  string
	Data     *types.VerificationData
}

type BatchResult struct {
	Success  bool                    `json:"success"`
	Verified bool                    `json:"verified"`
	Hash     string                  `json:"hash,omitempty"`
	Data     *types.VerificationData `json:"data,omitempty"`
	Error    string                  `json:"error,omitempty"`
}

// Resolver answers verification requests with a strict cache -> store ->
// chain read-through, backfilling the cache on the way out. Races between
// concurrent requests for the same hash are tolerated, not prevented: both
// fall through and the last cache write wins with the same answer.
type Resolver struct {
	store    VerifyStore
	cache    cache.VerifyCacheApi
	gateway  chain.ChainSvcApi
	network  string
	cacheTtl time.Duration
}

func NewResolver(store VerifyStore, cacheSvc cache.VerifyCacheApi, gateway chain.ChainSvcApi, network string, cacheTtl time.Duration) *Resolver {
	if cacheTtl <= 0 {
		cacheTtl = DefaultCacheTtl
	}
	return &Resolver{
		store:    store,
		cache:    cacheSvc,
		gateway:  gateway,
		network:  network,
		cacheTtl: cacheTtl,
	}
}

// fallbackVersions returns the contract versions to consult, newest first.
// Historical versions only exist on mainnet; elsewhere just the primary.
func (r *Resolver) fallbackVersions() []chain.ContractVersion {
	vers := r.gateway.Versions()
	if r.network != "mainnet" && len(vers) > 1 {
		return vers[:1]
	}
	return vers
}

func (r *Resolver) deriveHash(req Request) ([]byte, string, error) {
	if req.Hash != "" {
		raw, err := utils.DecodeHashHex(req.Hash)
		if err != nil {
			return nil, "", err
		}
		return raw, utils.EncodeHashHex(raw), nil
	}
	if req.Content != "" {
		h := utils.HashContent(req.Content)
		return h[:], utils.EncodeHashHex(h[:]), nil
	}
	return nil, "", types.Wrapf(types.ErrInvalidRequest, MsgContentOrHash)
}

// VerifyContent executes the three resolver steps in strict order,
// short-circuiting on the first definitive positive. Only malformed input
// surfaces as an error; everything else resolves to an Outcome.
func (r *Resolver) VerifyContent(ctx context.Context, req Request) (*Outcome, error) {
	hashBytes, hashHex, err := r.deriveHash(req)
	if err != nil {
		return nil, err
	}

	// step 1: cache
	if outcome := r.consultCache(ctx, hashHex); outcome != nil {
		return outcome, nil
	}

	// step 2: persisted record
	if outcome := r.consultStore(ctx, hashHex); outcome != nil {
		return outcome, nil
	}

	// step 3: chain fallback, newest version first
	return r.consultChain(ctx, hashBytes, hashHex), nil
}

// consultCache returns an outcome only for an authoritative positive. A
// cached negative is deleted and ignored so a registration completed
// out-of-band is not masked until expiry; a corrupt entry is deleted and
// ignored so it never surfaces as an error.
func (r *Resolver) consultCache(ctx context.Context, hashHex string) *Outcome {
	entry, err := r.cache.Get(ctx, hashHex)
	if err != nil {
		log.Warnf("cache lookup for %s failed, continuing: %v", hashHex, err)
		return nil
	}
	if entry == nil {
		return nil
	}
	if !entry.Sound() {
		log.Warnf("deleting corrupt cache entry for %s", hashHex)
		r.evictQuiet(ctx, hashHex)
		return nil
	}
	if !entry.Verified {
		r.evictQuiet(ctx, hashHex)
		return nil
	}

	r.bumpVerifyCount(hashHex)
	return &Outcome{
		Verified: true,
		Message:  msgVerifiedCache,
		Data: &types.VerificationData{
			Hash:           entry.ContentHash,
			Author:         entry.Author,
			BnsName:        entry.BnsName,
			BnsStatus:      entry.BnsStatus,
			RegisteredAt:   entry.RegisteredAt,
			BlockHeight:    entry.BlockHeight,
			RegistrationId: entry.RegistrationId,
			TxId:           entry.TxId,
		},
	}
}

func (r *Resolver) consultStore(ctx context.Context, hashHex string) *Outcome {
	reg, err := r.store.FindActiveByHash(ctx, hashHex)
	if err != nil {
		if !types.ErrRecordNotFound.Is(err) {
			log.Warnf("record lookup for %s failed, falling through to chain: %v", hashHex, err)
		}
		return nil
	}

	data := &types.VerificationData{
		Hash:           reg.ContentHash,
		Author:         reg.AuthorWallet,
		BnsName:        reg.BnsName,
		BnsStatus:      reg.BnsStatus,
		RegisteredAt:   reg.RegisteredAt,
		BlockHeight:    reg.BlockHeight,
		RegistrationId: reg.RegistrationId,
		TxId:           reg.TxId,
		TweetUrl:       reg.TweetUrl,
		TwitterHandle:  reg.TwitterHandle,
	}
	r.putCache(ctx, &types.CachedVerification{
		ContentHash:    hashHex,
		Verified:       true,
		Author:         reg.AuthorWallet,
		BnsName:        reg.BnsName,
		BnsStatus:      reg.BnsStatus,
		BlockHeight:    reg.BlockHeight,
		RegisteredAt:   reg.RegisteredAt,
		TxId:           reg.TxId,
		RegistrationId: reg.RegistrationId,
		ExpiresAt:      time.Now().Add(r.cacheTtl),
	})
	r.bumpVerifyCount(hashHex)
	return &Outcome{Verified: true, Message: msgVerifiedStore, Data: data}
}

func (r *Resolver) consultChain(ctx context.Context, hashBytes []byte, hashHex string) *Outcome {
	for _, ver := range r.fallbackVersions() {
		rec, found := r.gateway.VerifyContent(ctx, ver, hashBytes)
		if !found {
			continue
		}
		r.putCache(ctx, &types.CachedVerification{
			ContentHash:    hashHex,
			Verified:       true,
			Author:         rec.Author,
			BnsName:        rec.BnsName,
			BlockHeight:    rec.BlockHeight,
			RegisteredAt:   rec.Timestamp,
			RegistrationId: rec.RegistrationId,
			ExpiresAt:      time.Now().Add(r.cacheTtl),
		})
		return &Outcome{
			Verified: true,
			Message:  msgVerifiedChain,
			Data: &types.VerificationData{
				Hash:           hashHex,
				Author:         rec.Author,
				BnsName:        rec.BnsName,
				RegisteredAt:   rec.Timestamp,
				BlockHeight:    rec.BlockHeight,
				RegistrationId: rec.RegistrationId,
				Degraded:       rec.Degraded,
			},
		}
	}

	r.putCache(ctx, &types.CachedVerification{
		ContentHash: hashHex,
		Verified:    false,
		ExpiresAt:   time.Now().Add(r.cacheTtl),
	})
	return &Outcome{Verified: false, Message: msgNotVerified}
}

// QuickCheck is an existence-only probe across contract versions.
func (r *Resolver) QuickCheck(ctx context.Context, hashHex string) (bool, error) {
	raw, err := utils.DecodeHashHex(hashHex)
	if err != nil {
		return false, err
	}
	for _, ver := range r.fallbackVersions() {
		if r.gateway.HashExists(ctx, ver, raw) {
			return true, nil
		}
	}
	return false, nil
}

// VerifyBatch resolves up to BatchLimit items against the chain only, no
// cache or store consultation. Every item gets an independent outcome in
// input order; one bad item never aborts the rest.
func (r *Resolver) VerifyBatch(ctx context.Context, items []Request) []BatchResult {
	if len(items) > BatchLimit {
		items = items[:BatchLimit]
	}
	results := make([]BatchResult, len(items))

	hashes := make([][]byte, 0, len(items))
	hashIdx := make([]int, 0, len(items))
	for i, item := range items {
		raw, hashHex, err := r.deriveHash(item)
		if err != nil {
			msg := MsgContentOrHash
			if !types.ErrInvalidRequest.Is(err) {
				msg = err.Error()
			}
			results[i] = BatchResult{Success: false, Error: msg}
			continue
		}
		results[i] = BatchResult{Success: true, Hash: hashHex}
		hashes = append(hashes, raw)
		hashIdx = append(hashIdx, i)
	}
	if len(hashes) == 0 {
		return results
	}

	// one batch probe against the primary, then older versions per miss
	probed := r.gateway.BatchExists(ctx, hashes)
	fallback := r.fallbackVersions()
	for pos, res := range probed {
		i := hashIdx[pos]
		if res.Exists {
			results[i].Verified = true
			continue
		}
		for _, ver := range fallback[1:] {
			if r.gateway.HashExists(ctx, ver, hashes[pos]) {
				results[i].Verified = true
				break
			}
		}
	}
	return results
}

// Invalidate drops any cached answer for a hash. Called after a lifecycle
// change so the next read resolves fresh instead of hitting a stale entry.
func (r *Resolver) Invalidate(ctx context.Context, hashHex string) {
	r.evictQuiet(ctx, hashHex)
}

func (r *Resolver) putCache(ctx context.Context, entry *types.CachedVerification) {
	if err := r.cache.Put(ctx, entry); err != nil {
		log.Warnf("cache write for %s failed: %v", entry.ContentHash, err)
	}
}

func (r *Resolver) evictQuiet(ctx context.Context, hashHex string) {
	if err := r.cache.Evict(ctx, hashHex); err != nil {
		log.Warnf("cache evict for %s failed: %v", hashHex, err)
	}
}

func (r *Resolver) bumpVerifyCount(hashHex string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.IncVerifyCount(ctx, hashHex); err != nil && !types.ErrRecordNotFound.Is(err) {
			log.Debugf("verify counter for %s not bumped: %v", hashHex, err)
		}
	}()
}
