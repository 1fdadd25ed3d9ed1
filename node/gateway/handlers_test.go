package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"tweetstamp-node/chain"
	"tweetstamp-node/node/cache"
	"tweetstamp-node/node/config"
	"tweetstamp-node/node/verifier"
	"tweetstamp-node/store"
	"tweetstamp-node/types"
	"tweetstamp-node/utils"
)

const testWallet = "SP2J6ZY48GV1EZ5V2V5RB9MP66SW86PYKKNRV9EJ7"

type fakeRegStore struct {
	mu        sync.Mutex
	regs      map[string]*types.Registration
	viewBumps int
}

func newFakeRegStore() *fakeRegStore {
	return &fakeRegStore{regs: map[string]*types.Registration{}}
}

func (f *fakeRegStore) FindByHash(_ context.Context, hash string) (*types.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if reg, ok := f.regs[hash]; ok {
		return reg, nil
	}
	return nil, types.ErrRecordNotFound
}

func (f *fakeRegStore) FindActiveByHash(ctx context.Context, hash string) (*types.Registration, error) {
	reg, err := f.FindByHash(ctx, hash)
	if err != nil {
		return nil, err
	}
	if reg.ChainStatus == types.ChainStatusFailed {
		return nil, types.ErrRecordNotFound
	}
	return reg, nil
}

func (f *fakeRegStore) FindByAuthor(_ context.Context, author string, limit int) ([]*types.Registration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.Registration
	for _, reg := range f.regs {
		if reg.AuthorWallet == author {
			out = append(out, reg)
		}
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (f *fakeRegStore) FindStaleBindings(_ context.Context, _ time.Time, _ int) ([]*types.Registration, error) {
	return nil, nil
}

func (f *fakeRegStore) Insert(_ context.Context, reg *types.Registration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.regs[reg.ContentHash]; ok {
		return types.ErrDuplicateHash
	}
	f.regs[reg.ContentHash] = reg
	return nil
}

func (f *fakeRegStore) ConfirmChain(_ context.Context, hash, txId string, height, regId uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[hash]
	if !ok {
		return types.ErrRecordNotFound
	}
	if reg.ChainStatus != types.ChainStatusPending {
		return types.ErrChainStatusTerminal
	}
	reg.ChainStatus = types.ChainStatusConfirmed
	reg.TxId = txId
	reg.BlockHeight = height
	reg.RegistrationId = regId
	return nil
}

func (f *fakeRegStore) FailChain(_ context.Context, hash, txId string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	reg, ok := f.regs[hash]
	if !ok {
		return types.ErrRecordNotFound
	}
	if reg.ChainStatus != types.ChainStatusPending {
		return types.ErrChainStatusTerminal
	}
	reg.ChainStatus = types.ChainStatusFailed
	reg.TxId = txId
	return nil
}

func (f *fakeRegStore) UpdateBinding(_ context.Context, _ string, _ types.BindingStatus, _ string, _ *time.Time, _ time.Time) error {
	return nil
}

func (f *fakeRegStore) IncVerifyCount(_ context.Context, _ string) error { return nil }

func (f *fakeRegStore) IncViewCount(_ context.Context, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.viewBumps++
	return nil
}

func (f *fakeRegStore) Stats(_ context.Context) (*types.StoreStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.StoreStats{TotalRegistrations: int64(len(f.regs))}, nil
}

type fakeSessions struct {
	mu   sync.Mutex
	byId map[string]*store.Session
	seq  int
}

func newFakeSessions() *fakeSessions {
	return &fakeSessions{byId: map[string]*store.Session{}}
}

func (f *fakeSessions) Create(_ context.Context, wallet, challenge string, ttl time.Duration) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	sess := &store.Session{
		Id:        fmt.Sprintf("sess-%d", f.seq),
		Wallet:    wallet,
		Challenge: challenge,
		IssuedAt:  time.Now(),
		ExpiresAt: time.Now().Add(ttl),
	}
	f.byId[sess.Id] = sess
	return sess, nil
}

func (f *fakeSessions) Get(_ context.Context, id string) (*store.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sess, ok := f.byId[id]; ok {
		return sess, nil
	}
	return nil, types.ErrSessionNotFound
}

func (f *fakeSessions) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.byId, id)
	return nil
}

type fakeChainSvc struct {
	mu       sync.Mutex
	existing map[string]bool
	txId     string
	txErr    error
}

func newFakeChainSvc() *fakeChainSvc {
	return &fakeChainSvc{existing: map[string]bool{}, txId: "ab" + strings.Repeat("cd", 31)}
}

func (f *fakeChainSvc) Versions() []chain.ContractVersion {
	return []chain.ContractVersion{{Address: testWallet, Name: "tweet-stamp-v2"}}
}

func (f *fakeChainSvc) HashExists(_ context.Context, _ chain.ContractVersion, hash []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[utils.EncodeHashHex(hash)]
}

func (f *fakeChainSvc) VerifyContent(ctx context.Context, ver chain.ContractVersion, hash []byte) (*chain.ChainRecord, bool) {
	if !f.HashExists(ctx, ver, hash) {
		return nil, false
	}
	return &chain.ChainRecord{Author: testWallet, BlockHeight: 10, Timestamp: time.Now()}, true
}

func (f *fakeChainSvc) RegisterContent(_ context.Context, _ []byte, _ string, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txId, f.txErr
}

func (f *fakeChainSvc) GetContractStats(_ context.Context) *chain.ContractStats {
	return &chain.ContractStats{TotalRegistrations: 1, ContractActive: true}
}

func (f *fakeChainSvc) BatchExists(ctx context.Context, hashes [][]byte) []chain.ExistsResult {
	out := make([]chain.ExistsResult, len(hashes))
	for i, h := range hashes {
		out[i] = chain.ExistsResult{
			Hash:   utils.EncodeHashHex(h),
			Exists: f.HashExists(ctx, chain.ContractVersion{}, h),
		}
	}
	return out
}

type testHarness struct {
	server *HttpApiServer
	store  *fakeRegStore
	chain  *fakeChainSvc
	sess   *fakeSessions
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()
	regStore := newFakeRegStore()
	chainSvc := newFakeChainSvc()
	sessions := newFakeSessions()
	cacheSvc := cache.NewMemoryCacheSvc(64)
	resolver := verifier.NewResolver(regStore, cacheSvc, chainSvc, "testnet", time.Hour)

	cfg := &config.Api{
		ListenAddress:   "127.0.0.1:0",
		ContentLimit:    4096,
		JwtSecret:       "test-secret",
		SessionTtlHours: 1,
	}
	e := echo.New()
	e.HideBanner = true
	s := &HttpApiServer{
		Cfg:      cfg,
		Server:   e,
		resolver: resolver,
		chainSvc: chainSvc,
		regStore: regStore,
		sessions: sessions,
		network:  "testnet",
		primary:  chainSvc.Versions()[0],
		sender:   strings.Repeat("11", 32) + "01",
	}
	return &testHarness{server: s, store: regStore, chain: chainSvc, sess: sessions}
}

func (h *testHarness) request(t *testing.T, method, target string, body string, handler echo.HandlerFunc, setup func(echo.Context)) (*httptest.ResponseRecorder, *ApiResponse) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	ec := h.server.Server.NewContext(req, rec)
	if setup != nil {
		setup(ec)
	}
	require.NoError(t, handler(ec))

	var resp ApiResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, &resp
}

func TestVerifyEndpointEnvelope(t *testing.T) {
	h := newHarness(t)
	hash := utils.HashContentHex("hello notary")
	h.store.regs[hash] = &types.Registration{
		ContentHash:  hash,
		AuthorWallet: testWallet,
		ChainStatus:  types.ChainStatusConfirmed,
		BlockHeight:  42,
	}

	rec, resp := h.request(t, http.MethodPost, "/api/v1/verify",
		`{"tweetContent":"hello notary"}`, h.server.handleVerify, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.True(t, resp.Verified)
}

func TestVerifyRejectsEmptyBody(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.request(t, http.MethodPost, "/api/v1/verify", `{}`, h.server.handleVerify, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, resp.Success)
	require.Contains(t, resp.Error, verifier.MsgContentOrHash)
}

func TestQuickCheckRoute(t *testing.T) {
	h := newHarness(t)
	hash := utils.HashContentHex("stamped")
	h.chain.existing[hash] = true

	rec, resp := h.request(t, http.MethodGet, "/api/v1/verify/"+hash, "", h.server.handleQuickCheck, func(ec echo.Context) {
		ec.SetParamNames("hash")
		ec.SetParamValues(hash)
	})
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Verified)
}

func TestBatchRejectsEmptyAndOversize(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.request(t, http.MethodPost, "/api/v1/verify/batch", `{"items":[]}`, h.server.handleVerifyBatch, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	items := make([]string, 11)
	for i := range items {
		items[i] = fmt.Sprintf(`{"tweetContent":"item %d"}`, i)
	}
	oversize := `{"items":[` + strings.Join(items, ",") + `]}`
	rec, resp := h.request(t, http.MethodPost, "/api/v1/verify/batch", oversize, h.server.handleVerifyBatch, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.False(t, resp.Success)
}

func TestBatchIsolatesInvalidItems(t *testing.T) {
	h := newHarness(t)
	hash := utils.HashContentHex("on chain")
	h.chain.existing[hash] = true

	body := fmt.Sprintf(`{"items":[{"hash":"%s"},{},{"tweetContent":"absent"}]}`, hash)
	rec, resp := h.request(t, http.MethodPost, "/api/v1/verify/batch", body, h.server.handleVerifyBatch, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	raw, err := json.Marshal(resp.Results)
	require.NoError(t, err)
	var results []verifier.BatchResult
	require.NoError(t, json.Unmarshal(raw, &results))
	require.Len(t, results, 3)
	require.True(t, results[0].Verified)
	require.False(t, results[1].Success)
	require.Equal(t, verifier.MsgContentOrHash, results[1].Error)
	require.True(t, results[2].Success)
	require.False(t, results[2].Verified)
}

func TestRegisterWalletFlow(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.request(t, http.MethodPost, "/api/v1/register",
		`{"tweetContent":"my first stamp","bnsName":"alice.btc"}`, h.server.handleRegister,
		func(ec echo.Context) { ec.Set(ctxWalletKey, testWallet) })
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	data := resp.Data.(map[string]interface{})
	hash := data["hash"].(string)
	require.Len(t, hash, 64)
	require.Equal(t, "tweet-stamp-v2", data["contractName"])

	reg := h.store.regs[hash]
	require.NotNil(t, reg)
	require.Equal(t, types.ChainStatusPending, reg.ChainStatus)
	require.Equal(t, testWallet, reg.AuthorWallet)
	require.Equal(t, types.BindingValid, reg.BnsStatus)
}

func TestRegisterDuplicateIsConflict(t *testing.T) {
	h := newHarness(t)
	hash := utils.HashContentHex("already stamped")
	h.store.regs[hash] = &types.Registration{ContentHash: hash, ChainStatus: types.ChainStatusConfirmed}

	rec, resp := h.request(t, http.MethodPost, "/api/v1/register",
		`{"tweetContent":"already stamped"}`, h.server.handleRegister,
		func(ec echo.Context) { ec.Set(ctxWalletKey, testWallet) })
	require.Equal(t, http.StatusConflict, rec.Code)
	require.False(t, resp.Success)
}

func TestRegisterContentLimit(t *testing.T) {
	h := newHarness(t)
	h.server.Cfg.ContentLimit = 16

	rec, _ := h.request(t, http.MethodPost, "/api/v1/register",
		`{"tweetContent":"this content is well past sixteen bytes"}`, h.server.handleRegister,
		func(ec echo.Context) { ec.Set(ctxWalletKey, testWallet) })
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestRegisterDirectSubmit(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.request(t, http.MethodPost, "/api/v1/register",
		`{"tweetContent":"submit for me","submit":true}`, h.server.handleRegister,
		func(ec echo.Context) { ec.Set(ctxWalletKey, testWallet) })
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	require.Equal(t, h.chain.txId, data["txId"])
}

func TestConfirmIsTerminal(t *testing.T) {
	h := newHarness(t)
	hash := utils.HashContentHex("pending stamp")
	h.store.regs[hash] = &types.Registration{ContentHash: hash, ChainStatus: types.ChainStatusPending}

	confirm := func() (*httptest.ResponseRecorder, *ApiResponse) {
		return h.request(t, http.MethodPut, "/api/v1/register/"+hash+"/confirm",
			`{"txId":"deadbeef","blockHeight":100,"registrationId":7}`, h.server.handleRegisterConfirm,
			func(ec echo.Context) {
				ec.SetParamNames("hash")
				ec.SetParamValues(hash)
			})
	}

	rec, _ := confirm()
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, types.ChainStatusConfirmed, h.store.regs[hash].ChainStatus)

	rec, _ = confirm()
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestFailRequiresPending(t *testing.T) {
	h := newHarness(t)
	hash := utils.HashContentHex("confirmed stamp")
	h.store.regs[hash] = &types.Registration{ContentHash: hash, ChainStatus: types.ChainStatusConfirmed}

	rec, _ := h.request(t, http.MethodPost, "/api/v1/register/"+hash+"/fail",
		`{"txId":"deadbeef"}`, h.server.handleRegisterFail,
		func(ec echo.Context) {
			ec.SetParamNames("hash")
			ec.SetParamValues(hash)
		})
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestStatsCombinesSources(t *testing.T) {
	h := newHarness(t)
	rec, resp := h.request(t, http.MethodGet, "/api/v1/stats", "", h.server.handleStats, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	data := resp.Data.(map[string]interface{})
	require.Contains(t, data, "store")
	require.Contains(t, data, "contract")
}

func TestSnapshotRoute(t *testing.T) {
	h := newHarness(t)
	snapCid := "bafybeigdyrzt5sfp7udm7hu76uh7y26nf3efuylqabf3oclgtqy55fbzdi"

	serve := func(value string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/snapshot/"+value, nil)
		rec := httptest.NewRecorder()
		ec := h.server.Server.NewContext(req, rec)
		ec.SetParamNames("cid")
		ec.SetParamValues(value)
		return rec, h.server.handleSnapshot(ec)
	}

	// storage backend not wired
	rec, err := serve(snapCid)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, rec.Code)

	daemon := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "/api/v0/cat")
		require.Equal(t, snapCid, r.URL.Query().Get("arg"))
		w.Write([]byte("the pinned tweet text"))
	}))
	defer daemon.Close()

	backend, err := store.NewIpfsBackend("ipfs+"+daemon.URL, "https://ipfs.io")
	require.NoError(t, err)
	require.NoError(t, backend.Open())
	h.server.ipfs = backend

	rec, err = serve(snapCid)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "the pinned tweet text", rec.Body.String())

	rec, err = serve("not-a-cid")
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
