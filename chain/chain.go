package chain

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"tweetstamp-node/types"
	"tweetstamp-node/utils"
)

var log = logging.Logger("chain")

// contract function names, per deployed version
const (
	fnHashExists    = "hash-exists"
	fnVerifyContent = "verify-content"
	fnRegister      = "register-content"
	fnBatchVerify   = "batch-verify"
	fnContractStats = "get-contract-stats"
)

const (
	rpcTimeout    = 10 * time.Second
	BatchLimit    = 10
	defaultTxFee  = 3000
	senderStandIn = "SP000000000000000000002Q6VF78" // read-only calls still need a sender principal
)

// abort codes raised by the contract, mapped to user-facing messages
var contractErrMessages = map[uint64]string{
	100: "content hash already registered",
	101: "invalid hash length, expected 32 bytes",
	102: "invalid content type",
	103: "contract inactive or caller unauthorized",
	404: "content hash not found",
}

// ContractVersion is one deployed instance of the notarization contract,
// used purely as lookup coordinates.
type ContractVersion struct {
	Address string
	Name    string
}

func (v ContractVersion) Id() string {
	return v.Address + "." + v.Name
}

// ChainRecord is the decoded result of a verify-content call. Degraded is
// set when existence was confirmed but the detail fetch failed and the
// remaining fields are fallback values.
type ChainRecord struct {
	Author         string
	BlockHeight    uint64
	Timestamp      time.Time
	ContentType    string
	RegistrationId uint64
	BnsName        string
	Degraded       bool
}

type ContractStats struct {
	TotalRegistrations uint64 `json:"totalRegistrations"`
	ContractActive     bool   `json:"contractActive"`
	ContractOwner      string `json:"contractOwner"`
}

type ExistsResult struct {
	Hash   string `json:"hash"`
	Exists bool   `json:"exists"`
}

// ChainSvcApi is the gateway surface the resolver and api server consume.
// Transport errors, malformed responses and ledger-reported errors are all
// absorbed here: callers see false / nil / typed errors, never a raw
// transport failure.
type ChainSvcApi interface {
	Versions() []ContractVersion
	HashExists(ctx context.Context, ver ContractVersion, hash []byte) bool
	VerifyContent(ctx context.Context, ver ContractVersion, hash []byte) (*ChainRecord, bool)
	RegisterContent(ctx context.Context, hash []byte, contentType string, senderKey string) (string, error)
	GetContractStats(ctx context.Context) *ContractStats
	BatchExists(ctx context.Context, hashes [][]byte) []ExistsResult
}

// chain service provides access to the notarization contract over the node
// RPC endpoint, mainly read-only calls, tx broadcast and stats query.
type ChainSvc struct {
	rpcEndpoint string
	network     string
	versions    []ContractVersion
	txFee       uint64
	client      *http.Client
}

func NewChainSvc(rpcEndpoint string, network string, versions []ContractVersion, txFee uint64) (*ChainSvc, error) {
	log.Debugf("initialize chain client, rpc %s network %s", rpcEndpoint, network)
	if rpcEndpoint == "" {
		return nil, types.Wrapf(types.ErrCreateChainServiceFailed, "empty rpc endpoint")
	}
	if len(versions) == 0 {
		return nil, types.Wrapf(types.ErrCreateChainServiceFailed, "no contract versions configured")
	}
	if _, ok := txNetworks[network]; !ok {
		return nil, types.Wrapf(types.ErrCreateChainServiceFailed, "unknown network %q", network)
	}
	for _, v := range versions {
		if _, err := DecodeC32Address(v.Address); err != nil {
			return nil, types.Wrap(types.ErrCreateChainServiceFailed, err)
		}
	}
	if txFee == 0 {
		txFee = defaultTxFee
	}
	return &ChainSvc{
		rpcEndpoint: rpcEndpoint,
		network:     network,
		versions:    versions,
		txFee:       txFee,
		client:      &http.Client{Timeout: rpcTimeout},
	}, nil
}

// Versions returns the contract descriptors newest-first. Older versions
// exist only for backward-compatible verification of pre-migration
// registrations, so callers must consult them in this order.
func (c *ChainSvc) Versions() []ContractVersion {
	out := make([]ContractVersion, len(c.versions))
	copy(out, c.versions)
	return out
}

type readOnlyResponse struct {
	Okay   bool   `json:"okay"`
	Result string `json:"result"`
	Cause  string `json:"cause"`
}

func (c *ChainSvc) callReadOnly(ctx context.Context, ver ContractVersion, function string, args ...*ClarityValue) (*ClarityValue, error) {
	hexArgs := make([]string, 0, len(args))
	for _, a := range args {
		h, err := a.EncodeHex()
		if err != nil {
			return nil, err
		}
		hexArgs = append(hexArgs, h)
	}
	body, err := json.Marshal(map[string]interface{}{
		"sender":    senderStandIn,
		"arguments": hexArgs,
	})
	if err != nil {
		return nil, types.Wrap(types.ErrReadOnlyCallFailed, err)
	}

	url := fmt.Sprintf("%s/v2/contracts/call-read/%s/%s/%s", c.rpcEndpoint, ver.Address, ver.Name, function)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, types.Wrap(types.ErrReadOnlyCallFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, types.Wrap(types.ErrReadOnlyCallFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, types.Wrapf(types.ErrReadOnlyCallFailed, "%s returned status %d", function, resp.StatusCode)
	}

	var ro readOnlyResponse
	if err = json.NewDecoder(resp.Body).Decode(&ro); err != nil {
		return nil, types.Wrap(types.ErrReadOnlyCallFailed, err)
	}
	if !ro.Okay {
		return nil, types.Wrapf(types.ErrReadOnlyCallFailed, "%s rejected: %s", function, ro.Cause)
	}
	return DecodeClarityHex(ro.Result)
}

// HashExists is a read-only existence check. Any transport or decoding
// failure reads as false, logged, never raised to the caller.
func (c *ChainSvc) HashExists(ctx context.Context, ver ContractVersion, hash []byte) bool {
	if len(hash) != utils.HashLen {
		log.Warnf("hash-exists called with %d byte hash", len(hash))
		return false
	}
	result, err := c.callReadOnly(ctx, ver, fnHashExists, BuffCV(hash))
	if err != nil {
		log.Warnf("hash-exists against %s failed: %v", ver.Id(), err)
		return false
	}
	return result.Bool()
}

// VerifyContent fetches registration details for a hash. When the contract
// confirms existence but the detail fetch fails, a degraded record is
// returned (unknown author, zero block height, current-time stamp) so the
// caller can still answer positively.
func (c *ChainSvc) VerifyContent(ctx context.Context, ver ContractVersion, hash []byte) (*ChainRecord, bool) {
	if !c.HashExists(ctx, ver, hash) {
		return nil, false
	}

	result, err := c.callReadOnly(ctx, ver, fnVerifyContent, BuffCV(hash))
	if err != nil {
		log.Warnf("verify-content against %s failed after hash-exists succeeded: %v", ver.Id(), err)
		return degradedRecord(), true
	}
	inner, ok := result.Unwrap()
	if !ok || inner.Type != ClarityTypeTuple {
		log.Warnf("verify-content against %s returned non-tuple result", ver.Id())
		return degradedRecord(), true
	}
	return decodeChainRecord(inner), true
}

func degradedRecord() *ChainRecord {
	return &ChainRecord{
		Author:      "unknown",
		BlockHeight: 0,
		Timestamp:   time.Now().UTC(),
		Degraded:    true,
	}
}

func decodeChainRecord(tuple *ClarityValue) *ChainRecord {
	rec := &ChainRecord{Timestamp: time.Now().UTC()}
	if f := tuple.TupleField("author"); f != nil && (f.Type == ClarityTypeStandardPrincipal || f.Type == ClarityTypeContractPrincipal) {
		rec.Author = EncodeC32Address(f.Addr.Version, f.Addr.Hash160)
	} else {
		rec.Author = "unknown"
		rec.Degraded = true
	}
	if f := tuple.TupleField("block-height"); f != nil {
		rec.BlockHeight = f.Uint()
	}
	if f := tuple.TupleField("time-stamp"); f != nil && f.Uint() > 0 {
		rec.Timestamp = time.Unix(int64(f.Uint()), 0).UTC()
	}
	if f := tuple.TupleField("content-type"); f != nil {
		rec.ContentType = f.Str
	}
	if f := tuple.TupleField("registration-id"); f != nil {
		rec.RegistrationId = f.Uint()
	}
	if f := tuple.TupleField("bns-name"); f != nil {
		if inner, ok := f.Unwrap(); ok {
			rec.BnsName = inner.Str
		}
	}
	return rec
}

type broadcastError struct {
	Error      string `json:"error"`
	Reason     string `json:"reason"`
	ReasonData struct {
		Expected string `json:"expected"`
		Actual   string `json:"actual"`
	} `json:"reason_data"`
}

// abortCode extracts the uNNN abort code a rejected contract call carries in
// reason_data, so the caller gets the mapped message instead of the raw reason.
func abortCode(be broadcastError) (uint64, bool) {
	raw := be.ReasonData.Actual
	if raw == "" {
		raw = be.ReasonData.Expected
	}
	raw = strings.TrimPrefix(strings.Trim(raw, "()"), "u")
	if raw == "" {
		return 0, false
	}
	code, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false
	}
	return code, true
}

type accountResponse struct {
	Nonce   uint64 `json:"nonce"`
	Balance string `json:"balance"`
}

func (c *ChainSvc) fetchNonce(ctx context.Context, address string) (uint64, error) {
	url := fmt.Sprintf("%s/v2/accounts/%s?proof=0", c.rpcEndpoint, address)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, types.Wrap(types.ErrAccountQueryFailed, err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, types.Wrap(types.ErrAccountQueryFailed, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, types.Wrapf(types.ErrAccountQueryFailed, "account query returned status %d", resp.StatusCode)
	}
	var acct accountResponse
	if err = json.NewDecoder(resp.Body).Decode(&acct); err != nil {
		return 0, types.Wrap(types.ErrAccountQueryFailed, err)
	}
	return acct.Nonce, nil
}

// RegisterContent builds, signs and broadcasts a register-content call with
// the given sender key. Failures come back as typed errors carrying a
// user-facing message; the signing key is never echoed anywhere.
func (c *ChainSvc) RegisterContent(ctx context.Context, hash []byte, contentType string, senderKey string) (string, error) {
	if len(hash) != utils.HashLen {
		return "", types.Wrapf(types.ErrInvalidHash, "expected %d bytes, got %d", utils.HashLen, len(hash))
	}
	primary := c.versions[0]

	sender, err := SenderAddress(senderKey, c.network)
	if err != nil {
		return "", err
	}
	nonce, err := c.fetchNonce(ctx, sender)
	if err != nil {
		return "", err
	}

	raw, txid, err := BuildContractCall(senderKey, c.network, nonce, c.txFee, primary, fnRegister,
		BuffCV(hash), StringAsciiCV(contentType))
	if err != nil {
		return "", err
	}

	url := c.rpcEndpoint + "/v2/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(raw))
	if err != nil {
		return "", types.Wrap(types.ErrTxBroadcastFailed, err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", types.Wrap(types.ErrTxBroadcastFailed, err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode != http.StatusOK {
		var be broadcastError
		if json.Unmarshal(body, &be) == nil && be.Reason != "" {
			if code, ok := abortCode(be); ok {
				return "", types.Wrapf(types.ErrTxBroadcastFailed, "transaction rejected: %s", ContractErrMessage(code))
			}
			return "", types.Wrapf(types.ErrTxBroadcastFailed, "transaction rejected: %s", be.Reason)
		}
		return "", types.Wrapf(types.ErrTxBroadcastFailed, "broadcast returned status %d", resp.StatusCode)
	}

	// the node echoes the txid as a json string; trust our own if absent
	var echoed string
	if json.Unmarshal(body, &echoed) == nil && echoed != "" {
		txid = echoed
	}
	log.Infof("register-content broadcast, txid %s", txid)
	return txid, nil
}

// GetContractStats returns aggregate counts from the primary contract, or
// nil when the query fails for any reason.
func (c *ChainSvc) GetContractStats(ctx context.Context) *ContractStats {
	result, err := c.callReadOnly(ctx, c.versions[0], fnContractStats)
	if err != nil {
		log.Warnf("get-contract-stats failed: %v", err)
		return nil
	}
	tuple, ok := result.Unwrap()
	if !ok || tuple.Type != ClarityTypeTuple {
		log.Warnf("get-contract-stats returned non-tuple result")
		return nil
	}
	stats := &ContractStats{}
	if f := tuple.TupleField("total-registrations"); f != nil {
		stats.TotalRegistrations = f.Uint()
	}
	if f := tuple.TupleField("contract-active"); f != nil {
		stats.ContractActive = f.Bool()
	}
	if f := tuple.TupleField("contract-owner"); f != nil && f.Type == ClarityTypeStandardPrincipal {
		stats.ContractOwner = EncodeC32Address(f.Addr.Version, f.Addr.Hash160)
	}
	return stats
}

// BatchExists probes existence of up to BatchLimit hashes on the primary
// contract in one batch-verify call, falling back to per-hash probes when
// the batch call cannot be decoded.
func (c *ChainSvc) BatchExists(ctx context.Context, hashes [][]byte) []ExistsResult {
	if len(hashes) > BatchLimit {
		hashes = hashes[:BatchLimit]
	}
	results := make([]ExistsResult, len(hashes))
	for i, h := range hashes {
		results[i] = ExistsResult{Hash: utils.EncodeHashHex(h)}
	}

	items := make([]*ClarityValue, 0, len(hashes))
	for _, h := range hashes {
		items = append(items, BuffCV(h))
	}
	primary := c.versions[0]
	result, err := c.callReadOnly(ctx, primary, fnBatchVerify, ListCV(items...))
	if err == nil {
		if list, ok := result.Unwrap(); ok && list.Type == ClarityTypeList && len(list.List) == len(hashes) {
			for i, item := range list.List {
				if tuple, ok := item.Unwrap(); ok && tuple.Type == ClarityTypeTuple {
					if f := tuple.TupleField("exists"); f != nil {
						results[i].Exists = f.Bool()
					}
				}
			}
			return results
		}
		log.Warnf("batch-verify against %s returned unexpected shape, probing per hash", primary.Id())
	} else {
		log.Warnf("batch-verify against %s failed, probing per hash: %v", primary.Id(), err)
	}

	for i, h := range hashes {
		results[i].Exists = c.HashExists(ctx, primary, h)
	}
	return results
}

// ContractErrMessage maps a contract abort code to its user-facing message.
func ContractErrMessage(code uint64) string {
	if msg, ok := contractErrMessages[code]; ok {
		return msg
	}
	return fmt.Sprintf("contract error u%d", code)
}
