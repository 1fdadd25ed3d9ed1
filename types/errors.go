package types

import "cosmossdk.io/errors"

var (
	ModuleChain = "chain"
	ModuleStore = "store"
	ModuleCache = "cache"
	ModuleApi   = "api"
	ModuleBns   = "bns"
	ModuleNode  = "node"

	ErrCreateChainServiceFailed = errors.Register(ModuleChain, 10000, "failed to create the chain service")
	ErrReadOnlyCallFailed       = errors.Register(ModuleChain, 10001, "read-only contract call failed")
	ErrDecodeClarityFailed      = errors.Register(ModuleChain, 10002, "failed to decode the clarity value")
	ErrEncodeClarityFailed      = errors.Register(ModuleChain, 10003, "failed to encode the clarity value")
	ErrTxBuildFailed            = errors.Register(ModuleChain, 10004, "failed to build the contract call tx")
	ErrTxBroadcastFailed        = errors.Register(ModuleChain, 10005, "failed to broadcast the contract call tx")
	ErrInvalidAddress           = errors.Register(ModuleChain, 10006, "invalid chain address")
	ErrInvalidHash              = errors.Register(ModuleChain, 10007, "invalid content hash")
	ErrAccountQueryFailed       = errors.Register(ModuleChain, 10008, "failed to query the sender account")

	ErrConnectStoreFailed  = errors.Register(ModuleStore, 20000, "failed to connect the record store")
	ErrRecordNotFound      = errors.Register(ModuleStore, 20001, "record not found")
	ErrDuplicateHash       = errors.Register(ModuleStore, 20002, "content hash already registered")
	ErrStoreQueryFailed    = errors.Register(ModuleStore, 20003, "failed to query the record store")
	ErrStoreWriteFailed    = errors.Register(ModuleStore, 20004, "failed to write the record store")
	ErrIpfsBackendFailed   = errors.Register(ModuleStore, 20005, "ipfs backend failure")
	ErrSessionNotFound     = errors.Register(ModuleStore, 20006, "session not found or expired")
	ErrChainStatusTerminal = errors.Register(ModuleStore, 20007, "chain status is terminal")

	ErrCacheBackendFailed = errors.Register(ModuleCache, 30000, "verification cache backend failure")
	ErrInvalidCacheEntry  = errors.Register(ModuleCache, 30001, "structurally invalid cache entry")

	ErrInvalidRequest    = errors.Register(ModuleApi, 40000, "invalid request")
	ErrContentTooLarge   = errors.Register(ModuleApi, 40001, "content exceeds the configured limit")
	ErrBatchTooLarge     = errors.Register(ModuleApi, 40002, "batch size exceeds the limit")
	ErrUnauthorized      = errors.Register(ModuleApi, 40003, "missing or invalid session token")
	ErrChallengeFailed   = errors.Register(ModuleApi, 40004, "failed to issue the auth challenge")
	ErrStartServerFailed = errors.Register(ModuleApi, 40005, "failed to start the api server")
	ErrStopServerFailed  = errors.Register(ModuleApi, 40006, "failed to stop the api server")

	ErrRegistryQueryFailed = errors.Register(ModuleBns, 50000, "failed to query the name registry")
	ErrSweepFailed         = errors.Register(ModuleBns, 50001, "bns validation sweep failed")

	ErrEncodeConfigFailed = errors.Register(ModuleNode, 60000, "failed to encode the config")
	ErrDecodeConfigFailed = errors.Register(ModuleNode, 60001, "failed to decode the config")
	ErrInvalidConfig      = errors.Register(ModuleNode, 60002, "invalid config")
	ErrOpenRepoFailed     = errors.Register(ModuleNode, 60003, "failed to open the node repo")
)

func Wrap(err0 error, err1 error) error {
	return errors.Wrapf(err0, ", due to %v", err1)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}
