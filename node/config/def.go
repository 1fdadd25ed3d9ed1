package config

import (
	"bytes"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// notarization node config
type Node struct {
	Api   Api
	Chain Chain
	Db    Db
	Cache Cache
	Bns   Bns
	Ipfs  Ipfs
}

type Api struct {
	ListenAddress    string
	EnableRequestLog bool
	ContentLimit     int
	JwtSecret        string
	SessionTtlHours  int
	// requests per second / burst per caller identity
	RateLimit      float64
	RateLimitBurst int
}

type Chain struct {
	Remote  string
	Network string
	// contract coordinates newest-first, "ADDR.name"; only the first is a
	// registration target, the rest are historical verification fallbacks
	Contracts []string
	TxFee     uint64
	// server-side signing key for direct registration; leave empty to only
	// support the wallet flow
	SenderKey string
}

type Db struct {
	MongoUri string
	Database string
}

type Cache struct {
	Backend       string // mongo | memory | redis | memcached
	Capacity      int
	TtlSeconds    int
	RedisConn     string
	RedisPassword string
	RedisPoolSize int
	MemcachedConn string
}

type Bns struct {
	RegistryEndpoint string
	SweepIntervalHrs int
	WarmupSeconds    int
	BatchSize        int
	RequestDelayMs   int
}

type Ipfs struct {
	Conn       string
	GatewayUrl string
	Enable     bool
}

func DefaultNode() *Node {
	return &Node{
		Api: Api{
			ListenAddress:   "127.0.0.1:8030",
			ContentLimit:    8192,
			SessionTtlHours: 24,
			RateLimit:       10,
			RateLimitBurst:  30,
		},
		Chain: Chain{
			Remote:  "http://localhost:20443",
			Network: "testnet",
			TxFee:   3000,
		},
		Db: Db{
			MongoUri: "mongodb://localhost:27017",
			Database: "tweetstamp",
		},
		Cache: Cache{
			Backend:    "mongo",
			Capacity:   1000,
			TtlSeconds: 3600,
		},
		Bns: Bns{
			RegistryEndpoint: "https://api.hiro.so",
			SweepIntervalHrs: 24,
			WarmupSeconds:    30,
			BatchSize:        100,
			RequestDelayMs:   100,
		},
		Ipfs: Ipfs{
			Conn:       "ipfs+http://127.0.0.1:5001",
			GatewayUrl: "https://ipfs.io",
		},
	}
}

func NodeBytes(cfg interface{}) ([]byte, error) {
	buf := new(bytes.Buffer)
	e := toml.NewEncoder(buf)
	if err := e.Encode(cfg); err != nil {
		return nil, xerrors.Errorf("encoding node config: %w", err)
	}

	return buf.Bytes(), nil
}
