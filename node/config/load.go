package config

import (
	"io"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"

	"tweetstamp-node/types"
)

const envPrefix = "STAMP"

// FromReader loads config from a reader instance, layering STAMP_* env
// overrides on top.
func FromReader(reader io.Reader, def *Node) (*Node, error) {
	cfg := def
	_, err := toml.NewDecoder(reader).Decode(cfg)
	if err != nil {
		return nil, types.Wrap(types.ErrDecodeConfigFailed, err)
	}

	err = envconfig.Process(envPrefix, cfg)
	if err != nil {
		return nil, types.Wrapf(types.ErrInvalidConfig, "processing env var overrides: %v", err)
	}

	return cfg, nil
}

func FromFile(path string, def *Node) (*Node, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// no file yet, defaults + env only
			if err = envconfig.Process(envPrefix, def); err != nil {
				return nil, types.Wrapf(types.ErrInvalidConfig, "processing env var overrides: %v", err)
			}
			return def, nil
		}
		return nil, types.Wrap(types.ErrDecodeConfigFailed, err)
	}
	defer file.Close()
	return FromReader(file, def)
}

// Validate rejects configs the node cannot start with.
func (c *Node) Validate() error {
	if len(c.Chain.Contracts) == 0 {
		return types.Wrapf(types.ErrInvalidConfig, "chain.contracts must list at least the primary contract")
	}
	if c.Chain.Network != "mainnet" && c.Chain.Network != "testnet" {
		return types.Wrapf(types.ErrInvalidConfig, "chain.network must be mainnet or testnet, got %q", c.Chain.Network)
	}
	if c.Db.MongoUri == "" || c.Db.Database == "" {
		return types.Wrapf(types.ErrInvalidConfig, "db.mongouri and db.database are required")
	}
	if c.Api.JwtSecret == "" {
		return types.Wrapf(types.ErrInvalidConfig, "api.jwtsecret is required")
	}
	if c.Cache.TtlSeconds <= 0 {
		return types.Wrapf(types.ErrInvalidConfig, "cache.ttlseconds must be positive")
	}
	return nil
}
