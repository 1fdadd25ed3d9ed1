package node

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"tweetstamp-node/bns"
	"tweetstamp-node/chain"
	"tweetstamp-node/node/cache"
	"tweetstamp-node/node/config"
	"tweetstamp-node/node/gateway"
	"tweetstamp-node/node/repo"
	"tweetstamp-node/node/verifier"
	"tweetstamp-node/store"
)

var log = logging.Logger("node")

type StopFunc func(context.Context) error

// TweetstampNode wires the record store, cache backend, chain gateway,
// resolver, bns validator and the http api into one process.
type TweetstampNode struct {
	ctx       context.Context
	cfg       *config.Node
	repo      *repo.Repo
	store     *store.MongoStore
	chainSvc  *chain.ChainSvc
	resolver  *verifier.Resolver
	validator *bns.Validator
	apiServer *gateway.HttpApiServer
	stopFuncs []StopFunc
}

func NewTweetstampNode(ctx context.Context, r *repo.Repo) (*TweetstampNode, error) {
	cfg, err := r.Config()
	if err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}

	mongoStore, err := store.NewMongoStore(ctx, cfg.Db.MongoUri, cfg.Db.Database)
	if err != nil {
		return nil, err
	}
	var stopFuncs []StopFunc
	stopFuncs = append(stopFuncs, mongoStore.Disconnect)

	cacheSvc, err := cache.NewCacheSvc(cfg.Cache, mongoStore.Database())
	if err != nil {
		return nil, err
	}

	versions := make([]chain.ContractVersion, 0, len(cfg.Chain.Contracts))
	for _, id := range cfg.Chain.Contracts {
		addr, name, err := chain.SplitContractId(id)
		if err != nil {
			return nil, err
		}
		versions = append(versions, chain.ContractVersion{Address: addr, Name: name})
	}
	chainSvc, err := chain.NewChainSvc(cfg.Chain.Remote, cfg.Chain.Network, versions, cfg.Chain.TxFee)
	if err != nil {
		return nil, err
	}

	resolver := verifier.NewResolver(
		mongoStore, cacheSvc, chainSvc,
		cfg.Chain.Network,
		time.Duration(cfg.Cache.TtlSeconds)*time.Second,
	)

	n := &TweetstampNode{
		ctx:       ctx,
		cfg:       cfg,
		repo:      r,
		store:     mongoStore,
		chainSvc:  chainSvc,
		resolver:  resolver,
		stopFuncs: stopFuncs,
	}

	if cfg.Bns.RegistryEndpoint != "" {
		n.validator = bns.NewValidator(
			mongoStore,
			bns.NewClient(cfg.Bns.RegistryEndpoint),
			time.Duration(cfg.Bns.SweepIntervalHrs)*time.Hour,
			time.Duration(cfg.Bns.WarmupSeconds)*time.Second,
			cfg.Bns.BatchSize,
			time.Duration(cfg.Bns.RequestDelayMs)*time.Millisecond,
		)
		n.validator.Start(ctx)
		n.stopFuncs = append(n.stopFuncs, func(_ context.Context) error {
			n.validator.Stop()
			return nil
		})
	} else {
		log.Warn("no bns registry endpoint configured, staleness sweeps disabled")
	}

	var ipfs *store.IpfsBackend
	if cfg.Ipfs.Enable {
		ipfs, err = store.NewIpfsBackend(cfg.Ipfs.Conn, cfg.Ipfs.GatewayUrl)
		if err != nil {
			return nil, err
		}
		if err = ipfs.Open(); err != nil {
			return nil, err
		}
		n.stopFuncs = append(n.stopFuncs, func(_ context.Context) error {
			return ipfs.Close()
		})
	}

	n.apiServer, err = gateway.StartHttpApiServer(gateway.ApiServerParams{
		Cfg:       &cfg.Api,
		Resolver:  resolver,
		ChainSvc:  chainSvc,
		RegStore:  mongoStore,
		Sessions:  store.NewMongoSessionStore(mongoStore.Database()),
		Ipfs:      ipfs,
		Network:   cfg.Chain.Network,
		SenderKey: cfg.Chain.SenderKey,
	})
	if err != nil {
		return nil, err
	}
	n.stopFuncs = append(n.stopFuncs, n.apiServer.Stop)

	if cfg.Chain.SenderKey != "" {
		if addr, err := chain.SenderAddress(cfg.Chain.SenderKey, cfg.Chain.Network); err == nil {
			log.Infof("server-side submission enabled, sender %s", addr)
		}
	}
	return n, nil
}

func (n *TweetstampNode) HealthCheck(ctx context.Context) error {
	return n.store.HealthCheck(ctx)
}

// RunBnsSweep triggers one synchronous validation sweep.
func (n *TweetstampNode) RunBnsSweep(ctx context.Context) (*bns.SweepReport, error) {
	if n.validator == nil {
		return nil, xerrors.New("bns validator is not configured")
	}
	return n.validator.RunSweep(ctx)
}

// Stop tears components down in reverse start order.
func (n *TweetstampNode) Stop(ctx context.Context) error {
	for i := len(n.stopFuncs) - 1; i >= 0; i-- {
		if err := n.stopFuncs[i](ctx); err != nil {
			log.Warnf("stop component: %v", err)
		}
	}
	return nil
}
