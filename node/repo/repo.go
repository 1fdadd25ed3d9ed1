package repo

import (
	"os"
	"path/filepath"

	logging "github.com/ipfs/go-log/v2"
	"github.com/mitchellh/go-homedir"
	"golang.org/x/xerrors"

	"tweetstamp-node/node/config"
)

var log = logging.Logger("repo")

var ErrRepoExists = xerrors.New("repo exists")

const fsConfig = "config.toml"

// Repo is the node's on-disk home: a directory holding config.toml. All
// durable state lives in mongo, so there is nothing else to manage here.
type Repo struct {
	path       string
	configPath string
}

func NewRepo(path string) (*Repo, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return nil, err
	}

	return &Repo{
		path:       path,
		configPath: filepath.Join(path, fsConfig),
	}, nil
}

func (r *Repo) Path() string {
	return r.path
}

func (r *Repo) Exists() (bool, error) {
	_, err := os.Stat(r.configPath)
	notexist := os.IsNotExist(err)
	if notexist {
		err = nil
	}
	return !notexist, err
}

func (r *Repo) Init(chainAddress string) error {
	exist, err := r.Exists()
	if err != nil {
		return err
	}
	if exist {
		return ErrRepoExists
	}

	log.Infof("Initializing repo at '%s'", r.path)
	err = os.MkdirAll(r.path, 0755) //nolint: gosec
	if err != nil && !os.IsExist(err) {
		return err
	}

	if err := r.initConfig(chainAddress); err != nil {
		return xerrors.Errorf("init config: %w", err)
	}
	return nil
}

func (r *Repo) Config() (*config.Node, error) {
	return config.FromFile(r.configPath, r.defaultConfig(""))
}

func (r *Repo) initConfig(chainAddress string) error {
	_, err := os.Stat(r.configPath)
	if err == nil {
		// exists
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}

	c, err := os.Create(r.configPath)
	if err != nil {
		return err
	}

	comm, err := config.NodeBytes(r.defaultConfig(chainAddress))
	if err != nil {
		return xerrors.Errorf("load default: %w", err)
	}
	_, err = c.Write(comm)
	if err != nil {
		return xerrors.Errorf("write config: %w", err)
	}

	if err := c.Close(); err != nil {
		return xerrors.Errorf("close config: %w", err)
	}
	return nil
}

func (r *Repo) defaultConfig(chainAddress string) *config.Node {
	def := config.DefaultNode()
	if chainAddress != "" {
		def.Chain.Remote = chainAddress
	}
	return def
}
