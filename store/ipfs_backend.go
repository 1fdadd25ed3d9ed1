package store

import (
	"fmt"
	"io"
	"strings"

	shell "github.com/ipfs/go-ipfs-api"
	"github.com/ipfs/go-cid"

	"tweetstamp-node/types"
)

// IpfsBackend pins content snapshots so a registration can carry a
// content-addressed pointer alongside its chain record.
type IpfsBackend struct {
	ipfsAddress string
	gatewayUrl  string
	ipfsApi     *shell.Shell
}

func NewIpfsBackend(connectionString string, gatewayUrl string) (*IpfsBackend, error) {
	var conn string
	if strings.HasPrefix(connectionString, "ipfs+http") {
		conn = strings.Replace(connectionString, "ipfs+http", "http", 1)
	} else if strings.HasPrefix(connectionString, "ipfs+https") {
		conn = strings.Replace(connectionString, "ipfs+https", "https", 1)
	} else {
		return nil, types.Wrapf(types.ErrIpfsBackendFailed, "unsupported ipfs connection protocol")
	}

	return &IpfsBackend{
		ipfsAddress: conn,
		gatewayUrl:  strings.TrimSuffix(gatewayUrl, "/"),
	}, nil
}

func (b *IpfsBackend) Id() string {
	return fmt.Sprintf("ipfs-%s", b.ipfsAddress)
}

func (b *IpfsBackend) Open() error {
	b.ipfsApi = shell.NewShell(b.ipfsAddress)
	return nil
}

func (b *IpfsBackend) Close() error {
	return nil
}

// Store pins the snapshot and returns the pointer stored on the
// registration record.
func (b *IpfsBackend) Store(reader io.Reader) (*types.StoragePointer, error) {
	hash, err := b.ipfsApi.Add(reader, shell.Pin(true), shell.CidVersion(1))
	if err != nil {
		return nil, types.Wrap(types.ErrIpfsBackendFailed, err)
	}
	log.Debugf("%s stored snapshot %s", b.Id(), hash)
	return &types.StoragePointer{
		Cid:        hash,
		GatewayUrl: fmt.Sprintf("%s/ipfs/%s", b.gatewayUrl, hash),
	}, nil
}

func (b *IpfsBackend) Get(c cid.Cid) (io.ReadCloser, error) {
	rc, err := b.ipfsApi.Cat(c.String())
	if err != nil {
		return nil, types.Wrap(types.ErrIpfsBackendFailed, err)
	}
	return rc, nil
}
