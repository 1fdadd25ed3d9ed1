package bns

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/sethvargo/go-retry"

	"tweetstamp-node/types"
)

var log = logging.Logger("bns")

const (
	registryTimeout = 10 * time.Second
	registryChain   = "stacks"
)

// Client queries the external name registry for the identity bindings an
// address currently owns.
type Client struct {
	endpoint string
	client   *http.Client
}

func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: registryTimeout},
	}
}

type namesResponse struct {
	Names []string `json:"names"`
}

// NamesOwnedBy returns the names currently owned by the address. A non-2xx
// registry answer reads as an empty list with a logged warning; only
// transport failures surface as errors, after one bounded retry.
func (c *Client) NamesOwnedBy(ctx context.Context, address string) ([]string, error) {
	reqUrl := fmt.Sprintf("%s/v1/addresses/%s/%s/names", c.endpoint, registryChain, url.PathEscape(address))

	var names []string
	backoff := retry.WithMaxRetries(1, retry.NewFibonacci(500*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqUrl, nil)
		if err != nil {
			return err
		}
		resp, err := c.client.Do(req)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			log.Warnf("name registry returned status %d for %s, treating as no names", resp.StatusCode, address)
			names = []string{}
			return nil
		}
		var nr namesResponse
		if err = json.NewDecoder(resp.Body).Decode(&nr); err != nil {
			log.Warnf("name registry returned undecodable body for %s, treating as no names: %v", address, err)
			names = []string{}
			return nil
		}
		if nr.Names == nil {
			nr.Names = []string{}
		}
		names = nr.Names
		return nil
	})
	if err != nil {
		return nil, types.Wrap(types.ErrRegistryQueryFailed, err)
	}
	return names, nil
}
