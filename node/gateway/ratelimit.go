package gateway

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

const walletHeader = "X-Wallet-Address"

// maxIdentifierPeek bounds how much of a body the extractor will read.
const maxIdentifierPeek = 4096

// rateLimiter builds the admission-control middleware. Quotas are keyed by
// the caller's wallet address when one can be found in the request, with
// the client IP as the fallback identity.
func rateLimiter(limit float64, burst int) echo.MiddlewareFunc {
	if burst <= 0 {
		burst = int(limit)
	}
	return middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:  rate.Limit(limit),
			Burst: burst,
		}),
		IdentifierExtractor: func(ec echo.Context) (string, error) {
			return callerIdentity(ec), nil
		},
		ErrorHandler: func(ec echo.Context, err error) error {
			return fail(ec, http.StatusForbidden, "could not identify the caller")
		},
		DenyHandler: func(ec echo.Context, identifier string, err error) error {
			return fail(ec, http.StatusTooManyRequests, "rate limit exceeded")
		},
	})
}

// callerIdentity looks for a wallet address in the query, path, header and
// body, in that order, falling back to the remote IP.
func callerIdentity(ec echo.Context) string {
	if w := ec.QueryParam("wallet"); w != "" {
		return w
	}
	if w := ec.Param("author"); w != "" {
		return w
	}
	if w := ec.Request().Header.Get(walletHeader); w != "" {
		return w
	}
	if w := walletFromBody(ec); w != "" {
		return w
	}
	return ec.RealIP()
}

// walletFromBody peeks at a JSON body for a wallet field and puts the bytes
// back so binding downstream still works.
func walletFromBody(ec echo.Context) string {
	req := ec.Request()
	if req.Body == nil {
		return ""
	}
	peek, err := io.ReadAll(io.LimitReader(req.Body, maxIdentifierPeek))
	rest, _ := io.ReadAll(req.Body)
	req.Body = io.NopCloser(io.MultiReader(bytes.NewReader(peek), bytes.NewReader(rest)))
	if err != nil {
		return ""
	}

	var probe struct {
		Wallet       string `json:"wallet"`
		AuthorWallet string `json:"authorWallet"`
	}
	if err := json.Unmarshal(peek, &probe); err != nil {
		return ""
	}
	if probe.Wallet != "" {
		return probe.Wallet
	}
	return probe.AuthorWallet
}
