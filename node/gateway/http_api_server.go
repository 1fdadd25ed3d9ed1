package gateway

import (
	"context"
	"strings"
	"time"

	logging "github.com/ipfs/go-log/v2"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"tweetstamp-node/chain"
	"tweetstamp-node/node/config"
	"tweetstamp-node/node/verifier"
	"tweetstamp-node/store"
)

var log = logging.Logger("gateway")

// HttpApiServer serves the public notarization API. All business decisions
// live in the resolver, gateway and store; handlers only translate between
// HTTP and those surfaces.
type HttpApiServer struct {
	Cfg      *config.Api
	Server   *echo.Echo
	resolver *verifier.Resolver
	chainSvc chain.ChainSvcApi
	regStore store.RegistrationStore
	sessions store.SessionStore
	ipfs     *store.IpfsBackend
	network  string
	primary  chain.ContractVersion
	sender   string
}

type ApiServerParams struct {
	Cfg      *config.Api
	Resolver *verifier.Resolver
	ChainSvc chain.ChainSvcApi
	RegStore store.RegistrationStore
	Sessions store.SessionStore
	Ipfs     *store.IpfsBackend
	Network  string
	// SenderKey enables direct chain submission from the register endpoint.
	SenderKey string
}

func StartHttpApiServer(p ApiServerParams) (*HttpApiServer, error) {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	if p.Cfg.EnableRequestLog {
		e.Use(middleware.Logger())
	}
	if p.Cfg.RateLimit > 0 {
		e.Use(rateLimiter(p.Cfg.RateLimit, p.Cfg.RateLimitBurst))
	}

	s := &HttpApiServer{
		Cfg:      p.Cfg,
		Server:   e,
		resolver: p.Resolver,
		chainSvc: p.ChainSvc,
		regStore: p.RegStore,
		sessions: p.Sessions,
		ipfs:     p.Ipfs,
		network:  p.Network,
		primary:  p.ChainSvc.Versions()[0],
		sender:   p.SenderKey,
	}

	v1 := e.Group("/api/v1")
	v1.POST("/verify", s.handleVerify)
	v1.GET("/verify/:hash", s.handleQuickCheck)
	v1.POST("/verify/batch", s.handleVerifyBatch)
	v1.GET("/registrations/:author", s.handleRegistrationsByAuthor)
	v1.GET("/stats", s.handleStats)
	v1.GET("/snapshot/:cid", s.handleSnapshot)
	v1.POST("/auth/challenge", s.handleAuthChallenge)
	v1.POST("/auth/session", s.handleAuthSession)

	protected := v1.Group("", s.requireSession)
	protected.POST("/register", s.handleRegister)
	protected.PUT("/register/:hash/confirm", s.handleRegisterConfirm)
	protected.POST("/register/:hash/fail", s.handleRegisterFail)

	go func() {
		err := e.Start(p.Cfg.ListenAddress)
		if err != nil {
			if strings.Contains(err.Error(), "Server closed") {
				log.Info("stopping http api server...")
			} else {
				log.Error(err.Error())
			}
		}
	}()
	log.Infof("http api server listening on %s", p.Cfg.ListenAddress)
	return s, nil
}

func (s *HttpApiServer) Stop(ctx context.Context) error {
	return s.Server.Shutdown(ctx)
}

// ApiResponse is the envelope every route answers with.
type ApiResponse struct {
	Success  bool        `json:"success"`
	Verified bool        `json:"verified,omitempty"`
	Message  string      `json:"message,omitempty"`
	Data     interface{} `json:"data,omitempty"`
	Results  interface{} `json:"results,omitempty"`
	Error    string      `json:"error,omitempty"`
}

func fail(ec echo.Context, code int, msg string) error {
	return ec.JSON(code, &ApiResponse{Success: false, Error: msg})
}

// requestTimeout bounds one request's downstream calls.
const requestTimeout = 30 * time.Second

func requestCtx(ec echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ec.Request().Context(), requestTimeout)
}
