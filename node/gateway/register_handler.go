package gateway

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"
	"github.com/labstack/echo/v4"

	"tweetstamp-node/types"
	"tweetstamp-node/utils"
)

const (
	defaultContentType = "text"
	previewLen         = 100
	defaultAuthorLimit = 50
)

type registerRequest struct {
	TweetContent  string `json:"tweetContent"`
	BnsName       string `json:"bnsName,omitempty"`
	TweetUrl      string `json:"tweetUrl,omitempty"`
	TwitterHandle string `json:"twitterHandle,omitempty"`
	ContentType   string `json:"contentType,omitempty"`
	// Submit asks the server to broadcast the registration itself instead
	// of handing the hash back for a wallet-signed flow.
	Submit bool `json:"submit,omitempty"`
}

func (s *HttpApiServer) handleRegister(ec echo.Context) error {
	var req registerRequest
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}
	content := req.TweetContent
	if strings.TrimSpace(content) == "" {
		return fail(ec, http.StatusBadRequest, "tweetContent is required")
	}
	if s.Cfg.ContentLimit > 0 && len(content) > s.Cfg.ContentLimit {
		return fail(ec, http.StatusRequestEntityTooLarge, types.ErrContentTooLarge.Error())
	}
	contentType := req.ContentType
	if contentType == "" {
		contentType = defaultContentType
	}
	wallet := sessionWallet(ec)

	normalized := utils.NormalizeContent(content)
	hashBytes := utils.HashContent(content)
	hashHex := utils.EncodeHashHex(hashBytes[:])

	ctx, cancel := requestCtx(ec)
	defer cancel()

	if _, err := s.regStore.FindByHash(ctx, hashHex); err == nil {
		return fail(ec, http.StatusConflict, types.ErrDuplicateHash.Error())
	} else if !types.ErrRecordNotFound.Is(err) {
		return fail(ec, http.StatusInternalServerError, "registration store unavailable")
	}

	reg := &types.Registration{
		ContentHash:    hashHex,
		AuthorWallet:   wallet,
		ChainStatus:    types.ChainStatusPending,
		BnsName:        req.BnsName,
		ContentPreview: utils.Preview(normalized, previewLen),
		ContentType:    contentType,
		TweetUrl:       req.TweetUrl,
		TwitterHandle:  req.TwitterHandle,
		CreatedAt:      time.Now().UTC(),
	}
	if req.BnsName != "" {
		reg.BnsStatus = types.BindingValid
	}

	if s.ipfs != nil {
		pointer, err := s.ipfs.Store(strings.NewReader(normalized))
		if err != nil {
			// the snapshot is best-effort, registration proceeds without it
			log.Warnf("ipfs snapshot for %s failed: %v", hashHex, err)
		} else {
			reg.Storage = pointer
		}
	}

	var txId string
	if req.Submit {
		if s.sender == "" {
			return fail(ec, http.StatusBadRequest, "server-side submission is not enabled")
		}
		var err error
		txId, err = s.chainSvc.RegisterContent(ctx, hashBytes[:], contentType, s.sender)
		if err != nil {
			return fail(ec, http.StatusBadGateway, err.Error())
		}
		reg.TxId = txId
	}

	if err := s.regStore.Insert(ctx, reg); err != nil {
		if types.ErrDuplicateHash.Is(err) {
			return fail(ec, http.StatusConflict, types.ErrDuplicateHash.Error())
		}
		return fail(ec, http.StatusInternalServerError, "failed to persist the registration")
	}

	data := map[string]interface{}{
		"hash":            hashHex,
		"network":         s.network,
		"contractAddress": s.primary.Address,
		"contractName":    s.primary.Name,
		"chainStatus":     reg.ChainStatus,
	}
	if txId != "" {
		data["txId"] = txId
	}
	if reg.Storage != nil {
		data["storage"] = reg.Storage
	}
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Message: "registration pending chain confirmation",
		Data:    data,
	})
}

type confirmRequest struct {
	TxId           string `json:"txId"`
	BlockHeight    uint64 `json:"blockHeight"`
	RegistrationId uint64 `json:"registrationId"`
}

func (s *HttpApiServer) handleRegisterConfirm(ec echo.Context) error {
	hash, err := normalizedHashParam(ec)
	if err != nil {
		return fail(ec, http.StatusBadRequest, err.Error())
	}
	var req confirmRequest
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}
	if req.TxId == "" || req.BlockHeight == 0 {
		return fail(ec, http.StatusBadRequest, "txId and blockHeight are required")
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	if err := s.regStore.ConfirmChain(ctx, hash, req.TxId, req.BlockHeight, req.RegistrationId); err != nil {
		if types.ErrRecordNotFound.Is(err) {
			return fail(ec, http.StatusNotFound, err.Error())
		}
		if types.ErrChainStatusTerminal.Is(err) {
			return fail(ec, http.StatusConflict, err.Error())
		}
		return fail(ec, http.StatusInternalServerError, "failed to confirm the registration")
	}
	// a cached negative written while the tx was in flight is stale now
	s.resolver.Invalidate(ctx, hash)

	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Message: "registration confirmed",
		Data:    map[string]interface{}{"hash": hash, "chainStatus": types.ChainStatusConfirmed},
	})
}

type failRequest struct {
	TxId string `json:"txId,omitempty"`
}

func (s *HttpApiServer) handleRegisterFail(ec echo.Context) error {
	hash, err := normalizedHashParam(ec)
	if err != nil {
		return fail(ec, http.StatusBadRequest, err.Error())
	}
	var req failRequest
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	if err := s.regStore.FailChain(ctx, hash, req.TxId); err != nil {
		if types.ErrRecordNotFound.Is(err) {
			return fail(ec, http.StatusNotFound, err.Error())
		}
		if types.ErrChainStatusTerminal.Is(err) {
			return fail(ec, http.StatusConflict, err.Error())
		}
		return fail(ec, http.StatusInternalServerError, "failed to mark the registration")
	}
	s.resolver.Invalidate(ctx, hash)

	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Message: "registration marked failed",
		Data:    map[string]interface{}{"hash": hash, "chainStatus": types.ChainStatusFailed},
	})
}

func (s *HttpApiServer) handleRegistrationsByAuthor(ec echo.Context) error {
	author := ec.Param("author")
	if author == "" {
		return fail(ec, http.StatusBadRequest, "author is required")
	}
	limit := defaultAuthorLimit
	if raw := ec.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	regs, err := s.regStore.FindByAuthor(ctx, author, limit)
	if err != nil {
		return fail(ec, http.StatusInternalServerError, "registration store unavailable")
	}
	for _, reg := range regs {
		go s.bumpViewCount(reg.ContentHash)
	}
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Data:    map[string]interface{}{"author": author, "registrations": regs, "count": len(regs)},
	})
}

// handleSnapshot streams back the pinned snapshot a registration's storage
// pointer refers to.
func (s *HttpApiServer) handleSnapshot(ec echo.Context) error {
	if s.ipfs == nil {
		return fail(ec, http.StatusNotFound, "snapshot storage is not enabled")
	}
	c, err := cid.Decode(ec.Param("cid"))
	if err != nil {
		return fail(ec, http.StatusBadRequest, "malformed snapshot cid")
	}
	rc, err := s.ipfs.Get(c)
	if err != nil {
		return fail(ec, http.StatusBadGateway, "failed to fetch the snapshot")
	}
	defer rc.Close()
	return ec.Stream(http.StatusOK, echo.MIMETextPlainCharsetUTF8, rc)
}

func (s *HttpApiServer) bumpViewCount(hash string) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.regStore.IncViewCount(ctx, hash); err != nil {
		log.Debugf("view counter for %s not bumped: %v", hash, err)
	}
}

func normalizedHashParam(ec echo.Context) (string, error) {
	raw, err := utils.DecodeHashHex(ec.Param("hash"))
	if err != nil {
		return "", err
	}
	return utils.EncodeHashHex(raw), nil
}
