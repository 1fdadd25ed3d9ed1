package gateway

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"tweetstamp-node/node/verifier"
	"tweetstamp-node/types"
)

func (s *HttpApiServer) handleVerify(ec echo.Context) error {
	var req verifier.Request
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	out, err := s.resolver.VerifyContent(ctx, req)
	if err != nil {
		return fail(ec, http.StatusBadRequest, err.Error())
	}
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success:  true,
		Verified: out.Verified,
		Message:  out.Message,
		Data:     out.Data,
	})
}

func (s *HttpApiServer) handleQuickCheck(ec echo.Context) error {
	hash := ec.Param("hash")

	ctx, cancel := requestCtx(ec)
	defer cancel()

	exists, err := s.resolver.QuickCheck(ctx, hash)
	if err != nil {
		return fail(ec, http.StatusBadRequest, err.Error())
	}
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success:  true,
		Verified: exists,
		Data: map[string]interface{}{
			"hash":   hash,
			"exists": exists,
		},
	})
}

type batchRequest struct {
	Items []verifier.Request `json:"items"`
}

func (s *HttpApiServer) handleVerifyBatch(ec echo.Context) error {
	var req batchRequest
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}
	if len(req.Items) == 0 {
		return fail(ec, http.StatusBadRequest, "items must not be empty")
	}
	if len(req.Items) > verifier.BatchLimit {
		return fail(ec, http.StatusBadRequest, types.ErrBatchTooLarge.Error())
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	results := s.resolver.VerifyBatch(ctx, req.Items)
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Message: "batch processed",
		Results: results,
	})
}

func (s *HttpApiServer) handleStats(ec echo.Context) error {
	ctx, cancel := requestCtx(ec)
	defer cancel()

	storeStats, err := s.regStore.Stats(ctx)
	if err != nil {
		log.Warnf("store stats unavailable: %v", err)
	}
	// nil means the contract endpoint could not answer; the response still
	// carries whatever side succeeded
	chainStats := s.chainSvc.GetContractStats(ctx)

	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"store":    storeStats,
			"contract": chainStats,
		},
	})
}
