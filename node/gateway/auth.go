package gateway

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	uuid "github.com/satori/go.uuid"

	"tweetstamp-node/chain"
	"tweetstamp-node/types"
)

const (
	challengeTtl      = 5 * time.Minute
	defaultSessionTtl = 24 * time.Hour

	ctxWalletKey = "wallet"
)

type jwtClaims struct {
	Wallet string `json:"wallet"`
	jwt.StandardClaims
}

func (s *HttpApiServer) sessionTtl() time.Duration {
	if s.Cfg.SessionTtlHours > 0 {
		return time.Duration(s.Cfg.SessionTtlHours) * time.Hour
	}
	return defaultSessionTtl
}

type challengeRequest struct {
	Wallet string `json:"wallet"`
}

// handleAuthChallenge issues a one-time challenge the wallet must sign.
func (s *HttpApiServer) handleAuthChallenge(ec echo.Context) error {
	var req challengeRequest
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}
	wallet := strings.TrimSpace(req.Wallet)
	if wallet == "" {
		return fail(ec, http.StatusBadRequest, "wallet is required")
	}
	if _, err := chain.DecodeC32Address(wallet); err != nil {
		return fail(ec, http.StatusBadRequest, "invalid wallet address")
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	challenge := fmt.Sprintf("tweetstamp auth %s %s", wallet, uuid.NewV4().String())
	sess, err := s.sessions.Create(ctx, wallet, challenge, challengeTtl)
	if err != nil {
		return fail(ec, http.StatusInternalServerError, types.ErrChallengeFailed.Error())
	}
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"challengeId": sess.Id,
			"challenge":   sess.Challenge,
			"expiresAt":   sess.ExpiresAt,
		},
	})
}

type sessionRequest struct {
	ChallengeId string `json:"challengeId"`
	Signature   string `json:"signature"`
}

// handleAuthSession exchanges a signed challenge for a JWT. The signature
// must recover to the wallet the challenge was issued for.
func (s *HttpApiServer) handleAuthSession(ec echo.Context) error {
	var req sessionRequest
	if err := ec.Bind(&req); err != nil {
		return fail(ec, http.StatusBadRequest, "malformed request body")
	}
	if req.ChallengeId == "" || req.Signature == "" {
		return fail(ec, http.StatusBadRequest, "challengeId and signature are required")
	}

	ctx, cancel := requestCtx(ec)
	defer cancel()

	sess, err := s.sessions.Get(ctx, req.ChallengeId)
	if err != nil {
		return fail(ec, http.StatusUnauthorized, types.ErrSessionNotFound.Error())
	}

	signer, err := chain.RecoverSignerAddress(s.network, sess.Challenge, req.Signature)
	if err != nil || signer != sess.Wallet {
		return fail(ec, http.StatusUnauthorized, types.ErrUnauthorized.Error())
	}
	// challenges are single use
	if err = s.sessions.Delete(ctx, sess.Id); err != nil {
		log.Warnf("stale challenge %s not deleted: %v", sess.Id, err)
	}

	token, expiresAt, err := s.generateToken(sess.Wallet)
	if err != nil {
		return fail(ec, http.StatusInternalServerError, "failed to issue the session token")
	}
	return ec.JSON(http.StatusOK, &ApiResponse{
		Success: true,
		Data: map[string]interface{}{
			"token":     token,
			"wallet":    sess.Wallet,
			"expiresAt": expiresAt,
		},
	})
}

func (s *HttpApiServer) generateToken(wallet string) (string, time.Time, error) {
	expiresAt := time.Now().Add(s.sessionTtl())
	claims := &jwtClaims{
		wallet,
		jwt.StandardClaims{
			ExpiresAt: expiresAt.Unix(),
			IssuedAt:  time.Now().Unix(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.Cfg.JwtSecret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// requireSession guards the write routes. The wallet from the verified
// token is what the handlers attribute registrations to.
func (s *HttpApiServer) requireSession(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ec echo.Context) error {
		header := ec.Request().Header.Get(echo.HeaderAuthorization)
		if !strings.HasPrefix(header, "Bearer ") {
			return fail(ec, http.StatusUnauthorized, types.ErrUnauthorized.Error())
		}
		raw := strings.TrimPrefix(header, "Bearer ")

		claims := &jwtClaims{}
		token, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
			}
			return []byte(s.Cfg.JwtSecret), nil
		})
		if err != nil || !token.Valid || claims.Wallet == "" {
			return fail(ec, http.StatusUnauthorized, types.ErrUnauthorized.Error())
		}
		ec.Set(ctxWalletKey, claims.Wallet)
		return next(ec)
	}
}

func sessionWallet(ec echo.Context) string {
	if w, ok := ec.Get(ctxWalletKey).(string); ok {
		return w
	}
	return ""
}
