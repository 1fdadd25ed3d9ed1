package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/ecdsa"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"tweetstamp-node/chain"
)

func testKeyAndAddress(t *testing.T) (*secp256k1.PrivateKey, string) {
	t.Helper()
	seed := sha256.Sum256([]byte("gateway auth test key"))
	priv := secp256k1.PrivKeyFromBytes(seed[:])
	addr, err := chain.SenderAddress(hex.EncodeToString(seed[:]), "testnet")
	require.NoError(t, err)
	return priv, addr
}

func signChallenge(priv *secp256k1.PrivateKey, challenge string) string {
	digest := sha256.Sum256([]byte(challenge))
	return hex.EncodeToString(ecdsa.SignCompact(priv, digest[:], true))
}

func TestAuthChallengeRequiresValidWallet(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.request(t, http.MethodPost, "/api/v1/auth/challenge",
		`{"wallet":"not-an-address"}`, h.server.handleAuthChallenge, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAuthFlowIssuesUsableToken(t *testing.T) {
	h := newHarness(t)
	priv, addr := testKeyAndAddress(t)

	rec, resp := h.request(t, http.MethodPost, "/api/v1/auth/challenge",
		`{"wallet":"`+addr+`"}`, h.server.handleAuthChallenge, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})
	challengeId := data["challengeId"].(string)
	challenge := data["challenge"].(string)
	require.Contains(t, challenge, addr)

	body, _ := json.Marshal(map[string]string{
		"challengeId": challengeId,
		"signature":   signChallenge(priv, challenge),
	})
	rec, resp = h.request(t, http.MethodPost, "/api/v1/auth/session",
		string(body), h.server.handleAuthSession, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	token := resp.Data.(map[string]interface{})["token"].(string)
	require.NotEmpty(t, token)

	// the token passes the session guard and carries the wallet
	req := httptest.NewRequest(http.MethodPost, "/api/v1/register", strings.NewReader("{}"))
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	ec := h.server.Server.NewContext(req, httptest.NewRecorder())
	var seenWallet string
	guarded := h.server.requireSession(func(ec echo.Context) error {
		seenWallet = sessionWallet(ec)
		return nil
	})
	require.NoError(t, guarded(ec))
	require.Equal(t, addr, seenWallet)

	// challenges are single use
	rec, _ = h.request(t, http.MethodPost, "/api/v1/auth/session",
		string(body), h.server.handleAuthSession, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthSessionRejectsWrongSigner(t *testing.T) {
	h := newHarness(t)
	_, addr := testKeyAndAddress(t)
	otherSeed := sha256.Sum256([]byte("some other key"))
	other := secp256k1.PrivKeyFromBytes(otherSeed[:])

	rec, resp := h.request(t, http.MethodPost, "/api/v1/auth/challenge",
		`{"wallet":"`+addr+`"}`, h.server.handleAuthChallenge, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := resp.Data.(map[string]interface{})

	body, _ := json.Marshal(map[string]string{
		"challengeId": data["challengeId"].(string),
		"signature":   signChallenge(other, data["challenge"].(string)),
	})
	rec, _ = h.request(t, http.MethodPost, "/api/v1/auth/session",
		string(body), h.server.handleAuthSession, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireSessionRejectsMissingOrBadToken(t *testing.T) {
	h := newHarness(t)
	guarded := h.server.requireSession(func(ec echo.Context) error { return nil })

	for _, header := range []string{"", "Bearer not-a-token", "Basic abc"} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/register", nil)
		if header != "" {
			req.Header.Set(echo.HeaderAuthorization, header)
		}
		rec := httptest.NewRecorder()
		require.NoError(t, guarded(h.server.Server.NewContext(req, rec)))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	}
}
