package rpc

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultix/core/state"
	"vaultix/crypto"
	"vaultix/host"
	"vaultix/native/escrow"
	"vaultix/rpc/modules"
	"vaultix/storage"
)

const testNetwork = "vaultix-test"

type testEnv struct {
	t         *testing.T
	server    *httptest.Server
	depositor *crypto.PrivateKey
	treasury  *crypto.PrivateKey
	recipient [20]byte
	token     [20]byte
}

func newTestEnv(t *testing.T, limit RateLimit) *testEnv {
	t.Helper()
	depositor, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	treasury, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	env := &testEnv{
		t:         t,
		depositor: depositor,
		treasury:  treasury,
		recipient: crypto.DeriveIdentity("rpc/recipient"),
		token:     crypto.DeriveIdentity("rpc/token"),
	}

	rt := host.NewRuntime(state.NewManager(storage.NewMemDB()), crypto.DeriveIdentity("rpc/holding"))
	_, err = rt.ApplyGenesis(context.Background(), []host.Allocation{
		{Token: env.token, Account: depositor.PubKey().Identity(), Amount: big.NewInt(1_000_000)},
	})
	require.NoError(t, err)

	env.server = httptest.NewServer(NewServer(rt, Options{Network: testNetwork, RateLimit: limit}).Handler())
	t.Cleanup(env.server.Close)
	return env
}

// request builds a request body for method, signing params with each key at
// its current nonce.
func (e *testEnv) request(method string, params interface{}, keys ...*crypto.PrivateKey) []byte {
	e.t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(e.t, err)
	positional := []json.RawMessage{raw}
	if len(keys) > 0 {
		proofs := make([]ProofParam, len(keys))
		for i, key := range keys {
			nonce := e.nonce(key.PubKey().Identity())
			sig, err := crypto.SignProof(key, crypto.CallDigest(testNetwork, method, nonce, raw))
			require.NoError(e.t, err)
			proofs[i] = ProofParam{Nonce: nonce, Signature: "0x" + hex.EncodeToString(sig)}
		}
		encoded, err := json.Marshal(proofs)
		require.NoError(e.t, err)
		positional = append(positional, encoded)
	}
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: method, Params: positional, ID: json.RawMessage("7")})
	require.NoError(e.t, err)
	return body
}

func (e *testEnv) post(body []byte) (int, RPCResponse, map[string]interface{}) {
	e.t.Helper()
	resp, err := http.Post(e.server.URL+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(e.t, err)
	defer resp.Body.Close()

	var decoded RPCResponse
	require.NoError(e.t, json.NewDecoder(resp.Body).Decode(&decoded))
	result, _ := decoded.Result.(map[string]interface{})
	return resp.StatusCode, decoded, result
}

func (e *testEnv) nonce(id [20]byte) uint64 {
	e.t.Helper()
	status, resp, result := e.post(e.request("auth_nonce", map[string]string{"account": crypto.FormatIdentity(id)}))
	require.Equal(e.t, http.StatusOK, status, "%+v", resp.Error)
	return uint64(result["nonce"].(float64))
}

// call signs params with keys and posts the request.
func (e *testEnv) call(method string, params interface{}, keys ...*crypto.PrivateKey) (int, RPCResponse, map[string]interface{}) {
	e.t.Helper()
	return e.post(e.request(method, params, keys...))
}

func TestEscrowLifecycleOverRPC(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	treasuryID := crypto.FormatIdentity(env.treasury.PubKey().Identity())
	depositorID := crypto.FormatIdentity(env.depositor.PubKey().Identity())
	tokenID := crypto.FormatIdentity(env.token)

	status, resp, result := env.call("escrow_initialize", map[string]interface{}{"treasury": treasuryID}, env.treasury)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	require.EqualValues(t, escrow.DefaultFeeBps, result["feeBps"])
	require.EqualValues(t, 7, resp.ID)

	status, resp, result = env.call("escrow_create", map[string]interface{}{
		"id":        1,
		"depositor": depositorID,
		"recipient": crypto.FormatIdentity(env.recipient),
		"token":     tokenID,
		"milestones": []map[string]string{
			{"amount": "10000", "description": "design"},
			{"amount": "5000"},
		},
	}, env.depositor)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	require.Equal(t, "15000", result["totalAmount"])
	require.Equal(t, "active", result["status"])

	status, resp, result = env.call("escrow_releaseMilestone", map[string]interface{}{"id": 1, "index": 0, "token": tokenID}, env.depositor)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	require.Equal(t, "50", result["fee"])
	require.Equal(t, "9950", result["payout"])

	status, resp, _ = env.call("escrow_confirmDelivery", map[string]interface{}{"id": 1, "index": 1, "buyer": depositorID}, env.depositor)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)

	status, resp, result = env.call("escrow_complete", map[string]interface{}{"id": 1}, env.depositor)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	require.Equal(t, "completed", result["status"])

	_, _, result = env.call("escrow_getState", map[string]interface{}{"id": 1})
	require.Equal(t, "completed", result["status"])

	_, _, result = env.call("bank_balance", map[string]interface{}{"token": tokenID, "account": crypto.FormatIdentity(env.recipient)})
	require.Equal(t, "14950", result["balance"])

	_, resp, _ = env.call("escrow_listEvents", map[string]interface{}{"prefix": "escrow."})
	events, ok := resp.Result.([]interface{})
	require.True(t, ok)
	require.Len(t, events, 4)
}

func TestRPCErrorMapping(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	depositorID := crypto.FormatIdentity(env.depositor.PubKey().Identity())

	status, resp, _ := env.call("escrow_get", map[string]interface{}{"id": 99})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, modules.EscrowErrorCode(escrow.CodeEscrowNotFound), resp.Error.Code)
	require.Equal(t, "EscrowNotFound", resp.Error.Data)

	create := map[string]interface{}{
		"id":         2,
		"depositor":  depositorID,
		"recipient":  crypto.FormatIdentity(env.recipient),
		"token":      crypto.FormatIdentity(env.token),
		"milestones": []map[string]string{{"amount": "100"}},
	}
	// Signed by the wrong key.
	status, resp, _ = env.call("escrow_create", create, env.treasury)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	// No proofs at all.
	status, _, _ = env.call("escrow_create", create)
	require.Equal(t, http.StatusUnauthorized, status)

	create["recipient"] = depositorID
	status, resp, _ = env.call("escrow_create", create, env.depositor)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, modules.EscrowErrorCode(escrow.CodeSelfDealing), resp.Error.Code)

	status, resp, _ = env.call("escrow_getConfig", map[string]interface{}{})
	require.Equal(t, http.StatusPreconditionFailed, status)
	require.Equal(t, "TreasuryNotInitialized", resp.Error.Data)

	status, resp, _ = env.call("escrow_get", map[string]interface{}{"id": "nope"})
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)

	status, resp, _ = env.call("escrow_unknown", map[string]interface{}{})
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, codeMethodNotFound, resp.Error.Code)
}

func TestRPCRejectsMalformedRequests(t *testing.T) {
	env := newTestEnv(t, RateLimit{})

	resp, err := http.Post(env.server.URL+"/rpc", "application/json", bytes.NewReader([]byte("{")))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	var decoded RPCResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	require.Equal(t, codeParseError, decoded.Error.Code)

	body := `{"jsonrpc":"2.0","method":"escrow_cancel","params":[{"id":1},["0xdeadbeef"]],"id":1}`
	resp2, err := http.Post(env.server.URL+"/rpc", "application/json", bytes.NewReader([]byte(body)))
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusUnauthorized, resp2.StatusCode)
}

func TestHealthAndMetricsRoutes(t *testing.T) {
	env := newTestEnv(t, RateLimit{})

	resp, err := http.Get(env.server.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(env.server.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRateLimiterRejectsBursts(t *testing.T) {
	env := newTestEnv(t, RateLimit{RequestsPerMinute: 1, Burst: 2})
	for i := 0; i < 2; i++ {
		status, _, _ := env.call("escrow_get", map[string]interface{}{"id": 1})
		require.Equal(t, http.StatusNotFound, status)
	}
	status, resp, _ := env.call("escrow_get", map[string]interface{}{"id": 1})
	require.Equal(t, http.StatusTooManyRequests, status)
	require.Equal(t, codeRateLimited, resp.Error.Code)
}

func TestReplayedRequestIsRejected(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	treasuryID := crypto.FormatIdentity(env.treasury.PubKey().Identity())

	captured := env.request("escrow_initialize", map[string]interface{}{"treasury": treasuryID, "feeBps": 50}, env.treasury)
	status, resp, _ := env.post(captured)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)

	status, resp, result := env.call("escrow_updateFee", map[string]interface{}{"feeBps": 1000}, env.treasury)
	require.Equal(t, http.StatusOK, status, "%+v", resp.Error)
	require.EqualValues(t, 1000, result["feeBps"])

	status, resp, _ = env.post(captured)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)

	_, _, result = env.call("escrow_getConfig", map[string]interface{}{})
	require.EqualValues(t, 1000, result["feeBps"])
	require.Equal(t, uint64(2), env.nonce(env.treasury.PubKey().Identity()))
}

func TestProofsAreBoundToNetwork(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	treasuryID := crypto.FormatIdentity(env.treasury.PubKey().Identity())
	raw, err := json.Marshal(map[string]interface{}{"treasury": treasuryID})
	require.NoError(t, err)

	sig, err := crypto.SignProof(env.treasury, crypto.CallDigest("vaultix-other", "escrow_initialize", 0, raw))
	require.NoError(t, err)
	proofs, err := json.Marshal([]ProofParam{{Nonce: 0, Signature: "0x" + hex.EncodeToString(sig)}})
	require.NoError(t, err)
	body, err := json.Marshal(RPCRequest{JSONRPC: jsonRPCVersion, Method: "escrow_initialize", Params: []json.RawMessage{raw, proofs}, ID: json.RawMessage("1")})
	require.NoError(t, err)

	status, resp, _ := env.post(body)
	require.Equal(t, http.StatusUnauthorized, status)
	require.Equal(t, codeUnauthorized, resp.Error.Code)
}

func TestSetFeeOutOfRangeReturnsCodedError(t *testing.T) {
	env := newTestEnv(t, RateLimit{})
	treasuryID := crypto.FormatIdentity(env.treasury.PubKey().Identity())

	for _, fee := range []json.RawMessage{json.RawMessage("1e20"), json.RawMessage("-99999999999999999999"), json.RawMessage("10001")} {
		status, resp, _ := env.call("escrow_initialize", map[string]interface{}{"treasury": treasuryID, "feeBps": fee}, env.treasury)
		require.Equal(t, http.StatusBadRequest, status)
		require.Equal(t, modules.EscrowErrorCode(escrow.CodeInvalidFeeConfiguration), resp.Error.Code, "fee %s", fee)
	}

	status, resp, _ := env.call("escrow_initialize", map[string]interface{}{"treasury": treasuryID, "feeBps": 1.5}, env.treasury)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, codeInvalidParams, resp.Error.Code)
}
