package main

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultix/crypto"
)

func TestApplyGlobalFlags(t *testing.T) {
	origRPC, origNetwork := rpcEndpoint, networkName
	defer func() { rpcEndpoint, networkName = origRPC, origNetwork }()

	args, err := applyGlobalFlags([]string{"--rpc", "http://node:1/rpc", "call", "--network=vaultix-dev", "escrow_get", "{}"})
	require.NoError(t, err)
	require.Equal(t, []string{"call", "escrow_get", "{}"}, args)
	require.Equal(t, "http://node:1/rpc", rpcEndpoint)
	require.Equal(t, "vaultix-dev", networkName)

	_, err = applyGlobalFlags([]string{"--rpc"})
	require.Error(t, err)
	_, err = applyGlobalFlags([]string{"--network"})
	require.Error(t, err)
}

func TestBuildRequestSignsExactParams(t *testing.T) {
	orig := networkName
	defer func() { networkName = orig }()
	networkName = "vaultix-dev"

	key, err := crypto.GeneratePrivateKey()
	require.NoError(t, err)
	params := []byte(`{"id": 5, "memo": "<a&b>"}`)

	body, err := buildRequest("escrow_cancel", params, []signer{{key: key, nonce: 7}})
	require.NoError(t, err)

	var req struct {
		Method string            `json:"method"`
		Params []json.RawMessage `json:"params"`
	}
	require.NoError(t, json.Unmarshal(body, &req))
	require.Equal(t, "escrow_cancel", req.Method)
	require.Len(t, req.Params, 2)
	require.Equal(t, `{"id":5,"memo":"<a&b>"}`, string(req.Params[0]))

	var proofs []proofParam
	require.NoError(t, json.Unmarshal(req.Params[1], &proofs))
	require.Len(t, proofs, 1)
	require.Equal(t, uint64(7), proofs[0].Nonce)
	sig, err := hex.DecodeString(strings.TrimPrefix(proofs[0].Signature, "0x"))
	require.NoError(t, err)
	recovered, err := crypto.RecoverSigner(crypto.CallDigest("vaultix-dev", "escrow_cancel", 7, req.Params[0]), sig)
	require.NoError(t, err)
	require.Equal(t, key.PubKey().Identity(), recovered)

	other, err := crypto.RecoverSigner(crypto.CallDigest("vaultix-dev", "escrow_cancel", 8, req.Params[0]), sig)
	require.NoError(t, err)
	require.NotEqual(t, key.PubKey().Identity(), other)

	_, err = buildRequest("escrow_cancel", []byte("{"), nil)
	require.Error(t, err)
}
