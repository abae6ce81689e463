package modules

import (
	"context"
	"encoding/json"
	"net/http"

	"vaultix/crypto"
	"vaultix/host"
)

// AuthModule serves the proof nonces clients sign with.
type AuthModule struct {
	runtime *host.Runtime
}

func NewAuthModule(rt *host.Runtime) *AuthModule {
	return &AuthModule{runtime: rt}
}

type nonceParams struct {
	Account string `json:"account"`
}

// NonceResult is the nonce the account must sign its next mutating call with.
type NonceResult struct {
	Account string `json:"account"`
	Nonce   uint64 `json:"nonce"`
}

func (m *AuthModule) Nonce(ctx context.Context, raw json.RawMessage) (*NonceResult, *ModuleError) {
	if m == nil || m.runtime == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "auth module not initialised"}
	}
	var params nonceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	account, modErr := parseIdentity("account", params.Account)
	if modErr != nil {
		return nil, modErr
	}
	nonce, err := m.runtime.Nonce(ctx, account)
	if err != nil {
		return nil, fromError(err)
	}
	return &NonceResult{Account: crypto.FormatIdentity(account), Nonce: nonce}, nil
}
