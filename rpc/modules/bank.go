package modules

import (
	"context"
	"encoding/json"
	"net/http"

	"vaultix/crypto"
	"vaultix/host"
)

// BankModule exposes read-only token balance queries.
type BankModule struct {
	runtime *host.Runtime
}

func NewBankModule(rt *host.Runtime) *BankModule {
	return &BankModule{runtime: rt}
}

type balanceParams struct {
	Token   string `json:"token"`
	Account string `json:"account"`
}

// BalanceResult reports the committed balance of one account.
type BalanceResult struct {
	Token   string `json:"token"`
	Account string `json:"account"`
	Balance string `json:"balance"`
}

func (m *BankModule) Balance(ctx context.Context, raw json.RawMessage) (*BalanceResult, *ModuleError) {
	if m == nil || m.runtime == nil {
		return nil, &ModuleError{HTTPStatus: http.StatusInternalServerError, Code: codeServerError, Message: "bank module not initialised"}
	}
	var params balanceParams
	if err := decodeParams(raw, &params); err != nil {
		return nil, err
	}
	token, modErr := parseIdentity("token", params.Token)
	if modErr != nil {
		return nil, modErr
	}
	account, modErr := parseIdentity("account", params.Account)
	if modErr != nil {
		return nil, modErr
	}
	bal, err := m.runtime.Balance(ctx, token, account)
	if err != nil {
		return nil, fromError(err)
	}
	return &BalanceResult{
		Token:   crypto.FormatIdentity(token),
		Account: crypto.FormatIdentity(account),
		Balance: formatAmount(bal),
	}, nil
}
