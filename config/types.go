package config

import (
	"fmt"
	"math/big"
	"strings"

	"vaultix/crypto"
)

// RateLimit bounds how often a single client may call the RPC surface.
// TrustedProxies lists the IPs or CIDRs of reverse proxies whose
// X-Real-IP and X-Forwarded-For headers identify the client; requests from
// anyone else are keyed by their own address.
type RateLimit struct {
	RequestsPerMinute int      `toml:"RequestsPerMinute"`
	Burst             int      `toml:"Burst"`
	TrustedProxies    []string `toml:"TrustedProxies,omitempty"`
}

// Allocation credits an initial token balance when the data directory is
// first created. Token and Address are bech32 identities; Amount is a base-10
// integer.
type Allocation struct {
	Token   string `toml:"Token"`
	Address string `toml:"Address"`
	Amount  string `toml:"Amount"`
}

// Parse decodes the allocation into ledger values.
func (a Allocation) Parse() (token, account [20]byte, amount *big.Int, err error) {
	token, err = crypto.ParseIdentity(strings.TrimSpace(a.Token))
	if err != nil {
		return token, account, nil, fmt.Errorf("token: %w", err)
	}
	account, err = crypto.ParseIdentity(strings.TrimSpace(a.Address))
	if err != nil {
		return token, account, nil, fmt.Errorf("address: %w", err)
	}
	amount, ok := new(big.Int).SetString(strings.TrimSpace(a.Amount), 10)
	if !ok || amount.Sign() <= 0 {
		return token, account, nil, fmt.Errorf("amount %q must be a positive integer", a.Amount)
	}
	return token, account, amount, nil
}
