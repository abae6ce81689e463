package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultix/crypto"
)

func TestLoadCreatesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, StorageLevelDB, cfg.Storage)
	require.Equal(t, DefaultNetworkName, cfg.NetworkName)
	_, err = os.Stat(path)
	require.NoError(t, err)

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg.RPCAddress, reloaded.RPCAddress)
	require.Equal(t, cfg.RateLimit, reloaded.RateLimit)

	holding, err := reloaded.Holding()
	require.NoError(t, err)
	require.Equal(t, crypto.DeriveIdentity("vaultix/holding/"+DefaultNetworkName), holding)
}

func TestLoadParsesAllocations(t *testing.T) {
	token := crypto.DeriveIdentity("token/usdc")
	alice := crypto.DeriveIdentity("alice")
	holding := crypto.DeriveIdentity("holding")

	path := filepath.Join(t.TempDir(), "config.toml")
	contents := fmt.Sprintf(`DataDir = "./data"
Storage = "Bolt"
RPCAddress = "0.0.0.0:9000"
NetworkName = "testnet"
LogLevel = "debug"
HoldingAddress = "%s"

[RateLimit]
RequestsPerMinute = 120
Burst = 10
TrustedProxies = ["10.0.0.0/8", "127.0.0.1"]

[[Allocations]]
Token = "%s"
Address = "%s"
Amount = "1000000000000000000000"
`, crypto.FormatIdentity(holding), crypto.FormatIdentity(token), crypto.FormatIdentity(alice))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, StorageBolt, cfg.Storage)
	require.Equal(t, RateLimit{RequestsPerMinute: 120, Burst: 10, TrustedProxies: []string{"10.0.0.0/8", "127.0.0.1"}}, cfg.RateLimit)
	level, err := cfg.Level()
	require.NoError(t, err)
	require.Equal(t, slog.LevelDebug, level)

	got, err := cfg.Holding()
	require.NoError(t, err)
	require.Equal(t, holding, got)

	require.Len(t, cfg.Allocations, 1)
	tok, acct, amount, err := cfg.Allocations[0].Parse()
	require.NoError(t, err)
	require.Equal(t, token, tok)
	require.Equal(t, alice, acct)
	require.Equal(t, "1000000000000000000000", amount.String())
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	cases := map[string]string{
		"storage":    `Storage = "postgres"`,
		"unknown":    `Bootnodes = ["a"]`,
		"level":      `LogLevel = "loud"`,
		"holding":    `HoldingAddress = "nope"`,
		"rate":       "[RateLimit]\nRequestsPerMinute = 10\nBurst = 0",
		"proxy":      "[RateLimit]\nRequestsPerMinute = 10\nBurst = 1\nTrustedProxies = [\"lan\"]",
		"allocation": "[[Allocations]]\nToken = \"x\"\nAddress = \"y\"\nAmount = \"1\"",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			require.NoError(t, os.WriteFile(path, []byte(body+"\n"), 0o644))
			_, err := Load(path)
			require.Error(t, err)
		})
	}
}

func TestAllocationRejectsNonPositiveAmount(t *testing.T) {
	alloc := Allocation{
		Token:   crypto.FormatIdentity(crypto.DeriveIdentity("t")),
		Address: crypto.FormatIdentity(crypto.DeriveIdentity("a")),
		Amount:  "0",
	}
	_, _, _, err := alloc.Parse()
	require.Error(t, err)
	alloc.Amount = "-5"
	_, _, _, err = alloc.Parse()
	require.Error(t, err)
}
