package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"vaultix/crypto"
)

const (
	StorageLevelDB = "leveldb"
	StorageBolt    = "bolt"
	StorageMemory  = "memory"

	// DefaultNetworkName is bound into proof digests when no network is
	// configured.
	DefaultNetworkName = "vaultix-local"
)

type Config struct {
	DataDir        string       `toml:"DataDir"`
	Storage        string       `toml:"Storage"`
	RPCAddress     string       `toml:"RPCAddress"`
	NetworkName    string       `toml:"NetworkName"`
	Environment    string       `toml:"Environment"`
	LogFile        string       `toml:"LogFile"`
	LogLevel       string       `toml:"LogLevel"`
	HoldingAddress string       `toml:"HoldingAddress"`
	RateLimit      RateLimit    `toml:"RateLimit"`
	Allocations    []Allocation `toml:"Allocations"`
}

// Load loads the configuration from the given path, writing a default file
// when none exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config: %s has unknown key %s", path, undecoded[0])
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used for a fresh node.
func Default() *Config {
	cfg := &Config{
		DataDir:     "./vaultix-data",
		Storage:     StorageLevelDB,
		RPCAddress:  "127.0.0.1:8545",
		NetworkName: DefaultNetworkName,
		Environment: "dev",
		LogLevel:    "info",
		RateLimit:   RateLimit{RequestsPerMinute: 600, Burst: 60},
		Allocations: []Allocation{},
	}
	return cfg
}

func (c *Config) applyDefaults() {
	def := Default()
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = def.DataDir
	}
	c.Storage = strings.ToLower(strings.TrimSpace(c.Storage))
	if c.Storage == "" {
		c.Storage = def.Storage
	}
	if strings.TrimSpace(c.RPCAddress) == "" {
		c.RPCAddress = def.RPCAddress
	}
	if strings.TrimSpace(c.NetworkName) == "" {
		c.NetworkName = def.NetworkName
	}
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = def.LogLevel
	}
	if c.RateLimit.RequestsPerMinute == 0 && c.RateLimit.Burst == 0 {
		c.RateLimit = def.RateLimit
	}
	if c.Allocations == nil {
		c.Allocations = []Allocation{}
	}
}

// Holding returns the identity that custodies escrow deposits. Without an
// explicit HoldingAddress it is derived from the network name so every node
// on a network agrees on it.
func (c *Config) Holding() ([20]byte, error) {
	if addr := strings.TrimSpace(c.HoldingAddress); addr != "" {
		return crypto.ParseIdentity(addr)
	}
	return crypto.DeriveIdentity("vaultix/holding/" + c.NetworkName), nil
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
