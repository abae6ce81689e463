package config

import (
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
)

// Validate checks the loaded configuration for values the daemon cannot run
// with.
func (c *Config) Validate() error {
	switch c.Storage {
	case StorageLevelDB, StorageBolt, StorageMemory:
	default:
		return fmt.Errorf("config: unsupported Storage %q", c.Storage)
	}
	if c.RateLimit.RequestsPerMinute < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("config: RateLimit values must not be negative")
	}
	if c.RateLimit.RequestsPerMinute > 0 && c.RateLimit.Burst == 0 {
		return fmt.Errorf("config: RateLimit.Burst must be positive when RequestsPerMinute is set")
	}
	for _, entry := range c.RateLimit.TrustedProxies {
		if _, err := parseProxy(entry); err != nil {
			return fmt.Errorf("config: RateLimit.TrustedProxies: %w", err)
		}
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if _, err := c.Holding(); err != nil {
		return fmt.Errorf("config: HoldingAddress: %w", err)
	}
	for i, alloc := range c.Allocations {
		if _, _, _, err := alloc.Parse(); err != nil {
			return fmt.Errorf("config: Allocations[%d]: %w", i, err)
		}
	}
	return nil
}

// Level parses LogLevel into a slog level.
func (c *Config) Level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return level, fmt.Errorf("config: LogLevel: %w", err)
	}
	return level, nil
}

func parseProxy(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		return netip.ParsePrefix(entry)
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}
