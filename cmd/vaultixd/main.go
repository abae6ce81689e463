package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"vaultix/config"
	"vaultix/core/state"
	"vaultix/crypto"
	"vaultix/host"
	"vaultix/observability/logging"
	"vaultix/rpc"
	"vaultix/storage"
)

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	rpcAddr := flag.String("rpc", "", "Override the JSON-RPC listen address from the config file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if addr := strings.TrimSpace(*rpcAddr); addr != "" {
		cfg.RPCAddress = addr
	}

	level, _ := cfg.Level()
	logger := logging.Setup("vaultixd", cfg.Environment, logging.Options{File: cfg.LogFile, Level: level})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("vaultixd stopped with error", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("vaultixd stopped")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	holding, err := cfg.Holding()
	if err != nil {
		return err
	}
	runtime := host.NewRuntime(state.NewManager(db), holding)
	runtime.SetLogger(logger.With("component", "runtime"))

	allocs, err := genesisAllocations(cfg.Allocations)
	if err != nil {
		return err
	}
	applied, err := runtime.ApplyGenesis(ctx, allocs)
	if err != nil {
		return fmt.Errorf("apply genesis: %w", err)
	}
	logger.Info("state ready",
		"network", cfg.NetworkName,
		"storage", cfg.Storage,
		"holding", crypto.FormatIdentity(holding),
		"genesisApplied", applied)

	server := rpc.NewServer(runtime, rpc.Options{
		Network: cfg.NetworkName,
		RateLimit: rpc.RateLimit{
			RequestsPerMinute: float64(cfg.RateLimit.RequestsPerMinute),
			Burst:             cfg.RateLimit.Burst,
			TrustedProxies:    cfg.RateLimit.TrustedProxies,
		},
		Logger: logger.With("component", "rpc"),
	})
	return server.Serve(ctx, cfg.RPCAddress)
}

func openDatabase(cfg *config.Config) (storage.Database, error) {
	switch cfg.Storage {
	case config.StorageMemory:
		return storage.NewMemDB(), nil
	case config.StorageBolt:
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, err
		}
		return storage.NewBoltDB(filepath.Join(cfg.DataDir, "state.bolt"), nil)
	default:
		return storage.NewLevelDB(cfg.DataDir)
	}
}

func genesisAllocations(entries []config.Allocation) ([]host.Allocation, error) {
	allocs := make([]host.Allocation, 0, len(entries))
	for i, entry := range entries {
		token, account, amount, err := entry.Parse()
		if err != nil {
			return nil, fmt.Errorf("allocation %d: %w", i, err)
		}
		allocs = append(allocs, host.Allocation{Token: token, Account: account, Amount: amount})
	}
	return allocs, nil
}
