package host

import (
	"context"
	"fmt"
	"math/big"
)

var genesisMarkerKey = []byte("host/genesis")

// Allocation is an initial token balance credited at genesis.
type Allocation struct {
	Token   [20]byte
	Account [20]byte
	Amount  *big.Int
}

// ApplyGenesis credits allocs exactly once per data directory. It reports
// whether the allocations were applied by this call.
func (r *Runtime) ApplyGenesis(ctx context.Context, allocs []Allocation) (bool, error) {
	applied := false
	_, err := r.execute(ctx, "genesis", nil, true, func(env *Env) error {
		done, err := env.txn.Has(genesisMarkerKey)
		if err != nil || done {
			return err
		}
		for i, alloc := range allocs {
			if err := env.Bank.Mint(alloc.Token, alloc.Account, alloc.Amount); err != nil {
				return fmt.Errorf("host: genesis allocation %d: %w", i, err)
			}
		}
		applied = true
		return env.txn.Set(genesisMarkerKey, uint64(len(allocs)))
	}, "allocations", len(allocs))
	if err != nil {
		return false, err
	}
	return applied, nil
}
