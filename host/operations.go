package host

import (
	"context"
	"math/big"

	"vaultix/native/escrow"
)

func (r *Runtime) Initialize(ctx context.Context, auth escrow.AuthProvider, treasury [20]byte, feeBps *int64) error {
	_, err := r.execute(ctx, "initialize", auth, true, func(env *Env) error {
		return env.Escrow.Initialize(treasury, feeBps)
	})
	return err
}

func (r *Runtime) UpdateFee(ctx context.Context, auth escrow.AuthProvider, feeBps int64) error {
	_, err := r.execute(ctx, "update_fee", auth, true, func(env *Env) error {
		return env.Escrow.UpdateFee(feeBps)
	}, "feeBps", feeBps)
	return err
}

func (r *Runtime) GetConfig(ctx context.Context) (*escrow.PlatformConfig, error) {
	var cfg *escrow.PlatformConfig
	_, err := r.execute(ctx, "get_config", nil, false, func(env *Env) error {
		var err error
		cfg, err = env.Escrow.GetConfig()
		return err
	})
	return cfg, err
}

func (r *Runtime) CreateEscrow(ctx context.Context, auth escrow.AuthProvider, id uint64, depositor, recipient [20]byte, milestones []*escrow.Milestone, token [20]byte) (*escrow.Escrow, error) {
	var created *escrow.Escrow
	_, err := r.execute(ctx, "create_escrow", auth, true, func(env *Env) error {
		var err error
		created, err = env.Escrow.CreateEscrow(id, depositor, recipient, milestones, token)
		return err
	}, "escrowId", id)
	return created, err
}

func (r *Runtime) GetEscrow(ctx context.Context, id uint64) (*escrow.Escrow, error) {
	var esc *escrow.Escrow
	_, err := r.execute(ctx, "get_escrow", nil, false, func(env *Env) error {
		var err error
		esc, err = env.Escrow.GetEscrow(id)
		return err
	}, "escrowId", id)
	return esc, err
}

func (r *Runtime) GetState(ctx context.Context, id uint64) (escrow.EscrowStatus, error) {
	var status escrow.EscrowStatus
	_, err := r.execute(ctx, "get_state", nil, false, func(env *Env) error {
		var err error
		status, err = env.Escrow.GetState(id)
		return err
	}, "escrowId", id)
	return status, err
}

// ReleaseMilestone pays out a milestone net of the platform fee.
func (r *Runtime) ReleaseMilestone(ctx context.Context, auth escrow.AuthProvider, id uint64, index uint32, token [20]byte) (*escrow.Release, error) {
	var rel *escrow.Release
	_, err := r.execute(ctx, "release_milestone", auth, true, func(env *Env) error {
		var err error
		rel, err = env.Escrow.ReleaseMilestone(id, index, token)
		return err
	}, "escrowId", id, "milestone", index)
	if err != nil {
		return nil, err
	}
	r.metrics.ObserveRelease("fee")
	if rel.Fee.Sign() > 0 {
		r.metrics.ObserveFeeTransfer()
	}
	return rel, nil
}

// ConfirmDelivery releases a milestone in full on the buyer's confirmation.
func (r *Runtime) ConfirmDelivery(ctx context.Context, auth escrow.AuthProvider, id uint64, index uint32, buyer [20]byte) error {
	_, err := r.execute(ctx, "confirm_delivery", auth, true, func(env *Env) error {
		return env.Escrow.ConfirmDelivery(id, index, buyer)
	}, "escrowId", id, "milestone", index)
	if err == nil {
		r.metrics.ObserveRelease("delivery")
	}
	return err
}

func (r *Runtime) CancelEscrow(ctx context.Context, auth escrow.AuthProvider, id uint64) error {
	_, err := r.execute(ctx, "cancel_escrow", auth, true, func(env *Env) error {
		return env.Escrow.CancelEscrow(id)
	}, "escrowId", id)
	return err
}

func (r *Runtime) CompleteEscrow(ctx context.Context, auth escrow.AuthProvider, id uint64) error {
	_, err := r.execute(ctx, "complete_escrow", auth, true, func(env *Env) error {
		return env.Escrow.CompleteEscrow(id)
	}, "escrowId", id)
	return err
}

// Balance reports the committed ledger balance of account for token.
func (r *Runtime) Balance(ctx context.Context, token, account [20]byte) (*big.Int, error) {
	var bal *big.Int
	_, err := r.execute(ctx, "balance", nil, false, func(env *Env) error {
		var err error
		bal, err = env.Bank.Balance(token, account)
		return err
	})
	return bal, err
}
