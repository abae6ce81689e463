package escrow

import (
	"fmt"
	"math/big"
)

// Release summarises a fee-charging milestone payout.
type Release struct {
	EscrowID       uint64
	MilestoneIndex uint32
	Amount         *big.Int
	Fee            *big.Int
	Payout         *big.Int
	Treasury       [20]byte
}

// pendingMilestone runs the shared active/index/released checks in their
// required order.
func pendingMilestone(esc *Escrow, index uint32) (*Milestone, error) {
	if esc.Status != EscrowActive {
		return nil, fmt.Errorf("%w: escrow %d is %s", ErrEscrowNotActive, esc.ID, esc.Status)
	}
	if uint64(index) >= uint64(len(esc.Milestones)) {
		return nil, fmt.Errorf("%w: index %d of %d", ErrMilestoneNotFound, index, len(esc.Milestones))
	}
	milestone := esc.Milestones[index]
	if milestone.Status == MilestoneReleased {
		return nil, fmt.Errorf("%w: index %d", ErrMilestoneAlreadyReleased, index)
	}
	return milestone, nil
}

// markReleased flips the milestone and accounts its full amount, not the
// payout, in TotalReleased.
func markReleased(esc *Escrow, milestone *Milestone) error {
	released, err := checkedAdd(esc.TotalReleased, milestone.Amount)
	if err != nil {
		return err
	}
	milestone.Status = MilestoneReleased
	esc.TotalReleased = released
	return nil
}

// ReleaseMilestone pays a milestone to the recipient minus the platform fee,
// which is routed to the treasury. Both transfers use tokenAddress.
func (e *Engine) ReleaseMilestone(id uint64, index uint32, tokenAddress [20]byte) (*Release, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return nil, err
	}
	if err := e.requireProof(esc.Depositor); err != nil {
		return nil, err
	}
	milestone, err := pendingMilestone(esc, index)
	if err != nil {
		return nil, err
	}
	cfg, err := e.GetConfig()
	if err != nil {
		return nil, err
	}
	fee, payout, err := SplitPayout(milestone.Amount, cfg.FeeBps)
	if err != nil {
		return nil, err
	}
	if err := markReleased(esc, milestone); err != nil {
		return nil, err
	}
	// Stage the new state before any external transfer runs.
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.transfer(tokenAddress, e.holding, esc.Recipient, payout); err != nil {
		return nil, err
	}
	if fee.Sign() > 0 {
		if err := e.transfer(tokenAddress, e.holding, cfg.Treasury, fee); err != nil {
			return nil, err
		}
		e.emit(NewFeeCollectedEvent(id, index, fee, cfg.Treasury))
	}
	e.emit(NewMilestoneReleasedEvent(id, index, payout, esc.Recipient))
	return &Release{
		EscrowID:       id,
		MilestoneIndex: index,
		Amount:         cloneBigInt(milestone.Amount),
		Fee:            fee,
		Payout:         payout,
		Treasury:       cfg.Treasury,
	}, nil
}

// ConfirmDelivery lets the buyer release a milestone in full. No platform fee
// is charged and the escrow's own token is used.
func (e *Engine) ConfirmDelivery(id uint64, index uint32, buyer [20]byte) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.requireProof(buyer); err != nil {
		return err
	}
	if esc.Depositor != buyer {
		return ErrUnauthorizedAccess
	}
	milestone, err := pendingMilestone(esc, index)
	if err != nil {
		return err
	}
	if err := markReleased(esc, milestone); err != nil {
		return err
	}
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	return e.transfer(esc.Token, e.holding, esc.Recipient, milestone.Amount)
}
