package escrow

import "fmt"

// CancelEscrow marks an escrow cancelled while nothing has been paid out.
// Deposited funds stay with the holding identity.
func (e *Engine) CancelEscrow(id uint64) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.requireProof(esc.Depositor); err != nil {
		return err
	}
	if esc.TotalReleased.Sign() > 0 {
		return fmt.Errorf("%w: %s already paid out", ErrMilestoneAlreadyReleased, esc.TotalReleased)
	}
	if esc.Status != EscrowActive {
		return fmt.Errorf("%w: escrow %d is %s", ErrEscrowNotActive, id, esc.Status)
	}
	esc.Status = EscrowCancelled
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewCancelledEvent(esc))
	return nil
}

// CompleteEscrow closes an escrow once every milestone is released.
func (e *Engine) CompleteEscrow(id uint64) error {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return err
	}
	if err := e.requireProof(esc.Depositor); err != nil {
		return err
	}
	if !esc.AllReleased() {
		return fmt.Errorf("%w: escrow %d has unreleased milestones", ErrEscrowNotActive, id)
	}
	if esc.Status != EscrowActive {
		return fmt.Errorf("%w: escrow %d is %s", ErrEscrowNotActive, id, esc.Status)
	}
	esc.Status = EscrowCompleted
	if err := e.storeEscrow(esc); err != nil {
		return err
	}
	e.emit(NewCompletedEvent(esc))
	return nil
}
