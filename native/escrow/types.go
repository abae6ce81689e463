package escrow

import (
	"fmt"
	"math/big"
)

// EscrowStatus represents the lifecycle state of an escrow. Completed and
// Cancelled are terminal.
type EscrowStatus uint8

const (
	EscrowActive EscrowStatus = iota
	EscrowCompleted
	EscrowCancelled
)

// Valid reports whether the status value is within the supported range.
func (s EscrowStatus) Valid() bool {
	switch s {
	case EscrowActive, EscrowCompleted, EscrowCancelled:
		return true
	default:
		return false
	}
}

func (s EscrowStatus) String() string {
	switch s {
	case EscrowActive:
		return "active"
	case EscrowCompleted:
		return "completed"
	case EscrowCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// MilestoneStatus represents the payout state of a single milestone.
type MilestoneStatus uint8

const (
	MilestonePending MilestoneStatus = iota
	MilestoneReleased
	// MilestoneDisputed is reserved. No operation enters or leaves it.
	MilestoneDisputed
)

// Valid reports whether the status value is within the supported range.
func (s MilestoneStatus) Valid() bool {
	switch s {
	case MilestonePending, MilestoneReleased, MilestoneDisputed:
		return true
	default:
		return false
	}
}

func (s MilestoneStatus) String() string {
	switch s {
	case MilestonePending:
		return "pending"
	case MilestoneReleased:
		return "released"
	case MilestoneDisputed:
		return "disputed"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// Milestone is one payable increment of an escrow. The amount is fixed at
// creation.
type Milestone struct {
	Amount      *big.Int
	Status      MilestoneStatus
	Description string
}

// Clone returns a deep copy of the milestone.
func (m *Milestone) Clone() *Milestone {
	if m == nil {
		return nil
	}
	clone := *m
	clone.Amount = cloneBigInt(m.Amount)
	return &clone
}

// Escrow tracks the milestone-based release of funds from a depositor to a
// recipient. Field order is the persisted RLP layout.
type Escrow struct {
	ID            uint64
	Depositor     [20]byte
	Recipient     [20]byte
	TotalAmount   *big.Int
	TotalReleased *big.Int
	Milestones    []*Milestone
	Token         [20]byte
	Status        EscrowStatus
}

// Clone returns a deep copy of the escrow object so callers can safely mutate
// the copy without affecting the stored instance.
func (e *Escrow) Clone() *Escrow {
	if e == nil {
		return nil
	}
	clone := *e
	clone.TotalAmount = cloneBigInt(e.TotalAmount)
	clone.TotalReleased = cloneBigInt(e.TotalReleased)
	clone.Milestones = make([]*Milestone, len(e.Milestones))
	for i, m := range e.Milestones {
		clone.Milestones[i] = m.Clone()
	}
	return &clone
}

// AllReleased reports whether every milestone has been paid out. An escrow
// without milestones is trivially fully released.
func (e *Escrow) AllReleased() bool {
	for _, m := range e.Milestones {
		if m == nil || m.Status != MilestoneReleased {
			return false
		}
	}
	return true
}

// ReleasedSum recomputes the sum of released milestone amounts.
func (e *Escrow) ReleasedSum() *big.Int {
	sum := big.NewInt(0)
	for _, m := range e.Milestones {
		if m != nil && m.Status == MilestoneReleased && m.Amount != nil {
			sum.Add(sum, m.Amount)
		}
	}
	return sum
}

// SanitizeEscrow validates the record invariants and returns a clone with
// non-nil amount fields. The original value is not mutated.
func SanitizeEscrow(e *Escrow) (*Escrow, error) {
	if e == nil {
		return nil, fmt.Errorf("escrow: nil escrow")
	}
	clone := e.Clone()
	if !clone.Status.Valid() {
		return nil, fmt.Errorf("escrow: invalid escrow status: %d", clone.Status)
	}
	if clone.Depositor == clone.Recipient {
		return nil, ErrSelfDealing
	}
	if len(clone.Milestones) > MaxMilestones {
		return nil, ErrVectorTooLarge
	}
	for i, m := range clone.Milestones {
		if m == nil {
			return nil, fmt.Errorf("escrow: milestone %d is nil", i)
		}
		if m.Amount.Sign() <= 0 {
			return nil, fmt.Errorf("%w: milestone %d", ErrZeroAmount, i)
		}
		if !m.Status.Valid() {
			return nil, fmt.Errorf("escrow: invalid milestone status: %d", m.Status)
		}
	}
	if clone.TotalReleased.Sign() < 0 || clone.TotalReleased.Cmp(clone.TotalAmount) > 0 {
		return nil, fmt.Errorf("escrow: released %s outside [0, %s]", clone.TotalReleased, clone.TotalAmount)
	}
	if sum := clone.ReleasedSum(); clone.TotalReleased.Cmp(sum) != 0 {
		return nil, fmt.Errorf("escrow: released %s does not match released milestones %s", clone.TotalReleased, sum)
	}
	return clone, nil
}

func cloneBigInt(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(v)
}
