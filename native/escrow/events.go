package escrow

import (
	"math/big"
	"strconv"

	"vaultix/core/types"
	"vaultix/crypto"
)

const (
	EventTypeEscrowCreated     = "escrow.created"
	EventTypeFeeCollected      = "escrow.fee_collected"
	EventTypeMilestoneReleased = "escrow.milestone_released"
	EventTypeEscrowCancelled   = "escrow.cancelled"
	EventTypeEscrowCompleted   = "escrow.completed"
)

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCreated, e) }

// NewCancelledEvent returns the canonical event payload for a cancelled escrow.
func NewCancelledEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCancelled, e) }

// NewCompletedEvent returns the canonical event payload for a completed escrow.
func NewCompletedEvent(e *Escrow) *types.Event { return newEscrowEvent(EventTypeEscrowCompleted, e) }

// NewFeeCollectedEvent records a platform fee routed to the treasury for one
// milestone.
func NewFeeCollectedEvent(id uint64, index uint32, fee *big.Int, treasury [20]byte) *types.Event {
	attrs := milestoneAttrs(id, index)
	attrs["fee"] = cloneBigInt(fee).String()
	attrs["treasury"] = crypto.FormatIdentity(treasury)
	return &types.Event{Type: EventTypeFeeCollected, Attributes: attrs}
}

// NewMilestoneReleasedEvent records the net payout of a fee-charging release.
func NewMilestoneReleasedEvent(id uint64, index uint32, payout *big.Int, recipient [20]byte) *types.Event {
	attrs := milestoneAttrs(id, index)
	attrs["payout"] = cloneBigInt(payout).String()
	attrs["recipient"] = crypto.FormatIdentity(recipient)
	return &types.Event{Type: EventTypeMilestoneReleased, Attributes: attrs}
}

func milestoneAttrs(id uint64, index uint32) map[string]string {
	return map[string]string{
		"escrowId":       strconv.FormatUint(id, 10),
		"milestoneIndex": strconv.FormatUint(uint64(index), 10),
	}
}

func newEscrowEvent(eventType string, e *Escrow) *types.Event {
	attrs := make(map[string]string)
	if e == nil {
		return &types.Event{Type: eventType, Attributes: attrs}
	}
	attrs["escrowId"] = strconv.FormatUint(e.ID, 10)
	attrs["depositor"] = crypto.FormatIdentity(e.Depositor)
	attrs["recipient"] = crypto.FormatIdentity(e.Recipient)
	attrs["token"] = crypto.FormatIdentity(e.Token)
	attrs["totalAmount"] = cloneBigInt(e.TotalAmount).String()
	attrs["totalReleased"] = cloneBigInt(e.TotalReleased).String()
	attrs["milestones"] = strconv.Itoa(len(e.Milestones))
	attrs["status"] = e.Status.String()
	return &types.Event{Type: eventType, Attributes: attrs}
}
