package events

import (
	"math/big"

	"vaultix/core/types"
	"vaultix/crypto"
)

const (
	// TypeTransfer is emitted for every token balance movement applied by the
	// bank ledger.
	TypeTransfer = "bank.transfer"
	// TypeMint is emitted when genesis allocations credit an account.
	TypeMint = "bank.mint"
)

// Transfer describes a token movement between two identities.
type Transfer struct {
	Token  [20]byte
	From   [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Transfer) EventType() string { return TypeTransfer }

func (e Transfer) Event() *types.Event {
	attrs := map[string]string{
		"token":  crypto.FormatIdentity(e.Token),
		"from":   crypto.FormatIdentity(e.From),
		"to":     crypto.FormatIdentity(e.To),
		"amount": formatAmount(e.Amount),
	}
	return &types.Event{Type: TypeTransfer, Attributes: attrs}
}

// Mint describes a balance credited without a source account.
type Mint struct {
	Token  [20]byte
	To     [20]byte
	Amount *big.Int
}

func (Mint) EventType() string { return TypeMint }

func (e Mint) Event() *types.Event {
	return &types.Event{Type: TypeMint, Attributes: map[string]string{
		"token":  crypto.FormatIdentity(e.Token),
		"to":     crypto.FormatIdentity(e.To),
		"amount": formatAmount(e.Amount),
	}}
}

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
