package bank

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/holiman/uint256"

	"vaultix/core/events"
)

var (
	// ErrInsufficientBalance is returned when the source account cannot cover a
	// transfer.
	ErrInsufficientBalance = errors.New("bank: insufficient balance")
	// ErrInvalidAmount is returned for nil or negative amounts.
	ErrInvalidAmount = errors.New("bank: amount must not be negative")
	// ErrBalanceOverflow is returned when a credit would exceed 256 bits.
	ErrBalanceOverflow = errors.New("bank: balance overflow")
)

var balancePrefix = []byte("bank/balance/")

// Store is the subset of the state transaction used by the ledger.
type Store interface {
	Get(key []byte, out interface{}) (bool, error)
	Set(key []byte, value interface{}) error
}

// Ledger keeps per-token fungible balances in the host state. Every write goes
// through the caller's Store, so balances commit or roll back with the
// enclosing operation.
type Ledger struct {
	store   Store
	emitter events.Emitter
}

// NewLedger returns a ledger backed by store.
func NewLedger(store Store) *Ledger {
	return &Ledger{store: store, emitter: events.NoopEmitter{}}
}

// SetEmitter configures where transfer and mint events are sent. Passing nil
// discards them.
func (l *Ledger) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		l.emitter = events.NoopEmitter{}
		return
	}
	l.emitter = emitter
}

func balanceKey(token, account [20]byte) []byte {
	key := make([]byte, 0, len(balancePrefix)+40)
	key = append(key, balancePrefix...)
	key = append(key, token[:]...)
	return append(key, account[:]...)
}

func (l *Ledger) load(token, account [20]byte) (*uint256.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("bank: state store required")
	}
	var stored big.Int
	ok, err := l.store.Get(balanceKey(token, account), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return new(uint256.Int), nil
	}
	balance, overflow := uint256.FromBig(&stored)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return balance, nil
}

func (l *Ledger) put(token, account [20]byte, balance *uint256.Int) error {
	return l.store.Set(balanceKey(token, account), balance.ToBig())
}

func toUint256(amount *big.Int) (*uint256.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	value, overflow := uint256.FromBig(amount)
	if overflow {
		return nil, ErrBalanceOverflow
	}
	return value, nil
}

// Balance returns the balance of account for token. Unknown accounts hold
// zero.
func (l *Ledger) Balance(token, account [20]byte) (*big.Int, error) {
	balance, err := l.load(token, account)
	if err != nil {
		return nil, err
	}
	return balance.ToBig(), nil
}

// Mint credits account with amount of token.
func (l *Ledger) Mint(token, to [20]byte, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	balance, err := l.load(token, to)
	if err != nil {
		return err
	}
	updated, overflow := new(uint256.Int).AddOverflow(balance, value)
	if overflow {
		return ErrBalanceOverflow
	}
	if err := l.put(token, to, updated); err != nil {
		return err
	}
	l.emitter.Emit(events.Mint{Token: token, To: to, Amount: value.ToBig()})
	return nil
}

// Transfer moves amount of token from one account to another.
func (l *Ledger) Transfer(token, from, to [20]byte, amount *big.Int) error {
	value, err := toUint256(amount)
	if err != nil {
		return err
	}
	fromBal, err := l.load(token, from)
	if err != nil {
		return err
	}
	if fromBal.Lt(value) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientBalance, fromBal.Dec(), value.Dec())
	}
	if from != to {
		toBal, err := l.load(token, to)
		if err != nil {
			return err
		}
		credited, overflow := new(uint256.Int).AddOverflow(toBal, value)
		if overflow {
			return ErrBalanceOverflow
		}
		if err := l.put(token, from, new(uint256.Int).Sub(fromBal, value)); err != nil {
			return err
		}
		if err := l.put(token, to, credited); err != nil {
			return err
		}
	}
	l.emitter.Emit(events.Transfer{Token: token, From: from, To: to, Amount: value.ToBig()})
	return nil
}
