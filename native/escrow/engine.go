package escrow

import (
	"fmt"
	"math/big"

	"vaultix/core/events"
	"vaultix/core/types"
	"vaultix/crypto"
)

// Store is the durable key/value capability supplied by the host. Writes made
// during one call must become visible together or not at all.
type Store interface {
	Get(key []byte, out interface{}) (bool, error)
	Set(key []byte, value interface{}) error
	Has(key []byte) (bool, error)
}

// AuthProvider verifies that the active caller controls an identity. A
// non-nil error aborts the whole operation.
type AuthProvider interface {
	RequireProof(identity [20]byte) error
}

// TokenLedger moves fungible balances held by a token ledger. A failed
// transfer aborts the enclosing operation.
type TokenLedger interface {
	Transfer(token, from, to [20]byte, amount *big.Int) error
}

type escrowEvent struct {
	evt *types.Event
}

func (e escrowEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e escrowEvent) Event() *types.Event { return e.evt }

// Engine implements the escrow operations on top of the host capabilities.
// An Engine is bound to a single host call and is not safe for concurrent
// use; the host serialises calls.
type Engine struct {
	store   Store
	auth    AuthProvider
	ledger  TokenLedger
	emitter events.Emitter
	holding [20]byte
}

// NewEngine creates an escrow engine whose deposits are held by the supplied
// identity. Callers must configure the store, auth provider and ledger before
// invoking operations.
func NewEngine(holding [20]byte) *Engine {
	return &Engine{
		emitter: events.NoopEmitter{},
		holding: holding,
	}
}

// SetStore configures the state backend used by the engine.
func (e *Engine) SetStore(store Store) { e.store = store }

// SetAuth configures the caller authorization provider.
func (e *Engine) SetAuth(auth AuthProvider) { e.auth = auth }

// SetLedger configures the token transfer capability.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetEmitter configures the event emitter used by the engine. Passing nil resets
// the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// Holding returns the identity that custodies escrowed deposits.
func (e *Engine) Holding() [20]byte { return e.holding }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(escrowEvent{evt: event})
}

func (e *Engine) ready() error {
	if e == nil || e.store == nil {
		return errNilState
	}
	if e.auth == nil {
		return errNilAuth
	}
	if e.ledger == nil {
		return errNilLedger
	}
	return nil
}

func (e *Engine) requireProof(identity [20]byte) error {
	if err := e.auth.RequireProof(identity); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrAuthorization, crypto.FormatIdentity(identity), err)
	}
	return nil
}

func (e *Engine) loadEscrow(id uint64) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	var esc Escrow
	ok, err := e.store.Get(escrowKey(id), &esc)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrEscrowNotFound, id)
	}
	return &esc, nil
}

func (e *Engine) storeEscrow(esc *Escrow) error {
	sanitized, err := SanitizeEscrow(esc)
	if err != nil {
		return err
	}
	return e.store.Set(escrowKey(sanitized.ID), sanitized)
}

// transfer skips zero amounts so fee-free and empty escrows never touch the
// ledger.
func (e *Engine) transfer(token, from, to [20]byte, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	if amount.Sign() < 0 {
		return fmt.Errorf("escrow: negative transfer amount")
	}
	if err := e.ledger.Transfer(token, from, to, new(big.Int).Set(amount)); err != nil {
		return fmt.Errorf("escrow: token transfer: %w", err)
	}
	return nil
}

// CreateEscrow registers a new escrow and moves the milestone total from the
// depositor to the holding identity. Caller-supplied milestone statuses are
// ignored; every milestone starts Pending.
func (e *Engine) CreateEscrow(id uint64, depositor, recipient [20]byte, milestones []*Milestone, token [20]byte) (*Escrow, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.requireProof(depositor); err != nil {
		return nil, err
	}
	if depositor == recipient {
		return nil, ErrSelfDealing
	}
	exists, err := e.store.Has(escrowKey(id))
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, fmt.Errorf("%w: %d", ErrEscrowAlreadyExists, id)
	}
	total, err := ValidateMilestones(milestones)
	if err != nil {
		return nil, err
	}
	initialized := make([]*Milestone, len(milestones))
	for i, m := range milestones {
		initialized[i] = &Milestone{
			Amount:      cloneBigInt(m.Amount),
			Status:      MilestonePending,
			Description: m.Description,
		}
	}
	esc := &Escrow{
		ID:            id,
		Depositor:     depositor,
		Recipient:     recipient,
		TotalAmount:   total,
		TotalReleased: big.NewInt(0),
		Milestones:    initialized,
		Token:         token,
		Status:        EscrowActive,
	}
	if err := e.storeEscrow(esc); err != nil {
		return nil, err
	}
	if err := e.transfer(token, depositor, e.holding, total); err != nil {
		return nil, err
	}
	e.emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// GetEscrow returns the stored escrow record.
func (e *Engine) GetEscrow(id uint64) (*Escrow, error) {
	return e.loadEscrow(id)
}

// GetState returns only the lifecycle status of the escrow.
func (e *Engine) GetState(id uint64) (EscrowStatus, error) {
	esc, err := e.loadEscrow(id)
	if err != nil {
		return 0, err
	}
	return esc.Status, nil
}
