package host

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"vaultix/core/events"
	"vaultix/core/state"
	"vaultix/native/bank"
	"vaultix/native/escrow"
	"vaultix/observability/metrics"
)

var errNilRuntime = errors.New("host: runtime not configured")

// Env is the set of modules bound to one call. Everything reachable from it
// writes into the same state transaction.
type Env struct {
	Escrow *escrow.Engine
	Bank   *bank.Ledger

	txn *state.Txn
}

// Runtime executes escrow operations one at a time. Each call runs inside its
// own state transaction: on any error the transaction and the buffered events
// are dropped, otherwise state and events commit together. The one exception
// is a signed call, whose proof nonces advance even when the call fails.
type Runtime struct {
	mu      sync.Mutex
	state   *state.Manager
	holding [20]byte
	logger  *slog.Logger
	metrics *metrics.EscrowMetrics
}

// NewRuntime creates a runtime over mgr whose escrow deposits are custodied by
// holding.
func NewRuntime(mgr *state.Manager, holding [20]byte) *Runtime {
	return &Runtime{
		state:   mgr,
		holding: holding,
		logger:  slog.Default(),
		metrics: metrics.Escrow(),
	}
}

// SetLogger configures the runtime logger. Passing nil restores slog.Default.
func (r *Runtime) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.logger = logger
}

// Holding returns the custody identity.
func (r *Runtime) Holding() [20]byte { return r.holding }

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if escrow.IsAuthorizationFailure(err) {
		return "denied"
	}
	if code, ok := escrow.CodeOf(err); ok {
		return code.String()
	}
	return "error"
}

// execute runs fn against a fresh Env. Mutating calls commit on success; read
// calls always discard.
func (r *Runtime) execute(ctx context.Context, op string, auth escrow.AuthProvider, mutate bool, fn func(*Env) error, attrs ...any) ([]Record, error) {
	if r == nil || r.state == nil {
		return nil, errNilRuntime
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	r.mu.Lock()
	defer r.mu.Unlock()

	records, err := r.run(ctx, auth, mutate, fn)
	r.metrics.ObserveOperation(op, resultLabel(err), time.Since(start).Seconds())

	logAttrs := append([]any{"op", op}, attrs...)
	if err != nil {
		r.logger.Warn("escrow operation rejected", append(logAttrs, "result", resultLabel(err), "error", err)...)
		return nil, err
	}
	if mutate {
		r.logger.Info("escrow operation committed", append(logAttrs, "events", len(records))...)
	}
	return records, nil
}

func (r *Runtime) run(ctx context.Context, auth escrow.AuthProvider, mutate bool, fn func(*Env) error) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if auth == nil {
		auth = NewProofSet()
	}
	txn := r.state.Begin()
	buf := &events.Buffer{}

	ledger := bank.NewLedger(txn)
	ledger.SetEmitter(buf)
	engine := escrow.NewEngine(r.holding)
	engine.SetStore(txn)
	engine.SetAuth(auth)
	engine.SetLedger(ledger)
	engine.SetEmitter(buf)

	signed, _ := auth.(*SignedProofs)
	if signed != nil && mutate {
		if err := signed.consume(txn); err != nil {
			txn.Discard()
			return nil, err
		}
	}
	if err := fn(&Env{Escrow: engine, Bank: ledger, txn: txn}); err != nil {
		txn.Discard()
		if signed != nil && mutate {
			r.burnNonces(signed)
		}
		return nil, err
	}
	if !mutate {
		txn.Discard()
		return nil, nil
	}
	records, err := appendEvents(txn, buf.Drain())
	if err != nil {
		txn.Discard()
		return nil, err
	}
	if err := txn.Commit(); err != nil {
		return nil, err
	}
	return records, nil
}

// burnNonces advances the nonces of a signed call whose operation failed, so
// the same request cannot be replayed once state has changed.
func (r *Runtime) burnNonces(signed *SignedProofs) {
	txn := r.state.Begin()
	if err := signed.consume(txn); err != nil {
		txn.Discard()
		return
	}
	if err := txn.Commit(); err != nil {
		r.logger.Error("failed to persist proof nonces", "error", err)
	}
}

// Nonce returns the next proof nonce of id.
func (r *Runtime) Nonce(ctx context.Context, id [20]byte) (uint64, error) {
	var nonce uint64
	_, err := r.execute(ctx, "nonce", nil, false, func(env *Env) error {
		var err error
		nonce, err = loadNonce(env.txn, id)
		return err
	})
	return nonce, err
}

// Events lists committed event records after the given sequence whose type
// starts with typePrefix.
func (r *Runtime) Events(ctx context.Context, typePrefix string, after uint64, limit int) ([]Record, error) {
	if r == nil || r.state == nil {
		return nil, errNilRuntime
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return listEvents(r.state, typePrefix, after, limit)
}
