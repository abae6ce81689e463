package state

import (
	"errors"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"

	"vaultix/storage"
)

var errTxnClosed = errors.New("state: transaction already closed")

// Manager provides RLP-encoded key/value access over a storage backend.
// Reads and writes for a single host call go through a Txn so that the call
// either commits every mutation or none of them.
type Manager struct {
	db storage.Database
}

// NewManager creates a state manager operating on the provided database.
func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

// kvKey hashes the logical key so all namespaces share one flat keyspace
// without prefix collisions.
func kvKey(key []byte) []byte {
	return ethcrypto.Keccak256(key)
}

// KVGet decodes the committed value stored under key into out. The boolean
// reports whether the key existed.
func (m *Manager) KVGet(key []byte, out interface{}) (bool, error) {
	if len(key) == 0 {
		return false, fmt.Errorf("kv: key must not be empty")
	}
	data, err := m.db.Get(kvKey(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, err
	}
	return true, nil
}

// Begin opens a write buffer on top of the committed state.
func (m *Manager) Begin() *Txn {
	return &Txn{
		db:     m.db,
		writes: make(map[string][]byte),
	}
}

// Txn buffers writes for one unit of work. Reads observe the buffered writes
// first and fall back to committed state. Txn is not safe for concurrent use.
type Txn struct {
	db     storage.Database
	writes map[string][]byte
	order  []string
	closed bool
}

// Get decodes the value under key into out, honouring uncommitted writes.
func (t *Txn) Get(key []byte, out interface{}) (bool, error) {
	data, ok, err := t.raw(key)
	if err != nil || !ok {
		return false, err
	}
	if out == nil {
		return true, nil
	}
	if err := rlp.DecodeBytes(data, out); err != nil {
		return false, fmt.Errorf("state: decode: %w", err)
	}
	return true, nil
}

// Has reports whether a value exists under key.
func (t *Txn) Has(key []byte) (bool, error) {
	_, ok, err := t.raw(key)
	return ok, err
}

// Set RLP-encodes value and buffers it under key.
func (t *Txn) Set(key []byte, value interface{}) error {
	if t.closed {
		return errTxnClosed
	}
	if len(key) == 0 {
		return fmt.Errorf("kv: key must not be empty")
	}
	encoded, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode: %w", err)
	}
	hashed := string(kvKey(key))
	if _, seen := t.writes[hashed]; !seen {
		t.order = append(t.order, hashed)
	}
	t.writes[hashed] = encoded
	return nil
}

// Pending returns the number of buffered keys.
func (t *Txn) Pending() int { return len(t.order) }

// Commit flushes the buffered writes in first-write order as one batch.
func (t *Txn) Commit() error {
	if t.closed {
		return errTxnClosed
	}
	t.closed = true
	if len(t.order) == 0 {
		return nil
	}
	batch := t.db.NewBatch()
	for _, key := range t.order {
		batch.Put([]byte(key), t.writes[key])
	}
	return t.db.Write(batch)
}

// Discard drops the buffered writes. Discarding a committed Txn is a no-op.
func (t *Txn) Discard() {
	t.closed = true
	t.writes = nil
	t.order = nil
}

func (t *Txn) raw(key []byte) ([]byte, bool, error) {
	if t.closed {
		return nil, false, errTxnClosed
	}
	if len(key) == 0 {
		return nil, false, fmt.Errorf("kv: key must not be empty")
	}
	hashed := kvKey(key)
	if data, ok := t.writes[string(hashed)]; ok {
		return data, true, nil
	}
	data, err := t.db.Get(hashed)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}
