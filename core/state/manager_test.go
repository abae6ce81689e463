package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"vaultix/storage"
)

type record struct {
	Name   string
	Amount *big.Int
	Flag   uint8
}

func TestTxnReadsOwnWrites(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())
	txn := mgr.Begin()

	ok, err := txn.Has([]byte("rec"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, txn.Set([]byte("rec"), &record{Name: "a", Amount: big.NewInt(7), Flag: 2}))
	var got record
	ok, err = txn.Get([]byte("rec"), &got)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", got.Name)
	require.Zero(t, got.Amount.Cmp(big.NewInt(7)))

	ok, err = mgr.KVGet([]byte("rec"), nil)
	require.NoError(t, err)
	require.False(t, ok, "uncommitted writes must not leak")
}

func TestTxnCommitAndDiscard(t *testing.T) {
	mgr := NewManager(storage.NewMemDB())

	txn := mgr.Begin()
	require.NoError(t, txn.Set([]byte("k"), uint64(5)))
	require.NoError(t, txn.Set([]byte("k"), uint64(6)))
	require.Equal(t, 1, txn.Pending())
	require.NoError(t, txn.Commit())
	require.ErrorIs(t, txn.Commit(), errTxnClosed)

	var v uint64
	ok, err := mgr.KVGet([]byte("k"), &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(6), v)

	dropped := mgr.Begin()
	require.NoError(t, dropped.Set([]byte("k"), uint64(9)))
	dropped.Discard()
	require.ErrorIs(t, dropped.Set([]byte("k"), uint64(1)), errTxnClosed)

	ok, err = mgr.KVGet([]byte("k"), &v)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(6), v)
}

func TestTxnRejectsEmptyKey(t *testing.T) {
	txn := NewManager(storage.NewMemDB()).Begin()
	require.Error(t, txn.Set(nil, uint64(1)))
	_, err := txn.Has(nil)
	require.Error(t, err)
}
