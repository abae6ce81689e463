package storage

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func exerciseDatabase(t *testing.T, db Database) {
	t.Helper()

	_, err := db.Get([]byte("missing"))
	require.ErrorIs(t, err, ErrNotFound)
	ok, err := db.Has([]byte("missing"))
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, db.Put([]byte("a"), []byte("1")))
	got, err := db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("1"), got)

	batch := db.NewBatch()
	batch.Put([]byte("b"), []byte("2"))
	batch.Put([]byte("a"), []byte("3"))
	require.Equal(t, 2, batch.Len())

	ok, err = db.Has([]byte("b"))
	require.NoError(t, err)
	require.False(t, ok, "batch must not be visible before Write")

	require.NoError(t, db.Write(batch))
	got, err = db.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), got)
	got, err = db.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
}

func TestMemDB(t *testing.T) {
	db := NewMemDB()
	t.Cleanup(func() { _ = db.Close() })
	exerciseDatabase(t, db)
	require.Len(t, db.Keys(), 2)
}

func TestMemDBRejectsForeignBatch(t *testing.T) {
	db := NewMemDB()
	require.Error(t, db.Write(&boltBatch{}))
}

func TestLevelDBPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	db1, err := NewLevelDB(dir)
	require.NoError(t, err)
	exerciseDatabase(t, db1)
	require.NoError(t, db1.Close())

	db2, err := NewLevelDB(dir)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("b"))
	require.NoError(t, err)
	require.Equal(t, []byte("2"), got)
}

func TestBoltDBPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")

	db1, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	exerciseDatabase(t, db1)
	require.NoError(t, db1.Close())

	db2, err := NewBoltDB(path, nil)
	require.NoError(t, err)
	defer db2.Close()

	got, err := db2.Get([]byte("a"))
	require.NoError(t, err)
	require.Equal(t, []byte("3"), got)
}
