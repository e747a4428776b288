package memorydb

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polysight-org/polysight/keyvaluedb"
)

func TestMemoryDB_ReadWrite(t *testing.T) {
	db := New()
	require.True(t, db.Empty())

	var v string
	found, err := db.Read([]byte("k"), &v)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, db.Write([]byte("k"), "value"))
	found, err = db.Read([]byte("k"), &v)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "value", v)
	require.False(t, db.Empty())

	require.NoError(t, db.Delete([]byte("k")))
	require.True(t, db.Empty())

	require.ErrorIs(t, db.Write(nil, "x"), keyvaluedb.ErrInvalidKey)
	require.ErrorIs(t, db.Delete([]byte{}), keyvaluedb.ErrInvalidKey)
}

func TestMemoryDB_WriteError(t *testing.T) {
	db := New()
	expErr := errors.New("disk full")
	db.MockWriteError(expErr)
	require.ErrorIs(t, db.Write([]byte("k"), "v"), expErr)

	tx, err := db.StartTx()
	require.NoError(t, err)
	require.ErrorIs(t, tx.Write([]byte("k"), "v"), expErr)
	require.NoError(t, tx.Rollback())

	db.MockWriteError(nil)
	require.NoError(t, db.Write([]byte("k"), "v"))
}

func TestMemoryDB_Iterators(t *testing.T) {
	db := New()
	empty, err := keyvaluedb.IsEmpty(db)
	require.NoError(t, err)
	require.True(t, empty)
	require.False(t, db.Last().Valid())

	for _, k := range []string{"b", "d", "a", "c"} {
		require.NoError(t, db.Write([]byte(k), k))
	}

	var keys []string
	for it := db.First(); it.Valid(); it.Next() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"a", "b", "c", "d"}, keys)

	keys = nil
	for it := db.Last(); it.Valid(); it.Prev() {
		keys = append(keys, string(it.Key()))
	}
	require.Equal(t, []string{"d", "c", "b", "a"}, keys)

	it := db.Find([]byte("bb"))
	require.True(t, it.Valid())
	var s string
	require.NoError(t, it.Value(&s))
	require.Equal(t, "c", s)
	require.NoError(t, it.Close())

	it = db.Find([]byte("e"))
	require.False(t, it.Valid())
	require.Nil(t, it.Key())
	require.Error(t, it.Value(&s))
}

func TestMemoryDB_Tx(t *testing.T) {
	db := New()
	require.NoError(t, db.Write([]byte("a"), "1"))

	tx, err := db.StartTx()
	require.NoError(t, err)
	require.NoError(t, tx.Write([]byte("b"), "2"))
	require.NoError(t, tx.Delete([]byte("a")))

	// not visible before commit
	var v string
	found, err := db.Read([]byte("b"), &v)
	require.NoError(t, err)
	require.False(t, found)

	require.NoError(t, tx.Commit())
	found, err = db.Read([]byte("b"), &v)
	require.NoError(t, err)
	require.True(t, found)
	found, err = db.Read([]byte("a"), &v)
	require.NoError(t, err)
	require.False(t, found)

	require.ErrorIs(t, tx.Commit(), keyvaluedb.ErrTxClosed)
	_, err = tx.Read([]byte("b"), &v)
	require.ErrorIs(t, err, keyvaluedb.ErrTxClosed)
}
