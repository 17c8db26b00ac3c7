package htdb

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/internal/alloc"
	"github.com/coinstack/blockchain/internal/mmfile"
)

func openFile(t *testing.T) *mmfile.File {
	t.Helper()
	f, err := mmfile.Open(filepath.Join(t.TempDir(), "arena"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func key(b byte) []byte { k := make([]byte, 4); k[0] = b; return k }

// S2: htdb_record with 100 buckets, insert two keys that collide into
// the same bucket, then Get both, and walk the chain expecting length 2
// terminated by Empty.
func TestRecordTableCollisionChain(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateRecordTable(f, 0, 1024, 100, 4, 4)
	require.NoError(t, err)

	// Keys whose low 8 bytes (here, 4) reduce to the same bucket mod 100.
	k0 := []byte{0, 0, 0, 0}
	k1 := []byte{100, 0, 0, 0}
	require.Equal(t, Bucket(k0, 100), Bucket(k1, 100))

	idx0, err := tbl.Store(k0, func(v []byte) { copy(v, []byte{1, 1, 1, 1}) })
	require.NoError(t, err)
	idx1, err := tbl.Store(k1, func(v []byte) { copy(v, []byte{2, 2, 2, 2}) })
	require.NoError(t, err)

	v1, err := tbl.Get(k1)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 2, 2, 2}, v1)
	v0, err := tbl.Get(k0)
	require.NoError(t, err)
	require.Equal(t, []byte{1, 1, 1, 1}, v0)

	head, err := tbl.Head(k1)
	require.NoError(t, err)
	require.Equal(t, idx1, head)

	length := 0
	cur := head
	for cur != alloc.EmptyIndex {
		length++
		cur, err = tbl.NextOf(cur)
		require.NoError(t, err)
	}
	require.Equal(t, 2, length)
	_ = idx0
}

// Unlink of the bucket head (the common case: undoing the most recent
// store for a key with no later colliding insert) must restore the
// prior head exactly.
func TestRecordTableUnlinkHead(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateRecordTable(f, 0, 1024, 16, 4, 4)
	require.NoError(t, err)

	k := key(3)
	_, err = tbl.Store(k, func(v []byte) { copy(v, []byte{1, 0, 0, 0}) })
	require.NoError(t, err)

	require.NoError(t, tbl.Unlink(k))
	v, err := tbl.Get(k)
	require.NoError(t, err)
	require.Nil(t, v)
}

// Unlink of a key whose record sits behind a later colliding insert must
// splice it out of the middle of the chain without disturbing the head.
func TestRecordTableUnlinkMiddleOfChain(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateRecordTable(f, 0, 1024, 100, 4, 4)
	require.NoError(t, err)

	k0 := []byte{0, 0, 0, 0}
	k1 := []byte{100, 0, 0, 0}
	require.Equal(t, Bucket(k0, 100), Bucket(k1, 100))

	_, err = tbl.Store(k0, func(v []byte) { copy(v, []byte{1, 1, 1, 1}) })
	require.NoError(t, err)
	_, err = tbl.Store(k1, func(v []byte) { copy(v, []byte{2, 2, 2, 2}) })
	require.NoError(t, err)

	require.NoError(t, tbl.Unlink(k0))

	v0, err := tbl.Get(k0)
	require.NoError(t, err)
	require.Nil(t, v0)

	v1, err := tbl.Get(k1)
	require.NoError(t, err)
	require.Equal(t, []byte{2, 2, 2, 2}, v1)
}

func TestRecordTableGetMissing(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateRecordTable(f, 0, 1024, 16, 4, 4)
	require.NoError(t, err)
	v, err := tbl.Get(key(9))
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSlabTableVariableSizeValues(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateSlabTable(f, 0, 1024, 16, 4)
	require.NoError(t, err)

	_, err = tbl.Store(key(1), 5, func(v []byte) { copy(v, []byte("hello")) })
	require.NoError(t, err)
	_, err = tbl.Store(key(2), 3, func(v []byte) { copy(v, []byte("abc")) })
	require.NoError(t, err)

	v1, err := tbl.Get(key(1), 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), v1)

	v2, err := tbl.Get(key(2), 3)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v2)
}

// Two keys collide into the same bucket but store differently-sized
// values (e.g. the block table's per-height transaction list): walking
// the chain to find the second must never read past a smaller node's
// payload using the first node's size.
func TestSlabTableCollisionWithDifferentValueSizes(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateSlabTable(f, 0, 1024, 100, 4)
	require.NoError(t, err)

	k0 := key(0)
	k1 := []byte{100, 0, 0, 0}
	require.Equal(t, Bucket(k0, 100), Bucket(k1, 100))

	_, err = tbl.Store(k0, 3, func(v []byte) { copy(v, []byte("abc")) })
	require.NoError(t, err)
	_, err = tbl.Store(k1, 20, func(v []byte) { copy(v, []byte("a much longer value!")) })
	require.NoError(t, err)

	v0, err := tbl.Get(k0, 3)
	require.NoError(t, err)
	require.Equal(t, []byte("abc"), v0)

	v1, err := tbl.Get(k1, 20)
	require.NoError(t, err)
	require.Equal(t, []byte("a much longer value!"), v1)
}

func TestSlabTableRemoveTombstones(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateSlabTable(f, 0, 1024, 16, 4)
	require.NoError(t, err)

	_, err = tbl.Store(key(1), 4, func(v []byte) { copy(v, []byte("data")) })
	require.NoError(t, err)
	require.NoError(t, tbl.Remove(key(1), 4))

	v, err := tbl.Get(key(1), 4)
	require.NoError(t, err)
	require.Nil(t, v)
}

func TestSlabTableSyncAndRestart(t *testing.T) {
	f := openFile(t)
	tbl, err := CreateSlabTable(f, 0, 1024, 16, 4)
	require.NoError(t, err)
	_, err = tbl.Store(key(1), 4, func(v []byte) { copy(v, []byte("data")) })
	require.NoError(t, err)
	require.NoError(t, tbl.Sync())

	tbl2, err := OpenSlabTable(f, 0, 1024, 16, 4)
	require.NoError(t, err)
	v, err := tbl2.Get(key(1), 4)
	require.NoError(t, err)
	require.Equal(t, []byte("data"), v)
}
