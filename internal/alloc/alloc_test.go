package alloc

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/internal/mmfile"
)

func openFile(t *testing.T) *mmfile.File {
	t.Helper()
	f, err := mmfile.Open(filepath.Join(t.TempDir(), "arena"))
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}

func TestRecordAllocatorAssignsSequentialIndices(t *testing.T) {
	f := openFile(t)
	a := NewRecordAllocator(f, 0, 16)
	require.NoError(t, a.Create())

	i0, err := a.Allocate()
	require.NoError(t, err)
	i1, err := a.Allocate()
	require.NoError(t, err)
	require.EqualValues(t, 0, i0)
	require.EqualValues(t, 1, i1)
	require.EqualValues(t, 2, a.Count())
}

func TestRecordAllocatorSyncAndRestart(t *testing.T) {
	f := openFile(t)
	a := NewRecordAllocator(f, 0, 16)
	require.NoError(t, a.Create())
	_, _ = a.Allocate()
	_, _ = a.Allocate()
	require.NoError(t, a.Sync())

	b := NewRecordAllocator(f, 0, 16)
	require.NoError(t, b.Start())
	require.EqualValues(t, 2, b.Count())
}

func TestRecordAllocatorGetRoundTrips(t *testing.T) {
	f := openFile(t)
	a := NewRecordAllocator(f, 0, 8)
	require.NoError(t, a.Create())
	idx, err := a.Allocate()
	require.NoError(t, err)
	buf, err := a.Get(idx)
	require.NoError(t, err)
	copy(buf, []byte("12345678"))
	buf2, err := a.Get(idx)
	require.NoError(t, err)
	require.Equal(t, []byte("12345678"), buf2)
}

func TestSlabAllocatorAdvancesEnd(t *testing.T) {
	f := openFile(t)
	a := NewSlabAllocator(f, 0)
	require.NoError(t, a.Create())
	start := a.End()

	pos, err := a.Allocate(10)
	require.NoError(t, err)
	require.Equal(t, start, pos)
	require.EqualValues(t, start+10, a.End())
}

func TestSlabAllocatorGetRoundTrips(t *testing.T) {
	f := openFile(t)
	a := NewSlabAllocator(f, 0)
	require.NoError(t, a.Create())
	pos, err := a.Allocate(5)
	require.NoError(t, err)
	buf, err := a.Get(pos, 5)
	require.NoError(t, err)
	copy(buf, []byte("hello"))
	buf2, err := a.Get(pos, 5)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), buf2)
}

func TestSlabAllocatorSyncAndRestart(t *testing.T) {
	f := openFile(t)
	a := NewSlabAllocator(f, 0)
	require.NoError(t, a.Create())
	_, _ = a.Allocate(20)
	require.NoError(t, a.Sync())

	b := NewSlabAllocator(f, 0)
	require.NoError(t, b.Start())
	require.Equal(t, a.End(), b.End())
}

func TestRecordAllocatorTruncateForPop(t *testing.T) {
	f := openFile(t)
	a := NewRecordAllocator(f, 0, 8)
	require.NoError(t, a.Create())
	_, _ = a.Allocate()
	_, _ = a.Allocate()
	_, _ = a.Allocate()
	require.EqualValues(t, 3, a.Count())

	a.Truncate(1)
	require.EqualValues(t, 1, a.Count())
}
