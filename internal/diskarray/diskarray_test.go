package diskarray

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

func TestCreateFillsSentinel(t *testing.T) {
	f := openFile(t)
	a, err := Create(f, 0, 10, Width32)
	require.NoError(t, err)

	for i := uint64(0); i < 10; i++ {
		v, err := a.Read(i)
		require.NoError(t, err)
		require.Equal(t, Empty(Width32), v)
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	f := openFile(t)
	a, err := Create(f, 0, 4, Width64)
	require.NoError(t, err)

	require.NoError(t, a.Write(2, 424242))
	v, err := a.Read(2)
	require.NoError(t, err)
	require.EqualValues(t, 424242, v)

	v0, err := a.Read(0)
	require.NoError(t, err)
	require.Equal(t, Empty(Width64), v0)
}

func TestOpenReadsExistingSize(t *testing.T) {
	f := openFile(t)
	_, err := Create(f, 0, 7, Width32)
	require.NoError(t, err)

	b, err := Open(f, 0, Width32)
	require.NoError(t, err)
	require.EqualValues(t, 7, b.Size())
}

func TestOutOfBoundsErrors(t *testing.T) {
	f := openFile(t)
	a, err := Create(f, 0, 2, Width32)
	require.NoError(t, err)

	_, err = a.Read(5)
	require.Error(t, err)
	require.Error(t, a.Write(5, 1))
}
