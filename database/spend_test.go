package database

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"
)

func TestSpendTableStoreFetchUnspent(t *testing.T) {
	f, _ := openPair(t)
	tbl, err := CreateSpendTable(f, 0, 4096, 16)
	require.NoError(t, err)

	op := wire.OutPoint{Hash: chainhash.Hash{1}, Index: 0}
	_, found, err := tbl.Fetch(op)
	require.NoError(t, err)
	require.False(t, found)

	var spender Spender
	copy(spender.Hash[:], []byte{9, 9, 9})
	spender.Index = 2
	require.NoError(t, tbl.Store(op, spender))

	got, found, err := tbl.Fetch(op)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, spender, got)
}

func TestSpendTableRemoveRestoresUnspent(t *testing.T) {
	f, _ := openPair(t)
	tbl, err := CreateSpendTable(f, 0, 4096, 16)
	require.NoError(t, err)

	op := wire.OutPoint{Hash: chainhash.Hash{2}, Index: 1}
	require.NoError(t, tbl.Store(op, Spender{Index: 0}))
	require.NoError(t, tbl.Remove(op))

	_, found, err := tbl.Fetch(op)
	require.NoError(t, err)
	require.False(t, found)
}

// Removing an outpoint whose spend record was stored before another
// unrelated outpoint collided into the same bucket must leave the
// later outpoint's record intact.
func TestSpendTableRemoveDoesNotDisturbChainSiblings(t *testing.T) {
	f, _ := openPair(t)
	tbl, err := CreateSpendTable(f, 0, 4096, 4)
	require.NoError(t, err)

	// Same prevout hash, different output index: the bucket hash only
	// covers the key's first 8 bytes (the hash), so both land in the
	// same bucket regardless of index.
	var h0 chainhash.Hash
	op0 := wire.OutPoint{Hash: h0, Index: 0}
	op1 := wire.OutPoint{Hash: h0, Index: 4}

	require.NoError(t, tbl.Store(op0, Spender{Index: 1}))
	require.NoError(t, tbl.Store(op1, Spender{Index: 2}))

	require.NoError(t, tbl.Remove(op0))

	_, found0, err := tbl.Fetch(op0)
	require.NoError(t, err)
	require.False(t, found0)

	got1, found1, err := tbl.Fetch(op1)
	require.NoError(t, err)
	require.True(t, found1)
	require.Equal(t, uint32(2), got1.Index)
}
