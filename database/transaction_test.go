package database

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/internal/htdb"
)

func sampleTx(n int) wire.MsgTx {
	tx := wire.MsgTx{Version: 1, LockTime: 0}
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: uint32(n)},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	for i := 0; i < n; i++ {
		tx.AddTxOut(&wire.TxOut{Value: int64(1000 * (i + 1)), PkScript: []byte{0x76, 0xa9}})
	}
	return tx
}

func TestTxTableStoreFetchRoundTrip(t *testing.T) {
	f, _ := openPair(t)
	tbl, err := CreateTxTable(f, 0, 4096, 16)
	require.NoError(t, err)

	hash := chainhash.Hash{0x01}
	entry := &TxEntry{Height: 10, IndexInBlock: 2, Tx: sampleTx(1)}
	require.NoError(t, tbl.Store(hash, entry))

	got, err := tbl.Fetch(hash)
	require.NoError(t, err)
	require.Equal(t, entry.Height, got.Height)
	require.Equal(t, entry.IndexInBlock, got.IndexInBlock)
	require.Equal(t, entry.Tx.TxHash(), got.Tx.TxHash())
}

// Two transactions of very different serialized size hashing into the
// same bucket must not corrupt each other's read — the regression this
// guards against is internal/htdb's SlabTable.find once assuming a
// uniform per-bucket value size.
func TestTxTableHandlesVaryingSerializedSizeInSameBucket(t *testing.T) {
	f, _ := openPair(t)
	tbl, err := CreateTxTable(f, 0, 4096, 4)
	require.NoError(t, err)

	small := &TxEntry{Height: 1, IndexInBlock: 0, Tx: sampleTx(1)}
	big := &TxEntry{Height: 2, IndexInBlock: 0, Tx: sampleTx(50)}

	hashSmall := chainhash.Hash{0xa1}
	hashBig := chainhash.Hash{0x05} // low byte &3 == 1, same bucket as hashSmall with 4 buckets
	require.Equal(t, htdb.Bucket(hashSmall[:], 4), htdb.Bucket(hashBig[:], 4))
	require.NoError(t, tbl.Store(hashSmall, small))
	require.NoError(t, tbl.Store(hashBig, big))

	gotSmall, err := tbl.Fetch(hashSmall)
	require.NoError(t, err)
	require.Equal(t, small.Tx.TxHash(), gotSmall.Tx.TxHash())

	gotBig, err := tbl.Fetch(hashBig)
	require.NoError(t, err)
	require.Equal(t, big.Tx.TxHash(), gotBig.Tx.TxHash())
	require.Len(t, gotBig.Tx.TxOut, 50)
}

func TestTxTableExistsAndRemove(t *testing.T) {
	f, _ := openPair(t)
	tbl, err := CreateTxTable(f, 0, 4096, 16)
	require.NoError(t, err)

	hash := chainhash.Hash{0x02}
	ok, err := tbl.Exists(hash)
	require.NoError(t, err)
	require.False(t, ok)

	entry := &TxEntry{Height: 1, IndexInBlock: 0, Tx: sampleTx(1)}
	require.NoError(t, tbl.Store(hash, entry))

	ok, err = tbl.Exists(hash)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, tbl.Remove(hash, entry))
	ok, err = tbl.Exists(hash)
	require.NoError(t, err)
	require.False(t, ok)
}
