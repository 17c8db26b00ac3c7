package store

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/chain"
)

func testSettings() chain.Settings {
	s := chain.Default()
	s.Database.BlockTableBuckets = 16
	s.Database.TransactionTableBuckets = 16
	s.Database.SpendTableBuckets = 16
	s.Database.HistoryTableBuckets = 16
	s.Database.HSDB.Enabled = false
	return s
}

// p2pkhScript builds a minimal OP_DUP OP_HASH160 <20-byte-hash>
// OP_EQUALVERIFY OP_CHECKSIG script paying addr.
func p2pkhScript(t *testing.T, addr byte) []byte {
	t.Helper()
	hash := make([]byte, 20)
	hash[0] = addr
	script, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_DUP).
		AddOp(txscript.OP_HASH160).
		AddData(hash).
		AddOp(txscript.OP_EQUALVERIFY).
		AddOp(txscript.OP_CHECKSIG).
		Script()
	require.NoError(t, err)
	return script
}

func coinbaseTx(t *testing.T, payAddr byte, value int64) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Index: wire.MaxPrevOutIndex},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, p2pkhScript(t, payAddr)))
	return tx
}

func spendTx(t *testing.T, prevHash chainhash.Hash, prevIndex uint32, payAddr byte, value int64) *wire.MsgTx {
	t.Helper()
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: prevHash, Index: prevIndex},
		Sequence:         wire.MaxTxInSequenceNum,
	})
	tx.AddTxOut(wire.NewTxOut(value, p2pkhScript(t, payAddr)))
	return tx
}

func blockWith(txs ...*wire.MsgTx) *wire.MsgBlock {
	b := wire.NewMsgBlock(&wire.BlockHeader{Version: 1})
	for _, tx := range txs {
		b.AddTransaction(tx)
	}
	return b
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Create(t.TempDir(), testSettings(), 1024)
	require.NoError(t, err)
	return s
}

func TestStorePushRecordsBlockAndTopHeight(t *testing.T) {
	s := newTestStore(t)

	coinbase := coinbaseTx(t, 0xaa, 5_000_000_000)
	block := blockWith(coinbase)

	require.NoError(t, s.Push(block, 0))

	top, ok := s.blocks.TopHeight()
	require.True(t, ok)
	require.Equal(t, uint32(0), top)

	entry, err := s.txs.Fetch(coinbase.TxHash())
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Equal(t, uint32(0), entry.Height)
}

func TestStorePushThenSpendRecordsHistoryAndSpend(t *testing.T) {
	s := newTestStore(t)

	coinbase := coinbaseTx(t, 0xaa, 5_000_000_000)
	require.NoError(t, s.Push(blockWith(coinbase), 0))

	addr := make([]byte, 20)
	addr[0] = 0xaa
	require.True(t, s.history.HasHistory(addr))
	rows, err := s.history.Rows(addr)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	spend := spendTx(t, coinbase.TxHash(), 0, 0xbb, 4_999_000_000)
	require.NoError(t, s.Push(blockWith(spend), 1))

	_, spent, err := s.spends.Fetch(wire.OutPoint{Hash: coinbase.TxHash(), Index: 0})
	require.NoError(t, err)
	require.True(t, spent)

	rows, err = s.history.Rows(addr)
	require.NoError(t, err)
	require.Len(t, rows, 2) // original output row, then the spend row
}

func TestStorePopUndoesPush(t *testing.T) {
	s := newTestStore(t)

	coinbase := coinbaseTx(t, 0xaa, 5_000_000_000)
	require.NoError(t, s.Push(blockWith(coinbase), 0))

	spend := spendTx(t, coinbase.TxHash(), 0, 0xbb, 4_999_000_000)
	require.NoError(t, s.Push(blockWith(spend), 1))

	poppedHeight, err := s.Pop()
	require.NoError(t, err)
	require.Equal(t, uint32(1), poppedHeight)

	top, ok := s.blocks.TopHeight()
	require.True(t, ok)
	require.Equal(t, uint32(0), top)

	_, stillSpent, err := s.spends.Fetch(wire.OutPoint{Hash: coinbase.TxHash(), Index: 0})
	require.NoError(t, err)
	require.False(t, stillSpent)

	addr := make([]byte, 20)
	addr[0] = 0xaa
	rows, err := s.history.Rows(addr)
	require.NoError(t, err)
	require.Len(t, rows, 1) // only the original output row remains

	exists, err := s.txs.Exists(spend.TxHash())
	require.NoError(t, err)
	require.False(t, exists)
}

func TestStorePopAtGenesisLeavesEmptyChain(t *testing.T) {
	s := newTestStore(t)

	coinbase := coinbaseTx(t, 0xaa, 5_000_000_000)
	require.NoError(t, s.Push(blockWith(coinbase), 0))

	poppedHeight, err := s.Pop()
	require.NoError(t, err)
	require.Equal(t, uint32(0), poppedHeight)

	_, ok := s.blocks.TopHeight()
	require.False(t, ok)
}
