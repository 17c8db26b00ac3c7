package populate

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/database"
)

type fakePendingPool struct {
	has     map[chainhash.Hash]bool
	outputs map[wire.OutPoint]*wire.TxOut
}

func newFakePendingPool() *fakePendingPool {
	return &fakePendingPool{has: make(map[chainhash.Hash]bool), outputs: make(map[wire.OutPoint]*wire.TxOut)}
}

func (p *fakePendingPool) Has(hash chainhash.Hash) bool { return p.has[hash] }

func (p *fakePendingPool) Output(outpoint wire.OutPoint) (*wire.TxOut, bool) {
	out, ok := p.outputs[outpoint]
	return out, ok
}

func TestTransactionPopulatorPrefersPooledPrevout(t *testing.T) {
	fc := newFakeBlockChain()
	pool := newFakePendingPool()

	prevHash := chainhash.Hash{0x09}
	out := &wire.TxOut{Value: 777}
	pool.outputs[wire.OutPoint{Hash: prevHash, Index: 0}] = out

	tx := spendingTx(prevHash, 0)
	p := NewTransactionPopulator(fc, pool, 1)
	ctx, err := p.Populate(tx)
	require.NoError(t, err)
	require.Equal(t, out, ctx.Inputs[0].Output)
	require.False(t, ctx.Inputs[0].Confirmed)
}

func TestTransactionPopulatorFallsBackToConfirmed(t *testing.T) {
	fc := newFakeBlockChain()
	pool := newFakePendingPool()

	confirmed := coinbaseTx()
	fc.txs[confirmed.TxHash()] = &database.TxEntry{Tx: *confirmed}

	tx := spendingTx(confirmed.TxHash(), 0)
	p := NewTransactionPopulator(fc, pool, 1)
	ctx, err := p.Populate(tx)
	require.NoError(t, err)
	require.True(t, ctx.Inputs[0].Confirmed)
}

func TestTransactionPopulatorRejectsAlreadyPooled(t *testing.T) {
	fc := newFakeBlockChain()
	pool := newFakePendingPool()

	tx := spendingTx(chainhash.Hash{0x01}, 0)
	pool.has[tx.TxHash()] = true

	p := NewTransactionPopulator(fc, pool, 1)
	ctx, err := p.Populate(tx)
	require.NoError(t, err)
	require.True(t, ctx.Duplicate)
}
