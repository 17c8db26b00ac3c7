package validate

import (
	"testing"

	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/populate"
)

func simpleTx(inputs, outputValue int64) *wire.MsgTx {
	tx := wire.NewMsgTx(wire.TxVersion)
	for i := int64(0); i < inputs; i++ {
		tx.AddTxIn(&wire.TxIn{PreviousOutPoint: wire.OutPoint{Index: uint32(i)}})
	}
	tx.AddTxOut(&wire.TxOut{Value: outputValue})
	return tx
}

func TestCheckTransactionRejectsNoInputs(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	tx.AddTxOut(&wire.TxOut{Value: 1})
	require.Error(t, CheckTransaction(tx, chain.BlockchainSettings{}))
}

func TestCheckTransactionRejectsDuplicateInputs(t *testing.T) {
	tx := wire.NewMsgTx(wire.TxVersion)
	outpoint := wire.OutPoint{Index: 0}
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: outpoint})
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: outpoint})
	tx.AddTxOut(&wire.TxOut{Value: 1})
	require.Error(t, CheckTransaction(tx, chain.BlockchainSettings{}))
}

func TestCheckTransactionAcceptsOrdinaryTransaction(t *testing.T) {
	tx := simpleTx(1, 1000)
	require.NoError(t, CheckTransaction(tx, chain.BlockchainSettings{}))
}

func TestAcceptTransactionRejectsMissingPrevout(t *testing.T) {
	tx := simpleTx(1, 1000)
	ctx := &populate.TransactionContext{Inputs: []populate.PrevoutState{{MissingPrevout: true}}}
	err := AcceptTransaction(tx, ctx, chain.BlockchainSettings{})
	require.Error(t, err)
	require.Equal(t, chain.KindMissingPrevout, chain.Of(err))
}

func TestAcceptTransactionRejectsAlreadySpent(t *testing.T) {
	tx := simpleTx(1, 1000)
	ctx := &populate.TransactionContext{Inputs: []populate.PrevoutState{{Output: &wire.TxOut{Value: 2000}, Confirmed: true, Spent: true}}}
	err := AcceptTransaction(tx, ctx, chain.BlockchainSettings{})
	require.Error(t, err)
}

func TestAcceptTransactionRejectsOverspend(t *testing.T) {
	tx := simpleTx(1, 5000)
	ctx := &populate.TransactionContext{Inputs: []populate.PrevoutState{{Output: &wire.TxOut{Value: 1000}, Confirmed: true}}}
	err := AcceptTransaction(tx, ctx, chain.BlockchainSettings{})
	require.Error(t, err)
	require.Equal(t, chain.KindConsensus, chain.Of(err))
}

func TestAcceptTransactionRejectsDustOutput(t *testing.T) {
	tx := simpleTx(1, 10)
	ctx := &populate.TransactionContext{Inputs: []populate.PrevoutState{{Output: &wire.TxOut{Value: 2000}, Confirmed: true}}}
	err := AcceptTransaction(tx, ctx, chain.BlockchainSettings{MinimumOutputSatoshis: 500})
	require.Error(t, err)
}

func TestAcceptTransactionAcceptsOrdinarySpend(t *testing.T) {
	tx := simpleTx(1, 1000)
	ctx := &populate.TransactionContext{Inputs: []populate.PrevoutState{{Output: &wire.TxOut{Value: 2000}, Confirmed: true}}}
	require.NoError(t, AcceptTransaction(tx, ctx, chain.BlockchainSettings{MinimumOutputSatoshis: 500}))
	require.Equal(t, int64(1000), Fee(tx, ctx))
}
