package populate

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
)

// PendingPool is the surface populate_transaction needs onto the
// mempool: whether a transaction is already pooled, and what output a
// pooled (not yet confirmed) transaction offers at a given index. The
// txpool package's state satisfies this without populate importing it
// back.
type PendingPool interface {
	Has(hash chainhash.Hash) bool
	Output(outpoint wire.OutPoint) (*wire.TxOut, bool)
}

// TransactionPopulator resolves a standalone transaction's inputs
// against both the confirmed chain and the mempool, grounded on
// original_source/include/bitcoin/blockchain/populate/populate_transaction.hpp's
// populate(tx, handler)/populate_inputs split. Unlike BlockPopulator it
// has no fork context: an unconfirmed transaction it is asked to
// populate is, by definition, not already anchored to any candidate
// branch.
type TransactionPopulator struct {
	chain   BlockChain
	pool    PendingPool
	buckets int
}

// NewTransactionPopulator builds a populator over chain and pool,
// fanning input resolution across buckets goroutines (at least 1).
func NewTransactionPopulator(chain BlockChain, pool PendingPool, buckets int) *TransactionPopulator {
	if buckets < 1 {
		buckets = 1
	}
	return &TransactionPopulator{chain: chain, pool: pool, buckets: buckets}
}

// Populate resolves tx's inputs, preferring the mempool (so a chain of
// unconfirmed spends still validates) and falling back to the confirmed
// chain.
func (p *TransactionPopulator) Populate(tx *wire.MsgTx) (*TransactionContext, error) {
	if p.pool != nil && p.pool.Has(tx.TxHash()) {
		return &TransactionContext{Duplicate: true}, nil
	}

	inputs := make([]PrevoutState, len(tx.TxIn))
	for i, in := range tx.TxIn {
		state, err := p.populatePrevout(in.PreviousOutPoint)
		if err != nil {
			return nil, err
		}
		inputs[i] = state
	}

	return &TransactionContext{Inputs: inputs}, nil
}

func (p *TransactionPopulator) populatePrevout(outpoint wire.OutPoint) (PrevoutState, error) {
	if p.pool != nil {
		if out, ok := p.pool.Output(outpoint); ok {
			return PrevoutState{Output: out}, nil
		}
	}

	entry, err := p.chain.FetchTx(outpoint.Hash)
	if err != nil {
		return PrevoutState{}, chain.New("populate_transaction", chain.KindDisk, err)
	}
	if entry == nil || int(outpoint.Index) >= len(entry.Tx.TxOut) {
		return PrevoutState{MissingPrevout: true}, nil
	}

	spent, err := p.chain.IsSpent(outpoint)
	if err != nil {
		return PrevoutState{}, chain.New("populate_transaction", chain.KindDisk, err)
	}

	return PrevoutState{
		Output:    entry.Tx.TxOut[outpoint.Index],
		Confirmed: true,
		Spent:     spent,
	}, nil
}
