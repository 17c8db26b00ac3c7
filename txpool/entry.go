// Package txpool holds the unconfirmed transaction pool and block
// template assembly: transaction_entry's parent/child links,
// transaction_pool_state's budgets and priority maps, and the
// stack_evaluator family that walks the pool's dependency graph
// (spec.md §4.J).
package txpool

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
)

// entry is transaction_entry (spec.md §4.J): a pooled transaction with
// its cached fee, serialized size and legacy sigop count, and its
// parent/child links to other pooled transactions. An entry with no
// in-pool parents is an anchor — every ancestor of its unconfirmed
// spends is either confirmed or simply absent from the pool.
type entry struct {
	tx     *wire.MsgTx
	hash   chainhash.Hash
	fee    int64
	size   int
	sigops int

	parents  map[chainhash.Hash]*entry
	children map[chainhash.Hash]*entry
}

func newEntry(tx *wire.MsgTx, fee int64) *entry {
	return &entry{
		tx:       tx,
		hash:     tx.TxHash(),
		fee:      fee,
		size:     tx.SerializeSize(),
		sigops:   sigopCount(tx),
		parents:  make(map[chainhash.Hash]*entry),
		children: make(map[chainhash.Hash]*entry),
	}
}

func (e *entry) isAnchor() bool { return len(e.parents) == 0 }

func sigopCount(tx *wire.MsgTx) int {
	n := 0
	for _, out := range tx.TxOut {
		n += txscript.GetSigOpCount(out.PkScript)
	}
	return n
}
