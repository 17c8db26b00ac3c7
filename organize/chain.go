package organize

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/database"
)

// Chain is the confirmed-store surface BlockOrganizer and
// TransactionOrganizer need: the read accessors populate/ uses to
// resolve prevout and header context, plus the push/pop pair that
// actually commits or undoes a confirmed block. store.Store satisfies
// this without organize importing it back — the same duck-typed
// boundary populate.BlockChain/HeaderChain already draw against
// store.Store.
type Chain interface {
	TopHeight() (uint32, bool)
	HeaderAt(height uint32) (wire.BlockHeader, bool, error)
	FetchTx(hash chainhash.Hash) (*database.TxEntry, error)
	IsSpent(outpoint wire.OutPoint) (bool, error)
	Push(block *wire.MsgBlock, height uint32) error
	Pop() (uint32, error)
}

// Pool is the mempool surface TransactionOrganizer commits accepted
// transactions to and removes confirmed ones from — the txpool
// package's transaction_pool_state satisfies this, and also satisfies
// populate.PendingPool's narrower Has/Output pair, so a single state
// value serves both populate_transaction's read path and organize's
// write path (spec.md §4.J).
type Pool interface {
	Has(hash chainhash.Hash) bool
	Output(outpoint wire.OutPoint) (*wire.TxOut, bool)
	Insert(tx *wire.MsgTx, fee int64) error
	Remove(hash chainhash.Hash)
}
