package populate

import (
	"context"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/database"
	"github.com/coinstack/blockchain/pools"
)

// BlockChain is the store surface populate_block needs: confirmed
// transaction lookup and spend status, the same pair store.Store
// exposes.
type BlockChain interface {
	FetchTx(hash chainhash.Hash) (*database.TxEntry, error)
	IsSpent(outpoint wire.OutPoint) (bool, error)
}

// PrevoutState is what populate_block determined about one input's
// previous output: where it lives and whether it is already spent.
type PrevoutState struct {
	Output         *wire.TxOut
	Confirmed      bool
	Spent          bool
	MissingPrevout bool
}

// TransactionContext holds one transaction's populated input state.
type TransactionContext struct {
	Duplicate bool
	Inputs    []PrevoutState
}

// BlockContext is populate_block's output: one TransactionContext per
// transaction in the block, coinbase included (with an empty Inputs
// slice, since coinbase has no prevouts to resolve).
type BlockContext struct {
	Transactions []TransactionContext
}

// BlockPopulator resolves every non-coinbase input's previous output and
// flags BIP30 duplicate coinbase hashes, grounded on
// original_source/include/bitcoin/blockchain/populate/populate_block.hpp's
// populate_coinbase/populate_non_coinbase/populate_transactions split.
// buckets controls how many goroutines populate_transactions fans the
// block's transaction list across, mirroring populate_block's own
// bucket/buckets slicing.
type BlockPopulator struct {
	chain   BlockChain
	buckets int
}

// NewBlockPopulator builds a populator over chain, fanning transaction
// population across buckets goroutines (at least 1).
func NewBlockPopulator(chain BlockChain, buckets int) *BlockPopulator {
	if buckets < 1 {
		buckets = 1
	}
	return &BlockPopulator{chain: chain, buckets: buckets}
}

// Populate resolves block's transactions against the confirmed chain
// and against fork, the candidate blocks already accepted below block
// but not yet confirmed, so a spend chain entirely within an unconfirmed
// fork still resolves.
func (p *BlockPopulator) Populate(ctx context.Context, block *wire.MsgBlock, fork *pools.Fork) (*BlockContext, error) {
	txs := block.Transactions
	if len(txs) == 0 {
		return nil, chain.New("populate_block", chain.KindConsensus, nil)
	}

	pending := buildPendingIndex(fork)
	result := &BlockContext{Transactions: make([]TransactionContext, len(txs))}

	coinbaseHash := txs[0].TxHash()
	duplicate, err := p.populateDuplicate(coinbaseHash)
	if err != nil {
		return nil, err
	}
	result.Transactions[0] = TransactionContext{Duplicate: duplicate}

	if len(txs) == 1 {
		return result, nil
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for bucket := 0; bucket < p.buckets; bucket++ {
		bucket := bucket
		group.Go(func() error {
			for i := 1 + bucket; i < len(txs); i += p.buckets {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}
				tctx, err := p.populateNonCoinbase(txs[i], pending, block.Transactions[:i])
				if err != nil {
					return err
				}
				result.Transactions[i] = *tctx
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	return result, nil
}

func (p *BlockPopulator) populateDuplicate(hash chainhash.Hash) (bool, error) {
	entry, err := p.chain.FetchTx(hash)
	if err != nil {
		return false, chain.New("populate_block", chain.KindDisk, err)
	}
	return entry != nil, nil
}

func (p *BlockPopulator) populateNonCoinbase(tx *wire.MsgTx, pending map[wire.OutPoint]*wire.TxOut, earlier []*wire.MsgTx) (*TransactionContext, error) {
	hash := tx.TxHash()
	duplicate, err := p.populateDuplicate(hash)
	if err != nil {
		return nil, err
	}

	inputs := make([]PrevoutState, len(tx.TxIn))
	inBlock := indexOutputs(earlier)

	for i, in := range tx.TxIn {
		state, err := p.populatePrevout(in.PreviousOutPoint, pending, inBlock)
		if err != nil {
			return nil, err
		}
		inputs[i] = state
	}

	return &TransactionContext{Duplicate: duplicate, Inputs: inputs}, nil
}

// populatePrevout locates outpoint's output, preferring the block's own
// earlier transactions, then the candidate fork below the block, then
// the confirmed chain, in that order — the same precedence
// populate_base::populate_prevout gives the pool over the confirmed
// store.
func (p *BlockPopulator) populatePrevout(outpoint wire.OutPoint, pending map[wire.OutPoint]*wire.TxOut, inBlock map[wire.OutPoint]*wire.TxOut) (PrevoutState, error) {
	if out, ok := inBlock[outpoint]; ok {
		return PrevoutState{Output: out}, nil
	}
	if out, ok := pending[outpoint]; ok {
		return PrevoutState{Output: out}, nil
	}

	entry, err := p.chain.FetchTx(outpoint.Hash)
	if err != nil {
		return PrevoutState{}, chain.New("populate_block", chain.KindDisk, err)
	}
	if entry == nil || int(outpoint.Index) >= len(entry.Tx.TxOut) {
		return PrevoutState{MissingPrevout: true}, nil
	}

	spent, err := p.chain.IsSpent(outpoint)
	if err != nil {
		return PrevoutState{}, chain.New("populate_block", chain.KindDisk, err)
	}

	return PrevoutState{
		Output:    entry.Tx.TxOut[outpoint.Index],
		Confirmed: true,
		Spent:     spent,
	}, nil
}

func indexOutputs(txs []*wire.MsgTx) map[wire.OutPoint]*wire.TxOut {
	index := make(map[wire.OutPoint]*wire.TxOut)
	for _, tx := range txs {
		hash := tx.TxHash()
		for i, out := range tx.TxOut {
			index[wire.OutPoint{Hash: hash, Index: uint32(i)}] = out
		}
	}
	return index
}

// buildPendingIndex indexes every output of every block already pushed
// onto fork, so a spend chain entirely within an as-yet-unconfirmed
// candidate branch still resolves.
func buildPendingIndex(fork *pools.Fork) map[wire.OutPoint]*wire.TxOut {
	index := make(map[wire.OutPoint]*wire.TxOut)
	if fork == nil {
		return index
	}
	for _, block := range fork.Blocks() {
		for outpoint, out := range indexOutputs(block.Transactions) {
			index[outpoint] = out
		}
	}
	return index
}
