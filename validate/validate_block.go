package validate

import (
	"context"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/populate"
)

// isCoinbase reports whether tx is the block-reward transaction: exactly
// one input, spending the null outpoint.
func isCoinbase(tx *wire.MsgTx) bool {
	if len(tx.TxIn) != 1 {
		return false
	}
	prevout := tx.TxIn[0].PreviousOutPoint
	return prevout.Hash == chainhash.Hash{} && prevout.Index == wire.MaxPrevOutIndex
}

// CheckBlock runs block's standalone, context-free rules: at least one
// transaction, the first and only the first is coinbase, the merkle
// root committed in the header matches the transaction list, the
// serialized size and legacy sigop count stay within settings' budgets,
// and every transaction individually passes CheckTransaction. Grounded
// on
// original_source/include/bitcoin/blockchain/validation/validate_block.hpp's
// check() stage.
func CheckBlock(block *wire.MsgBlock, settings chain.BlockchainSettings) error {
	txs := block.Transactions
	if len(txs) == 0 {
		return chain.New("check_block", chain.KindConsensus, nil)
	}
	if !isCoinbase(txs[0]) {
		return chain.New("check_block", chain.KindConsensus, nil)
	}
	for _, tx := range txs[1:] {
		if isCoinbase(tx) {
			return chain.New("check_block", chain.KindConsensus, nil)
		}
	}

	hashes := make([]chainhash.Hash, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.TxHash()
	}
	if merkleRoot(hashes) != block.Header.MerkleRoot {
		return chain.New("check_block", chain.KindConsensus, nil)
	}

	if settings.BlockBytesLimit > 0 && uint32(block.SerializeSize()) > settings.BlockBytesLimit {
		return chain.New("check_block", chain.KindConsensus, nil)
	}

	sigops := 0
	for _, tx := range txs {
		for _, out := range tx.TxOut {
			sigops += txscript.GetSigOpCount(out.PkScript)
		}
	}
	if settings.BlockSigopLimit > 0 && uint32(sigops) > settings.BlockSigopLimit {
		return chain.New("check_block", chain.KindConsensus, nil)
	}

	for _, tx := range txs[1:] {
		if err := CheckTransaction(tx, settings); err != nil {
			return err
		}
	}

	return nil
}

// AcceptBlock runs block's context-dependent rules: its header must
// pass ValidateHeader against headerCtx, and every non-coinbase
// transaction must pass AcceptTransaction against its entry in
// blockCtx. The coinbase's claimed reward is checked against the sum of
// collected fees plus the subsidy the caller supplies, since subsidy
// computation depends on height alone and is the organizer's
// responsibility, not the validator's.
func AcceptBlock(block *wire.MsgBlock, headerCtx populate.HeaderContext, blockCtx *populate.BlockContext, settings chain.BlockchainSettings, checkpoints *chain.Checkpoints, subsidy int64, now time.Time) error {
	if err := ValidateHeader(&block.Header, headerCtx, settings, checkpoints, now); err != nil {
		return err
	}

	txs := block.Transactions
	if len(blockCtx.Transactions) != len(txs) {
		return chain.New("accept_block", chain.KindConsensus, nil)
	}

	var fees int64
	for i, tx := range txs[1:] {
		tctx := &blockCtx.Transactions[i+1]
		if err := AcceptTransaction(tx, tctx, settings); err != nil {
			return err
		}
		fees += Fee(tx, tctx)
	}

	var coinbaseOut int64
	for _, out := range txs[0].TxOut {
		coinbaseOut += out.Value
	}
	if coinbaseOut > subsidy+fees {
		return chain.New("accept_block", chain.KindConsensus, nil)
	}

	return nil
}

// ConnectBlock verifies every non-coinbase transaction's input scripts,
// fanning the per-transaction work across buckets goroutines the way
// original_source's validate_block::connect dispatches one
// validate_transaction::connect per transaction onto the organizer's
// thread pool.
func ConnectBlock(ctx context.Context, block *wire.MsgBlock, blockCtx *populate.BlockContext, bip chain.BIPFlags, buckets int) error {
	txs := block.Transactions
	if len(blockCtx.Transactions) != len(txs) {
		return chain.New("connect_block", chain.KindConsensus, nil)
	}
	if buckets < 1 {
		buckets = 1
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for bucket := 0; bucket < buckets; bucket++ {
		bucket := bucket
		group.Go(func() error {
			for i := 1 + bucket; i < len(txs); i += buckets {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}
				if err := ConnectTransaction(groupCtx, txs[i], &blockCtx.Transactions[i], bip, 1); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return group.Wait()
}
