package validate

import (
	"context"

	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/populate"
)

// maxStandaloneSigops bounds the legacy sigop count a single standalone
// (non-coinbase) transaction may carry, independent of any block budget.
const maxStandaloneSigops = 20_000

// CheckTransaction runs tx's standalone, context-free rules: it has at
// least one input and one output, its serialized size does not exceed
// the block byte budget on its own, and its legacy sigop count does not
// exceed maxStandaloneSigops. Grounded on
// original_source/include/bitcoin/blockchain/validation/validate_transaction.hpp's
// check() stage.
func CheckTransaction(tx *wire.MsgTx, settings chain.BlockchainSettings) error {
	if len(tx.TxIn) == 0 || len(tx.TxOut) == 0 {
		return chain.New("check_transaction", chain.KindConsensus, nil)
	}

	if settings.BlockBytesLimit > 0 && uint32(tx.SerializeSize()) > settings.BlockBytesLimit {
		return chain.New("check_transaction", chain.KindConsensus, nil)
	}

	seen := make(map[wire.OutPoint]struct{}, len(tx.TxIn))
	for _, in := range tx.TxIn {
		if _, dup := seen[in.PreviousOutPoint]; dup {
			return chain.New("check_transaction", chain.KindConsensus, nil)
		}
		seen[in.PreviousOutPoint] = struct{}{}
	}

	sigops := 0
	for _, out := range tx.TxOut {
		sigops += txscript.GetSigOpCount(out.PkScript)
	}
	if sigops > maxStandaloneSigops {
		return chain.New("check_transaction", chain.KindConsensus, nil)
	}

	return nil
}

// AcceptTransaction runs tx's context-dependent rules against ctx, the
// TransactionContext populate/ already resolved: it must not already be
// confirmed (duplicate), every input's prevout must exist and not
// already be spent, and the minimum dust-output rule applies to its own
// outputs.
func AcceptTransaction(tx *wire.MsgTx, ctx *populate.TransactionContext, settings chain.BlockchainSettings) error {
	if ctx.Duplicate {
		return chain.New("accept_transaction", chain.KindDuplicate, nil)
	}

	if len(ctx.Inputs) != len(tx.TxIn) {
		return chain.New("accept_transaction", chain.KindConsensus, nil)
	}

	var inputValue int64
	for _, in := range ctx.Inputs {
		if in.MissingPrevout {
			return chain.New("accept_transaction", chain.KindMissingPrevout, nil)
		}
		if in.Spent {
			return chain.New("accept_transaction", chain.KindConsensus, nil)
		}
		inputValue += in.Output.Value
	}

	var outputValue int64
	for _, out := range tx.TxOut {
		if settings.MinimumOutputSatoshis > 0 && out.Value >= 0 && uint64(out.Value) < settings.MinimumOutputSatoshis {
			return chain.New("accept_transaction", chain.KindConsensus, nil)
		}
		outputValue += out.Value
	}

	if outputValue > inputValue {
		return chain.New("accept_transaction", chain.KindConsensus, nil)
	}

	return nil
}

// Fee reports tx's fee given ctx, the sum of input values less the sum
// of output values. Callers (the transaction organizer and AcceptBlock)
// call this only after AcceptTransaction has confirmed inputs cover
// outputs.
func Fee(tx *wire.MsgTx, ctx *populate.TransactionContext) int64 {
	var inputValue, outputValue int64
	for _, in := range ctx.Inputs {
		if in.Output != nil {
			inputValue += in.Output.Value
		}
	}
	for _, out := range tx.TxOut {
		outputValue += out.Value
	}
	return inputValue - outputValue
}

// ConnectTransaction verifies every non-coinbase input's unlocking
// script against its resolved prevout, fanning the work across buckets
// goroutines the same way populate_block fans prevout resolution —
// grounded on original_source's validate_transaction::connect_inputs,
// which likewise dispatches one script check per input onto the thread
// pool.
func ConnectTransaction(ctx context.Context, tx *wire.MsgTx, tctx *populate.TransactionContext, bip chain.BIPFlags, buckets int) error {
	if len(tctx.Inputs) != len(tx.TxIn) {
		return chain.New("connect_transaction", chain.KindConsensus, nil)
	}
	if buckets < 1 {
		buckets = 1
	}

	sigCache := txscript.NewSigCache(0)
	hashCache := txscript.NewTxSigHashes(tx)

	group, groupCtx := errgroup.WithContext(ctx)
	for bucket := 0; bucket < buckets; bucket++ {
		bucket := bucket
		group.Go(func() error {
			for i := bucket; i < len(tx.TxIn); i += buckets {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}
				prevout := tctx.Inputs[i]
				if prevout.Output == nil {
					return chain.New("connect_transaction", chain.KindMissingPrevout, nil)
				}
				if err := VerifyScript(tx, i, prevout.Output, bip, sigCache, hashCache); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return group.Wait()
}
