package validate

import (
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
)

// VerifyScript is the sole boundary onto github.com/btcsuite/btcd/txscript
// per spec.md §1's verify_script contract: build the engine over prevOut's
// script and tx's claiming input, then execute it. sigCache and hashCache
// are shared across a transaction's inputs by the caller so repeated signature
// and sighash-midstate work across inputs of the same transaction is not
// redone per input.
//
// UseLibconsensus in chain.BlockchainSettings has no analogue here — there
// is no bundled libbitcoinconsensus in this dependency pack, and txscript
// is itself the reference-consensus script interpreter this module
// depends on, so the flag is accepted but does not change which engine
// runs.
func VerifyScript(tx *wire.MsgTx, inputIndex int, prevOut *wire.TxOut, bip chain.BIPFlags, sigCache *txscript.SigCache, hashCache *txscript.TxSigHashes) error {
	engine, err := txscript.NewEngine(prevOut.PkScript, tx, inputIndex, scriptFlags(bip), sigCache, hashCache, prevOut.Value)
	if err != nil {
		return chain.New("verify_script", chain.KindConsensus, err)
	}
	if err := engine.Execute(); err != nil {
		return chain.New("verify_script", chain.KindConsensus, err)
	}
	return nil
}
