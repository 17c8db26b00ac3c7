package validate

import (
	"github.com/btcsuite/btcd/txscript"

	"github.com/coinstack/blockchain/chain"
)

// scriptFlags maps the activation flags on chain.BlockchainSettings onto
// the txscript.ScriptFlags verify_script actually consumes, grounded on
// original_source/include/bitcoin/blockchain/validation/validate_input.hpp's
// script_context table.
func scriptFlags(bip chain.BIPFlags) txscript.ScriptFlags {
	var flags txscript.ScriptFlags
	if bip.BIP16 {
		flags |= txscript.ScriptBip16
	}
	if bip.BIP65 {
		flags |= txscript.ScriptVerifyCheckLockTimeVerify
	}
	if bip.BIP66 {
		flags |= txscript.ScriptVerifyDERSignatures
	}
	if bip.BIP112 {
		flags |= txscript.ScriptVerifyCheckSequenceVerify
	}
	if bip.BIP141 || bip.BIP143 {
		flags |= txscript.ScriptVerifyWitness
		flags |= txscript.ScriptStrictMultiSig
	}
	if bip.BIP147 {
		flags |= txscript.ScriptVerifyNullFail
	}
	if bip.BIP90 {
		flags |= txscript.ScriptVerifyCleanStack
	}
	return flags
}
