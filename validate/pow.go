package validate

import (
	"math/big"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// compactToBig expands Bitcoin's mantissa/exponent difficulty encoding.
// Duplicated locally rather than imported across packages, the same
// choice pools/work.go and populate/retarget.go already made for this
// exact arithmetic — it is a handful of lines, not a concern worth a
// shared internal package.
func compactToBig(bits uint32) *big.Int {
	mantissa := bits & 0x007fffff
	exponent := uint(bits >> 24)

	var result *big.Int
	if exponent <= 3 {
		mantissa >>= 8 * (3 - exponent)
		result = big.NewInt(int64(mantissa))
	} else {
		result = big.NewInt(int64(mantissa))
		result.Lsh(result, 8*(exponent-3))
	}

	if bits&0x00800000 != 0 {
		result.Neg(result)
	}
	return result
}

// hashToBig interprets a block hash as an unsigned integer the way
// Bitcoin's proof-of-work comparison does: chainhash.Hash stores its
// bytes in internal (little-endian) byte order, so the comparison
// reverses them before treating the hash as a big-endian magnitude.
func hashToBig(hash chainhash.Hash) *big.Int {
	var reversed chainhash.Hash
	for i := range hash {
		reversed[i] = hash[len(hash)-1-i]
	}
	return new(big.Int).SetBytes(reversed[:])
}

// belowTarget reports whether hash satisfies the proof-of-work target
// bits encodes.
func belowTarget(hash chainhash.Hash, bits uint32) bool {
	target := compactToBig(bits)
	if target.Sign() <= 0 {
		return false
	}
	return hashToBig(hash).Cmp(target) <= 0
}
