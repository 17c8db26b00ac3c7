package pools

import (
	"math/big"

	"github.com/holiman/uint256"
)

// compactToBig expands a block header's compact "bits" encoding into the
// full target it represents, the same expansion
// daglabs-btcd/util.CompactToBig and btcsuite/btcd/blockchain.CompactToBig
// perform (a mantissa/exponent encoding: low 3 bytes are the mantissa,
// the high byte is the byte-length of the target). This stays on
// math/big rather than uint256.Int: the reciprocal step below needs a
// 257-bit numerator (2^256), one bit wider than uint256.Int's fixed
// 256-bit width can hold.
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

var oneLsh256 = new(big.Int).Lsh(big.NewInt(1), 256)

// calcWork converts a header's difficulty bits into the work it
// represents, following the same target-reciprocal formula
// btcsuite/btcd/blockchain.CalcWork uses: work = 2^256 / (target+1), so
// a smaller target (harder difficulty) yields more work. The result
// always fits in 256 bits, so it converts cleanly into a uint256.Int —
// the type turbo-geth's header_data_struct.go uses for
// Anchor.totalDifficulty/Tip.cumulativeDifficulty, adopted here for the
// same cumulative-sum role in candidateChain.Difficulty.
func calcWork(bits uint32) *uint256.Int {
	target := compactToBig(bits)
	if target.Sign() <= 0 {
		return new(uint256.Int)
	}
	denominator := new(big.Int).Add(target, big.NewInt(1))
	workBig := new(big.Int).Div(oneLsh256, denominator)
	work, overflow := uint256.FromBig(workBig)
	if overflow {
		// unreachable: workBig = 2^256/(target+1) < 2^256 whenever
		// target >= 1, which the Sign() check above guarantees.
		return new(uint256.Int).SetAllOne()
	}
	return work
}
