package populate

import (
	"math/big"
	"time"
)

// retargetInterval is the number of blocks between difficulty
// recalculations (two weeks of blocks at the ten-minute target spacing).
const retargetInterval = 2016

const (
	targetTimespan = 14 * 24 * time.Hour
	targetSpacing  = 10 * time.Minute
)

var powLimit = compactToBig(0x1d00ffff)

// compactToBig expands Bitcoin's mantissa/exponent difficulty encoding,
// mirroring pools.compactToBig but kept local: populate needs the
// inverse (bigToCompact) too, and the two belong together.
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

// bigToCompact is compactToBig's inverse.
func bigToCompact(n *big.Int) uint32 {
	if n.Sign() == 0 {
		return 0
	}

	var mantissa uint32
	exponent := uint(len(n.Bytes()))
	if exponent <= 3 {
		mantissa = uint32(n.Bits()[0])
		mantissa <<= 8 * (3 - exponent)
	} else {
		shifted := new(big.Int).Rsh(n, 8*(exponent-3))
		mantissa = uint32(shifted.Bits()[0])
	}

	if mantissa&0x00800000 != 0 {
		mantissa >>= 8
		exponent++
	}

	compact := uint32(exponent)<<24 | mantissa
	if n.Sign() < 0 {
		compact |= 0x00800000
	}
	return compact
}

// retarget computes the bits for the first block of a new difficulty
// period from the timespan actually taken by the period just completed,
// following the same bound-to-[1/4x,4x] clamp libbitcoin's
// chain_state::work_required applies before populate_header accepts a
// branch's proof of work.
func retarget(firstTimestamp, lastTimestamp time.Time, lastBits uint32) uint32 {
	actual := lastTimestamp.Sub(firstTimestamp)
	if actual < targetTimespan/4 {
		actual = targetTimespan / 4
	}
	if actual > targetTimespan*4 {
		actual = targetTimespan * 4
	}

	target := compactToBig(lastBits)
	target.Mul(target, big.NewInt(int64(actual)))
	target.Div(target, big.NewInt(int64(targetTimespan)))
	if target.Cmp(powLimit) > 0 {
		target = powLimit
	}
	return bigToCompact(target)
}

// retargetsAt reports whether height begins a new difficulty period and
// therefore needs retarget rather than simply carrying the parent's bits
// forward.
func retargetsAt(height uint32) bool {
	return height%retargetInterval == 0
}
