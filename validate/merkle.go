package validate

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// merkleRoot computes the same pairwise double-SHA256 binary tree
// Bitcoin block headers commit to, duplicating the last hash at any
// level with an odd node count. No pack dependency exposes this
// directly — btcutil's BuildMerkleTreeStore lives in the dropped
// btcsuite/btcd/blockchain package, not the btcutil/chainhash pair this
// module depends on — so it is hand-rolled over chainhash.DoubleHashH,
// the same primitive chainhash itself is built from.
func merkleRoot(hashes []chainhash.Hash) chainhash.Hash {
	if len(hashes) == 0 {
		return chainhash.Hash{}
	}

	level := append([]chainhash.Hash(nil), hashes...)
	for len(level) > 1 {
		if len(level)%2 == 1 {
			level = append(level, level[len(level)-1])
		}
		next := make([]chainhash.Hash, len(level)/2)
		for i := range next {
			var buf [2 * chainhash.HashSize]byte
			copy(buf[:chainhash.HashSize], level[2*i][:])
			copy(buf[chainhash.HashSize:], level[2*i+1][:])
			next[i] = chainhash.DoubleHashH(buf[:])
		}
		level = next
	}
	return level[0]
}
