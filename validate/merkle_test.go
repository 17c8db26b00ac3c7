package validate

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestMerkleRootSingleLeaf(t *testing.T) {
	h := chainhash.Hash{0x01}
	require.Equal(t, h, merkleRoot([]chainhash.Hash{h}))
}

func TestMerkleRootDuplicatesOddLast(t *testing.T) {
	a, b, c := chainhash.Hash{0x01}, chainhash.Hash{0x02}, chainhash.Hash{0x03}
	withExplicitDup := merkleRoot([]chainhash.Hash{a, b, c, c})
	withImplicitDup := merkleRoot([]chainhash.Hash{a, b, c})
	require.Equal(t, withExplicitDup, withImplicitDup)
}

func TestMerkleRootOrderSensitive(t *testing.T) {
	a, b := chainhash.Hash{0x01}, chainhash.Hash{0x02}
	require.NotEqual(t, merkleRoot([]chainhash.Hash{a, b}), merkleRoot([]chainhash.Hash{b, a}))
}
