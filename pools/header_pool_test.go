package pools

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

func TestHeaderPoolAddRejectsDuplicates(t *testing.T) {
	p := NewHeaderPool()
	forkHash := chainhash.Hash{0x01}
	h1 := headerWith(forkHash, 1, 0)
	require.True(t, p.Add(h1, 11))
	require.False(t, p.Add(h1, 11))
	require.Equal(t, 1, p.Len())
}

func TestHeaderPoolChildrenAndBranch(t *testing.T) {
	p := NewHeaderPool()
	forkHash := chainhash.Hash{0x02}

	h1 := headerWith(forkHash, 1, 0)
	require.True(t, p.Add(h1, 11))

	h2a := headerWith(h1.BlockHash(), 2, 0)
	require.True(t, p.Add(h2a, 12))
	h2b := headerWith(h1.BlockHash(), 3, 0)
	require.True(t, p.Add(h2b, 12))

	children := p.Children(h1.BlockHash())
	require.Len(t, children, 2)
	require.Contains(t, children, h2a.BlockHash())
	require.Contains(t, children, h2b.BlockHash())

	branch, ok := p.Branch(h2a.BlockHash(), 10, forkHash)
	require.True(t, ok)
	require.Equal(t, 2, branch.Size())
	require.Equal(t, h1.BlockHash(), branch.HeaderAt(0).BlockHash())
	require.Equal(t, h2a.BlockHash(), branch.HeaderAt(1).BlockHash())
}

func TestHeaderPoolBranchMissingAncestorFails(t *testing.T) {
	p := NewHeaderPool()
	forkHash := chainhash.Hash{0x03}
	var unrelated chainhash.Hash
	unrelated[0] = 0xaa
	h1 := headerWith(unrelated, 1, 0)
	require.True(t, p.Add(h1, 1))

	_, ok := p.Branch(h1.BlockHash(), 0, forkHash)
	require.False(t, ok)
}

func TestHeaderPoolBestTipTracksHighestDifficulty(t *testing.T) {
	p := NewHeaderPool()
	forkHash := chainhash.Hash{0x05}

	h1 := headerWith(forkHash, 1, 0x207fffff)
	require.True(t, p.Add(h1, 1))
	h2 := headerWith(h1.BlockHash(), 2, 0x1d00ffff)
	require.True(t, p.Add(h2, 2))

	best, ok := p.BestTip()
	require.True(t, ok)
	require.Equal(t, h2.BlockHash(), best)
}

func TestHeaderPoolPrunesWeakestTipsPastCapacity(t *testing.T) {
	p := NewHeaderPoolWithTipCapacity(2)
	var roots [3]chainhash.Hash
	for i := range roots {
		roots[i][0] = byte(i + 1)
		h := headerWith(roots[i], uint32(i+1), 0x207fffff)
		require.True(t, p.Add(h, uint32(i+1)))
	}
	require.Equal(t, 2, p.Len())
}

func TestHeaderPoolRemoveSplicesChildList(t *testing.T) {
	p := NewHeaderPool()
	forkHash := chainhash.Hash{0x04}
	h1 := headerWith(forkHash, 1, 0)
	require.True(t, p.Add(h1, 1))
	h2 := headerWith(h1.BlockHash(), 2, 0)
	require.True(t, p.Add(h2, 2))

	p.Remove(h2.BlockHash())
	require.False(t, p.Exists(h2.BlockHash()))
	require.Empty(t, p.Children(h1.BlockHash()))
}
