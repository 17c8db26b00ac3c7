package pools

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
)

// headerItem adapts *wire.BlockHeader to chainItem.
type headerItem struct {
	header *wire.BlockHeader
}

func (h headerItem) Hash() chainhash.Hash     { return h.header.BlockHash() }
func (h headerItem) PrevHash() chainhash.Hash { return h.header.PrevBlock }
func (h headerItem) Work() *uint256.Int       { return calcWork(h.header.Bits) }

// HeaderBranch is a candidate chain of headers above the indexed top,
// used to enumerate branches that compete with it ahead of the blocks
// themselves arriving (spec.md §4.F "header_pool... used to enumerate
// candidate branches (header_branch) competing with the indexed top").
// It shares candidateChain's body with Fork rather than repeating
// push/pop/difficulty against a second near-identical type.
type HeaderBranch struct {
	chain *candidateChain[headerItem]
}

// NewHeaderBranch creates an empty header branch above (height, hash).
func NewHeaderBranch(height uint32, hash chainhash.Hash) *HeaderBranch {
	return &HeaderBranch{chain: newCandidateChain[headerItem](height, hash)}
}

// SetHeight sets the branch's fork-point height.
func (b *HeaderBranch) SetHeight(height uint32) { b.chain.SetHeight(height) }

// Push appends header iff it chains to the branch's current tail.
func (b *HeaderBranch) Push(header *wire.BlockHeader) bool {
	return b.chain.Push(headerItem{header})
}

// Pop truncates the branch from index, returning the removed tail headers.
func (b *HeaderBranch) Pop(index int) []*wire.BlockHeader {
	items := b.chain.Pop(index)
	out := make([]*wire.BlockHeader, len(items))
	for i, it := range items {
		out[i] = it.header
	}
	return out
}

// SetVerified marks the header at index as validated.
func (b *HeaderBranch) SetVerified(index int) { b.chain.SetVerified(index) }

// IsVerified reports whether the header at index has been validated.
func (b *HeaderBranch) IsVerified(index int) bool { return b.chain.IsVerified(index) }

// Headers returns the branch's headers, fork-point-adjacent first.
func (b *HeaderBranch) Headers() []*wire.BlockHeader {
	items := b.chain.Items()
	out := make([]*wire.BlockHeader, len(items))
	for i, it := range items {
		out[i] = it.header
	}
	return out
}

// HeaderAt returns the header at index.
func (b *HeaderBranch) HeaderAt(index int) *wire.BlockHeader { return b.chain.ItemAt(index).header }

// Clear empties the branch.
func (b *HeaderBranch) Clear() { b.chain.Clear() }

// Empty reports whether the branch holds any headers.
func (b *HeaderBranch) Empty() bool { return b.chain.Empty() }

// Size returns the number of headers in the branch.
func (b *HeaderBranch) Size() int { return b.chain.Size() }

// Hash returns the branch's fork-point hash.
func (b *HeaderBranch) Hash() chainhash.Hash { return b.chain.Hash() }

// Height returns the branch's fork-point height.
func (b *HeaderBranch) Height() uint32 { return b.chain.Height() }

// HeightAt returns the height of the header at index.
func (b *HeaderBranch) HeightAt(index int) uint32 { return b.chain.HeightAt(index) }

// Difficulty sums the branch's headers' work.
func (b *HeaderBranch) Difficulty() *uint256.Int { return b.chain.Difficulty() }
