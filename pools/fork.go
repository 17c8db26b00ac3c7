package pools

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
)

// blockItem adapts *wire.MsgBlock to chainItem.
type blockItem struct {
	block *wire.MsgBlock
}

func (b blockItem) Hash() chainhash.Hash     { return b.block.Header.BlockHash() }
func (b blockItem) PrevHash() chainhash.Hash { return b.block.Header.PrevBlock }
func (b blockItem) Work() *uint256.Int       { return calcWork(b.block.Header.Bits) }

// Fork is the ordered sequence of candidate blocks above an indexed
// fork point (spec.md §4.F "fork"), grounded on
// original_source/include/bitcoin/blockchain/validation/fork.hpp's
// push/pop/set_verified/blocks/difficulty surface, translated onto the
// shared candidateChain generic rather than duplicated against
// HeaderBranch's identical body.
type Fork struct {
	chain *candidateChain[blockItem]
}

// NewFork creates an empty fork above the block at (height, hash).
func NewFork(height uint32, hash chainhash.Hash) *Fork {
	return &Fork{chain: newCandidateChain[blockItem](height, hash)}
}

// SetHeight sets the fork point's height.
func (f *Fork) SetHeight(height uint32) { f.chain.SetHeight(height) }

// Push appends block iff it chains to the fork's current tail.
func (f *Fork) Push(block *wire.MsgBlock) bool { return f.chain.Push(blockItem{block}) }

// Pop truncates the fork from index, returning the removed tail blocks.
func (f *Fork) Pop(index int) []*wire.MsgBlock {
	items := f.chain.Pop(index)
	out := make([]*wire.MsgBlock, len(items))
	for i, it := range items {
		out[i] = it.block
	}
	return out
}

// SetVerified marks the block at index as validated.
func (f *Fork) SetVerified(index int) { f.chain.SetVerified(index) }

// IsVerified reports whether the block at index has been validated.
func (f *Fork) IsVerified(index int) bool { return f.chain.IsVerified(index) }

// Blocks returns the fork's blocks, fork-point-adjacent first.
func (f *Fork) Blocks() []*wire.MsgBlock {
	items := f.chain.Items()
	out := make([]*wire.MsgBlock, len(items))
	for i, it := range items {
		out[i] = it.block
	}
	return out
}

// BlockAt returns the block at index.
func (f *Fork) BlockAt(index int) *wire.MsgBlock { return f.chain.ItemAt(index).block }

// Clear empties the fork.
func (f *Fork) Clear() { f.chain.Clear() }

// Empty reports whether the fork holds any blocks.
func (f *Fork) Empty() bool { return f.chain.Empty() }

// Size returns the number of blocks in the fork.
func (f *Fork) Size() int { return f.chain.Size() }

// Hash returns the fork point's hash.
func (f *Fork) Hash() chainhash.Hash { return f.chain.Hash() }

// Height returns the fork point's height.
func (f *Fork) Height() uint32 { return f.chain.Height() }

// HeightAt returns the height of the block at index.
func (f *Fork) HeightAt(index int) uint32 { return f.chain.HeightAt(index) }

// Difficulty sums the fork's blocks' work.
func (f *Fork) Difficulty() *uint256.Int { return f.chain.Difficulty() }
