// Package pools implements the in-memory candidate structures blocks
// and headers pass through before (or instead of) being committed to
// the store: a fork/header branch above the indexed top, an orphan
// pool of disconnected blocks, and a header tree for enumerating
// branches that compete with it (spec.md §4.F).
package pools

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/holiman/uint256"
)

// chainItem is the minimum surface candidateChain needs from a linked
// unit of work — a block or a header — to validate chaining and sum
// difficulty generically.
type chainItem interface {
	Hash() chainhash.Hash
	PrevHash() chainhash.Hash
	Work() *uint256.Int
}

// candidateChain is the shared body behind Fork (over blocks) and
// HeaderBranch (over headers): an ordered sequence above a fork point,
// grounded on turbo-geth's Anchor/Tip candidate bookkeeping in
// header_data_struct.go, generalized so the same append/truncate/verify
// logic serves both units of work rather than being duplicated per type
// (spec.md §9 "fork vs header_branch... a faithful implementation
// should unify them").
type candidateChain[T chainItem] struct {
	mu sync.Mutex

	height   uint32
	forkHash chainhash.Hash

	items    []T
	verified []bool
}

func newCandidateChain[T chainItem](height uint32, forkHash chainhash.Hash) *candidateChain[T] {
	return &candidateChain[T]{height: height, forkHash: forkHash}
}

// SetHeight sets the fork point's height.
func (c *candidateChain[T]) SetHeight(height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.height = height
}

// Push appends item iff it chains to the current tail (or the fork
// point, if empty).
func (c *candidateChain[T]) Push(item T) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	expected := c.forkHash
	if n := len(c.items); n > 0 {
		expected = c.items[n-1].Hash()
	}
	if item.PrevHash() != expected {
		return false
	}
	c.items = append(c.items, item)
	c.verified = append(c.verified, false)
	return true
}

// Pop truncates the chain from index and returns the removed tail.
func (c *candidateChain[T]) Pop(index int) []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index < 0 || index > len(c.items) {
		return nil
	}
	tail := append([]T(nil), c.items[index:]...)
	c.items = c.items[:index]
	c.verified = c.verified[:index]
	return tail
}

// SetVerified marks the item at index as having passed validation.
func (c *candidateChain[T]) SetVerified(index int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if index >= 0 && index < len(c.verified) {
		c.verified[index] = true
	}
}

// IsVerified reports whether the item at index has been validated.
func (c *candidateChain[T]) IsVerified(index int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return index >= 0 && index < len(c.verified) && c.verified[index]
}

// Items returns the chain's items, fork-point-adjacent first.
func (c *candidateChain[T]) Items() []T {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]T, len(c.items))
	copy(out, c.items)
	return out
}

// ItemAt returns the item at index.
func (c *candidateChain[T]) ItemAt(index int) T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.items[index]
}

// Clear empties the chain and resets its fork point to the zero hash.
func (c *candidateChain[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.verified = nil
	c.height = 0
	c.forkHash = chainhash.Hash{}
}

// Empty reports whether the chain holds any items.
func (c *candidateChain[T]) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Size returns the number of items in the chain.
func (c *candidateChain[T]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Hash returns the fork point's hash.
func (c *candidateChain[T]) Hash() chainhash.Hash {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.forkHash
}

// Height returns the fork point's height.
func (c *candidateChain[T]) Height() uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height
}

// HeightAt returns the height of the item at index.
func (c *candidateChain[T]) HeightAt(index int) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.height + uint32(index) + 1
}

// Difficulty sums the chain's items' work.
func (c *candidateChain[T]) Difficulty() *uint256.Int {
	c.mu.Lock()
	defer c.mu.Unlock()
	sum := new(uint256.Int)
	for _, item := range c.items {
		sum.Add(sum, item.Work())
	}
	return sum
}
