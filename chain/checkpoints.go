package chain

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// Checkpoint pins a known-good block hash at a height. Carried over from
// original_source's checkpoints.hpp/checkpoint.cpp — the distilled spec
// names checkpoint_mismatch as an error kind (§7) and validate_header's
// invariant list (§4.H) without restating the checkpoint module itself.
type Checkpoint struct {
	Height uint32
	Hash   chainhash.Hash
}

// Checkpoints is a height-sorted, binary-searchable checkpoint list.
type Checkpoints struct {
	sorted []Checkpoint
}

// NewCheckpoints builds a Checkpoints list, sorting by height.
func NewCheckpoints(points []Checkpoint) *Checkpoints {
	sorted := make([]Checkpoint, len(points))
	copy(sorted, points)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Height < sorted[j].Height })
	return &Checkpoints{sorted: sorted}
}

// At returns the checkpoint pinned at height, if any.
func (c *Checkpoints) At(height uint32) (Checkpoint, bool) {
	i := sort.Search(len(c.sorted), func(i int) bool { return c.sorted[i].Height >= height })
	if i < len(c.sorted) && c.sorted[i].Height == height {
		return c.sorted[i], true
	}
	return Checkpoint{}, false
}

// LastBelow returns the highest checkpoint at or below height, if any.
// Header validation does not call it; it checks checkpoints through
// Matches.
func (c *Checkpoints) LastBelow(height uint32) (Checkpoint, bool) {
	i := sort.Search(len(c.sorted), func(i int) bool { return c.sorted[i].Height > height })
	if i == 0 {
		return Checkpoint{}, false
	}
	return c.sorted[i-1], true
}

// Matches verifies hash against the checkpoint pinned at height, if any;
// absence of a checkpoint at that height always matches.
func (c *Checkpoints) Matches(height uint32, hash chainhash.Hash) bool {
	cp, ok := c.At(height)
	if !ok {
		return true
	}
	return cp.Hash == hash
}
