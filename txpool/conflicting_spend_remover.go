package txpool

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// conflictingSpendRemover evicts an entry and its full descendant
// closure from the pool: each removed entry is unlinked from its
// parents and children, and any parent left with no remaining children
// is itself an anchor candidate going forward (spec.md §4.J
// "conflicting_spend_remover: evicts entry + descendants, re-anchors
// orphaned parents, tracks max removed priority").
type conflictingSpendRemover struct {
	*stackEvaluator
	pool         map[chainhash.Hash]*entry
	removed      []chainhash.Hash
	maxPriority  int64
	newlyAnchors []chainhash.Hash
}

func newConflictingSpendRemover(pool map[chainhash.Hash]*entry) *conflictingSpendRemover {
	c := &conflictingSpendRemover{pool: pool}
	c.stackEvaluator = newStackEvaluator(c)
	return c
}

func (c *conflictingSpendRemover) visit(e *entry) {
	for _, child := range e.children {
		c.enqueue(child)
	}
	fee, _ := priority(e)
	if fee > c.maxPriority {
		c.maxPriority = fee
	}
	for _, parent := range e.parents {
		delete(parent.children, e.hash)
		if len(parent.children) == 0 && parent.isAnchor() {
			c.newlyAnchors = append(c.newlyAnchors, parent.hash)
		}
	}
	for _, child := range e.children {
		delete(child.parents, e.hash)
	}
	delete(c.pool, e.hash)
	c.removed = append(c.removed, e.hash)
}

// remove evicts root and its descendant closure from pool, returning
// the removed hashes, the hashes of parents left newly childless (and
// already anchors in their own right), and the highest fee seen among
// everything evicted.
func remove(root *entry, pool map[chainhash.Hash]*entry) (removed, newlyAnchors []chainhash.Hash, maxPriority int64) {
	c := newConflictingSpendRemover(pool)
	c.enqueue(root)
	c.evaluate()
	return c.removed, c.newlyAnchors, c.maxPriority
}
