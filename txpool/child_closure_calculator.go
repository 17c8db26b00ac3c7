package txpool

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// childClosureCalculator walks an entry's descendants, caching the
// result per root in the caller's cache map (State.closureCache) so a
// repeated query does not re-walk the graph. Each descendant is
// appended when the depth-first walk first reaches it, before its own
// children are visited, so the result is not in post-order; callers
// needing parent-before-child order pass it through order().
type childClosureCalculator struct {
	*stackEvaluator
	order []chainhash.Hash
}

func newChildClosureCalculator() *childClosureCalculator {
	c := &childClosureCalculator{}
	c.stackEvaluator = newStackEvaluator(c)
	return c
}

func (c *childClosureCalculator) visit(e *entry) {
	for _, child := range e.children {
		c.enqueue(child)
	}
	c.order = append(c.order, e.hash)
}

// closure returns root's descendant hashes, consulting and then
// populating cache.
func closure(root *entry, cache map[chainhash.Hash][]chainhash.Hash) []chainhash.Hash {
	if cached, ok := cache[root.hash]; ok {
		return cached
	}
	c := newChildClosureCalculator()
	for _, child := range root.children {
		c.enqueue(child)
	}
	c.evaluate()
	cache[root.hash] = c.order
	return c.order
}
