package txpool

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// parentClosureCalculator walks an entry's ancestors — the mirror
// image of childClosureCalculator over e.parents instead of e.children
// (spec.md §4.J "parent_closure_calculator: ancestors").
type parentClosureCalculator struct {
	*stackEvaluator
	order []chainhash.Hash
}

func newParentClosureCalculator() *parentClosureCalculator {
	c := &parentClosureCalculator{}
	c.stackEvaluator = newStackEvaluator(c)
	return c
}

func (c *parentClosureCalculator) visit(e *entry) {
	for _, parent := range e.parents {
		c.enqueue(parent)
	}
	c.order = append(c.order, e.hash)
}

// ancestors returns root's in-pool ancestor hashes.
func ancestors(root *entry) []chainhash.Hash {
	c := newParentClosureCalculator()
	for _, parent := range root.parents {
		c.enqueue(parent)
	}
	c.evaluate()
	return c.order
}
