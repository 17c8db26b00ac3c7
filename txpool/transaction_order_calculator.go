package txpool

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// transactionOrderCalculator produces a parent-before-child ordering
// over a fixed set of entries: when an entry's in-set parent has not
// yet been emitted, the entry is deferred — pushed back onto the stack
// behind that parent — rather than tracked via an explicit in-degree
// count (spec.md §4.J "transaction_order_calculator: topological sort
// via defer-and-reenqueue").
type transactionOrderCalculator struct {
	*stackEvaluator
	within  map[chainhash.Hash]struct{}
	emitted map[chainhash.Hash]struct{}
	order   []chainhash.Hash
}

func newTransactionOrderCalculator(within map[chainhash.Hash]struct{}) *transactionOrderCalculator {
	c := &transactionOrderCalculator{within: within, emitted: make(map[chainhash.Hash]struct{})}
	c.stackEvaluator = newStackEvaluator(c)
	return c
}

func (c *transactionOrderCalculator) visit(e *entry) {
	for _, parent := range e.parents {
		if _, inSet := c.within[parent.hash]; !inSet {
			continue
		}
		if _, done := c.emitted[parent.hash]; done {
			continue
		}
		// Defer e until parent has emitted: un-mark e as encountered and
		// push it back behind parent, so parent is processed first.
		delete(c.encountered, e.hash)
		c.stack = append(c.stack, e, parent)
		return
	}
	c.emitted[e.hash] = struct{}{}
	c.order = append(c.order, e.hash)
}

// order returns entries in parent-before-child order, restricted to
// parents that are themselves part of entries.
func order(entries []*entry) []chainhash.Hash {
	within := make(map[chainhash.Hash]struct{}, len(entries))
	for _, e := range entries {
		within[e.hash] = struct{}{}
	}
	c := newTransactionOrderCalculator(within)
	for _, e := range entries {
		c.enqueue(e)
	}
	c.evaluate()
	return c.order
}
