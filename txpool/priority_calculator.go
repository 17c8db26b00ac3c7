package txpool

// priorityCalculator sums fee and size across a candidate root and its
// descendant closure, skipping any descendant that is itself an anchor
// of its own independent chain — such a descendant is a candidate root
// in its own right and would otherwise be double-counted once under
// its own walk and once as part of an ancestor's (spec.md §4.J
// "priority_calculator: sums fees/sizes, skips anchors").
type priorityCalculator struct {
	*stackEvaluator
	fee  int64
	size int
}

func newPriorityCalculator() *priorityCalculator {
	c := &priorityCalculator{}
	c.stackEvaluator = newStackEvaluator(c)
	return c
}

func (c *priorityCalculator) visit(e *entry) {
	c.fee += e.fee
	c.size += e.size
	for _, child := range e.children {
		if child.isAnchor() {
			continue
		}
		c.enqueue(child)
	}
}

// priority computes root's aggregate fee and size including its
// descendant closure (root itself always included, even if it is an
// anchor — only descendants that independently qualify as anchors are
// skipped).
func priority(root *entry) (fee int64, size int) {
	c := newPriorityCalculator()
	c.enqueue(root)
	c.evaluate()
	return c.fee, c.size
}
