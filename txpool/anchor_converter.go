package txpool

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// anchorConverter demotes an entry and its descendant closure out of
// the block template being assembled, the symmetric counterpart to
// conflictingSpendRemover: pool parent/child links are left intact
// (the entries remain valid pool members, just excluded from this
// template), only the template membership map is mutated (spec.md
// §4.J "anchor_converter: demotes out-of-bounds template entries,
// mirrors conflicting_spend_remover without touching the pool graph").
type anchorConverter struct {
	*stackEvaluator
	blockTemplate map[chainhash.Hash]*entry
	demoted       []chainhash.Hash
}

func newAnchorConverter(blockTemplate map[chainhash.Hash]*entry) *anchorConverter {
	c := &anchorConverter{blockTemplate: blockTemplate}
	c.stackEvaluator = newStackEvaluator(c)
	return c
}

func (c *anchorConverter) visit(e *entry) {
	if _, inTemplate := c.blockTemplate[e.hash]; !inTemplate {
		return
	}
	for _, child := range e.children {
		c.enqueue(child)
	}
	delete(c.blockTemplate, e.hash)
	c.demoted = append(c.demoted, e.hash)
}

// demote excludes root and its in-template descendant closure from
// blockTemplate, returning the demoted hashes.
func demote(root *entry, blockTemplate map[chainhash.Hash]*entry) []chainhash.Hash {
	c := newAnchorConverter(blockTemplate)
	c.enqueue(root)
	c.evaluate()
	return c.demoted
}
