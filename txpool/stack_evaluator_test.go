package txpool

import (
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// chainABC builds a simple A -> B -> C parent/child chain of entries
// (A is the anchor), grounded on spec.md §8 scenario S6.
func chainABC() (a, b, c *entry) {
	a = newEntry(wire.NewMsgTx(wire.TxVersion), 100)
	b = newEntry(wire.NewMsgTx(wire.TxVersion), 200)
	c = newEntry(wire.NewMsgTx(wire.TxVersion), 300)

	a.children[b.hash] = b
	b.parents[a.hash] = a
	b.children[c.hash] = c
	c.parents[b.hash] = b
	return a, b, c
}

func hashSet(hashes []chainhash.Hash) map[chainhash.Hash]bool {
	s := make(map[chainhash.Hash]bool, len(hashes))
	for _, h := range hashes {
		s[h] = true
	}
	return s
}

func TestChildClosureCalculatorWalksDescendants(t *testing.T) {
	a, b, c := chainABC()
	got := closure(a, make(map[chainhash.Hash][]chainhash.Hash))
	if len(got) != 2 {
		t.Fatalf("expected 2 descendants of A, got %d", len(got))
	}
	seen := hashSet(got)
	if !seen[b.hash] || !seen[c.hash] {
		t.Fatalf("expected descendants {B, C}, got %v", got)
	}
}

func TestParentClosureCalculatorWalksAncestorsS6(t *testing.T) {
	a, b, c := chainABC()
	got := ancestors(c)
	if len(got) != 2 {
		t.Fatalf("expected parent closure of C to be {A, B}, got %d entries", len(got))
	}
	seen := hashSet(got)
	if !seen[a.hash] || !seen[b.hash] {
		t.Fatalf("expected parent closure {A, B}, got %v", got)
	}
}

func TestTransactionOrderCalculatorOrdersParentBeforeChildS6(t *testing.T) {
	a, b, c := chainABC()
	got := order([]*entry{c, b, a})
	if len(got) != 3 {
		t.Fatalf("expected all 3 entries ordered, got %d", len(got))
	}
	index := make(map[chainhash.Hash]int, 3)
	for i, h := range got {
		index[h] = i
	}
	if index[a.hash] >= index[b.hash] || index[b.hash] >= index[c.hash] {
		t.Fatalf("expected order [A, B, C], got %v", got)
	}
}

func TestPriorityCalculatorSumsFeeAndSizeAcrossClosure(t *testing.T) {
	a, b, c := chainABC()
	fee, size := priority(a)
	wantFee := a.fee + b.fee + c.fee
	wantSize := a.size + b.size + c.size
	if fee != wantFee {
		t.Fatalf("priority fee = %d, want %d", fee, wantFee)
	}
	if size != wantSize {
		t.Fatalf("priority size = %d, want %d", size, wantSize)
	}
}

func TestPriorityCalculatorSkipsIndependentAnchorDescendant(t *testing.T) {
	a, b, _ := chainABC()
	// Drop B's link to its parent so B becomes an independent anchor
	// while A still lists it as a child; A's priority must skip B (and
	// C under it).
	delete(b.parents, a.hash)

	fee, size := priority(a)
	if fee != a.fee || size != a.size {
		t.Fatalf("priority(A) = (%d, %d), want (%d, %d) once B is an anchor", fee, size, a.fee, a.size)
	}
}

func TestConflictingSpendRemoverEvictsClosureS6(t *testing.T) {
	a, b, c := chainABC()
	pool := map[chainhash.Hash]*entry{a.hash: a, b.hash: b, c.hash: c}

	removed, _, maxPriority := remove(a, pool)
	if len(removed) != 3 {
		t.Fatalf("expected 3 entries removed, got %d: %v", len(removed), removed)
	}
	seen := hashSet(removed)
	if !seen[a.hash] || !seen[b.hash] || !seen[c.hash] {
		t.Fatalf("expected {A, B, C} removed, got %v", removed)
	}
	if len(pool) != 0 {
		t.Fatalf("expected pool empty after removal, has %d entries", len(pool))
	}
	wantMaxPriority := a.fee + b.fee + c.fee
	if maxPriority != wantMaxPriority {
		t.Fatalf("expected maxPriority = %d (A's full closure, the first and largest visited), got %d", wantMaxPriority, maxPriority)
	}
}

func TestConflictingSpendRemoverKeepsParentAndSibling(t *testing.T) {
	a, b, c := chainABC()
	// D is a second child of A, unrelated to B/C.
	d := newEntry(wire.NewMsgTx(wire.TxVersion), 50)
	a.children[d.hash] = d
	d.parents[a.hash] = a

	pool := map[chainhash.Hash]*entry{a.hash: a, b.hash: b, c.hash: c, d.hash: d}

	// Removing only B (and its descendant C) must leave A in the pool
	// and must not touch D.
	_, _, _ = remove(b, pool)
	if _, ok := pool[a.hash]; !ok {
		t.Fatalf("expected A to remain in pool")
	}
	if _, ok := pool[d.hash]; !ok {
		t.Fatalf("expected D to remain in pool")
	}
	if _, ok := a.children[b.hash]; ok {
		t.Fatalf("expected A's link to B severed")
	}
}

func TestAnchorConverterDemotesClosureFromTemplate(t *testing.T) {
	a, b, c := chainABC()
	template := map[chainhash.Hash]*entry{a.hash: a, b.hash: b, c.hash: c}

	demoted := demote(a, template)
	if len(demoted) != 3 {
		t.Fatalf("expected 3 entries demoted, got %d", len(demoted))
	}
	if len(template) != 0 {
		t.Fatalf("expected template empty after demotion, has %d entries", len(template))
	}
}
