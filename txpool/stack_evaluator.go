package txpool

import "github.com/btcsuite/btcd/chaincfg/chainhash"

// visitor is implemented by each stack_evaluator subclass: visit is
// called once per entry popped off the stack that has not already been
// encountered, and may push further entries to extend the walk
// (spec.md §4.J "stack_evaluator: generic DFS (stack + 'encountered'
// set), evaluate() pops until empty, calls visit(e) for unencountered
// entries, visit may enqueue more").
type visitor interface {
	visit(e *entry)
}

// stackEvaluator is the shared walk body every subclass embeds.
type stackEvaluator struct {
	stack       []*entry
	encountered map[chainhash.Hash]struct{}
	v           visitor
}

func newStackEvaluator(v visitor) *stackEvaluator {
	return &stackEvaluator{encountered: make(map[chainhash.Hash]struct{}), v: v}
}

// enqueue pushes e onto the stack unless it has already been
// encountered.
func (s *stackEvaluator) enqueue(e *entry) {
	if _, seen := s.encountered[e.hash]; seen {
		return
	}
	s.stack = append(s.stack, e)
}

// evaluate pops the stack until empty, marking and visiting each
// not-yet-encountered entry.
func (s *stackEvaluator) evaluate() {
	for len(s.stack) > 0 {
		e := s.stack[len(s.stack)-1]
		s.stack = s.stack[:len(s.stack)-1]
		if _, seen := s.encountered[e.hash]; seen {
			continue
		}
		s.encountered[e.hash] = struct{}{}
		s.v.visit(e)
	}
}
