package txpool

import (
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
)

// State is transaction_pool_state: the mempool's dependency graph plus
// the byte/sigop budgets and coinbase reserve used to assemble a block
// template from it (spec.md §4.J). It satisfies organize.Pool (the
// write path: Insert on acceptance, Remove on confirmation or
// conflict) and populate.PendingPool (the narrower read path:
// Has/Output, used to resolve a new transaction's unconfirmed inputs).
type State struct {
	mu sync.Mutex

	pool          map[chainhash.Hash]*entry
	blockTemplate map[chainhash.Hash]*entry
	closureCache  map[chainhash.Hash][]chainhash.Hash

	settings              chain.BlockchainSettings
	coinbaseReserveBytes  uint32
	coinbaseReserveSigops uint32
}

// NewState builds an empty pool sized against settings' byte/sigop
// budgets, reserving coinbaseReserveBytes/coinbaseReserveSigops of
// that budget for the coinbase output itself.
func NewState(settings chain.BlockchainSettings, coinbaseReserveBytes, coinbaseReserveSigops uint32) *State {
	return &State{
		pool:                  make(map[chainhash.Hash]*entry),
		blockTemplate:         make(map[chainhash.Hash]*entry),
		closureCache:          make(map[chainhash.Hash][]chainhash.Hash),
		settings:              settings,
		coinbaseReserveBytes:  coinbaseReserveBytes,
		coinbaseReserveSigops: coinbaseReserveSigops,
	}
}

// Has reports whether hash is already pooled.
func (s *State) Has(hash chainhash.Hash) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.pool[hash]
	return ok
}

// Output returns the output a pooled transaction offers at outpoint,
// letting a dependent unconfirmed spend populate against it.
func (s *State) Output(outpoint wire.OutPoint) (*wire.TxOut, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.pool[outpoint.Hash]
	if !ok || int(outpoint.Index) >= len(e.tx.TxOut) {
		return nil, false
	}
	return e.tx.TxOut[outpoint.Index], true
}

// Insert adds tx at fee to the pool, wiring parent/child links against
// any already-pooled transaction it spends. A child closure cache
// covering any new parent is invalidated since its descendant set just
// grew.
func (s *State) Insert(tx *wire.MsgTx, fee int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	hash := tx.TxHash()
	if _, ok := s.pool[hash]; ok {
		return chain.New("transaction_pool_state.Insert", chain.KindDuplicate, nil)
	}

	e := newEntry(tx, fee)
	for _, in := range tx.TxIn {
		parent, ok := s.pool[in.PreviousOutPoint.Hash]
		if !ok {
			continue
		}
		e.parents[parent.hash] = parent
		parent.children[e.hash] = e
		delete(s.closureCache, parent.hash)
	}
	s.pool[hash] = e
	return nil
}

// Remove evicts hash and its descendant closure from both the pool and
// any block template assembled against it.
func (s *State) Remove(hash chainhash.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pool[hash]
	if !ok {
		return
	}
	demote(e, s.blockTemplate)
	removed, _, _ := remove(e, s.pool)
	for _, h := range removed {
		delete(s.closureCache, h)
	}
}

// candidate pairs an anchor entry with its aggregate priority over its
// current descendant closure.
type candidate struct {
	anchor *entry
	fee    int64
	size   int
}

// AssembleTemplate selects pool entries for a new block template in
// descending priority order (settings.Priority selects by raw fee;
// otherwise by fee-per-byte), skipping any candidate whose subtree would
// exceed the byte or sigop budget — less the configured coinbase
// reserve — and trying the rest, then returns the
// selected transactions in parent-before-child order (spec.md §4.J
// "assemble template: greedy subtree selection by priority, then
// topological order").
func (s *State) AssembleTemplate() []*wire.MsgTx {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.blockTemplate = make(map[chainhash.Hash]*entry)

	var anchors []*entry
	for _, e := range s.pool {
		if e.isAnchor() {
			anchors = append(anchors, e)
		}
	}

	candidates := make([]candidate, 0, len(anchors))
	for _, a := range anchors {
		fee, size := priority(a)
		candidates = append(candidates, candidate{anchor: a, fee: fee, size: size})
	}

	sort.Slice(candidates, func(i, j int) bool {
		if s.settings.Priority {
			return candidates[i].fee > candidates[j].fee
		}
		return candidates[i].fee*int64(candidates[j].size) > candidates[j].fee*int64(candidates[i].size)
	})

	byteBudget := int64(s.settings.BlockBytesLimit) - int64(s.coinbaseReserveBytes)
	sigopBudget := int64(s.settings.BlockSigopLimit) - int64(s.coinbaseReserveSigops)
	var usedBytes, usedSigops int64

	selected := make([]*entry, 0, len(candidates))
	for _, c := range candidates {
		subtree := closure(c.anchor, s.closureCache)
		size, sigops := subtreeWeight(c.anchor, subtree, s.pool)
		if usedBytes+size > byteBudget || usedSigops+sigops > sigopBudget {
			continue
		}
		usedBytes += size
		usedSigops += sigops

		s.blockTemplate[c.anchor.hash] = c.anchor
		selected = append(selected, c.anchor)
		for _, h := range subtree {
			if e, ok := s.pool[h]; ok {
				s.blockTemplate[h] = e
				selected = append(selected, e)
			}
		}
	}

	txs := make([]*wire.MsgTx, 0, len(selected))
	for _, h := range order(selected) {
		if e, ok := s.pool[h]; ok {
			txs = append(txs, e.tx)
		}
	}
	return txs
}

// subtreeWeight sums byte size and sigop count across root and its
// descendant hashes.
func subtreeWeight(root *entry, descendants []chainhash.Hash, pool map[chainhash.Hash]*entry) (size, sigops int64) {
	size += int64(root.size)
	sigops += int64(root.sigops)
	for _, h := range descendants {
		if e, ok := pool[h]; ok {
			size += int64(e.size)
			sigops += int64(e.sigops)
		}
	}
	return size, sigops
}
