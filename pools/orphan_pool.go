package pools

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	lru "github.com/hashicorp/golang-lru"
)

// OrphanPool is a capacity-bounded buffer of blocks whose parent has
// not yet been indexed (spec.md §4.F "orphan_pool: ring buffer of
// capacity N; add rejects duplicates; trace(end) returns the longest
// ancestor chain within the pool ending at end. Thread-safe via a
// reader/writer mutex"), grounded on
// original_source/include/bitcoin/blockchain/pools/orphan_pool.hpp's
// add/remove/filter/trace surface. The ring buffer itself is
// github.com/hashicorp/golang-lru's fixed-capacity Cache (the same
// pre-generics *lru.Cache usage go-ethereum's core/blockchain.go uses
// for its header/block caches), evicting the oldest orphan once full
// rather than rejecting new arrivals outright. An outer sync.RWMutex
// wraps every call: orphan_pool.hpp documents itself as thread safe via
// an explicit upgrade_mutex, and Trace's multi-hop walk needs the same
// all-or-nothing atomicity the cache's own internal locking does not
// provide across separate Peek calls.
type OrphanPool struct {
	mu    sync.RWMutex
	cache *lru.Cache
}

// NewOrphanPool creates an orphan pool holding at most capacity blocks.
func NewOrphanPool(capacity int) *OrphanPool {
	cache, err := lru.New(capacity)
	if err != nil {
		// lru.New only errors on a non-positive size; a pool with no
		// capacity at all degrades to the smallest usable one rather
		// than leaving OrphanPool in an unusable nil state.
		cache, _ = lru.New(1)
	}
	return &OrphanPool{cache: cache}
}

// Add inserts block, rejecting it if its hash is already present.
func (p *OrphanPool) Add(block *wire.MsgBlock) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	hash := block.Header.BlockHash()
	if p.cache.Contains(hash) {
		return false
	}
	p.cache.Add(hash, block)
	return true
}

// AddBatch adds every block in blocks, returning how many were
// actually inserted (duplicates are skipped, never an error).
func (p *OrphanPool) AddBatch(blocks []*wire.MsgBlock) int {
	added := 0
	for _, block := range blocks {
		if p.Add(block) {
			added++
		}
	}
	return added
}

// Remove evicts block from the pool.
func (p *OrphanPool) Remove(block *wire.MsgBlock) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cache.Remove(block.Header.BlockHash())
}

// RemoveBatch evicts every block in blocks from the pool.
func (p *OrphanPool) RemoveBatch(blocks []*wire.MsgBlock) {
	for _, block := range blocks {
		p.Remove(block)
	}
}

// Exists reports whether hash is present in the pool.
func (p *OrphanPool) Exists(hash chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache.Contains(hash)
}

// Filter returns the subset of hashes NOT present in the pool, the
// complement orphan_pool.hpp's filter() computes for a getdata message
// (blocks the peer need not resend because this node already has them
// buffered).
func (p *OrphanPool) Filter(hashes []chainhash.Hash) []chainhash.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]chainhash.Hash, 0, len(hashes))
	for _, h := range hashes {
		if !p.cache.Contains(h) {
			out = append(out, h)
		}
	}
	return out
}

// Trace returns the longest chain of pooled ancestors ending at end,
// earliest first, not including end itself. Lookups use Peek rather
// than Get so tracing a chain does not itself perturb which orphans the
// LRU eviction policy considers most recently used.
func (p *OrphanPool) Trace(end *wire.MsgBlock) []*wire.MsgBlock {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var chain []*wire.MsgBlock
	prev := end.Header.PrevBlock
	for {
		v, ok := p.cache.Peek(prev)
		if !ok {
			break
		}
		block := v.(*wire.MsgBlock)
		chain = append(chain, block)
		prev = block.Header.PrevBlock
	}

	for i, j := 0, len(chain)-1; i < j; i, j = i+1, j-1 {
		chain[i], chain[j] = chain[j], chain[i]
	}
	return chain
}

// Len returns the number of blocks currently buffered.
func (p *OrphanPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cache.Len()
}
