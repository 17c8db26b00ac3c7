package pools

import (
	"bytes"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/holiman/uint256"
	"github.com/petar/GoLLRB/llrb"
)

// defaultTipCapacity bounds how many live branch tips HeaderPool keeps
// ranked before pruning the weakest, mirroring
// turbo/stages/headerdownload/header_data_struct.go's tipLimiter use
// (a fixed-size llrb.LLRB ranking Tip entries by cumulative difficulty,
// evicting the weakest once the announced-but-unconfirmed tip set grows
// past its budget).
const defaultTipCapacity = 256

// headerNode is one entry in the header pool's tree.
type headerNode struct {
	header   *wire.BlockHeader
	height   uint32
	parent   chainhash.Hash
	children []chainhash.Hash
	work     *uint256.Int // cumulative difficulty back to this node's earliest known ancestor in the pool
}

// tipItem ranks a leaf header by cumulative difficulty for tipLimiter,
// the same role header_data_struct.go's TipItem plays for *Tip values;
// ties broken by hash so two equal-work tips never collide in the tree.
type tipItem struct {
	hash chainhash.Hash
	work *uint256.Int
}

func (t *tipItem) Less(other llrb.Item) bool {
	o := other.(*tipItem)
	if c := t.work.Cmp(o.work); c != 0 {
		return c < 0
	}
	return bytes.Compare(t.hash[:], o.hash[:]) < 0
}

// HeaderPool is a tree of header entries keyed by hash, each node
// holding its parent hash and a child list, used to enumerate candidate
// branches competing with the indexed top (spec.md §4.F "header_pool").
// Unlike OrphanPool it is unbounded in the number of headers retained;
// only the number of live tips (leaves with no known child) is capped,
// via an llrb-ranked tip limiter, so an attacker cannot grow the pool's
// branch count without bound while still letting every header on a
// legitimate deep branch be retained.
type HeaderPool struct {
	mu         sync.RWMutex
	nodes      map[chainhash.Hash]*headerNode
	tipLimiter *llrb.LLRB
	tipItems   map[chainhash.Hash]*tipItem
	tipCap     int
}

// NewHeaderPool creates an empty header pool with the default tip
// capacity.
func NewHeaderPool() *HeaderPool {
	return NewHeaderPoolWithTipCapacity(defaultTipCapacity)
}

// NewHeaderPoolWithTipCapacity creates an empty header pool that keeps
// at most tipCapacity live branch tips, pruning the weakest (lowest
// cumulative difficulty) once exceeded.
func NewHeaderPoolWithTipCapacity(tipCapacity int) *HeaderPool {
	return &HeaderPool{
		nodes:      make(map[chainhash.Hash]*headerNode),
		tipLimiter: llrb.New(),
		tipItems:   make(map[chainhash.Hash]*tipItem),
		tipCap:     tipCapacity,
	}
}

// Add inserts header at height into the tree, linking it as a child of
// its parent if the parent is already present. It returns false if
// header's hash is already in the pool.
func (p *HeaderPool) Add(header *wire.BlockHeader, height uint32) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	hash := header.BlockHash()
	if _, exists := p.nodes[hash]; exists {
		return false
	}

	work := calcWork(header.Bits)
	node := &headerNode{header: header, height: height, parent: header.PrevBlock, work: work}
	if parent, ok := p.nodes[header.PrevBlock]; ok {
		node.work = new(uint256.Int).Add(parent.work, work)
		parent.children = append(parent.children, hash)
		p.untrackTip(header.PrevBlock)
	}
	p.nodes[hash] = node
	p.trackTip(node)
	p.pruneWeakestTips()
	return true
}

func (p *HeaderPool) trackTip(node *headerNode) {
	hash := node.header.BlockHash()
	item := &tipItem{hash: hash, work: node.work}
	p.tipLimiter.ReplaceOrInsert(item)
	p.tipItems[hash] = item
}

func (p *HeaderPool) untrackTip(hash chainhash.Hash) {
	item, ok := p.tipItems[hash]
	if !ok {
		return
	}
	p.tipLimiter.Delete(item)
	delete(p.tipItems, hash)
}

// pruneWeakestTips evicts the lowest-difficulty tips past tipCap. A
// pruned tip's node is dropped outright (it has no children by
// construction); if that leaves its parent childless, the parent
// re-enters the tip set rather than vanishing along with it.
func (p *HeaderPool) pruneWeakestTips() {
	for p.tipCap > 0 && p.tipLimiter.Len() > p.tipCap {
		weakest, _ := p.tipLimiter.DeleteMin().(*tipItem)
		if weakest == nil {
			return
		}
		delete(p.tipItems, weakest.hash)
		p.dropLeaf(weakest.hash)
	}
}

func (p *HeaderPool) dropLeaf(hash chainhash.Hash) {
	node, ok := p.nodes[hash]
	if !ok {
		return
	}
	delete(p.nodes, hash)
	parent, ok := p.nodes[node.parent]
	if !ok {
		return
	}
	parent.children = removeHash(parent.children, hash)
	if len(parent.children) == 0 {
		p.trackTip(parent)
	}
}

// Remove deletes hash from the pool, splicing it out of its parent's
// child list. Its own children are left pointing at a parent no longer
// present; callers that need a contiguous tree should remove a subtree
// root-to-leaf.
func (p *HeaderPool) Remove(hash chainhash.Hash) {
	p.mu.Lock()
	defer p.mu.Unlock()

	node, ok := p.nodes[hash]
	if !ok {
		return
	}
	p.untrackTip(hash)
	if parent, ok := p.nodes[node.parent]; ok {
		parent.children = removeHash(parent.children, hash)
		if len(parent.children) == 0 {
			p.trackTip(parent)
		}
	}
	delete(p.nodes, hash)
}

func removeHash(hashes []chainhash.Hash, target chainhash.Hash) []chainhash.Hash {
	for i, h := range hashes {
		if h == target {
			return append(hashes[:i], hashes[i+1:]...)
		}
	}
	return hashes
}

// Header returns the header stored at hash.
func (p *HeaderPool) Header(hash chainhash.Hash) (*wire.BlockHeader, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	node, ok := p.nodes[hash]
	if !ok {
		return nil, false
	}
	return node.header, true
}

// Children returns the hashes of hash's direct children.
func (p *HeaderPool) Children(hash chainhash.Hash) []chainhash.Hash {
	p.mu.RLock()
	defer p.mu.RUnlock()
	node, ok := p.nodes[hash]
	if !ok {
		return nil
	}
	out := make([]chainhash.Hash, len(node.children))
	copy(out, node.children)
	return out
}

// Exists reports whether hash is present in the pool.
func (p *HeaderPool) Exists(hash chainhash.Hash) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	_, ok := p.nodes[hash]
	return ok
}

// Len returns the number of headers currently held.
func (p *HeaderPool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodes)
}

// BestTip returns the hash of the tip with the highest cumulative
// difficulty, the pool's analogue of turbo-geth's highestTotalDifficulty
// tracking.
func (p *HeaderPool) BestTip() (chainhash.Hash, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	max, ok := p.tipLimiter.Max().(*tipItem)
	if !ok {
		return chainhash.Hash{}, false
	}
	return max.hash, true
}

// Branch walks the tree from leaf back to the fork point (forkHeight,
// forkHash) and returns the resulting HeaderBranch with headers pushed
// in forward (fork-point-adjacent first) order, matching header_pool's
// role of enumerating a header_branch competing with the indexed top.
// It returns false if leaf is not a descendant of forkHash within the
// pool.
func (p *HeaderPool) Branch(leaf chainhash.Hash, forkHeight uint32, forkHash chainhash.Hash) (*HeaderBranch, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var reversed []*wire.BlockHeader
	cursor := leaf
	for cursor != forkHash {
		node, ok := p.nodes[cursor]
		if !ok {
			return nil, false
		}
		reversed = append(reversed, node.header)
		cursor = node.parent
	}

	branch := NewHeaderBranch(forkHeight, forkHash)
	for i := len(reversed) - 1; i >= 0; i-- {
		if !branch.Push(reversed[i]) {
			return nil, false
		}
	}
	return branch, true
}
