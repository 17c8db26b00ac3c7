package organize

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/log"
	"github.com/coinstack/blockchain/metrics"
	"github.com/coinstack/blockchain/pools"
	"github.com/coinstack/blockchain/populate"
	"github.com/coinstack/blockchain/validate"
)

var blockOrganizerLogger = log.New("pkg", "organize", "component", "block")

// BlockOrganizer runs a candidate block through check/populate/accept/
// connect and commits it to the store, handling the reorganization case
// where the block's branch has overtaken the confirmed tip while it was
// being validated (spec.md §4.I "block_organizer::organize").
type BlockOrganizer struct {
	populator   *populate.BlockPopulator
	store       Chain
	settings    chain.BlockchainSettings
	checkpoints *chain.Checkpoints
	bip         chain.BIPFlags
	buckets     int

	mu      *PrioritizedMutex
	subs    subscribers
	stopped int32
}

// NewBlockOrganizer builds a block organizer writing through store,
// sharing mu with the header organizer reading the same store.
func NewBlockOrganizer(store Chain, settings chain.BlockchainSettings, checkpoints *chain.Checkpoints, bip chain.BIPFlags, mu *PrioritizedMutex, buckets int) *BlockOrganizer {
	if buckets < 1 {
		buckets = 1
	}
	return &BlockOrganizer{
		populator:   populate.NewBlockPopulator(store, buckets),
		store:       store,
		settings:    settings,
		checkpoints: checkpoints,
		bip:         bip,
		buckets:     buckets,
		mu:          mu,
	}
}

// Subscribe registers fn to be called, in registration order, after
// every future Organize call.
func (o *BlockOrganizer) Subscribe(fn Subscriber) { o.subs.Subscribe(fn) }

// Stop requests that any in-flight or future Organize call exit at its
// next stage boundary with chain.KindServiceStopped.
func (o *BlockOrganizer) Stop() { atomic.StoreInt32(&o.stopped, 1) }

// Stopped reports whether Stop has been called.
func (o *BlockOrganizer) Stopped() bool { return atomic.LoadInt32(&o.stopped) != 0 }

func (o *BlockOrganizer) checkStopped() error {
	if o.Stopped() {
		return chain.ErrServiceStopped
	}
	return nil
}

// Organize runs block (destined for height) through the five stages
// spec.md §4.I describes: (1) check — standalone, context-free rules;
// (2) populate — resolve prevout state against the confirmed store and
// fork (the candidate blocks already accepted below this one but not
// yet confirmed, possibly nil for a simple extension); (3) accept —
// context-dependent rules against headerCtx and the populated inputs;
// (4) connect — per-input script verification; (5) commit — under the
// writer lock, push onto the store if height-1 is still its top, or
// else replay fork (the winning higher-work branch ending at this
// block, the caller's responsibility to have already compared against
// the confirmed tip's work) onto it by popping down to the fork point
// first. Any stage failing marks this attempt invalid; the caller owns
// deciding what happens to fork's other blocks.
func (o *BlockOrganizer) Organize(ctx context.Context, block *wire.MsgBlock, height uint32, headerCtx populate.HeaderContext, fork *pools.Fork, subsidy int64, now time.Time) error {
	fail := func(err error) error {
		o.subs.notify(height, err)
		return err
	}

	if err := o.checkStopped(); err != nil {
		return fail(err)
	}
	if err := validate.CheckBlock(block, o.settings); err != nil {
		return fail(err)
	}

	if err := o.checkStopped(); err != nil {
		return fail(err)
	}
	blockCtx, err := o.populator.Populate(ctx, block, fork)
	if err != nil {
		return fail(err)
	}

	if err := o.checkStopped(); err != nil {
		return fail(err)
	}
	if err := validate.AcceptBlock(block, headerCtx, blockCtx, o.settings, o.checkpoints, subsidy, now); err != nil {
		return fail(err)
	}

	if err := o.checkStopped(); err != nil {
		return fail(err)
	}
	if err := validate.ConnectBlock(ctx, block, blockCtx, o.bip, o.buckets); err != nil {
		return fail(err)
	}

	if err := o.checkStopped(); err != nil {
		return fail(err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	top, hasTop := o.store.TopHeight()
	simpleExtend := (height == 0 && !hasTop) || (hasTop && height == top+1)

	if simpleExtend {
		if err := o.store.Push(block, height); err != nil {
			return fail(err)
		}
		metrics.OrganizerCommits.Inc()
		blockOrganizerLogger.Debug("pushed block", "height", height, "hash", block.Header.BlockHash())
		o.subs.notify(height, nil)
		return nil
	}

	if fork == nil {
		err := chain.New("organize_block", chain.KindMissingAncestor, fmt.Errorf("height %d does not extend top %d and no fork supplied", height, top))
		metrics.OrganizerRejects.Inc()
		return fail(err)
	}

	for {
		curTop, ok := o.store.TopHeight()
		if !ok || curTop <= fork.Height() {
			break
		}
		if _, err := o.store.Pop(); err != nil {
			return fail(err)
		}
	}

	for i, blk := range fork.Blocks() {
		if err := o.store.Push(blk, fork.HeightAt(i)); err != nil {
			return fail(err)
		}
	}

	metrics.OrganizerCommits.Inc()
	blockOrganizerLogger.Debug("reorganized onto fork", "fork_height", fork.Height(), "blocks", fork.Size())
	o.subs.notify(height, nil)
	return nil
}
