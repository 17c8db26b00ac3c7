package organize

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/log"
	"github.com/coinstack/blockchain/metrics"
	"github.com/coinstack/blockchain/pools"
	"github.com/coinstack/blockchain/populate"
	"github.com/coinstack/blockchain/validate"
)

var headerOrganizerLogger = log.New("pkg", "organize", "component", "header")

// HeaderOrganizer validates a candidate header branch against the
// confirmed chain's context and records it as verified, so a later
// BlockOrganizer.Organize over the same heights can skip re-deriving
// proof-of-work and retarget context (spec.md §4.I "header_organizer").
type HeaderOrganizer struct {
	populator   *populate.HeaderPopulator
	settings    chain.BlockchainSettings
	checkpoints *chain.Checkpoints
	buckets     int

	mu      *PrioritizedMutex
	subs    subscribers
	stopped int32
}

// NewHeaderOrganizer builds a header organizer over chain_ (the
// confirmed store), sharing mu with the block organizer that commits
// against the same store so readers of one are writers of the other.
func NewHeaderOrganizer(chain_ populate.HeaderChain, settings chain.BlockchainSettings, checkpoints *chain.Checkpoints, mu *PrioritizedMutex, buckets int) *HeaderOrganizer {
	if buckets < 1 {
		buckets = 1
	}
	return &HeaderOrganizer{
		populator:   populate.NewHeaderPopulator(chain_, settings, checkpoints),
		settings:    settings,
		checkpoints: checkpoints,
		buckets:     buckets,
		mu:          mu,
	}
}

// Subscribe registers fn to be called, in registration order, after
// every future Organize call with the height of the branch's tip, or
// with the branch's fork-point height when Organize fails before header
// validation starts.
func (o *HeaderOrganizer) Subscribe(fn Subscriber) { o.subs.Subscribe(fn) }

// Stop requests that any in-flight or future Organize call exit at its
// next stage boundary with chain.KindServiceStopped.
func (o *HeaderOrganizer) Stop() { atomic.StoreInt32(&o.stopped, 1) }

// Stopped reports whether Stop has been called.
func (o *HeaderOrganizer) Stopped() bool { return atomic.LoadInt32(&o.stopped) != 0 }

// Organize validates every header of branch — proof-of-work, timestamp
// bounds, retarget bits, checkpoint equality — fanning the per-header
// checks (each independent given its own populated context) across
// o.buckets goroutines, then marks every header verified so a
// subsequent block organize need not repeat the work. It blocks the
// caller but performs its own internal fan-out/join, matching spec.md
// §5's "organize blocks the caller but internally fans out and joins."
func (o *HeaderOrganizer) Organize(ctx context.Context, branch *pools.HeaderBranch) error {
	if o.Stopped() {
		o.subs.notify(branch.Height(), chain.ErrServiceStopped)
		return chain.ErrServiceStopped
	}

	contexts, err := o.populator.Populate(branch)
	if err != nil {
		o.subs.notify(branch.Height(), err)
		return err
	}

	headers := branch.Headers()
	if len(headers) != len(contexts) {
		err := chain.New("organize_headers", chain.KindConsensus, nil)
		o.subs.notify(branch.Height(), err)
		return err
	}

	now := time.Now()
	group, groupCtx := errgroup.WithContext(ctx)
	for bucket := 0; bucket < o.buckets; bucket++ {
		bucket := bucket
		group.Go(func() error {
			for i := bucket; i < len(headers); i += o.buckets {
				select {
				case <-groupCtx.Done():
					return groupCtx.Err()
				default:
				}
				if o.Stopped() {
					return chain.ErrServiceStopped
				}
				if err := validate.ValidateHeader(headers[i], contexts[i], o.settings, o.checkpoints, now); err != nil {
					return err
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		tip := branch.Height()
		if branch.Size() > 0 {
			tip = branch.HeightAt(branch.Size() - 1)
		}
		o.subs.notify(tip, err)
		return err
	}

	o.mu.Lock()
	for i := range headers {
		branch.SetVerified(i)
	}
	o.mu.Unlock()

	tip := branch.Height()
	if branch.Size() > 0 {
		tip = branch.HeightAt(branch.Size() - 1)
	}
	metrics.OrganizerCommits.Inc()
	headerOrganizerLogger.Debug("organized header branch", "tip_height", tip, "count", len(headers))
	o.subs.notify(tip, nil)
	return nil
}
