package organize

import (
	"context"
	"sync/atomic"

	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/log"
	"github.com/coinstack/blockchain/metrics"
	"github.com/coinstack/blockchain/populate"
	"github.com/coinstack/blockchain/validate"
)

var transactionOrganizerLogger = log.New("pkg", "organize", "component", "transaction")

// TransactionOrganizer validates a standalone transaction (standalone
// check, then context-dependent accept, then per-input script connect)
// and, on success, inserts it into the transaction pool, resolving the
// Open Question over whether transaction_organizer::organize and
// subscribe_transaction carry their own subscriber registry the way
// block_organizer and header_organizer do (spec.md §4.J, §9): they do,
// built from the same subscribers type.
type TransactionOrganizer struct {
	populator *populate.TransactionPopulator
	pool      Pool
	settings  chain.BlockchainSettings
	bip       chain.BIPFlags
	buckets   int

	mu      *PrioritizedMutex
	subs    subscribers
	stopped int32
}

// NewTransactionOrganizer builds a transaction organizer resolving
// prevouts against chain_ and pool, writing accepted transactions into
// pool. mu is typically the same prioritized mutex the block organizer
// holds while reorganizing, so a reorg's pool eviction (handled by the
// block organizer's caller via pool.Remove) never races an in-flight
// accept.
func NewTransactionOrganizer(chain_ populate.BlockChain, pool Pool, settings chain.BlockchainSettings, bip chain.BIPFlags, mu *PrioritizedMutex, buckets int) *TransactionOrganizer {
	if buckets < 1 {
		buckets = 1
	}
	return &TransactionOrganizer{
		populator: populate.NewTransactionPopulator(chain_, pool, buckets),
		pool:      pool,
		settings:  settings,
		bip:       bip,
		buckets:   buckets,
		mu:        mu,
	}
}

// Subscribe registers fn to be called, in registration order, after
// every future Organize call.
func (o *TransactionOrganizer) Subscribe(fn Subscriber) { o.subs.Subscribe(fn) }

// Stop requests that any in-flight or future Organize call exit at its
// next stage boundary with chain.KindServiceStopped.
func (o *TransactionOrganizer) Stop() { atomic.StoreInt32(&o.stopped, 1) }

// Stopped reports whether Stop has been called.
func (o *TransactionOrganizer) Stopped() bool { return atomic.LoadInt32(&o.stopped) != 0 }

// Organize validates tx (check, accept, connect) and, on success,
// inserts it into the pool at its computed fee. height is the tip
// height transactions are being organized against — it carries no
// validation meaning of its own, only identifying which notification
// this Organize call's subscribers receive.
func (o *TransactionOrganizer) Organize(ctx context.Context, tx *wire.MsgTx, height uint32) error {
	fail := func(err error) error {
		o.subs.notify(height, err)
		return err
	}

	if o.Stopped() {
		return fail(chain.ErrServiceStopped)
	}
	if err := validate.CheckTransaction(tx, o.settings); err != nil {
		return fail(err)
	}

	if o.Stopped() {
		return fail(chain.ErrServiceStopped)
	}
	tctx, err := o.populator.Populate(tx)
	if err != nil {
		return fail(err)
	}

	if o.Stopped() {
		return fail(chain.ErrServiceStopped)
	}
	if err := validate.AcceptTransaction(tx, tctx, o.settings); err != nil {
		return fail(err)
	}

	if o.Stopped() {
		return fail(chain.ErrServiceStopped)
	}
	if err := validate.ConnectTransaction(ctx, tx, tctx, o.bip, o.buckets); err != nil {
		return fail(err)
	}

	if o.Stopped() {
		return fail(chain.ErrServiceStopped)
	}

	fee := validate.Fee(tx, tctx)
	o.mu.Lock()
	err = o.pool.Insert(tx, fee)
	o.mu.Unlock()
	if err != nil {
		return fail(err)
	}

	metrics.OrganizerCommits.Inc()
	metrics.PoolSize.Inc()
	transactionOrganizerLogger.Debug("organized transaction", "hash", tx.TxHash(), "fee", fee)
	o.subs.notify(height, nil)
	return nil
}
