package populate

import (
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/pools"
)

// HeaderChain is the store surface populate needs to resolve the
// confirmed context a candidate branch attaches to: its base header and
// the medianTimePastWindow headers below it.
type HeaderChain interface {
	TopHeight() (uint32, bool)
	HeaderAt(height uint32) (wire.BlockHeader, bool, error)
}

// HeaderPopulator fills in each header of a candidate branch with the
// proof-of-work target and median-time-past it must satisfy, grounded
// on original_source/include/bitcoin/blockchain/populate/populate_header.hpp's
// populate(branch, handler); Go callers get a synchronous error instead
// of a completion handler since nothing here blocks on network I/O.
type HeaderPopulator struct {
	chain       HeaderChain
	settings    chain.BlockchainSettings
	checkpoints *chain.Checkpoints
}

// NewHeaderPopulator builds a populator over chain (the confirmed store)
// using settings to decide whether retargeting and checkpoint
// enforcement apply.
func NewHeaderPopulator(chain_ HeaderChain, settings chain.BlockchainSettings, checkpoints *chain.Checkpoints) *HeaderPopulator {
	return &HeaderPopulator{chain: chain_, settings: settings, checkpoints: checkpoints}
}

// Populate walks branch from its base to its tip, returning the
// proof-of-work target and median-time-past each header must have met,
// and validating checkpoints along the way. It mirrors
// populate_header::set_branch_state's job of establishing branch state
// before validate_header judges the individual headers.
func (p *HeaderPopulator) Populate(branch *pools.HeaderBranch) ([]HeaderContext, error) {
	baseHeight := branch.Height()

	if top, ok := p.chain.TopHeight(); ok && baseHeight > top {
		return nil, chain.New("populate_header", chain.KindMissingAncestor, nil)
	}
	if _, ok, err := p.chain.HeaderAt(baseHeight); err != nil {
		return nil, chain.New("populate_header", chain.KindDisk, err)
	} else if !ok && baseHeight != 0 {
		return nil, chain.New("populate_header", chain.KindMissingAncestor, nil)
	}

	window, err := p.confirmedWindow(baseHeight)
	if err != nil {
		return nil, err
	}

	periodFirstTime, lastBits, err := p.periodState(baseHeight)
	if err != nil {
		return nil, err
	}

	headers := branch.Headers()
	contexts := make([]HeaderContext, len(headers))

	for i, header := range headers {
		height := branch.HeightAt(i)

		if p.checkpoints != nil {
			if cp, ok := p.checkpoints.At(height); ok && header.BlockHash() != cp.Hash {
				return nil, chain.New("populate_header", chain.KindCheckpointMismatch, nil)
			}
		}

		bits := lastBits
		if p.settings.Retarget && height > 0 && retargetsAt(height) {
			bits = retarget(periodFirstTime, header.Timestamp, lastBits)
			periodFirstTime = header.Timestamp
		}

		contexts[i] = HeaderContext{
			Height:         height,
			Bits:           bits,
			MedianTimePast: medianTimePast(window),
		}

		window = append(window, header.Timestamp)
		if len(window) > medianTimePastWindow {
			window = window[len(window)-medianTimePastWindow:]
		}
		lastBits = header.Bits
	}

	return contexts, nil
}

// confirmedWindow collects the timestamps of the medianTimePastWindow
// confirmed headers immediately below baseHeight, oldest first.
func (p *HeaderPopulator) confirmedWindow(baseHeight uint32) ([]time.Time, error) {
	var window []time.Time
	start := uint32(0)
	if baseHeight > medianTimePastWindow {
		start = baseHeight - medianTimePastWindow
	}
	for h := start; h < baseHeight; h++ {
		header, ok, err := p.chain.HeaderAt(h)
		if err != nil {
			return nil, chain.New("populate_header", chain.KindDisk, err)
		}
		if !ok {
			continue
		}
		window = append(window, header.Timestamp)
	}
	return window, nil
}

// periodState locates the first block of the difficulty period
// baseHeight falls in, so mid-period branches retarget against the same
// window the confirmed chain used, returning that block's timestamp and
// the bits a branch header at baseHeight+1 should carry forward absent
// a retarget.
func (p *HeaderPopulator) periodState(baseHeight uint32) (time.Time, uint32, error) {
	periodFirst := (baseHeight / retargetInterval) * retargetInterval
	first, ok, err := p.chain.HeaderAt(periodFirst)
	if err != nil {
		return time.Time{}, 0, chain.New("populate_header", chain.KindDisk, err)
	}
	if !ok {
		return time.Time{}, 0, nil
	}

	base, ok, err := p.chain.HeaderAt(baseHeight)
	if err != nil {
		return time.Time{}, 0, chain.New("populate_header", chain.KindDisk, err)
	}
	lastBits := first.Bits
	if ok {
		lastBits = base.Bits
	}
	return first.Timestamp, lastBits, nil
}
