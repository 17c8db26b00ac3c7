// Package validate runs the context-free and context-dependent
// consensus checks populate/ supplies the context for: header
// proof-of-work/timestamp/retarget rules, block structure and script
// verification, and standalone/context/script transaction rules
// (spec.md §4.H validate_header/validate_block/validate_transaction).
package validate

import (
	"time"

	"github.com/btcsuite/btcd/wire"

	"github.com/coinstack/blockchain/chain"
	"github.com/coinstack/blockchain/populate"
)

// maxFutureDrift bounds how far a header's timestamp may sit ahead of
// the validator's wall clock, matching Bitcoin's two-hour rule.
const maxFutureDrift = 2 * time.Hour

// ValidateHeader checks header against the context populate_header
// already resolved for it: proof-of-work against the expected bits,
// timestamp bounds, the retarget outcome (skipped entirely when
// settings.Retarget is false, per spec.md §4.H), and checkpoint
// equality.
func ValidateHeader(header *wire.BlockHeader, ctx populate.HeaderContext, settings chain.BlockchainSettings, checkpoints *chain.Checkpoints, now time.Time) error {
	if settings.Retarget && header.Bits != ctx.Bits {
		return chain.New("validate_header", chain.KindConsensus, nil)
	}

	if !belowTarget(header.BlockHash(), header.Bits) {
		return chain.New("validate_header", chain.KindConsensus, nil)
	}

	if !header.Timestamp.After(ctx.MedianTimePast) {
		return chain.New("validate_header", chain.KindConsensus, nil)
	}
	if header.Timestamp.After(now.Add(maxFutureDrift)) {
		return chain.New("validate_header", chain.KindConsensus, nil)
	}

	if checkpoints != nil && !checkpoints.Matches(ctx.Height, header.BlockHash()) {
		return chain.New("validate_header", chain.KindCheckpointMismatch, nil)
	}

	return nil
}
