// Package chain holds the constants shared across the storage engine and
// the organizer pipeline: the error taxonomy, runtime settings and the
// checkpoint list.
package chain

import "fmt"

// Kind classifies a failure the way the engine's handler chains do: a
// single result code threaded from validator to organizer to caller.
// Kind values are never retried by the component that returns them —
// the caller decides whether to pop, mark invalid, or no-op.
type Kind int

const (
	// KindNone indicates success carried through a code-using call site.
	KindNone Kind = iota
	// KindDisk covers mmap, truncate and open failures. Fatal to the
	// operation in progress.
	KindDisk
	// KindCorruption covers an on-disk counter disagreeing with file
	// length, or a row that violates a structural invariant. Fatal to
	// the store; requires operator action.
	KindCorruption
	// KindDuplicate covers a uniqueness violation (block hash already
	// indexed at a height, transaction already confirmed).
	KindDuplicate
	// KindMissingPrevout covers a referenced previous output that could
	// not be located in the transaction table or a candidate branch.
	KindMissingPrevout
	// KindMissingAncestor covers a header/block whose parent is unknown.
	KindMissingAncestor
	// KindCheckpointMismatch covers a block hash at a checkpoint height
	// not matching the configured checkpoint.
	KindCheckpointMismatch
	// KindConsensus covers any context-dependent rule failure: PoW,
	// merkle root, sigop budget, maturity, script verification.
	KindConsensus
	// KindServiceStopped covers an organizer asked to stop mid-operation.
	KindServiceStopped
	// KindNotImplemented covers stub code paths.
	KindNotImplemented
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindDisk:
		return "disk"
	case KindCorruption:
		return "corruption"
	case KindDuplicate:
		return "duplicate"
	case KindMissingPrevout:
		return "missing_prevout"
	case KindMissingAncestor:
		return "missing_ancestor"
	case KindCheckpointMismatch:
		return "checkpoint_mismatch"
	case KindConsensus:
		return "consensus"
	case KindServiceStopped:
		return "service_stopped"
	case KindNotImplemented:
		return "not_implemented"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is the engine's single result-code error type. It wraps an
// underlying cause (possibly nil) with a Kind so callers can switch on
// category without parsing strings.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Kind)
}

func (e *Error) Unwrap() error { return e.Err }

// Is lets errors.Is(err, chain.KindX) style checks work by comparing Kind
// when the target is itself a *Error with no wrapped cause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Err == nil && t.Kind == e.Kind
}

// New constructs a terminal error of the given kind. Subscribers and
// stage boundaries receive exactly this shape — no partial codes.
func New(op string, kind Kind, err error) error {
	return &Error{Op: op, Kind: kind, Err: err}
}

// Of reports the Kind carried by err: KindNone if err is nil, and
// KindConsensus if err carries no *Error in its chain.
func Of(err error) Kind {
	if err == nil {
		return KindNone
	}
	var e *Error
	if ok := asError(err, &e); ok {
		return e.Kind
	}
	return KindConsensus // foreign errors surfaced from deep in a validator default to consensus-fatal
}

func asError(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}

// Sentinel kind-only errors for use with errors.Is.
var (
	ErrServiceStopped     = &Error{Kind: KindServiceStopped}
	ErrNotImplemented     = &Error{Kind: KindNotImplemented}
	ErrCorruption         = &Error{Kind: KindCorruption}
	ErrDuplicate          = &Error{Kind: KindDuplicate}
	ErrMissingPrevout     = &Error{Kind: KindMissingPrevout}
	ErrMissingAncestor    = &Error{Kind: KindMissingAncestor}
	ErrCheckpointMismatch = &Error{Kind: KindCheckpointMismatch}
)
