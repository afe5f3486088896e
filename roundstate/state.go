package roundstate

import (
	"time"

	"github.com/cmwaters/tendercore/types"
)

// TimeoutParams configures the round-scaled timeout durations:
// timeout(kind, R) = initial(kind) + R*delta(kind). Loading these values
// from a config file is outside the core's scope; the state machine only
// ever consumes the computed Duration.
type TimeoutParams struct {
	ProposePropose, ProposeDelta   time.Duration
	PrevotePropose, PrevoteDelta   time.Duration
	PrecommitPropose, PrecommitDelta time.Duration
}

// DefaultTimeoutParams matches the propagation delays commonly used for
// small production Tendermint networks; callers running larger networks
// should widen these.
var DefaultTimeoutParams = TimeoutParams{
	ProposePropose: 3 * time.Second, ProposeDelta: 500 * time.Millisecond,
	PrevotePropose: time.Second, PrevoteDelta: 500 * time.Millisecond,
	PrecommitPropose: time.Second, PrecommitDelta: 500 * time.Millisecond,
}

// Duration computes timeout(kind, r).
func (p TimeoutParams) Duration(kind TimeoutKind, r types.Round) time.Duration {
	n := time.Duration(r)
	switch kind {
	case TimeoutProposeKind:
		return p.ProposePropose + n*p.ProposeDelta
	case TimeoutPrevoteKind:
		return p.PrevotePropose + n*p.PrevoteDelta
	default:
		return p.PrecommitPropose + n*p.PrecommitDelta
	}
}

// LockedValue pairs a full value with the round in which a process locked or
// judged it valid. Unlike types.RoundValue (keyed by ValueID), the round
// state machine keeps the whole
// value here because a locked/valid proposer must be able to re-broadcast
// it verbatim in a later round.
type LockedValue struct {
	Value types.Value
	Round types.Round
}

// State is the pure per-height, cross-round state of one process: its
// current (round, step), whether it is that round's proposer, and the
// locked/valid value it is carrying forward. Locked and valid persist
// unmodified across a NewRound transition; only the four
// first-time-delivery flags reset.
type State struct {
	Height types.Height
	Round  types.Round
	Step   types.Step

	Locked *LockedValue
	Valid  *LockedValue

	isProposer bool

	firedPolkaAny bool
	// firedPolkaCurrentPrevote and firedPolkaCurrentPrecommit guard the two
	// distinct table rows keyed by ProposalAndPolkaCurrent: one entered
	// from the prevote step (locks the value), one from the precommit step
	// (only updates valid). They are separate flags because a process can
	// legitimately pass through both within the same round — first locking
	// via the prevote-step row, later (having precommitted nil on a
	// timeout instead) observing a late polka while already in precommit.
	firedPolkaCurrentPrevote   bool
	firedPolkaCurrentPrecommit bool
	firedPrecommitAny          bool
}

// New returns the unstarted state a height begins in, before its first
// NewRound input.
func New(h types.Height) State {
	return State{Height: h, Round: 0, Step: types.StepUnstarted}
}

func (s State) inProgress() bool {
	return s.Step == types.StepPropose || s.Step == types.StepPrevote || s.Step == types.StepPrecommit
}
