package effect

import (
	"time"

	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// Effect is the sum type of requests a Handler yields after processing one
// DriverInput. Signing a vote or proposal, verifying a signature, and
// looking up the validator set are deliberately not represented as effects
// here: the driver holds its own crypto.Signer/Verifier and performs those
// synchronously while computing the remaining, genuinely asynchronous or
// externally-observable effects below (see the translate doc comment in
// driver/translate.go). PersistInput always appears first in a Handle call's
// returned slice when the input is persistable, which is what gives callers
// a persist-input-first ordering for free: interpreting the slice in order
// is sufficient.
type Effect struct {
	kind effectKind

	input DriverInput

	proposal *types.Proposal
	vote     *types.Vote
	commits  []types.Vote

	timeoutKind roundstate.TimeoutKind
	height      types.Height
	round       types.Round
	duration    time.Duration
}

type effectKind uint8

const (
	effectPersistInput effectKind = iota
	effectBroadcastProposal
	effectBroadcastVote
	effectScheduleTimeout
	effectCancelTimeout
	effectRequestValue
	effectDecide
)

func PersistInput(in DriverInput) Effect { return Effect{kind: effectPersistInput, input: in} }

func BroadcastProposal(p types.Proposal) Effect {
	return Effect{kind: effectBroadcastProposal, proposal: &p}
}

func BroadcastVote(v types.Vote) Effect {
	return Effect{kind: effectBroadcastVote, vote: &v}
}

func ScheduleTimeout(kind roundstate.TimeoutKind, h types.Height, r types.Round, d time.Duration) Effect {
	return Effect{kind: effectScheduleTimeout, timeoutKind: kind, height: h, round: r, duration: d}
}

func CancelTimeout(kind roundstate.TimeoutKind, h types.Height, r types.Round) Effect {
	return Effect{kind: effectCancelTimeout, timeoutKind: kind, height: h, round: r}
}

func RequestValue(h types.Height, r types.Round, deadline time.Duration) Effect {
	return Effect{kind: effectRequestValue, height: h, round: r, duration: deadline}
}

func Decide(p types.Proposal, commits []types.Vote) Effect {
	return Effect{kind: effectDecide, proposal: &p, commits: commits}
}

func (e Effect) IsPersistInput() bool       { return e.kind == effectPersistInput }
func (e Effect) IsBroadcastProposal() bool  { return e.kind == effectBroadcastProposal }
func (e Effect) IsBroadcastVote() bool      { return e.kind == effectBroadcastVote }
func (e Effect) IsScheduleTimeout() bool    { return e.kind == effectScheduleTimeout }
func (e Effect) IsCancelTimeout() bool      { return e.kind == effectCancelTimeout }
func (e Effect) IsRequestValue() bool       { return e.kind == effectRequestValue }
func (e Effect) IsDecide() bool             { return e.kind == effectDecide }

func (e Effect) GetPersistInput() DriverInput { return e.input }

func (e Effect) GetBroadcastProposal() types.Proposal {
	if e.proposal == nil {
		return types.Proposal{}
	}
	return *e.proposal
}

func (e Effect) GetBroadcastVote() types.Vote {
	if e.vote == nil {
		return types.Vote{}
	}
	return *e.vote
}

func (e Effect) GetTimeout() (roundstate.TimeoutKind, types.Height, types.Round, time.Duration) {
	return e.timeoutKind, e.height, e.round, e.duration
}

func (e Effect) GetRequestValue() (types.Height, types.Round, time.Duration) {
	return e.height, e.round, e.duration
}

func (e Effect) GetDecide() (types.Proposal, []types.Vote) {
	if e.proposal == nil {
		return types.Proposal{}, e.commits
	}
	return *e.proposal, e.commits
}

func (e Effect) String() string {
	switch e.kind {
	case effectPersistInput:
		return "PersistInput(" + e.input.String() + ")"
	case effectBroadcastProposal:
		return "Broadcast(Proposal)"
	case effectBroadcastVote:
		return "Broadcast(Vote)"
	case effectScheduleTimeout:
		return "ScheduleTimeout(" + e.timeoutKind.String() + ")"
	case effectCancelTimeout:
		return "CancelTimeout(" + e.timeoutKind.String() + ")"
	case effectRequestValue:
		return "RequestValue"
	case effectDecide:
		return "Decide"
	default:
		return "Effect(?)"
	}
}
