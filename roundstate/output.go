package roundstate

import (
	"time"

	"github.com/cmwaters/tendercore/types"
)

// TimeoutKind names which of the three round timeouts an output schedules.
type TimeoutKind uint8

const (
	TimeoutProposeKind TimeoutKind = iota
	TimeoutPrevoteKind
	TimeoutPrecommitKind
)

func (k TimeoutKind) String() string {
	switch k {
	case TimeoutProposeKind:
		return "propose"
	case TimeoutPrevoteKind:
		return "prevote"
	case TimeoutPrecommitKind:
		return "precommit"
	default:
		return "unknown"
	}
}

// Output is the sum type of actions the round state machine asks its caller
// to perform. Apply returns zero or more per input; none carries I/O itself.
type Output struct {
	kind outputKind

	newRound types.Round

	proposal *types.Proposal
	vote     *types.Vote

	timeoutKind TimeoutKind
	timeout     time.Duration

	requestHeight types.Height
	requestRound  types.Round
	deadline      time.Duration

	decideValue types.Value
	decideRound types.Round
}

type outputKind uint8

const (
	outputStartNewRound outputKind = iota
	outputBroadcastProposal
	outputBroadcastVote
	outputScheduleTimeout
	outputRequestValue
	outputDecide
)

func startNewRound(r types.Round) Output {
	return Output{kind: outputStartNewRound, newRound: r}
}

func broadcastProposal(p types.Proposal) Output {
	return Output{kind: outputBroadcastProposal, proposal: &p}
}

func broadcastVote(v types.Vote) Output {
	return Output{kind: outputBroadcastVote, vote: &v}
}

func scheduleTimeout(kind TimeoutKind, d time.Duration) Output {
	return Output{kind: outputScheduleTimeout, timeoutKind: kind, timeout: d}
}

func requestValue(h types.Height, r types.Round, deadline time.Duration) Output {
	return Output{kind: outputRequestValue, requestHeight: h, requestRound: r, deadline: deadline}
}

func decide(v types.Value, r types.Round) Output {
	return Output{kind: outputDecide, decideValue: v, decideRound: r}
}

func (o Output) IsStartNewRound() bool { return o.kind == outputStartNewRound }
func (o Output) IsBroadcastProposal() bool { return o.kind == outputBroadcastProposal }
func (o Output) IsBroadcastVote() bool { return o.kind == outputBroadcastVote }
func (o Output) IsScheduleTimeout() bool { return o.kind == outputScheduleTimeout }
func (o Output) IsRequestValue() bool { return o.kind == outputRequestValue }
func (o Output) IsDecide() bool { return o.kind == outputDecide }

func (o Output) GetStartNewRound() types.Round { return o.newRound }

func (o Output) GetBroadcastProposal() types.Proposal {
	if o.proposal == nil {
		return types.Proposal{}
	}
	return *o.proposal
}

func (o Output) GetBroadcastVote() types.Vote {
	if o.vote == nil {
		return types.Vote{}
	}
	return *o.vote
}

func (o Output) GetScheduleTimeout() (TimeoutKind, time.Duration) {
	return o.timeoutKind, o.timeout
}

func (o Output) GetRequestValue() (types.Height, types.Round, time.Duration) {
	return o.requestHeight, o.requestRound, o.deadline
}

func (o Output) GetDecide() (types.Value, types.Round) {
	return o.decideValue, o.decideRound
}

func (o Output) String() string {
	switch o.kind {
	case outputStartNewRound:
		return "StartNewRound"
	case outputBroadcastProposal:
		return "Broadcast(Proposal)"
	case outputBroadcastVote:
		return "Broadcast(Vote)"
	case outputScheduleTimeout:
		return "ScheduleTimeout(" + o.timeoutKind.String() + ")"
	case outputRequestValue:
		return "RequestValue"
	case outputDecide:
		return "Decide"
	default:
		return "Output(?)"
	}
}
