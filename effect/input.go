// Package effect defines the boundary between the deterministic core and
// the outside world: the external input surface the driver consumes and the
// effect requests it yields in return, together with the Handler and
// Interpreter interfaces that let a Runtime drive a core without importing
// it.
package effect

import (
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// DriverInput is the sum type of every message the effect runtime can feed
// to a Handler.
type DriverInput struct {
	kind inputKind

	height types.Height
	round  types.Round
	vs     *types.ValidatorSet

	proposal *types.Proposal
	vote     *types.Vote

	value types.Value
	valid bool

	timeoutKind roundstate.TimeoutKind
}

type inputKind uint8

const (
	inputStartHeight inputKind = iota
	inputProposal
	inputVote
	inputProposedValue
	inputProposeValue
	inputTimeoutElapsed
)

// StartHeight begins height h with the given validator set: current_round
// resets to 0, a fresh RSM and vote keeper are created, and NewRound is
// delivered to the RSM.
func StartHeight(h types.Height, vs *types.ValidatorSet) DriverInput {
	return DriverInput{kind: inputStartHeight, height: h, vs: vs}
}

// ProposalInput carries a signed proposal received over the network.
func ProposalInput(p types.Proposal) DriverInput {
	return DriverInput{kind: inputProposal, proposal: &p}
}

// VoteInput carries a signed vote received over the network.
func VoteInput(v types.Vote) DriverInput {
	return DriverInput{kind: inputVote, vote: &v}
}

// ProposedValueInput carries the application's verdict on a value it was
// asked to validate.
func ProposedValueInput(h types.Height, r types.Round, v types.Value, valid bool) DriverInput {
	return DriverInput{kind: inputProposedValue, height: h, round: r, value: v, valid: valid}
}

// ProposeValueInput carries the local value a ValueProvider produced in
// response to a RequestValue effect.
func ProposeValueInput(h types.Height, r types.Round, v types.Value) DriverInput {
	return DriverInput{kind: inputProposeValue, height: h, round: r, value: v}
}

// TimeoutElapsedInput carries a fired timeout. The driver drops it if
// (height, round) is no longer current.
func TimeoutElapsedInput(kind roundstate.TimeoutKind, h types.Height, r types.Round) DriverInput {
	return DriverInput{kind: inputTimeoutElapsed, timeoutKind: kind, height: h, round: r}
}

func (in DriverInput) IsStartHeight() bool     { return in.kind == inputStartHeight }
func (in DriverInput) IsProposal() bool        { return in.kind == inputProposal }
func (in DriverInput) IsVote() bool            { return in.kind == inputVote }
func (in DriverInput) IsProposedValue() bool   { return in.kind == inputProposedValue }
func (in DriverInput) IsProposeValue() bool    { return in.kind == inputProposeValue }
func (in DriverInput) IsTimeoutElapsed() bool  { return in.kind == inputTimeoutElapsed }

func (in DriverInput) GetStartHeight() (types.Height, *types.ValidatorSet) { return in.height, in.vs }

func (in DriverInput) GetProposal() types.Proposal {
	if in.proposal == nil {
		return types.Proposal{}
	}
	return *in.proposal
}

func (in DriverInput) GetVote() types.Vote {
	if in.vote == nil {
		return types.Vote{}
	}
	return *in.vote
}

func (in DriverInput) GetProposedValue() (types.Height, types.Round, types.Value, bool) {
	return in.height, in.round, in.value, in.valid
}

func (in DriverInput) GetProposeValue() (types.Height, types.Round, types.Value) {
	return in.height, in.round, in.value
}

func (in DriverInput) GetTimeoutElapsed() (roundstate.TimeoutKind, types.Height, types.Round) {
	return in.timeoutKind, in.height, in.round
}

// Height reports the height an input pertains to; for a Proposal or Vote
// input that is the height carried by the proposal or vote itself.
func (in DriverInput) Height() types.Height {
	switch {
	case in.proposal != nil:
		return in.proposal.Height
	case in.vote != nil:
		return in.vote.Height
	default:
		return in.height
	}
}

func (in DriverInput) String() string {
	switch in.kind {
	case inputStartHeight:
		return "StartHeight"
	case inputProposal:
		return "Proposal"
	case inputVote:
		return "Vote"
	case inputProposedValue:
		return "ProposedValue"
	case inputProposeValue:
		return "ProposeValue"
	case inputTimeoutElapsed:
		return "TimeoutElapsed"
	default:
		return "DriverInput(?)"
	}
}
