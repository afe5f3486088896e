package roundstate

import "github.com/cmwaters/tendercore/types"

// Input is the sum type of every event the round state machine can consume.
// Exactly one of the constructor functions below produces a well-formed
// Input; the zero value is not meaningful.
type Input struct {
	kind inputKind

	proposer  bool // NewRound
	value     types.Value
	validRound types.Round
	valid     bool
	valueID   types.ValueID
	round     types.Round // ProposalAndPrecommitValue, SkipRound
}

type inputKind uint8

const (
	inputNone inputKind = iota
	inputNewRound
	inputProposeValue
	inputProposal
	inputProposalAndPolkaPrevious
	inputProposalAndPolkaCurrent
	inputProposalAndPrecommitValue
	inputPolkaAny
	inputPolkaNil
	inputPolkaValue
	inputPrecommitAny
	inputSkipRound
	inputTimeoutPropose
	inputTimeoutPrevote
	inputTimeoutPrecommit
)

// NewRound is the initial entry to a round, distinguishing whether the local
// process is that round's proposer.
func NewRound(proposer bool) Input {
	return Input{kind: inputNewRound, proposer: proposer}
}

// ProposeValue carries the local process's own value as proposer, possibly
// delivered asynchronously in response to a RequestValue effect.
func ProposeValue(v types.Value) Input {
	return Input{kind: inputProposeValue, value: v}
}

// Proposal carries a proposal with valid_round = -1 and its
// application-determined validity.
func Proposal(v types.Value, valid bool) Input {
	return Input{kind: inputProposal, value: v, validRound: types.NilRound, valid: valid}
}

// ProposalAndPolkaPrevious carries a proposal with valid_round >= 0 together
// with a quorum of prevotes for id(v) already observed in round vr < R.
func ProposalAndPolkaPrevious(v types.Value, vr types.Round, valid bool) Input {
	return Input{kind: inputProposalAndPolkaPrevious, value: v, validRound: vr, valid: valid}
}

// ProposalAndPolkaCurrent carries a proposal together with a quorum of
// prevotes for id(v) in the current round.
func ProposalAndPolkaCurrent(v types.Value) Input {
	return Input{kind: inputProposalAndPolkaCurrent, value: v}
}

// ProposalAndPrecommitValue carries a proposal together with a quorum of
// precommits for id(v) observed in round r of the same height, triggering a
// decision in any in-progress step (propose, prevote or precommit).
func ProposalAndPrecommitValue(v types.Value, r types.Round) Input {
	return Input{kind: inputProposalAndPrecommitValue, value: v, round: r}
}

// PolkaAny reports a quorum of prevotes for a mixture of values in the
// current round.
func PolkaAny() Input { return Input{kind: inputPolkaAny} }

// PolkaNil reports a quorum of prevotes for nil in the current round.
func PolkaNil() Input { return Input{kind: inputPolkaNil} }

// PolkaValue reports a quorum of prevotes for a specific value id, absent a
// stored proposal to combine it with. No transition table row consumes this
// in isolation; the driver's multiplexer combines it with a stored proposal
// into ProposalAndPolkaPrevious/Current before it reaches the state machine.
// It is retained here only because it is part of the input surface the
// multiplexer observes on the vote keeper.
func PolkaValue(id types.ValueID) Input { return Input{kind: inputPolkaValue, valueID: id} }

// PrecommitAny reports a quorum of precommits for a mixture of values in the
// current round.
func PrecommitAny() Input { return Input{kind: inputPrecommitAny} }

// SkipRound reports f+1 voting power observed in round r, which must exceed
// the current round for the transition to apply.
func SkipRound(r types.Round) Input { return Input{kind: inputSkipRound, round: r} }

// TimeoutPropose signals the scheduled propose timeout has elapsed.
func TimeoutPropose() Input { return Input{kind: inputTimeoutPropose} }

// TimeoutPrevote signals the scheduled prevote timeout has elapsed.
func TimeoutPrevote() Input { return Input{kind: inputTimeoutPrevote} }

// TimeoutPrecommit signals the scheduled precommit timeout has elapsed.
func TimeoutPrecommit() Input { return Input{kind: inputTimeoutPrecommit} }

func (i Input) String() string {
	switch i.kind {
	case inputNewRound:
		return "NewRound"
	case inputProposeValue:
		return "ProposeValue"
	case inputProposal:
		return "Proposal"
	case inputProposalAndPolkaPrevious:
		return "ProposalAndPolkaPrevious"
	case inputProposalAndPolkaCurrent:
		return "ProposalAndPolkaCurrent"
	case inputProposalAndPrecommitValue:
		return "ProposalAndPrecommitValue"
	case inputPolkaAny:
		return "PolkaAny"
	case inputPolkaNil:
		return "PolkaNil"
	case inputPolkaValue:
		return "PolkaValue"
	case inputPrecommitAny:
		return "PrecommitAny"
	case inputSkipRound:
		return "SkipRound"
	case inputTimeoutPropose:
		return "TimeoutPropose"
	case inputTimeoutPrevote:
		return "TimeoutPrevote"
	case inputTimeoutPrecommit:
		return "TimeoutPrecommit"
	default:
		return "none"
	}
}
