// Package roundstate implements the pure round state machine: given a state
// and an input, it computes the next state and zero or more effect
// requests. It performs no I/O, keeps no notion of time beyond the
// durations it hands back in ScheduleTimeout outputs, and never blocks.
package roundstate

import (
	"bytes"

	"github.com/cmwaters/tendercore/types"
)

// Apply is the state machine's only entry point. hash computes id(V) for
// values the machine must place on the wire as a vote; it is passed rather
// than embedded in TimeoutParams so Apply remains a pure function of its
// arguments.
//
// The table below is authoritative; this function's cases are ordered to
// follow it top to bottom.
//
//	Pre-step   Input                        Guard                        Post-step  Action
//	unstarted  NewRound(self)               VV=None                      propose    RequestValue; Schedule(Propose)
//	unstarted  NewRound(self)               VV!=None                     propose    Broadcast Proposal(VV,VR)
//	unstarted  NewRound(other)              -                            propose    Schedule(Propose)
//	propose    ProposeValue(V)              self=proposer                propose    Broadcast Proposal(V,-1)
//	propose    Proposal(V,-1,valid)         valid & (LR=-1 | LV=V)       prevote    Broadcast Prevote(id(V))
//	propose    Proposal(V,-1,valid)         otherwise                    prevote    Broadcast Prevote(nil)
//	propose    ProposalAndPolkaPrevious     valid & (LR<=vr | LV=V)      prevote    Broadcast Prevote(id(V))
//	propose    ProposalAndPolkaPrevious     otherwise                    prevote    Broadcast Prevote(nil)
//	propose    TimeoutPropose               -                            prevote    Broadcast Prevote(nil)
//	prevote    PolkaAny                     first time                   prevote    Schedule(Prevote)
//	prevote    ProposalAndPolkaCurrent(V)   first time                   precommit  lock V; Broadcast Precommit(id(V))
//	prevote    PolkaNil                     -                            precommit  Broadcast Precommit(nil)
//	prevote    TimeoutPrevote               -                            precommit  Broadcast Precommit(nil)
//	precommit  ProposalAndPolkaCurrent(V)   first time                   precommit  VR<-R, VV<-V
//	InProgress PrecommitAny                 first time                   unchanged  Schedule(Precommit)
//	InProgress TimeoutPrecommit             -                            unstarted  StartNewRound(R+1)
//	InProgress SkipRound(R')                R'>R                         unstarted  StartNewRound(R')
//	InProgress ProposalAndPrecommitValue    -                            commit     Decide(V,r)
func Apply(s State, in Input, tp TimeoutParams, hash types.Hasher) (State, []Output) {
	// Decision preempts every other input in any in-progress step.
	if in.kind == inputProposalAndPrecommitValue {
		return applyDecision(s, in)
	}

	switch in.kind {
	case inputNewRound:
		return applyNewRound(s, in, tp)
	case inputProposeValue:
		return applyProposeValue(s, in)
	case inputProposal:
		return applyProposal(s, in, hash)
	case inputProposalAndPolkaPrevious:
		return applyProposalAndPolkaPrevious(s, in, hash)
	case inputProposalAndPolkaCurrent:
		return applyProposalAndPolkaCurrent(s, in, hash)
	case inputPolkaAny:
		return applyPolkaAny(s, tp)
	case inputPolkaNil:
		return applyPolkaNil(s, tp)
	case inputPrecommitAny:
		return applyPrecommitAny(s, tp)
	case inputSkipRound:
		return applySkipRound(s, in)
	case inputTimeoutPropose:
		return applyTimeoutPropose(s)
	case inputTimeoutPrevote:
		return applyTimeoutPrevote(s)
	case inputTimeoutPrecommit:
		return applyTimeoutPrecommit(s)
	default:
		// inputPolkaValue and inputNone have no direct table row; see
		// PolkaValue's doc comment.
		return s, nil
	}
}

func applyNewRound(s State, in Input, tp TimeoutParams) (State, []Output) {
	next := s
	next.Step = types.StepPropose
	next.isProposer = in.proposer
	next.firedPolkaAny = false
	next.firedPolkaCurrentPrevote = false
	next.firedPolkaCurrentPrecommit = false
	next.firedPrecommitAny = false

	if !in.proposer {
		return next, []Output{scheduleTimeout(TimeoutProposeKind, tp.Duration(TimeoutProposeKind, s.Round))}
	}
	if s.Valid == nil {
		return next, []Output{
			requestValue(s.Height, s.Round, tp.Duration(TimeoutProposeKind, s.Round)),
			scheduleTimeout(TimeoutProposeKind, tp.Duration(TimeoutProposeKind, s.Round)),
		}
	}
	p := types.Proposal{Height: s.Height, Round: s.Round, Value: s.Valid.Value, ValidRound: s.Valid.Round}
	return next, []Output{broadcastProposal(p)}
}

func applyProposeValue(s State, in Input) (State, []Output) {
	if s.Step != types.StepPropose || !s.isProposer {
		return s, nil
	}
	p := types.Proposal{Height: s.Height, Round: s.Round, Value: in.value, ValidRound: types.NilRound}
	return s, []Output{broadcastProposal(p)}
}

func applyProposal(s State, in Input, hash types.Hasher) (State, []Output) {
	if s.Step != types.StepPropose {
		return s, nil
	}
	accept := in.valid && (s.Locked == nil || bytes.Equal(s.Locked.Value, in.value))
	next := s
	next.Step = types.StepPrevote
	if accept {
		return next, []Output{broadcastVote(prevote(s, hash(in.value)))}
	}
	return next, []Output{broadcastVote(prevoteNil(s))}
}

func applyProposalAndPolkaPrevious(s State, in Input, hash types.Hasher) (State, []Output) {
	if s.Step != types.StepPropose {
		return s, nil
	}
	accept := in.valid && (s.Locked == nil || s.Locked.Round <= in.validRound || bytes.Equal(s.Locked.Value, in.value))
	next := s
	next.Step = types.StepPrevote
	if accept {
		return next, []Output{broadcastVote(prevote(s, hash(in.value)))}
	}
	return next, []Output{broadcastVote(prevoteNil(s))}
}

func applyProposalAndPolkaCurrent(s State, in Input, hash types.Hasher) (State, []Output) {
	switch s.Step {
	case types.StepPrevote:
		if s.firedPolkaCurrentPrevote {
			return s, nil
		}
		next := s
		next.firedPolkaCurrentPrevote = true
		next.Step = types.StepPrecommit
		next.Locked = &LockedValue{Value: in.value, Round: s.Round}
		next.Valid = &LockedValue{Value: in.value, Round: s.Round}
		return next, []Output{broadcastVote(precommitFor(s, hash(in.value)))}
	case types.StepPrecommit:
		if s.firedPolkaCurrentPrecommit {
			return s, nil
		}
		next := s
		next.firedPolkaCurrentPrecommit = true
		next.Valid = &LockedValue{Value: in.value, Round: s.Round}
		return next, nil
	default:
		return s, nil
	}
}

func applyDecision(s State, in Input) (State, []Output) {
	if !s.inProgress() {
		return s, nil
	}
	next := s
	next.Step = types.StepCommit
	return next, []Output{decide(in.value, in.round)}
}

func applyPolkaAny(s State, tp TimeoutParams) (State, []Output) {
	if s.Step != types.StepPrevote || s.firedPolkaAny {
		return s, nil
	}
	next := s
	next.firedPolkaAny = true
	return next, []Output{scheduleTimeout(TimeoutPrevoteKind, tp.Duration(TimeoutPrevoteKind, s.Round))}
}

func applyPolkaNil(s State, _ TimeoutParams) (State, []Output) {
	if s.Step != types.StepPrevote {
		return s, nil
	}
	next := s
	next.Step = types.StepPrecommit
	return next, []Output{broadcastVote(precommitNil(s))}
}

func applyPrecommitAny(s State, tp TimeoutParams) (State, []Output) {
	if !s.inProgress() || s.firedPrecommitAny {
		return s, nil
	}
	next := s
	next.firedPrecommitAny = true
	return next, []Output{scheduleTimeout(TimeoutPrecommitKind, tp.Duration(TimeoutPrecommitKind, s.Round))}
}

func applySkipRound(s State, in Input) (State, []Output) {
	if !s.inProgress() || in.round <= s.Round {
		return s, nil
	}
	next := s
	next.Step = types.StepUnstarted
	next.Round = in.round
	return next, []Output{startNewRound(in.round)}
}

func applyTimeoutPropose(s State) (State, []Output) {
	if s.Step != types.StepPropose {
		return s, nil
	}
	next := s
	next.Step = types.StepPrevote
	return next, []Output{broadcastVote(prevoteNil(s))}
}

func applyTimeoutPrevote(s State) (State, []Output) {
	if s.Step != types.StepPrevote {
		return s, nil
	}
	next := s
	next.Step = types.StepPrecommit
	return next, []Output{broadcastVote(precommitNil(s))}
}

func applyTimeoutPrecommit(s State) (State, []Output) {
	if !s.inProgress() {
		return s, nil
	}
	next := s
	next.Step = types.StepUnstarted
	next.Round = s.Round + 1
	return next, []Output{startNewRound(next.Round)}
}

func prevote(s State, id types.ValueID) types.Vote {
	return types.Vote{Kind: types.VoteKindPrevote, Height: s.Height, Round: s.Round, ValueID: &id}
}

func prevoteNil(s State) types.Vote {
	return types.Vote{Kind: types.VoteKindPrevote, Height: s.Height, Round: s.Round}
}

func precommitFor(s State, id types.ValueID) types.Vote {
	return types.Vote{Kind: types.VoteKindPrecommit, Height: s.Height, Round: s.Round, ValueID: &id}
}

func precommitNil(s State) types.Vote {
	return types.Vote{Kind: types.VoteKindPrecommit, Height: s.Height, Round: s.Round}
}
