package driver

import (
	"context"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

func (d *Driver) handleProposal(in effect.DriverInput) []effect.Effect {
	p := in.GetProposal()
	if p.Height != d.height {
		d.reject(p.Height, p.Round, "proposal for wrong height")
		return nil
	}
	proposer := d.vs.Proposer(p.Round)
	if p.Proposer != proposer.Address {
		d.reject(p.Height, p.Round, "proposal from a non-proposer")
		return nil
	}
	v, ok := d.vs.ByAddress(p.Proposer)
	if !ok {
		d.reject(p.Height, p.Round, "proposal from unknown validator")
		return nil
	}
	id := d.hash(p.Value)
	if !d.verify.Verify(v.PubKey, p.SignBytes(id), p.Signature) {
		d.reject(p.Height, p.Round, "proposal with invalid signature")
		return nil
	}
	d.storeProposal(p)
	return d.multiplex()
}

func (d *Driver) handleVote(_ context.Context, in effect.DriverInput) []effect.Effect {
	v := in.GetVote()
	if v.Height != d.height {
		d.reject(v.Height, v.Round, "vote for wrong height")
		return nil
	}
	val, ok := d.vs.ByAddress(v.Voter)
	if !ok {
		d.reject(v.Height, v.Round, "vote from unknown validator")
		return nil
	}
	if !d.verify.Verify(val.PubKey, v.SignBytes(), v.Signature) {
		d.reject(v.Height, v.Round, "vote with invalid signature")
		return nil
	}
	return d.recordVote(v)
}

// reject logs a RejectedInput at Warn: none of these sites indicate
// misbehavior on their own (a stale peer and a Byzantine one look
// identical here), so the input is simply dropped, with the log line as
// the only record.
func (d *Driver) reject(h types.Height, r types.Round, reason string) {
	d.logger.Warn().Err(RejectedInput{Reason: reason, Height: h, Round: r}).Msg("rejected input")
}

// recordVote feeds vote to the vote keeper and reacts to whatever it
// reports: an Equivocation event is logged as DetectedMisbehavior before
// falling through to the multiplexer, since a double-vote is itself
// evidence worth surfacing whether or not it also crosses a threshold this
// round; every event (equivocation or threshold) triggers a recheck.
func (d *Driver) recordVote(v types.Vote) []effect.Effect {
	val, ok := d.vs.ByAddress(v.Voter)
	if !ok {
		return nil
	}
	events := d.vk.AddVote(v, val.Power, d.round)
	if len(events) == 0 {
		return nil
	}
	for _, ev := range events {
		if !ev.IsEquivocation() {
			continue
		}
		voter, kind, round, _, _ := ev.GetEquivocation()
		d.logger.Error().Err(DetectedMisbehavior{Voter: voter, Kind: kind, Height: d.height, Round: round}).Msg("detected misbehavior")
	}
	return d.multiplex()
}

func (d *Driver) handleProposedValue(in effect.DriverInput) []effect.Effect {
	h, _, v, valid := in.GetProposedValue()
	if h != d.height {
		return nil
	}
	d.validity[d.hash(v)] = valid
	return d.multiplex()
}

func (d *Driver) handleProposeValue(_ context.Context, in effect.DriverInput) []effect.Effect {
	h, r, v := in.GetProposeValue()
	if h != d.height || r != d.round {
		return nil // stale response to a RequestValue from an earlier round
	}
	return d.apply(roundstate.ProposeValue(v))
}

func (d *Driver) handleTimeoutElapsed(_ context.Context, in effect.DriverInput) []effect.Effect {
	kind, h, r := in.GetTimeoutElapsed()
	if h != d.height || r != d.round {
		return nil // stale: driver has advanced past (h, r)
	}
	switch kind {
	case roundstate.TimeoutProposeKind:
		return d.apply(roundstate.TimeoutPropose())
	case roundstate.TimeoutPrevoteKind:
		return d.apply(roundstate.TimeoutPrevote())
	default:
		return d.apply(roundstate.TimeoutPrecommit())
	}
}

func (d *Driver) storeProposal(p types.Proposal) {
	key := proposalKey{round: p.Round, proposer: p.Proposer}
	existing := d.proposals[key]
	id := d.hash(p.Value)
	for _, e := range existing {
		if d.hash(e.Value) == id {
			return // duplicate delivery of the same value
		}
	}
	if len(existing) >= 2 {
		return // storage bound: at most two distinct values per (round, proposer)
	}
	d.proposals[key] = append(existing, p)
}

// multiplex recomputes, from scratch, whether the currently stored
// proposals and vote-keeper thresholds satisfy any RSM input, and fires the
// highest-priority one: decision, then skip-round, then precommit-value,
// then polka-value, then polka-nil, then polka-any, then a bare
// precommit-any threshold. Being a full recheck rather than an incremental
// reaction, it naturally handles a late Proposal arriving after its
// round's precommit quorum was already reached.
func (d *Driver) multiplex() []effect.Effect {
	if d.decided {
		return nil
	}

	// Decision preempts everything else, across any round of this height.
	for key, props := range d.proposals {
		for _, p := range props {
			id := d.hash(p.Value)
			if d.vk.PrecommitWeight(key.round, &id) >= d.vk.Quorum() {
				return d.apply(roundstate.ProposalAndPrecommitValue(p.Value, key.round))
			}
		}
	}

	// f+1 evidence in a higher round preempts the current round's polka
	// bookkeeping: there is no point locking or precommitting in a round
	// the process is about to abandon.
	if r, ok := d.vk.SkipRoundCandidate(d.round); ok {
		return d.apply(roundstate.SkipRound(r))
	}

	proposer := d.vs.Proposer(d.round)
	var out []effect.Effect
	for _, p := range d.proposals[proposalKey{round: d.round, proposer: proposer.Address}] {
		id := d.hash(p.Value)

		if d.vk.PrevoteWeight(d.round, &id) >= d.vk.Quorum() {
			out = append(out, d.apply(roundstate.ProposalAndPolkaCurrent(p.Value))...)
			continue
		}

		valid, known := d.validity[id]
		if !known {
			continue
		}

		if p.ValidRound == types.NilRound {
			out = append(out, d.apply(roundstate.Proposal(p.Value, valid))...)
			continue
		}
		if p.ValidRound < d.round && d.vk.PrevoteWeight(p.ValidRound, &id) >= d.vk.Quorum() {
			out = append(out, d.apply(roundstate.ProposalAndPolkaPrevious(p.Value, p.ValidRound, valid))...)
		}
	}

	nilID := (*types.ValueID)(nil)
	quorum := d.vk.Quorum()
	if d.vk.PrevoteWeight(d.round, nilID) >= quorum {
		out = append(out, d.apply(roundstate.PolkaNil())...)
	} else if d.vk.TotalPrevoteWeight(d.round) >= quorum {
		out = append(out, d.apply(roundstate.PolkaAny())...)
	}
	if d.vk.TotalPrecommitWeight(d.round) >= quorum {
		out = append(out, d.apply(roundstate.PrecommitAny())...)
	}
	return out
}
