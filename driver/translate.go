package driver

import (
	"context"

	"github.com/cmwaters/tendercore/crypto"
	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// translate converts round state machine outputs into effects, signing
// outbound proposals and votes with this process's own signer along the
// way: rather than surfacing signing as an effect for the caller to
// perform, the driver calls its own crypto.Signer synchronously and only
// ever hands the interpreter an already-signed message to broadcast.
func (d *Driver) translate(outs []roundstate.Output) []effect.Effect {
	var out []effect.Effect
	for _, o := range outs {
		switch {
		case o.IsStartNewRound():
			out = append(out, d.startNewRound(o.GetStartNewRound())...)

		case o.IsBroadcastProposal():
			p := o.GetBroadcastProposal()
			p.Proposer = d.address
			id := d.hash(p.Value)
			sig, err := d.signer.Sign(context.Background(), crypto.Watermark{
				Height: uint64(d.height), Round: int32(p.Round), Kind: crypto.WatermarkKindProposal,
			}, p.SignBytes(id))
			if err != nil {
				// Treat a signing failure as if the broadcast never
				// happened; the round's timeouts recover.
				continue
			}
			p.Signature = sig
			out = append(out, effect.BroadcastProposal(p))
			d.storeProposal(p)
			// A self-produced value needs no external ProposedValue
			// verdict: mark it valid immediately so the multiplexer can
			// drive this process's own prevote for it.
			d.validity[id] = true
			out = append(out, d.multiplex()...)

		case o.IsBroadcastVote():
			v := o.GetBroadcastVote()
			v.Voter = d.address
			kind := crypto.WatermarkKindPrevote
			if v.Kind == types.VoteKindPrecommit {
				kind = crypto.WatermarkKindPrecommit
			}
			sig, err := d.signer.Sign(context.Background(), crypto.Watermark{
				Height: uint64(d.height), Round: int32(v.Round), Kind: kind,
			}, v.SignBytes())
			if err != nil {
				continue
			}
			v.Signature = sig
			out = append(out, effect.BroadcastVote(v))
			// Count our own vote immediately rather than waiting for it to
			// echo back over the network, matching common production
			// Tendermint drivers and avoiding a needless self-roundtrip.
			out = append(out, d.recordVote(v)...)

		case o.IsScheduleTimeout():
			kind, dur := o.GetScheduleTimeout()
			out = append(out, effect.ScheduleTimeout(kind, d.height, d.round, dur))

		case o.IsRequestValue():
			h, r, dur := o.GetRequestValue()
			out = append(out, effect.RequestValue(h, r, dur))

		case o.IsDecide():
			v, r := o.GetDecide()
			id := d.hash(v)
			proposal := d.findProposal(r, id)
			commits := d.vk.PrecommitVotes(r, &id)
			out = append(out, effect.Decide(proposal, commits))
			d.decided = true
			d.logger.Info().Uint64("height", uint64(d.height)).Uint32("round", uint32(r)).Str("value", id.String()).Msg("decided")
		}
	}
	return out
}

// startNewRound cancels the outstanding timeouts of the round being left,
// advances to r, and fires the RSM's NewRound entry for it.
func (d *Driver) startNewRound(r types.Round) []effect.Effect {
	out := []effect.Effect{
		effect.CancelTimeout(roundstate.TimeoutProposeKind, d.height, d.round),
		effect.CancelTimeout(roundstate.TimeoutPrevoteKind, d.height, d.round),
		effect.CancelTimeout(roundstate.TimeoutPrecommitKind, d.height, d.round),
	}
	d.round = r
	proposer := d.vs.Proposer(r)
	d.logger.Info().Uint64("height", uint64(d.height)).Uint32("round", uint32(r)).Bool("proposer", proposer.Address == d.address).Msg("entering round")
	next, outs := roundstate.Apply(d.rs, roundstate.NewRound(proposer.Address == d.address), d.tp, d.hash)
	d.rs = next
	return append(out, d.translate(outs)...)
}

func (d *Driver) findProposal(r types.Round, id types.ValueID) types.Proposal {
	for key, props := range d.proposals {
		if key.round != r {
			continue
		}
		for _, p := range props {
			if d.hash(p.Value) == id {
				return p
			}
		}
	}
	return types.Proposal{Height: d.height, Round: r, Value: nil}
}
