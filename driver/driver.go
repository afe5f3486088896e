// Package driver implements the composition layer: it translates external
// inputs (proposals, votes, application callbacks, timeouts) into the round
// state machine's narrower input vocabulary, keeps the vote keeper fed, and
// owns everything that survives across the rounds of one height, including
// its own equivocating-proposer bookkeeping.
package driver

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/cmwaters/tendercore/crypto"
	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
	"github.com/cmwaters/tendercore/votekeeper"
)

type proposalKey struct {
	round    types.Round
	proposer types.Address
}

// Driver is one process's view of one height. It is re-initialized on every
// StartHeight input rather than reconstructed — a fresh Driver would start
// from the same zero fields — which lets the caller reuse one long-lived
// signer-bound object across a node's whole run.
type Driver struct {
	address types.Address
	signer  crypto.Signer
	verify  crypto.Verifier
	hash    types.Hasher
	tp      roundstate.TimeoutParams
	logger  zerolog.Logger

	height types.Height
	vs     *types.ValidatorSet
	round  types.Round
	rs     roundstate.State
	vk     *votekeeper.Keeper

	// proposals holds, per (round, proposer), every distinct value that
	// proposer has proposed for that round: normally one, two if the
	// proposer has equivocated, never more (a third distinct value from the
	// same proposer in the same round adds no new safety-relevant
	// information).
	proposals map[proposalKey][]types.Proposal
	// validity records the application's verdict for a value's id once a
	// ProposedValue input reports it; absence means "not yet known".
	validity map[types.ValueID]bool

	decided bool
}

var _ effect.Handler = (*Driver)(nil)
var _ effect.TimeoutResumer = (*Driver)(nil)

// New builds a Driver bound to one signing identity, logging through
// logger. Call Handle with a StartHeight input before any other input.
func New(address types.Address, signer crypto.Signer, verify crypto.Verifier, hash types.Hasher, tp roundstate.TimeoutParams, logger zerolog.Logger) *Driver {
	return &Driver{address: address, signer: signer, verify: verify, hash: hash, tp: tp, logger: logger}
}

// Handle processes one input to completion, yielding control only once the
// core reaches a stable state again, and returns the ordered effects it
// produced. A non-nil error means the input's kind tag was unrecognized —
// an invariant violation, since effect.DriverInput only ever constructs
// known kinds; every other rejection (unknown validator, bad signature,
// wrong height) is reported by simply returning fewer effects. There is
// nothing to unwind in that case, because nothing was applied.
func (d *Driver) Handle(ctx context.Context, in effect.DriverInput) ([]effect.Effect, error) {
	d.logger.Debug().Str("input", in.String()).Msg("handling input")
	switch {
	case in.IsStartHeight():
		return d.handleStartHeight(in)
	case in.IsProposal():
		return d.persisted(in, d.handleProposal(in))
	case in.IsVote():
		return d.persisted(in, d.handleVote(ctx, in))
	case in.IsProposedValue():
		return d.persisted(in, d.handleProposedValue(in))
	case in.IsProposeValue():
		return d.persisted(in, d.handleProposeValue(ctx, in))
	case in.IsTimeoutElapsed():
		return d.persisted(in, d.handleTimeoutElapsed(ctx, in))
	default:
		violation := effect.InvariantViolation{Detail: fmt.Sprintf("unrecognized input %s", in)}
		d.logger.Error().Err(violation).Msg("invariant violation")
		return nil, violation
	}
}

// persisted prepends the PersistInput effect required for every input kind
// except StartHeight (which is the checkpoint itself), giving callers a
// persist-input-first ordering by construction.
func (d *Driver) persisted(in effect.DriverInput, effects []effect.Effect) ([]effect.Effect, error) {
	return append([]effect.Effect{effect.PersistInput(in)}, effects...), nil
}

func (d *Driver) handleStartHeight(in effect.DriverInput) ([]effect.Effect, error) {
	h, vs := in.GetStartHeight()
	d.height = h
	d.vs = vs
	d.round = 0
	d.rs = roundstate.New(h)
	d.vk = votekeeper.NewKeeper(vs.Quorum(), vs.SkipThreshold())
	d.proposals = make(map[proposalKey][]types.Proposal)
	d.validity = make(map[types.ValueID]bool)
	d.decided = false

	d.logger.Info().Uint64("height", uint64(h)).Int("validators", len(vs.Validators())).Msg("starting height")

	proposer := vs.Proposer(0)
	return d.apply(roundstate.NewRound(proposer.Address == d.address)), nil
}

// apply feeds one RSM input and translates the resulting outputs into
// effects, mutating d.rs and d.round as a side effect.
func (d *Driver) apply(in roundstate.Input) []effect.Effect {
	next, outs := roundstate.Apply(d.rs, in, d.tp, d.hash)
	d.rs = next
	return d.translate(outs)
}

// ResumeTimeout reports the timeout kind the process should be waiting on
// for its current (height, round), derived from the round state machine's
// step rather than tracked separately: propose/prevote/precommit each map
// to exactly one outstanding timeout, and StepUnstarted/StepCommit need
// none (unstarted is about to receive a NewRound from the next replayed or
// live input; commit has already decided and awaits nothing). ok is false
// in those two cases, and before the first StartHeight.
func (d *Driver) ResumeTimeout() (kind roundstate.TimeoutKind, h types.Height, r types.Round, ok bool) {
	switch d.rs.Step {
	case types.StepPropose:
		return roundstate.TimeoutProposeKind, d.height, d.round, true
	case types.StepPrevote:
		return roundstate.TimeoutPrevoteKind, d.height, d.round, true
	case types.StepPrecommit:
		return roundstate.TimeoutPrecommitKind, d.height, d.round, true
	default:
		return 0, d.height, d.round, false
	}
}
