// Package votekeeper implements per-height vote accounting: admitting
// signed votes, detecting Byzantine quorums and skip-round evidence, and
// detecting equivocation, each threshold event surfaced at most once. A
// Keeper is created fresh by the driver at StartHeight and retains every
// round's bookkeeping for the life of the height, so late evidence from an
// earlier round of the same height is never lost.
package votekeeper

import "github.com/cmwaters/tendercore/types"

// Keeper accounts votes for a single height. q and skipThreshold are fixed
// for the height's validator set: the driver never mutates a Keeper's
// validator set mid-height.
type Keeper struct {
	quorum        uint64
	skipThreshold uint64

	rounds map[types.Round]*roundVotes
}

// NewKeeper creates a Keeper for one height's validator set.
func NewKeeper(quorum, skipThreshold uint64) *Keeper {
	return &Keeper{
		quorum:        quorum,
		skipThreshold: skipThreshold,
		rounds:        make(map[types.Round]*roundVotes),
	}
}

type voterRecord struct {
	prevote     *types.Vote
	precommit   *types.Vote
	equivocated bool
}

type valueKey struct {
	isNil bool
	id    types.ValueID
}

func keyOf(id *types.ValueID) valueKey {
	if id == nil {
		return valueKey{isNil: true}
	}
	return valueKey{id: *id}
}

type roundVotes struct {
	voters map[types.Address]*voterRecord

	prevoteWeights   map[valueKey]uint64
	precommitWeights map[valueKey]uint64
	totalPrevote     uint64
	totalPrecommit   uint64

	// distinctPower is the sum of voting power of every voter who has cast
	// at least one vote (of either kind) in this round, counted once per
	// voter, used for SkipRound evidence.
	distinctPower uint64

	emitted    map[eventKind]map[valueKey]bool
	skipEmitted bool
}

func newRoundVotes() *roundVotes {
	return &roundVotes{
		voters:           make(map[types.Address]*voterRecord),
		prevoteWeights:   make(map[valueKey]uint64),
		precommitWeights: make(map[valueKey]uint64),
		emitted:          make(map[eventKind]map[valueKey]bool),
	}
}

func (rv *roundVotes) markEmitted(kind eventKind, key valueKey) bool {
	if rv.emitted[kind] == nil {
		rv.emitted[kind] = make(map[valueKey]bool)
	}
	if rv.emitted[kind][key] {
		return false
	}
	rv.emitted[kind][key] = true
	return true
}

func (k *Keeper) round(r types.Round) *roundVotes {
	rv, ok := k.rounds[r]
	if !ok {
		rv = newRoundVotes()
		k.rounds[r] = rv
	}
	return rv
}

// AddVote admits vote, cast with the given voting power, and returns every
// newly-triggered event: at most one Equivocation, followed by at most one
// threshold event per kind. currentRound is the driver's round at the time
// of the call, used to detect SkipRound evidence in a higher round.
func (k *Keeper) AddVote(vote types.Vote, power uint64, currentRound types.Round) []Event {
	rv := k.round(vote.Round)

	rec, ok := rv.voters[vote.Voter]
	if !ok {
		rec = &voterRecord{}
		rv.voters[vote.Voter] = rec
	}

	var events []Event
	firstVoteFromVoter := rec.prevote == nil && rec.precommit == nil

	existing := rec.prevote
	if vote.Kind == types.VoteKindPrecommit {
		existing = rec.precommit
	}

	switch {
	case existing != nil && sameValue(existing.ValueID, vote.ValueID):
		// Duplicate: no change in thresholds.
		return nil
	case existing != nil:
		// Equivocation: the voter's power stays attributed to the first
		// vote seen; do not double-count.
		if !rec.equivocated {
			rec.equivocated = true
			events = append(events, equivocation(vote.Voter, vote.Kind, vote.Round, *existing, vote))
		}
		return events
	default:
		if vote.Kind == types.VoteKindPrevote {
			rec.prevote = &vote
		} else {
			rec.precommit = &vote
		}
	}

	if firstVoteFromVoter {
		rv.distinctPower += power
	}

	key := keyOf(vote.ValueID)
	if vote.Kind == types.VoteKindPrevote {
		rv.prevoteWeights[key] += power
		rv.totalPrevote += power
	} else {
		rv.precommitWeights[key] += power
		rv.totalPrecommit += power
	}

	events = append(events, k.thresholdEvents(rv, vote.Kind, vote.Round)...)
	events = append(events, k.skipRoundEvent(rv, vote.Round, currentRound)...)
	return events
}

func (k *Keeper) thresholdEvents(rv *roundVotes, kind types.VoteKind, round types.Round) []Event {
	weights, total := rv.prevoteWeights, rv.totalPrevote
	if kind == types.VoteKindPrecommit {
		weights, total = rv.precommitWeights, rv.totalPrecommit
	}

	var events []Event
	for key, w := range weights {
		if key.isNil || w < k.quorum {
			continue
		}
		if kind == types.VoteKindPrevote {
			if rv.markEmitted(eventPolkaValue, key) {
				events = append(events, polkaValue(key.id, round))
			}
		} else if rv.markEmitted(eventPrecommitValue, key) {
			events = append(events, precommitValue(key.id, round))
		}
	}

	if nilWeight := weights[valueKey{isNil: true}]; kind == types.VoteKindPrevote && nilWeight >= k.quorum {
		if rv.markEmitted(eventPolkaNil, valueKey{}) {
			events = append(events, polkaNil(round))
		}
	}

	if total >= k.quorum {
		anyKind := eventPolkaAny
		if kind == types.VoteKindPrecommit {
			anyKind = eventPrecommitAny
		}
		if rv.markEmitted(anyKind, valueKey{}) {
			if kind == types.VoteKindPrevote {
				events = append(events, polkaAny(round))
			} else {
				events = append(events, precommitAny(round))
			}
		}
	}
	return events
}

func (k *Keeper) skipRoundEvent(rv *roundVotes, round, currentRound types.Round) []Event {
	if round <= currentRound || rv.skipEmitted || rv.distinctPower < k.skipThreshold {
		return nil
	}
	rv.skipEmitted = true
	return []Event{skipRound(round)}
}

// Quorum returns the voting power threshold q this keeper was constructed
// with.
func (k *Keeper) Quorum() uint64 { return k.quorum }

// PrevoteWeight returns the voting power currently attributed to prevotes
// for id in round r (or for nil, if id is nil). Unlike AddVote's returned
// events, this is a plain query with no at-most-once semantics: it lets the
// driver's multiplexer re-check an already-crossed threshold when a late
// Proposal arrives after the event that first reported it.
func (k *Keeper) PrevoteWeight(r types.Round, id *types.ValueID) uint64 {
	rv, ok := k.rounds[r]
	if !ok {
		return 0
	}
	return rv.prevoteWeights[keyOf(id)]
}

// PrecommitWeight is PrevoteWeight's precommit counterpart.
func (k *Keeper) PrecommitWeight(r types.Round, id *types.ValueID) uint64 {
	rv, ok := k.rounds[r]
	if !ok {
		return 0
	}
	return rv.precommitWeights[keyOf(id)]
}

// TotalPrevoteWeight returns the combined voting power of every prevote
// cast in round r, across every value including nil.
func (k *Keeper) TotalPrevoteWeight(r types.Round) uint64 {
	rv, ok := k.rounds[r]
	if !ok {
		return 0
	}
	return rv.totalPrevote
}

// TotalPrecommitWeight is TotalPrevoteWeight's precommit counterpart.
func (k *Keeper) TotalPrecommitWeight(r types.Round) uint64 {
	rv, ok := k.rounds[r]
	if !ok {
		return 0
	}
	return rv.totalPrecommit
}

// SkipRoundCandidate reports the lowest round strictly greater than
// currentRound whose distinct voting power meets this keeper's skip
// threshold, if any. It lets the multiplexer re-derive SkipRound evidence
// on demand rather than relying solely on AddVote's at-most-once event.
func (k *Keeper) SkipRoundCandidate(currentRound types.Round) (types.Round, bool) {
	best, found := types.Round(0), false
	for r, rv := range k.rounds {
		if r <= currentRound || rv.distinctPower < k.skipThreshold {
			continue
		}
		if !found || r < best {
			best, found = r, true
		}
	}
	return best, found
}

// PrecommitVotes returns every stored precommit for id in round r, the
// commit set a Decide effect carries as evidence of the quorum.
func (k *Keeper) PrecommitVotes(r types.Round, id *types.ValueID) []types.Vote {
	rv, ok := k.rounds[r]
	if !ok {
		return nil
	}
	key := keyOf(id)
	var votes []types.Vote
	for _, rec := range rv.voters {
		if rec.precommit != nil && keyOf(rec.precommit.ValueID) == key {
			votes = append(votes, *rec.precommit)
		}
	}
	return votes
}

func sameValue(a, b *types.ValueID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
