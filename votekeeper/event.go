package votekeeper

import "github.com/cmwaters/tendercore/types"

// Event is the sum type of threshold and misbehavior events the vote keeper
// surfaces to the driver. Exactly one of the constructor functions below
// produces a well-formed Event.
type Event struct {
	kind eventKind

	round types.Round
	value *types.ValueID // nil for PolkaNil / PrecommitAny-with-no-single-value

	voter    types.Address
	voteKind types.VoteKind
	first    types.Vote
	second   types.Vote
}

type eventKind uint8

const (
	eventPolkaValue eventKind = iota
	eventPolkaNil
	eventPolkaAny
	eventPrecommitValue
	eventPrecommitAny
	eventSkipRound
	eventEquivocation
)

func polkaValue(id types.ValueID, r types.Round) Event {
	return Event{kind: eventPolkaValue, value: &id, round: r}
}

func polkaNil(r types.Round) Event { return Event{kind: eventPolkaNil, round: r} }

func polkaAny(r types.Round) Event { return Event{kind: eventPolkaAny, round: r} }

func precommitValue(id types.ValueID, r types.Round) Event {
	return Event{kind: eventPrecommitValue, value: &id, round: r}
}

func precommitAny(r types.Round) Event { return Event{kind: eventPrecommitAny, round: r} }

func skipRound(r types.Round) Event { return Event{kind: eventSkipRound, round: r} }

func equivocation(voter types.Address, kind types.VoteKind, round types.Round, first, second types.Vote) Event {
	return Event{kind: eventEquivocation, voter: voter, voteKind: kind, round: round, first: first, second: second}
}

func (e Event) IsPolkaValue() bool     { return e.kind == eventPolkaValue }
func (e Event) IsPolkaNil() bool       { return e.kind == eventPolkaNil }
func (e Event) IsPolkaAny() bool       { return e.kind == eventPolkaAny }
func (e Event) IsPrecommitValue() bool { return e.kind == eventPrecommitValue }
func (e Event) IsPrecommitAny() bool   { return e.kind == eventPrecommitAny }
func (e Event) IsSkipRound() bool      { return e.kind == eventSkipRound }
func (e Event) IsEquivocation() bool   { return e.kind == eventEquivocation }

// GetPolkaValue returns the value id and round of a PolkaValue/PrecommitValue
// event.
func (e Event) GetPolkaValue() (types.ValueID, types.Round) {
	if e.value == nil {
		return types.ValueID{}, e.round
	}
	return *e.value, e.round
}

// GetRound returns the round any event pertains to.
func (e Event) GetRound() types.Round { return e.round }

// GetEquivocation returns the details of an Equivocation event.
func (e Event) GetEquivocation() (voter types.Address, kind types.VoteKind, round types.Round, first, second types.Vote) {
	return e.voter, e.voteKind, e.round, e.first, e.second
}

func (e Event) String() string {
	switch e.kind {
	case eventPolkaValue:
		return "PolkaValue"
	case eventPolkaNil:
		return "PolkaNil"
	case eventPolkaAny:
		return "PolkaAny"
	case eventPrecommitValue:
		return "PrecommitValue"
	case eventPrecommitAny:
		return "PrecommitAny"
	case eventSkipRound:
		return "SkipRound"
	case eventEquivocation:
		return "Equivocation"
	default:
		return "Event(?)"
	}
}
