package votekeeper_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmwaters/tendercore/types"
	"github.com/cmwaters/tendercore/votekeeper"
)

// four equal-power validators: N=4, f=1, q=3, skip threshold=2.
const quorum = 3
const skipThreshold = 2

func vote(kind types.VoteKind, round types.Round, voter types.Address, id *types.ValueID) types.Vote {
	return types.Vote{Kind: kind, Height: 1, Round: round, Voter: voter, ValueID: id}
}

func TestPolkaValueFiresOnceQuorumReached(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	id := types.DefaultHasher(types.Value("v"))

	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "a", &id), 1, 0))
	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "b", &id), 1, 0))

	events := k.AddVote(vote(types.VoteKindPrevote, 0, "c", &id), 1, 0)
	// the third prevote also brings total prevote weight to q, so PolkaAny
	// follows PolkaValue.
	require.Len(t, events, 2)
	require.True(t, events[0].IsPolkaValue())
	gotID, gotRound := events[0].GetPolkaValue()
	require.Equal(t, id, gotID)
	require.Equal(t, types.Round(0), gotRound)
	require.True(t, events[1].IsPolkaAny())

	// a fourth vote for the same value must not re-emit the event.
	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "d", &id), 1, 0))
}

func TestDuplicateVoteIsANoOp(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	id := types.DefaultHasher(types.Value("v"))
	v := vote(types.VoteKindPrevote, 0, "a", &id)
	require.Empty(t, k.AddVote(v, 1, 0))
	require.Empty(t, k.AddVote(v, 1, 0))
	require.Equal(t, uint64(1), k.PrevoteWeight(0, &id))
}

func TestEquivocationReportedOnceAndPowerNotDoubleCounted(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	idA := types.DefaultHasher(types.Value("a"))
	idB := types.DefaultHasher(types.Value("b"))

	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "x", &idA), 1, 0))
	events := k.AddVote(vote(types.VoteKindPrevote, 0, "x", &idB), 1, 0)
	require.Len(t, events, 1)
	require.True(t, events[0].IsEquivocation())

	// a third distinct vote from the same equivocator changes nothing further.
	idC := types.DefaultHasher(types.Value("c"))
	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "x", &idC), 1, 0))

	require.Equal(t, uint64(1), k.PrevoteWeight(0, &idA))
	require.Equal(t, uint64(0), k.PrevoteWeight(0, &idB))
	require.Equal(t, uint64(1), k.TotalPrevoteWeight(0))
}

func TestPolkaNilAndPolkaAny(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "a", nil), 1, 0))
	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 0, "b", nil), 1, 0))
	events := k.AddVote(vote(types.VoteKindPrevote, 0, "c", nil), 1, 0)

	var kinds []string
	for _, e := range events {
		switch {
		case e.IsPolkaNil():
			kinds = append(kinds, "nil")
		case e.IsPolkaAny():
			kinds = append(kinds, "any")
		}
	}
	require.ElementsMatch(t, []string{"nil", "any"}, kinds)
}

func TestPrecommitValueAndPrecommitAny(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	id := types.DefaultHasher(types.Value("v"))
	require.Empty(t, k.AddVote(vote(types.VoteKindPrecommit, 0, "a", &id), 1, 0))
	require.Empty(t, k.AddVote(vote(types.VoteKindPrecommit, 0, "b", &id), 1, 0))
	events := k.AddVote(vote(types.VoteKindPrecommit, 0, "c", &id), 1, 0)

	var sawValue, sawAny bool
	for _, e := range events {
		if e.IsPrecommitValue() {
			sawValue = true
		}
		if e.IsPrecommitAny() {
			sawAny = true
		}
	}
	require.True(t, sawValue)
	require.True(t, sawAny)
	require.ElementsMatch(t, []types.Vote{
		vote(types.VoteKindPrecommit, 0, "a", &id),
		vote(types.VoteKindPrecommit, 0, "b", &id),
		vote(types.VoteKindPrecommit, 0, "c", &id),
	}, k.PrecommitVotes(0, &id))
}

func TestSkipRoundCandidateRequiresHigherRoundAndThreshold(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	_, ok := k.SkipRoundCandidate(0)
	require.False(t, ok)

	require.Empty(t, k.AddVote(vote(types.VoteKindPrevote, 5, "a", nil), 1, 0))
	_, ok = k.SkipRoundCandidate(0)
	require.False(t, ok) // only 1 of 2 needed

	events := k.AddVote(vote(types.VoteKindPrecommit, 5, "b", nil), 1, 0)
	var sawSkip bool
	for _, e := range events {
		if e.IsSkipRound() {
			sawSkip = true
			require.Equal(t, types.Round(5), e.GetRound())
		}
	}
	require.True(t, sawSkip)

	r, ok := k.SkipRoundCandidate(0)
	require.True(t, ok)
	require.Equal(t, types.Round(5), r)

	// a round at or below currentRound is never a candidate.
	_, ok = k.SkipRoundCandidate(5)
	require.False(t, ok)
}

func TestRoundsAreIndependent(t *testing.T) {
	k := votekeeper.NewKeeper(quorum, skipThreshold)
	id := types.DefaultHasher(types.Value("v"))
	k.AddVote(vote(types.VoteKindPrevote, 0, "a", &id), 1, 0)
	require.Equal(t, uint64(0), k.PrevoteWeight(1, &id))
	require.Equal(t, uint64(1), k.PrevoteWeight(0, &id))
}
