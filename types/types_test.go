package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmwaters/tendercore/types"
)

func TestVoteSignBytesIgnoresVoterAndSignature(t *testing.T) {
	id := types.DefaultHasher(types.Value("hello"))
	a := types.Vote{Kind: types.VoteKindPrevote, Height: 5, Round: 2, ValueID: &id, Voter: "alice"}
	b := types.Vote{Kind: types.VoteKindPrevote, Height: 5, Round: 2, ValueID: &id, Voter: "bob", Signature: []byte{1, 2, 3}}
	require.Equal(t, a.SignBytes(), b.SignBytes())
}

func TestVoteSignBytesDistinguishesNilFromValue(t *testing.T) {
	id := types.DefaultHasher(types.Value("hello"))
	withValue := types.Vote{Kind: types.VoteKindPrevote, Height: 1, Round: 0, ValueID: &id}
	nilVote := types.Vote{Kind: types.VoteKindPrevote, Height: 1, Round: 0}
	require.NotEqual(t, withValue.SignBytes(), nilVote.SignBytes())
}

func TestVoteSignBytesDistinguishesKindHeightRound(t *testing.T) {
	base := types.Vote{Kind: types.VoteKindPrevote, Height: 1, Round: 0}
	require.NotEqual(t, base.SignBytes(), types.Vote{Kind: types.VoteKindPrecommit, Height: 1, Round: 0}.SignBytes())
	require.NotEqual(t, base.SignBytes(), types.Vote{Kind: types.VoteKindPrevote, Height: 2, Round: 0}.SignBytes())
	require.NotEqual(t, base.SignBytes(), types.Vote{Kind: types.VoteKindPrevote, Height: 1, Round: 1}.SignBytes())
}

func TestProposalSignBytesKeyedOnValueID(t *testing.T) {
	id1 := types.DefaultHasher(types.Value("a"))
	id2 := types.DefaultHasher(types.Value("b"))
	p := types.Proposal{Height: 1, Round: 0, ValidRound: types.NilRound}
	require.NotEqual(t, p.SignBytes(id1), p.SignBytes(id2))
}

func TestDefaultHasherIsDeterministic(t *testing.T) {
	v := types.Value("some value bytes")
	require.Equal(t, types.DefaultHasher(v), types.DefaultHasher(v))
	require.NotEqual(t, types.DefaultHasher(v), types.DefaultHasher(types.Value("other")))
}

func TestValueIDIsZero(t *testing.T) {
	var id types.ValueID
	require.True(t, id.IsZero())
	id = types.DefaultHasher(types.Value("x"))
	require.False(t, id.IsZero())
}
