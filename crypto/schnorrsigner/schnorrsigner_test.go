package schnorrsigner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmwaters/tendercore/crypto"
	"github.com/cmwaters/tendercore/crypto/schnorrsigner"
)

func TestSignAndVerify(t *testing.T) {
	s := schnorrsigner.New()
	msg := []byte("precommit height 3 round 1")
	sig, err := s.Sign(context.Background(), crypto.Watermark{Height: 3, Round: 1, Kind: crypto.WatermarkKindPrecommit}, msg)
	require.NoError(t, err)

	require.True(t, schnorrsigner.Verifier{}.Verify(s.PubKey(), msg, sig))
	require.False(t, schnorrsigner.Verifier{}.Verify(s.PubKey(), []byte("other message"), sig))
}

func TestSignerRejectsNonIncreasingWatermark(t *testing.T) {
	s := schnorrsigner.New()
	_, err := s.Sign(context.Background(), crypto.Watermark{Height: 1, Round: 0, Kind: crypto.WatermarkKindProposal}, []byte("a"))
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), crypto.Watermark{Height: 1, Round: 0, Kind: crypto.WatermarkKindProposal}, []byte("b"))
	require.Error(t, err)
}

func TestVerifierRejectsGarbagePubKey(t *testing.T) {
	require.False(t, schnorrsigner.Verifier{}.Verify([]byte{1, 2, 3}, []byte("msg"), []byte("sig")))
}
