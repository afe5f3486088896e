package edsigner_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cmwaters/tendercore/crypto"
	"github.com/cmwaters/tendercore/crypto/edsigner"
)

func TestSignAndVerify(t *testing.T) {
	s, err := edsigner.New()
	require.NoError(t, err)

	msg := []byte("propose height 1 round 0")
	sig, err := s.Sign(context.Background(), crypto.Watermark{Height: 1, Round: 0, Kind: crypto.WatermarkKindProposal}, msg)
	require.NoError(t, err)

	require.True(t, edsigner.Verifier{}.Verify(s.PubKey(), msg, sig))
	require.False(t, edsigner.Verifier{}.Verify(s.PubKey(), []byte("tampered"), sig))
}

func TestSignerRejectsNonIncreasingWatermark(t *testing.T) {
	s, err := edsigner.New()
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), crypto.Watermark{Height: 5, Round: 1, Kind: crypto.WatermarkKindPrevote}, []byte("a"))
	require.NoError(t, err)

	_, err = s.Sign(context.Background(), crypto.Watermark{Height: 5, Round: 1, Kind: crypto.WatermarkKindPrevote}, []byte("b"))
	require.Error(t, err)
	var already crypto.ErrAlreadySigned
	require.ErrorAs(t, err, &already)

	_, err = s.Sign(context.Background(), crypto.Watermark{Height: 5, Round: 0, Kind: crypto.WatermarkKindPrecommit}, []byte("c"))
	require.Error(t, err)

	_, err = s.Sign(context.Background(), crypto.Watermark{Height: 5, Round: 1, Kind: crypto.WatermarkKindPrecommit}, []byte("d"))
	require.NoError(t, err)
}

func TestVerifierRejectsWrongKeyLength(t *testing.T) {
	require.False(t, edsigner.Verifier{}.Verify([]byte{1, 2, 3}, []byte("msg"), []byte("sig")))
}
