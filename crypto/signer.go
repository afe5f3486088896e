// Package crypto defines the abstract Signer/Verifier contract shared by
// the round state machine's consumers and hosts concrete backends under
// edsigner and schnorrsigner. The core never imports a concrete backend
// directly.
package crypto

import (
	"context"
	"fmt"
)

// Signer signs message bytes on behalf of one validator. Implementations
// must guarantee a validator never double-signs at the same watermark.
type Signer interface {
	// PubKey returns the raw public key bytes identifying this signer.
	PubKey() []byte

	// Sign signs msg for the given watermark. It must fail rather than
	// sign if mark does not strictly exceed the watermark of every prior
	// call, so that a single honest process can never equivocate through
	// its own signer.
	Sign(ctx context.Context, mark Watermark, msg []byte) ([]byte, error)
}

// Verifier checks a signature against a public key. Verify must be
// deterministic: repeated calls with the same arguments always agree.
type Verifier interface {
	Verify(pubKey, msg, sig []byte) bool
}

// Watermark orders signing requests within one signer so double-signing can
// be detected locally. (Height, Round, Kind) is a natural watermark for
// votes; proposals use Kind = WatermarkKindProposal.
type Watermark struct {
	Height uint64
	Round  int32
	Kind   uint8
}

const (
	WatermarkKindProposal uint8 = iota
	WatermarkKindPrevote
	WatermarkKindPrecommit
)

// Greater reports whether w should be permitted to sign after other already
// has, i.e. w is strictly later in (Height, Round, Kind) order.
func (w Watermark) Greater(other Watermark) bool {
	if w.Height != other.Height {
		return w.Height > other.Height
	}
	if w.Round != other.Round {
		return w.Round > other.Round
	}
	return w.Kind > other.Kind
}

// ErrAlreadySigned is returned by a Signer when asked to sign at or before
// its current watermark.
type ErrAlreadySigned struct {
	At Watermark
}

func (e ErrAlreadySigned) Error() string {
	return fmt.Sprintf("crypto: already signed at or after watermark %+v", e.At)
}
