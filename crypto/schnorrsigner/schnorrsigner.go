// Package schnorrsigner implements crypto.Signer and crypto.Verifier with a
// Schnorr signature over the Ed25519 group provided by go.dedis.ch/kyber/v3,
// demonstrating that the core's Signer/Verifier contract is not tied to one
// signature scheme.
package schnorrsigner

import (
	"context"
	"sync"

	"go.dedis.ch/kyber/v3"
	"go.dedis.ch/kyber/v3/group/edwards25519"
	"go.dedis.ch/kyber/v3/sign/schnorr"
	"go.dedis.ch/kyber/v3/util/random"

	"github.com/cmwaters/tendercore/crypto"
)

var suite = edwards25519.NewBlakeSHA256Ed25519()

// Signer signs with a kyber Schnorr key pair and enforces the watermark
// double-sign guard locally, following edsigner's structure.
type Signer struct {
	mu    sync.Mutex
	priv  kyber.Scalar
	pub   kyber.Point
	mark  crypto.Watermark
	first bool
}

var _ crypto.Signer = (*Signer)(nil)

// New generates a fresh Schnorr key pair over suite's group.
func New() *Signer {
	priv := suite.Scalar().Pick(random.New())
	pub := suite.Point().Mul(priv, nil)
	return &Signer{priv: priv, pub: pub}
}

func (s *Signer) PubKey() []byte {
	b, err := s.pub.MarshalBinary()
	if err != nil {
		panic(err)
	}
	return b
}

func (s *Signer) Sign(_ context.Context, mark crypto.Watermark, msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.first && !mark.Greater(s.mark) {
		return nil, crypto.ErrAlreadySigned{At: s.mark}
	}

	sig, err := schnorr.Sign(suite, s.priv, msg)
	if err != nil {
		return nil, err
	}
	s.mark = mark
	s.first = true
	return sig, nil
}

// Verifier verifies Schnorr signatures produced by Signer.
type Verifier struct{}

var _ crypto.Verifier = Verifier{}

func (Verifier) Verify(pubKey, msg, sig []byte) bool {
	pub := suite.Point()
	if err := pub.UnmarshalBinary(pubKey); err != nil {
		return false
	}
	return schnorr.Verify(suite, pub, msg, sig) == nil
}
