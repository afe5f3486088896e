// Package edsigner implements crypto.Signer and crypto.Verifier over
// stdlib crypto/ed25519, the default signing backend.
package edsigner

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"

	"github.com/cmwaters/tendercore/crypto"
)

// Signer signs with a single ed25519 key pair and enforces the watermark
// double-sign guard locally.
type Signer struct {
	mu    sync.Mutex
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
	mark  crypto.Watermark
	first bool
}

var _ crypto.Signer = (*Signer)(nil)

// New generates a fresh ed25519 key pair.
func New() (*Signer, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, err
	}
	return &Signer{priv: priv, pub: pub}, nil
}

// NewFromKey wraps an existing ed25519 private key.
func NewFromKey(priv ed25519.PrivateKey) *Signer {
	return &Signer{priv: priv, pub: priv.Public().(ed25519.PublicKey)}
}

func (s *Signer) PubKey() []byte {
	return append([]byte(nil), s.pub...)
}

func (s *Signer) Sign(_ context.Context, mark crypto.Watermark, msg []byte) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.first && !mark.Greater(s.mark) {
		return nil, crypto.ErrAlreadySigned{At: s.mark}
	}
	s.mark = mark
	s.first = true
	return ed25519.Sign(s.priv, msg), nil
}

// Verifier verifies ed25519 signatures.
type Verifier struct{}

var _ crypto.Verifier = Verifier{}

func (Verifier) Verify(pubKey, msg, sig []byte) bool {
	if len(pubKey) != ed25519.PublicKeySize {
		return false
	}
	return ed25519.Verify(ed25519.PublicKey(pubKey), msg, sig)
}
