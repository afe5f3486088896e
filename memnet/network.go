// Package memnet is an in-process test double for the collaborators behind
// effect.Interpreter: gossip, timers and value production, all wired
// synchronously in memory. It exists so a multi-node consensus run can be
// driven and tested in a single process without a real network or clock.
package memnet

import (
	"context"
	"fmt"
	"sync"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/types"
)

// Submitter is the subset of *effect.Runtime that memnet needs: enough to
// hand a peer's runtime a freshly gossiped input without importing effect's
// concrete Runtime type into this package's public surface.
type Submitter interface {
	Submit(ctx context.Context, in effect.DriverInput) error
}

// Network fans out proposals and votes gossiped by one Node to every other
// registered Node, and hands out the validator set every Node was built
// with. Delivery is direct and synchronous, a same-process stand-in for
// real gossip that gives tests deterministic ordering.
type Network struct {
	mu    sync.Mutex
	vs    *types.ValidatorSet
	peers map[types.Address]Submitter
}

// NewNetwork builds a Network for a fixed validator set. Nodes register
// themselves with Join as they're constructed.
func NewNetwork(vs *types.ValidatorSet) *Network {
	return &Network{vs: vs, peers: make(map[types.Address]Submitter)}
}

// Join registers a peer's runtime so other nodes' broadcasts reach it. It
// must be called once, after the peer's *effect.Runtime exists, before that
// runtime processes any input.
func (n *Network) Join(addr types.Address, s Submitter) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.peers[addr] = s
}

// broadcast delivers in to every registered peer except from. A gossiped
// proposal is followed by this network's own verdict on it: memnet stands
// in for the whole application layer, including whatever executes and
// validates a proposed value, and it has no block execution logic of its
// own to run, so it accepts every value it relays. A real deployment would
// instead have its application submit ProposedValueInput once its own
// (possibly asynchronous) validation of the value completes.
func (n *Network) broadcast(ctx context.Context, from types.Address, in effect.DriverInput) error {
	n.mu.Lock()
	targets := make([]Submitter, 0, len(n.peers))
	for addr, s := range n.peers {
		if addr == from {
			continue
		}
		targets = append(targets, s)
	}
	n.mu.Unlock()

	var verdict *effect.DriverInput
	if in.IsProposal() {
		p := in.GetProposal()
		v := effect.ProposedValueInput(p.Height, p.Round, p.Value, true)
		verdict = &v
	}

	var firstErr error
	for _, s := range targets {
		if err := s.Submit(ctx, in); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("memnet: peer rejected gossiped input: %w", err)
		}
		if verdict != nil {
			if err := s.Submit(ctx, *verdict); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("memnet: peer rejected gossiped input: %w", err)
			}
		}
	}
	return firstErr
}

func (n *Network) validatorSet(h types.Height) (*types.ValidatorSet, error) {
	return n.vs, nil
}
