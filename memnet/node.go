package memnet

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// ValueProvider produces the value a process proposes when it is the
// proposer and holds no locked value, the application-supplied collaborator
// a real deployment would back with a mempool or block builder.
type ValueProvider func(ctx context.Context, h types.Height, r types.Round) (types.Value, error)

// DecisionFunc is notified every time a Node's driver commits a value, the
// hook through which the application learns of a decision.
type DecisionFunc func(h types.Height, proposal types.Proposal, commits []types.Vote)

type timerKey struct {
	kind  roundstate.TimeoutKind
	round types.Round
}

// Node is one process's effect.Interpreter: it gossips through its Network,
// schedules and cancels timeouts with real wall-clock timers, and produces
// values on request. Bind must be called with the *effect.Runtime this Node
// interprets for before the runtime processes any input, since Broadcast,
// ScheduleTimeout and RequestValue all loop back into that same runtime.
type Node struct {
	address types.Address
	net     *Network
	values  ValueProvider
	decided DecisionFunc

	mu       sync.Mutex
	self     Submitter
	height   types.Height
	timers   map[timerKey]*time.Timer
}

var _ effect.Interpreter = (*Node)(nil)

// NewNode builds a Node bound to net under address, producing values with
// values and reporting decisions to decided (which may be nil).
func NewNode(net *Network, address types.Address, values ValueProvider, decided DecisionFunc) *Node {
	n := &Node{
		address: address,
		net:     net,
		values:  values,
		decided: decided,
		timers:  make(map[timerKey]*time.Timer),
	}
	return n
}

// Bind attaches the runtime this Node interprets effects for and registers
// it with the Network so peers can reach it. Call once, before the runtime
// is given any input.
func (n *Node) Bind(runtime Submitter) {
	n.mu.Lock()
	n.self = runtime
	n.mu.Unlock()
	n.net.Join(n.address, runtime)
}

func (n *Node) Broadcast(ctx context.Context, proposal *types.Proposal, vote *types.Vote) error {
	switch {
	case proposal != nil:
		return n.net.broadcast(ctx, n.address, effect.ProposalInput(*proposal))
	case vote != nil:
		return n.net.broadcast(ctx, n.address, effect.VoteInput(*vote))
	default:
		return fmt.Errorf("memnet: broadcast called with neither proposal nor vote")
	}
}

func (n *Node) ScheduleTimeout(ctx context.Context, kind roundstate.TimeoutKind, h types.Height, r types.Round, d time.Duration) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.height = h
	key := timerKey{kind: kind, round: r}
	if existing, ok := n.timers[key]; ok {
		existing.Stop()
	}
	self := n.self
	n.timers[key] = time.AfterFunc(d, func() {
		_ = self.Submit(context.Background(), effect.TimeoutElapsedInput(kind, h, r))
	})
	return nil
}

func (n *Node) CancelTimeout(_ context.Context, kind roundstate.TimeoutKind, _ types.Height, r types.Round) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	key := timerKey{kind: kind, round: r}
	if t, ok := n.timers[key]; ok {
		t.Stop()
		delete(n.timers, key)
	}
	return nil
}

func (n *Node) RequestValue(ctx context.Context, h types.Height, r types.Round, deadline time.Duration) error {
	n.mu.Lock()
	self := n.self
	n.mu.Unlock()

	if n.values == nil {
		return fmt.Errorf("memnet: node %s has no value provider", n.address)
	}

	go func() {
		reqCtx, cancel := context.WithTimeout(context.Background(), deadline)
		defer cancel()
		v, err := n.values(reqCtx, h, r)
		if err != nil {
			return
		}
		_ = self.Submit(context.Background(), effect.ProposeValueInput(h, r, v))
	}()
	return nil
}

func (n *Node) Decide(_ context.Context, proposal types.Proposal, commits []types.Vote) error {
	if n.decided != nil {
		n.decided(proposal.Height, proposal, commits)
	}
	return nil
}

func (n *Node) GetValidatorSet(_ context.Context, h types.Height) (*types.ValidatorSet, error) {
	return n.net.validatorSet(h)
}
