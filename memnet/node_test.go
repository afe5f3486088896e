package memnet_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/fortytw2/leaktest"
	"github.com/stretchr/testify/require"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/memnet"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

func TestScheduleTimeoutDeliversTimeoutElapsedToSelf(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	vs := newSet(t, "a")
	net := memnet.NewNetwork(vs)
	self := &fakeSubmitter{}
	node := memnet.NewNode(net, "a", nil, nil)
	node.Bind(self)

	require.NoError(t, node.ScheduleTimeout(context.Background(), roundstate.TimeoutProposeKind, 1, 0, 10*time.Millisecond))
	require.Eventually(t, func() bool { return len(self.received) == 1 }, time.Second, time.Millisecond)
	require.True(t, self.received[0].IsTimeoutElapsed())
	kind, h, r := self.received[0].GetTimeoutElapsed()
	require.Equal(t, roundstate.TimeoutProposeKind, kind)
	require.Equal(t, types.Height(1), h)
	require.Equal(t, types.Round(0), r)
}

func TestCancelTimeoutStopsAPendingTimer(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	vs := newSet(t, "a")
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", nil, nil)
	self := &fakeSubmitter{}
	node.Bind(self)

	require.NoError(t, node.ScheduleTimeout(context.Background(), roundstate.TimeoutPrevoteKind, 1, 0, 50*time.Millisecond))
	require.NoError(t, node.CancelTimeout(context.Background(), roundstate.TimeoutPrevoteKind, 1, 0))

	time.Sleep(75 * time.Millisecond)
	require.Empty(t, self.received)
}

func TestCancelTimeoutOnUnknownKeyIsANoOp(t *testing.T) {
	vs := newSet(t, "a")
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", nil, nil)
	require.NoError(t, node.CancelTimeout(context.Background(), roundstate.TimeoutPrecommitKind, 1, 0))
}

func TestScheduleTimeoutReplacesAnExistingTimerForTheSameKey(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	vs := newSet(t, "a")
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", nil, nil)
	self := &fakeSubmitter{}
	node.Bind(self)

	require.NoError(t, node.ScheduleTimeout(context.Background(), roundstate.TimeoutProposeKind, 1, 0, 5*time.Millisecond))
	require.NoError(t, node.ScheduleTimeout(context.Background(), roundstate.TimeoutProposeKind, 1, 0, 20*time.Millisecond))

	require.Eventually(t, func() bool { return len(self.received) == 1 }, time.Second, time.Millisecond)
}

func TestRequestValueSubmitsProposeValueOnSuccess(t *testing.T) {
	defer leaktest.CheckTimeout(t, time.Second)()

	vs := newSet(t, "a")
	provider := func(_ context.Context, h types.Height, r types.Round) (types.Value, error) {
		return types.Value("value"), nil
	}
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", provider, nil)
	self := &fakeSubmitter{}
	node.Bind(self)

	require.NoError(t, node.RequestValue(context.Background(), 1, 0, 100*time.Millisecond))
	require.Eventually(t, func() bool { return len(self.received) == 1 }, time.Second, time.Millisecond)
	require.True(t, self.received[0].IsProposeValue())
	h, r, v := self.received[0].GetProposeValue()
	require.Equal(t, types.Height(1), h)
	require.Equal(t, types.Round(0), r)
	require.Equal(t, types.Value("value"), v)
}

func TestRequestValueWithoutProviderFails(t *testing.T) {
	vs := newSet(t, "a")
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", nil, nil)
	node.Bind(&fakeSubmitter{})
	err := node.RequestValue(context.Background(), 1, 0, time.Second)
	require.Error(t, err)
}

func TestRequestValueProviderErrorSubmitsNothing(t *testing.T) {
	vs := newSet(t, "a")
	provider := func(_ context.Context, h types.Height, r types.Round) (types.Value, error) {
		return nil, errors.New("no value available")
	}
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", provider, nil)
	self := &fakeSubmitter{}
	node.Bind(self)

	require.NoError(t, node.RequestValue(context.Background(), 1, 0, 50*time.Millisecond))
	time.Sleep(50 * time.Millisecond)
	require.Empty(t, self.received)
}

func TestDecideInvokesDecisionFunc(t *testing.T) {
	vs := newSet(t, "a")
	var gotHeight types.Height
	var gotProposal types.Proposal
	decided := func(h types.Height, p types.Proposal, commits []types.Vote) {
		gotHeight = h
		gotProposal = p
	}
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", nil, decided)

	proposal := types.Proposal{Height: 3, Round: 1, Value: types.Value("v")}
	require.NoError(t, node.Decide(context.Background(), proposal, nil))
	require.Equal(t, types.Height(3), gotHeight)
	require.Equal(t, proposal, gotProposal)
}

func TestDecideWithNilCallbackIsANoOp(t *testing.T) {
	vs := newSet(t, "a")
	node := memnet.NewNode(memnet.NewNetwork(vs), "a", nil, nil)
	require.NoError(t, node.Decide(context.Background(), types.Proposal{}, nil))
}

var _ effect.Interpreter = (*memnet.Node)(nil)
