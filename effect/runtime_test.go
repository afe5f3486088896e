package effect_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// scriptedHandler returns a fixed slice of effects (or an error) for every
// Handle call, recording the inputs it was given. It also implements
// TimeoutResumer, reporting whatever resumeKind/resumeH/resumeR/resumeOK it
// was set up with, defaulting to "nothing to resume".
type scriptedHandler struct {
	effects []effect.Effect
	err     error
	seen    []effect.DriverInput

	resumeKind roundstate.TimeoutKind
	resumeH    types.Height
	resumeR    types.Round
	resumeOK   bool
}

func (h *scriptedHandler) Handle(_ context.Context, in effect.DriverInput) ([]effect.Effect, error) {
	h.seen = append(h.seen, in)
	return h.effects, h.err
}

func (h *scriptedHandler) ResumeTimeout() (roundstate.TimeoutKind, types.Height, types.Round, bool) {
	return h.resumeKind, h.resumeH, h.resumeR, h.resumeOK
}

// recordingInterp captures every call an Interpreter method receives, and
// can be told to fail one of them.
type recordingInterp struct {
	calls      []string
	failMethod string
	failErr    error

	vs    *types.ValidatorSet
	vsErr error
}

func (r *recordingInterp) fail(method string) error {
	if r.failMethod == method {
		return r.failErr
	}
	return nil
}

func (r *recordingInterp) Broadcast(_ context.Context, p *types.Proposal, v *types.Vote) error {
	r.calls = append(r.calls, "Broadcast")
	return r.fail("Broadcast")
}

func (r *recordingInterp) ScheduleTimeout(_ context.Context, _ roundstate.TimeoutKind, _ types.Height, _ types.Round, _ time.Duration) error {
	r.calls = append(r.calls, "ScheduleTimeout")
	return r.fail("ScheduleTimeout")
}

func (r *recordingInterp) CancelTimeout(_ context.Context, _ roundstate.TimeoutKind, _ types.Height, _ types.Round) error {
	r.calls = append(r.calls, "CancelTimeout")
	return r.fail("CancelTimeout")
}

func (r *recordingInterp) RequestValue(_ context.Context, _ types.Height, _ types.Round, _ time.Duration) error {
	r.calls = append(r.calls, "RequestValue")
	return r.fail("RequestValue")
}

func (r *recordingInterp) Decide(_ context.Context, _ types.Proposal, _ []types.Vote) error {
	r.calls = append(r.calls, "Decide")
	return r.fail("Decide")
}

func (r *recordingInterp) GetValidatorSet(_ context.Context, _ types.Height) (*types.ValidatorSet, error) {
	return r.vs, r.vsErr
}

type recordingLog struct {
	appended    []effect.DriverInput
	checkpoints []types.Height
	appendErr   error
}

func (l *recordingLog) StartHeight(h types.Height, _ *types.ValidatorSet) error {
	l.checkpoints = append(l.checkpoints, h)
	return nil
}

func (l *recordingLog) Append(in effect.DriverInput) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.appended = append(l.appended, in)
	return nil
}

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

func TestSubmitInterpretsEffectsInOrder(t *testing.T) {
	in := effect.StartHeight(1, nil)
	h := &scriptedHandler{effects: []effect.Effect{
		effect.PersistInput(in),
		effect.BroadcastVote(types.Vote{}),
		effect.ScheduleTimeout(roundstate.TimeoutProposeKind, 1, 0, time.Second),
	}}
	interp := &recordingInterp{}
	log := &recordingLog{}
	rt := effect.New(h, interp, log, discardLogger())

	require.NoError(t, rt.Submit(context.Background(), in))
	require.Equal(t, []effect.DriverInput{in}, log.appended)
	require.Equal(t, []string{"Broadcast", "ScheduleTimeout"}, interp.calls)
}

func TestSubmitPropagatesHandlerError(t *testing.T) {
	h := &scriptedHandler{err: errors.New("bad input")}
	rt := effect.New(h, &recordingInterp{}, &recordingLog{}, discardLogger())

	err := rt.Submit(context.Background(), effect.StartHeight(1, nil))
	require.Error(t, err)
}

func TestSubmitWithNilLogSkipsPersistWithoutError(t *testing.T) {
	in := effect.StartHeight(1, nil)
	h := &scriptedHandler{effects: []effect.Effect{effect.PersistInput(in)}}
	rt := effect.New(h, &recordingInterp{}, nil, discardLogger())

	require.NoError(t, rt.Submit(context.Background(), in))
}

func TestSubmitHaltsOnWalAppendFailure(t *testing.T) {
	in := effect.StartHeight(1, nil)
	h := &scriptedHandler{effects: []effect.Effect{
		effect.PersistInput(in),
		effect.BroadcastVote(types.Vote{}),
	}}
	interp := &recordingInterp{}
	log := &recordingLog{appendErr: errors.New("disk full")}
	rt := effect.New(h, interp, log, discardLogger())

	err := rt.Submit(context.Background(), in)
	require.Error(t, err)
	// the append failure halts before the vote is ever broadcast.
	require.Empty(t, interp.calls)
}

func TestSubmitTransientBroadcastFailureIsSwallowed(t *testing.T) {
	h := &scriptedHandler{effects: []effect.Effect{
		effect.BroadcastVote(types.Vote{}),
		effect.ScheduleTimeout(roundstate.TimeoutProposeKind, 1, 0, time.Second),
	}}
	interp := &recordingInterp{failMethod: "Broadcast", failErr: errors.New("peer unreachable")}
	rt := effect.New(h, interp, &recordingLog{}, discardLogger())

	require.NoError(t, rt.Submit(context.Background(), effect.StartHeight(1, nil)))
	require.Equal(t, []string{"Broadcast", "ScheduleTimeout"}, interp.calls)
}

func TestSubmitDecideFailureIsFatal(t *testing.T) {
	h := &scriptedHandler{effects: []effect.Effect{effect.Decide(types.Proposal{}, nil)}}
	interp := &recordingInterp{failMethod: "Decide", failErr: errors.New("app rejected commit")}
	rt := effect.New(h, interp, &recordingLog{}, discardLogger())

	err := rt.Submit(context.Background(), effect.StartHeight(1, nil))
	require.Error(t, err)
}

func TestReplaySuppressesOutboundEffectsButNotCancelTimeout(t *testing.T) {
	h := &scriptedHandler{effects: []effect.Effect{
		effect.BroadcastVote(types.Vote{}),
		effect.ScheduleTimeout(roundstate.TimeoutProposeKind, 1, 0, time.Second),
		effect.CancelTimeout(roundstate.TimeoutProposeKind, 1, 0),
		effect.RequestValue(1, 0, time.Second),
		effect.Decide(types.Proposal{}, nil),
	}}
	interp := &recordingInterp{}
	rt := effect.New(h, interp, &recordingLog{}, discardLogger())

	require.NoError(t, rt.Replay(context.Background(), effect.StartHeight(1, nil)))
	require.Equal(t, []string{"CancelTimeout"}, interp.calls)
}

func TestReplayDoesNotAppendToLog(t *testing.T) {
	in := effect.StartHeight(1, nil)
	h := &scriptedHandler{effects: []effect.Effect{effect.PersistInput(in)}}
	log := &recordingLog{}
	rt := effect.New(h, &recordingInterp{}, log, discardLogger())

	require.NoError(t, rt.Replay(context.Background(), in))
	// PersistInput is a no-op during replay: the input is already durable.
	require.Empty(t, log.appended)
}

func TestStartHeightChecksPointsTheLog(t *testing.T) {
	log := &recordingLog{}
	rt := effect.New(&scriptedHandler{}, &recordingInterp{}, log, discardLogger())

	require.NoError(t, rt.StartHeight(3, nil))
	require.Equal(t, []types.Height{3}, log.checkpoints)
}

func TestStartHeightWithNilLogIsANoOp(t *testing.T) {
	rt := effect.New(&scriptedHandler{}, &recordingInterp{}, nil, discardLogger())
	require.NoError(t, rt.StartHeight(3, nil))
}

func TestAdvanceHeightFetchesValidatorSetAndSubmitsStartHeight(t *testing.T) {
	vs := &types.ValidatorSet{}
	h := &scriptedHandler{}
	interp := &recordingInterp{vs: vs}
	log := &recordingLog{}
	rt := effect.New(h, interp, log, discardLogger())

	require.NoError(t, rt.AdvanceHeight(context.Background(), 4))
	require.Equal(t, []types.Height{4}, log.checkpoints)
	require.Len(t, h.seen, 1)
	require.True(t, h.seen[0].IsStartHeight())
	gotH, gotVS := h.seen[0].GetStartHeight()
	require.Equal(t, types.Height(4), gotH)
	require.Same(t, vs, gotVS)
}

func TestAdvanceHeightPropagatesGetValidatorSetError(t *testing.T) {
	h := &scriptedHandler{}
	interp := &recordingInterp{vsErr: errors.New("no such height")}
	rt := effect.New(h, interp, &recordingLog{}, discardLogger())

	err := rt.AdvanceHeight(context.Background(), 4)
	require.Error(t, err)
	require.Empty(t, h.seen)
}

func TestResumeTimeoutsReArmsTheOutstandingTimeout(t *testing.T) {
	h := &scriptedHandler{resumeKind: roundstate.TimeoutPrevoteKind, resumeH: 5, resumeR: 2, resumeOK: true}
	interp := &recordingInterp{}
	rt := effect.New(h, interp, &recordingLog{}, discardLogger())

	require.NoError(t, rt.ResumeTimeouts(context.Background()))
	require.Equal(t, []string{"ScheduleTimeout"}, interp.calls)
}

func TestResumeTimeoutsIsANoOpWhenNothingIsOutstanding(t *testing.T) {
	h := &scriptedHandler{} // resumeOK defaults to false
	interp := &recordingInterp{}
	rt := effect.New(h, interp, &recordingLog{}, discardLogger())

	require.NoError(t, rt.ResumeTimeouts(context.Background()))
	require.Empty(t, interp.calls)
}

// resumelessHandler implements Handler only, not TimeoutResumer.
type resumelessHandler struct{}

func (resumelessHandler) Handle(_ context.Context, _ effect.DriverInput) ([]effect.Effect, error) {
	return nil, nil
}

func TestResumeTimeoutsIsANoOpWithoutTimeoutResumerSupport(t *testing.T) {
	interp := &recordingInterp{}
	rt := effect.New(resumelessHandler{}, interp, &recordingLog{}, discardLogger())

	require.NoError(t, rt.ResumeTimeouts(context.Background()))
	require.Empty(t, interp.calls)
}
