package effect

import (
	"context"
	"time"

	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// Interpreter performs the concrete I/O an Effect requests. Implementations
// live outside the core (memnet for tests, a real network/timer stack in
// production) and must satisfy these collaborator contracts:
//   - Broadcast: at-least-once delivery, no forged signatures.
//   - ScheduleTimeout/CancelTimeout: must eventually deliver TimeoutElapsed
//     for every scheduled, uncanceled timeout; ordering across kinds is
//     irrelevant.
//   - RequestValue: delivers at most one ProposeValue per request, possibly
//     after its deadline.
//   - Decide: commits the value; called at most once per height.
//   - GetValidatorSet: returns the validator set effective for height h,
//     used by Runtime when preparing the next StartHeight, not returned as
//     an Effect from Handle (see effect.go's doc comment).
//
// A failed Broadcast, ScheduleTimeout, RequestValue or CancelTimeout is
// treated as a transient effect failure: Runtime logs it and continues,
// since the core's own timeout/retransmission machinery covers for a lost
// effect.
type Interpreter interface {
	Broadcast(ctx context.Context, proposal *types.Proposal, vote *types.Vote) error
	ScheduleTimeout(ctx context.Context, kind roundstate.TimeoutKind, h types.Height, r types.Round, d time.Duration) error
	CancelTimeout(ctx context.Context, kind roundstate.TimeoutKind, h types.Height, r types.Round) error
	RequestValue(ctx context.Context, h types.Height, r types.Round, deadline time.Duration) error
	Decide(ctx context.Context, proposal types.Proposal, commits []types.Vote) error
	GetValidatorSet(ctx context.Context, h types.Height) (*types.ValidatorSet, error)
}

// Handler processes one DriverInput to completion and returns the ordered
// effects it produced. driver.Driver satisfies this interface; Runtime
// depends only on the interface so the effect package never imports driver,
// keeping the roundstate -> votekeeper -> driver -> effect dependency chain
// acyclic.
type Handler interface {
	Handle(ctx context.Context, in DriverInput) ([]Effect, error)
}

// TimeoutResumer is an optional capability of a Handler that can report the
// timeout outstanding for the (height, round) it resumed at after replay.
// A crash always loses whatever in-memory timer was pending, so once every
// persisted input for a height has been replayed there is nothing left to
// tell the process its current step should eventually time out; Runtime
// type-asserts for this interface to re-arm that timer. driver.Driver
// satisfies it.
type TimeoutResumer interface {
	ResumeTimeout() (kind roundstate.TimeoutKind, h types.Height, r types.Round, ok bool)
}

// Log is the write-ahead-log contract Runtime persists inputs through
// before releasing any outbound effect derived from them. wal.WAL satisfies
// this interface.
type Log interface {
	// StartHeight truncates entries belonging to heights < h and records
	// the checkpoint marker.
	StartHeight(h types.Height, vs *types.ValidatorSet) error
	// Append durably records in before returning, i.e. it fsyncs.
	Append(in DriverInput) error
}
