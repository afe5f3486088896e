package effect

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cmwaters/tendercore/types"
)

// Runtime is a single-threaded, cooperative scheduler: it owns a Handler (a
// driver.Driver) and an Interpreter, processes inputs strictly
// sequentially, and interprets each Handle call's effects in the order
// returned, which is already persist-input-first per effect.go's doc
// comment. Effects are dispatched with direct sequential calls rather than
// one goroutine per output, so no effect can ever observe the core
// mid-transition.
type Runtime struct {
	mu     sync.Mutex
	handle Handler
	interp Interpreter
	log    Log // nil disables persistence, e.g. during tests that don't exercise crash-recovery
	logger zerolog.Logger

	replaying bool
}

// New builds a Runtime. log may be nil to run without a WAL.
func New(handler Handler, interp Interpreter, log Log, logger zerolog.Logger) *Runtime {
	return &Runtime{handle: handler, interp: interp, log: log, logger: logger}
}

// Submit processes one input to completion: persist, then interpret every
// effect the handler returned, in order. It is safe to call concurrently;
// calls are serialized internally to preserve the single-threaded contract.
func (r *Runtime) Submit(ctx context.Context, in DriverInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logger.Debug().Str("input", in.String()).Msg("submitting input")

	effects, err := r.handle.Handle(ctx, in)
	if err != nil {
		return fmt.Errorf("effect: handler rejected input %s: %w", in, err)
	}

	for _, e := range effects {
		if err := r.interpret(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

// Replay feeds a previously-persisted input back through the handler and
// interprets its effects with every side effect suppressed except
// CancelTimeout: PersistInput is already durable, and broadcasting,
// scheduling a timeout, requesting a value or deciding would all repeat
// work the process already did before it crashed. CancelTimeout runs
// unconditionally because canceling a timer that was never (re)scheduled
// during replay is harmless, and it keeps driver and interpreter state
// from diverging once replay ends and Submit resumes normal operation.
//
// Replay never re-arms a timeout on its own, since a timeout scheduled by a
// replayed input might be one the process already let fire before it
// crashed. Once the caller has replayed every persisted input for the
// height, it must call ResumeTimeouts exactly once before resuming Submit,
// or the process can be left waiting on a TimeoutElapsed that will never
// come.
func (r *Runtime) Replay(ctx context.Context, in DriverInput) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.replaying = true
	defer func() { r.replaying = false }()

	r.logger.Debug().Str("input", in.String()).Msg("replaying input")

	effects, err := r.handle.Handle(ctx, in)
	if err != nil {
		return err
	}
	for _, e := range effects {
		if err := r.interpret(ctx, e); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) interpret(ctx context.Context, e Effect) error {
	switch {
	case e.IsPersistInput():
		if r.log == nil || r.replaying {
			return nil
		}
		if err := r.log.Append(e.GetPersistInput()); err != nil {
			r.logger.Error().Err(err).Msg("wal append failed, halting")
			return fmt.Errorf("effect: wal append failed, halting: %w", err)
		}
		return nil

	case e.IsBroadcastProposal():
		if r.replaying {
			return nil
		}
		p := e.GetBroadcastProposal()
		if err := r.interp.Broadcast(ctx, &p, nil); err != nil {
			r.logger.Warn().Err(TransientEffectFailure{Effect: "BroadcastProposal", Err: err}).Msg("dropping proposal broadcast")
		}
		return nil

	case e.IsBroadcastVote():
		if r.replaying {
			return nil
		}
		v := e.GetBroadcastVote()
		if err := r.interp.Broadcast(ctx, nil, &v); err != nil {
			r.logger.Warn().Err(TransientEffectFailure{Effect: "BroadcastVote", Err: err}).Msg("dropping vote broadcast")
		}
		return nil

	case e.IsScheduleTimeout():
		if r.replaying {
			return nil
		}
		kind, h, round, d := e.GetTimeout()
		if err := r.interp.ScheduleTimeout(ctx, kind, h, round, d); err != nil {
			r.logger.Warn().Err(TransientEffectFailure{Effect: "ScheduleTimeout", Err: err}).Msg("dropping timeout schedule")
		}
		return nil

	case e.IsCancelTimeout():
		kind, h, round, _ := e.GetTimeout()
		if err := r.interp.CancelTimeout(ctx, kind, h, round); err != nil {
			r.logger.Warn().Err(TransientEffectFailure{Effect: "CancelTimeout", Err: err}).Msg("dropping timeout cancel")
		}
		return nil

	case e.IsRequestValue():
		if r.replaying {
			return nil
		}
		h, round, deadline := e.GetRequestValue()
		if err := r.interp.RequestValue(ctx, h, round, deadline); err != nil {
			r.logger.Warn().Err(TransientEffectFailure{Effect: "RequestValue", Err: err}).Msg("dropping value request")
		}
		return nil

	case e.IsDecide():
		if r.replaying {
			return nil
		}
		p, commits := e.GetDecide()
		if err := r.interp.Decide(ctx, p, commits); err != nil {
			return fmt.Errorf("effect: decide callback failed: %w", err)
		}
		r.logger.Info().Uint64("height", uint64(p.Height)).Uint32("round", uint32(p.Round)).Int("commits", len(commits)).Msg("decided")
		return nil

	default:
		violation := InvariantViolation{Detail: fmt.Sprintf("unhandled effect %s", e)}
		r.logger.Error().Err(violation).Msg("invariant violation")
		return violation
	}
}

// StartHeight truncates the WAL to the new height's checkpoint (if a log is
// attached) before the caller delivers the corresponding DriverInput.
func (r *Runtime) StartHeight(h types.Height, vs *types.ValidatorSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.log == nil {
		return nil
	}
	return r.log.StartHeight(h, vs)
}

// AdvanceHeight begins height h by asking the interpreter for the
// validator set effective at that height, checkpointing the log to it, and
// submitting the corresponding StartHeight input. It is the ordinary way to
// move a running process to its next height: a caller that already has the
// validator set in hand (e.g. a fixed set for the lifetime of a test) can
// call StartHeight and Submit directly instead.
func (r *Runtime) AdvanceHeight(ctx context.Context, h types.Height) error {
	vs, err := r.interp.GetValidatorSet(ctx, h)
	if err != nil {
		return fmt.Errorf("effect: get validator set for height %d: %w", h, err)
	}
	if err := r.StartHeight(h, vs); err != nil {
		return err
	}
	return r.Submit(ctx, StartHeight(h, vs))
}

// ResumeTimeouts re-arms the timeout the process was waiting on when it
// crashed, once every persisted input for the current height has been fed
// back through Replay. It is a no-op if the Handler doesn't implement
// TimeoutResumer, or if the resumed step has no outstanding timeout
// (StepUnstarted, StepCommit). The re-armed timeout fires immediately
// (duration zero) rather than trying to recover how much of the original
// window had already elapsed when the process crashed: a spurious early
// TimeoutElapsed is harmless, since the round state machine simply ignores
// an input that no longer matches its current step, while a timer that
// never fires again can stall the process forever.
func (r *Runtime) ResumeTimeouts(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resumer, ok := r.handle.(TimeoutResumer)
	if !ok {
		return nil
	}
	kind, h, round, ok := resumer.ResumeTimeout()
	if !ok {
		return nil
	}
	if err := r.interp.ScheduleTimeout(ctx, kind, h, round, 0); err != nil {
		r.logger.Warn().Err(TransientEffectFailure{Effect: "ScheduleTimeout", Err: err}).Msg("resume timeout after replay failed, dropping")
	}
	return nil
}
