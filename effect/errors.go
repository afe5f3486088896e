package effect

import "fmt"

// TransientEffectFailure marks a side effect Runtime could not carry out:
// a failed broadcast, timeout schedule/cancel, or value request. None of
// these are propagated as errors from Submit/Replay — the core's own
// timeout and retransmission machinery covers for a lost effect the same
// way it covers for a lost network message — but they are always logged
// with this type attached so an operator can distinguish "message never
// sent" from a driver bug.
type TransientEffectFailure struct {
	Effect string
	Err    error
}

func (e TransientEffectFailure) Error() string {
	return fmt.Sprintf("effect: transient failure interpreting %s: %v", e.Effect, e.Err)
}

func (e TransientEffectFailure) Unwrap() error { return e.Err }

// InvariantViolation marks a state the core should never be able to reach:
// an unrecognized DriverInput or Effect kind tag, or an ordering the
// construction of DriverInput/Effect is supposed to make impossible. Its
// cause is always a bug rather than bad external input, and it is always
// fatal: Submit and Replay return it rather than continuing.
type InvariantViolation struct {
	Detail string
}

func (e InvariantViolation) Error() string {
	return fmt.Sprintf("effect: invariant violation: %s", e.Detail)
}
