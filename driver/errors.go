package driver

import (
	"fmt"

	"github.com/cmwaters/tendercore/types"
)

// RejectedInput marks an external input the driver refused to act on: a
// proposal from a non-proposer or with an invalid signature, a vote from
// an unknown validator or with an invalid signature, or a vote/proposal
// for the wrong height. None of these indicate misbehavior worth
// surfacing beyond a log line — a Byzantine peer and a merely stale or
// misconfigured one produce the same rejection — so Handle still returns
// a normal (possibly empty) effect slice rather than this error; it exists
// to give the log line at the rejection site a consistent, typed shape.
type RejectedInput struct {
	Reason string
	Height types.Height
	Round  types.Round
}

func (e RejectedInput) Error() string {
	return fmt.Sprintf("driver: rejected input at height %d round %d: %s", e.Height, e.Round, e.Reason)
}

// DetectedMisbehavior marks equivocation the vote keeper observed: two
// distinct, validly-signed votes from the same validator for the same
// (height, round, vote kind). The core keeps running once it is recorded —
// evidence handling and slashing are a side channel this package does not
// own — but the occurrence is always logged at Error so an operator (or a
// log-shipping pipeline watching for this type) can act on it.
type DetectedMisbehavior struct {
	Voter  types.Address
	Kind   types.VoteKind
	Height types.Height
	Round  types.Round
}

func (e DetectedMisbehavior) Error() string {
	return fmt.Sprintf("driver: detected misbehavior: %s double-voted (%s) at height %d round %d", e.Voter, e.Kind, e.Height, e.Round)
}
