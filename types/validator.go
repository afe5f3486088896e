package types

import (
	"errors"
	"fmt"
)

// Validator is a member of a ValidatorSet: an address, a public key opaque
// to this package, and a voting power.
type Validator struct {
	Address Address
	PubKey  []byte
	Power   uint64
}

// QuorumType selects how a ValidatorSet computes its Byzantine quorum.
// Exact is q = N - f; Classical matches the rounded 2N/3+1 convention used
// by some other Tendermint implementations, kept only for interop testing.
type QuorumType uint8

const (
	QuorumExact QuorumType = iota
	QuorumClassical
)

// ValidatorSet is an ordered, immutable collection of validators together
// with a deterministic weighted round-robin proposer schedule.
type ValidatorSet struct {
	validators []Validator
	byAddress  map[Address]int

	totalPower uint64
	quorumType QuorumType

	// priorities[r] is each validator's proposer priority entering round r,
	// lazily extended as higher rounds are requested.
	priorities [][]int64
}

// NewValidatorSet builds a ValidatorSet from validators ordered by
// decreasing voting power, ties broken by address. Every validator must
// have positive power and a unique address.
func NewValidatorSet(vals []Validator, quorum QuorumType) (*ValidatorSet, error) {
	if len(vals) == 0 {
		return nil, errors.New("types: validator set must have at least one member")
	}

	byAddress := make(map[Address]int, len(vals))
	var total uint64
	for i, v := range vals {
		if v.Power == 0 {
			return nil, fmt.Errorf("types: validator %s has zero voting power", v.Address)
		}
		if _, dup := byAddress[v.Address]; dup {
			return nil, fmt.Errorf("types: duplicate validator address %s", v.Address)
		}
		byAddress[v.Address] = i
		total += v.Power
	}

	vs := &ValidatorSet{
		validators: append([]Validator(nil), vals...),
		byAddress:  byAddress,
		totalPower: total,
		quorumType: quorum,
	}
	vs.sort()
	vs.seedFirstRound()
	return vs, nil
}

func (vs *ValidatorSet) sort() {
	// Insertion sort: validator sets are small and this keeps the ordering
	// obviously stable for equal-power ties (by address).
	for i := 1; i < len(vs.validators); i++ {
		for j := i; j > 0; j-- {
			a, b := vs.validators[j-1], vs.validators[j]
			less := a.Power > b.Power || (a.Power == b.Power && a.Address <= b.Address)
			if less {
				break
			}
			vs.validators[j-1], vs.validators[j] = vs.validators[j], vs.validators[j-1]
		}
	}
	for i, v := range vs.validators {
		vs.byAddress[v.Address] = i
	}
}

func (vs *ValidatorSet) seedFirstRound() {
	priorities := make([]int64, len(vs.validators))
	for i, v := range vs.validators {
		priorities[i] = int64(v.Power)
	}
	vs.priorities = [][]int64{priorities}
}

// TotalPower returns N, the sum of every validator's voting power.
func (vs *ValidatorSet) TotalPower() uint64 { return vs.totalPower }

// FaultTolerance returns f = floor((N-1)/3), the maximum Byzantine voting
// power the set can absorb while preserving safety.
func (vs *ValidatorSet) FaultTolerance() uint64 {
	if vs.totalPower == 0 {
		return 0
	}
	return (vs.totalPower - 1) / 3
}

// Quorum returns q, the voting power required for a threshold event.
func (vs *ValidatorSet) Quorum() uint64 {
	switch vs.quorumType {
	case QuorumClassical:
		return byzantineMajority(vs.totalPower)
	default:
		return vs.totalPower - vs.FaultTolerance()
	}
}

// SkipThreshold returns f+1, the voting power in a higher round sufficient
// to justify a SkipRound.
func (vs *ValidatorSet) SkipThreshold() uint64 {
	return vs.FaultTolerance() + 1
}

func byzantineMajority(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	quo, rem := n/3, n%3
	if rem < 2 {
		return 2*quo + 1
	}
	return 2*quo + 2
}

// QuorumType reports how this set computes its Byzantine quorum, used by the
// WAL to reproduce an identical ValidatorSet on replay.
func (vs *ValidatorSet) QuorumType() QuorumType { return vs.quorumType }

// Size returns the number of validators in the set.
func (vs *ValidatorSet) Size() int { return len(vs.validators) }

// ByAddress looks up a validator by address.
func (vs *ValidatorSet) ByAddress(addr Address) (Validator, bool) {
	idx, ok := vs.byAddress[addr]
	if !ok {
		return Validator{}, false
	}
	return vs.validators[idx], true
}

// Validators returns a copy of the ordered validator slice.
func (vs *ValidatorSet) Validators() []Validator {
	return append([]Validator(nil), vs.validators...)
}

// Proposer returns the deterministic proposer for round r: a pure function
// of (validator set, round). Height does not otherwise affect the schedule
// in this implementation, since each height starts a fresh ValidatorSet, so
// it is not a parameter here; callers construct a new ValidatorSet per
// height.
func (vs *ValidatorSet) Proposer(r Round) Validator {
	vs.extendTo(r)
	priorities := vs.priorities[r]
	best := 0
	for i := 1; i < len(priorities); i++ {
		if priorities[i] > priorities[best] {
			best = i
		}
	}
	return vs.validators[best]
}

// extendTo grows the lazily-computed priority schedule up to round r, using
// an increment-by-power / subtract-total-on-selection weighted round-robin
// recurrence.
func (vs *ValidatorSet) extendTo(r Round) {
	for int(r) >= len(vs.priorities) {
		prev := vs.priorities[len(vs.priorities)-1]
		next := make([]int64, len(vs.validators))
		prevProposer := 0
		for i, p := range prev {
			if p > prev[prevProposer] {
				prevProposer = i
			}
		}
		for i, v := range vs.validators {
			next[i] = prev[i] + int64(v.Power)
			if i == prevProposer {
				next[i] -= int64(vs.totalPower)
			}
		}
		vs.priorities = append(vs.priorities, next)
	}
}
