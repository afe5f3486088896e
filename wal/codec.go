package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
)

// kindTag identifies the payload layout of a WAL record within the
// (length, kind_tag, serialized_input, crc32) record format.
type kindTag byte

const (
	kindStartHeight kindTag = iota + 1
	kindProposal
	kindVote
	kindProposedValue
	kindProposeValue
	kindTimeoutElapsed
)

func encode(in effect.DriverInput) (kindTag, []byte) {
	switch {
	case in.IsStartHeight():
		h, vs := in.GetStartHeight()
		return kindStartHeight, encodeStartHeight(h, vs)
	case in.IsProposal():
		return kindProposal, encodeProposal(in.GetProposal())
	case in.IsVote():
		return kindVote, encodeVote(in.GetVote())
	case in.IsProposedValue():
		h, r, v, valid := in.GetProposedValue()
		return kindProposedValue, encodeProposedValue(h, r, v, valid)
	case in.IsProposeValue():
		h, r, v := in.GetProposeValue()
		return kindProposeValue, encodeProposeValue(h, r, v)
	default:
		kind, h, r := in.GetTimeoutElapsed()
		return kindTimeoutElapsed, encodeTimeoutElapsed(kind, h, r)
	}
}

func decode(kind kindTag, payload []byte) (effect.DriverInput, error) {
	switch kind {
	case kindStartHeight:
		return decodeStartHeight(payload)
	case kindProposal:
		return decodeProposal(payload)
	case kindVote:
		return decodeVote(payload)
	case kindProposedValue:
		return decodeProposedValue(payload)
	case kindProposeValue:
		return decodeProposeValue(payload)
	case kindTimeoutElapsed:
		return decodeTimeoutElapsed(payload)
	default:
		return effect.DriverInput{}, fmt.Errorf("wal: unknown record kind %d", kind)
	}
}

func putUint64(b []byte, v uint64) []byte {
	tmp := make([]byte, 8)
	binary.BigEndian.PutUint64(tmp, v)
	return append(b, tmp...)
}

func putInt32(b []byte, v int32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, uint32(v))
	return append(b, tmp...)
}

func putBytes(b []byte, v []byte) []byte {
	b = putUint32(b, uint32(len(v)))
	return append(b, v...)
}

func putUint32(b []byte, v uint32) []byte {
	tmp := make([]byte, 4)
	binary.BigEndian.PutUint32(tmp, v)
	return append(b, tmp...)
}

func putString(b []byte, s string) []byte { return putBytes(b, []byte(s)) }

type reader struct {
	buf []byte
	off int
}

func (r *reader) uint64() (uint64, error) {
	if r.off+8 > len(r.buf) {
		return 0, errShort
	}
	v := binary.BigEndian.Uint64(r.buf[r.off : r.off+8])
	r.off += 8
	return v, nil
}

func (r *reader) int32() (int32, error) {
	if r.off+4 > len(r.buf) {
		return 0, errShort
	}
	v := int32(binary.BigEndian.Uint32(r.buf[r.off : r.off+4]))
	r.off += 4
	return v, nil
}

func (r *reader) uint32() (uint32, error) {
	if r.off+4 > len(r.buf) {
		return 0, errShort
	}
	v := binary.BigEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) byte() (byte, error) {
	if r.off+1 > len(r.buf) {
		return 0, errShort
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

func (r *reader) bytes() ([]byte, error) {
	n, err := r.uint32()
	if err != nil {
		return nil, err
	}
	if r.off+int(n) > len(r.buf) {
		return nil, errShort
	}
	v := r.buf[r.off : r.off+int(n)]
	r.off += int(n)
	return v, nil
}

func (r *reader) string() (string, error) {
	b, err := r.bytes()
	return string(b), err
}

var errShort = fmt.Errorf("wal: truncated record")

func encodeStartHeight(h types.Height, vs *types.ValidatorSet) []byte {
	buf := putUint64(nil, uint64(h))
	buf = append(buf, byte(vs.QuorumType()))
	vals := vs.Validators()
	buf = putUint32(buf, uint32(len(vals)))
	for _, v := range vals {
		buf = putString(buf, string(v.Address))
		buf = putBytes(buf, v.PubKey)
		buf = putUint64(buf, v.Power)
	}
	return buf
}

func decodeStartHeight(payload []byte) (effect.DriverInput, error) {
	r := &reader{buf: payload}
	h, err := r.uint64()
	if err != nil {
		return effect.DriverInput{}, err
	}
	quorumType, err := r.byte()
	if err != nil {
		return effect.DriverInput{}, err
	}
	n, err := r.uint32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	vals := make([]types.Validator, 0, n)
	for i := uint32(0); i < n; i++ {
		addr, err := r.string()
		if err != nil {
			return effect.DriverInput{}, err
		}
		pub, err := r.bytes()
		if err != nil {
			return effect.DriverInput{}, err
		}
		power, err := r.uint64()
		if err != nil {
			return effect.DriverInput{}, err
		}
		vals = append(vals, types.Validator{Address: types.Address(addr), PubKey: append([]byte(nil), pub...), Power: power})
	}
	vs, err := types.NewValidatorSet(vals, types.QuorumType(quorumType))
	if err != nil {
		return effect.DriverInput{}, err
	}
	return effect.StartHeight(types.Height(h), vs), nil
}

func encodeProposal(p types.Proposal) []byte {
	buf := putUint64(nil, uint64(p.Height))
	buf = putInt32(buf, int32(p.Round))
	buf = putBytes(buf, p.Value)
	buf = putInt32(buf, int32(p.ValidRound))
	buf = putString(buf, string(p.Proposer))
	buf = putBytes(buf, p.Signature)
	return buf
}

func decodeProposal(payload []byte) (effect.DriverInput, error) {
	r := &reader{buf: payload}
	h, err := r.uint64()
	if err != nil {
		return effect.DriverInput{}, err
	}
	round, err := r.int32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	value, err := r.bytes()
	if err != nil {
		return effect.DriverInput{}, err
	}
	validRound, err := r.int32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	proposer, err := r.string()
	if err != nil {
		return effect.DriverInput{}, err
	}
	sig, err := r.bytes()
	if err != nil {
		return effect.DriverInput{}, err
	}
	p := types.Proposal{
		Height: types.Height(h), Round: types.Round(round), Value: append(types.Value(nil), value...),
		ValidRound: types.Round(validRound), Proposer: types.Address(proposer), Signature: append([]byte(nil), sig...),
	}
	return effect.ProposalInput(p), nil
}

func encodeVote(v types.Vote) []byte {
	buf := []byte{byte(v.Kind)}
	buf = putUint64(buf, uint64(v.Height))
	buf = putInt32(buf, int32(v.Round))
	if v.ValueID == nil {
		buf = append(buf, 0)
	} else {
		buf = append(buf, 1)
		buf = append(buf, v.ValueID[:]...)
	}
	buf = putString(buf, string(v.Voter))
	buf = putBytes(buf, v.Signature)
	return buf
}

func decodeVote(payload []byte) (effect.DriverInput, error) {
	r := &reader{buf: payload}
	kind, err := r.byte()
	if err != nil {
		return effect.DriverInput{}, err
	}
	h, err := r.uint64()
	if err != nil {
		return effect.DriverInput{}, err
	}
	round, err := r.int32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	hasID, err := r.byte()
	if err != nil {
		return effect.DriverInput{}, err
	}
	var id *types.ValueID
	if hasID == 1 {
		if r.off+32 > len(r.buf) {
			return effect.DriverInput{}, errShort
		}
		var raw types.ValueID
		copy(raw[:], r.buf[r.off:r.off+32])
		r.off += 32
		id = &raw
	}
	voter, err := r.string()
	if err != nil {
		return effect.DriverInput{}, err
	}
	sig, err := r.bytes()
	if err != nil {
		return effect.DriverInput{}, err
	}
	v := types.Vote{
		Kind: types.VoteKind(kind), Height: types.Height(h), Round: types.Round(round),
		ValueID: id, Voter: types.Address(voter), Signature: append([]byte(nil), sig...),
	}
	return effect.VoteInput(v), nil
}

func encodeProposedValue(h types.Height, r types.Round, v types.Value, valid bool) []byte {
	buf := putUint64(nil, uint64(h))
	buf = putInt32(buf, int32(r))
	buf = putBytes(buf, v)
	if valid {
		buf = append(buf, 1)
	} else {
		buf = append(buf, 0)
	}
	return buf
}

func decodeProposedValue(payload []byte) (effect.DriverInput, error) {
	rd := &reader{buf: payload}
	h, err := rd.uint64()
	if err != nil {
		return effect.DriverInput{}, err
	}
	round, err := rd.int32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	value, err := rd.bytes()
	if err != nil {
		return effect.DriverInput{}, err
	}
	valid, err := rd.byte()
	if err != nil {
		return effect.DriverInput{}, err
	}
	return effect.ProposedValueInput(types.Height(h), types.Round(round), append(types.Value(nil), value...), valid == 1), nil
}

func encodeProposeValue(h types.Height, r types.Round, v types.Value) []byte {
	buf := putUint64(nil, uint64(h))
	buf = putInt32(buf, int32(r))
	buf = putBytes(buf, v)
	return buf
}

func decodeProposeValue(payload []byte) (effect.DriverInput, error) {
	rd := &reader{buf: payload}
	h, err := rd.uint64()
	if err != nil {
		return effect.DriverInput{}, err
	}
	round, err := rd.int32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	value, err := rd.bytes()
	if err != nil {
		return effect.DriverInput{}, err
	}
	return effect.ProposeValueInput(types.Height(h), types.Round(round), append(types.Value(nil), value...)), nil
}

func encodeTimeoutElapsed(kind roundstate.TimeoutKind, h types.Height, r types.Round) []byte {
	buf := []byte{byte(kind)}
	buf = putUint64(buf, uint64(h))
	buf = putInt32(buf, int32(r))
	return buf
}

func decodeTimeoutElapsed(payload []byte) (effect.DriverInput, error) {
	rd := &reader{buf: payload}
	kind, err := rd.byte()
	if err != nil {
		return effect.DriverInput{}, err
	}
	h, err := rd.uint64()
	if err != nil {
		return effect.DriverInput{}, err
	}
	round, err := rd.int32()
	if err != nil {
		return effect.DriverInput{}, err
	}
	return effect.TimeoutElapsedInput(roundstate.TimeoutKind(kind), types.Height(h), types.Round(round)), nil
}
