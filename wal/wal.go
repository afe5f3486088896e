// Package wal implements the crash-recovery log: an append-only sequence of
// (length, kind_tag, payload, crc32) records, one per driver input,
// checkpointed by StartHeight. Fields are written by hand with
// encoding/binary rather than through a general-purpose serialization
// library, and every write is fsynced before it is acknowledged.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/types"
)

// WAL is a single append-only file holding the records for one height at a
// time. StartHeight truncates everything belonging to the previous height:
// since a Driver never revisits a past height, truncating to just the
// current height's entries on every checkpoint keeps the file bounded.
type WAL struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	logger zerolog.Logger
}

var _ effect.Log = (*WAL)(nil)

// Open opens (creating if necessary) the WAL file at path for append,
// logging through logger.
func Open(path string, logger zerolog.Logger) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		werr := WalError{Op: fmt.Sprintf("open %s", path), Err: err}
		logger.Error().Err(werr).Msg("wal open failed")
		return nil, werr
	}
	return &WAL{path: path, file: f, logger: logger}, nil
}

// Close releases the underlying file handle.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// StartHeight checkpoints the log: every prior record is discarded and a
// single StartHeight record for (h, vs) is written and fsynced before this
// call returns, so that any crash after this point recovers no state from
// heights below h.
func (w *WAL) StartHeight(h types.Height, vs *types.ValidatorSet) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.file.Truncate(0); err != nil {
		return w.fatal("truncate", err)
	}
	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return w.fatal("seek", err)
	}
	if err := w.appendLocked(effect.StartHeight(h, vs)); err != nil {
		return err
	}
	w.logger.Debug().Uint64("height", uint64(h)).Msg("checkpointed wal")
	return nil
}

// Append writes one record and fsyncs before returning: a PersistInput
// effect only completes once the input has hit durable storage.
func (w *WAL) Append(in effect.DriverInput) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.appendLocked(in); err != nil {
		return err
	}
	w.logger.Debug().Str("input", in.String()).Msg("appended wal record")
	return nil
}

// Flush fsyncs the underlying file explicitly. Append and StartHeight
// already fsync before returning, so effect.Runtime never needs to call
// this itself; it exists for a caller that writes to the WAL's file
// outside that path (e.g. batching diagnostic or non-outbound-triggering
// entries) and wants an explicit durability boundary rather than paying
// the fsync cost on every write.
func (w *WAL) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.file.Sync(); err != nil {
		return w.fatal("flush", err)
	}
	return nil
}

func (w *WAL) appendLocked(in effect.DriverInput) error {
	kind, payload := encode(in)

	record := make([]byte, 0, 4+1+len(payload)+4)
	record = putUint32(record, uint32(len(payload)))
	record = append(record, byte(kind))
	record = append(record, payload...)
	sum := crc32.ChecksumIEEE(record)
	record = putUint32(record, sum)

	if _, err := w.file.Write(record); err != nil {
		return w.fatal("write", err)
	}
	if err := w.file.Sync(); err != nil {
		return w.fatal("sync", err)
	}
	return nil
}

// fatal wraps err as a WalError and logs it at Error before returning:
// every WAL failure is fatal per the effect runtime's error taxonomy, so
// the log line is the operator's only signal before the process halts.
func (w *WAL) fatal(op string, err error) error {
	werr := WalError{Op: op, Err: err}
	w.logger.Error().Err(werr).Msg("wal operation failed")
	return werr
}

// Replay reads every record from the start of the file and returns the
// driver inputs in the order they were written, beginning with the last
// StartHeight record (there is only ever one, since StartHeight truncates).
// A trailing partial record — the signature of a crash mid-write — is
// discarded rather than treated as an error: it is an interrupted write,
// not corruption, so it is dropped silently.
func (w *WAL) Replay() ([]effect.DriverInput, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		return nil, w.fatal("seek", err)
	}
	r := bufio.NewReader(w.file)

	var inputs []effect.DriverInput
	for {
		lenBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, lenBuf); err != nil {
			if err == io.EOF {
				break
			}
			break // short header: interrupted write, stop here
		}
		n := binary.BigEndian.Uint32(lenBuf)

		body := make([]byte, 1+int(n))
		if _, err := io.ReadFull(r, body); err != nil {
			break // interrupted write mid-payload
		}

		crcBuf := make([]byte, 4)
		if _, err := io.ReadFull(r, crcBuf); err != nil {
			break // interrupted write mid-checksum
		}
		wantCRC := binary.BigEndian.Uint32(crcBuf)

		full := append(lenBuf, body...)
		gotCRC := crc32.ChecksumIEEE(full)
		if gotCRC != wantCRC {
			break // corrupt tail record: stop replay, keep what verified
		}

		in, err := decode(kindTag(body[0]), body[1:])
		if err != nil {
			return nil, w.fatal(fmt.Sprintf("decode record %d", len(inputs)), err)
		}
		inputs = append(inputs, in)
	}
	if _, err := w.file.Seek(0, io.SeekEnd); err != nil {
		return nil, w.fatal("seek", err)
	}
	w.logger.Debug().Int("records", len(inputs)).Msg("replayed wal")
	return inputs, nil
}
