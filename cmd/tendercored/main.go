// Command tendercored wires N in-process validators together over memnet
// and runs them through a handful of heights, logging every decision. It
// exists as a runnable demonstration of the driver/effect/wal stack, not as
// a deployable node — a real deployment would swap memnet's Network for a
// real transport and give each validator its own process and disk.
package main

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/cmwaters/tendercore/crypto/edsigner"
	"github.com/cmwaters/tendercore/driver"
	"github.com/cmwaters/tendercore/effect"
	"github.com/cmwaters/tendercore/memnet"
	"github.com/cmwaters/tendercore/roundstate"
	"github.com/cmwaters/tendercore/types"
	"github.com/cmwaters/tendercore/wal"
)

const numValidators = 4
const numHeights = 3

func main() {
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	if err := run(logger); err != nil {
		logger.Fatal().Err(err).Msg("tendercored exited")
	}
}

func run(logger zerolog.Logger) error {
	dir, err := os.MkdirTemp("", "tendercored-*")
	if err != nil {
		return fmt.Errorf("tendercored: mkdir: %w", err)
	}
	defer os.RemoveAll(dir)

	signers := make([]*edsigner.Signer, numValidators)
	vals := make([]types.Validator, numValidators)
	for i := range signers {
		s, err := edsigner.New()
		if err != nil {
			return fmt.Errorf("tendercored: generate key %d: %w", i, err)
		}
		signers[i] = s
		vals[i] = types.Validator{
			Address: types.Address(fmt.Sprintf("validator-%d", i)),
			PubKey:  s.PubKey(),
			Power:   1,
		}
	}
	vs, err := types.NewValidatorSet(vals, types.QuorumExact)
	if err != nil {
		return fmt.Errorf("tendercored: build validator set: %w", err)
	}

	net := memnet.NewNetwork(vs)
	decisions := make(chan struct {
		validator types.Address
		height    types.Height
	}, numValidators*numHeights)

	runtimes := make([]*effect.Runtime, numValidators)
	for i, v := range vs.Validators() {
		v := v
		nodeLogger := logger.With().Str("validator", string(v.Address)).Logger()

		walPath := filepath.Join(dir, string(v.Address)+".wal")
		w, err := wal.Open(walPath, nodeLogger)
		if err != nil {
			return fmt.Errorf("tendercored: open wal for %s: %w", v.Address, err)
		}
		defer func() {
			if err := w.Flush(); err != nil {
				logger.Warn().Err(err).Str("validator", string(v.Address)).Msg("wal flush on shutdown failed")
			}
			w.Close()
		}()

		d := driver.New(v.Address, signers[i], edsigner.Verifier{}, types.DefaultHasher, roundstate.DefaultTimeoutParams, nodeLogger)
		node := memnet.NewNode(net, v.Address, randomValueProvider, func(h types.Height, p types.Proposal, _ []types.Vote) {
			decisions <- struct {
				validator types.Address
				height    types.Height
			}{v.Address, h}
			logger.Info().Str("validator", string(v.Address)).Uint64("height", uint64(h)).Msg("decided")
		})

		rt := effect.New(d, node, w, nodeLogger)
		node.Bind(rt)
		runtimes[i] = rt
	}

	ctx := context.Background()
	for h := types.Height(1); h <= numHeights; h++ {
		for _, rt := range runtimes {
			// AdvanceHeight asks each Node's memnet.Network for the
			// validator set through the effect.Interpreter contract rather
			// than reusing the vs built above directly, exercising the same
			// GetValidatorSet path a real deployment would use to pick up a
			// validator set change at a height boundary.
			if err := rt.AdvanceHeight(ctx, h); err != nil {
				return fmt.Errorf("tendercored: start height %d: %w", h, err)
			}
		}

		deadline := time.After(10 * time.Second)
		decided := 0
		for decided < numValidators {
			select {
			case <-decisions:
				decided++
			case <-deadline:
				return fmt.Errorf("tendercored: height %d did not decide within deadline", h)
			}
		}
	}
	return nil
}

func randomValueProvider(_ context.Context, h types.Height, r types.Round) (types.Value, error) {
	buf := make([]byte, 8+4+8)
	binary.BigEndian.PutUint64(buf, uint64(h))
	binary.BigEndian.PutUint32(buf[8:], uint32(r))
	if _, err := rand.Read(buf[12:]); err != nil {
		return nil, err
	}
	return types.Value(buf), nil
}
