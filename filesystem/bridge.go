package filesystem

import (
	"fmt"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/engine"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/rs/zerolog"
)

// bridge forwards engine callbacks to a block device. The engine only
// understands integer codes, so every callback converts a device error or a
// panic into the generation's I/O code and nothing else escapes. The last
// such failure is kept so the engine's error can name its cause.
type bridge struct {
	dev    littlefs.BlockDevice
	ioCode int
	err    error
	logger zerolog.Logger
}

func newBridge(dev littlefs.BlockDevice, ioCode int) *bridge {
	return &bridge{dev: dev, ioCode: ioCode, logger: util.GetLogger("Bridge")}
}

func (b *bridge) callbacks() engine.Callbacks {
	return engine.Callbacks{
		Read: func(block, off uint32, buf []byte) int {
			return b.guard("read", block, func() error { return b.dev.Read(block, off, buf) })
		},
		Prog: func(block, off uint32, buf []byte) int {
			return b.guard("prog", block, func() error { return b.dev.Program(block, off, buf) })
		},
		Erase: func(block uint32) int {
			return b.guard("erase", block, func() error { return b.dev.Erase(block) })
		},
		Sync: func() int {
			return b.guard("sync", 0, b.dev.Sync)
		},
	}
}

func (b *bridge) guard(op string, block uint32, fn func() error) (rc int) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error().
				Str("op", op).
				Uint32("block", block).
				Err(fmt.Errorf("panic: %v", r)).
				Msg("Device callback panicked")
			b.err = fmt.Errorf("%s callback panicked: %v", op, r)
			rc = b.ioCode
		}
	}()

	if err := fn(); err != nil {
		b.logger.Debug().Str("op", op).Uint32("block", block).Err(err).Msg("Device callback failed")
		b.err = err
		return b.ioCode
	}
	return 0
}

// engineError builds the error for a failed engine call. An I/O result also
// wraps the device failure that caused it, which is then forgotten.
func (b *bridge) engineError(op string, rc int) error {
	err := &littlefs.EngineError{Op: op, Code: rc}
	if rc != b.ioCode || b.err == nil {
		return err
	}
	cause := b.err
	b.err = nil
	return fmt.Errorf("%w: %w", err, cause)
}
