// Package filesystem adapts a [littlefs.BlockDevice] to the littlefs engine and
// exposes one [littlefs.Filesystem] contract over both engine generations.
//
// Everything version specific lives in a [Strategy]; [FileSystem] and [File]
// are written once against it.
package filesystem

import (
	"math"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/engine"
)

// Strategy binds one engine generation: its configuration type, its entry
// points and the few constants that differ between generations.
type Strategy[C any] interface {
	Version() littlefs.Version

	// Configure builds a fresh configuration wired to cb. The returned value is
	// owned by the caller and must outlive any instance mounted with it.
	Configure(cb engine.Callbacks, geom littlefs.Geometry, tuning littlefs.Tuning) *C

	Format(cfg *C) int
	Mount(cfg *C) (engine.Instance, int)

	// IsDir reports whether an entry type marks a directory.
	IsDir(typ uint8) bool

	// MaxIOSize is the largest buffer one file read or write may request.
	MaxIOSize() int

	// IOCode is the generic I/O failure code returned to the engine when a
	// device callback fails.
	IOCode() int

	// Op returns the engine entry point name for op, used in errors and logs.
	Op(op string) string
}

// V1 is the first generation strategy.
type V1 struct {
	Driver engine.Driver[engine.Config1]
}

var _ Strategy[engine.Config1] = V1{}

func (V1) Version() littlefs.Version { return littlefs.V1 }

func (V1) Configure(cb engine.Callbacks, geom littlefs.Geometry, tuning littlefs.Tuning) *engine.Config1 {
	lookahead := tuning.LookaheadSize
	if lookahead == 0 {
		lookahead = littlefs.DefaultLookaheadSize
	}
	return &engine.Config1{
		Callbacks:  cb,
		ReadSize:   tuning.ReadSize,
		ProgSize:   tuning.ProgSize,
		BlockSize:  geom.BlockSize,
		BlockCount: geom.BlockCount,
		Lookahead:  lookahead,
	}
}

func (s V1) Format(cfg *engine.Config1) int                   { return s.Driver.Format(cfg) }
func (s V1) Mount(cfg *engine.Config1) (engine.Instance, int) { return s.Driver.Mount(cfg) }
func (V1) IsDir(typ uint8) bool                               { return typ == engine.V1TypeDir }
func (V1) MaxIOSize() int                                     { return math.MaxInt32 }
func (V1) IOCode() int                                        { return engine.V1ErrIO }
func (V1) Op(op string) string                                { return "lfs1_" + op }

// V2 is the second generation strategy.
type V2 struct {
	Driver engine.Driver[engine.Config2]
}

var _ Strategy[engine.Config2] = V2{}

func (V2) Version() littlefs.Version { return littlefs.V2 }

// Configure substitutes the block size for an unset cache size and the
// package defaults for unset block cycles and lookahead.
func (V2) Configure(cb engine.Callbacks, geom littlefs.Geometry, tuning littlefs.Tuning) *engine.Config2 {
	cfg := &engine.Config2{
		Callbacks:     cb,
		ReadSize:      tuning.ReadSize,
		ProgSize:      tuning.ProgSize,
		BlockSize:     geom.BlockSize,
		BlockCount:    geom.BlockCount,
		BlockCycles:   tuning.BlockCycles,
		CacheSize:     tuning.CacheSize,
		LookaheadSize: tuning.LookaheadSize,
		NameMax:       tuning.NameMax,
		FileMax:       tuning.FileMax,
		AttrMax:       tuning.AttrMax,
	}
	if cfg.CacheSize == 0 {
		cfg.CacheSize = geom.BlockSize
	}
	if cfg.BlockCycles == 0 {
		cfg.BlockCycles = littlefs.DefaultBlockCycles
	}
	if cfg.LookaheadSize == 0 {
		cfg.LookaheadSize = littlefs.DefaultLookaheadSize
	}
	return cfg
}

func (s V2) Format(cfg *engine.Config2) int                   { return s.Driver.Format(cfg) }
func (s V2) Mount(cfg *engine.Config2) (engine.Instance, int) { return s.Driver.Mount(cfg) }
func (V2) IsDir(typ uint8) bool                               { return typ == engine.V2TypeDir }
func (V2) MaxIOSize() int                                     { return math.MaxInt32 }
func (V2) IOCode() int                                        { return engine.V2ErrIO }
func (V2) Op(op string) string                                { return "lfs2_" + op }
