// Package engine describes the surface of the external littlefs engine as this
// module consumes it: four block I/O callbacks, a version specific
// configuration, and entry points that return signed integers where negative
// values are error codes and non-negative values are success or byte counts.
//
// The engine is not implemented here. The lfs1 and lfs2 subpackages bind the
// C libraries when built with the "littlefs" build tag and register
// themselves through [RegisterV1] and [RegisterV2]; enginetest provides an
// in-process engine for tests.
package engine

// NameMax is the capacity of the name buffer in [Info], excluding the
// terminating NUL.
const NameMax = 255

// Callbacks are the block device entry points handed to the engine. Each
// returns 0 on success or a negative error code and must never panic.
type Callbacks struct {
	Read  func(block, off uint32, buf []byte) int
	Prog  func(block, off uint32, buf []byte) int
	Erase func(block uint32) int
	Sync  func() int
}

// Config1 is the first generation engine configuration.
type Config1 struct {
	Callbacks

	ReadSize   uint32
	ProgSize   uint32
	BlockSize  uint32
	BlockCount uint32
	Lookahead  uint32 // number of blocks tracked by the lookahead bitmap
}

// Config2 is the second generation engine configuration.
type Config2 struct {
	Callbacks

	ReadSize      uint32
	ProgSize      uint32
	BlockSize     uint32
	BlockCount    uint32
	BlockCycles   int32
	CacheSize     uint32
	LookaheadSize uint32
	NameMax       uint32
	FileMax       uint32
	AttrMax       uint32
}

// Driver is one engine generation's mount and format entry points over its
// configuration type.
type Driver[C any] interface {
	Format(cfg *C) int
	Mount(cfg *C) (Instance, int)
}

// Instance is a mounted engine.
type Instance interface {
	Unmount() int
	Mkdir(path string) int
	DirOpen(path string) (Dir, int)
	FileOpen(path string, flags int) (File, int)
}

// Dir is an open engine directory. Read returns 1 when info was filled, 0 at
// the end of the directory, or a negative error code.
type Dir interface {
	Read(info *Info) int
	Close() int
}

// Seek origins accepted by File.Seek.
const (
	SeekSet = 0
	SeekCur = 1
	SeekEnd = 2
)

// File is an open engine file.
type File interface {
	Read(buf []byte) int
	Write(buf []byte) int
	Seek(off int32, whence int) int
	Size() int
	Tell() int
	Sync() int
	Close() int
}

// Info is the engine's directory entry record. Name is a fixed capacity,
// NUL terminated buffer.
type Info struct {
	Type uint8
	Size uint32
	Name [NameMax + 1]byte
}

// SetName copies name into the fixed capacity buffer, truncating it if needed.
func (i *Info) SetName(name string) {
	n := copy(i.Name[:NameMax], name)
	i.Name[n] = 0
}
