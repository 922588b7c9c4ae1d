// Package littlefs contains the core domain types and interfaces for reading
// littlefs disk images and turning their contents into archives.
//
// The littlefs engine itself is an external collaborator; see the engine
// package for the surface this module consumes and the filesystem package for
// the adapter that bridges a [BlockDevice] into it.
package littlefs

import (
	"fmt"
	"math"
)

// Version selects the littlefs engine generation. It is immutable once a
// filesystem is mounted.
type Version uint32

const (
	V1 Version = 1
	V2 Version = 2
)

// ParseVersion validates a numeric version selector.
func ParseVersion(v uint32) (Version, error) {
	switch Version(v) {
	case V1, V2:
		return Version(v), nil
	default:
		return 0, fmt.Errorf("%w: invalid littlefs version %d", ErrInvalidConfig, v)
	}
}

func (v Version) String() string {
	return fmt.Sprintf("v%d", uint32(v))
}

// Geometry describes a block device. It is fixed for the device's lifetime.
type Geometry struct {
	BlockSize  uint32
	BlockCount uint32
}

// Bytes returns the number of bytes covered by the geometry.
func (g Geometry) Bytes() int64 {
	return int64(g.BlockSize) * int64(g.BlockCount)
}

// GeometryForSize derives the block count of an image of the given byte size.
func GeometryForSize(size int64, blockSize uint32) (Geometry, error) {
	if blockSize == 0 || size < 0 || size%int64(blockSize) != 0 {
		return Geometry{}, fmt.Errorf("%w: invalid block size %d for image of %d bytes", ErrInvalidConfig, blockSize, size)
	}
	count := size / int64(blockSize)
	if count > math.MaxUint32 {
		return Geometry{}, fmt.Errorf("%w: image too large", ErrInvalidConfig)
	}
	return Geometry{BlockSize: blockSize, BlockCount: uint32(count)}, nil
}

// Default engine tuning values. See [Tuning] for field descriptions.
const (
	DefaultBlockCycles   = 100
	DefaultLookaheadSize = 128
)

// Tuning holds the version-specific mount configuration. It is supplied at
// mount or format time and never mutated afterwards. Fields a version does
// not know about are ignored by that version's strategy.
type Tuning struct {
	ReadSize      uint32 // Minimum read size in bytes
	ProgSize      uint32 // Minimum program size in bytes
	BlockCycles   int32  // Erase cycles before metadata eviction (V2)
	CacheSize     uint32 // Cache size in bytes; 0 means block size (V2)
	LookaheadSize uint32 // Lookahead buffer size (V2) or lookahead block count (V1)
	NameMax       uint32 // Max file name length; 0 means engine default (V2)
	FileMax       uint32 // Max file size; 0 means engine default (V2)
	AttrMax       uint32 // Max custom attribute size; 0 means engine default (V2)
}

// DefaultTuning returns a Tuning with engine defaults for the given read and
// program sizes.
func DefaultTuning(readSize, progSize uint32) Tuning {
	return Tuning{
		ReadSize:      readSize,
		ProgSize:      progSize,
		BlockCycles:   DefaultBlockCycles,
		LookaheadSize: DefaultLookaheadSize,
	}
}

// DirectoryEntry is one child of a directory as reported by a single listing.
// Size is meaningless when IsDirectory is true.
type DirectoryEntry struct {
	Name        string
	IsDirectory bool
	Size        uint32
}

// FileInfo is a regular file discovered during traversal. Path is rooted at "/".
type FileInfo struct {
	Path string
	Size uint32
}

// OpenFlags are passed opaquely to the engine. The values match both engine
// generations.
type OpenFlags uint32

const (
	OpenRead      OpenFlags = 0x0001
	OpenWrite     OpenFlags = 0x0002
	OpenCreate    OpenFlags = 0x0100 // create if it does not exist
	OpenExclusive OpenFlags = 0x0200 // fail if it already exists
	OpenTruncate  OpenFlags = 0x0400
	OpenAppend    OpenFlags = 0x0800
)

// DefaultPermissions is applied to every archived file. Original permissions
// are not recovered from the image.
const DefaultPermissions = 0o644
