// Package blockdev implements [littlefs.BlockDevice] over a flat image file.
package blockdev

import (
	"fmt"
	"os"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/internal/util"
)

// Option configures a FileDevice.
type Option func(*FileDevice)

// WithFullBlockAccess accepts accesses that end exactly on a block boundary.
// By default offset+size must stay strictly below the block size, which also
// rejects a whole-block access at offset 0.
func WithFullBlockAccess() Option {
	return func(d *FileDevice) {
		d.fullBlock = true
	}
}

// FileDevice is a block device backed by a single image file opened in binary
// mode. It is owned by one caller and not safe for concurrent use.
type FileDevice struct {
	f          *os.File
	path       string
	writable   bool
	fullBlock  bool
	blockSize  uint32
	blockCount uint32
}

var _ littlefs.BlockDevice = (*FileDevice)(nil)

// Open opens an existing image read-only. The file length must equal the
// geometry exactly; a mismatch is reported before any other operation.
func Open(path string, geom littlefs.Geometry, opts ...Option) (*FileDevice, error) {
	if err := validate(geom); err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening image %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat image %q: %w", path, err)
	}
	if info.Size() != geom.Bytes() {
		_ = f.Close()
		return nil, fmt.Errorf("%w: invalid block size: image %q is %d bytes, geometry %dx%d covers %d",
			littlefs.ErrInvalidConfig, path, info.Size(), geom.BlockCount, geom.BlockSize, geom.Bytes())
	}

	return newFileDevice(f, path, false, geom, opts), nil
}

// Create opens an image for writing, creating it if needed. There is no length
// precondition; a file shorter than the geometry is extended with zeros.
func Create(path string, geom littlefs.Geometry, opts ...Option) (*FileDevice, error) {
	if err := validate(geom); err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening image %q: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat image %q: %w", path, err)
	}
	if info.Size() < geom.Bytes() {
		if err := f.Truncate(geom.Bytes()); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("extending image %q to %d bytes: %w", path, geom.Bytes(), err)
		}
	}

	return newFileDevice(f, path, true, geom, opts), nil
}

// OpenImage opens an image whose block count is derived from its length.
func OpenImage(path string, blockSize uint32, writable bool, opts ...Option) (*FileDevice, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat image %q: %w", path, err)
	}
	geom, err := littlefs.GeometryForSize(info.Size(), blockSize)
	if err != nil {
		return nil, err
	}
	if writable {
		return Create(path, geom, opts...)
	}
	return Open(path, geom, opts...)
}

func newFileDevice(f *os.File, path string, writable bool, geom littlefs.Geometry, opts []Option) *FileDevice {
	d := &FileDevice{
		f:          f,
		path:       path,
		writable:   writable,
		blockSize:  geom.BlockSize,
		blockCount: geom.BlockCount,
	}
	for _, opt := range opts {
		opt(d)
	}

	logger := util.GetLogger("BlockDevice")
	logger.Debug().
		Str("path", path).
		Bool("writable", writable).
		Uint32("blockSize", d.blockSize).
		Uint32("blockCount", d.blockCount).
		Msg("Opened image")
	return d
}

func validate(geom littlefs.Geometry) error {
	if geom.BlockSize == 0 || geom.BlockCount == 0 {
		return fmt.Errorf("%w: block size and count must be > 0, got %dx%d",
			littlefs.ErrInvalidConfig, geom.BlockCount, geom.BlockSize)
	}
	return nil
}

func (d *FileDevice) BlockSize() uint32  { return d.blockSize }
func (d *FileDevice) BlockCount() uint32 { return d.blockCount }

// Path returns the backing file path.
func (d *FileDevice) Path() string { return d.path }

// Read fills p from block at off.
func (d *FileDevice) Read(block, off uint32, p []byte) error {
	if err := d.checkRange(block, off, len(p), "read"); err != nil {
		return err
	}
	if _, err := d.f.ReadAt(p, d.position(block, off)); err != nil {
		return &littlefs.DeviceError{Op: "read", Block: block, Err: err}
	}
	return nil
}

// Program writes p into block at off.
func (d *FileDevice) Program(block, off uint32, p []byte) error {
	if err := d.checkRange(block, off, len(p), "write"); err != nil {
		return err
	}
	return d.writeAt(block, off, p, "program")
}

// Erase is emulated by programming a zero-filled block. Blank flash reads as
// 0xff on real hardware; that is not modelled.
func (d *FileDevice) Erase(block uint32) error {
	if block >= d.blockCount {
		return fmt.Errorf("%w: invalid block number %d", littlefs.ErrOutOfRange, block)
	}
	return d.writeAt(block, 0, make([]byte, d.blockSize), "erase")
}

// Sync flushes written blocks to stable storage.
func (d *FileDevice) Sync() error {
	if d.f == nil {
		return &littlefs.DeviceError{Op: "sync", Err: os.ErrClosed}
	}
	if !d.writable {
		return nil
	}
	if err := d.f.Sync(); err != nil {
		return &littlefs.DeviceError{Op: "sync", Err: err}
	}
	return nil
}

// Close releases the backing file. It is safe to call Close multiple times.
func (d *FileDevice) Close() error {
	if d == nil || d.f == nil {
		return nil
	}
	err := d.f.Close()
	d.f = nil
	if err != nil {
		return &littlefs.DeviceError{Op: "close", Err: err}
	}
	return nil
}

func (d *FileDevice) writeAt(block, off uint32, p []byte, op string) error {
	if !d.writable {
		return fmt.Errorf("%w: image %q is opened read-only", littlefs.ErrInvalidConfig, d.path)
	}
	if d.f == nil {
		return &littlefs.DeviceError{Op: op, Block: block, Err: os.ErrClosed}
	}
	if _, err := d.f.WriteAt(p, d.position(block, off)); err != nil {
		return &littlefs.DeviceError{Op: op, Block: block, Err: err}
	}
	return nil
}

func (d *FileDevice) checkRange(block, off uint32, size int, kind string) error {
	if block >= d.blockCount {
		return fmt.Errorf("%w: invalid block number %d", littlefs.ErrOutOfRange, block)
	}
	end := uint64(off) + uint64(size)
	if end > uint64(d.blockSize) || (!d.fullBlock && end == uint64(d.blockSize)) {
		return fmt.Errorf("%w: invalid %s range %d+%d in block of %d bytes",
			littlefs.ErrOutOfRange, kind, off, size, d.blockSize)
	}
	if d.f == nil {
		return &littlefs.DeviceError{Op: kind, Block: block, Err: os.ErrClosed}
	}
	return nil
}

// position widens before multiplying so large block counts cannot overflow.
func (d *FileDevice) position(block, off uint32) int64 {
	return int64(block)*int64(d.blockSize) + int64(off)
}
