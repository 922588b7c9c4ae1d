package blockdev

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testGeom = littlefs.Geometry{BlockSize: 512, BlockCount: 4}

func writeImage(t *testing.T, size int) string {
	t.Helper()
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i / 512)
	}
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestOpen_LengthMismatch(t *testing.T) {
	t.Parallel()

	path := writeImage(t, 1000)
	_, err := Open(path, testGeom)
	require.Error(t, err)
	assert.ErrorIs(t, err, littlefs.ErrInvalidConfig)
}

func TestOpen_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "nope.bin"), testGeom)
	require.Error(t, err)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestOpen_ZeroGeometry(t *testing.T) {
	t.Parallel()

	path := writeImage(t, 0)
	_, err := Open(path, littlefs.Geometry{BlockSize: 512})
	assert.ErrorIs(t, err, littlefs.ErrInvalidConfig)
}

func TestFileDevice_Read(t *testing.T) {
	t.Parallel()

	dev, err := Open(writeImage(t, 2048), testGeom)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	assert.Equal(t, uint32(512), dev.BlockSize())
	assert.Equal(t, uint32(4), dev.BlockCount())

	buf := make([]byte, 16)
	require.NoError(t, dev.Read(2, 16, buf))
	assert.Equal(t, bytes.Repeat([]byte{2}, 16), buf, "must read block*blockSize+off")

	buf = make([]byte, 511)
	require.NoError(t, dev.Read(3, 0, buf), "one byte short of the block is in range")
	assert.Equal(t, bytes.Repeat([]byte{3}, 511), buf)
}

func TestFileDevice_RangeChecks(t *testing.T) {
	t.Parallel()

	dev, err := Open(writeImage(t, 2048), testGeom)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	tests := []struct {
		name  string
		block uint32
		off   uint32
		size  int
	}{
		{"block past end", 4, 0, 1},
		{"whole block at zero", 0, 0, 512},
		{"ends on boundary", 1, 500, 12},
		{"crosses boundary", 1, 500, 20},
		{"offset past block", 0, 600, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dev.Read(tt.block, tt.off, make([]byte, tt.size))
			assert.ErrorIs(t, err, littlefs.ErrOutOfRange)
		})
	}
}

func TestFileDevice_ProgramRangeChecks(t *testing.T) {
	t.Parallel()

	path := writeImage(t, 2048)
	before, err := os.ReadFile(path)
	require.NoError(t, err)

	dev, err := Create(path, testGeom)
	require.NoError(t, err)

	tests := []struct {
		name  string
		block uint32
		off   uint32
		size  int
	}{
		{"block past end", 4, 0, 1},
		{"whole block at zero", 0, 0, 512},
		{"ends on boundary", 1, 500, 12},
		{"crosses boundary", 1, 500, 20},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := dev.Program(tt.block, tt.off, bytes.Repeat([]byte{0xee}, tt.size))
			assert.ErrorIs(t, err, littlefs.ErrOutOfRange)
		})
	}
	require.NoError(t, dev.Close())

	after, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, after, "rejected programs must not touch the image")
}

func TestFileDevice_FullBlockAccess(t *testing.T) {
	t.Parallel()

	dev, err := Open(writeImage(t, 2048), testGeom, WithFullBlockAccess())
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	buf := make([]byte, 512)
	require.NoError(t, dev.Read(1, 0, buf))
	assert.Equal(t, bytes.Repeat([]byte{1}, 512), buf)

	err = dev.Read(1, 1, buf)
	assert.ErrorIs(t, err, littlefs.ErrOutOfRange, "accesses past the block stay rejected")
}

func TestFileDevice_ReadOnlyRejectsWrites(t *testing.T) {
	t.Parallel()

	dev, err := Open(writeImage(t, 2048), testGeom)
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	assert.ErrorIs(t, dev.Program(0, 0, []byte{1}), littlefs.ErrInvalidConfig)
	assert.ErrorIs(t, dev.Erase(0), littlefs.ErrInvalidConfig)
	assert.NoError(t, dev.Sync(), "sync on a read-only device is a no-op")
}

func TestCreate_ExtendsAndPrograms(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "new.bin")
	dev, err := Create(path, testGeom)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, testGeom.Bytes(), info.Size(), "image must be extended to the geometry")

	require.NoError(t, dev.Program(1, 4, []byte("abcd")))
	require.NoError(t, dev.Sync())

	buf := make([]byte, 4)
	require.NoError(t, dev.Read(1, 4, buf))
	assert.Equal(t, "abcd", string(buf))

	require.NoError(t, dev.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(data[512+4:512+8]))
}

func TestFileDevice_EraseZeroFills(t *testing.T) {
	t.Parallel()

	path := writeImage(t, 2048)
	dev, err := Create(path, testGeom)
	require.NoError(t, err)

	require.NoError(t, dev.Erase(2), "erase covers the whole block despite the strict bound")
	assert.ErrorIs(t, dev.Erase(4), littlefs.ErrOutOfRange)
	require.NoError(t, dev.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, make([]byte, 512), data[1024:1536])
	assert.Equal(t, bytes.Repeat([]byte{1}, 512), data[512:1024], "neighbours untouched")
	assert.Equal(t, bytes.Repeat([]byte{3}, 512), data[1536:], "neighbours untouched")
}

func TestFileDevice_CloseIdempotent(t *testing.T) {
	t.Parallel()

	dev, err := Open(writeImage(t, 2048), testGeom)
	require.NoError(t, err)

	require.NoError(t, dev.Close())
	require.NoError(t, dev.Close())

	var devErr *littlefs.DeviceError
	err = dev.Read(0, 0, make([]byte, 4))
	require.ErrorAs(t, err, &devErr)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestOpenImage_DerivesGeometry(t *testing.T) {
	t.Parallel()

	path := writeImage(t, 2048)

	dev, err := OpenImage(path, 512, false)
	require.NoError(t, err)
	assert.Equal(t, uint32(4), dev.BlockCount())
	require.NoError(t, dev.Close())

	_, err = OpenImage(path, 1000, false)
	assert.ErrorIs(t, err, littlefs.ErrInvalidConfig)
}
