package enginetest

import (
	"testing"

	"github.com/brettbedarf/littlefs-utils/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testBlockSize  = 128
	testBlockCount = 32
)

// memCallbacks backs the engine with an in-memory image that enforces the
// strict per-block bound.
func memCallbacks(t *testing.T) engine.Callbacks {
	t.Helper()
	img := make([]byte, testBlockSize*testBlockCount)
	inRange := func(block, off uint32, n int) bool {
		return block < testBlockCount && int(off)+n < testBlockSize
	}
	return engine.Callbacks{
		Read: func(block, off uint32, buf []byte) int {
			if !inRange(block, off, len(buf)) {
				t.Errorf("read out of range: block %d off %d len %d", block, off, len(buf))
				return engine.V2ErrIO
			}
			copy(buf, img[block*testBlockSize+off:])
			return 0
		},
		Prog: func(block, off uint32, buf []byte) int {
			if !inRange(block, off, len(buf)) {
				t.Errorf("prog out of range: block %d off %d len %d", block, off, len(buf))
				return engine.V2ErrIO
			}
			copy(img[block*testBlockSize+off:], buf)
			return 0
		},
		Erase: func(block uint32) int {
			clear(img[block*testBlockSize : (block+1)*testBlockSize])
			return 0
		},
		Sync: func() int { return 0 },
	}
}

func config2(cb engine.Callbacks) *engine.Config2 {
	return &engine.Config2{
		Callbacks:     cb,
		ReadSize:      16,
		ProgSize:      16,
		BlockSize:     testBlockSize,
		BlockCount:    testBlockCount,
		BlockCycles:   100,
		CacheSize:     testBlockSize,
		LookaheadSize: 128,
	}
}

func TestMount_Unformatted(t *testing.T) {
	t.Parallel()

	d := NewV2()
	_, rc := d.Mount(config2(memCallbacks(t)))
	assert.Equal(t, engine.V2ErrCorrupt, rc)
	assert.Equal(t, 0, d.Mounts())
}

func TestMount_WrongGeneration(t *testing.T) {
	t.Parallel()

	cb := memCallbacks(t)
	require.Equal(t, 0, NewV2().Format(config2(cb)))

	v1 := NewV1()
	_, rc := v1.Mount(&engine.Config1{
		Callbacks:  cb,
		ReadSize:   16,
		ProgSize:   16,
		BlockSize:  testBlockSize,
		BlockCount: testBlockCount,
		Lookahead:  128,
	})
	assert.Equal(t, engine.V1ErrCorrupt, rc)
}

func TestFormat_InvalidGeometry(t *testing.T) {
	t.Parallel()

	cfg := config2(memCallbacks(t))
	cfg.ReadSize = 48
	assert.Equal(t, engine.V2ErrInval, NewV2().Format(cfg))
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	cb := memCallbacks(t)
	d := NewV2(WithMaxReadChunk(3))
	require.Equal(t, 0, d.Format(config2(cb)))

	inst, rc := d.Mount(config2(cb))
	require.Equal(t, 0, rc)
	require.Equal(t, 0, inst.Mkdir("/docs"))
	assert.Equal(t, engine.V2ErrExist, inst.Mkdir("/docs"))
	assert.Equal(t, engine.V2ErrNoEnt, inst.Mkdir("/missing/child"))

	f, rc := inst.FileOpen("/docs/readme.txt", 2|0x0100)
	require.Equal(t, 0, rc)
	assert.Equal(t, 11, f.Write([]byte("hello world")))
	assert.Equal(t, 0, f.Close())
	assert.Equal(t, engine.V2ErrBadF, f.Close())
	require.Equal(t, 0, inst.Unmount())

	inst, rc = d.Mount(config2(cb))
	require.Equal(t, 0, rc)

	dir, rc := inst.DirOpen("/docs")
	require.Equal(t, 0, rc)
	var info engine.Info
	var names []string
	for dir.Read(&info) > 0 {
		names = append(names, string(info.Name[:len("readme.txt")]))
		if info.Name[0] != '.' {
			assert.Equal(t, uint8(engine.V2TypeReg), info.Type)
			assert.Equal(t, uint32(11), info.Size)
		}
	}
	require.Equal(t, 0, dir.Close())
	require.Len(t, names, 3)
	assert.Equal(t, "readme.txt", names[2])

	f, rc = inst.FileOpen("/docs/readme.txt", 1)
	require.Equal(t, 0, rc)
	assert.Equal(t, 11, f.Size())
	buf := make([]byte, 16)
	assert.Equal(t, 3, f.Read(buf), "reads are capped by the chunk option")
	assert.Equal(t, "hel", string(buf[:3]))
	assert.Equal(t, 6, f.Seek(6, engine.SeekSet))
	assert.Equal(t, 3, f.Read(buf))
	assert.Equal(t, "wor", string(buf[:3]))
	assert.Equal(t, engine.V2ErrBadF, f.Write([]byte("x")), "read-only handle")
	assert.Equal(t, 1, d.OpenFiles())
	require.Equal(t, 0, f.Close())
	assert.Equal(t, 0, d.OpenFiles())
	assert.Equal(t, 0, d.OpenDirs())
	require.Equal(t, 0, inst.Unmount())
}

func TestFailureInjection(t *testing.T) {
	t.Parallel()

	cb := memCallbacks(t)
	d := NewV2()
	require.Equal(t, 0, d.Format(config2(cb)))
	inst, rc := d.Mount(config2(cb))
	require.Equal(t, 0, rc)
	t.Cleanup(func() { inst.Unmount() })

	f, rc := inst.FileOpen("/a", 2|0x0100)
	require.Equal(t, 0, rc)
	f.Write([]byte("abc"))
	require.Equal(t, 0, f.Close())

	d.FailReads("/a")
	f, rc = inst.FileOpen("/a", 1)
	require.Equal(t, 0, rc)
	assert.Equal(t, engine.V2ErrIO, f.Read(make([]byte, 3)))
	f.Close()

	d.FailDirReads("/")
	dir, rc := inst.DirOpen("/")
	require.Equal(t, 0, rc)
	var info engine.Info
	assert.Equal(t, 1, dir.Read(&info))
	assert.Equal(t, 1, dir.Read(&info))
	assert.Equal(t, engine.V2ErrIO, dir.Read(&info))
	dir.Close()
}

func TestNoSpace(t *testing.T) {
	t.Parallel()

	cb := memCallbacks(t)
	d := NewV2()
	require.Equal(t, 0, d.Format(config2(cb)))
	inst, rc := d.Mount(config2(cb))
	require.Equal(t, 0, rc)
	t.Cleanup(func() { inst.Unmount() })

	f, rc := inst.FileOpen("/big", 2|0x0100)
	require.Equal(t, 0, rc)
	f.Write(make([]byte, testBlockSize*testBlockCount))
	assert.Equal(t, engine.V2ErrNoSpc, f.Close())
}
