package server

import (
	"context"
	"fmt"
	"path/filepath"
	"syscall"
	"testing"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/blockdev"
	"github.com/brettbedarf/littlefs-utils/config"
	"github.com/brettbedarf/littlefs-utils/engine"
	"github.com/brettbedarf/littlefs-utils/engine/enginetest"
	"github.com/brettbedarf/littlefs-utils/filesystem"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newImage(t *testing.T, d *enginetest.V2, files map[string]string) littlefs.Filesystem {
	t.Helper()
	dev, err := blockdev.Create(filepath.Join(t.TempDir(), "image.bin"), littlefs.Geometry{BlockSize: 512, BlockCount: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = dev.Close() })

	s := filesystem.V2{Driver: d}
	tuning := littlefs.DefaultTuning(64, 64)
	require.NoError(t, filesystem.Format[engine.Config2](s, dev, tuning))
	lfs, err := filesystem.Mount[engine.Config2](s, dev, tuning)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lfs.Close() })

	for p, body := range files {
		if dir := filepath.Dir(p); dir != "/" {
			require.NoError(t, lfs.MakeDirectory(dir))
		}
		f, err := lfs.OpenFile(p, littlefs.OpenWrite|littlefs.OpenCreate)
		require.NoError(t, err)
		_, err = f.Write([]byte(body))
		require.NoError(t, err)
		require.NoError(t, f.Close())
	}
	return lfs
}

// build runs the root OnAdd through a node filesystem without mounting.
func build(t *testing.T, l *LittleFs) {
	t.Helper()
	fs.NewNodeFS(l.Root(), &fs.Options{})
}

func TestOnAdd_BuildsTree(t *testing.T) {
	t.Parallel()

	lfs := newImage(t, enginetest.NewV2(), map[string]string{
		"/a.txt":     "0123456789",
		"/dir/b.txt": "01234567890123456789",
	})
	l := New(lfs, nil)
	build(t, l)
	require.NoError(t, l.Err())

	root := l.root.EmbeddedInode()
	a := root.GetChild("a.txt")
	require.NotNil(t, a)
	dir := root.GetChild("dir")
	require.NotNil(t, dir)
	assert.True(t, dir.IsDir())
	b := dir.GetChild("b.txt")
	require.NotNil(t, b)
	assert.Nil(t, root.GetChild("."))

	node, ok := b.Operations().(*fileNode)
	require.True(t, ok)
	assert.Equal(t, "/dir/b.txt", node.path)

	var out fuse.AttrOut
	require.Equal(t, syscall.Errno(0), node.Getattr(context.Background(), nil, &out))
	assert.Equal(t, uint64(20), out.Size)
	assert.Equal(t, uint32(fuse.S_IFREG|0o644), out.Mode)
}

func TestOnAdd_RecordsListingErrors(t *testing.T) {
	t.Parallel()

	d := enginetest.NewV2()
	lfs := newImage(t, d, map[string]string{
		"/ok.txt":     "ok",
		"/bad/hidden": "x",
	})
	d.FailDirReads("/bad")

	l := New(lfs, nil)
	build(t, l)

	assert.ErrorIs(t, l.Err(), littlefs.ErrIO)
	root := l.root.EmbeddedInode()
	assert.NotNil(t, root.GetChild("ok.txt"))
	assert.NotNil(t, root.GetChild("bad"))
	assert.Equal(t, 0, d.OpenDirs())
}

func openFile(t *testing.T, l *LittleFs, name string) *fileHandle {
	t.Helper()
	ch := l.root.EmbeddedInode().GetChild(name)
	require.NotNil(t, ch)
	fh, flags, errno := ch.Operations().(*fileNode).Open(context.Background(), syscall.O_RDONLY)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, uint32(fuse.FOPEN_KEEP_CACHE), flags)
	return fh.(*fileHandle)
}

func TestFileHandle_Read(t *testing.T) {
	t.Parallel()

	d := enginetest.NewV2(enginetest.WithMaxReadChunk(3))
	lfs := newImage(t, d, map[string]string{"/data": "hello, littlefs"})
	l := New(lfs, nil)
	build(t, l)

	h := openFile(t, l, "data")
	assert.Equal(t, 1, l.OpenHandles())

	buf := make([]byte, 8)
	rr, errno := h.Read(context.Background(), buf, 7)
	require.Equal(t, syscall.Errno(0), errno)
	got, status := rr.Bytes(make([]byte, 8))
	require.True(t, status.Ok())
	assert.Equal(t, "littlefs", string(got), "short engine reads are joined")

	rr, errno = h.Read(context.Background(), make([]byte, 8), 13)
	require.Equal(t, syscall.Errno(0), errno)
	got, _ = rr.Bytes(make([]byte, 8))
	assert.Equal(t, "fs", string(got))

	assert.Equal(t, syscall.Errno(0), h.Release(context.Background()))
	assert.Equal(t, 0, l.OpenHandles())
	assert.Equal(t, 0, d.OpenFiles())

	_, errno = h.Read(context.Background(), buf, 0)
	assert.Equal(t, syscall.EBADF, errno)
}

func TestFileNode_RejectsWrites(t *testing.T) {
	t.Parallel()

	lfs := newImage(t, enginetest.NewV2(), map[string]string{"/data": "x"})
	l := New(lfs, nil)
	build(t, l)

	node := l.root.EmbeddedInode().GetChild("data").Operations().(*fileNode)
	_, _, errno := node.Open(context.Background(), syscall.O_RDWR)
	assert.Equal(t, syscall.EROFS, errno)
	assert.Equal(t, 0, l.OpenHandles())
}

func TestUnmount_DrainsHandles(t *testing.T) {
	t.Parallel()

	d := enginetest.NewV2()
	files := map[string]string{}
	for i := 0; i < 4; i++ {
		files[fmt.Sprintf("/f%d", i)] = "data"
	}
	lfs := newImage(t, d, files)
	cfg := config.NewDefaultConfig()
	l := New(lfs, cfg)
	build(t, l)

	for i := 0; i < 4; i++ {
		openFile(t, l, fmt.Sprintf("f%d", i))
	}
	require.Equal(t, 4, l.OpenHandles())
	require.Equal(t, 4, d.OpenFiles())

	require.NoError(t, l.Unmount(), "unmount without a server only drains handles")
	assert.Equal(t, 0, l.OpenHandles())
	assert.Equal(t, 0, d.OpenFiles())
	assert.Equal(t, 0, l.CloseHandles())
}

func TestToErrno(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want syscall.Errno
	}{
		{nil, 0},
		{littlefs.ErrNoEntry, syscall.ENOENT},
		{fmt.Errorf("open: %w", littlefs.ErrIsDir), syscall.EISDIR},
		{littlefs.ErrCorrupt, syscall.EIO},
		{&littlefs.EngineError{Code: littlefs.CodeCorruptV1}, syscall.EIO},
		{littlefs.ErrTooLarge, syscall.EFBIG},
		{littlefs.ErrOutOfRange, syscall.EINVAL},
		{&littlefs.EngineError{Code: -1234}, syscall.EIO},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.err), func(t *testing.T) {
			assert.Equal(t, tt.want, toErrno(tt.err))
		})
	}
}
