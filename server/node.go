package server

import (
	"context"
	"errors"
	"io"
	"sync"
	"syscall"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
)

const blockSize = 512 // st_blocks unit

// dirNode is a directory of the image. The root node builds the whole tree
// from OnAdd using persistent inodes.
type dirNode struct {
	fs.Inode
	srv  *LittleFs
	path string // "" for the root
}

var (
	_ = (fs.NodeOnAdder)((*dirNode)(nil))
	_ = (fs.NodeGetattrer)((*dirNode)(nil))
)

func (d *dirNode) OnAdd(ctx context.Context) {
	if d.path != "" {
		return
	}
	logger := util.GetLogger("LittleFs.OnAdd")

	type pending struct {
		inode *fs.Inode
		path  string
	}
	work := []pending{{inode: &d.Inode, path: ""}}
	dirs, files := 0, 0
	for len(work) > 0 {
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		entries, err := d.srv.list(cur.path)
		if err != nil {
			logger.Error().Err(err).Str("path", dirPath(cur.path)).Msg("Failed to list directory")
			d.srv.addErr(err)
			continue
		}
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." {
				continue
			}
			child := cur.path + "/" + e.Name
			if e.IsDirectory {
				node := &dirNode{srv: d.srv, path: child}
				ch := cur.inode.NewPersistentInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFDIR})
				cur.inode.AddChild(e.Name, ch, true)
				work = append(work, pending{inode: ch, path: child})
				dirs++
				continue
			}
			node := &fileNode{srv: d.srv, path: child, size: e.Size}
			ch := cur.inode.NewPersistentInode(ctx, node, fs.StableAttr{Mode: fuse.S_IFREG})
			cur.inode.AddChild(e.Name, ch, true)
			files++
		}
	}
	logger.Debug().Int("dirs", dirs).Int("files", files).Msg("Built tree")
}

func (d *dirNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFDIR | 0o555
	out.Nlink = 2
	return 0
}

func dirPath(p string) string {
	if p == "" {
		return "/"
	}
	return p
}

func (l *LittleFs) list(p string) ([]littlefs.DirectoryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fsys.ListDirectory(dirPath(p))
}

// fileNode is a regular file of the image.
type fileNode struct {
	fs.Inode
	srv  *LittleFs
	path string
	size uint32
}

var (
	_ = (fs.NodeOpener)((*fileNode)(nil))
	_ = (fs.NodeGetattrer)((*fileNode)(nil))
)

func (n *fileNode) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	out.Mode = fuse.S_IFREG | uint32(n.srv.cfg.Permissions&0o777)
	out.Nlink = 1
	out.Size = uint64(n.size)
	out.Blksize = blockSize
	out.Blocks = (out.Size + blockSize - 1) / blockSize
	return 0
}

// Open opens the engine file. Only read access is allowed.
func (n *fileNode) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	if flags&(syscall.O_WRONLY|syscall.O_RDWR|syscall.O_APPEND|syscall.O_TRUNC) != 0 {
		return nil, 0, syscall.EROFS
	}

	n.srv.mu.Lock()
	f, err := n.srv.fsys.OpenFile(n.path, littlefs.OpenRead)
	n.srv.mu.Unlock()
	if err != nil {
		logger := util.GetLogger("LittleFs.Open")
		logger.Debug().Err(err).Str("path", n.path).Msg("Open failed")
		return nil, 0, toErrno(err)
	}

	h := &fileHandle{id: n.srv.lastFH.Add(1), srv: n.srv, f: f, path: n.path}
	n.srv.handles.Store(h.id, h)
	return h, fuse.FOPEN_KEEP_CACHE, 0
}

// fileHandle owns one engine file for the lifetime of a kernel open.
type fileHandle struct {
	id   uint64
	srv  *LittleFs
	path string

	once sync.Once
	f    littlefs.File // guarded by srv.mu
}

var (
	_ = (fs.FileReader)((*fileHandle)(nil))
	_ = (fs.FileReleaser)((*fileHandle)(nil))
)

// Read positions the engine file at off and fills dest, looping over short
// engine reads.
func (h *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	h.srv.mu.Lock()
	defer h.srv.mu.Unlock()

	if h.f == nil {
		return nil, syscall.EBADF
	}
	if _, err := h.f.Seek(off, io.SeekStart); err != nil {
		return nil, toErrno(err)
	}
	n, err := io.ReadFull(h.f, dest)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, toErrno(err)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (h *fileHandle) Release(ctx context.Context) syscall.Errno {
	h.release()
	return 0
}

// release closes the engine file once and drops the handle from the table.
// It reports whether this call did the closing.
func (h *fileHandle) release() bool {
	closed := false
	h.once.Do(func() {
		h.srv.mu.Lock()
		if err := h.f.Close(); err != nil {
			logger := util.GetLogger("LittleFs.Release")
			logger.Warn().Err(err).Str("path", h.path).Msg("Close failed")
		}
		h.f = nil
		h.srv.mu.Unlock()
		h.srv.handles.Delete(h.id)
		closed = true
	})
	return closed
}

// toErrno maps domain errors onto the closest errno.
func toErrno(err error) syscall.Errno {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, littlefs.ErrNoEntry):
		return syscall.ENOENT
	case errors.Is(err, littlefs.ErrIsDir):
		return syscall.EISDIR
	case errors.Is(err, littlefs.ErrNotDir):
		return syscall.ENOTDIR
	case errors.Is(err, littlefs.ErrBadFile):
		return syscall.EBADF
	case errors.Is(err, littlefs.ErrNoSpace):
		return syscall.ENOSPC
	case errors.Is(err, littlefs.ErrNoMemory):
		return syscall.ENOMEM
	case errors.Is(err, littlefs.ErrNameTooLong):
		return syscall.ENAMETOOLONG
	case errors.Is(err, littlefs.ErrTooLarge), errors.Is(err, littlefs.ErrFileTooBig):
		return syscall.EFBIG
	case errors.Is(err, littlefs.ErrInvalid), errors.Is(err, littlefs.ErrOutOfRange):
		return syscall.EINVAL
	default:
		return syscall.EIO
	}
}
