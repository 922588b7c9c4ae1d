// Package server exposes a mounted littlefs image as a read-only FUSE
// filesystem.
package server

import (
	"errors"
	"sync"
	"sync/atomic"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/config"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// LittleFs serves one mounted image. The engine is single threaded, so every
// call into the image goes through mu; open engine files are tracked in
// handles so they can be released when the mount goes away.
type LittleFs struct {
	fsys    littlefs.Filesystem
	cfg     *config.Config
	server  *fuse.Server
	root    *dirNode
	mu      sync.Mutex
	handles *xsync.Map[uint64, *fileHandle]
	lastFH  atomic.Uint64
	buildMu sync.Mutex
	errs    []error // tree build failures, reported by Err
}

// New creates a LittleFs over an already mounted filesystem. The caller
// keeps ownership of fsys and closes it after Unmount.
func New(fsys littlefs.Filesystem, cfg *config.Config) *LittleFs {
	if cfg == nil {
		cfg = config.NewDefaultConfig()
	}
	l := &LittleFs{
		fsys:    fsys,
		cfg:     cfg,
		handles: xsync.NewMap[uint64, *fileHandle](),
	}
	l.root = &dirNode{srv: l, path: ""}
	return l
}

// Root returns the root node. The tree is populated from the image when the
// root is added to a FUSE node filesystem.
func (l *LittleFs) Root() fs.InodeEmbedder {
	return l.root
}

// Serve mounts and serves the filesystem at the given mountPoint.
func (l *LittleFs) Serve(mountPoint string) error {
	logger := util.GetLogger("LittleFs.Serve")

	opts := l.cfg.MountOptions
	ttl := opts.CacheTimeout
	srv, err := fs.Mount(mountPoint, l.root, &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       opts.Name,
			FsName:     opts.FsName,
			AllowOther: opts.AllowOther,
			Debug:      opts.Debug || l.cfg.LogLvl == util.TraceLevel,
			Logger:     util.NewLogLogger("FuseServer", util.TraceLevel),
		},
		EntryTimeout: &ttl,
		AttrTimeout:  &ttl,
	})
	if err != nil {
		return err
	}
	l.server = srv
	if err := l.Err(); err != nil {
		logger.Warn().Err(err).Msg("Parts of the image could not be listed")
	}
	logger.Info().Str("mountPoint", mountPoint).Msg("Serving image")
	return nil
}

// ServeAsync runs Serve in the background and reports its result.
func (l *LittleFs) ServeAsync(mountPoint string) <-chan error {
	done := make(chan error, 1)

	go func() {
		done <- l.Serve(mountPoint)
		close(done)
	}()

	return done
}

// Wait blocks until the filesystem is unmounted.
func (l *LittleFs) Wait() {
	if l.server != nil {
		l.server.Wait()
	}
}

// Unmount unmounts the filesystem and closes every engine file still open.
func (l *LittleFs) Unmount() error {
	var err error
	if l.server != nil {
		err = l.server.Unmount()
	}
	if n := l.CloseHandles(); n > 0 {
		logger := util.GetLogger("LittleFs.Unmount")
		logger.Debug().Int("count", n).Msg("Closed open handles")
	}
	return err
}

// OpenHandles returns the number of engine files currently open.
func (l *LittleFs) OpenHandles() int {
	return l.handles.Size()
}

// CloseHandles closes every tracked engine file and returns how many it
// closed.
func (l *LittleFs) CloseHandles() int {
	n := 0
	l.handles.Range(func(id uint64, h *fileHandle) bool {
		if h.release() {
			n++
		}
		return true
	})
	return n
}

// Err returns the listing failures collected while building the tree.
func (l *LittleFs) Err() error {
	l.buildMu.Lock()
	defer l.buildMu.Unlock()
	return errors.Join(l.errs...)
}

func (l *LittleFs) addErr(err error) {
	l.buildMu.Lock()
	l.errs = append(l.errs, err)
	l.buildMu.Unlock()
}
