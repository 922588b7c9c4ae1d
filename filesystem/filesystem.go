package filesystem

import (
	"bytes"
	"errors"
	"fmt"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/engine"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/rs/zerolog"
)

// FileSystem is a littlefs image mounted through strategy S. It owns neither
// the device nor the engine library, only the mount. Not safe for concurrent
// use.
type FileSystem[C any] struct {
	strategy Strategy[C]
	dev      littlefs.BlockDevice
	bridge   *bridge
	cfg      *C // referenced by the engine while mounted
	inst     engine.Instance
	mounted  bool
	files    map[*File[C]]struct{}
	logger   zerolog.Logger
}

var (
	_ littlefs.Filesystem = (*FileSystem[engine.Config1])(nil)
	_ littlefs.Filesystem = (*FileSystem[engine.Config2])(nil)
)

// Mount attaches the engine to dev. On failure nothing is left mounted and
// dev remains owned by the caller.
func Mount[C any](s Strategy[C], dev littlefs.BlockDevice, tuning littlefs.Tuning) (*FileSystem[C], error) {
	logger := util.GetLogger("FS.Mount")

	geom := littlefs.Geometry{BlockSize: dev.BlockSize(), BlockCount: dev.BlockCount()}
	b := newBridge(dev, s.IOCode())
	cfg := s.Configure(b.callbacks(), geom, tuning)

	inst, rc := s.Mount(cfg)
	if rc < 0 {
		err := b.engineError(s.Op("mount"), rc)
		logger.Debug().Err(err).Str("version", s.Version().String()).Msg("Mount failed")
		return nil, err
	}

	logger.Debug().
		Str("version", s.Version().String()).
		Uint32("blockSize", geom.BlockSize).
		Uint32("blockCount", geom.BlockCount).
		Msg("Mounted")

	return &FileSystem[C]{
		strategy: s,
		dev:      dev,
		bridge:   b,
		cfg:      cfg,
		inst:     inst,
		mounted:  true,
		files:    map[*File[C]]struct{}{},
		logger:   util.GetLogger("FS"),
	}, nil
}

// Format writes an empty filesystem to dev. It never mounts.
func Format[C any](s Strategy[C], dev littlefs.BlockDevice, tuning littlefs.Tuning) error {
	logger := util.GetLogger("FS.Format")

	geom := littlefs.Geometry{BlockSize: dev.BlockSize(), BlockCount: dev.BlockCount()}
	b := newBridge(dev, s.IOCode())
	cfg := s.Configure(b.callbacks(), geom, tuning)

	if rc := s.Format(cfg); rc < 0 {
		return b.engineError(s.Op("format"), rc)
	}
	logger.Debug().
		Str("version", s.Version().String()).
		Uint32("blockSize", geom.BlockSize).
		Uint32("blockCount", geom.BlockCount).
		Msg("Formatted")
	return nil
}

func (fs *FileSystem[C]) Version() littlefs.Version {
	return fs.strategy.Version()
}

// Device returns the block device the filesystem is mounted on.
func (fs *FileSystem[C]) Device() littlefs.BlockDevice {
	return fs.dev
}

func (fs *FileSystem[C]) engineErr(op string, rc int) error {
	return fs.bridge.engineError(fs.strategy.Op(op), rc)
}

var errUnmounted = errors.New("filesystem is not mounted")

func (fs *FileSystem[C]) checkMounted() error {
	if !fs.mounted {
		return errUnmounted
	}
	return nil
}

// ListDirectory returns the entries of path in engine order, including "."
// and "..". The directory handle is closed on every path.
func (fs *FileSystem[C]) ListDirectory(path string) (entries []littlefs.DirectoryEntry, err error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}

	dir, rc := fs.inst.DirOpen(path)
	if rc < 0 {
		return nil, fmt.Errorf("listing %q: %w", path, fs.engineErr("dir_open", rc))
	}
	defer func() {
		if rc := dir.Close(); rc < 0 && err == nil {
			err = fmt.Errorf("listing %q: %w", path, fs.engineErr("dir_close", rc))
		}
	}()

	var info engine.Info
	for {
		rc := dir.Read(&info)
		if rc < 0 {
			return nil, fmt.Errorf("listing %q: %w", path, fs.engineErr("dir_read", rc))
		}
		if rc == 0 {
			break
		}
		entries = append(entries, littlefs.DirectoryEntry{
			Name:        entryName(&info),
			IsDirectory: fs.strategy.IsDir(info.Type),
			Size:        info.Size,
		})
	}
	return entries, nil
}

// entryName copies the name up to the first NUL, bounded by the buffer.
func entryName(info *engine.Info) string {
	name := info.Name[:]
	if i := bytes.IndexByte(name, 0); i >= 0 {
		name = name[:i]
	}
	return string(name)
}

// MakeDirectory creates one directory. The parent must exist.
func (fs *FileSystem[C]) MakeDirectory(path string) error {
	if err := fs.checkMounted(); err != nil {
		return err
	}
	if rc := fs.inst.Mkdir(path); rc < 0 {
		return fmt.Errorf("creating %q: %w", path, fs.engineErr("mkdir", rc))
	}
	return nil
}

// OpenFile opens path. The handle must be closed before Close; handles still
// open at Close are closed then.
func (fs *FileSystem[C]) OpenFile(path string, flags littlefs.OpenFlags) (littlefs.File, error) {
	return fs.Open(path, flags)
}

// Open is OpenFile returning the concrete handle.
func (fs *FileSystem[C]) Open(path string, flags littlefs.OpenFlags) (*File[C], error) {
	if err := fs.checkMounted(); err != nil {
		return nil, err
	}

	ef, rc := fs.inst.FileOpen(path, int(flags))
	if rc < 0 {
		return nil, fmt.Errorf("opening %q: %w", path, fs.engineErr("file_open", rc))
	}

	f := &File[C]{fs: fs, ef: ef, path: path}
	fs.files[f] = struct{}{}
	fs.logger.Trace().Str("path", path).Uint32("flags", uint32(flags)).Msg("Opened file")
	return f, nil
}

// RecursiveDirList returns every regular file below path.
func (fs *FileSystem[C]) RecursiveDirList(path string) ([]littlefs.FileInfo, error) {
	return RecursiveDirList(fs, path)
}

// Close closes leftover file handles and unmounts exactly once. Later calls
// are no-ops.
func (fs *FileSystem[C]) Close() error {
	if !fs.mounted {
		return nil
	}

	var errs []error
	if len(fs.files) > 0 {
		fs.logger.Warn().Int("count", len(fs.files)).Msg("Closing files left open at unmount")
		for f := range fs.files {
			errs = append(errs, f.Close())
		}
	}

	fs.mounted = false
	if rc := fs.inst.Unmount(); rc < 0 {
		errs = append(errs, fs.engineErr("unmount", rc))
	}
	fs.inst = nil
	fs.logger.Debug().Str("version", fs.strategy.Version().String()).Msg("Unmounted")
	return errors.Join(errs...)
}
