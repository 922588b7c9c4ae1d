// Package pipeline moves file contents between a mounted littlefs image and
// an archive stream.
package pipeline

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/archive"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/google/uuid"
)

// Options tune Extract. The zero value extracts everything below "/" with
// [littlefs.DefaultPermissions].
type Options struct {
	Root        string // directory to extract; "" means "/"
	Permissions int64  // mode recorded for every entry; 0 means the default
	RunID       uuid.UUID
}

// Stats summarize one pipeline run.
type Stats struct {
	Files int
	Bytes int64
}

// Extract walks fsys and appends every regular file to w in traversal order.
// Each file is opened read-only and closed before the next one is opened,
// whether or not copying it succeeded. Extract neither finalizes w nor
// unmounts fsys; the caller closes w first, then fsys.
func Extract(fsys littlefs.Filesystem, w *archive.Writer, opts Options) (Stats, error) {
	logger := util.GetLogger("Pipeline.Extract")
	if opts.Root == "" {
		opts.Root = "/"
	}
	if opts.Permissions == 0 {
		opts.Permissions = littlefs.DefaultPermissions
	}
	if opts.RunID == uuid.Nil {
		opts.RunID = uuid.New()
	}
	logger = logger.With().Str("run", opts.RunID.String()).Logger()

	var stats Stats
	files, err := fsys.RecursiveDirList(opts.Root)
	if err != nil {
		return stats, fmt.Errorf("listing %s: %w", opts.Root, err)
	}
	logger.Debug().Int("files", len(files)).Str("root", opts.Root).Msg("Listed image")

	for _, fi := range files {
		if err := extractOne(fsys, w, fi, opts.Permissions); err != nil {
			logger.Error().Err(err).Str("path", fi.Path).Msg("Extraction failed")
			return stats, err
		}
		stats.Files++
		stats.Bytes += int64(fi.Size)
		logger.Debug().Str("path", fi.Path).Uint32("size", fi.Size).Msg("Extracted file")
	}

	logger.Info().Int("files", stats.Files).Int64("bytes", stats.Bytes).Msg("Extraction complete")
	return stats, nil
}

func extractOne(fsys littlefs.Filesystem, w *archive.Writer, fi littlefs.FileInfo, perm int64) (err error) {
	f, err := fsys.OpenFile(fi.Path, littlefs.OpenRead)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	return w.AddFile(fi.Path, int64(fi.Size), f, perm)
}

// Import writes every directory and regular file entry of tr into fsys,
// creating parent directories as needed. Other entry types are skipped.
func Import(fsys littlefs.Filesystem, tr *tar.Reader) (Stats, error) {
	logger := util.GetLogger("Pipeline.Import")

	var stats Stats
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return stats, &littlefs.ArchiveError{Op: "read header", Err: err}
		}

		name := "/" + strings.Trim(path.Clean("/"+hdr.Name), "/")
		switch hdr.Typeflag {
		case tar.TypeDir:
			if err := MkdirAll(fsys, name); err != nil {
				return stats, err
			}
		case tar.TypeReg:
			if err := MkdirAll(fsys, path.Dir(name)); err != nil {
				return stats, err
			}
			n, err := importOne(fsys, name, tr)
			if err != nil {
				return stats, err
			}
			stats.Files++
			stats.Bytes += n
			logger.Debug().Str("path", name).Int64("size", n).Msg("Imported file")
		default:
			logger.Warn().Str("path", name).Str("type", string(hdr.Typeflag)).Msg("Skipping unsupported entry")
		}
	}

	logger.Info().Int("files", stats.Files).Int64("bytes", stats.Bytes).Msg("Import complete")
	return stats, nil
}

func importOne(fsys littlefs.Filesystem, name string, src io.Reader) (n int64, err error) {
	f, err := fsys.OpenFile(name, littlefs.OpenWrite|littlefs.OpenCreate|littlefs.OpenTruncate)
	if err != nil {
		return 0, err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	buf := make([]byte, archive.BufferSize)
	n, err = io.CopyBuffer(writerOnly{f}, src, buf)
	if err != nil {
		return n, fmt.Errorf("writing %s: %w", name, err)
	}
	return n, nil
}

// writerOnly hides ReadFrom/WriteTo so CopyBuffer uses the fixed buffer.
type writerOnly struct{ io.Writer }

// MkdirAll creates dir and any missing parents, like mkdir -p.
func MkdirAll(fsys littlefs.Filesystem, dir string) error {
	dir = path.Clean("/" + dir)
	if dir == "/" {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(strings.TrimPrefix(dir, "/"), "/") {
		cur += "/" + part
		if err := fsys.MakeDirectory(cur); err != nil && !errors.Is(err, littlefs.ErrExists) {
			return err
		}
	}
	return nil
}
