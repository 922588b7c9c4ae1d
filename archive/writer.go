package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/internal/util"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/rs/zerolog"
	"github.com/ulikunitz/xz"
)

// BufferSize is the body chunk size used by AddFile.
const BufferSize = 4096

// ErrShortSource is returned when a source ends before its declared size.
var ErrShortSource = errors.New("source ended before declared size")

// Writer is a streaming archive writer bound to one sink. It is single-owner
// and must be closed to finalize the archive.
type Writer struct {
	tw     *tar.Writer
	comp   io.WriteCloser // nil for plain tar
	format Format
	buf    []byte
	closed bool
	logger zerolog.Logger
}

// NewWriter starts an archive of the given format on w. Closing the Writer
// does not close w.
func NewWriter(w io.Writer, format Format) (*Writer, error) {
	comp, err := compressor(w, format)
	if err != nil {
		return nil, &littlefs.ArchiveError{Op: "open", Err: err}
	}

	out := w
	if comp != nil {
		out = comp
	}
	return &Writer{
		tw:     tar.NewWriter(out),
		comp:   comp,
		format: format,
		buf:    make([]byte, BufferSize),
		logger: util.GetLogger("Archive"),
	}, nil
}

func compressor(w io.Writer, format Format) (io.WriteCloser, error) {
	switch format {
	case Tar:
		return nil, nil
	case TarGzip:
		return gzip.NewWriterLevel(w, gzip.DefaultCompression)
	case TarZstd:
		return zstd.NewWriter(w)
	case TarLZ4:
		return lz4.NewWriter(w), nil
	case TarXZ:
		return xz.NewWriter(w)
	default:
		return nil, fmt.Errorf("%w: unknown archive format %q", littlefs.ErrInvalidConfig, format)
	}
}

// Format returns the format the writer produces.
func (w *Writer) Format() Format { return w.format }

// AddFile writes one regular file entry. The leading separator of path is
// stripped. Exactly size bytes are copied from src through a fixed buffer and
// no read ever asks for more than what remains.
func (w *Writer) AddFile(path string, size int64, src io.Reader, perm int64) error {
	if w.closed {
		return &littlefs.ArchiveError{Op: "add", Err: errors.New("writer is closed")}
	}

	name := strings.TrimLeft(path, "/")
	hdr := &tar.Header{
		Typeflag: tar.TypeReg,
		Name:     name,
		Size:     size,
		Mode:     perm,
		ModTime:  time.Unix(0, 0),
	}
	if err := w.tw.WriteHeader(hdr); err != nil {
		return &littlefs.ArchiveError{Op: "write header " + name, Err: err}
	}

	remaining := size
	for remaining > 0 {
		want := min(int64(len(w.buf)), remaining)
		n, err := src.Read(w.buf[:want])
		if n > 0 {
			if _, werr := w.tw.Write(w.buf[:n]); werr != nil {
				return &littlefs.ArchiveError{Op: "write data " + name, Err: werr}
			}
			remaining -= int64(n)
		}
		switch {
		case err == io.EOF || (err == nil && n == 0):
			if remaining > 0 {
				return &littlefs.ArchiveError{
					Op:  "write data " + name,
					Err: fmt.Errorf("%w: %d of %d bytes missing", ErrShortSource, remaining, size),
				}
			}
		case err != nil:
			return fmt.Errorf("reading %s: %w", path, err)
		}
	}

	w.logger.Trace().Str("name", name).Int64("size", size).Msg("Added entry")
	return nil
}

// Close finalizes the archive and flushes the compressor. Later calls return
// nil.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.tw.Close(); err != nil {
		return &littlefs.ArchiveError{Op: "finalize", Err: err}
	}
	if w.comp != nil {
		if err := w.comp.Close(); err != nil {
			return &littlefs.ArchiveError{Op: "flush " + string(w.format), Err: err}
		}
	}
	return nil
}
