package archive

import (
	"archive/tar"
	"fmt"
	"io"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/ulikunitz/xz"
)

// Reader reads tar entries from a possibly compressed stream.
type Reader struct {
	*tar.Reader
	closer io.Closer
}

// NewReader opens r as an archive of the given format. Closing the Reader
// releases decompressor state but does not close r.
func NewReader(r io.Reader, format Format) (*Reader, error) {
	var (
		src    io.Reader
		closer io.Closer
	)
	switch format {
	case Tar:
		src = r
	case TarGzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, &littlefs.ArchiveError{Op: "open", Err: err}
		}
		src, closer = zr, zr
	case TarZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, &littlefs.ArchiveError{Op: "open", Err: err}
		}
		rc := dec.IOReadCloser()
		src, closer = rc, rc
	case TarLZ4:
		src = lz4.NewReader(r)
	case TarXZ:
		xr, err := xz.NewReader(r)
		if err != nil {
			return nil, &littlefs.ArchiveError{Op: "open", Err: err}
		}
		src = xr
	default:
		return nil, fmt.Errorf("%w: unknown archive format %q", littlefs.ErrInvalidConfig, format)
	}
	return &Reader{Reader: tar.NewReader(src), closer: closer}, nil
}

func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	c := r.closer
	r.closer = nil
	return c.Close()
}
