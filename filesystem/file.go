package filesystem

import (
	"fmt"
	"io"
	"math"

	littlefs "github.com/brettbedarf/littlefs-utils"
	"github.com/brettbedarf/littlefs-utils/engine"
)

// File is an engine file handle. It exclusively owns the engine file and
// closes it exactly once.
type File[C any] struct {
	fs     *FileSystem[C]
	ef     engine.File
	path   string
	closed bool
}

var (
	_ littlefs.File = (*File[engine.Config1])(nil)
	_ io.ReadSeeker = (*File[engine.Config2])(nil)
)

// Path returns the path the file was opened with.
func (f *File[C]) Path() string { return f.path }

func (f *File[C]) check(n int) error {
	if f.closed {
		return fmt.Errorf("%s: %w", f.path, littlefs.ErrBadFile)
	}
	if n > f.fs.strategy.MaxIOSize() {
		return fmt.Errorf("%w: %d bytes exceeds engine limit of %d", littlefs.ErrTooLarge, n, f.fs.strategy.MaxIOSize())
	}
	return nil
}

func (f *File[C]) engineErr(op string, rc int) error {
	return fmt.Errorf("%s: %w", f.path, f.fs.engineErr(op, rc))
}

// Read reads up to len(p) bytes. The engine may return fewer bytes than
// requested; io.EOF is returned only when it returns none.
func (f *File[C]) Read(p []byte) (int, error) {
	if err := f.check(len(p)); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	rc := f.ef.Read(p)
	if rc < 0 {
		return 0, f.engineErr("file_read", rc)
	}
	if rc == 0 {
		return 0, io.EOF
	}
	return rc, nil
}

// Write writes p and returns what the engine accepted.
func (f *File[C]) Write(p []byte) (int, error) {
	if err := f.check(len(p)); err != nil {
		return 0, err
	}
	rc := f.ef.Write(p)
	if rc < 0 {
		return 0, f.engineErr("file_write", rc)
	}
	if rc < len(p) {
		return rc, io.ErrShortWrite
	}
	return rc, nil
}

// Seek moves the file position. Offsets must fit the engine's signed 32-bit
// offset type.
func (f *File[C]) Seek(offset int64, whence int) (int64, error) {
	if err := f.check(0); err != nil {
		return 0, err
	}
	if offset > math.MaxInt32 || offset < math.MinInt32 {
		return 0, fmt.Errorf("%w: seek offset %d", littlefs.ErrTooLarge, offset)
	}

	var w int
	switch whence {
	case io.SeekStart:
		w = engine.SeekSet
	case io.SeekCurrent:
		w = engine.SeekCur
	case io.SeekEnd:
		w = engine.SeekEnd
	default:
		return 0, fmt.Errorf("%s: invalid whence %d: %w", f.path, whence, littlefs.ErrInvalid)
	}

	rc := f.ef.Seek(int32(offset), w)
	if rc < 0 {
		return 0, f.engineErr("file_seek", rc)
	}
	return int64(rc), nil
}

func (f *File[C]) Size() (uint32, error) {
	if err := f.check(0); err != nil {
		return 0, err
	}
	rc := f.ef.Size()
	if rc < 0 {
		return 0, f.engineErr("file_size", rc)
	}
	return uint32(rc), nil
}

func (f *File[C]) Position() (uint32, error) {
	if err := f.check(0); err != nil {
		return 0, err
	}
	rc := f.ef.Tell()
	if rc < 0 {
		return 0, f.engineErr("file_tell", rc)
	}
	return uint32(rc), nil
}

// ReadAll sizes a buffer to the file and performs a single read. The result
// is trimmed to what that read returned, which may be less than the size.
func (f *File[C]) ReadAll() ([]byte, error) {
	size, err := f.Size()
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	n, err := f.Read(buf)
	if err != nil && err != io.EOF {
		return nil, err
	}
	return buf[:n], nil
}

// Close releases the engine file. Pending writes are committed by the engine
// on close. Subsequent calls return nil.
func (f *File[C]) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true
	delete(f.fs.files, f)

	if rc := f.ef.Close(); rc < 0 {
		return f.engineErr("file_close", rc)
	}
	f.fs.logger.Trace().Str("path", f.path).Msg("Closed file")
	return nil
}
