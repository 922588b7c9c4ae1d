package littlefs

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfig marks configuration errors: bad geometry, bad version
	// selector, image size mismatches.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrOutOfRange marks block or offset ranges rejected by a BlockDevice
	ErrOutOfRange = errors.New("out of range")

	// ErrTooLarge marks buffers the engine's size type cannot represent
	ErrTooLarge = errors.New("buffer too large")
)

// Engine result codes shared by both littlefs generations. Codes that only
// exist in one generation carry the same numeric value where both define them.
const (
	CodeOK          = 0
	CodeIO          = -5
	CodeCorrupt     = -84
	CodeNoEntry     = -2
	CodeExists      = -17
	CodeNotDir      = -20
	CodeIsDir       = -21
	CodeNotEmpty    = -39
	CodeBadFile     = -9
	CodeFileTooBig  = -27
	CodeInvalid     = -22
	CodeNoSpace     = -28
	CodeNoMemory    = -12
	CodeNoAttr      = -61
	CodeNameTooLong = -36
)

// CodeCorruptV1 is the corruption code of the first generation engine
const CodeCorruptV1 = -52

// Sentinels for errors.Is comparisons against [EngineError].
var (
	ErrIO          = &EngineError{Code: CodeIO}
	ErrCorrupt     = &EngineError{Code: CodeCorrupt}
	ErrNoEntry     = &EngineError{Code: CodeNoEntry}
	ErrExists      = &EngineError{Code: CodeExists}
	ErrNotDir      = &EngineError{Code: CodeNotDir}
	ErrIsDir       = &EngineError{Code: CodeIsDir}
	ErrNotEmpty    = &EngineError{Code: CodeNotEmpty}
	ErrBadFile     = &EngineError{Code: CodeBadFile}
	ErrFileTooBig  = &EngineError{Code: CodeFileTooBig}
	ErrInvalid     = &EngineError{Code: CodeInvalid}
	ErrNoSpace     = &EngineError{Code: CodeNoSpace}
	ErrNoMemory    = &EngineError{Code: CodeNoMemory}
	ErrNoAttr      = &EngineError{Code: CodeNoAttr}
	ErrNameTooLong = &EngineError{Code: CodeNameTooLong}
)

// ErrorMessage maps an engine result code to a human readable reason.
func ErrorMessage(code int) string {
	switch code {
	case CodeIO:
		return "Error during device operation"
	case CodeCorrupt, CodeCorruptV1:
		return "Corrupted"
	case CodeNoEntry:
		return "No directory entry"
	case CodeExists:
		return "Entry already exists"
	case CodeNotDir:
		return "Entry is not a dir"
	case CodeIsDir:
		return "Entry is a dir"
	case CodeNotEmpty:
		return "Dir is not empty"
	case CodeBadFile:
		return "Bad file number"
	case CodeFileTooBig:
		return "File too large"
	case CodeInvalid:
		return "Invalid parameter"
	case CodeNoSpace:
		return "No space left on device"
	case CodeNoMemory:
		return "No more memory available"
	case CodeNoAttr:
		return "No data/attr available"
	case CodeNameTooLong:
		return "File name too long"
	default:
		return fmt.Sprintf("error: %d", code)
	}
}

// EngineError is a negative result returned by an engine entry point.
type EngineError struct {
	Op   string // engine entry point, i.e. "lfs2_mount"
	Code int
}

func (e *EngineError) Error() string {
	if e.Op == "" {
		return ErrorMessage(e.Code)
	}
	return e.Op + ": " + ErrorMessage(e.Code)
}

// Is matches any EngineError carrying the same code. Both corruption codes
// match each other.
func (e *EngineError) Is(target error) bool {
	t, ok := target.(*EngineError)
	if !ok {
		return false
	}
	if isCorrupt(e.Code) && isCorrupt(t.Code) {
		return true
	}
	return e.Code == t.Code
}

func isCorrupt(code int) bool {
	return code == CodeCorrupt || code == CodeCorruptV1
}

// DeviceError is a failed positioned read, write or flush on a block device.
type DeviceError struct {
	Op    string // "read", "program", "erase", "sync", ...
	Block uint32
	Err   error
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("device %s error at block %d: %v", e.Op, e.Block, e.Err)
}

func (e *DeviceError) Unwrap() error {
	return e.Err
}

// ArchiveError is a failure to write a header or a data chunk to the output.
type ArchiveError struct {
	Op  string
	Err error
}

func (e *ArchiveError) Error() string {
	return fmt.Sprintf("archive %s: %v", e.Op, e.Err)
}

func (e *ArchiveError) Unwrap() error {
	return e.Err
}
