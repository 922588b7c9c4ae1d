package littlefs

// BlockDevice maps logical (block, offset, size) I/O onto backing storage.
// Implementations own no filesystem semantics.
type BlockDevice interface {
	// Read fills p from the given block starting at off
	Read(block, off uint32, p []byte) error

	// Program writes p into the given block starting at off
	Program(block, off uint32, p []byte) error

	// Erase resets a whole block
	Erase(block uint32) error

	// Sync flushes pending writes to the backing storage
	Sync() error

	BlockSize() uint32
	BlockCount() uint32
}

// Filesystem is the version independent view of a mounted littlefs image.
// Instances are single-owner and not safe for concurrent use.
type Filesystem interface {
	Version() Version

	// ListDirectory returns every entry of a directory, including the "." and
	// ".." pseudo-entries
	ListDirectory(path string) ([]DirectoryEntry, error)

	// OpenFile opens a file with the given flags. The returned File must be
	// closed before the filesystem is closed.
	OpenFile(path string, flags OpenFlags) (File, error)

	// RecursiveDirList returns every regular file below path
	RecursiveDirList(path string) ([]FileInfo, error)

	// MakeDirectory creates a single directory
	MakeDirectory(path string) error

	// Close unmounts the filesystem. It is safe to call more than once.
	Close() error
}

// File is one open file inside a mounted [Filesystem].
type File interface {
	// Read reads up to len(p) bytes. It returns io.EOF once no bytes remain.
	Read(p []byte) (int, error)

	// Write writes p and returns the number of bytes the engine accepted
	Write(p []byte) (int, error)

	// Seek implements io.Seeker on top of the engine's 32-bit positions
	Seek(offset int64, whence int) (int64, error)

	Size() (uint32, error)
	Position() (uint32, error)

	// ReadAll performs a single read sized to the file and trims the result
	// to what the engine returned
	ReadAll() ([]byte, error)

	// Close releases the engine file. It is safe to call more than once.
	Close() error
}
