// Package archive streams tar archives, optionally compressed, to and from a
// byte sink. Entries are written strictly in order: header, then body.
package archive

import (
	"fmt"
	"strings"

	littlefs "github.com/brettbedarf/littlefs-utils"
)

// Format selects the container and compression.
type Format string

const (
	Tar     Format = "tar"
	TarGzip Format = "tar.gz"
	TarZstd Format = "tar.zst"
	TarLZ4  Format = "tar.lz4"
	TarXZ   Format = "tar.xz"
)

// Formats lists every supported format.
var Formats = []Format{Tar, TarGzip, TarZstd, TarLZ4, TarXZ}

var aliases = map[string]Format{
	"tgz":  TarGzip,
	"gz":   TarGzip,
	"tzst": TarZstd,
	"zst":  TarZstd,
	"lz4":  TarLZ4,
	"txz":  TarXZ,
	"xz":   TarXZ,
}

// ParseFormat accepts a format name or a common short alias.
func ParseFormat(name string) (Format, error) {
	name = strings.ToLower(strings.TrimPrefix(name, "."))
	for _, f := range Formats {
		if string(f) == name {
			return f, nil
		}
	}
	if f, ok := aliases[name]; ok {
		return f, nil
	}
	return "", fmt.Errorf("%w: unknown archive format %q", littlefs.ErrInvalidConfig, name)
}

// FormatForPath picks a format from a file name extension, either a full
// format name or an alias, so "out.zst" is zstd compressed like
// "out.tar.zst". Unknown extensions, including none, select plain tar.
func FormatForPath(path string) Format {
	lower := strings.ToLower(path)
	for _, f := range Formats {
		if f != Tar && strings.HasSuffix(lower, "."+string(f)) {
			return f
		}
	}
	for alias, f := range aliases {
		if strings.HasSuffix(lower, "."+alias) {
			return f
		}
	}
	return Tar
}
