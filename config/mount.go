package config

import "time"

// DefaultCacheTimeout is how long the kernel may cache entries and attributes
// of a mounted image. Images are served read-only, so this can be long.
const DefaultCacheTimeout = time.Hour

// MountOptions holds settings for the FUSE view of an image.
// No go-fuse types are exposed here.
type MountOptions struct {
	Debug        bool          // fuse debug logs
	FsName       string        // mount's FsName
	Name         string        // mount's Name
	AllowOther   bool          // let other users access the mount
	CacheTimeout time.Duration // kernel entry and attr cache timeout
}
