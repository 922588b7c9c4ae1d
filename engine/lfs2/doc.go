// Package lfs2 binds the second generation littlefs C library (built with
// the lfs2_ symbol prefix) and registers it with the engine package.
//
// The binding is only compiled with the "littlefs" build tag and links
// against liblfs2:
//
//	go build -tags littlefs ./...
//
// Import it for its side effect:
//
//	import _ "github.com/brettbedarf/littlefs-utils/engine/lfs2"
package lfs2
