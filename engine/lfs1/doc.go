// Package lfs1 binds the first generation littlefs C library (built with
// the lfs1_ symbol prefix) and registers it with the engine package.
//
// The binding is only compiled with the "littlefs" build tag and links
// against liblfs1:
//
//	go build -tags littlefs ./...
//
// Import it for its side effect:
//
//	import _ "github.com/brettbedarf/littlefs-utils/engine/lfs1"
package lfs1
