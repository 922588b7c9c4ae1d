//go:build littlefs

package lfs2

/*
#include <lfs2.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/brettbedarf/littlefs-utils/engine"
)

func callbacks(c *C.struct_lfs2_config) *engine.Callbacks {
	return cgo.Handle(uintptr(c.context)).Value().(*engine.Callbacks)
}

//export lfs2GoRead
func lfs2GoRead(c *C.struct_lfs2_config, block C.lfs2_block_t, off C.lfs2_off_t, buf unsafe.Pointer, size C.lfs2_size_t) C.int {
	return C.int(callbacks(c).Read(uint32(block), uint32(off), unsafe.Slice((*byte)(buf), int(size))))
}

//export lfs2GoProg
func lfs2GoProg(c *C.struct_lfs2_config, block C.lfs2_block_t, off C.lfs2_off_t, buf unsafe.Pointer, size C.lfs2_size_t) C.int {
	return C.int(callbacks(c).Prog(uint32(block), uint32(off), unsafe.Slice((*byte)(buf), int(size))))
}

//export lfs2GoErase
func lfs2GoErase(c *C.struct_lfs2_config, block C.lfs2_block_t) C.int {
	return C.int(callbacks(c).Erase(uint32(block)))
}

//export lfs2GoSync
func lfs2GoSync(c *C.struct_lfs2_config) C.int {
	return C.int(callbacks(c).Sync())
}
