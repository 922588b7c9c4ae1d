//go:build littlefs

package lfs1

/*
#include <lfs1.h>
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/brettbedarf/littlefs-utils/engine"
)

func callbacks(c *C.struct_lfs1_config) *engine.Callbacks {
	return cgo.Handle(uintptr(c.context)).Value().(*engine.Callbacks)
}

//export lfs1GoRead
func lfs1GoRead(c *C.struct_lfs1_config, block C.lfs1_block_t, off C.lfs1_off_t, buf unsafe.Pointer, size C.lfs1_size_t) C.int {
	return C.int(callbacks(c).Read(uint32(block), uint32(off), unsafe.Slice((*byte)(buf), int(size))))
}

//export lfs1GoProg
func lfs1GoProg(c *C.struct_lfs1_config, block C.lfs1_block_t, off C.lfs1_off_t, buf unsafe.Pointer, size C.lfs1_size_t) C.int {
	return C.int(callbacks(c).Prog(uint32(block), uint32(off), unsafe.Slice((*byte)(buf), int(size))))
}

//export lfs1GoErase
func lfs1GoErase(c *C.struct_lfs1_config, block C.lfs1_block_t) C.int {
	return C.int(callbacks(c).Erase(uint32(block)))
}

//export lfs1GoSync
func lfs1GoSync(c *C.struct_lfs1_config) C.int {
	return C.int(callbacks(c).Sync())
}
