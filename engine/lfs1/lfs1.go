//go:build littlefs

package lfs1

/*
#cgo LDFLAGS: -llfs1
#include <stdint.h>
#include <stdlib.h>
#include <lfs1.h>

extern int lfs1GoRead(struct lfs1_config *c, lfs1_block_t block, lfs1_off_t off, void *buf, lfs1_size_t size);
extern int lfs1GoProg(struct lfs1_config *c, lfs1_block_t block, lfs1_off_t off, void *buf, lfs1_size_t size);
extern int lfs1GoErase(struct lfs1_config *c, lfs1_block_t block);
extern int lfs1GoSync(struct lfs1_config *c);

static int read_cb(const struct lfs1_config *c, lfs1_block_t block, lfs1_off_t off, void *buf, lfs1_size_t size) {
	return lfs1GoRead((struct lfs1_config *)c, block, off, buf, size);
}

static int prog_cb(const struct lfs1_config *c, lfs1_block_t block, lfs1_off_t off, const void *buf, lfs1_size_t size) {
	return lfs1GoProg((struct lfs1_config *)c, block, off, (void *)buf, size);
}

static int erase_cb(const struct lfs1_config *c, lfs1_block_t block) {
	return lfs1GoErase((struct lfs1_config *)c, block);
}

static int sync_cb(const struct lfs1_config *c) {
	return lfs1GoSync((struct lfs1_config *)c);
}

static void set_callbacks(struct lfs1_config *c, uintptr_t ctx) {
	c->context = (void *)ctx;
	c->read = read_cb;
	c->prog = prog_cb;
	c->erase = erase_cb;
	c->sync = sync_cb;
}
*/
import "C"

import (
	"runtime/cgo"
	"unsafe"

	"github.com/brettbedarf/littlefs-utils/engine"
)

// The Go constants must match the library this package links against.
var (
	_ = [1]struct{}{}[C.LFS1_ERR_OK-engine.V1ErrOK]
	_ = [1]struct{}{}[C.LFS1_ERR_IO-engine.V1ErrIO]
	_ = [1]struct{}{}[engine.V1ErrIO-C.LFS1_ERR_IO]
	_ = [1]struct{}{}[C.LFS1_ERR_CORRUPT-engine.V1ErrCorrupt]
	_ = [1]struct{}{}[engine.V1ErrCorrupt-C.LFS1_ERR_CORRUPT]
	_ = [1]struct{}{}[C.LFS1_ERR_NOENT-engine.V1ErrNoEnt]
	_ = [1]struct{}{}[engine.V1ErrNoEnt-C.LFS1_ERR_NOENT]
	_ = [1]struct{}{}[C.LFS1_TYPE_DIR-engine.V1TypeDir]
	_ = [1]struct{}{}[engine.V1TypeDir-C.LFS1_TYPE_DIR]
	_ = [1]struct{}{}[C.LFS1_SEEK_END-engine.SeekEnd]
	_ = [1]struct{}{}[engine.SeekEnd-C.LFS1_SEEK_END]
)

func init() {
	engine.RegisterV1(driver{})
}

type driver struct{}

// Format formats the device described by cfg.
func (driver) Format(cfg *engine.Config1) int {
	inst := newInstance(cfg)
	defer inst.free()
	return int(C.lfs1_format(inst.lfs, inst.cfg))
}

// Mount mounts the device described by cfg. The instance owns the C
// configuration until Unmount.
func (driver) Mount(cfg *engine.Config1) (engine.Instance, int) {
	inst := newInstance(cfg)
	if rc := C.lfs1_mount(inst.lfs, inst.cfg); rc < 0 {
		inst.free()
		return nil, int(rc)
	}
	return inst, 0
}

// instance keeps the engine state in C memory; the engine holds on to the
// config pointer for as long as it is mounted.
type instance struct {
	cfg    *C.struct_lfs1_config
	lfs    *C.lfs1_t
	handle cgo.Handle
}

func newInstance(cfg *engine.Config1) *instance {
	cb := cfg.Callbacks
	inst := &instance{
		cfg:    (*C.struct_lfs1_config)(C.calloc(1, C.sizeof_struct_lfs1_config)),
		lfs:    (*C.lfs1_t)(C.calloc(1, C.sizeof_lfs1_t)),
		handle: cgo.NewHandle(&cb),
	}
	c := inst.cfg
	C.set_callbacks(c, C.uintptr_t(inst.handle))
	c.read_size = C.lfs1_size_t(cfg.ReadSize)
	c.prog_size = C.lfs1_size_t(cfg.ProgSize)
	c.block_size = C.lfs1_size_t(cfg.BlockSize)
	c.block_count = C.lfs1_size_t(cfg.BlockCount)
	c.lookahead = C.lfs1_size_t(cfg.Lookahead)
	return inst
}

func (i *instance) free() {
	C.free(unsafe.Pointer(i.lfs))
	C.free(unsafe.Pointer(i.cfg))
	i.handle.Delete()
}

func (i *instance) Unmount() int {
	rc := C.lfs1_unmount(i.lfs)
	i.free()
	return int(rc)
}

func (i *instance) Mkdir(path string) int {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	return int(C.lfs1_mkdir(i.lfs, cpath))
}

func (i *instance) DirOpen(path string) (engine.Dir, int) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	d := (*C.lfs1_dir_t)(C.calloc(1, C.sizeof_lfs1_dir_t))
	if rc := C.lfs1_dir_open(i.lfs, d, cpath); rc < 0 {
		C.free(unsafe.Pointer(d))
		return nil, int(rc)
	}
	return &dir{lfs: i.lfs, d: d}, 0
}

func (i *instance) FileOpen(path string, flags int) (engine.File, int) {
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))

	f := (*C.lfs1_file_t)(C.calloc(1, C.sizeof_lfs1_file_t))
	if rc := C.lfs1_file_open(i.lfs, f, cpath, C.int(flags)); rc < 0 {
		C.free(unsafe.Pointer(f))
		return nil, int(rc)
	}
	return &file{lfs: i.lfs, f: f}, 0
}

type dir struct {
	lfs *C.lfs1_t
	d   *C.lfs1_dir_t
}

func (d *dir) Read(info *engine.Info) int {
	var ci C.struct_lfs1_info
	rc := C.lfs1_dir_read(d.lfs, d.d, &ci)
	if rc > 0 {
		info.Type = uint8(ci._type)
		info.Size = uint32(ci.size)
		info.SetName(C.GoString(&ci.name[0]))
	}
	return int(rc)
}

func (d *dir) Close() int {
	rc := C.lfs1_dir_close(d.lfs, d.d)
	C.free(unsafe.Pointer(d.d))
	d.d = nil
	return int(rc)
}

type file struct {
	lfs *C.lfs1_t
	f   *C.lfs1_file_t
}

func (f *file) Read(buf []byte) int {
	return int(C.lfs1_file_read(f.lfs, f.f, unsafe.Pointer(unsafe.SliceData(buf)), C.lfs1_size_t(len(buf))))
}

func (f *file) Write(buf []byte) int {
	return int(C.lfs1_file_write(f.lfs, f.f, unsafe.Pointer(unsafe.SliceData(buf)), C.lfs1_size_t(len(buf))))
}

func (f *file) Seek(off int32, whence int) int {
	return int(C.lfs1_file_seek(f.lfs, f.f, C.lfs1_soff_t(off), C.int(whence)))
}

func (f *file) Size() int { return int(C.lfs1_file_size(f.lfs, f.f)) }
func (f *file) Tell() int { return int(C.lfs1_file_tell(f.lfs, f.f)) }
func (f *file) Sync() int { return int(C.lfs1_file_sync(f.lfs, f.f)) }

func (f *file) Close() int {
	rc := C.lfs1_file_close(f.lfs, f.f)
	C.free(unsafe.Pointer(f.f))
	f.f = nil
	return int(rc)
}
