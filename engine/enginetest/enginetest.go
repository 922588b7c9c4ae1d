// Package enginetest provides an in-process littlefs engine for tests.
//
// It is not littlefs: images it writes are only readable by itself. It does
// honour the engine contract the adapter relies on. All storage goes through
// the configured block callbacks, results are signed integer codes of the
// engine generation it impersonates, directory listings include "." and "..",
// and names live in the fixed capacity [engine.Info] buffer.
//
// Layout: block 0 holds a header (magic, generation, payload length); blocks
// 1..n hold a JSON encoded tree in chunks of at most BlockSize-1 bytes, so
// that every access stays strictly inside a block.
package enginetest

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/brettbedarf/littlefs-utils/engine"
)

const (
	headerSize = 16
	minBlock   = 32
)

var magic = [8]byte{'l', 'f', 's', 't', 'e', 's', 't', 0}

// codes is the result code and type table of one engine generation.
type codes struct {
	gen      byte
	ok       int
	io       int
	corrupt  int
	noEnt    int
	exist    int
	notDir   int
	isDir    int
	badF     int
	inval    int
	noSpc    int
	typeReg  uint8
	typeDir  uint8
	openRW   int
	create   int
	excl     int
	trunc    int
	appendFl int
}

var v1Codes = codes{
	gen: 1, ok: engine.V1ErrOK, io: engine.V1ErrIO, corrupt: engine.V1ErrCorrupt,
	noEnt: engine.V1ErrNoEnt, exist: engine.V1ErrExist, notDir: engine.V1ErrNotDir,
	isDir: engine.V1ErrIsDir, badF: engine.V1ErrBadF, inval: engine.V1ErrInval,
	noSpc: engine.V1ErrNoSpc, typeReg: engine.V1TypeReg, typeDir: engine.V1TypeDir,
	openRW: 3, create: 0x0100, excl: 0x0200, trunc: 0x0400, appendFl: 0x0800,
}

var v2Codes = codes{
	gen: 2, ok: engine.V2ErrOK, io: engine.V2ErrIO, corrupt: engine.V2ErrCorrupt,
	noEnt: engine.V2ErrNoEnt, exist: engine.V2ErrExist, notDir: engine.V2ErrNotDir,
	isDir: engine.V2ErrIsDir, badF: engine.V2ErrBadF, inval: engine.V2ErrInval,
	noSpc: engine.V2ErrNoSpc, typeReg: engine.V2TypeReg, typeDir: engine.V2TypeDir,
	openRW: 3, create: 0x0100, excl: 0x0200, trunc: 0x0400, appendFl: 0x0800,
}

// Option configures an Engine.
type Option func(*Engine)

// WithMaxReadChunk caps the bytes returned by a single file read, exercising
// callers that must loop over short reads.
func WithMaxReadChunk(n int) Option {
	return func(e *Engine) {
		e.maxReadChunk = n
	}
}

// Engine holds state shared by the generation specific drivers: options,
// failure injection and open handle accounting. It is safe for concurrent use.
type Engine struct {
	codes        codes
	maxReadChunk int

	mu        sync.Mutex
	failReads map[string]bool
	failDirs  map[string]bool
	openFiles int
	openDirs  int
	mounts    int
}

func newEngine(c codes, opts []Option) *Engine {
	e := &Engine{
		codes:     c,
		failReads: map[string]bool{},
		failDirs:  map[string]bool{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// FailReads makes every file read of p return the I/O error code.
func (e *Engine) FailReads(p string) {
	e.mu.Lock()
	e.failReads[clean(p)] = true
	e.mu.Unlock()
}

// FailDirReads makes reading the directory p return the I/O error code.
func (e *Engine) FailDirReads(p string) {
	e.mu.Lock()
	e.failDirs[clean(p)] = true
	e.mu.Unlock()
}

// OpenFiles reports file handles opened and not yet closed.
func (e *Engine) OpenFiles() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openFiles
}

// OpenDirs reports directory handles opened and not yet closed.
func (e *Engine) OpenDirs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.openDirs
}

// Mounts reports instances mounted and not yet unmounted.
func (e *Engine) Mounts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mounts
}

func (e *Engine) count(n *int, delta int) {
	e.mu.Lock()
	*n += delta
	e.mu.Unlock()
}

func (e *Engine) readFails(p string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failReads[p]
}

func (e *Engine) dirFails(p string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.failDirs[p]
}

// V1 impersonates the first generation engine.
type V1 struct {
	*Engine

	cfgMu sync.Mutex
	last  engine.Config1
}

// NewV1 returns a first generation test engine.
func NewV1(opts ...Option) *V1 {
	return &V1{Engine: newEngine(v1Codes, opts)}
}

var _ engine.Driver[engine.Config1] = (*V1)(nil)

// LastConfig returns the configuration passed to the latest Format or Mount.
func (d *V1) LastConfig() engine.Config1 {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.last
}

func (d *V1) remember(cfg *engine.Config1) geometry {
	d.cfgMu.Lock()
	d.last = *cfg
	d.cfgMu.Unlock()
	return geometry{cb: cfg.Callbacks, readSize: cfg.ReadSize, progSize: cfg.ProgSize,
		blockSize: cfg.BlockSize, blockCount: cfg.BlockCount, cacheSize: cfg.BlockSize}
}

func (d *V1) Format(cfg *engine.Config1) int {
	return d.format(d.remember(cfg))
}

func (d *V1) Mount(cfg *engine.Config1) (engine.Instance, int) {
	return d.mount(d.remember(cfg))
}

// V2 impersonates the second generation engine.
type V2 struct {
	*Engine

	cfgMu sync.Mutex
	last  engine.Config2
}

// NewV2 returns a second generation test engine.
func NewV2(opts ...Option) *V2 {
	return &V2{Engine: newEngine(v2Codes, opts)}
}

var _ engine.Driver[engine.Config2] = (*V2)(nil)

// LastConfig returns the configuration passed to the latest Format or Mount.
func (d *V2) LastConfig() engine.Config2 {
	d.cfgMu.Lock()
	defer d.cfgMu.Unlock()
	return d.last
}

func (d *V2) remember(cfg *engine.Config2) geometry {
	d.cfgMu.Lock()
	d.last = *cfg
	d.cfgMu.Unlock()
	return geometry{cb: cfg.Callbacks, readSize: cfg.ReadSize, progSize: cfg.ProgSize,
		blockSize: cfg.BlockSize, blockCount: cfg.BlockCount, cacheSize: cfg.CacheSize}
}

func (d *V2) Format(cfg *engine.Config2) int {
	return d.format(d.remember(cfg))
}

func (d *V2) Mount(cfg *engine.Config2) (engine.Instance, int) {
	return d.mount(d.remember(cfg))
}

// Register installs fresh test engines for both generations and returns them.
func Register(opts ...Option) (*V1, *V2) {
	v1, v2 := NewV1(opts...), NewV2(opts...)
	engine.RegisterV1(v1)
	engine.RegisterV2(v2)
	return v1, v2
}

type geometry struct {
	cb         engine.Callbacks
	readSize   uint32
	progSize   uint32
	blockSize  uint32
	blockCount uint32
	cacheSize  uint32
}

func (e *Engine) validate(g geometry) int {
	if g.cb.Read == nil || g.cb.Prog == nil || g.cb.Erase == nil || g.cb.Sync == nil {
		return e.codes.inval
	}
	if g.blockSize < minBlock || g.blockCount < 2 || g.readSize == 0 || g.progSize == 0 || g.cacheSize == 0 {
		return e.codes.inval
	}
	if g.blockSize%g.readSize != 0 || g.blockSize%g.progSize != 0 || g.blockSize%g.cacheSize != 0 {
		return e.codes.inval
	}
	return e.codes.ok
}

func (e *Engine) format(g geometry) int {
	if rc := e.validate(g); rc != e.codes.ok {
		return rc
	}
	for b := uint32(0); b < g.blockCount; b++ {
		if rc := g.cb.Erase(b); rc < 0 {
			return rc
		}
	}
	in := &instance{e: e, g: g, tree: newTree()}
	return in.persist()
}

func (e *Engine) mount(g geometry) (engine.Instance, int) {
	if rc := e.validate(g); rc != e.codes.ok {
		return nil, rc
	}

	hdr := make([]byte, headerSize)
	if rc := g.cb.Read(0, 0, hdr); rc < 0 {
		return nil, rc
	}
	if !bytes.Equal(hdr[:8], magic[:]) || hdr[8] != e.codes.gen {
		return nil, e.codes.corrupt
	}
	size := binary.LittleEndian.Uint32(hdr[12:16])
	if uint64(size) > capacity(g) {
		return nil, e.codes.corrupt
	}

	payload := make([]byte, 0, size)
	chunk := g.blockSize - 1
	for b := uint32(1); uint32(len(payload)) < size; b++ {
		n := min(chunk, size-uint32(len(payload)))
		buf := make([]byte, n)
		if rc := g.cb.Read(b, 0, buf); rc < 0 {
			return nil, rc
		}
		payload = append(payload, buf...)
	}

	t := newTree()
	if err := json.Unmarshal(payload, t); err != nil {
		return nil, e.codes.corrupt
	}
	if t.Files == nil {
		t.Files = map[string][]byte{}
	}
	if t.Dirs == nil {
		t.Dirs = map[string]bool{}
	}
	t.Dirs["/"] = true

	e.count(&e.mounts, 1)
	return &instance{e: e, g: g, tree: t}, e.codes.ok
}

func capacity(g geometry) uint64 {
	return uint64(g.blockCount-1) * uint64(g.blockSize-1)
}

type tree struct {
	Dirs  map[string]bool   `json:"dirs"`
	Files map[string][]byte `json:"files"`
}

func newTree() *tree {
	return &tree{Dirs: map[string]bool{"/": true}, Files: map[string][]byte{}}
}

type instance struct {
	e       *Engine
	g       geometry
	tree    *tree
	unmount bool
}

func (in *instance) persist() int {
	payload, err := json.Marshal(in.tree)
	if err != nil {
		return in.e.codes.corrupt
	}
	if uint64(len(payload)) > capacity(in.g) {
		return in.e.codes.noSpc
	}

	size := uint32(len(payload))
	chunk := int(in.g.blockSize - 1)
	for b := uint32(1); len(payload) > 0; b++ {
		n := min(chunk, len(payload))
		if rc := in.g.cb.Erase(b); rc < 0 {
			return rc
		}
		if rc := in.g.cb.Prog(b, 0, payload[:n]); rc < 0 {
			return rc
		}
		payload = payload[n:]
	}

	hdr := make([]byte, headerSize)
	copy(hdr, magic[:])
	hdr[8] = in.e.codes.gen
	binary.LittleEndian.PutUint32(hdr[12:16], size)
	if rc := in.g.cb.Erase(0); rc < 0 {
		return rc
	}
	if rc := in.g.cb.Prog(0, 0, hdr); rc < 0 {
		return rc
	}
	return in.g.cb.Sync()
}

func (in *instance) Unmount() int {
	if in.unmount {
		return in.e.codes.inval
	}
	in.unmount = true
	in.e.count(&in.e.mounts, -1)
	return in.e.codes.ok
}

func (in *instance) Mkdir(p string) int {
	p = clean(p)
	if in.tree.Dirs[p] {
		return in.e.codes.exist
	}
	if _, ok := in.tree.Files[p]; ok {
		return in.e.codes.exist
	}
	if rc := in.parentOK(p); rc != in.e.codes.ok {
		return rc
	}
	in.tree.Dirs[p] = true
	return in.persist()
}

func (in *instance) parentOK(p string) int {
	parent := path.Dir(p)
	if in.tree.Dirs[parent] {
		return in.e.codes.ok
	}
	if _, ok := in.tree.Files[parent]; ok {
		return in.e.codes.notDir
	}
	return in.e.codes.noEnt
}

func (in *instance) DirOpen(p string) (engine.Dir, int) {
	p = clean(p)
	if !in.tree.Dirs[p] {
		if _, ok := in.tree.Files[p]; ok {
			return nil, in.e.codes.notDir
		}
		return nil, in.e.codes.noEnt
	}

	entries := []dirEntry{{name: ".", typ: in.e.codes.typeDir}, {name: "..", typ: in.e.codes.typeDir}}
	var children []dirEntry
	for d := range in.tree.Dirs {
		if d != "/" && path.Dir(d) == p {
			children = append(children, dirEntry{name: path.Base(d), typ: in.e.codes.typeDir})
		}
	}
	for f, data := range in.tree.Files {
		if path.Dir(f) == p {
			children = append(children, dirEntry{name: path.Base(f), typ: in.e.codes.typeReg, size: uint32(len(data))})
		}
	}
	sort.Slice(children, func(i, j int) bool { return children[i].name < children[j].name })

	in.e.count(&in.e.openDirs, 1)
	return &dir{in: in, entries: append(entries, children...), fail: in.e.dirFails(p)}, in.e.codes.ok
}

func (in *instance) FileOpen(p string, flags int) (engine.File, int) {
	p = clean(p)
	c := in.e.codes
	if in.tree.Dirs[p] {
		return nil, c.isDir
	}
	if flags&c.openRW == 0 {
		return nil, c.inval
	}

	_, exists := in.tree.Files[p]
	switch {
	case !exists && flags&c.create == 0:
		return nil, c.noEnt
	case exists && flags&c.create != 0 && flags&c.excl != 0:
		return nil, c.exist
	case !exists:
		if rc := in.parentOK(p); rc != c.ok {
			return nil, rc
		}
	}

	f := &file{
		in:       in,
		path:     p,
		writable: flags&2 != 0,
		appendTo: flags&c.appendFl != 0,
		data:     bytes.Clone(in.tree.Files[p]),
		dirty:    !exists,
	}
	if f.data == nil {
		f.data = []byte{}
	}
	if flags&c.trunc != 0 && f.writable {
		f.data = f.data[:0]
		f.dirty = true
	}
	in.e.count(&in.e.openFiles, 1)
	return f, c.ok
}

type dirEntry struct {
	name string
	typ  uint8
	size uint32
}

type dir struct {
	in      *instance
	entries []dirEntry
	pos     int
	fail    bool
	closed  bool
}

func (d *dir) Read(info *engine.Info) int {
	if d.closed {
		return d.in.e.codes.badF
	}
	if d.fail && d.pos >= 2 {
		return d.in.e.codes.io
	}
	if d.pos >= len(d.entries) {
		return 0
	}
	ent := d.entries[d.pos]
	d.pos++
	info.Type = ent.typ
	info.Size = ent.size
	info.SetName(ent.name)
	return 1
}

func (d *dir) Close() int {
	if d.closed {
		return d.in.e.codes.badF
	}
	d.closed = true
	d.in.e.count(&d.in.e.openDirs, -1)
	return d.in.e.codes.ok
}

type file struct {
	in       *instance
	path     string
	writable bool
	appendTo bool
	data     []byte
	pos      int
	dirty    bool
	closed   bool
}

func (f *file) Read(buf []byte) int {
	if f.closed {
		return f.in.e.codes.badF
	}
	if f.in.e.readFails(f.path) {
		return f.in.e.codes.io
	}
	if f.pos >= len(f.data) {
		return 0
	}
	n := len(buf)
	if f.in.e.maxReadChunk > 0 {
		n = min(n, f.in.e.maxReadChunk)
	}
	n = copy(buf[:n], f.data[f.pos:])
	f.pos += n
	return n
}

func (f *file) Write(buf []byte) int {
	if f.closed || !f.writable {
		return f.in.e.codes.badF
	}
	if f.appendTo {
		f.pos = len(f.data)
	}
	if end := f.pos + len(buf); end > len(f.data) {
		f.data = append(f.data, make([]byte, end-len(f.data))...)
	}
	copy(f.data[f.pos:], buf)
	f.pos += len(buf)
	f.dirty = true
	return len(buf)
}

func (f *file) Seek(off int32, whence int) int {
	if f.closed {
		return f.in.e.codes.badF
	}
	var base int
	switch whence {
	case engine.SeekSet:
	case engine.SeekCur:
		base = f.pos
	case engine.SeekEnd:
		base = len(f.data)
	default:
		return f.in.e.codes.inval
	}
	next := base + int(off)
	if next < 0 {
		return f.in.e.codes.inval
	}
	f.pos = next
	return next
}

func (f *file) Size() int {
	if f.closed {
		return f.in.e.codes.badF
	}
	return len(f.data)
}

func (f *file) Tell() int {
	if f.closed {
		return f.in.e.codes.badF
	}
	return f.pos
}

func (f *file) Sync() int {
	if f.closed {
		return f.in.e.codes.badF
	}
	if !f.dirty {
		return f.in.e.codes.ok
	}
	f.in.tree.Files[f.path] = bytes.Clone(f.data)
	f.dirty = false
	return f.in.persist()
}

func (f *file) Close() int {
	if f.closed {
		return f.in.e.codes.badF
	}
	rc := f.Sync()
	f.closed = true
	f.in.e.count(&f.in.e.openFiles, -1)
	return rc
}

func clean(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}
