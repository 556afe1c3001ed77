package treefs

import (
	"sync"

	"github.com/brettbedarf/treefs/internal/util"
	"github.com/rs/zerolog"
	"github.com/winfsp/cgofuse/fuse"
)

// Dispatcher is the routing authority between the kernel-facing FUSE
// protocol and the node tree. It owns the root node for its whole lifetime,
// resolves every incoming path to a node (or the [NotFound] sentinel), and
// forwards the verb to that node's capability method under the configured
// concurrency policy.
//
// Dispatcher implements fuse.FileSystemInterface. Verbs the core does not
// bind fall through to the embedded extension interface, so the core's own
// bindings always win a name collision (see [WithExtension]).
type Dispatcher struct {
	fuse.FileSystemInterface // extension verbs; shadowed by the core's methods

	root    Node
	guard   sync.Locker
	handles *handleTable
	defOpts bool
	host    *fuse.FileSystemHost
	log     zerolog.Logger
}

// Option configures a Dispatcher at construction.
type Option func(*Dispatcher)

// WithLockPolicy replaces the default [Serialize] policy.
func WithLockPolicy(guard sync.Locker) Option {
	return func(d *Dispatcher) { d.guard = guard }
}

// WithExtension installs handlers for protocol verbs the core does not bind
// (Rename, Chown, Create, Statfs, Fsync, ...). Extension bindings are merged
// before the core's own, so the core stays authoritative for every verb it
// implements.
func WithExtension(ext fuse.FileSystemInterface) Option {
	return func(d *Dispatcher) { d.FileSystemInterface = ext }
}

// WithoutDefaultOptions disables the default mount argument expansion in
// [Dispatcher.Serve]; the caller then controls the full argument list.
func WithoutDefaultOptions() Option {
	return func(d *Dispatcher) { d.defOpts = false }
}

// New constructs the dispatcher around its root node. There is exactly one
// routing authority per mounted namespace; the protocol host threads it
// through every callback, so no ambient global state is involved.
func New(root Node, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		FileSystemInterface: &fuse.FileSystemBase{},
		root:                root,
		guard:               Serialize(),
		handles:             newHandleTable(),
		defOpts:             true,
		log:                 util.GetLogger("dispatch"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Root returns the tree's entry point. The dispatcher owns it; callers may
// reach other nodes only transiently through lookup.
func (d *Dispatcher) Root() Node {
	return d.root
}

// resolve walks the tree following the path's segments. The walk is
// fail-fast: the first absent segment yields the [NotFound] sentinel without
// attempting later segments. The empty path is the root, which always
// exists. Resolution never creates nodes.
func (d *Dispatcher) resolve(path string) Node {
	node := d.root
	for _, name := range SplitPath(path) {
		child, ok := node.Child(name)
		if !ok {
			return NotFound
		}
		node = child
	}
	return node
}

// resolveParent splits off the final path segment, resolves the remaining
// prefix, and returns the resolved node together with the removed segment.
// Used by every verb that acts on a parent directory with an entry name
// argument.
func (d *Dispatcher) resolveParent(path string) (Node, string) {
	p := SplitPath(path)
	name := p.PopBack()
	node := d.root
	for _, seg := range p {
		child, ok := node.Child(seg)
		if !ok {
			return NotFound, name
		}
		node = child
	}
	return node, name
}

/* Full-path verbs */

func (d *Dispatcher) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Stat(stat)
}

func (d *Dispatcher) Access(path string, mask uint32) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Access(mask)
}

func (d *Dispatcher) Chmod(path string, mode uint32) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Chmod(mode)
}

func (d *Dispatcher) Readlink(path string) (int, string) {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Readlink()
}

func (d *Dispatcher) Truncate(path string, size int64, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, _ := d.handles.get(fh)
	return d.resolve(path).Truncate(size, h)
}

// Utimens delivers the high-resolution timestamp pair to the node. A nil
// pair from the protocol means "set both to now" and is synthesized here, so
// nodes always see exactly two timespecs.
func (d *Dispatcher) Utimens(path string, tmsp []fuse.Timespec) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	if tmsp == nil {
		now := fuse.Now()
		tmsp = []fuse.Timespec{now, now}
	}
	return d.resolve(path).Utimens(tmsp)
}

// Utime is the seconds-only historical shape of the timestamp verb, kept for
// hosts speaking older protocol revisions. The high-resolution pair is
// synthesized with zeroed sub-second components; nodes never observe which
// shape was active.
func (d *Dispatcher) Utime(path string, atime int64, mtime int64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	tmsp := []fuse.Timespec{{Sec: atime}, {Sec: mtime}}
	return d.resolve(path).Utimens(tmsp)
}

/* Parent-split verbs: resolve the path minus its final segment and pass the
removed segment as the entry name. The name is never consumed during the
tree walk. */

func (d *Dispatcher) Mknod(path string, mode uint32, dev uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	parent, name := d.resolveParent(path)
	return parent.Mknod(name, mode, dev)
}

func (d *Dispatcher) Mkdir(path string, mode uint32) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	parent, name := d.resolveParent(path)
	return parent.Mkdir(name, mode)
}

func (d *Dispatcher) Unlink(path string) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	parent, name := d.resolveParent(path)
	return parent.Unlink(name)
}

func (d *Dispatcher) Rmdir(path string) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	parent, name := d.resolveParent(path)
	return parent.Rmdir(name)
}

func (d *Dispatcher) Symlink(target string, newpath string) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	parent, name := d.resolveParent(newpath)
	return parent.Symlink(name, target)
}

/* File handle verbs */

func (d *Dispatcher) Open(path string, flags int) (int, uint64) {
	d.guard.Lock()
	defer d.guard.Unlock()
	errc, h := d.resolve(path).Open(flags)
	if errc != 0 || h == nil {
		return errc, 0
	}
	return errc, d.handles.put(h)
}

func (d *Dispatcher) Read(path string, buff []byte, ofst int64, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, _ := d.handles.get(fh)
	return d.resolve(path).Read(buff, ofst, h)
}

func (d *Dispatcher) Write(path string, buff []byte, ofst int64, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, _ := d.handles.get(fh)
	return d.resolve(path).Write(buff, ofst, h)
}

func (d *Dispatcher) Flush(path string, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, _ := d.handles.get(fh)
	return d.resolve(path).Flush(h)
}

// Release closes a previously opened file. An open handle may outlive
// deletion of the node it was opened against (unlink while open); when
// resolution reports ENOENT and a live token was attached to the call, the
// handle is reclaimed here so its resources do not leak. The node's errno is
// returned either way.
func (d *Dispatcher) Release(path string, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, live := d.handles.take(fh)
	errc := d.resolve(path).Release(h)
	if errc == -fuse.ENOENT && live {
		if err := h.Close(); err != nil {
			d.log.Debug().Err(err).Str("path", path).Msg("Reclaimed orphaned file handle")
		}
	}
	return errc
}

/* Directory verbs */

func (d *Dispatcher) Opendir(path string) (int, uint64) {
	d.guard.Lock()
	defer d.guard.Unlock()
	errc, h := d.resolve(path).Opendir()
	if errc != 0 || h == nil {
		return errc, 0
	}
	return errc, d.handles.put(h)
}

func (d *Dispatcher) Readdir(path string, fill DirFiller, ofst int64, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, _ := d.handles.get(fh)
	return d.resolve(path).Readdir(fill, ofst, h)
}

// Releasedir mirrors [Dispatcher.Release]: a directory handle whose backing
// node was removed while open is reclaimed here.
func (d *Dispatcher) Releasedir(path string, fh uint64) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	h, live := d.handles.take(fh)
	errc := d.resolve(path).Releasedir(h)
	if errc == -fuse.ENOENT && live {
		if err := h.Close(); err != nil {
			d.log.Debug().Err(err).Str("path", path).Msg("Reclaimed orphaned directory handle")
		}
	}
	return errc
}

/* Extended attributes */

func (d *Dispatcher) Getxattr(path string, name string) (int, []byte) {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Getxattr(name)
}

func (d *Dispatcher) Setxattr(path string, name string, value []byte, flags int) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Setxattr(name, value, flags)
}

func (d *Dispatcher) Listxattr(path string, fill func(name string) bool) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Listxattr(fill)
}

func (d *Dispatcher) Removexattr(path string, name string) int {
	d.guard.Lock()
	defer d.guard.Unlock()
	return d.resolve(path).Removexattr(name)
}
