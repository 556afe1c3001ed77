package memfs

import (
	"sort"

	"github.com/brettbedarf/treefs"
	"github.com/puzpuzpuz/xsync/v4"
	"github.com/winfsp/cgofuse/fuse"
)

// Dir is a directory node. Child lookup is lock-free; structural mutation
// (create, remove) is serialized on the node's own mutex so the tree stays
// consistent even under the NoLock dispatch policy.
type Dir struct {
	baseNode
	children *xsync.Map[string, treefs.Node]
}

var _ treefs.Node = (*Dir)(nil)

func NewDir(mode uint32) *Dir {
	d := &Dir{children: xsync.NewMap[string, treefs.Node]()}
	d.init(mode)
	return d
}

func (d *Dir) Child(name string) (treefs.Node, bool) {
	return d.children.Load(name)
}

// Add links an existing node under the given name, replacing any previous
// entry. Intended for programmatic tree building; protocol-originated
// creation goes through Mknod/Mkdir/Symlink.
func (d *Dir) Add(name string, node treefs.Node) {
	d.children.Store(name, node)
}

func (d *Dir) Stat(stat *fuse.Stat_t) int {
	d.fillStat(stat, fuse.S_IFDIR, 0, 2)
	return 0
}

func (d *Dir) Mknod(name string, mode uint32, dev uint64) int {
	if typ := mode & fuse.S_IFMT; typ != 0 && typ != fuse.S_IFREG {
		// only regular files; no devices or pipes in a memory tree
		return -fuse.EPERM
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children.Load(name); ok {
		return -fuse.EEXIST
	}
	d.children.Store(name, NewFile(mode, nil))
	d.mtim = fuse.Now()
	return 0
}

func (d *Dir) Mkdir(name string, mode uint32) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children.Load(name); ok {
		return -fuse.EEXIST
	}
	d.children.Store(name, NewDir(mode))
	d.mtim = fuse.Now()
	return 0
}

func (d *Dir) Unlink(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children.Load(name)
	if !ok {
		return -fuse.ENOENT
	}
	if _, isDir := child.(*Dir); isDir {
		return -fuse.EISDIR
	}
	d.children.Delete(name)
	d.mtim = fuse.Now()
	return 0
}

func (d *Dir) Rmdir(name string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	child, ok := d.children.Load(name)
	if !ok {
		return -fuse.ENOENT
	}
	sub, isDir := child.(*Dir)
	if !isDir {
		return -fuse.ENOTDIR
	}
	if sub.children.Size() != 0 {
		return -fuse.ENOTEMPTY
	}
	d.children.Delete(name)
	d.mtim = fuse.Now()
	return 0
}

func (d *Dir) Symlink(name string, target string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.children.Load(name); ok {
		return -fuse.EEXIST
	}
	d.children.Store(name, NewSymlink(target))
	d.mtim = fuse.Now()
	return 0
}

// Opendir snapshots the child listing so iteration stays stable while
// entries are created or removed mid-listing.
func (d *Dir) Opendir() (int, treefs.FileHandle) {
	return 0, &dirHandle{names: d.listNames()}
}

func (d *Dir) Readdir(fill treefs.DirFiller, ofst int64, fh treefs.FileHandle) int {
	fill(".", nil, 0)
	fill("..", nil, 0)

	names := d.listNames()
	if h, ok := fh.(*dirHandle); ok {
		names = h.names
	}
	for _, name := range names {
		child, ok := d.children.Load(name)
		if !ok {
			// removed since opendir
			continue
		}
		var stat fuse.Stat_t
		if child.Stat(&stat) == 0 {
			fill(name, &stat, 0)
		} else {
			fill(name, nil, 0)
		}
	}
	return 0
}

func (d *Dir) Releasedir(fh treefs.FileHandle) int {
	if fh == nil {
		return -fuse.EINVAL
	}
	if err := fh.Close(); err != nil {
		return -fuse.EINVAL
	}
	return 0
}

func (d *Dir) listNames() []string {
	names := make([]string, 0, d.children.Size())
	d.children.Range(func(name string, _ treefs.Node) bool {
		names = append(names, name)
		return true
	})
	sort.Strings(names)
	return names
}

// dirHandle is the per-opendir listing snapshot.
type dirHandle struct {
	names []string
}

func (h *dirHandle) Close() error {
	h.names = nil
	return nil
}
