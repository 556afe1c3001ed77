// Package memfs provides in-memory node implementations for the treefs
// dispatch core: directories backed by a concurrent child map, byte-slice
// files, and symlinks. It is the reference node tree used by the CLI and the
// test suite.
package memfs

import (
	"os"
	"sort"
	"sync"

	"github.com/brettbedarf/treefs"
	"github.com/winfsp/cgofuse/fuse"
)

// baseNode carries the metadata every node type shares: permission bits,
// ownership, timestamps, and extended attributes. Node types embed it; its
// verbs shadow the embedded ErrNode refusals.
type baseNode struct {
	treefs.ErrNode
	mu    sync.RWMutex
	mode  uint32 // permission bits only; the type bits come from the node type
	uid   uint32
	gid   uint32
	atim  fuse.Timespec
	mtim  fuse.Timespec
	ctim  fuse.Timespec
	xattr map[string][]byte
}

func (b *baseNode) init(mode uint32) {
	now := fuse.Now()
	b.mode = mode & 0o7777
	b.uid = uint32(os.Getuid())
	b.gid = uint32(os.Getgid())
	b.atim = now
	b.mtim = now
	b.ctim = now
}

// fillStat writes a snapshot of the node's attributes. typ is the S_IF* type
// bits of the concrete node.
func (b *baseNode) fillStat(stat *fuse.Stat_t, typ uint32, size int64, nlink uint32) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	*stat = fuse.Stat_t{
		Mode:     typ | b.mode,
		Nlink:    nlink,
		Uid:      b.uid,
		Gid:      b.gid,
		Size:     size,
		Atim:     b.atim,
		Mtim:     b.mtim,
		Ctim:     b.ctim,
		Birthtim: b.ctim,
		Blksize:  4096,
	}
}

// Access always grants: permission enforcement is delegated to the kernel
// through the default_permissions mount option, based on the mode bits
// reported by Stat.
func (b *baseNode) Access(mask uint32) int {
	return 0
}

func (b *baseNode) Chmod(mode uint32) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mode = mode & 0o7777
	b.ctim = fuse.Now()
	return 0
}

func (b *baseNode) Utimens(tmsp []fuse.Timespec) int {
	if len(tmsp) != 2 {
		return -fuse.EINVAL
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.atim = tmsp[0]
	b.mtim = tmsp[1]
	b.ctim = fuse.Now()
	return 0
}

func (b *baseNode) Getxattr(name string) (int, []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	value, ok := b.xattr[name]
	if !ok {
		return -fuse.ENOATTR, nil
	}
	return 0, append([]byte(nil), value...)
}

func (b *baseNode) Setxattr(name string, value []byte, flags int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.xattr[name]
	switch {
	case flags == fuse.XATTR_CREATE && ok:
		return -fuse.EEXIST
	case flags == fuse.XATTR_REPLACE && !ok:
		return -fuse.ENOATTR
	}
	if b.xattr == nil {
		b.xattr = make(map[string][]byte)
	}
	b.xattr[name] = append([]byte(nil), value...)
	return 0
}

func (b *baseNode) Listxattr(fill func(name string) bool) int {
	b.mu.RLock()
	names := make([]string, 0, len(b.xattr))
	for name := range b.xattr {
		names = append(names, name)
	}
	b.mu.RUnlock()

	sort.Strings(names)
	for _, name := range names {
		if !fill(name) {
			break
		}
	}
	return 0
}

func (b *baseNode) Removexattr(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.xattr[name]; !ok {
		return -fuse.ENOATTR
	}
	delete(b.xattr, name)
	return 0
}
