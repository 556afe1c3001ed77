package memfs

import (
	"github.com/brettbedarf/treefs"
	"github.com/winfsp/cgofuse/fuse"
)

// Symlink is a symbolic link node. The target string is immutable after
// creation.
type Symlink struct {
	baseNode
	target string
}

var _ treefs.Node = (*Symlink)(nil)

func NewSymlink(target string) *Symlink {
	l := &Symlink{target: target}
	l.init(0o777)
	return l
}

func (l *Symlink) Stat(stat *fuse.Stat_t) int {
	l.fillStat(stat, fuse.S_IFLNK, int64(len(l.target)), 1)
	return 0
}

func (l *Symlink) Readlink() (int, string) {
	return 0, l.target
}
