package treefs

import (
	"github.com/winfsp/cgofuse/fuse"
)

// DirFiller is the readdir callback used to emit one directory entry per
// call. Returning false stops iteration (the kernel buffer is full).
type DirFiller = func(name string, stat *fuse.Stat_t, ofst int64) bool

// FileHandle is an opaque per-open-file token. The [Dispatcher] maps handles
// to the uint64 tokens the kernel protocol carries and guarantees Close is
// invoked at most once per handle, even when the backing node was deleted
// while the handle was open.
type FileHandle interface {
	Close() error
}

// Node is the capability contract every entry in the namespace tree
// satisfies. Operations return negative errno codes in the cgofuse
// convention (0 success, -fuse.ENOENT, -fuse.ENOSYS, ...), which the
// Dispatcher forwards to the protocol layer unchanged.
//
// Path identity is resolved upstream by the Dispatcher: operations only
// receive the arguments their verb needs. Name-taking verbs (Mknod, Mkdir,
// Unlink, Rmdir, Symlink) are invoked on the *parent* node with the entry
// name as an argument.
//
// Embed [ErrNode] to implement only the verbs a node type supports.
type Node interface {
	// Child looks up a direct child by name. Absent children yield
	// ok == false rather than an error.
	Child(name string) (child Node, ok bool)

	Stat(stat *fuse.Stat_t) int
	Access(mask uint32) int
	Chmod(mode uint32) int
	Utimens(tmsp []fuse.Timespec) int

	Mknod(name string, mode uint32, dev uint64) int
	Mkdir(name string, mode uint32) int
	Unlink(name string) int
	Rmdir(name string) int
	Symlink(name string, target string) int
	Readlink() (int, string)

	Open(flags int) (int, FileHandle)
	Read(buff []byte, ofst int64, fh FileHandle) int
	Write(buff []byte, ofst int64, fh FileHandle) int
	Truncate(size int64, fh FileHandle) int
	Flush(fh FileHandle) int
	Release(fh FileHandle) int

	Opendir() (int, FileHandle)
	Readdir(fill DirFiller, ofst int64, fh FileHandle) int
	Releasedir(fh FileHandle) int

	Getxattr(name string) (int, []byte)
	Setxattr(name string, value []byte, flags int) int
	Listxattr(fill func(name string) bool) int
	Removexattr(name string) int
}

// ErrNode answers every capability with -fuse.ENOSYS and has no children.
// Concrete node types embed it and override the verbs they support, the same
// way cgofuse filesystems embed fuse.FileSystemBase.
type ErrNode struct{}

var _ Node = ErrNode{}

func (ErrNode) Child(name string) (Node, bool) { return nil, false }

func (ErrNode) Stat(stat *fuse.Stat_t) int          { return -fuse.ENOSYS }
func (ErrNode) Access(mask uint32) int              { return -fuse.ENOSYS }
func (ErrNode) Chmod(mode uint32) int               { return -fuse.ENOSYS }
func (ErrNode) Utimens(tmsp []fuse.Timespec) int    { return -fuse.ENOSYS }

func (ErrNode) Mknod(name string, mode uint32, dev uint64) int { return -fuse.ENOSYS }
func (ErrNode) Mkdir(name string, mode uint32) int             { return -fuse.ENOSYS }
func (ErrNode) Unlink(name string) int                         { return -fuse.ENOSYS }
func (ErrNode) Rmdir(name string) int                          { return -fuse.ENOSYS }
func (ErrNode) Symlink(name string, target string) int         { return -fuse.ENOSYS }
func (ErrNode) Readlink() (int, string)                        { return -fuse.ENOSYS, "" }

func (ErrNode) Open(flags int) (int, FileHandle)                     { return -fuse.ENOSYS, nil }
func (ErrNode) Read(buff []byte, ofst int64, fh FileHandle) int      { return -fuse.ENOSYS }
func (ErrNode) Write(buff []byte, ofst int64, fh FileHandle) int     { return -fuse.ENOSYS }
func (ErrNode) Truncate(size int64, fh FileHandle) int               { return -fuse.ENOSYS }
func (ErrNode) Flush(fh FileHandle) int                              { return -fuse.ENOSYS }
func (ErrNode) Release(fh FileHandle) int                            { return -fuse.ENOSYS }

func (ErrNode) Opendir() (int, FileHandle)                            { return -fuse.ENOSYS, nil }
func (ErrNode) Readdir(fill DirFiller, ofst int64, fh FileHandle) int { return -fuse.ENOSYS }
func (ErrNode) Releasedir(fh FileHandle) int                          { return -fuse.ENOSYS }

func (ErrNode) Getxattr(name string) (int, []byte)            { return -fuse.ENOSYS, nil }
func (ErrNode) Setxattr(name string, value []byte, flags int) int { return -fuse.ENOSYS }
func (ErrNode) Listxattr(fill func(name string) bool) int     { return -fuse.ENOSYS }
func (ErrNode) Removexattr(name string) int                   { return -fuse.ENOSYS }
