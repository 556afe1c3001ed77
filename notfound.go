package treefs

import "github.com/winfsp/cgofuse/fuse"

// NotFound is the stateless sentinel returned whenever path resolution fails.
// Every capability reports -fuse.ENOENT, so dispatch call sites always have a
// valid target and "never existed" and "vanished mid-traversal" share a
// single error path.
var NotFound Node = notFoundNode{}

type notFoundNode struct{}

func (notFoundNode) Child(name string) (Node, bool) { return nil, false }

func (notFoundNode) Stat(stat *fuse.Stat_t) int       { return -fuse.ENOENT }
func (notFoundNode) Access(mask uint32) int           { return -fuse.ENOENT }
func (notFoundNode) Chmod(mode uint32) int            { return -fuse.ENOENT }
func (notFoundNode) Utimens(tmsp []fuse.Timespec) int { return -fuse.ENOENT }

func (notFoundNode) Mknod(name string, mode uint32, dev uint64) int { return -fuse.ENOENT }
func (notFoundNode) Mkdir(name string, mode uint32) int             { return -fuse.ENOENT }
func (notFoundNode) Unlink(name string) int                         { return -fuse.ENOENT }
func (notFoundNode) Rmdir(name string) int                          { return -fuse.ENOENT }
func (notFoundNode) Symlink(name string, target string) int         { return -fuse.ENOENT }
func (notFoundNode) Readlink() (int, string)                        { return -fuse.ENOENT, "" }

func (notFoundNode) Open(flags int) (int, FileHandle)                 { return -fuse.ENOENT, nil }
func (notFoundNode) Read(buff []byte, ofst int64, fh FileHandle) int  { return -fuse.ENOENT }
func (notFoundNode) Write(buff []byte, ofst int64, fh FileHandle) int { return -fuse.ENOENT }
func (notFoundNode) Truncate(size int64, fh FileHandle) int           { return -fuse.ENOENT }
func (notFoundNode) Flush(fh FileHandle) int                          { return -fuse.ENOENT }
func (notFoundNode) Release(fh FileHandle) int                        { return -fuse.ENOENT }

func (notFoundNode) Opendir() (int, FileHandle)                            { return -fuse.ENOENT, nil }
func (notFoundNode) Readdir(fill DirFiller, ofst int64, fh FileHandle) int { return -fuse.ENOENT }
func (notFoundNode) Releasedir(fh FileHandle) int                          { return -fuse.ENOENT }

func (notFoundNode) Getxattr(name string) (int, []byte)                { return -fuse.ENOENT, nil }
func (notFoundNode) Setxattr(name string, value []byte, flags int) int { return -fuse.ENOENT }
func (notFoundNode) Listxattr(fill func(name string) bool) int         { return -fuse.ENOENT }
func (notFoundNode) Removexattr(name string) int                       { return -fuse.ENOENT }
