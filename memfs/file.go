package memfs

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/brettbedarf/treefs"
	"github.com/winfsp/cgofuse/fuse"
)

// File is a regular file node backed by a byte slice.
type File struct {
	baseNode
	dmu  sync.RWMutex
	data []byte
}

var _ treefs.Node = (*File)(nil)

func NewFile(mode uint32, data []byte) *File {
	f := &File{data: data}
	f.init(mode)
	return f
}

func (f *File) Stat(stat *fuse.Stat_t) int {
	f.dmu.RLock()
	size := int64(len(f.data))
	f.dmu.RUnlock()
	f.fillStat(stat, fuse.S_IFREG, size, 1)
	return 0
}

// Open issues a handle referencing the file object itself, so reads against
// the handle stay valid even after the file is unlinked from its parent.
func (f *File) Open(flags int) (int, treefs.FileHandle) {
	return 0, &fileHandle{file: f}
}

func (f *File) Read(buff []byte, ofst int64, fh treefs.FileHandle) int {
	f.dmu.RLock()
	defer f.dmu.RUnlock()
	if ofst < 0 || ofst >= int64(len(f.data)) {
		return 0
	}
	end := ofst + int64(len(buff))
	if end > int64(len(f.data)) {
		end = int64(len(f.data))
	}
	return copy(buff, f.data[ofst:end])
}

func (f *File) Write(buff []byte, ofst int64, fh treefs.FileHandle) int {
	if ofst < 0 {
		return -fuse.EINVAL
	}
	f.dmu.Lock()
	end := ofst + int64(len(buff))
	if end > int64(len(f.data)) {
		grown := make([]byte, end)
		copy(grown, f.data)
		f.data = grown
	}
	n := copy(f.data[ofst:end], buff)
	f.dmu.Unlock()

	f.mu.Lock()
	f.mtim = fuse.Now()
	f.mu.Unlock()
	return n
}

func (f *File) Truncate(size int64, fh treefs.FileHandle) int {
	if size < 0 {
		return -fuse.EINVAL
	}
	f.dmu.Lock()
	if size <= int64(len(f.data)) {
		f.data = f.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, f.data)
		f.data = grown
	}
	f.dmu.Unlock()

	f.mu.Lock()
	f.mtim = fuse.Now()
	f.mu.Unlock()
	return 0
}

func (f *File) Flush(fh treefs.FileHandle) int {
	return 0
}

func (f *File) Release(fh treefs.FileHandle) int {
	if fh == nil {
		return -fuse.EINVAL
	}
	if err := fh.Close(); err != nil {
		return -fuse.EINVAL
	}
	return 0
}

// fileHandle pins the file object for the lifetime of an open descriptor.
type fileHandle struct {
	file   *File
	closed atomic.Bool
}

func (h *fileHandle) Close() error {
	if !h.closed.CompareAndSwap(false, true) {
		return errors.New("file handle already closed")
	}
	h.file = nil
	return nil
}
