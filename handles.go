package treefs

import (
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v4"
)

// maxHandle caps tokens at 31 bits for libfuse interop, leaving over 2
// billion concurrently open handles before wraparound.
const maxHandle = (1 << 31) - 1

// handleTable maps the uint64 tokens the kernel protocol carries to the
// opaque [FileHandle] objects nodes issue from Open and Opendir. Token 0 is
// reserved for "no handle attached".
//
// Handle identity is table membership: take removes via LoadAndDelete, so a
// handle can be reclaimed exactly once even under concurrent release calls
// for the same token.
type handleTable struct {
	m    *xsync.Map[uint64, FileHandle]
	last atomic.Uint64
}

func newHandleTable() *handleTable {
	return &handleTable{m: xsync.NewMap[uint64, FileHandle]()}
}

// put registers a node-issued handle and returns its wire token.
func (t *handleTable) put(h FileHandle) uint64 {
	for {
		fh := t.last.Add(1) & maxHandle
		if fh == 0 {
			// wrapped; 0 is reserved
			continue
		}
		if _, loaded := t.m.LoadOrStore(fh, h); !loaded {
			return fh
		}
	}
}

// get returns the live handle for a token, or nil for token 0 or an unknown
// token.
func (t *handleTable) get(fh uint64) (FileHandle, bool) {
	if fh == 0 {
		return nil, false
	}
	return t.m.Load(fh)
}

// take removes and returns the handle. At most one caller observes
// ok == true for a given token.
func (t *handleTable) take(fh uint64) (FileHandle, bool) {
	if fh == 0 {
		return nil, false
	}
	return t.m.LoadAndDelete(fh)
}

func (t *handleTable) size() int {
	return t.m.Size()
}
