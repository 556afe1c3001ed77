package treefs

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/winfsp/cgofuse/fuse"
)

// testNode is an instrumented tree node recording every capability
// invocation.
type testNode struct {
	ErrNode
	ino      uint64
	children map[string]*testNode

	mu       sync.Mutex
	calls    []string
	lookups  atomic.Int32 // Child invocations against this node
	utimens  [][]fuse.Timespec
	openH    FileHandle   // handle issued from Open
	released []FileHandle // handles received by Release

	// mutual-exclusion instrumentation
	active     atomic.Int32
	overlapped atomic.Bool
}

func newTestNode(ino uint64) *testNode {
	return &testNode{ino: ino, children: map[string]*testNode{}}
}

func (n *testNode) addChild(name string, child *testNode) *testNode {
	n.children[name] = child
	return child
}

func (n *testNode) record(call string) {
	n.mu.Lock()
	n.calls = append(n.calls, call)
	n.mu.Unlock()
}

func (n *testNode) recorded() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

func (n *testNode) Child(name string) (Node, bool) {
	n.lookups.Add(1)
	child, ok := n.children[name]
	if !ok {
		return nil, false
	}
	return child, true
}

func (n *testNode) Stat(stat *fuse.Stat_t) int {
	if n.active.Add(1) > 1 {
		n.overlapped.Store(true)
	}
	time.Sleep(time.Millisecond)
	n.active.Add(-1)

	n.record("stat")
	stat.Ino = n.ino
	stat.Mode = fuse.S_IFDIR | 0o755
	return 0
}

func (n *testNode) Mknod(name string, mode uint32, dev uint64) int {
	n.record("mknod:" + name)
	return 0
}

func (n *testNode) Mkdir(name string, mode uint32) int {
	n.record("mkdir:" + name)
	return 0
}

func (n *testNode) Unlink(name string) int {
	n.record("unlink:" + name)
	return 0
}

func (n *testNode) Rmdir(name string) int {
	n.record("rmdir:" + name)
	return 0
}

func (n *testNode) Symlink(name string, target string) int {
	n.record(fmt.Sprintf("symlink:%s->%s", name, target))
	return 0
}

func (n *testNode) Utimens(tmsp []fuse.Timespec) int {
	n.mu.Lock()
	n.utimens = append(n.utimens, tmsp)
	n.mu.Unlock()
	return 0
}

func (n *testNode) Open(flags int) (int, FileHandle) {
	n.record("open")
	if n.openH == nil {
		n.openH = &testHandle{}
	}
	return 0, n.openH
}

func (n *testNode) Release(fh FileHandle) int {
	n.mu.Lock()
	n.released = append(n.released, fh)
	n.mu.Unlock()
	return 0
}

func (n *testNode) Read(buff []byte, ofst int64, fh FileHandle) int {
	n.record("read")
	return 0
}

type testHandle struct {
	closes atomic.Int32
}

func (h *testHandle) Close() error {
	h.closes.Add(1)
	return nil
}

// newTestTree builds root -> a -> b -> c and returns all four nodes.
func newTestTree() (root, a, b, c *testNode) {
	root = newTestNode(1)
	a = root.addChild("a", newTestNode(2))
	b = a.addChild("b", newTestNode(3))
	c = b.addChild("c", newTestNode(4))
	return
}

func TestResolve_Found(t *testing.T) {
	t.Parallel()

	root, _, _, c := newTestTree()
	d := New(root)

	got := d.resolve("/a/b/c")
	require.NotNil(t, got)
	assert.Same(t, c, got, "must return the exact node reached by segment-order lookups")

	// idempotent absent tree mutation
	assert.Same(t, got, d.resolve("/a/b/c"))
}

func TestResolve_Root(t *testing.T) {
	t.Parallel()

	root := newTestNode(1)
	d := New(root)

	assert.Same(t, root, d.resolve(""), "empty path is the root")
	assert.Same(t, root, d.resolve("/"), "slash path is the root")
}

func TestResolve_FailFast(t *testing.T) {
	t.Parallel()

	root, a, b, _ := newTestTree()
	d := New(root)

	got := d.resolve("/missing/b/c")

	assert.Equal(t, NotFound, got)
	assert.EqualValues(t, 1, root.lookups.Load(), "exactly one lookup at the failing segment")
	assert.EqualValues(t, 0, a.lookups.Load(), "no lookups past the first absent segment")
	assert.EqualValues(t, 0, b.lookups.Load())
}

func TestResolve_MidPathMiss(t *testing.T) {
	t.Parallel()

	root, a, b, _ := newTestTree()
	d := New(root)

	got := d.resolve("/a/missing/c")

	assert.Equal(t, NotFound, got)
	assert.EqualValues(t, 1, root.lookups.Load())
	assert.EqualValues(t, 1, a.lookups.Load())
	assert.EqualValues(t, 0, b.lookups.Load(), "resolution must stop at the absent segment")
}

func TestDispatch_SentinelENOENT(t *testing.T) {
	t.Parallel()

	root := newTestNode(1)
	d := New(root)

	var stat fuse.Stat_t
	assert.Equal(t, -fuse.ENOENT, d.Getattr("/nope", &stat, 0))
	assert.Equal(t, -fuse.ENOENT, d.Chmod("/nope", 0o644))
	assert.Equal(t, -fuse.ENOENT, d.Access("/nope", 0))
	assert.Equal(t, -fuse.ENOENT, d.Truncate("/nope", 0, 0))
	assert.Equal(t, -fuse.ENOENT, d.Utimens("/nope", nil))
	assert.Equal(t, -fuse.ENOENT, d.Read("/nope", make([]byte, 8), 0, 0))
	assert.Equal(t, -fuse.ENOENT, d.Write("/nope", make([]byte, 8), 0, 0))
	assert.Equal(t, -fuse.ENOENT, d.Flush("/nope", 0))
	assert.Equal(t, -fuse.ENOENT, d.Setxattr("/nope", "user.k", nil, 0))
	assert.Equal(t, -fuse.ENOENT, d.Removexattr("/nope", "user.k"))
	assert.Equal(t, -fuse.ENOENT, d.Listxattr("/nope", func(string) bool { return true }))

	errc, target := d.Readlink("/nope")
	assert.Equal(t, -fuse.ENOENT, errc)
	assert.Empty(t, target)

	errc, fh := d.Open("/nope", 0)
	assert.Equal(t, -fuse.ENOENT, errc)
	assert.Zero(t, fh)

	errc, fh = d.Opendir("/nope")
	assert.Equal(t, -fuse.ENOENT, errc)
	assert.Zero(t, fh)

	errc, val := d.Getxattr("/nope", "user.k")
	assert.Equal(t, -fuse.ENOENT, errc)
	assert.Nil(t, val)
}

func TestDispatch_ParentSplit(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	d := New(root)

	require.Equal(t, 0, d.Mkdir("/a/newdir", 0o755))
	require.Equal(t, 0, d.Mknod("/a/newfile", 0o644, 0))
	require.Equal(t, 0, d.Unlink("/a/gone"))
	require.Equal(t, 0, d.Rmdir("/a/golder"))
	require.Equal(t, 0, d.Symlink("the-target", "/a/link"))

	assert.Equal(t, []string{
		"mkdir:newdir",
		"mknod:newfile",
		"unlink:gone",
		"rmdir:golder",
		"symlink:link->the-target",
	}, a.recorded(), "name must be passed as an argument, never resolved")

	// the final segment is not consumed during tree descent: a's own
	// children were never consulted
	assert.EqualValues(t, 0, a.lookups.Load())
}

func TestDispatch_ParentSplitAtRoot(t *testing.T) {
	t.Parallel()

	root := newTestNode(1)
	d := New(root)

	require.Equal(t, 0, d.Mkdir("/top", 0o755))
	assert.Equal(t, []string{"mkdir:top"}, root.recorded())
}

func TestDispatch_ParentSplitMissingParent(t *testing.T) {
	t.Parallel()

	root := newTestNode(1)
	d := New(root)

	assert.Equal(t, -fuse.ENOENT, d.Mkdir("/nope/newdir", 0o755))
	assert.Equal(t, -fuse.ENOENT, d.Unlink("/nope/gone"))
}

func TestDispatch_UtimensNilSynthesizesNow(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	d := New(root)

	before := time.Now().Unix()
	require.Equal(t, 0, d.Utimens("/a", nil))

	require.Len(t, a.utimens, 1)
	pair := a.utimens[0]
	require.Len(t, pair, 2)
	assert.GreaterOrEqual(t, pair[0].Sec, before)
	assert.GreaterOrEqual(t, pair[1].Sec, before)
}

func TestDispatch_UtimeLegacyShape(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	d := New(root)

	require.Equal(t, 0, d.Utime("/a", 100, 200))

	require.Len(t, a.utimens, 1)
	pair := a.utimens[0]
	require.Len(t, pair, 2, "node must receive the two-element high-resolution pair")
	assert.Equal(t, fuse.Timespec{Sec: 100}, pair[0], "sub-second components must be zeroed")
	assert.Equal(t, fuse.Timespec{Sec: 200}, pair[1])
}

func TestDispatch_OpenThreadsHandleThroughTable(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	f := a.addChild("f", newTestNode(10))
	d := New(root)

	errc, fh := d.Open("/a/f", 0)
	require.Equal(t, 0, errc)
	require.NotZero(t, fh)
	assert.Equal(t, 1, d.handles.size())

	require.Equal(t, 0, d.Release("/a/f", fh))
	require.Len(t, f.released, 1)
	assert.Same(t, f.openH, f.released[0], "node must receive the exact handle it issued")
	assert.Equal(t, 0, d.handles.size(), "release must drop the table entry")
}

func TestDispatch_ReleaseAfterDelete(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	h := &testHandle{}
	f := a.addChild("f", newTestNode(10))
	f.openH = h
	d := New(root)

	errc, fh := d.Open("/a/f", 0)
	require.Equal(t, 0, errc)
	require.NotZero(t, fh)

	// unlink while open
	delete(a.children, "f")

	errc = d.Release("/a/f", fh)
	assert.Equal(t, -fuse.ENOENT, errc, "the already-deleted status must not be masked")
	assert.EqualValues(t, 1, h.closes.Load(), "orphaned handle must be reclaimed")
	assert.Equal(t, 0, d.handles.size())

	// releasing the same token again must not double-free
	assert.Equal(t, -fuse.ENOENT, d.Release("/a/f", fh))
	assert.EqualValues(t, 1, h.closes.Load())
}

func TestDispatch_ReleaseAfterDeleteConcurrent(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	h := &testHandle{}
	f := a.addChild("f", newTestNode(10))
	f.openH = h
	d := New(root, WithLockPolicy(NoLock()))

	_, fh := d.Open("/a/f", 0)
	require.NotZero(t, fh)
	delete(a.children, "f")

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d.Release("/a/f", fh)
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, h.closes.Load(), "handle must be freed exactly once under concurrent release")
}

func TestDispatch_SerializePolicy(t *testing.T) {
	t.Parallel()

	root, a, _, _ := newTestTree()
	d := New(root, WithLockPolicy(Serialize()))

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var stat fuse.Stat_t
			d.Getattr("/a", &stat, 0)
		}()
	}
	wg.Wait()

	assert.False(t, a.overlapped.Load(), "no two dispatch calls may overlap their resolve-and-invoke windows")
	assert.Len(t, a.recorded(), 16)
}

// extFS supplies verbs the core does not bind, plus a Getattr that must lose
// to the core's own binding.
type extFS struct {
	fuse.FileSystemBase
	renamed atomic.Bool
}

func (e *extFS) Rename(oldpath string, newpath string) int {
	e.renamed.Store(true)
	return 0
}

func (e *extFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	stat.Ino = 999
	return 0
}

func TestDispatch_ExtensionPrecedence(t *testing.T) {
	t.Parallel()

	root := newTestNode(1)
	ext := &extFS{}
	d := New(root, WithExtension(ext))

	// core has no Rename binding: the extension handles it
	assert.Equal(t, 0, d.Rename("/a", "/b"))
	assert.True(t, ext.renamed.Load())

	// the core's binding stays authoritative on collision
	var stat fuse.Stat_t
	assert.Equal(t, -fuse.ENOENT, d.Getattr("/nope", &stat, 0))
	assert.NotEqual(t, uint64(999), stat.Ino)
}

func TestDispatch_DefaultExtensionRefuses(t *testing.T) {
	t.Parallel()

	d := New(newTestNode(1))

	assert.Equal(t, -fuse.ENOSYS, d.Rename("/a", "/b"))
	assert.Equal(t, -fuse.ENOSYS, d.Chown("/a", 0, 0))
}
