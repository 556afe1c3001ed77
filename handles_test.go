package treefs

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTable_PutGet(t *testing.T) {
	t.Parallel()

	table := newHandleTable()
	h := &testHandle{}

	fh := table.put(h)
	require.NotZero(t, fh, "token 0 is reserved for no-handle")

	got, ok := table.get(fh)
	require.True(t, ok)
	assert.Same(t, h, got)
	assert.Equal(t, 1, table.size())
}

func TestHandleTable_ZeroToken(t *testing.T) {
	t.Parallel()

	table := newHandleTable()

	_, ok := table.get(0)
	assert.False(t, ok)
	_, ok = table.take(0)
	assert.False(t, ok)
}

func TestHandleTable_TakeIsExactlyOnce(t *testing.T) {
	t.Parallel()

	table := newHandleTable()
	h := &testHandle{}
	fh := table.put(h)

	got, ok := table.take(fh)
	require.True(t, ok)
	assert.Same(t, h, got)

	_, ok = table.take(fh)
	assert.False(t, ok, "second take must observe the token as gone")
	assert.Equal(t, 0, table.size())
}

func TestHandleTable_TakeConcurrent(t *testing.T) {
	t.Parallel()

	table := newHandleTable()
	fh := table.put(&testHandle{})

	var (
		wg   sync.WaitGroup
		wins sync.Map
	)
	for i := range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, ok := table.take(fh); ok {
				wins.Store(i, true)
			}
		}()
	}
	wg.Wait()

	count := 0
	wins.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count, "exactly one taker wins")
}

func TestHandleTable_UniqueTokens(t *testing.T) {
	t.Parallel()

	table := newHandleTable()
	seen := make(map[uint64]bool)
	for range 1000 {
		fh := table.put(&testHandle{})
		require.False(t, seen[fh], "tokens must be unique among live handles")
		seen[fh] = true
	}
	assert.Equal(t, 1000, table.size())
}
