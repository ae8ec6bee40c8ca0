package blockcache

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type fakeBlock struct {
	hash   string
	parent string
	height uint64
}

func (b fakeBlock) Hash() string       { return b.hash }
func (b fakeBlock) ParentHash() string { return b.parent }
func (b fakeBlock) Height() uint64     { return b.height }

func TestCache_AddAndGet(t *testing.T) {
	c := New(10)
	b := fakeBlock{hash: "h1", height: 1}
	c.Add(b)

	got, ok := c.Get("h1")
	require.True(t, ok)
	require.Equal(t, b, got)

	_, ok = c.Get("missing")
	require.False(t, ok)
}

func TestCache_AddDoesNotMaskReorg(t *testing.T) {
	c := New(10)
	original := fakeBlock{hash: "h1", height: 5}
	c.Add(original)

	competing := fakeBlock{hash: "h1-competing", height: 5}
	c.Add(competing) // Add must not silently overwrite a different hash at the same height

	got, ok := c.Get("h1")
	require.True(t, ok)
	require.Equal(t, original, got)

	_, ok = c.Get("h1-competing")
	require.False(t, ok, "Add must refuse to insert a same-height competitor; only Replace may")
}

func TestCache_ReplaceEvictsOldHashAtSameHeight(t *testing.T) {
	c := New(10)
	old := fakeBlock{hash: "old", height: 5}
	c.Add(old)

	newBlock := fakeBlock{hash: "new", height: 5}
	c.Replace(newBlock)

	_, ok := c.Get("old")
	require.False(t, ok, "reorged-out block must be evicted")

	got, ok := c.Get("new")
	require.True(t, ok)
	require.Equal(t, newBlock, got)
}

func TestCache_BoundedLRUEviction(t *testing.T) {
	c := New(2)
	c.Add(fakeBlock{hash: "h1", height: 1})
	c.Add(fakeBlock{hash: "h2", height: 2})
	c.Add(fakeBlock{hash: "h3", height: 3}) // evicts h1, the least recently used

	require.Equal(t, 2, c.Len())
	_, ok := c.Get("h1")
	require.False(t, ok)
	_, ok = c.Get("h2")
	require.True(t, ok)
	_, ok = c.Get("h3")
	require.True(t, ok)
}

func TestCache_Seen(t *testing.T) {
	c := New(10)
	require.False(t, c.Seen("h1"))
	c.Add(fakeBlock{hash: "h1", height: 1})
	require.True(t, c.Seen("h1"))
}
