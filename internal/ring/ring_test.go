package ring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_PanicsOnInvalidSize(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
	assert.Panics(t, func() { New[int](-1) })
}

func TestAppendAndSlice(t *testing.T) {
	b := New[int](2)
	for i := 1; i <= 10; i++ {
		b.Append(i)
	}
	require.Equal(t, 10, b.Len())
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, b.Slice())
}

func TestRemoveBefore(t *testing.T) {
	b := New[int](4)
	for i := 1; i <= 6; i++ {
		b.Append(i)
	}
	idx := b.Search(4)
	b.RemoveBefore(idx)
	assert.Equal(t, []int{4, 5, 6}, b.Slice())
}

func TestRemoveBeforeCompactsBackingArray(t *testing.T) {
	b := New[int](4)
	for i := 1; i <= 8; i++ {
		b.Append(i)
	}
	b.RemoveBefore(6) // discards 1..6, over half the backing array
	assert.Equal(t, 0, b.off)
	assert.Equal(t, []int{7, 8}, b.Slice())

	b.Append(9)
	assert.Equal(t, []int{7, 8, 9}, b.Slice())
}

func TestSearch(t *testing.T) {
	b := New[int](8)
	for _, v := range []int{1, 3, 5, 7, 9} {
		b.Append(v)
	}
	assert.Equal(t, 2, b.Search(5))
	assert.Equal(t, 5, b.Search(10))
	assert.Equal(t, 0, b.Search(0))
}

func TestGetOutOfRangePanics(t *testing.T) {
	b := New[int](2)
	b.Append(1)
	assert.Panics(t, func() { b.Get(1) })
	assert.Panics(t, func() { b.Get(-1) })
}

func TestRemoveBeforeOutOfRangePanics(t *testing.T) {
	b := New[int](2)
	b.Append(1)
	assert.Panics(t, func() { b.RemoveBefore(-1) })
	assert.Panics(t, func() { b.RemoveBefore(2) })
}
