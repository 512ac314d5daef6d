package series

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type item struct {
	bucket int64
	val    string
}

func bucketOf(i item) int64 { return i.bucket }

func TestBounded_EvictsOldest(t *testing.T) {
	s := NewBounded[string](3)
	for _, v := range []string{"C1", "C2", "C3", "C4"} {
		s.Push(v)
	}

	assert.Equal(t, []string{"C2", "C3", "C4"}, s.Snapshot())
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, 3, s.Cap())
}

func TestBounded_NeverExceedsCapacity(t *testing.T) {
	s := NewBounded[int](5)
	for i := 0; i < 137; i++ {
		s.Push(i)
		snap := s.Snapshot()
		require.LessOrEqual(t, len(snap), 5)

		// most recent pushes, in arrival order
		first := i - len(snap) + 1
		for j, v := range snap {
			require.Equal(t, first+j, v)
		}
	}
}

func TestBounded_ReplaceOrPush(t *testing.T) {
	s := NewBounded[item](3)
	s.ReplaceOrPush(item{bucket: 1, val: "a"}, bucketOf)
	s.ReplaceOrPush(item{bucket: 2, val: "b"}, bucketOf)
	s.ReplaceOrPush(item{bucket: 2, val: "b2"}, bucketOf)

	require.Equal(t, 2, s.Len())
	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "b2", last.val)

	s.ReplaceOrPush(item{bucket: 3, val: "c"}, bucketOf)
	s.ReplaceOrPush(item{bucket: 4, val: "d"}, bucketOf)
	assert.Equal(t, []item{{2, "b2"}, {3, "c"}, {4, "d"}}, s.Snapshot())
}

func TestBounded_SnapshotIsCopy(t *testing.T) {
	s := NewBounded[int](2)
	s.Push(1)
	snap := s.Snapshot()
	snap[0] = 99

	last, _ := s.Last()
	assert.Equal(t, 1, last)
}

func TestBounded_EmptyAndReset(t *testing.T) {
	s := NewBounded[int](0)
	assert.Equal(t, 1, s.Cap())
	_, ok := s.Last()
	assert.False(t, ok)
	assert.Empty(t, s.Snapshot())

	s.Push(7)
	s.Reset()
	assert.Equal(t, 0, s.Len())
}
