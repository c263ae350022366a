package buffer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLRUKReplacer_EvictsInfiniteDistanceFirst(t *testing.T) {
	r := NewLRUKReplacer(8, 2)

	// Frames 0 and 1 get two accesses, frame 2 only one.
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.RecordAccess(2)
	r.RecordAccess(0)
	r.RecordAccess(1)
	for _, f := range []int{0, 1, 2} {
		r.SetEvictable(f, true)
	}
	require.Equal(t, 3, r.Size())

	// Frame 2 has fewer than k accesses: infinite backward distance.
	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 2, victim)

	// Among full-history frames, frame 0 has the older k-th access.
	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, 0, victim)

	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, 1, victim)

	_, ok = r.Evict()
	require.False(t, ok)
}

func TestLRUKReplacer_PinnedFramesSkipped(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(0)
	r.RecordAccess(1)
	r.SetEvictable(0, false)
	r.SetEvictable(1, true)

	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 1, victim)

	_, ok = r.Evict()
	require.False(t, ok)

	r.SetEvictable(0, true)
	victim, ok = r.Evict()
	require.True(t, ok)
	require.Equal(t, 0, victim)
}

func TestLRUKReplacer_InfiniteTiesBreakByEarliestAccess(t *testing.T) {
	r := NewLRUKReplacer(4, 3)
	r.RecordAccess(5)
	r.RecordAccess(6)
	r.RecordAccess(5)
	r.SetEvictable(5, true)
	r.SetEvictable(6, true)

	// Both below k accesses; frame 5 was touched first.
	victim, ok := r.Evict()
	require.True(t, ok)
	require.Equal(t, 5, victim)
}

func TestLRUKReplacer_Remove(t *testing.T) {
	r := NewLRUKReplacer(4, 2)
	r.RecordAccess(1)
	r.SetEvictable(1, false)
	require.ErrorIs(t, r.Remove(1), ErrFrameNotEvictable)

	r.SetEvictable(1, true)
	require.NoError(t, r.Remove(1))
	require.Equal(t, 0, r.Size())
	require.NoError(t, r.Remove(1)) // untracked is a no-op
}
