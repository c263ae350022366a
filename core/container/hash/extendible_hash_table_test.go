package hash

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// checkDirectoryInvariant verifies that two directory slots share a bucket
// iff they agree in their low local-depth bits.
func checkDirectoryInvariant[K comparable, V any](t *testing.T, h *ExtendibleHashTable[K, V]) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := range h.dir {
		for j := range h.dir {
			sameBucket := h.dir[i] == h.dir[j]
			mask := (1 << h.dir[i].depth) - 1
			sameBits := i&mask == j&mask
			if sameBucket {
				require.True(t, sameBits,
					"slots %d and %d share a bucket but differ in low %d bits", i, j, h.dir[i].depth)
			}
			if sameBits && h.dir[i].depth == h.dir[j].depth {
				require.True(t, sameBucket,
					"slots %d and %d agree in low %d bits but hold different buckets", i, j, h.dir[i].depth)
			}
		}
	}
}

func TestExtendibleHashTable_BasicInsertFind(t *testing.T) {
	table := NewExtendibleHashTable[int, string](2, HashInt)

	table.Insert(0, "a")
	table.Insert(1, "b")
	table.Insert(2, "c")
	table.Insert(3, "d")

	v, ok := table.Find(2)
	require.True(t, ok)
	require.Equal(t, "c", v)

	for i, want := range []string{"a", "b", "c", "d"} {
		v, ok := table.Find(i)
		require.True(t, ok, "key %d", i)
		require.Equal(t, want, v)
	}

	// Four entries in buckets of two forces at least one split.
	require.GreaterOrEqual(t, table.GlobalDepth(), 1)
	require.GreaterOrEqual(t, table.NumBuckets(), 2)
	checkDirectoryInvariant(t, table)
}

func TestExtendibleHashTable_OverwriteAndRemove(t *testing.T) {
	table := NewExtendibleHashTable[int, int](4, HashInt)

	table.Insert(42, 1)
	table.Insert(42, 2)
	v, ok := table.Find(42)
	require.True(t, ok)
	require.Equal(t, 2, v)

	require.True(t, table.Remove(42))
	_, ok = table.Find(42)
	require.False(t, ok)
	require.False(t, table.Remove(42))
}

func TestExtendibleHashTable_SplitGrowth(t *testing.T) {
	table := NewExtendibleHashTable[int, int](2, HashInt)

	prevBuckets := table.NumBuckets()
	for i := 0; i < 512; i++ {
		table.Insert(i, i*10)
		// num_buckets never shrinks
		require.GreaterOrEqual(t, table.NumBuckets(), prevBuckets)
		prevBuckets = table.NumBuckets()
	}
	for i := 0; i < 512; i++ {
		v, ok := table.Find(i)
		require.True(t, ok, "key %d", i)
		require.Equal(t, i*10, v)
	}
	require.Equal(t, 512, table.Size())
	checkDirectoryInvariant(t, table)
}

func TestExtendibleHashTable_LastWriteWins(t *testing.T) {
	table := NewExtendibleHashTable[string, int](3, HashString)
	for round := 0; round < 5; round++ {
		for i := 0; i < 100; i++ {
			table.Insert(fmt.Sprintf("key-%d", i), round*1000+i)
		}
	}
	for i := 0; i < 100; i++ {
		v, ok := table.Find(fmt.Sprintf("key-%d", i))
		require.True(t, ok)
		require.Equal(t, 4000+i, v)
	}
	require.Equal(t, 100, table.Size())
}

func TestExtendibleHashTable_ConcurrentInsertFind(t *testing.T) {
	const (
		threads     = 8
		perThread   = 10000
		bucketSize  = 8
		keyInterval = 1 << 20
	)
	table := NewExtendibleHashTable[int, int](bucketSize, HashInt)

	var wg sync.WaitGroup
	for tid := 0; tid < threads; tid++ {
		wg.Add(1)
		go func(tid int) {
			defer wg.Done()
			base := tid * keyInterval
			for i := 0; i < perThread; i++ {
				key := base + i
				table.Insert(key, key*2)
				v, ok := table.Find(key)
				if !ok || v != key*2 {
					t.Errorf("key %d: got (%d, %v), want (%d, true)", key, v, ok, key*2)
					return
				}
			}
		}(tid)
	}
	wg.Wait()

	require.Equal(t, threads*perThread, table.Size())
	for tid := 0; tid < threads; tid++ {
		for i := 0; i < perThread; i += 997 {
			key := tid*keyInterval + i
			v, ok := table.Find(key)
			require.True(t, ok, "key %d", key)
			require.Equal(t, key*2, v)
		}
	}
	checkDirectoryInvariant(t, table)
}

func TestExtendibleHashTable_Range(t *testing.T) {
	table := NewExtendibleHashTable[int, int](2, HashInt)
	for i := 0; i < 64; i++ {
		table.Insert(i, i)
	}
	seen := make(map[int]bool)
	table.Range(func(k, v int) bool {
		require.Equal(t, k, v)
		require.False(t, seen[k], "key %d visited twice", k)
		seen[k] = true
		return true
	})
	require.Len(t, seen, 64)
}
