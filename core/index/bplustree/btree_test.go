package bplustree

import (
	"bytes"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kitsune-db/kitsunedb/core/storage/buffer"
	"github.com/kitsune-db/kitsunedb/core/storage/disk"
	"github.com/kitsune-db/kitsunedb/core/storage/page"
)

func newTestTree(t *testing.T, leafMax, internalMax, poolSize int) (*BPlusTree, *disk.Manager) {
	t.Helper()
	dm, err := disk.NewManager(filepath.Join(t.TempDir(), "index.db"), page.DefaultPageSize, zap.NewNop())
	require.NoError(t, err)
	bpm := buffer.NewBufferPoolManager(poolSize, 2, dm, zap.NewNop())
	t.Cleanup(func() { bpm.Close() })

	tree, err := NewBPlusTree("test_index", bpm, Int64Comparator(), Config{
		KeySize:         8,
		LeafMaxSize:     leafMax,
		InternalMaxSize: internalMax,
		Logger:          zap.NewNop(),
	})
	require.NoError(t, err)
	return tree, dm
}

func insertInt(t *testing.T, tree *BPlusTree, v int64) {
	t.Helper()
	ok, err := tree.Insert(Int64Key(v), rid(int(v)))
	require.NoError(t, err)
	require.True(t, ok, "insert %d", v)
}

func removeInt(t *testing.T, tree *BPlusTree, v int64) {
	t.Helper()
	require.NoError(t, tree.Remove(Int64Key(v)))
}

// checkSubtree validates structural invariants below id and returns the
// smallest and largest keys in the subtree. Separators are checked as
// routing bounds: every key in child i is >= key_at(i), and every key in
// child i-1 is < key_at(i). (Deleting a leaf's first key leaves separators
// in higher ancestors as stale lower bounds, so exact equality does not hold
// tree-wide.)
func checkSubtree(t *testing.T, tree *BPlusTree, id, wantParent page.PageID) (smallest, largest []byte) {
	t.Helper()
	pg, err := tree.bpm.FetchPage(id)
	require.NoError(t, err)
	defer tree.bpm.UnpinPage(id, false)

	node := View(pg.Data(), tree.keySize)
	require.Equal(t, wantParent, node.ParentPageID(), "parent pointer of page %d", id)

	if !node.IsRoot() {
		require.GreaterOrEqual(t, node.Size(), node.MinSize(), "underflow in page %d", id)
	}
	if node.IsLeaf() {
		require.LessOrEqual(t, node.Size(), node.MaxSize()-1, "leaf overflow in page %d", id)
		leaf := node.AsLeaf()
		require.Positive(t, leaf.Size(), "empty non-deleted leaf %d", id)
		for i := 1; i < leaf.Size(); i++ {
			require.Negative(t, bytes.Compare(leaf.KeyAt(i-1), leaf.KeyAt(i)),
				"keys not strictly increasing in leaf %d", id)
		}
		smallest = append([]byte(nil), leaf.KeyAt(0)...)
		largest = append([]byte(nil), leaf.KeyAt(leaf.Size()-1)...)
		return smallest, largest
	}

	require.LessOrEqual(t, node.Size(), node.MaxSize(), "internal overflow in page %d", id)
	internal := node.AsInternal()
	if node.IsRoot() {
		require.GreaterOrEqual(t, internal.Size(), 2, "internal root with fewer than two children")
	}
	var prevLargest []byte
	for i := 0; i < internal.Size(); i++ {
		childSmallest, childLargest := checkSubtree(t, tree, internal.ValueAt(i), id)
		if i == 0 {
			smallest = childSmallest
		} else {
			sep := internal.KeyAt(i)
			require.LessOrEqual(t, bytes.Compare(sep, childSmallest), 0,
				"separator %d of page %d exceeds the smallest key of child %d", i, id, internal.ValueAt(i))
			require.Negative(t, bytes.Compare(prevLargest, sep),
				"separator %d of page %d does not bound child %d from above", i, id, internal.ValueAt(i-1))
		}
		prevLargest = childLargest
	}
	return smallest, prevLargest
}

// leafChainKeys walks the leaf chain from the leftmost leaf and returns every
// key, verifying strict ascending order across leaves.
func leafChainKeys(t *testing.T, tree *BPlusTree) []int64 {
	t.Helper()
	rootID := tree.RootPageID()
	if !rootID.IsValid() {
		return nil
	}
	id := rootID
	for {
		pg, err := tree.bpm.FetchPage(id)
		require.NoError(t, err)
		node := View(pg.Data(), tree.keySize)
		if node.IsLeaf() {
			tree.bpm.UnpinPage(id, false)
			break
		}
		next := node.AsInternal().ValueAt(0)
		tree.bpm.UnpinPage(id, false)
		id = next
	}

	var keys []int64
	var prev []byte
	for id.IsValid() {
		pg, err := tree.bpm.FetchPage(id)
		require.NoError(t, err)
		leaf := LeafView(pg.Data(), tree.keySize)
		for i := 0; i < leaf.Size(); i++ {
			if prev != nil {
				require.Negative(t, bytes.Compare(prev, leaf.KeyAt(i)), "leaf chain out of order")
			}
			prev = append(prev[:0], leaf.KeyAt(i)...)
			keys = append(keys, DecodeInt64Key(leaf.KeyAt(i)))
		}
		next := leaf.NextPageID()
		tree.bpm.UnpinPage(id, false)
		id = next
	}
	return keys
}

func verifyTree(t *testing.T, tree *BPlusTree, wantKeys []int64) {
	t.Helper()
	rootID := tree.RootPageID()
	if len(wantKeys) == 0 {
		require.False(t, rootID.IsValid(), "tree should be empty")
		return
	}
	require.True(t, rootID.IsValid())
	checkSubtree(t, tree, rootID, page.InvalidPageID)
	require.Equal(t, wantKeys, leafChainKeys(t, tree))
}

func treeHeight(t *testing.T, tree *BPlusTree) int {
	t.Helper()
	id := tree.RootPageID()
	if !id.IsValid() {
		return 0
	}
	height := 1
	for {
		pg, err := tree.bpm.FetchPage(id)
		require.NoError(t, err)
		node := View(pg.Data(), tree.keySize)
		if node.IsLeaf() {
			tree.bpm.UnpinPage(id, false)
			return height
		}
		next := node.AsInternal().ValueAt(0)
		tree.bpm.UnpinPage(id, false)
		id = next
		height++
	}
}

func TestBPlusTree_SequentialInsertScan(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 256)

	var want []int64
	for v := int64(1); v <= 255; v++ {
		insertInt(t, tree, v)
		want = append(want, v)
	}

	require.GreaterOrEqual(t, treeHeight(t, tree), 3)
	verifyTree(t, tree, want)

	for v := int64(1); v <= 255; v++ {
		got, found, err := tree.GetValue(Int64Key(v))
		require.NoError(t, err)
		require.True(t, found, "key %d", v)
		require.Equal(t, rid(int(v)), got)
	}
}

func TestBPlusTree_DuplicateInsertRejected(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 64)
	insertInt(t, tree, 7)

	ok, err := tree.Insert(Int64Key(7), rid(99))
	require.NoError(t, err)
	require.False(t, ok)

	got, found, err := tree.GetValue(Int64Key(7))
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rid(7), got, "original value untouched")
}

func TestBPlusTree_InsertThenRemoveAllInOrder(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 64)

	for v := int64(1); v <= 10; v++ {
		insertInt(t, tree, v)
	}
	for v := int64(1); v <= 10; v++ {
		removeInt(t, tree, v)
	}

	require.True(t, tree.IsEmpty())
	require.Equal(t, page.InvalidPageID, tree.RootPageID())
	_, found, err := tree.GetValue(Int64Key(5))
	require.NoError(t, err)
	require.False(t, found)
}

func TestBPlusTree_RemoveMiddleKeepsNeighbors(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 64)
	var want []int64
	for v := int64(1); v <= 10; v++ {
		insertInt(t, tree, v)
		want = append(want, v)
	}

	removeInt(t, tree, 5)
	want = append(want[:4], want[5:]...)

	_, found, err := tree.GetValue(Int64Key(5))
	require.NoError(t, err)
	require.False(t, found)
	for _, v := range []int64{4, 6} {
		_, found, err := tree.GetValue(Int64Key(v))
		require.NoError(t, err)
		require.True(t, found, "key %d", v)
	}
	verifyTree(t, tree, want)
}

func TestBPlusTree_RemoveAbsentKeyIsNoop(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 64)
	var want []int64
	for v := int64(1); v <= 20; v++ {
		insertInt(t, tree, v)
		want = append(want, v)
	}
	removeInt(t, tree, 100)
	removeInt(t, tree, 0)
	verifyTree(t, tree, want)
}

func TestBPlusTree_RandomRoundTripFreesAllPages(t *testing.T) {
	const n = 500
	tree, dm := newTestTree(t, 4, 4, 512)

	rng := rand.New(rand.NewSource(42))
	insertOrder := rng.Perm(n)
	removeOrder := rng.Perm(n)

	for _, v := range insertOrder {
		insertInt(t, tree, int64(v+1))
	}
	var want []int64
	for v := int64(1); v <= n; v++ {
		want = append(want, v)
	}
	verifyTree(t, tree, want)

	for i, v := range removeOrder {
		removeInt(t, tree, int64(v+1))
		if i%97 == 0 && i < len(removeOrder)-1 {
			rootID := tree.RootPageID()
			if rootID.IsValid() {
				checkSubtree(t, tree, rootID, page.InvalidPageID)
			}
		}
	}

	require.True(t, tree.IsEmpty())
	// Everything but the header page is back on the free list.
	require.Equal(t, int64(1), dm.LivePages())
}

func TestBPlusTree_RandomMixedWorkload(t *testing.T) {
	tree, _ := newTestTree(t, 5, 5, 512)
	rng := rand.New(rand.NewSource(7))

	live := make(map[int64]bool)
	for i := 0; i < 5000; i++ {
		v := int64(rng.Intn(800))
		if rng.Intn(2) == 0 {
			ok, err := tree.Insert(Int64Key(v), rid(int(v)))
			require.NoError(t, err)
			require.Equal(t, !live[v], ok)
			live[v] = true
		} else {
			removeInt(t, tree, v)
			delete(live, v)
		}
	}

	var want []int64
	for v := int64(0); v < 800; v++ {
		if live[v] {
			want = append(want, v)
		}
	}
	verifyTree(t, tree, want)

	for v := int64(0); v < 800; v++ {
		_, found, err := tree.GetValue(Int64Key(v))
		require.NoError(t, err)
		require.Equal(t, live[v], found, "key %d", v)
	}
}

func TestBPlusTree_Iterator(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 256)
	for v := int64(2); v <= 100; v += 2 {
		insertInt(t, tree, v)
	}

	it, err := tree.Begin()
	require.NoError(t, err)
	var got []int64
	for !it.IsEnd() {
		got = append(got, DecodeInt64Key(it.Key()))
		require.NoError(t, it.Next())
	}
	var want []int64
	for v := int64(2); v <= 100; v += 2 {
		want = append(want, v)
	}
	require.Equal(t, want, got)

	// Present key: iterator starts at it.
	it, err = tree.BeginAt(Int64Key(50))
	require.NoError(t, err)
	require.False(t, it.IsEnd())
	require.Equal(t, int64(50), DecodeInt64Key(it.Key()))
	it.Close()

	// Absent key: iterator starts at the next larger key.
	it, err = tree.BeginAt(Int64Key(51))
	require.NoError(t, err)
	require.False(t, it.IsEnd())
	require.Equal(t, int64(52), DecodeInt64Key(it.Key()))
	it.Close()

	// Past the largest key: immediately exhausted.
	it, err = tree.BeginAt(Int64Key(101))
	require.NoError(t, err)
	require.True(t, it.IsEnd())

	require.True(t, tree.End().IsEnd())
}

func TestBPlusTree_IteratorOnEmptyTree(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 64)
	it, err := tree.Begin()
	require.NoError(t, err)
	require.True(t, it.IsEnd())
}

func TestBPlusTree_ReopenRecoversRoot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "index.db")

	dm, err := disk.NewManager(path, page.DefaultPageSize, zap.NewNop())
	require.NoError(t, err)
	bpm := buffer.NewBufferPoolManager(64, 2, dm, zap.NewNop())
	tree, err := NewBPlusTree("orders_pk", bpm, Int64Comparator(), Config{
		KeySize: 8, LeafMaxSize: 4, InternalMaxSize: 4, Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	for v := int64(1); v <= 50; v++ {
		insertInt(t, tree, v)
	}
	rootBefore := tree.RootPageID()
	require.NoError(t, bpm.Close())

	dm2, err := disk.NewManager(path, page.DefaultPageSize, zap.NewNop())
	require.NoError(t, err)
	bpm2 := buffer.NewBufferPoolManager(64, 2, dm2, zap.NewNop())
	t.Cleanup(func() { bpm2.Close() })
	tree2, err := NewBPlusTree("orders_pk", bpm2, Int64Comparator(), Config{
		KeySize: 8, LeafMaxSize: 4, InternalMaxSize: 4, Logger: zap.NewNop(),
	})
	require.NoError(t, err)
	require.Equal(t, rootBefore, tree2.RootPageID())

	for v := int64(1); v <= 50; v++ {
		got, found, err := tree2.GetValue(Int64Key(v))
		require.NoError(t, err)
		require.True(t, found, "key %d after reopen", v)
		require.Equal(t, rid(int(v)), got)
	}
}

func TestBPlusTree_KeySizeValidation(t *testing.T) {
	tree, _ := newTestTree(t, 4, 4, 64)
	_, err := tree.Insert([]byte{1, 2, 3}, rid(1))
	require.ErrorIs(t, err, ErrInvalidKeySize)
	_, _, err = tree.GetValue([]byte{1})
	require.ErrorIs(t, err, ErrInvalidKeySize)
	require.ErrorIs(t, tree.Remove([]byte{1}), ErrInvalidKeySize)
}
